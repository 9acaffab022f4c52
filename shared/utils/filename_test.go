package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain name unchanged", input: "001.jpg", expected: "001.jpg"},
		{name: "diacritics stripped", input: "Épisode café.png", expected: "Episode cafe.png"},
		{name: "percent removed", input: "100%.jpg", expected: "100.jpg"},
		{name: "url escapes lose their percent", input: "naïve%20page.webp", expected: "naive20page.webp"},
		{name: "invalid characters stripped", input: "Ch:1?<2>|*.jpg", expected: "Ch12.jpg"},
		{name: "separators stripped", input: `a/b\c.jpg`, expected: "abc.jpg"},
		{name: "control characters stripped", input: "page\t\x00.jpg", expected: "page.jpg"},
		{name: "html entities decoded", input: "Tom &amp; Jerry.jpg", expected: "Tom & Jerry.jpg"},
		{name: "entities decoded after stripping", input: "a&quot;b.jpg", expected: `a"b.jpg`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFileName(tt.input))
		})
	}
}

func TestSanitizeFileName_Idempotent(t *testing.T) {
	inputs := []string{
		"Épisode 100%.jpg",
		"Ñoño 12 – fin%.png",
		"Tom &amp; Jerry ç.jpg",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			once := SanitizeFileName(input)
			assert.NotContains(t, once, "%")
			assert.Equal(t, once, SanitizeFileName(once))
		})
	}
}
