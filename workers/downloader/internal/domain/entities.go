package domain

import (
	"encoding/json"
	"fmt"
)

// Job is one chapter download request as produced by the scraper.
type Job struct {
	Title      string      `json:"Title"`
	ChapterNum string      `json:"ChapterNum"`
	Images     []ImageItem `json:"MangaImages"`
}

// ImageItem describes a single page. When EmbeddedPayload is set the page is
// decoded locally, otherwise it is fetched from SourceURI.
type ImageItem struct {
	SourceURI       string `json:"Uri"`
	DestinationPath string `json:"FullPath"`
	EmbeddedPayload string `json:"Base64String"`
	FileName        string `json:"ImageFileName"`
}

// Label is the "title : chapter" form used in log lines.
func (j Job) Label() string {
	return fmt.Sprintf("%s : %s", j.Title, j.ChapterNum)
}

// Embedded reports whether the job carries its pages inline. Jobs are not
// expected to mix both modes; a single embedded page switches all of them.
func (j Job) Embedded() bool {
	for _, img := range j.Images {
		if img.EmbeddedPayload != "" {
			return true
		}
	}
	return false
}

// NotificationPayload is the body posted downstream once a chapter is stored.
type NotificationPayload struct {
	chapterLabel string
	title        string
	path         string
}

func NewNotificationPayload(chapterLabel, title, path string) NotificationPayload {
	return NotificationPayload{
		chapterLabel: chapterLabel,
		title:        title,
		path:         path,
	}
}

func (p NotificationPayload) ChapterLabel() string { return p.chapterLabel }
func (p NotificationPayload) Title() string        { return p.title }
func (p NotificationPayload) Path() string         { return p.path }

func (p NotificationPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		MangaChapter string `json:"MangaChapter"`
		Name         string `json:"Name"`
		Path         string `json:"Path"`
	}{
		MangaChapter: p.chapterLabel,
		Name:         p.title,
		Path:         p.path,
	})
}

// Outcome is how a job ended when no error was returned.
type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeSkippedEmpty     Outcome = "skipped_empty"
	OutcomeSkippedExcluded  Outcome = "skipped_excluded"
	OutcomeValidationFailed Outcome = "validation_failed"
)
