package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangadownloader/shared/testsupport"
	"mangadownloader/workers/downloader/internal/domain"
)

func TestNotificationClient_Notify(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "accepted", status: http.StatusOK},
		{name: "created", status: http.StatusCreated},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
		{name: "not found", status: http.StatusNotFound, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var received map[string]string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			obs, metrics := testsupport.NewObservability(t)
			notifier, err := NewNotifier(server.URL, time.Second, obs)
			require.NoError(t, err)

			status, err := notifier.Notify(context.Background(), domain.NewNotificationPayload("12", "Solo", "001.jpg,002.jpg"))
			assert.Equal(t, tt.status, status)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrNotificationRejected)
				assert.Equal(t, int64(1), metrics.GetCounter("notify.errors"))
			} else {
				assert.NoError(t, err)
				assert.Equal(t, int64(1), metrics.GetCounter("notify.success"))
			}
			assert.Equal(t, map[string]string{"MangaChapter": "12", "Name": "Solo", "Path": "001.jpg,002.jpg"}, received)
		})
	}
}

func TestNotificationClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	obs, _ := testsupport.NewObservability(t)
	notifier, err := NewNotifier(url, time.Second, obs)
	require.NoError(t, err)

	status, err := notifier.Notify(context.Background(), domain.NewNotificationPayload("1", "x", ""))
	assert.Error(t, err)
	assert.Zero(t, status)
}

func TestNewNotifier_EmptyEndpoint(t *testing.T) {
	obs, _ := testsupport.NewObservability(t)

	notifier, err := NewNotifier("", 0, obs)
	require.NoError(t, err)
	assert.IsType(t, &NoopNotifier{}, notifier)

	status, err := notifier.Notify(context.Background(), domain.NewNotificationPayload("1", "x", ""))
	assert.NoError(t, err)
	assert.Zero(t, status)
}
