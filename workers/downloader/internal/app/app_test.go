package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangadownloader/shared/infrastructure/config"
	"mangadownloader/shared/infrastructure/lock"
	"mangadownloader/shared/testsupport"
)

type recorder struct {
	mu            sync.Mutex
	notifications []map[string]string
}

func (r *recorder) add(n map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notifications)
}

func newTestConfig(t *testing.T, notifyURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Environment = "test"
	cfg.Adapters.Runtime = "memory"
	cfg.Adapters.Storage = "filesystem"
	cfg.Adapters.Database = "sqlite"
	cfg.Storage.BucketOrPath = filepath.Join(dir, "library")
	cfg.Database.SQLitePath = filepath.Join(dir, "mangas.db")
	cfg.Database.AutoMigrate = true
	cfg.Notify.Endpoint = notifyURL
	cfg.Notify.Timeout = 5 * time.Second
	return cfg
}

func TestApp_ProcessesSeededJobs(t *testing.T) {
	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/notify":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			rec.add(body)
		default:
			w.Write(make([]byte, 20000))
		}
	}))
	defer server.Close()

	cfg := newTestConfig(t, server.URL+"/notify")
	obs, _ := testsupport.NewObservability(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := New(ctx, cfg, obs)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.db.Execute(ctx, "INSERT INTO weeb_central (title, extra_information) VALUES (?, ?)", "Solo Leveling", "11,")
	require.NoError(t, err)
	require.NoError(t, a.Metadata().AddExcludedChapter(ctx, "Solo Leveling", "13"))

	library := cfg.Storage.BucketOrPath
	fetched := mustJSON(t, map[string]interface{}{
		"Title":      "Solo Leveling",
		"ChapterNum": "12",
		"MangaImages": []map[string]string{
			{"Uri": server.URL + "/p/1.jpg", "FullPath": filepath.Join(library, "Solo Leveling", "12", "001.jpg"), "ImageFileName": "001.jpg"},
			{"Uri": server.URL + "/p/2.jpg", "FullPath": filepath.Join(library, "Solo Leveling", "12", "002.jpg"), "ImageFileName": "002.jpg"},
		},
	})
	excluded := mustJSON(t, map[string]interface{}{
		"Title":      "Solo Leveling",
		"ChapterNum": "13",
		"MangaImages": []map[string]string{
			{"Uri": server.URL + "/p/1.jpg", "FullPath": filepath.Join(library, "Solo Leveling", "13", "001.jpg")},
		},
	})
	embedded := mustJSON(t, map[string]interface{}{
		"Title":      "Solo Leveling",
		"ChapterNum": "14",
		"MangaImages": []map[string]string{
			{"FullPath": filepath.Join(library, "Solo Leveling", "14", "001.jpg"), "Base64String": base64.StdEncoding.EncodeToString(make([]byte, 12000)), "ImageFileName": "001.jpg"},
		},
	})

	rt, err := a.Runtime(ctx, []byte("not a job"), fetched, excluded, embedded)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- rt.Start(ctx) }()

	require.Eventually(t, func() bool { return rec.count() == 2 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	require.NoError(t, rt.Stop(context.Background()))

	assert.Equal(t, map[string]string{"MangaChapter": "12", "Name": "Solo Leveling", "Path": "001.jpg,002.jpg"}, rec.notifications[0])
	assert.Equal(t, "14", rec.notifications[1]["MangaChapter"])

	info, err := os.Stat(filepath.Join(library, "Solo Leveling", "12", "002.jpg"))
	require.NoError(t, err)
	assert.Equal(t, int64(20000), info.Size())

	_, err = os.Stat(filepath.Join(library, "Solo Leveling", "13", "001.jpg"))
	assert.True(t, os.IsNotExist(err), "excluded chapter is not downloaded")

	var extra string
	require.NoError(t, a.db.Get(context.Background(), &extra,
		"SELECT extra_information FROM weeb_central WHERE title = ?", "Solo Leveling"))
	assert.Equal(t, "11,12,14,", extra)
}

func TestApp_SeedsNeedMemoryRuntime(t *testing.T) {
	cfg := newTestConfig(t, "")
	cfg.Adapters.Runtime = "http"
	obs, _ := testsupport.NewObservability(t)

	a, err := New(context.Background(), cfg, obs)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Runtime(context.Background(), []byte("{}"))
	assert.ErrorContains(t, err, "memory runtime")
}

func TestApp_InstanceLock(t *testing.T) {
	cfg := newTestConfig(t, "")
	cfg.LockFile = filepath.Join(t.TempDir(), "downloader.lock")
	obs, _ := testsupport.NewObservability(t)

	first, err := New(context.Background(), cfg, obs)
	require.NoError(t, err)

	_, err = New(context.Background(), cfg, obs)
	assert.ErrorIs(t, err, lock.ErrAlreadyRunning)

	require.NoError(t, first.Close())
	second, err := New(context.Background(), cfg, obs)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

