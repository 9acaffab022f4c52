package service

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangadownloader/shared/application/ports"
	"mangadownloader/shared/infrastructure/storage/adapters/fs"
	"mangadownloader/shared/testsupport"
	"mangadownloader/workers/downloader/internal/domain"
)

func newTransferService(t *testing.T, client domain.HTTPDoer) *TransferService {
	t.Helper()
	obs, _ := testsupport.NewObservability(t)

	gateway, err := fs.NewGateway("", obs)
	require.NoError(t, err)

	logger, metrics, err := obs.ComponentsScoped("transfer")
	require.NoError(t, err)
	return NewTransferService(gateway, client, "manga-downloader-test", logger, metrics)
}

func TestTransferService_DecodeEmbedded(t *testing.T) {
	dir := t.TempDir()
	svc := newTransferService(t, http.DefaultClient)

	page := []byte("fake jpeg bytes")
	dest := filepath.Join(dir, "Solo", "12", "001.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0755))
	require.NoError(t, os.WriteFile(dest, []byte("an older and longer page body"), 0644))

	mode, err := svc.Transfer(context.Background(), domain.Job{
		Title:      "Solo",
		ChapterNum: "12",
		Images: []domain.ImageItem{
			{DestinationPath: dest, EmbeddedPayload: base64.StdEncoding.EncodeToString(page)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, ModeDecode, mode)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, page, data)
}

func TestTransferService_DecodeErrors(t *testing.T) {
	dir := t.TempDir()
	svc := newTransferService(t, http.DefaultClient)

	t.Run("malformed payload", func(t *testing.T) {
		err := svc.DecodeEmbedded(context.Background(), []domain.ImageItem{
			{DestinationPath: filepath.Join(dir, "bad.jpg"), EmbeddedPayload: "not*base64"},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrMalformedPayload)

		var corrupt base64.CorruptInputError
		assert.True(t, errors.As(err, &corrupt))
	})

	t.Run("missing payload in embedded job", func(t *testing.T) {
		job := domain.Job{Images: []domain.ImageItem{
			{DestinationPath: filepath.Join(dir, "a.jpg"), EmbeddedPayload: "YQ=="},
			{DestinationPath: filepath.Join(dir, "b.jpg")},
		}}
		_, err := svc.Transfer(context.Background(), job)
		assert.ErrorIs(t, err, domain.ErrMissingPayload)
	})
}

func TestTransferService_FetchRemote(t *testing.T) {
	var userAgents []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgents = append(userAgents, r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/missing.jpg":
			http.NotFound(w, r)
		default:
			w.Write([]byte("page:" + r.URL.Path))
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	svc := newTransferService(t, server.Client())

	t.Run("pages are stored under sanitized names", func(t *testing.T) {
		folder := filepath.Join(dir, "Solo", "12")
		mode, err := svc.Transfer(context.Background(), domain.Job{Images: []domain.ImageItem{
			{SourceURI: server.URL + "/1.jpg", DestinationPath: filepath.Join(folder, "Pagé 1?.jpg")},
			{SourceURI: server.URL + "/2.jpg", DestinationPath: filepath.Join(folder, "002.jpg")},
		}})
		require.NoError(t, err)
		assert.Equal(t, ModeFetch, mode)

		data, err := os.ReadFile(filepath.Join(folder, "Page 1.jpg"))
		require.NoError(t, err)
		assert.Equal(t, "page:/1.jpg", string(data))

		_, err = os.Stat(filepath.Join(folder, "002.jpg"))
		assert.NoError(t, err)
		assert.Equal(t, []string{"manga-downloader-test", "manga-downloader-test"}, userAgents)
	})

	t.Run("non-success status opens no file", func(t *testing.T) {
		dest := filepath.Join(dir, "status", "missing.jpg")
		err := svc.FetchRemote(context.Background(), []domain.ImageItem{
			{SourceURI: server.URL + "/missing.jpg", DestinationPath: dest},
		})
		assert.ErrorIs(t, err, domain.ErrUnexpectedStatus)

		_, statErr := os.Stat(dest)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("missing uri", func(t *testing.T) {
		err := svc.FetchRemote(context.Background(), []domain.ImageItem{
			{DestinationPath: filepath.Join(dir, "x.jpg")},
		})
		assert.ErrorIs(t, err, domain.ErrMissingSourceURI)
	})

	t.Run("name that sanitizes to nothing", func(t *testing.T) {
		err := svc.FetchRemote(context.Background(), []domain.ImageItem{
			{SourceURI: server.URL + "/1.jpg", DestinationPath: filepath.Join(dir, "???")},
		})
		assert.ErrorIs(t, err, domain.ErrUnsafeFileName)
	})

	t.Run("locked target", func(t *testing.T) {
		dest := filepath.Join(dir, "locked", "003.jpg")
		require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0755))
		require.NoError(t, os.WriteFile(dest, []byte("held"), 0644))

		other := flock.New(dest)
		locked, err := other.TryLock()
		require.NoError(t, err)
		require.True(t, locked)
		defer other.Unlock()

		err = svc.FetchRemote(context.Background(), []domain.ImageItem{
			{SourceURI: server.URL + "/3.jpg", DestinationPath: dest},
		})
		assert.ErrorIs(t, err, ports.ErrFileLocked)
	})
}

func TestTransferService_FetchStopsAtFirstFailure(t *testing.T) {
	var requested []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		if strings.HasSuffix(r.URL.Path, "2.jpg") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	dir := t.TempDir()
	svc := newTransferService(t, server.Client())

	err := svc.FetchRemote(context.Background(), []domain.ImageItem{
		{SourceURI: server.URL + "/1.jpg", DestinationPath: filepath.Join(dir, "1.jpg")},
		{SourceURI: server.URL + "/2.jpg", DestinationPath: filepath.Join(dir, "2.jpg")},
		{SourceURI: server.URL + "/3.jpg", DestinationPath: filepath.Join(dir, "3.jpg")},
	})
	assert.ErrorIs(t, err, domain.ErrUnexpectedStatus)
	assert.Equal(t, []string{"/1.jpg", "/2.jpg"}, requested)

	_, err = os.Stat(filepath.Join(dir, "1.jpg"))
	assert.NoError(t, err)
	for _, name := range []string{"2.jpg", "3.jpg"} {
		_, err = os.Stat(filepath.Join(dir, name))
		assert.True(t, os.IsNotExist(err), name)
	}
}

func TestTransferService_EmbeddedJobNeverFetches(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte("remote page"))
	}))
	defer server.Close()

	dir := t.TempDir()
	svc := newTransferService(t, server.Client())

	mode, err := svc.Transfer(context.Background(), domain.Job{
		Title:      "Solo",
		ChapterNum: "13",
		Images: []domain.ImageItem{
			{SourceURI: server.URL + "/1.jpg", DestinationPath: filepath.Join(dir, "001.jpg"), EmbeddedPayload: base64.StdEncoding.EncodeToString([]byte("inline"))},
			{SourceURI: server.URL + "/2.jpg", DestinationPath: filepath.Join(dir, "002.jpg")},
		},
	})
	assert.Equal(t, ModeDecode, mode)
	assert.ErrorIs(t, err, domain.ErrMissingPayload)
	assert.Zero(t, requests)

	data, readErr := os.ReadFile(filepath.Join(dir, "001.jpg"))
	require.NoError(t, readErr)
	assert.Equal(t, "inline", string(data))
}
