package psadiag

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadRun(t *testing.T) {
	payload := bytes.Repeat([]byte("diagbox"), 64*1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "download", "09.85.7z")
	d := NewDownload(server.URL, path)

	var last DownloadProgress
	d.SetProgressFunc(func(p DownloadProgress) { last = p })

	require.NoError(t, d.Run(context.Background()))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, content)
	assert.Equal(t, int64(len(payload)), d.TotalSize)
	assert.Equal(t, 1000, last.Permille)
}

func TestDownloadStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "missing.7z")
	err := NewDownload(server.URL, path).Run(context.Background())

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Equal(t, "messages.download.error_404", statusErr.MessageKey())
	assert.NoFileExists(t, path)
}

func TestDownloadCancelRemovesPartialFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunk := bytes.Repeat([]byte("x"), 8192)
		for i := 0; i < 1000; i++ {
			if _, err := w.Write(chunk); err != nil {
				return
			}
			w.(http.Flusher).Flush()
			time.Sleep(time.Millisecond)
		}
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "cancelled.7z")
	d := NewDownload(server.URL, path)

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()
	time.Sleep(50 * time.Millisecond)
	d.Cancel()

	err := <-done
	require.ErrorIs(t, err, ErrDownloadCancelled)
	assert.NoFileExists(t, path)
}

func TestStatusErrorMessageKeys(t *testing.T) {
	assert.Equal(t, "messages.download.error_403", (&StatusError{Code: 403}).MessageKey())
	assert.Equal(t, "messages.download.error_4xx", (&StatusError{Code: 418}).MessageKey())
	assert.Equal(t, "messages.download.error_5xx", (&StatusError{Code: 504}).MessageKey())
	assert.Equal(t, "messages.download.error_generic", (&StatusError{Code: 302}).MessageKey())
}

func TestDownloadProgressUnknownTotal(t *testing.T) {
	d := &Download{}
	p := d.progress(5*MB, 2*time.Second)
	assert.Zero(t, p.Permille)
	assert.Equal(t, "5.0 MB", p.ETA)
	assert.InDelta(t, 2.5, p.SpeedMBs, 0.01)
}
