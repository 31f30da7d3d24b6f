package psadiag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

const (
	downloadChunkSize  = 8192
	downloadSetupWait  = 30 * time.Second
	progressChunkEvery = 100
)

// ErrDownloadCancelled is returned by Download.Run after Cancel(). The
// partial file has been removed by then.
var ErrDownloadCancelled = errors.New("download cancelled")

// StatusError is a non-200 response to a download request.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", e.Code)
}

// MessageKey maps the status to the translation key of a user-facing
// explanation.
func (e *StatusError) MessageKey() string {
	switch e.Code {
	case http.StatusNotFound:
		return "messages.download.error_404"
	case http.StatusForbidden:
		return "messages.download.error_403"
	case http.StatusInternalServerError:
		return "messages.download.error_500"
	case http.StatusBadGateway:
		return "messages.download.error_502"
	case http.StatusServiceUnavailable:
		return "messages.download.error_503"
	}
	switch {
	case e.Code >= 400 && e.Code < 500:
		return "messages.download.error_4xx"
	case e.Code >= 500 && e.Code < 600:
		return "messages.download.error_5xx"
	}
	return "messages.download.error_generic"
}

// DownloadProgress is one progress report. Permille runs 0..1000; when the
// total size is unknown it stays 0 and ETA carries the downloaded amount
// instead.
type DownloadProgress struct {
	Permille int
	SpeedMBs float64
	ETA      string
}

// Download fetches one file to disk with progress reporting. Pause, Resume
// and Cancel may be called concurrently with Run.
type Download struct {
	URL       string
	Path      string
	TotalSize int64

	client       *http.Client
	progressFunc func(DownloadProgress)
	cancelled    atomic.Bool
	paused       atomic.Bool
}

// NewDownload prepares a download of url to path. The total size is taken
// from the response when not set beforehand.
func NewDownload(url, path string) *Download {
	return &Download{
		URL:  url,
		Path: path,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: downloadSetupWait,
				}).DialContext,
				ResponseHeaderTimeout: downloadSetupWait,
			},
		},
		progressFunc: func(DownloadProgress) {},
	}
}

func (d *Download) SetProgressFunc(fn func(DownloadProgress)) { d.progressFunc = fn }

// Cancel stops the download; the partial file is deleted.
func (d *Download) Cancel() { d.cancelled.Store(true) }

// Pause suspends the transfer until Resume or Cancel.
func (d *Download) Pause() { d.paused.Store(true) }

// Resume continues a paused transfer.
func (d *Download) Resume() { d.paused.Store(false) }

// Run performs the download. It blocks until the file is complete, the
// download is cancelled, or an error occurs.
func (d *Download) Run(ctx context.Context) error {
	log.Printf("Starting download: %s", d.URL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Printf("Download failed with HTTP %d", resp.StatusCode)
		return &StatusError{Code: resp.StatusCode}
	}
	if d.TotalSize == 0 && resp.ContentLength > 0 {
		d.TotalSize = resp.ContentLength
		log.Printf("File size from GET response: %.2f MB", float64(d.TotalSize)/float64(MB))
	}

	if err = os.MkdirAll(filepath.Dir(d.Path), 0755); err != nil {
		return err
	}
	file, err := os.Create(d.Path)
	if err != nil {
		return err
	}

	var downloaded int64
	chunkCount := 0
	startTime := time.Now()
	buf := make([]byte, downloadChunkSize)
	for {
		for d.paused.Load() && !d.cancelled.Load() {
			time.Sleep(100 * time.Millisecond)
		}
		if d.cancelled.Load() {
			file.Close()
			os.Remove(d.Path)
			log.Printf("Download cancelled: %s", d.URL)
			return ErrDownloadCancelled
		}
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := file.Write(buf[:n]); werr != nil {
				file.Close()
				return werr
			}
			downloaded += int64(n)
			chunkCount++
			if chunkCount%progressChunkEvery == 0 {
				d.progressFunc(d.progress(downloaded, time.Since(startTime)))
			}
		}
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				file.Close()
				return err
			}
			if errors.Is(err, io.EOF) {
				break
			}
			file.Close()
			return err
		}
	}
	if err = file.Close(); err != nil {
		return err
	}
	if d.TotalSize == 0 || downloaded >= d.TotalSize {
		d.progressFunc(DownloadProgress{Permille: 1000, ETA: "00:00"})
	}
	log.Printf("Download completed successfully: %s", d.Path)
	return nil
}

func (d *Download) progress(downloaded int64, elapsed time.Duration) DownloadProgress {
	speed := 0.0
	if elapsed > 0 {
		speed = float64(downloaded) / elapsed.Seconds() / float64(MB)
	}
	if d.TotalSize <= 0 {
		// Total unknown, report the downloaded amount instead of an ETA.
		return DownloadProgress{
			SpeedMBs: speed,
			ETA:      fmt.Sprintf("%.1f MB", float64(downloaded)/float64(MB)),
		}
	}
	permille := int(float64(downloaded) / float64(d.TotalSize) * 1000)
	etaSeconds := 0
	if speed > 0 {
		etaSeconds = int(float64(d.TotalSize-downloaded) / (speed * float64(MB)))
	}
	return DownloadProgress{
		Permille: permille,
		SpeedMBs: speed,
		ETA:      fmt.Sprintf("%02d:%02d", etaSeconds/60, etaSeconds%60),
	}
}
