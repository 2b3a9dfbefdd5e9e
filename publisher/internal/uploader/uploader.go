package uploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/atomweather/atomweather/pkg/lamport"
	"github.com/atomweather/atomweather/pkg/observation"
	"github.com/atomweather/atomweather/publisher/internal/feed"
)

// Defaults for the publisher's upload behavior.
const (
	DefaultInterval   = 3 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 3 * time.Second

	userAgent      = "ATOMClient/1/0"
	endpointPath   = "/weatherInfo.json"
	requestTimeout = 10 * time.Second
)

// Uploader publishes one station's feed file to the aggregation server.
type Uploader struct {
	ServerURL  string
	FilePath   string
	MaxRetries int
	RetryDelay time.Duration

	// Verify controls the read-back check after a successful PUT: the record
	// is fetched again and compared field by field. A mismatch is reported,
	// not retried; the next periodic upload re-publishes anyway.
	Verify bool

	// Clock is the publisher's Lamport clock.
	Clock *lamport.Clock

	// HTTPClient is the client used for all requests.
	HTTPClient *http.Client
}

// New creates an Uploader with default retry and verification settings.
func New(serverURL, filePath string) *Uploader {
	return &Uploader{
		ServerURL:  strings.TrimRight(serverURL, "/"),
		FilePath:   filePath,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
		Verify:     true,
		Clock:      lamport.New(),
		HTTPClient: &http.Client{Timeout: requestTimeout},
	}
}

// UploadOnce runs one full upload cycle: read, parse, serialize, PUT with
// retries, then optionally verify. Errors are returned to the caller; the
// periodic scheduler logs them and carries on with the next cycle.
func (u *Uploader) UploadOnce(ctx context.Context) error {
	u.Clock.Tick() // local event: begin upload

	data, err := os.ReadFile(u.FilePath)
	if err != nil {
		return fmt.Errorf("uploader: read feed: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		// Empty feed: a single empty-body PUT, answered with 204.
		status, err := u.put(ctx, nil)
		if err != nil {
			return fmt.Errorf("uploader: empty put: %w", err)
		}
		if !accepted(status) {
			return fmt.Errorf("uploader: empty put: server returned status %d", status)
		}
		return nil
	}

	u.Clock.Tick() // local event: parse
	rec, err := feed.Parse(data)
	if err != nil {
		return err
	}

	u.Clock.Tick() // local event: serialize
	body, err := rec.Encode()
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= u.MaxRetries; attempt++ {
		status, err := u.put(ctx, body)
		if err == nil && accepted(status) {
			slog.Info("upload accepted",
				"station", rec.ID(),
				"status", status,
				"attempt", attempt,
			)
			if u.Verify {
				u.verifyUploaded(ctx, rec)
			}
			return nil
		}

		if err != nil {
			lastErr = fmt.Errorf("uploader: attempt %d: %w", attempt, err)
		} else {
			lastErr = fmt.Errorf("uploader: attempt %d: server returned status %d", attempt, status)
		}
		slog.Warn("upload attempt failed", "attempt", attempt, "err", lastErr)

		if attempt < u.MaxRetries {
			if !sleepCtx(ctx, u.RetryDelay) {
				return ctx.Err()
			}
		}
	}
	return lastErr
}

// put sends one PUT carrying body and merges the server's clock into ours.
func (u *Uploader) put(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		u.ServerURL+endpointPath, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Lamport-Clock", strconv.FormatInt(u.Clock.Read(), 10))
	req.ContentLength = int64(len(body))

	u.Clock.Tick() // local event: send

	resp, err := u.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	u.observeResponse(resp)
	return resp.StatusCode, nil
}

// verifyUploaded fetches the station's record back and compares it with what
// was sent. Mismatches are reported but never retried.
func (u *Uploader) verifyUploaded(ctx context.Context, sent observation.Record) {
	u.Clock.Tick() // local event: begin verification

	url := u.ServerURL + endpointPath + "?id=" + sent.ID()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Lamport-Clock", strconv.FormatInt(u.Clock.Read(), 10))

	resp, err := u.HTTPClient.Do(req)
	if err != nil {
		slog.Warn("verification fetch failed", "station", sent.ID(), "err", err)
		return
	}
	defer resp.Body.Close()
	u.observeResponse(resp)

	if resp.StatusCode != http.StatusOK {
		slog.Warn("verification fetch returned non-200",
			"station", sent.ID(), "status", resp.StatusCode)
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Warn("verification read failed", "station", sent.ID(), "err", err)
		return
	}
	recs, err := observation.DecodeList(body)
	if err != nil || len(recs) == 0 {
		slog.Warn("verification decode failed", "station", sent.ID(), "err", err)
		return
	}

	if !observation.Equal(sent, recs[0]) {
		slog.Warn("verification mismatch: retrieved record differs from sent",
			"station", sent.ID())
		return
	}
	slog.Debug("verification ok", "station", sent.ID())
}

// observeResponse merges the server's Lamport-Clock header into our clock,
// or ticks once when the header is absent.
func (u *Uploader) observeResponse(resp *http.Response) {
	if v := resp.Header.Get("Lamport-Clock"); v != "" {
		if remote, err := strconv.ParseInt(v, 10, 64); err == nil {
			u.Clock.Observe(remote)
			return
		}
	}
	u.Clock.Tick()
}

// accepted reports whether status completes an upload.
func accepted(status int) bool {
	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return true
	}
	return false
}

// sleepCtx sleeps for d, returning false if ctx was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
