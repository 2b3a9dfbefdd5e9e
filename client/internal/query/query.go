package query

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atomweather/atomweather/pkg/lamport"
	"github.com/atomweather/atomweather/pkg/observation"
)

// Defaults for the client's retry behavior.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 3 * time.Second

	endpointPath   = "/weatherInfo.json"
	requestTimeout = 10 * time.Second
)

// Client fetches observations from the aggregation server and prints them.
type Client struct {
	ServerURL  string
	MaxRetries int
	RetryDelay time.Duration

	// Out receives the pretty-printed observations and error lines.
	Out io.Writer

	// Clock is the client's Lamport clock.
	Clock *lamport.Clock

	// HTTPClient is the client used for all requests.
	HTTPClient *http.Client
}

// New creates a Client writing its output to out.
func New(serverURL string, out io.Writer) *Client {
	return &Client{
		ServerURL:  strings.TrimRight(serverURL, "/"),
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
		Out:        out,
		Clock:      lamport.New(),
		HTTPClient: &http.Client{Timeout: requestTimeout},
	}
}

// Run issues one GET (for all stations, or for stationID when non-empty) and
// prints the result. Transport failures are retried up to MaxRetries times
// with a fresh connection each attempt; the last error surfaces when all
// retries fail. A non-200 status is printed, not retried.
func (c *Client) Run(ctx context.Context, stationID string) error {
	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("request failed, retrying",
				"attempt", attempt, "err", lastErr)
			if !sleepCtx(ctx, c.RetryDelay) {
				return ctx.Err()
			}
			c.Clock.Tick() // local event: open a fresh connection
		}

		err := c.getOnce(ctx, stationID)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("query: all retries failed: %w", lastErr)
}

// getOnce performs one GET round trip. Only transport errors are returned;
// any HTTP response, whatever the status, is terminal.
func (c *Client) getOnce(ctx context.Context, stationID string) error {
	c.Clock.Tick() // local event: begin request

	url := c.ServerURL + endpointPath
	if stationID != "" {
		url += "?id=" + stationID
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Lamport-Clock", strconv.FormatInt(c.Clock.Read(), 10))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if v := resp.Header.Get("Lamport-Clock"); v != "" {
		if remote, perr := strconv.ParseInt(v, 10, 64); perr == nil {
			c.Clock.Observe(remote)
		} else {
			c.Clock.Tick()
		}
	} else {
		c.Clock.Tick()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(c.Out, "Error: Server returned status code %d\n", resp.StatusCode)
		return nil
	}

	c.Clock.Tick() // local event: process response
	c.display(body)
	return nil
}

// display pretty-prints the response body: one key: value line per field,
// blocks separated by a blank line when the body is an array.
func (c *Client) display(body []byte) {
	recs, err := observation.DecodeList(body)
	if err != nil {
		fmt.Fprintln(c.Out, "Error: Invalid JSON data")
		return
	}

	for i, rec := range recs {
		if i > 0 {
			fmt.Fprintln(c.Out)
		}
		for _, key := range rec.Keys() {
			fmt.Fprintf(c.Out, "%s: %v\n", key, rec[key])
		}
	}
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
