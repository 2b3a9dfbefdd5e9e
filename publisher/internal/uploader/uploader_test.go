package uploader_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/atomweather/atomweather/pkg/observation"
	"github.com/atomweather/atomweather/publisher/internal/uploader"
)

// fakeServer records requests and plays an aggregation server: PUTs are
// stored, GETs return the stored record.
type fakeServer struct {
	mu       sync.Mutex
	puts     []*http.Request
	putBody  []byte
	gets     []*http.Request
	putCodes []int // status per PUT, last repeats
	clock    int64
}

func (f *fakeServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.clock += 2

		switch r.Method {
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			f.puts = append(f.puts, r)
			code := http.StatusCreated
			if len(f.putCodes) > 0 {
				code = f.putCodes[0]
				if len(f.putCodes) > 1 {
					f.putCodes = f.putCodes[1:]
				}
			}
			if code < 300 && len(body) > 0 {
				f.putBody = body
			}
			if len(body) == 0 {
				code = http.StatusNoContent
			}
			w.Header().Set("Lamport-Clock", strconv.FormatInt(f.clock, 10))
			w.WriteHeader(code)

		case http.MethodGet:
			f.gets = append(f.gets, r)
			w.Header().Set("Lamport-Clock", strconv.FormatInt(f.clock, 10))
			if f.putBody == nil {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write(f.putBody) //nolint:errcheck
		}
	}
}

func (f *fakeServer) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

func (f *fakeServer) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.gets)
}

func writeFeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feed.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newUploader(serverURL, feedPath string) *uploader.Uploader {
	u := uploader.New(serverURL, feedPath)
	u.RetryDelay = 10 * time.Millisecond
	return u
}

func TestUploadOnce_Success(t *testing.T) {
	fs := &fakeServer{}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	u := newUploader(srv.URL, writeFeed(t, "id:IDS60901\nname:Adelaide\nair_temp:13.3\n"))
	if err := u.UploadOnce(context.Background()); err != nil {
		t.Fatalf("UploadOnce: %v", err)
	}

	if fs.putCount() != 1 {
		t.Fatalf("puts: got %d, want 1", fs.putCount())
	}
	req := fs.puts[0]
	if req.URL.Path != "/weatherInfo.json" {
		t.Errorf("path: got %q, want /weatherInfo.json", req.URL.Path)
	}
	if got := req.Header.Get("User-Agent"); got != "ATOMClient/1/0" {
		t.Errorf("user agent: got %q", got)
	}
	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("content type: got %q", got)
	}
	if req.Header.Get("Lamport-Clock") == "" {
		t.Error("missing Lamport-Clock header")
	}

	sent, err := observation.Decode(fs.putBody)
	if err != nil {
		t.Fatalf("decode uploaded body: %v", err)
	}
	if sent.ID() != "IDS60901" || sent["air_temp"] != "13.3" {
		t.Errorf("uploaded record: %v", sent)
	}
}

func TestUploadOnce_VerificationFetchesRecordBack(t *testing.T) {
	fs := &fakeServer{}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	u := newUploader(srv.URL, writeFeed(t, "id:IDS60901\nair_temp:13.3\n"))
	if err := u.UploadOnce(context.Background()); err != nil {
		t.Fatalf("UploadOnce: %v", err)
	}

	if fs.getCount() != 1 {
		t.Fatalf("gets: got %d, want 1", fs.getCount())
	}
	if got := fs.gets[0].URL.Query().Get("id"); got != "IDS60901" {
		t.Errorf("verification id param: got %q, want IDS60901", got)
	}
}

func TestUploadOnce_NoVerifySkipsGet(t *testing.T) {
	fs := &fakeServer{}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	u := newUploader(srv.URL, writeFeed(t, "id:IDS60901\n"))
	u.Verify = false
	if err := u.UploadOnce(context.Background()); err != nil {
		t.Fatalf("UploadOnce: %v", err)
	}
	if fs.getCount() != 0 {
		t.Errorf("gets: got %d, want 0", fs.getCount())
	}
}

func TestUploadOnce_RetriesThenSucceeds(t *testing.T) {
	fs := &fakeServer{putCodes: []int{http.StatusInternalServerError, http.StatusCreated}}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	u := newUploader(srv.URL, writeFeed(t, "id:IDS60901\n"))
	if err := u.UploadOnce(context.Background()); err != nil {
		t.Fatalf("UploadOnce: %v", err)
	}
	if fs.putCount() != 2 {
		t.Errorf("puts: got %d, want 2 (one failure, one success)", fs.putCount())
	}
}

func TestUploadOnce_RetriesExhausted(t *testing.T) {
	fs := &fakeServer{putCodes: []int{http.StatusInternalServerError}}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	u := newUploader(srv.URL, writeFeed(t, "id:IDS60901\n"))
	err := u.UploadOnce(context.Background())
	if err == nil {
		t.Fatal("expected error after exhausted retries, got nil")
	}
	if fs.putCount() != 3 {
		t.Errorf("puts: got %d, want 3", fs.putCount())
	}
}

func TestUploadOnce_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // connection refused from here on

	u := newUploader(url, writeFeed(t, "id:IDS60901\n"))
	if err := u.UploadOnce(context.Background()); err == nil {
		t.Fatal("expected transport error, got nil")
	}
}

func TestUploadOnce_EmptyFeedSendsEmptyPut(t *testing.T) {
	fs := &fakeServer{}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	u := newUploader(srv.URL, writeFeed(t, "\n\n"))
	if err := u.UploadOnce(context.Background()); err != nil {
		t.Fatalf("UploadOnce: %v", err)
	}
	if fs.putCount() != 1 {
		t.Fatalf("puts: got %d, want 1", fs.putCount())
	}
	if cl := fs.puts[0].ContentLength; cl != 0 {
		t.Errorf("content length: got %d, want 0", cl)
	}
	// An empty feed must not trigger verification.
	if fs.getCount() != 0 {
		t.Errorf("gets: got %d, want 0", fs.getCount())
	}
}

func TestUploadOnce_MissingIDFailsWithoutRequest(t *testing.T) {
	fs := &fakeServer{}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	u := newUploader(srv.URL, writeFeed(t, "name:Adelaide\n"))
	if err := u.UploadOnce(context.Background()); err == nil {
		t.Fatal("expected error for feed without id, got nil")
	}
	if fs.putCount() != 0 {
		t.Errorf("puts: got %d, want 0", fs.putCount())
	}
}

func TestUploadOnce_ObservesServerClock(t *testing.T) {
	fs := &fakeServer{clock: 100}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	u := newUploader(srv.URL, writeFeed(t, "id:IDS60901\n"))
	u.Verify = false
	if err := u.UploadOnce(context.Background()); err != nil {
		t.Fatalf("UploadOnce: %v", err)
	}
	// The server answered with a clock over 100; ours must have jumped past it.
	if got := u.Clock.Read(); got <= 100 {
		t.Errorf("clock after upload: got %d, want > 100", got)
	}
}

func TestRun_PublishesPeriodically(t *testing.T) {
	fs := &fakeServer{}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	u := newUploader(srv.URL, writeFeed(t, "id:IDS60901\n"))
	u.Verify = false

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- u.Run(ctx, time.Second) }()

	deadline := time.Now().Add(5 * time.Second)
	for fs.putCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
	if fs.putCount() < 2 {
		t.Errorf("puts: got %d, want at least 2", fs.putCount())
	}
}

func TestRun_FeedChangeTriggersImmediateUpload(t *testing.T) {
	fs := &fakeServer{}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	feedPath := writeFeed(t, "id:IDS60901\nair_temp:13.3\n")
	u := newUploader(srv.URL, feedPath)
	u.Verify = false

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go u.Run(ctx, time.Hour) // far interval: only the watcher can trigger more

	deadline := time.Now().Add(5 * time.Second)
	for fs.putCount() < 1 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if fs.putCount() < 1 {
		t.Fatal("initial upload never happened")
	}
	before := fs.putCount()

	if err := os.WriteFile(feedPath, []byte("id:IDS60901\nair_temp:20.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline = time.Now().Add(5 * time.Second)
	for fs.putCount() <= before && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if fs.putCount() <= before {
		t.Error("feed change did not trigger an upload")
	}
}
