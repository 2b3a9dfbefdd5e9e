package server_test

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

// The publisher and query client speak to the server through net/http, so the
// hand-written response framing must satisfy a standard HTTP client.

func TestNetHTTPClientPutAndGet(t *testing.T) {
	ts := startServer(t, nil)
	base := "http://" + ts.addr

	req, err := http.NewRequest(http.MethodPut, base+"/weatherInfo.json",
		strings.NewReader(`{"id":"IDS60901","air_temp":13.3}`))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Lamport-Clock", "0")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT via net/http: %v", err)
	}
	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("PUT status: got %d, want 201", resp.StatusCode)
	}
	if resp.Header.Get("Lamport-Clock") == "" {
		t.Error("response missing Lamport-Clock header")
	}
	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("content type: got %q", got)
	}

	getResp, err := http.Get(base + "/weatherInfo.json?id=IDS60901")
	if err != nil {
		t.Fatalf("GET via net/http: %v", err)
	}
	defer getResp.Body.Close()

	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("GET status: got %d, want 200", getResp.StatusCode)
	}
	body, err := io.ReadAll(getResp.Body)
	if err != nil {
		t.Fatalf("read GET body: %v", err)
	}
	if !strings.Contains(string(body), "IDS60901") {
		t.Errorf("GET body: %s", body)
	}
}

func TestNetHTTPClientEmptyPut(t *testing.T) {
	ts := startServer(t, nil)

	req, err := http.NewRequest(http.MethodPut, "http://"+ts.addr+"/weatherInfo.json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("empty PUT via net/http: %v", err)
	}
	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status: got %d, want 204", resp.StatusCode)
	}
}
