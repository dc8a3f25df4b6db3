package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_station/internal/history"
	"github.com/friendsincode/grimnir_station/internal/logbuffer"
	"github.com/friendsincode/grimnir_station/internal/scheduler"
	"github.com/friendsincode/grimnir_station/internal/station"
)

type stubHistory struct {
	entries []history.Entry
}

func (s *stubHistory) Recent(n int) []history.Entry {
	if len(s.entries) <= n {
		return s.entries
	}
	return s.entries[len(s.entries)-n:]
}

func newTestServer(state *scheduler.RunState, hist HistoryReader) *Server {
	if state == nil {
		state = scheduler.NewRunState()
	}
	if hist == nil {
		hist = &stubHistory{}
	}
	return New("127.0.0.1:0", state, hist, logbuffer.New(100), zerolog.Nop())
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(nil, nil)

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestNowPlayingEmpty(t *testing.T) {
	srv := newTestServer(nil, nil)

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/nowplaying", nil))

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	hist := &stubHistory{entries: []history.Entry{
		{Timestamp: time.Now(), RelPath: "music/a.mp3", Category: station.CategoryMusic, Meta: station.Metadata{Title: "A"}},
		{Timestamp: time.Now(), RelPath: "ad/b.mp3", Category: station.CategoryAd, Meta: station.Metadata{Title: "B"}},
	}}
	srv := newTestServer(nil, hist)

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/history?limit=10", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body struct {
		Entries []history.Entry `json:"entries"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Entries) != 2 {
		t.Errorf("entries = %d, want 2", len(body.Entries))
	}
}

func TestHistoryInvalidLimit(t *testing.T) {
	srv := newTestServer(nil, nil)

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/history?limit=zero", nil))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestStopImmediate(t *testing.T) {
	state := scheduler.NewRunState()
	srv := newTestServer(state, nil)

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/stop", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestStopAfterCategory(t *testing.T) {
	state := scheduler.NewRunState()
	srv := newTestServer(state, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stop", strings.NewReader(`{"after":"music"}`))
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "stopping_after" || body["after"] != "music" {
		t.Errorf("body = %v", body)
	}
}

func TestStopAfterInvalidCategory(t *testing.T) {
	srv := newTestServer(nil, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stop", strings.NewReader(`{"after":"weather"}`))
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestLogsEndpoint(t *testing.T) {
	buf := logbuffer.New(100)
	buf.Add(logbuffer.Entry{Timestamp: time.Now(), Level: "info", Message: "playback loop starting"})
	state := scheduler.NewRunState()
	srv := New("127.0.0.1:0", state, &stubHistory{}, buf, zerolog.Nop())

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "playback loop starting") {
		t.Errorf("body missing log entry: %s", rr.Body.String())
	}
}
