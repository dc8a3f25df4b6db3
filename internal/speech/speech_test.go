package speech

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req speechRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Input != "hello listeners" || req.Voice != "nova" {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write([]byte("fake-mp3-bytes"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	audio, err := c.Synthesize(context.Background(), "hello listeners", "nova")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "fake-mp3-bytes" {
		t.Errorf("got %q", audio)
	}
}

func TestSynthesizeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad voice", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.Synthesize(context.Background(), "text", "bogus"); err == nil {
		t.Fatal("expected error on 400")
	}
}

func TestSynthesizeEmptyAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.Synthesize(context.Background(), "text", "nova"); err == nil {
		t.Fatal("expected error on empty body")
	}
}

type fakeSynth struct {
	audio []byte
	err   error
	voice string
}

func (f *fakeSynth) Synthesize(_ context.Context, _ string, voice string) ([]byte, error) {
	f.voice = voice
	return f.audio, f.err
}

func TestClipWriterWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "segway")
	synth := &fakeSynth{audio: []byte("clip-bytes")}
	w := NewClipWriter(synth, dir, "nova", zerolog.Nop())

	path, err := w.Write(context.Background(), "and now, something else")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if synth.voice != "nova" {
		t.Errorf("voice = %q", synth.voice)
	}

	base := filepath.Base(path)
	if !strings.HasPrefix(base, "segway_") || !strings.HasSuffix(base, ".mp3") {
		t.Errorf("unexpected clip name %q", base)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read clip: %v", err)
	}
	if string(data) != "clip-bytes" {
		t.Errorf("clip content %q", data)
	}
}

func TestClipWriterSynthesisFailure(t *testing.T) {
	w := NewClipWriter(&fakeSynth{err: errors.New("offline")}, t.TempDir(), "nova", zerolog.Nop())
	if _, err := w.Write(context.Background(), "text"); err == nil {
		t.Fatal("expected synthesis error")
	}
}

func TestClipWriterUniqueNames(t *testing.T) {
	dir := t.TempDir()
	w := NewClipWriter(&fakeSynth{audio: []byte("x")}, dir, "", zerolog.Nop())

	a, err := w.Write(context.Background(), "one")
	if err != nil {
		t.Fatal(err)
	}
	b, err := w.Write(context.Background(), "two")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Errorf("clip paths collide: %s", a)
	}
}
