package httpsource

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		if rng := r.Header.Get("Range"); rng != "" {
			w.WriteHeader(http.StatusPartialContent)
			io.WriteString(w, body[5:])
			return
		}
		w.Write([]byte(body))
	}))
}

func TestOpenReadsBody(t *testing.T) {
	srv := newTestServer(t, "hello world")
	defer srv.Close()

	s := New(srv.URL, nil)
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if s.Length() != int64(len("hello world")) {
		t.Errorf("Length() = %d, want %d", s.Length(), len("hello world"))
	}

	buf := make([]byte, 32)
	n, err := s.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(buf[:n]) != "hello world" {
		t.Errorf("Read = %q, want %q", buf[:n], "hello world")
	}
}

func TestSeekToOffsetUsesRangeRequest(t *testing.T) {
	srv := newTestServer(t, "hello world")
	defer srv.Close()

	s := New(srv.URL, nil)
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if !s.SupportsSeeking() {
		t.Fatal("expected SupportsSeeking to be true when server advertises Accept-Ranges")
	}
	if err := s.SeekToOffset(5); err != nil {
		t.Fatalf("SeekToOffset failed: %v", err)
	}

	buf := make([]byte, 32)
	n, err := s.Read(buf)
	if err != nil {
		t.Fatalf("Read after seek failed: %v", err)
	}
	if string(buf[:n]) != " world" {
		t.Errorf("Read after seek = %q, want %q", buf[:n], " world")
	}
}

func TestOpenRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := New(srv.URL, nil)
	if err := s.Open(); err == nil {
		t.Error("expected error for non-200 response")
	}
}
