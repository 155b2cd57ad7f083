package vapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"voicedash/internal/target"
)

func testRequest(t *testing.T) CallRequest {
	t.Helper()
	req, err := BuildCallRequest("asst_1", "pn_1", []target.CallTarget{{Number: "+15551234567"}}, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return req
}

func TestDispatch_SingleCallResponse(t *testing.T) {
	var gotAuth, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"c1","status":"queued"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "key-123"})
	resp, err := c.Dispatch(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(resp.Calls) != 1 || resp.Calls[0].ID != "c1" {
		t.Fatalf("expected single call c1, got %+v", resp.Calls)
	}
	if gotAuth != "Bearer key-123" {
		t.Fatalf("expected bearer credential forwarded, got %q", gotAuth)
	}
	if gotContentType != "application/json; charset=utf-8" {
		t.Fatalf("unexpected content type %q", gotContentType)
	}
}

func TestDispatch_ListResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"c1"},{"id":"c2"}]`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	resp, err := c.Dispatch(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(resp.Calls) != 2 || resp.Calls[1].ID != "c2" {
		t.Fatalf("expected two calls, got %+v", resp.Calls)
	}
}

func TestDispatch_WrappedListResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"id":"c1"},{"id":"c2"}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	resp, err := c.Dispatch(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(resp.Calls) != 2 {
		t.Fatalf("expected two calls, got %+v", resp.Calls)
	}
}

func TestDispatch_HTTPErrorStructuredMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"assistantId must be a UUID","statusCode":400}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Dispatch(context.Background(), testRequest(t))
	pe, ok := AsError(err)
	if !ok {
		t.Fatalf("expected classified error, got %v", err)
	}
	if pe.Kind != KindHTTP || pe.HTTPStatus != 400 {
		t.Fatalf("expected http_error 400, got %+v", pe)
	}
	if want := "assistantId must be a UUID"; !strings.Contains(pe.Message, want) {
		t.Fatalf("expected structured message %q in %q", want, pe.Message)
	}
}

func TestDispatch_HTTPErrorRawBodyTruncated(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'x'
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write(long)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Dispatch(context.Background(), testRequest(t))
	pe, ok := AsError(err)
	if !ok || pe.Kind != KindHTTP {
		t.Fatalf("expected http_error, got %v", err)
	}
	if len(pe.Message) > 250 {
		t.Fatalf("raw body fallback must be truncated, got %d chars", len(pe.Message))
	}
}

func TestDispatch_ConnectionError(t *testing.T) {
	// closed port: transport failure, must classify as connection_error,
	// not unexpected
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Dispatch(context.Background(), testRequest(t))
	pe, ok := AsError(err)
	if !ok {
		t.Fatalf("expected classified error, got %v", err)
	}
	if pe.Kind != KindConnection {
		t.Fatalf("expected connection_error, got %s (%s)", pe.Kind, pe.Message)
	}
}

func TestDispatch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, DispatchTimeout: 20 * time.Millisecond})
	_, err := c.Dispatch(context.Background(), testRequest(t))
	pe, ok := AsError(err)
	if !ok {
		t.Fatalf("expected classified error, got %v", err)
	}
	if pe.Kind != KindTimeout {
		t.Fatalf("expected timeout, got %s (%s)", pe.Kind, pe.Message)
	}
}

func TestGetCall_Detail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/call/c1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"id":"c1","status":"ended","transcript":"hello","recordingUrl":"https://rec/c1.wav","startedAt":"2026-03-01T09:00:00Z","endedAt":"2026-03-01T09:01:30Z","cost":0.12}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	d, err := c.GetCall(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !d.Terminal() {
		t.Fatalf("status ended must be terminal")
	}
	if !d.HasTranscript() || !d.HasRecording() {
		t.Fatalf("expected transcript and recording, got %+v", d)
	}
	if d.DurationSeconds() != 90 {
		t.Fatalf("expected 90s duration, got %d", d.DurationSeconds())
	}
}

func TestGetCall_ArtifactFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"c1","status":"ended","artifact":{"transcript":"hi","recordingUrl":"https://rec/a.wav"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	d, err := c.GetCall(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if d.TranscriptText() != "hi" || d.Recording() != "https://rec/a.wav" {
		t.Fatalf("artifact fields must back-fill, got %+v", d)
	}
}

func TestGetCall_NonTerminalStatuses(t *testing.T) {
	for _, s := range []string{"queued", "ringing", "in-progress", "forwarding"} {
		d := CallDetail{Status: s}
		if d.Terminal() {
			t.Fatalf("status %q must not be terminal", s)
		}
	}
}

func TestFetchRecording(t *testing.T) {
	audio := []byte{0x52, 0x49, 0x46, 0x46, 0x00, 0x01}
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write(audio)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: "http://unused", APIKey: "key-123"})
	data, err := c.FetchRecording(context.Background(), srv.URL+"/rec.wav")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if string(data) != string(audio) {
		t.Fatalf("recording bytes mismatch")
	}
	if gotAuth != "Bearer key-123" {
		t.Fatalf("recording fetch must be authenticated, got %q", gotAuth)
	}
}

