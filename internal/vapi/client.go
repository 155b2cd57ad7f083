package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL          = "https://api.vapi.ai"
	DefaultDispatchTimeout  = 30 * time.Second
	DefaultRecordingTimeout = 60 * time.Second

	// maxErrorBodyPreview bounds the raw-body fallback in HTTP error messages.
	maxErrorBodyPreview = 200
)

// Config controls the provider client. Zero values get safe defaults.
type Config struct {
	BaseURL string
	APIKey  string

	DispatchTimeout time.Duration
	// RecordingTimeout is longer than the dispatch/poll budget: recording
	// payloads are audio, not JSON.
	RecordingTimeout time.Duration
}

// Client talks to a Vapi-compatible outbound calling API. The only side
// effect of any method is the network call itself; persistence and retries
// belong to the caller, which keeps dispatch idempotent-by-design from the
// client's point of view.
type Client struct {
	baseURL string
	apiKey  string

	httpClient      *http.Client
	recordingClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = DefaultDispatchTimeout
	}
	if cfg.RecordingTimeout <= 0 {
		cfg.RecordingTimeout = DefaultRecordingTimeout
	}
	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:          strings.TrimSpace(cfg.APIKey),
		httpClient:      &http.Client{Timeout: cfg.DispatchTimeout},
		recordingClient: &http.Client{Timeout: cfg.RecordingTimeout},
	}
}

// ProviderCall is the provider's view of one dispatched call.
type ProviderCall struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// DispatchResponse normalizes the provider's success shapes: a single call
// object, a bare list, or an object wrapping a list.
type DispatchResponse struct {
	Calls []ProviderCall
	Raw   json.RawMessage
}

// Dispatch POSTs an encoded call request. Failures come back as a classified
// *Error; success returns the normalized provider response.
func (c *Client) Dispatch(ctx context.Context, req CallRequest) (DispatchResponse, error) {
	if len(req.Body()) == 0 {
		return DispatchResponse{}, &Error{Kind: KindValidation, Message: "empty call request; use BuildCallRequest"}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/call", bytes.NewReader(req.Body()))
	if err != nil {
		return DispatchResponse{}, &Error{Kind: KindUnexpected, Message: fmt.Sprintf("build request: %v", err)}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return DispatchResponse{}, classifyTransport(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return DispatchResponse{}, &Error{Kind: KindUnexpected, Message: fmt.Sprintf("read response: %v", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return DispatchResponse{}, httpError(resp.StatusCode, raw)
	}

	calls, err := parseDispatchBody(raw)
	if err != nil {
		return DispatchResponse{}, &Error{Kind: KindUnexpected, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return DispatchResponse{Calls: calls, Raw: raw}, nil
}

// parseDispatchBody accepts the three shapes the provider is known to return:
// {..call..}, [{..call..}, ...], and {"results": [{..call..}, ...]}.
func parseDispatchBody(raw []byte) ([]ProviderCall, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []ProviderCall
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var wrapped struct {
		ProviderCall
		Results []ProviderCall `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, err
	}
	if len(wrapped.Results) > 0 {
		return wrapped.Results, nil
	}
	if wrapped.ID != "" {
		return []ProviderCall{wrapped.ProviderCall}, nil
	}
	return nil, fmt.Errorf("no call id in provider response")
}

// CallDetail is the provider's status/detail record for one call.
type CallDetail struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	EndedReason  string     `json:"endedReason,omitempty"`
	Transcript   string     `json:"transcript,omitempty"`
	RecordingURL string     `json:"recordingUrl,omitempty"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`
	Cost         float64    `json:"cost,omitempty"`

	Artifact struct {
		Transcript   string `json:"transcript,omitempty"`
		RecordingURL string `json:"recordingUrl,omitempty"`
	} `json:"artifact,omitempty"`
}

// terminalStatuses is the provider's "ended" vocabulary. Anything else is
// treated as still in progress.
var terminalStatuses = map[string]bool{
	"ended":     true,
	"completed": true,
	"failed":    true,
}

func (d CallDetail) Terminal() bool { return terminalStatuses[strings.ToLower(d.Status)] }

func (d CallDetail) TranscriptText() string {
	if d.Transcript != "" {
		return d.Transcript
	}
	return d.Artifact.Transcript
}

func (d CallDetail) Recording() string {
	if d.RecordingURL != "" {
		return d.RecordingURL
	}
	return d.Artifact.RecordingURL
}

func (d CallDetail) HasTranscript() bool { return d.TranscriptText() != "" }
func (d CallDetail) HasRecording() bool  { return d.Recording() != "" }

// DurationSeconds derives call duration from the provider timestamps, 0 if
// either end is missing.
func (d CallDetail) DurationSeconds() int {
	if d.StartedAt == nil || d.EndedAt == nil {
		return 0
	}
	secs := int(d.EndedAt.Sub(*d.StartedAt) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// GetCall fetches the current status/detail of a call. Purely observational;
// polling never mutates remote call state.
func (c *Client) GetCall(ctx context.Context, providerCallID string) (CallDetail, error) {
	if providerCallID == "" {
		return CallDetail{}, &Error{Kind: KindValidation, Message: "provider call id is required"}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/call/"+providerCallID, nil)
	if err != nil {
		return CallDetail{}, &Error{Kind: KindUnexpected, Message: fmt.Sprintf("build request: %v", err)}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return CallDetail{}, classifyTransport(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return CallDetail{}, &Error{Kind: KindUnexpected, Message: fmt.Sprintf("read response: %v", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return CallDetail{}, httpError(resp.StatusCode, raw)
	}

	var detail CallDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return CallDetail{}, &Error{Kind: KindUnexpected, Message: fmt.Sprintf("decode call detail: %v", err)}
	}
	return detail, nil
}

// FetchRecording downloads a call recording from the given URL, authenticated
// the same way as the API. Uses the longer recording timeout. A failure here
// never changes a call's status; callers record it separately.
func (c *Client) FetchRecording(ctx context.Context, recordingURL string) ([]byte, error) {
	if recordingURL == "" {
		return nil, &Error{Kind: KindValidation, Message: "recording url is required"}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, recordingURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindUnexpected, Message: fmt.Sprintf("build request: %v", err)}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.recordingClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyPreview))
		return nil, httpError(resp.StatusCode, raw)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindUnexpected, Message: fmt.Sprintf("read recording: %v", err)}
	}
	return data, nil
}

// httpError builds a KindHTTP error, preferring the provider's structured
// "message" field and falling back to a truncated raw body.
func httpError(status int, raw []byte) *Error {
	msg := fmt.Sprintf("HTTP error: %d", status)

	var body struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && len(body.Message) > 0 {
		var s string
		if json.Unmarshal(body.Message, &s) == nil {
			msg += " - " + s
		} else {
			// provider sometimes returns message as an array of strings
			var list []string
			if json.Unmarshal(body.Message, &list) == nil && len(list) > 0 {
				msg += " - " + strings.Join(list, "; ")
			} else {
				msg += " - " + string(body.Message)
			}
		}
	} else if len(raw) > 0 {
		preview := string(raw)
		if len(preview) > maxErrorBodyPreview {
			preview = preview[:maxErrorBodyPreview]
		}
		msg += " - " + preview
	}
	return &Error{Kind: KindHTTP, Message: msg, HTTPStatus: status}
}
