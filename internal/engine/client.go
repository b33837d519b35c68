// Package engine provides the HTTP client for the external inference
// engine. The engine owns all synthesis and voice conversion; this package
// only forwards requests and surfaces the engine's errors unchanged.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"tts-studio/internal/core"
)

// API endpoints and paths.
const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiConvertVoice   = "/v1/convert/voice"
	apiHealth         = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeWAV    = "audio/wav"
)

// Error messages.
const (
	errFmtUnexpectedContentType = "unexpected content type: expected audio/wav, got %s"
	errFmtServiceErrorWithCode  = "engine error (%s): %s (code: %s)"
	errFmtServiceNonOKStatus    = "engine returned non-OK status: %s, body: %s"
)

// Static errors.
var (
	ErrTextEmpty      = errors.New("text cannot be empty")
	ErrInputPathEmpty = errors.New("input audio path cannot be empty")
	ErrEmptyAudio     = errors.New("received empty audio data")
)

// Client is an HTTP client for the inference engine. It implements
// core.SpeechEngine.
type Client struct {
	httpClient *http.Client
	baseURL    string
	device     string
}

// ttsRequest is the JSON payload for speech generation. The three numeric
// controls are forwarded unmodified from the caller.
type ttsRequest struct {
	Text            string  `json:"text"`
	AudioPromptPath string  `json:"audio_prompt_path,omitempty"`
	Exaggeration    float64 `json:"exaggeration"`
	CFGWeight       float64 `json:"cfg_weight"`
	Temperature     float64 `json:"temperature"`
	Seed            int     `json:"seed"`
	Device          string  `json:"device,omitempty"`
}

// vcRequest is the JSON payload for voice conversion.
type vcRequest struct {
	InputAudioPath  string `json:"input_audio_path"`
	TargetVoicePath string `json:"target_voice_path,omitempty"`
	Device          string `json:"device,omitempty"`
}

// errorResponse is the structured error payload the engine returns on
// failure. It provides actionable diagnostics when requests fail.
type errorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewClient creates and configures an HTTP client for the inference engine.
// The baseURL should include the protocol and port (e.g.
// "http://localhost:8000"). The timeout applies to all requests; device is
// the compute hint forwarded with every request.
func NewClient(baseURL string, timeout time.Duration, device string) *Client {
	return &Client{
		baseURL: baseURL,
		device:  device,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GenerateSpeech sends a TTS generation request and returns the raw WAV
// bytes. Input is validated at the boundary; error payloads from the engine
// are parsed and preserved.
func (c *Client) GenerateSpeech(ctx context.Context, spec core.TTSSpec) ([]byte, error) {
	if spec.Text == "" {
		return nil, ErrTextEmpty
	}

	req := ttsRequest{
		Text:            spec.Text,
		AudioPromptPath: spec.ReferencePath,
		Exaggeration:    spec.Params.Exaggeration,
		CFGWeight:       spec.Params.CFGWeight,
		Temperature:     spec.Params.Temperature,
		Seed:            spec.Params.Seed,
		Device:          c.device,
	}

	return c.postForAudio(ctx, apiGenerateSpeech, req)
}

// ConvertVoice sends a voice-conversion request and returns the raw WAV
// bytes.
func (c *Client) ConvertVoice(ctx context.Context, spec core.VCSpec) ([]byte, error) {
	if spec.InputPath == "" {
		return nil, ErrInputPathEmpty
	}

	req := vcRequest{
		InputAudioPath:  spec.InputPath,
		TargetVoicePath: spec.TargetVoicePath,
		Device:          c.device,
	}

	return c.postForAudio(ctx, apiConvertVoice, req)
}

// Health verifies that the inference engine is running and operational.
// Callers should health-check before large workloads to fail fast with
// clear diagnostics.
func (c *Client) Health(ctx context.Context) error {
	url := c.baseURL + apiHealth

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed for engine at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

// postForAudio marshals payload, posts it to path, and validates that the
// response is non-empty audio/wav data.
func (c *Client) postForAudio(ctx context.Context, path string, payload any) ([]byte, error) {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + path

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		url,
		bytes.NewBuffer(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeWAV)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to send request to engine at %s: %w",
			c.baseURL,
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if contentType != contentTypeWAV {
		return nil, fmt.Errorf(errFmtUnexpectedContentType, contentType)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrEmptyAudio
	}

	return audioData, nil
}

// parseErrorResponse attempts to decode a structured JSON error from the
// engine. If structured parsing fails, it falls back to the raw response
// body so diagnostic information is preserved.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errorResp errorResponse

	err := json.NewDecoder(resp.Body).Decode(&errorResp)
	if err == nil {
		return fmt.Errorf(errFmtServiceErrorWithCode,
			resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	body, _ := io.ReadAll(resp.Body)

	return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, string(body))
}
