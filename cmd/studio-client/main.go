// Command studio-client exercises a running studio server from the command
// line: health checks, speech generation with presets, and downloading the
// resulting WAV file.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"

	"tts-studio/internal/core"
)

// Flag names.
const (
	flagServer    = "server"
	flagText      = "text"
	flagOutput    = "output"
	flagPreset    = "preset"
	flagReference = "reference"
	flagSeed      = "seed"
	flagHealth    = "health"
)

// Flag descriptions.
const (
	flagServerDesc    = "Base URL of the studio server"
	flagTextDesc      = "Text to convert to speech"
	flagOutputDesc    = "Output file path (.wav)"
	flagPresetDesc    = "Emotion preset name (empty keeps the defaults)"
	flagReferenceDesc = "Reference audio file for voice cloning"
	flagSeedDesc      = "Generation seed (0 picks a random seed)"
	flagHealthDesc    = "Check server health and exit"
)

// Defaults.
const (
	defaultServerURL  = "http://127.0.0.1:7860"
	defaultOutputFile = "output.wav"
	requestTimeout    = 30 * time.Second
	pollInterval      = 500 * time.Millisecond
	jobWaitTimeout    = 10 * time.Minute
)

// Static errors.
var (
	ErrTextRequired = errors.New("--text must be provided")
	ErrJobFailed    = errors.New("generation job failed")
	ErrJobTimeout   = errors.New("timed out waiting for the job to finish")
)

// apiEnvelope mirrors the server's uniform response shape.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    int             `json:"code"`
}

// ttsRequest is the generation request payload.
type ttsRequest struct {
	Text        string `json:"text"`
	Preset      string `json:"preset,omitempty"`
	Seed        int    `json:"seed"`
	ReferenceID string `json:"reference_id,omitempty"`
}

// uploadResult is the upload response payload.
type uploadResult struct {
	ID        string `json:"id"`
	SizeBytes int64  `json:"size_bytes"`
}

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	server    string
	text      string
	output    string
	preset    string
	reference string
	seed      int
	health    bool
}

func main() {
	err := run()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	flags := parseFlags()
	client := &http.Client{Timeout: requestTimeout}

	if flags.health {
		return checkHealth(client, flags.server)
	}

	if flags.text == "" {
		flag.Usage()

		return ErrTextRequired
	}

	referenceID := ""

	if flags.reference != "" {
		var err error

		referenceID, err = uploadReference(client, flags.server, flags.reference)
		if err != nil {
			return err
		}

		fmt.Printf("Uploaded reference audio as %s\n", referenceID)
	}

	job, err := submitJob(client, flags, referenceID)
	if err != nil {
		return err
	}

	fmt.Printf("Job %s accepted\n", job.ID)

	job, err = waitForJob(client, flags.server, job.ID)
	if err != nil {
		return err
	}

	output := flags.output
	if output == "" {
		output = defaultOutputFile
	}

	err = downloadAudio(client, flags.server, job.Result.FileName, output)
	if err != nil {
		return err
	}

	fmt.Printf("Generated: %s (seed %d, %.2fs of audio)\n",
		output, job.Result.Seed, job.Result.AudioSeconds)

	return nil
}

func parseFlags() appFlags {
	var flags appFlags

	flag.StringVar(&flags.server, flagServer, defaultServerURL, flagServerDesc)
	flag.StringVar(&flags.text, flagText, "", flagTextDesc)
	flag.StringVar(&flags.output, flagOutput, "", flagOutputDesc)
	flag.StringVar(&flags.preset, flagPreset, "", flagPresetDesc)
	flag.StringVar(&flags.reference, flagReference, "", flagReferenceDesc)
	flag.IntVar(&flags.seed, flagSeed, 0, flagSeedDesc)
	flag.BoolVar(&flags.health, flagHealth, false, flagHealthDesc)
	flag.Parse()

	return flags
}

func checkHealth(client *http.Client, serverURL string) error {
	resp, err := client.Get(serverURL + "/healthz")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	defer closeBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server reports unhealthy: %w",
			errors.New(http.StatusText(resp.StatusCode)))
	}

	fmt.Println("Studio server is healthy")

	return nil
}

func uploadReference(client *http.Client, serverURL, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open reference audio: %w", err)
	}

	defer closeBody(file)

	var body bytes.Buffer

	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}

	_, err = io.Copy(part, file)
	if err != nil {
		return "", fmt.Errorf("failed to read reference audio: %w", err)
	}

	err = writer.Close()
	if err != nil {
		return "", fmt.Errorf("failed to finish upload form: %w", err)
	}

	resp, err := client.Post(serverURL+"/api/uploads", writer.FormDataContentType(), &body)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}

	defer closeBody(resp.Body)

	var result uploadResult

	err = decodeEnvelope(resp, &result)
	if err != nil {
		return "", err
	}

	return result.ID, nil
}

func submitJob(client *http.Client, flags appFlags, referenceID string) (*core.Job, error) {
	payload, err := sonic.Marshal(ttsRequest{
		Text:        flags.text,
		Preset:      flags.preset,
		Seed:        flags.seed,
		ReferenceID: referenceID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := client.Post(
		flags.server+"/api/tts",
		"application/json",
		bytes.NewReader(payload),
	)
	if err != nil {
		return nil, fmt.Errorf("generation request failed: %w", err)
	}

	defer closeBody(resp.Body)

	var job core.Job

	err = decodeEnvelope(resp, &job)
	if err != nil {
		return nil, err
	}

	return &job, nil
}

func waitForJob(client *http.Client, serverURL, jobID string) (*core.Job, error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobWaitTimeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ErrJobTimeout
		case <-ticker.C:
			job, err := fetchJob(client, serverURL, jobID)
			if err != nil {
				return nil, err
			}

			switch job.State {
			case core.StateDone:
				return job, nil
			case core.StateFailed:
				return nil, fmt.Errorf("%w: %s", ErrJobFailed, job.Error)
			case core.StateQueued, core.StateRunning:
			}
		}
	}
}

func fetchJob(client *http.Client, serverURL, jobID string) (*core.Job, error) {
	resp, err := client.Get(serverURL + "/api/jobs/" + jobID)
	if err != nil {
		return nil, fmt.Errorf("job status request failed: %w", err)
	}

	defer closeBody(resp.Body)

	var job core.Job

	err = decodeEnvelope(resp, &job)
	if err != nil {
		return nil, err
	}

	return &job, nil
}

func downloadAudio(client *http.Client, serverURL, fileName, output string) error {
	resp, err := client.Get(serverURL + "/audio/" + fileName)
	if err != nil {
		return fmt.Errorf("audio download failed: %w", err)
	}

	defer closeBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("audio download failed: %w",
			errors.New(http.StatusText(resp.StatusCode)))
	}

	out, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	defer closeBody(out)

	_, err = io.Copy(out, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	return nil
}

// decodeEnvelope reads an API response and unmarshals its data payload.
func decodeEnvelope(resp *http.Response, target any) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var envelope apiEnvelope

	err = sonic.Unmarshal(raw, &envelope)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if !envelope.Success {
		return fmt.Errorf("server error (%d): %w",
			envelope.Code, errors.New(envelope.Message))
	}

	err = sonic.Unmarshal(envelope.Data, target)
	if err != nil {
		return fmt.Errorf("failed to decode response payload: %w", err)
	}

	return nil
}

func closeBody(closer io.Closer) {
	err := closer.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: close failed: %v\n", err)
	}
}
