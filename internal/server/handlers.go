package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tts-studio/internal/core"
	"tts-studio/internal/presets"
	"tts-studio/internal/queue"
	"tts-studio/internal/studioutil"
	"tts-studio/internal/text"
)

const (
	defaultHistoryLimit = 50
	healthTimeout       = 5 * time.Second
	uploadFormField     = "file"
)

// allowedUploadExtensions lists the reference-audio formats accepted from
// the UI.
var allowedUploadExtensions = map[string]struct{}{
	".wav":  {},
	".mp3":  {},
	".flac": {},
	".ogg":  {},
	".m4a":  {},
}

// Static errors.
var (
	ErrUploadTooLarge     = errors.New("upload exceeds size limit")
	ErrUploadBadExtension = errors.New("unsupported audio format")
	ErrUnknownUpload      = errors.New("unknown upload id")
	ErrInputAudioRequired = errors.New("input audio is required for voice conversion")
)

// ttsRequestBody is the POST /api/tts payload. Slider fields are pointers
// so omitted values fall back to the documented defaults.
type ttsRequestBody struct {
	Text         string   `json:"text"`
	Preset       string   `json:"preset"`
	Exaggeration *float64 `json:"exaggeration"`
	CFGWeight    *float64 `json:"cfg_weight"`
	Temperature  *float64 `json:"temperature"`
	Seed         int      `json:"seed"`
	ReferenceID  string   `json:"reference_id"`
}

// vcRequestBody is the POST /api/vc payload.
type vcRequestBody struct {
	InputID       string `json:"input_id"`
	TargetVoiceID string `json:"target_voice_id"`
}

// uploadResponse reports a stored reference-audio upload.
type uploadResponse struct {
	ID        string `json:"id"`
	SizeBytes int64  `json:"size_bytes"`
}

// presetsResponse is the GET /api/presets payload.
type presetsResponse struct {
	Presets  []presets.Preset  `json:"presets"`
	Defaults core.SpeechParams `json:"defaults"`
}

// handleSubmitTTS validates a TTS request, applies the preset, resolves the
// seed, and enqueues the job.
func (s *Server) handleSubmitTTS(c *gin.Context) {
	var body ttsRequestBody

	err := c.ShouldBindJSON(&body)
	if err != nil {
		respondError(c, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))

		return
	}

	params := presets.Defaults()
	if body.Exaggeration != nil {
		params.Exaggeration = *body.Exaggeration
	}

	if body.CFGWeight != nil {
		params.CFGWeight = *body.CFGWeight
	}

	if body.Temperature != nil {
		params.Temperature = *body.Temperature
	}

	params.Seed = body.Seed

	params, err = presets.Apply(body.Preset, params)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())

		return
	}

	err = presets.Validate(params)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())

		return
	}

	normalized := s.normalizer.Normalize(body.Text)

	err = s.normalizer.Validate(normalized, s.cfg.Limits.MaxTextLength)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())

		return
	}

	referencePath := ""
	if body.ReferenceID != "" {
		referencePath, err = s.resolveUpload(body.ReferenceID)
		if err != nil {
			respondError(c, http.StatusBadRequest, err.Error())

			return
		}
	}

	params.Seed = presets.ResolveSeed(params.Seed)

	spec := core.TTSSpec{
		Text:          normalized,
		ReferencePath: referencePath,
		Params:        params,
	}

	job, err := s.queue.SubmitTTS(c.Request.Context(), spec)
	if err != nil {
		s.respondSubmitError(c, err)

		return
	}

	respondSuccess(c, http.StatusAccepted, job, "job accepted")
}

// handleSubmitVC validates a voice-conversion request and enqueues the job.
func (s *Server) handleSubmitVC(c *gin.Context) {
	var body vcRequestBody

	err := c.ShouldBindJSON(&body)
	if err != nil {
		respondError(c, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))

		return
	}

	if body.InputID == "" {
		respondError(c, http.StatusBadRequest, ErrInputAudioRequired.Error())

		return
	}

	inputPath, err := s.resolveUpload(body.InputID)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())

		return
	}

	targetPath := ""
	if body.TargetVoiceID != "" {
		targetPath, err = s.resolveUpload(body.TargetVoiceID)
		if err != nil {
			respondError(c, http.StatusBadRequest, err.Error())

			return
		}
	}

	spec := core.VCSpec{
		InputPath:       inputPath,
		TargetVoicePath: targetPath,
	}

	job, err := s.queue.SubmitVC(c.Request.Context(), spec)
	if err != nil {
		s.respondSubmitError(c, err)

		return
	}

	respondSuccess(c, http.StatusAccepted, job, "job accepted")
}

// handleUpload stores a reference-audio file under a fresh UUID name.
func (s *Server) handleUpload(c *gin.Context) {
	file, err := c.FormFile(uploadFormField)
	if err != nil {
		respondError(c, http.StatusBadRequest, fmt.Sprintf("missing upload file: %v", err))

		return
	}

	if file.Size > s.cfg.Limits.MaxUploadBytes {
		respondError(c, http.StatusRequestEntityTooLarge, ErrUploadTooLarge.Error())

		return
	}

	ext := strings.ToLower(filepath.Ext(studioutil.SanitizeFileName(file.Filename)))
	if _, ok := allowedUploadExtensions[ext]; !ok {
		respondError(c, http.StatusBadRequest,
			fmt.Sprintf("%s: %q", ErrUploadBadExtension.Error(), ext))

		return
	}

	uploadID := uuid.NewString() + ext
	path := filepath.Join(s.cfg.Paths.UploadsDir, uploadID)

	err = c.SaveUploadedFile(file, path)
	if err != nil {
		respondError(c, http.StatusInternalServerError,
			fmt.Sprintf("failed to store upload: %v", err))

		return
	}

	s.log.Info("Stored reference upload %s (%d bytes)", uploadID, file.Size)

	respondSuccess(c, http.StatusCreated, uploadResponse{
		ID:        uploadID,
		SizeBytes: file.Size,
	}, "upload stored")
}

// handleJobStatus reports a job snapshot.
func (s *Server) handleJobStatus(c *gin.Context) {
	job, ok := s.queue.Lookup(c.Param("id"))
	if !ok {
		respondError(c, http.StatusNotFound, "unknown job id")

		return
	}

	respondSuccess(c, http.StatusOK, job, "")
}

// handlePresets returns the preset table and the slider defaults.
func (s *Server) handlePresets(c *gin.Context) {
	respondSuccess(c, http.StatusOK, presetsResponse{
		Presets:  presets.All(),
		Defaults: presets.Defaults(),
	}, "")
}

// handleSamples returns the quick-test sample texts.
func (s *Server) handleSamples(c *gin.Context) {
	respondSuccess(c, http.StatusOK, text.SampleTexts(), "")
}

// handleHistoryList returns recent generations, most recent first.
func (s *Server) handleHistoryList(c *gin.Context) {
	limit := defaultHistoryLimit

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			respondError(c, http.StatusBadRequest, "limit must be a non-negative integer")

			return
		}

		limit = parsed
	}

	records, err := s.history.List(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())

		return
	}

	respondSuccess(c, http.StatusOK, records, "")
}

// handleHistoryClear deletes every history file and index entry.
func (s *Server) handleHistoryClear(c *gin.Context) {
	removed, err := s.history.Clear(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())

		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"removed": removed}, "history cleared")
}

// handleAudioDownload serves one history WAV file.
func (s *Server) handleAudioDownload(c *gin.Context) {
	path, err := s.history.FilePath(c.Param("name"))
	if err != nil {
		respondError(c, http.StatusNotFound, err.Error())

		return
	}

	c.File(path)
}

// handleSystemStatus returns the diagnostics snapshot.
func (s *Server) handleSystemStatus(c *gin.Context) {
	respondSuccess(c, http.StatusOK, s.reporter.Snapshot(c.Request.Context()), "")
}

// handleHealth reports whether the inference engine is reachable.
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	err := s.engine.Health(ctx)
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, err.Error())

		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"status": "healthy"}, "")
}

// respondSubmitError maps queue admission failures to HTTP statuses.
func (s *Server) respondSubmitError(c *gin.Context, err error) {
	if errors.Is(err, queue.ErrQueueFull) {
		respondError(c, http.StatusTooManyRequests, err.Error())

		return
	}

	respondError(c, http.StatusInternalServerError, err.Error())
}

// resolveUpload maps an upload id back to its stored path. Ids carrying
// path separators are rejected outright.
func (s *Server) resolveUpload(id string) (string, error) {
	if id != filepath.Base(id) {
		return "", fmt.Errorf("%w: %q", ErrUnknownUpload, id)
	}

	path := filepath.Join(s.cfg.Paths.UploadsDir, id)

	_, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownUpload, id)
	}

	return path, nil
}
