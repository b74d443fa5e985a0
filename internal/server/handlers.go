package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/tackung/re-say/internal/assessment"
	"github.com/tackung/re-say/internal/observe"
	"github.com/tackung/re-say/pkg/audio"
	"github.com/tackung/re-say/pkg/provider/assess"
	"github.com/tackung/re-say/pkg/provider/synth"
)

// successEnvelope wraps a completed assessment.
type successEnvelope struct {
	Status string             `json:"status"`
	Result *assessment.Result `json:"result"`
}

// errorEnvelope is the uniform JSON error body.
type errorEnvelope struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// synthesizeRequest is the POST /api/tts body.
type synthesizeRequest struct {
	Text string `json:"text"`
}

// handleAssess accepts a multipart form with an "audio" file and a
// "referenceText" field, spools the upload to disk, and runs the full
// assessment pipeline on it.
func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := observe.Logger(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Limits.MaxUploadBytes+4096)

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing audio file in form field \"audio\"")
		return
	}
	defer file.Close()

	referenceText := r.FormValue("referenceText")

	// Spool to disk the way the upload arrived, then read it back for
	// decoding. The file never outlives the request.
	path, cleanup, err := s.spooler.Spool(file, s.cfg.Limits.MaxUploadBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("upload rejected: limit is %d bytes", s.cfg.Limits.MaxUploadBytes))
		return
	}
	defer cleanup()

	data, err := os.ReadFile(path)
	if err != nil {
		log.Error("failed to read spooled upload", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to read uploaded audio")
		return
	}

	captured := audio.CapturedAudio{Data: data, MIME: header.Header.Get("Content-Type")}
	result, err := s.orchestrator.Assess(ctx, captured, referenceText)
	if err != nil {
		status, msg := assessErrorStatus(err)
		if status == http.StatusInternalServerError {
			log.Error("assessment failed", "err", err)
		} else {
			log.Info("assessment rejected", "status", status, "err", err)
		}
		writeError(w, status, msg)
		return
	}

	log.Info("assessment completed",
		"reference_len", len(referenceText),
		"audio_seconds", result.AudioSeconds,
		"overall", result.Scores.Overall,
		"passed", result.Passed,
	)
	writeJSON(w, http.StatusOK, successEnvelope{Status: "success", Result: result})
}

// handleSynthesize accepts {"text": ...} and streams back the synthesized
// reference pronunciation as MP3 bytes.
func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := observe.Logger(ctx)

	var req synthesizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be JSON with a \"text\" field")
		return
	}
	if max := s.cfg.Limits.MaxSynthesisChars; max > 0 && utf8.RuneCountInString(req.Text) > max {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("text exceeds the %d character limit", max))
		return
	}

	start := time.Now()
	mp3, err := s.synthesizer.Synthesize(ctx, req.Text)
	s.metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		status, msg := synthesizeErrorStatus(err)
		if status == http.StatusBadGateway {
			s.metrics.RecordProviderError(ctx, "synthesize")
			s.metrics.RecordProviderRequest(ctx, "synthesize", "error")
		}
		log.Warn("synthesis failed", "status", status, "err", err)
		writeError(w, status, msg)
		return
	}
	s.metrics.RecordProviderRequest(ctx, "synthesize", "ok")

	w.Header().Set("Content-Type", synth.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(mp3)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(mp3)
}

// assessErrorStatus maps pipeline errors onto HTTP status codes:
// user-correctable input problems are 400, provider failures are 502, and
// everything else is 500.
func assessErrorStatus(err error) (int, string) {
	var decodeErr *audio.DecodeError
	var recognitionErr *assess.RecognitionFailedError
	var httpErr *assess.HTTPError

	switch {
	case errors.Is(err, assessment.ErrMissingReference):
		return http.StatusBadRequest, "referenceText is required"
	case errors.Is(err, audio.ErrSilentAudio):
		return http.StatusBadRequest, "no audible speech detected in the recording"
	case errors.As(err, &decodeErr):
		return http.StatusBadRequest, "could not decode the uploaded audio: " + decodeErr.Detail
	case errors.As(err, &recognitionErr):
		return http.StatusBadGateway, "speech recognition failed: " + recognitionErr.Status
	case errors.Is(err, assess.ErrNoResult):
		return http.StatusBadGateway, "the provider returned no recognition result"
	case errors.As(err, &httpErr):
		return http.StatusBadGateway, "assessment provider error"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// synthesizeErrorStatus maps synthesis errors onto HTTP status codes.
func synthesizeErrorStatus(err error) (int, string) {
	var httpErr *synth.HTTPError
	switch {
	case errors.Is(err, synth.ErrEmptyText):
		return http.StatusBadRequest, "text is required"
	case errors.As(err, &httpErr):
		return http.StatusBadGateway, "synthesis provider error"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the uniform JSON error envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorEnvelope{Status: "error", Error: msg})
}
