package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/tackung/re-say/internal/assessment"
	"github.com/tackung/re-say/internal/config"
	"github.com/tackung/re-say/internal/health"
	"github.com/tackung/re-say/internal/observe"
	"github.com/tackung/re-say/pkg/provider/assess"
	"github.com/tackung/re-say/pkg/provider/synth"
)

type stubAssessProvider struct {
	result *assess.Result
	err    error
}

func (s *stubAssessProvider) Assess(context.Context, []byte, string) (*assess.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubSynthProvider struct {
	audio []byte
	err   error
}

func (s *stubSynthProvider) Synthesize(_ context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, synth.ErrEmptyText
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.audio, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{ListenAddr: ":0", LogLevel: config.LogInfo},
		Speech: config.SpeechConfig{Key: "k", Region: "westus", Language: "en-US"},
		Limits: config.LimitsConfig{
			MaxUploadBytes:    config.DefaultMaxUploadBytes,
			MaxSynthesisChars: config.DefaultMaxSynthesisChars,
		},
		Storage: config.StorageConfig{TempDir: t.TempDir()},
	}
}

func newTestServer(t *testing.T, ap assess.Provider, sp synth.Provider) *Server {
	t.Helper()
	m := observe.DefaultMetrics()
	orch := assessment.New(ap, assessment.WithMetrics(m))
	return New(testConfig(t), orch, sp, m,
		health.Checker{Name: "always-ok", Check: func(context.Context) error { return nil }})
}

// speechWAV builds a mono 16 kHz WAV with an audible signal.
func speechWAV(samples int) []byte {
	dataLen := samples * 2
	buf := make([]byte, 44+dataLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], 1)
	binary.LittleEndian.PutUint32(buf[24:28], 16000)
	binary.LittleEndian.PutUint32(buf[28:32], 32000)
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(int16(3000+i%1000)))
	}
	return buf
}

// assessRequest builds a multipart POST /api/assess request.
func assessRequest(t *testing.T, audioData []byte, referenceText string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if audioData != nil {
		fw, err := mw.CreateFormFile("audio", "recording.wav")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := fw.Write(audioData); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.WriteField("referenceText", referenceText); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/assess", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env errorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if env.Status != "error" {
		t.Errorf("error envelope status = %q", env.Status)
	}
	return env.Error
}

func TestAssessEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubAssessProvider{result: &assess.Result{
		RecognizedText: "good morning",
		Scores:         assess.Scores{Accuracy: 90, Overall: 88},
		Words: []assess.Word{
			{Word: "good", Accuracy: 90, ErrorType: assess.ErrorTypeNone},
			{Word: "morning", Accuracy: 86, ErrorType: assess.ErrorTypeNone},
		},
	}}, &stubSynthProvider{})

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, assessRequest(t, speechWAV(16000), "Good morning."))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var env successEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if env.Status != "success" {
		t.Errorf("status = %q", env.Status)
	}
	if env.Result == nil || env.Result.RecognizedText != "good morning" {
		t.Fatalf("result = %+v", env.Result)
	}
	if !env.Result.Passed {
		t.Error("overall 88 should pass")
	}
	if len(env.Result.Sentence) != 2 {
		t.Errorf("sentence has %d tokens, want 2", len(env.Result.Sentence))
	}
}

func TestAssessEndpoint_Errors(t *testing.T) {
	okProvider := &stubAssessProvider{result: &assess.Result{RecognizedText: "hi"}}
	silent := speechWAV(100)
	for i := 44; i < len(silent); i++ {
		silent[i] = 0
	}

	tests := []struct {
		name       string
		provider   assess.Provider
		req        func(t *testing.T) *http.Request
		wantStatus int
	}{
		{
			name:       "missing audio file",
			provider:   okProvider,
			req:        func(t *testing.T) *http.Request { return assessRequest(t, nil, "hello") },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing reference text",
			provider:   okProvider,
			req:        func(t *testing.T) *http.Request { return assessRequest(t, speechWAV(100), "") },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "silent recording",
			provider:   okProvider,
			req:        func(t *testing.T) *http.Request { return assessRequest(t, silent, "hello") },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "undecodable audio",
			provider:   okProvider,
			req:        func(t *testing.T) *http.Request { return assessRequest(t, []byte("not audio"), "hello") },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "recognition failed",
			provider:   &stubAssessProvider{err: &assess.RecognitionFailedError{Status: "InitialSilenceTimeout"}},
			req:        func(t *testing.T) *http.Request { return assessRequest(t, speechWAV(100), "hello") },
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "no recognition result",
			provider:   &stubAssessProvider{err: assess.ErrNoResult},
			req:        func(t *testing.T) *http.Request { return assessRequest(t, speechWAV(100), "hello") },
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "provider HTTP error",
			provider:   &stubAssessProvider{err: &assess.HTTPError{StatusCode: 500, Body: "boom"}},
			req:        func(t *testing.T) *http.Request { return assessRequest(t, speechWAV(100), "hello") },
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "unexpected provider failure",
			provider:   &stubAssessProvider{err: errors.New("dial tcp: timeout")},
			req:        func(t *testing.T) *http.Request { return assessRequest(t, speechWAV(100), "hello") },
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, tc.provider, &stubSynthProvider{})
			rec := httptest.NewRecorder()
			srv.Routes().ServeHTTP(rec, tc.req(t))

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tc.wantStatus, rec.Body)
			}
			if msg := decodeError(t, rec); msg == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func TestAssessEndpoint_CleansUpSpooledUpload(t *testing.T) {
	cfg := testConfig(t)
	m := observe.DefaultMetrics()
	orch := assessment.New(&stubAssessProvider{result: &assess.Result{RecognizedText: "hi"}},
		assessment.WithMetrics(m))
	srv := New(cfg, orch, &stubSynthProvider{}, m)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, assessRequest(t, speechWAV(100), "hi"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	entries, err := os.ReadDir(cfg.Storage.TempDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("spool dir not empty after request: %v", entries)
	}
}

func TestSynthesizeEndpoint(t *testing.T) {
	mp3 := []byte("ID3 not really mp3 but bytes")
	srv := newTestServer(t, &stubAssessProvider{}, &stubSynthProvider{audio: mp3})

	req := httptest.NewRequest(http.MethodPost, "/api/tts",
		strings.NewReader(`{"text":"Good morning."}`))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cl := rec.Header().Get("Content-Length"); cl != "28" {
		t.Errorf("Content-Length = %q, want 28", cl)
	}
	if !bytes.Equal(rec.Body.Bytes(), mp3) {
		t.Error("response body differs from synthesized audio")
	}
}

func TestSynthesizeEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name       string
		provider   synth.Provider
		body       string
		wantStatus int
	}{
		{
			name:       "empty text",
			provider:   &stubSynthProvider{},
			body:       `{"text":"   "}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed JSON",
			provider:   &stubSynthProvider{},
			body:       `{"text":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "text too long",
			provider:   &stubSynthProvider{},
			body:       `{"text":"` + strings.Repeat("a", 501) + `"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "provider rejects request",
			provider:   &stubSynthProvider{err: &synth.HTTPError{StatusCode: 503, Body: "overloaded"}},
			body:       `{"text":"hello"}`,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "unexpected failure",
			provider:   &stubSynthProvider{err: errors.New("dial tcp: timeout")},
			body:       `{"text":"hello"}`,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, &stubAssessProvider{}, tc.provider)
			req := httptest.NewRequest(http.MethodPost, "/api/tts", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			srv.Routes().ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tc.wantStatus, rec.Body)
			}
			if msg := decodeError(t, rec); msg == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func TestHealthRoutes(t *testing.T) {
	srv := newTestServer(t, &stubAssessProvider{}, &stubSynthProvider{})
	router := srv.Routes()

	for _, path := range []string{"/api/health", "/api/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestMetricsRoute(t *testing.T) {
	srv := newTestServer(t, &stubAssessProvider{}, &stubSynthProvider{})

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /metrics = %d, want 200", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.CORSAllowedOrigins = []string{"https://app.example.com"}
	m := observe.DefaultMetrics()
	orch := assessment.New(&stubAssessProvider{}, assessment.WithMetrics(m))
	srv := New(cfg, orch, &stubSynthProvider{}, m)
	router := srv.Routes()

	t.Run("preflight allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/tts", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("preflight status = %d, want 204", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
			t.Errorf("Access-Control-Allow-Origin = %q", got)
		}
	})

	t.Run("disallowed origin gets no CORS headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/tts", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
		}
	})
}
