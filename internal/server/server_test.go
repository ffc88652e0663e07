package server_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/listener-ai/listener/internal/cooldown"
	"github.com/listener-ai/listener/internal/identity"
	"github.com/listener-ai/listener/internal/pipeline"
	"github.com/listener-ai/listener/internal/reply"
	"github.com/listener-ai/listener/internal/safety"
	"github.com/listener-ai/listener/internal/server"
	sttmock "github.com/listener-ai/listener/pkg/provider/stt/mock"
	ttsmock "github.com/listener-ai/listener/pkg/provider/tts/mock"
)

type testAPI struct {
	handler http.Handler
	stt     *sttmock.Provider
	tts     *ttsmock.Provider
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	tokens, err := identity.NewTokenService("test-secret")
	if err != nil {
		t.Fatalf("NewTokenService: unexpected error: %v", err)
	}
	ids := identity.NewService(identity.NewMemStore(), tokens)

	api := &testAPI{
		stt: &sttmock.Provider{Transcript: "all good here"},
		tts: &ttsmock.Provider{},
	}
	pipe := pipeline.New(
		cooldown.NewMemStore(time.Minute),
		safety.NewClassifier(),
		reply.NewSelector(nil),
		api.stt,
		api.tts,
	)
	api.handler = server.New(ids, pipe, nil, nil).Handler()
	return api
}

func (a *testAPI) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) register(t *testing.T, email, password string) string {
	t.Helper()
	body := `{"email":"` + email + `","password":"` + password + `"}`
	req := httptest.NewRequest("POST", "/auth/register", strings.NewReader(body))
	rec := a.do(t, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return resp.Token
}

func voiceNoteRequest(t *testing.T, token string, audio []byte, storeRaw bool) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "note.wav")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(audio); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if storeRaw {
		if err := mw.WriteField("store_raw", "true"); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest("POST", "/voice-note", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestRegisterAndLoginFlow(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	api.register(t, "ana@example.com", "hunter2hunter2")

	t.Run("duplicate email", func(t *testing.T) {
		body := `{"email":"ana@example.com","password":"other"}`
		rec := api.do(t, httptest.NewRequest("POST", "/auth/register", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("login ok", func(t *testing.T) {
		body := `{"email":"ana@example.com","password":"hunter2hunter2"}`
		rec := api.do(t, httptest.NewRequest("POST", "/auth/login", strings.NewReader(body)))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, body = %s", rec.Code, rec.Body)
		}
	})

	t.Run("login wrong password", func(t *testing.T) {
		body := `{"email":"ana@example.com","password":"nope"}`
		rec := api.do(t, httptest.NewRequest("POST", "/auth/login", strings.NewReader(body)))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := api.do(t, httptest.NewRequest("POST", "/auth/register", strings.NewReader("{")))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})
}

func TestVoiceNoteHappyPath(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	token := api.register(t, "ben@example.com", "password1234")

	rec := api.do(t, voiceNoteRequest(t, token, []byte("audio-bytes"), false))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp struct {
		SessionID       string   `json:"session_id"`
		ReplyText       string   `json:"reply_text"`
		ReplyAudio      []byte   `json:"reply_audio"`
		SafetyLevel     string   `json:"safety_level"`
		Reasons         []string `json:"reasons"`
		CooldownSeconds int      `json:"cooldown_seconds"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.SessionID == "" {
		t.Error("expected a session id")
	}
	if resp.SafetyLevel != "ok" {
		t.Errorf("safety_level = %q, want %q", resp.SafetyLevel, "ok")
	}
	if resp.ReplyText != reply.CompanionText {
		t.Errorf("reply_text = %q, want companion text", resp.ReplyText)
	}
	if string(resp.ReplyAudio) != reply.CompanionText {
		t.Errorf("reply_audio decodes to %q, want the reply text", resp.ReplyAudio)
	}
	if resp.CooldownSeconds != 0 {
		t.Errorf("cooldown_seconds = %d, want 0", resp.CooldownSeconds)
	}
}

func TestVoiceNoteElevatedStartsCooldown(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	token := api.register(t, "cara@example.com", "password1234")
	api.stt.Transcript = "I am furious at everything"

	rec := api.do(t, voiceNoteRequest(t, token, []byte("x"), false))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp struct {
		SafetyLevel     string `json:"safety_level"`
		CooldownSeconds int    `json:"cooldown_seconds"`
		ReplyText       string `json:"reply_text"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SafetyLevel != "elevated" {
		t.Errorf("safety_level = %q, want %q", resp.SafetyLevel, "elevated")
	}
	if resp.CooldownSeconds != 60 {
		t.Errorf("cooldown_seconds = %d, want 60", resp.CooldownSeconds)
	}

	// A second note during the pause gets the cooldown message without
	// another transcription.
	calls := api.stt.Calls()
	rec = api.do(t, voiceNoteRequest(t, token, []byte("y"), false))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ReplyText != reply.CooldownText {
		t.Errorf("reply_text = %q, want the pause message", resp.ReplyText)
	}
	if api.stt.Calls() != calls {
		t.Error("transcription ran during an active cooldown")
	}
}

func TestVoiceNoteRequiresAuth(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)

	rec := api.do(t, voiceNoteRequest(t, "", []byte("x"), false))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	rec = api.do(t, voiceNoteRequest(t, "garbage-token", []byte("x"), false))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestVoiceNoteMissingFile(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	token := api.register(t, "dan@example.com", "password1234")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("store_raw", "true"); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest("POST", "/voice-note", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	rec := api.do(t, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestVoiceNoteUpstreamFailure(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	token := api.register(t, "eve@example.com", "password1234")
	api.stt.Err = errors.New("stt offline")

	rec := api.do(t, voiceNoteRequest(t, token, []byte("x"), false))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestRealtimeToken(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	token := api.register(t, "fay@example.com", "password1234")

	req := httptest.NewRequest("GET", "/realtime/token", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := api.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" {
		t.Error("expected a realtime token")
	}

	t.Run("without auth", func(t *testing.T) {
		rec := api.do(t, httptest.NewRequest("GET", "/realtime/token", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})
}
