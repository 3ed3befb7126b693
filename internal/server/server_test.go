package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raaihank/lyricsmith/internal/config"
	"github.com/raaihank/lyricsmith/internal/editor"
	"github.com/raaihank/lyricsmith/internal/logger"
	"github.com/raaihank/lyricsmith/internal/negotiate"
	"github.com/raaihank/lyricsmith/internal/rulestore"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeAutosaveStore struct {
	mu   sync.Mutex
	recs map[string]editor.AutosaveRecord
}

func newFakeAutosaveStore() *fakeAutosaveStore {
	return &fakeAutosaveStore{recs: make(map[string]editor.AutosaveRecord)}
}

func (s *fakeAutosaveStore) SaveAutosave(_ context.Context, url string, rec editor.AutosaveRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[url] = rec
	return nil
}

func (s *fakeAutosaveStore) LoadAutosave(_ context.Context, url string) (*editor.AutosaveRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.recs[url]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (s *fakeAutosaveStore) ClearAutosave(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, url)
	return nil
}

type fakeSettingsStore struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func (s *fakeSettingsStore) SaveSettings(_ context.Context, userID string, settings any) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs == nil {
		s.docs = make(map[string][]byte)
	}
	s.docs[userID] = data
	return nil
}

func (s *fakeSettingsStore) LoadSettings(_ context.Context, userID string, out any) (bool, error) {
	s.mu.Lock()
	data, ok := s.docs[userID]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, out)
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.GetDefaults()
	cfg.RateLimit.Enabled = false

	log := &logger.Logger{Logger: zap.NewNop()}
	s := New(cfg, log, Deps{
		Rules:     rulestore.New(zap.NewNop()),
		Declines:  negotiate.NewMemoryDeclineStore(),
		Autosaves: newFakeAutosaveStore(),
		Settings:  &fakeSettingsStore{},
	})
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return s, srv
}

func postJSON(t *testing.T, url string, body string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var out map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Decode response failed: %v", err)
	}
	return resp, out
}

func rawString(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatalf("Unmarshal string failed: %v", err)
	}
	return s
}

func TestHealth(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}
}

func TestCorrectEndpoint(t *testing.T) {
	_, srv := newTestServer(t)

	// Default settings leave contractions alone and fix the trailing dash.
	resp, out := postJSON(t, srv.URL+"/v1/correct", `{"text":"Dont stop ma-"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d", resp.StatusCode)
	}
	if got := rawString(t, out["text"]); got != "Dont stop ma—" {
		t.Errorf("text = %q", got)
	}

	// Per-request settings override the defaults.
	_, out = postJSON(t, srv.URL+"/v1/correct",
		`{"text":"Dont stop ma-","settings":{"contractions":true,"dashFixes":true,"dashType":"em"}}`)
	if got := rawString(t, out["text"]); got != "Don't stop ma—" {
		t.Errorf("text with contractions = %q", got)
	}
}

func TestConvertEndpoint(t *testing.T) {
	_, srv := newTestServer(t)

	_, out := postJSON(t, srv.URL+"/v1/convert", `{"text":"15 cats"}`)
	if got := rawString(t, out["text"]); got != "fifteen cats" {
		t.Errorf("text = %q", got)
	}
}

func TestCandidatesEndpoint(t *testing.T) {
	_, srv := newTestServer(t)

	_, out := postJSON(t, srv.URL+"/v1/candidates",
		`{"text":"got 5 cars","url":"https://genius.com/a-lyrics"}`)

	var candidates []struct {
		Original  string `json:"original"`
		Converted string `json:"converted"`
		UID       string `json:"uid"`
	}
	if err := json.Unmarshal(out["candidates"], &candidates); err != nil {
		t.Fatalf("Unmarshal candidates failed: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Converted != "five" {
		t.Errorf("candidates = %+v", candidates)
	}
	if candidates[0].UID == "" {
		t.Error("candidate UID missing")
	}
}

func TestRulesImportExport(t *testing.T) {
	_, srv := newTestServer(t)

	resp, out := postJSON(t, srv.URL+"/v1/rules", `[{"find":"cat","replace":"dog"}]`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Import status = %d", resp.StatusCode)
	}
	var added int
	json.Unmarshal(out["added"], &added)
	if added != 1 {
		t.Errorf("added = %d, want 1", added)
	}

	// Imported rules participate in correction immediately.
	_, cout := postJSON(t, srv.URL+"/v1/correct", `{"text":"cat song"}`)
	if got := rawString(t, cout["text"]); got != "dog song" {
		t.Errorf("correct after import = %q", got)
	}

	getResp, err := http.Get(srv.URL + "/v1/rules?format=structured")
	if err != nil {
		t.Fatalf("GET rules failed: %v", err)
	}
	defer getResp.Body.Close()
	var doc rulestore.Document
	if err := json.NewDecoder(getResp.Body).Decode(&doc); err != nil {
		t.Fatalf("Decode export failed: %v", err)
	}
	if len(doc.UngroupedRules) != 1 || doc.UngroupedRules[0].Find != "cat" {
		t.Errorf("Structured export = %+v", doc.UngroupedRules)
	}
}

func TestReplaceAndUndo(t *testing.T) {
	_, srv := newTestServer(t)
	const url = `"https://genius.com/a-lyrics"`

	_, out := postJSON(t, srv.URL+"/v1/replace",
		`{"url":`+url+`,"text":"Cat cat","find":"cat","replace":"dog","caseSensitive":false}`)
	if got := rawString(t, out["text"]); got != "dog dog" {
		t.Errorf("replace text = %q", got)
	}

	_, out = postJSON(t, srv.URL+"/v1/replace/undo", `{"url":`+url+`}`)
	if got := rawString(t, out["text"]); got != "Cat cat" {
		t.Errorf("undo text = %q", got)
	}

	resp, _ := postJSON(t, srv.URL+"/v1/replace/undo", `{"url":`+url+`}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Second undo status = %d, want 409", resp.StatusCode)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	_, srv := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/v1/settings?user=u1",
		bytes.NewBufferString(`{"contractions":false,"dashType":"en","bracketWarnings":true}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT settings failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d", resp.StatusCode)
	}

	getResp, err := http.Get(srv.URL + "/v1/settings?user=u1")
	if err != nil {
		t.Fatalf("GET settings failed: %v", err)
	}
	defer getResp.Body.Close()
	var settings struct {
		Contractions bool   `json:"contractions"`
		DashType     string `json:"dashType"`
	}
	if err := json.NewDecoder(getResp.Body).Decode(&settings); err != nil {
		t.Fatalf("Decode settings failed: %v", err)
	}
	if settings.Contractions || settings.DashType != "en" {
		t.Errorf("settings = %+v", settings)
	}
}

func TestLoggingMiddleware_AccessLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cfg := config.GetDefaults()
	cfg.RateLimit.Enabled = false

	log := &logger.Logger{Logger: zap.New(core)}
	s := New(cfg, log, Deps{Rules: rulestore.New(zap.NewNop())})
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/convert", "application/json",
		bytes.NewBufferString(`{"text":"x"}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()

	entries := logs.FilterMessage("HTTP request").All()
	if len(entries) != 1 {
		t.Fatalf("Access log entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["method"] != "POST" || fields["path"] != "/v1/convert" {
		t.Errorf("Access log fields = %v", fields)
	}
	if status, _ := fields["status"].(int64); status != http.StatusOK {
		t.Errorf("Access log status = %v", fields["status"])
	}
	if id, _ := fields["request_id"].(string); id == "" {
		t.Error("Access log request_id missing")
	}
}

func TestRateLimit(t *testing.T) {
	cfg := config.GetDefaults()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RequestsPerSecond = 1
	cfg.RateLimit.Burst = 2

	log := &logger.Logger{Logger: zap.NewNop()}
	s := New(cfg, log, Deps{Rules: rulestore.New(zap.NewNop())})
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	limited := false
	for i := 0; i < 5; i++ {
		resp, err := http.Post(srv.URL+"/v1/convert", "application/json",
			bytes.NewBufferString(`{"text":"x"}`))
		if err != nil {
			t.Fatalf("POST failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Error("Burst of requests was never rate limited")
	}
}

func TestNegotiateWebSocket(t *testing.T) {
	_, srv := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/negotiate"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	start := wsClientMessage{
		Type: "start",
		URL:  "https://genius.com/a-lyrics",
		Text: "got 5 cars and 9 lives",
	}
	if err := conn.WriteJSON(start); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var msg wsServerMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if msg.Type != "prompt" || msg.Prompt.Candidate.Original != "5" {
		t.Fatalf("First message = %+v", msg)
	}

	conn.WriteJSON(wsClientMessage{Type: "decision", Decision: "accept"})
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if msg.Type != "prompt" || msg.Prompt.Candidate.Original != "9" {
		t.Fatalf("Second message = %+v", msg)
	}

	conn.WriteJSON(wsClientMessage{Type: "decision", Decision: "decline"})
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if msg.Type != "done" {
		t.Fatalf("Final message = %+v", msg)
	}
	if msg.Text != "got five cars and 9 lives" || msg.Applied != 1 {
		t.Errorf("done = %+v", msg)
	}
}

func TestNegotiateWebSocket_Autosave(t *testing.T) {
	cfg := config.GetDefaults()
	cfg.RateLimit.Enabled = false
	cfg.Editor.AutosaveDebounce = 10 * time.Millisecond

	store := newFakeAutosaveStore()
	log := &logger.Logger{Logger: zap.NewNop()}
	s := New(cfg, log, Deps{
		Rules:     rulestore.New(zap.NewNop()),
		Declines:  negotiate.NewMemoryDeclineStore(),
		Autosaves: store,
	})
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/negotiate"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	const pageURL = "https://genius.com/a-lyrics"
	start := wsClientMessage{Type: "start", URL: pageURL, Text: "got 5 cars and 9 lives"}
	if err := conn.WriteJSON(start); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var msg wsServerMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	conn.WriteJSON(wsClientMessage{Type: "decision", Decision: "accept"})
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}

	// The accepted conversion is snapshotted once the debounce settles,
	// while the session still waits on the second prompt.
	deadline := time.After(2 * time.Second)
	for {
		rec, _ := store.LoadAutosave(context.Background(), pageURL)
		if rec != nil {
			if rec.Content != "got five cars and 9 lives" {
				t.Errorf("Autosaved content = %q", rec.Content)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("Negotiation autosave never fired")
		case <-time.After(10 * time.Millisecond):
		}
	}

	conn.WriteJSON(wsClientMessage{Type: "decision", Decision: "decline"})
	conn.ReadJSON(&msg)
}
