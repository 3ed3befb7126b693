package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/raaihank/lyricsmith/internal/convert"
	"github.com/raaihank/lyricsmith/internal/editor"
	"github.com/raaihank/lyricsmith/internal/negotiate"
	"github.com/raaihank/lyricsmith/internal/persist"
	"github.com/raaihank/lyricsmith/internal/pipeline"
	"github.com/raaihank/lyricsmith/internal/rules"
	"go.uber.org/zap"
)

// maxBodySize bounds request bodies; lyrics documents are small.
const maxBodySize = 2 << 20

type ruleErrorView struct {
	Description string `json:"description"`
	Find        string `json:"find"`
	Error       string `json:"error"`
}

func ruleErrorViews(errs []rules.RuleError) []ruleErrorView {
	out := make([]ruleErrorView, len(errs))
	for i, e := range errs {
		out[i] = ruleErrorView{Description: e.Description, Find: e.Find, Error: e.Err.Error()}
	}
	return out
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// effectiveSettings returns the request's settings when present, otherwise
// the configured defaults.
func (s *Server) effectiveSettings(override *pipeline.Settings) pipeline.Settings {
	if override != nil {
		return *override
	}
	return s.config.Editor.Defaults
}

func (s *Server) userRules() []rules.Rule {
	if s.deps.Rules == nil {
		return nil
	}
	return s.deps.Rules.EnabledRules()
}

// handleCorrect runs the full batch pass over the submitted text.
func (s *Server) handleCorrect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text     string             `json:"text"`
		Settings *pipeline.Settings `json:"settings"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	if len(req.Text) > s.config.Editor.MaxDocumentLength {
		s.writeError(w, http.StatusRequestEntityTooLarge, "document too large")
		return
	}

	result := s.corrector.Correct(req.Text, s.effectiveSettings(req.Settings), s.userRules())
	s.writeJSON(w, http.StatusOK, map[string]any{
		"text":       result.Text,
		"ruleErrors": ruleErrorViews(result.RuleErrors),
	})
}

// handleConvert runs number-to-text conversion only.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"text": convert.All(req.Text)})
}

// handleCandidates runs the rule stages, then returns the conversion
// candidates the interactive flow would present, minus declined ones.
func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text     string             `json:"text"`
		URL      string             `json:"url"`
		Settings *pipeline.Settings `json:"settings"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	text, candidates, errs := s.corrector.Candidates(req.Text, s.effectiveSettings(req.Settings), s.userRules())
	if s.deps.Declines != nil && req.URL != "" {
		candidates = negotiate.FilterDeclined(r.Context(), s.deps.Declines, persist.NormalizeURL(req.URL), candidates)
	}
	if candidates == nil {
		candidates = []convert.Conversion{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"text":       text,
		"candidates": candidates,
		"ruleErrors": ruleErrorViews(errs),
	})
}

// handleRulesExport writes the rule collection. format=structured returns
// the full document; anything else returns the flat simple form.
func (s *Server) handleRulesExport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Rules == nil {
		s.writeError(w, http.StatusServiceUnavailable, "rule store not configured")
		return
	}
	if r.URL.Query().Get("format") == "structured" {
		s.writeJSON(w, http.StatusOK, s.deps.Rules.ExportStructured())
		return
	}
	s.writeJSON(w, http.StatusOK, s.deps.Rules.ExportSimple())
}

// handleRulesImport merges a rule payload into the store.
func (s *Server) handleRulesImport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Rules == nil {
		s.writeError(w, http.StatusServiceUnavailable, "rule store not configured")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	added, err := s.deps.Rules.Import(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"added": added})
}

// handleRulesCatalog downloads a pack and merges it as a group.
func (s *Server) handleRulesCatalog(w http.ResponseWriter, r *http.Request) {
	if s.deps.Rules == nil || s.deps.Catalog == nil {
		s.writeError(w, http.StatusServiceUnavailable, "catalog not configured")
		return
	}
	var req struct {
		URL string `json:"url"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	group, err := s.deps.Catalog.Fetch(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	added := s.deps.Rules.MergeDownloadedGroup(group)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"packId":  group.ID,
		"version": group.Version,
		"added":   added,
	})
}

func (s *Server) handleAutosaveLoad(w http.ResponseWriter, r *http.Request) {
	if s.deps.Autosaves == nil {
		s.writeError(w, http.StatusServiceUnavailable, "autosave store not configured")
		return
	}
	url := r.URL.Query().Get("url")
	if url == "" {
		s.writeError(w, http.StatusBadRequest, "url parameter required")
		return
	}
	rec, err := s.deps.Autosaves.LoadAutosave(r.Context(), url)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load autosave")
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "no autosave for url")
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleAutosaveSave(w http.ResponseWriter, r *http.Request) {
	if s.deps.Autosaves == nil {
		s.writeError(w, http.StatusServiceUnavailable, "autosave store not configured")
		return
	}
	var rec editor.AutosaveRecord
	if !s.decodeBody(w, r, &rec) {
		return
	}
	if rec.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url field required")
		return
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if err := s.deps.Autosaves.SaveAutosave(r.Context(), rec.URL, rec); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to save autosave")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleAutosaveClear(w http.ResponseWriter, r *http.Request) {
	if s.deps.Autosaves == nil {
		s.writeError(w, http.StatusServiceUnavailable, "autosave store not configured")
		return
	}
	url := r.URL.Query().Get("url")
	if url == "" {
		s.writeError(w, http.StatusBadRequest, "url parameter required")
		return
	}
	if err := s.deps.Autosaves.ClearAutosave(r.Context(), url); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to clear autosave")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// handleReplace performs a literal find/replace over the submitted text and
// remembers the pre-replace text for a single-step undo, keyed by page URL.
func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL           string `json:"url"`
		Text          string `json:"text"`
		Find          string `json:"find"`
		Replace       string `json:"replace"`
		CaseSensitive bool   `json:"caseSensitive"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.URL == "" || req.Find == "" {
		s.writeError(w, http.StatusBadRequest, "url and find fields required")
		return
	}

	buf := editor.NewMemoryBuffer(req.Text)
	replacer := editor.NewReplacer(s.logger.Logger)
	count := replacer.ReplaceAll(buf, req.Find, req.Replace, req.CaseSensitive)

	key := persist.NormalizeURL(req.URL)
	s.replaceMu.Lock()
	s.lastText[key] = req.Text
	s.replaceMu.Unlock()

	s.writeJSON(w, http.StatusOK, map[string]any{
		"text":  buf.Read(),
		"count": count,
	})
}

// handleReplaceUndo returns the text as it was before the most recent
// replace for the URL. One level only; a second undo fails.
func (s *Server) handleReplaceUndo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	key := persist.NormalizeURL(req.URL)

	s.replaceMu.Lock()
	prev, ok := s.lastText[key]
	if ok {
		delete(s.lastText, key)
	}
	s.replaceMu.Unlock()

	if !ok {
		s.writeError(w, http.StatusConflict, "nothing to undo")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"text": prev})
}

func (s *Server) handleSettingsLoad(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings == nil {
		s.writeError(w, http.StatusServiceUnavailable, "settings store not configured")
		return
	}
	userID := r.URL.Query().Get("user")
	if userID == "" {
		userID = "default"
	}
	settings := s.config.Editor.Defaults
	if _, err := s.deps.Settings.LoadSettings(r.Context(), userID, &settings); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	s.writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSettingsSave(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings == nil {
		s.writeError(w, http.StatusServiceUnavailable, "settings store not configured")
		return
	}
	userID := r.URL.Query().Get("user")
	if userID == "" {
		userID = "default"
	}
	var settings pipeline.Settings
	if !s.decodeBody(w, r, &settings) {
		return
	}
	if settings.DashType != "em" && settings.DashType != "en" {
		s.writeError(w, http.StatusBadRequest, "dashType must be em or en")
		return
	}
	if err := s.deps.Settings.SaveSettings(r.Context(), userID, settings); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	s.writeJSON(w, http.StatusOK, settings)
}
