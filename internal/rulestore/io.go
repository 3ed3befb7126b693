package rulestore

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/raaihank/lyricsmith/internal/rules"
)

// ErrInvalidFormat is returned when an import payload matches none of the
// accepted shapes or contains no usable rule.
var ErrInvalidFormat = errors.New("rulestore: unrecognized import format")

// importedRule mirrors rules.Rule with a nullable Enabled so that an absent
// field defaults to true rather than false.
type importedRule struct {
	Description      string `json:"description"`
	Find             string `json:"find"`
	Replace          string `json:"replace"`
	Flags            string `json:"flags"`
	Enabled          *bool  `json:"enabled"`
	EnhancedBoundary bool   `json:"enhancedBoundary"`
}

func (ir importedRule) valid() bool {
	return ir.Find != "" && ir.Replace != ""
}

func (ir importedRule) toRule() rules.Rule {
	flags := ir.Flags
	if flags == "" {
		flags = "g"
	}
	return rules.Rule{
		Description:      ir.Description,
		Find:             ir.Find,
		Replace:          ir.Replace,
		Flags:            flags,
		Enabled:          ir.Enabled == nil || *ir.Enabled,
		EnhancedBoundary: ir.EnhancedBoundary,
	}
}

type importedGroup struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Author      string         `json:"author"`
	Version     string         `json:"version"`
	Rules       []importedRule `json:"rules"`
}

// importEnvelope covers both the wrapped shapes: {"rules": [...]} and the
// full structured export with groups and legacy rules.
type importEnvelope struct {
	Rules          []importedRule  `json:"rules"`
	RuleGroups     []importedGroup `json:"ruleGroups"`
	UngroupedRules []importedRule  `json:"ungroupedRules"`
	LegacyRules    []importedRule  `json:"legacyRules"`
}

// Import merges a JSON payload into the store. Four shapes are accepted: a
// flat rule array, a single rule object, an object with a "rules" array, and
// the structured export document. Rules lacking find or replace are dropped;
// everything lands in the ungrouped list except structured-export groups,
// which merge group by group. Returns the number of rules added. The store
// is untouched on error.
func (s *Store) Import(payload []byte) (int, error) {
	var flat []importedRule
	if err := json.Unmarshal(payload, &flat); err == nil {
		return s.importUngrouped(flat)
	}

	var env importEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return 0, ErrInvalidFormat
	}

	if len(env.RuleGroups) > 0 || len(env.UngroupedRules) > 0 || len(env.LegacyRules) > 0 {
		return s.importStructured(env)
	}
	if env.Rules != nil {
		return s.importUngrouped(env.Rules)
	}

	// Last resort: a single bare rule object.
	var one importedRule
	if err := json.Unmarshal(payload, &one); err != nil || !one.valid() {
		return 0, ErrInvalidFormat
	}
	return s.importUngrouped([]importedRule{one})
}

func (s *Store) importUngrouped(in []importedRule) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(s.ungroupedRules))
	for _, r := range s.ungroupedRules {
		seen[r.Key()] = true
	}
	added := 0
	for _, ir := range in {
		if !ir.valid() {
			continue
		}
		r := ir.toRule()
		if seen[r.Key()] {
			continue
		}
		seen[r.Key()] = true
		s.ungroupedRules = append(s.ungroupedRules, r)
		added++
	}
	if added == 0 && len(in) > 0 {
		valid := 0
		for _, ir := range in {
			if ir.valid() {
				valid++
			}
		}
		if valid == 0 {
			return 0, ErrInvalidFormat
		}
	}
	return added, nil
}

func (s *Store) importStructured(env importEnvelope) (int, error) {
	added := 0
	for _, ig := range env.RuleGroups {
		g := RuleGroup{
			ID:          ig.ID,
			Title:       ig.Title,
			Description: ig.Description,
			Author:      ig.Author,
			Version:     ig.Version,
		}
		for _, ir := range ig.Rules {
			if ir.valid() {
				g.Rules = append(g.Rules, ir.toRule())
			}
		}
		added += s.MergeDownloadedGroup(g)
	}

	loose := append(append([]importedRule(nil), env.UngroupedRules...), env.LegacyRules...)
	n, err := s.importUngrouped(loose)
	if err != nil && added == 0 {
		return added, err
	}
	return added + n, nil
}

// ExportSimple returns every rule as a flat array, groups first in order,
// then ungrouped. Empty flags are written as "g" so re-importing preserves
// replace-all behavior.
func (s *Store) ExportSimple() []rules.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]rules.Rule, 0, s.ruleCountLocked())
	appendRule := func(r rules.Rule) {
		if r.Flags == "" {
			r.Flags = "g"
		}
		out = append(out, r)
	}
	for _, g := range s.ruleGroups {
		for _, r := range g.Rules {
			appendRule(r)
		}
	}
	for _, r := range s.ungroupedRules {
		appendRule(r)
	}
	return out
}

// ExportMetadata describes a structured export document.
type ExportMetadata struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
}

// Document is the structured export format, a superset of State that also
// records when and by what format version it was written.
type Document struct {
	Metadata       ExportMetadata `json:"metadata"`
	RuleGroups     []RuleGroup    `json:"ruleGroups"`
	UngroupedRules []rules.Rule   `json:"ungroupedRules"`
	LegacyRules    []rules.Rule   `json:"legacyRules"`
}

// exportFormatVersion identifies the structured export layout.
const exportFormatVersion = "2"

// ExportStructured returns the full store as a structured document. The
// legacy section is always empty; legacy rules are migrated on load.
func (s *Store) ExportStructured() Document {
	state := s.Snapshot()
	return Document{
		Metadata: ExportMetadata{
			Version:    exportFormatVersion,
			ExportedAt: time.Now().UTC(),
		},
		RuleGroups:     state.RuleGroups,
		UngroupedRules: state.UngroupedRules,
		LegacyRules:    []rules.Rule{},
	}
}

func (s *Store) ruleCountLocked() int {
	n := len(s.ungroupedRules)
	for _, g := range s.ruleGroups {
		n += len(g.Rules)
	}
	return n
}
