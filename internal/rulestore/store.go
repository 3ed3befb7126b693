// Package rulestore owns the user rule collection: groups, ungrouped rules,
// legacy migration, and the import/export/merge formats. The rule engine only
// reads from it; all mutation comes from the editing surface.
package rulestore

import (
	"fmt"
	"sync"

	"github.com/raaihank/lyricsmith/internal/rules"
	"go.uber.org/zap"
)

// RuleGroup is a named, versioned, authored collection of rules downloaded or
// exported as a unit. IDs are unique among groups.
type RuleGroup struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Author      string       `json:"author"`
	Version     string       `json:"version"`
	Rules       []rules.Rule `json:"rules"`
}

// Store holds every user rule. A rule is owned by exactly one container, a
// group or the ungrouped list; moving transfers ownership, never copies.
type Store struct {
	mu             sync.RWMutex
	ruleGroups     []RuleGroup
	ungroupedRules []rules.Rule
	logger         *zap.Logger
}

// New creates an empty store.
func New(logger *zap.Logger) *Store {
	return &Store{logger: logger}
}

// State is the persisted shape of the store. LegacyRules carries the old flat
// list, migrated into UngroupedRules on load and then discarded.
type State struct {
	RuleGroups     []RuleGroup  `json:"ruleGroups"`
	UngroupedRules []rules.Rule `json:"ungroupedRules"`
	LegacyRules    []rules.Rule `json:"legacyRules,omitempty"`
}

// LoadState replaces the store content. Legacy rules are folded into the
// ungrouped list, de-duplicated by structural identity.
func (s *Store) LoadState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ruleGroups = append([]RuleGroup(nil), state.RuleGroups...)
	s.ungroupedRules = append([]rules.Rule(nil), state.UngroupedRules...)

	if len(state.LegacyRules) > 0 {
		seen := make(map[string]bool, len(s.ungroupedRules))
		for _, r := range s.ungroupedRules {
			seen[r.Key()] = true
		}
		migrated := 0
		for _, r := range state.LegacyRules {
			if seen[r.Key()] {
				continue
			}
			seen[r.Key()] = true
			s.ungroupedRules = append(s.ungroupedRules, r)
			migrated++
		}
		s.logger.Info("Migrated legacy rule list",
			zap.Int("total", len(state.LegacyRules)),
			zap.Int("migrated", migrated),
		)
	}
}

// Snapshot returns a copy of the current state with no legacy section.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups := make([]RuleGroup, len(s.ruleGroups))
	for i, g := range s.ruleGroups {
		g.Rules = append([]rules.Rule(nil), g.Rules...)
		groups[i] = g
	}
	return State{
		RuleGroups:     groups,
		UngroupedRules: append([]rules.Rule(nil), s.ungroupedRules...),
	}
}

// EnabledRules returns every enabled rule in application order: each group's
// rules in array order, group by group, then the ungrouped rules. This
// ordering is fixed; later rules may depend on earlier rules' output.
func (s *Store) EnabledRules() []rules.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []rules.Rule
	for _, g := range s.ruleGroups {
		for _, r := range g.Rules {
			if r.Enabled {
				out = append(out, r)
			}
		}
	}
	for _, r := range s.ungroupedRules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// AddUngrouped appends a rule to the ungrouped list.
func (s *Store) AddUngrouped(r rules.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ungroupedRules = append(s.ungroupedRules, r)
}

// Group returns the group with the given id.
func (s *Store) Group(id string) (RuleGroup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.ruleGroups {
		if g.ID == id {
			return g, true
		}
	}
	return RuleGroup{}, false
}

// DeleteGroup removes a group and every rule it owns.
func (s *Store) DeleteGroup(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, g := range s.ruleGroups {
		if g.ID == id {
			s.ruleGroups = append(s.ruleGroups[:i], s.ruleGroups[i+1:]...)
			return true
		}
	}
	return false
}

// MoveToUngrouped transfers rule index from a group into the ungrouped list.
func (s *Store) MoveToUngrouped(groupID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for gi, g := range s.ruleGroups {
		if g.ID != groupID {
			continue
		}
		if index < 0 || index >= len(g.Rules) {
			return fmt.Errorf("rule index %d out of range for group %q", index, groupID)
		}
		moved := g.Rules[index]
		s.ruleGroups[gi].Rules = append(g.Rules[:index], g.Rules[index+1:]...)
		s.ungroupedRules = append(s.ungroupedRules, moved)
		return nil
	}
	return fmt.Errorf("unknown rule group %q", groupID)
}

// MergeDownloadedGroup folds a downloaded group in. An existing group with
// the same id gains only the incoming rules whose (find, replace) pair it
// does not already contain, and takes the incoming version string; a new id
// is inserted as-is. Returns the number of rules added.
func (s *Store) MergeDownloadedGroup(incoming RuleGroup) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for gi, g := range s.ruleGroups {
		if g.ID != incoming.ID {
			continue
		}
		existing := make(map[string]bool, len(g.Rules))
		for _, r := range g.Rules {
			existing[r.Key()] = true
		}
		added := 0
		for _, r := range incoming.Rules {
			if existing[r.Key()] {
				continue
			}
			existing[r.Key()] = true
			s.ruleGroups[gi].Rules = append(s.ruleGroups[gi].Rules, r)
			added++
		}
		if incoming.Version != "" {
			s.ruleGroups[gi].Version = incoming.Version
		}
		return added
	}

	s.ruleGroups = append(s.ruleGroups, incoming)
	return len(incoming.Rules)
}

// RuleCount returns the number of rules across all containers.
func (s *Store) RuleCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.ungroupedRules)
	for _, g := range s.ruleGroups {
		n += len(g.Rules)
	}
	return n
}
