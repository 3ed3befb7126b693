package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

const packJSON = `{
	"metadata": {
		"id": "hiphop-basics",
		"title": "Hip-Hop Basics",
		"author": "community",
		"version": "2.3"
	},
	"rules": [
		{"description": "cause", "find": "\\bcause\\b", "replace": "'cause", "flags": "gi"},
		{"find": "", "replace": "dropped"},
		{"find": "gonna", "replace": "gon'", "enabled": false}
	]
}`

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/packs/hiphop-basics.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(packJSON))
	}))
	defer srv.Close()

	c := NewClient(&Config{BaseURL: srv.URL}, zap.NewNop())
	group, err := c.Fetch(context.Background(), "/packs/hiphop-basics.json")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if group.ID != "hiphop-basics" || group.Version != "2.3" {
		t.Errorf("Group metadata = %+v", group)
	}
	if len(group.Rules) != 2 {
		t.Fatalf("Rules = %d, want 2 (invalid rule dropped)", len(group.Rules))
	}
	if !group.Rules[0].Enabled {
		t.Error("Absent enabled should default to true")
	}
	if group.Rules[1].Enabled {
		t.Error("Explicit enabled:false was not honored")
	}
	if group.Rules[1].Flags != "g" {
		t.Errorf("Default flags = %q, want g", group.Rules[1].Flags)
	}
}

func TestFetch_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/garbage":
			w.Write([]byte("not json"))
		case "/noid":
			w.Write([]byte(`{"metadata":{},"rules":[]}`))
		}
	}))
	defer srv.Close()

	c := NewClient(&Config{BaseURL: srv.URL}, zap.NewNop())
	for _, path := range []string{"/missing", "/garbage", "/noid"} {
		if _, err := c.Fetch(context.Background(), path); err == nil {
			t.Errorf("Fetch(%s) succeeded, want error", path)
		}
	}
}
