package caldef

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validDefinition = `{
	"name": "Test ECU",
	"version": "1.0",
	"baseAddress": 8388608,
	"verification": {"calOffset": 65536, "expected": "1037379955"},
	"parameters": [
		{
			"name": "IDLE_RPM",
			"kind": "VALUE",
			"address": 8388672,
			"dataType": "UWORD",
			"factor": 0.25,
			"categories": ["Engine", "Idle"]
		},
		{
			"name": "BOOST_CURVE",
			"displayName": "Boost Target",
			"kind": "CURVE",
			"address": 8388864,
			"dataType": "SWORD",
			"factor": 1.5,
			"offset": -500,
			"cols": 8,
			"xAxis": {"kind": "STD_AXIS", "points": 8, "address": 8388928, "dataType": "UWORD", "factor": 2}
		}
	]
}`

func TestFromJSON(t *testing.T) {
	def, err := FromJSON([]byte(validDefinition))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if def.Name != "Test ECU" {
		t.Fatalf("Name = %q", def.Name)
	}
	if def.Verification == nil || def.Verification.CalOffset != 0x10000 {
		t.Fatalf("Verification = %+v", def.Verification)
	}
	if len(def.Parameters) != 2 {
		t.Fatalf("parameters = %d, want 2", len(def.Parameters))
	}
	curve := def.Parameters[1]
	if !curve.XAxis.Backed() {
		t.Fatal("curve x axis should be storage backed")
	}
	rows, cols := curve.Shape()
	if rows != 1 || cols != 8 {
		t.Fatalf("curve shape = %dx%d, want 1x8", rows, cols)
	}
}

func TestFromJSONValidation(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantSub string
	}{
		{
			name:    "not json",
			json:    "{",
			wantSub: "unexpected end",
		},
		{
			name:    "missing name",
			json:    `{"parameters": []}`,
			wantSub: "missing name",
		},
		{
			name:    "empty parameter name",
			json:    `{"name": "x", "parameters": [{"name": "", "kind": "VALUE", "address": 1, "dataType": "UBYTE", "factor": 1}]}`,
			wantSub: "empty name",
		},
		{
			name:    "unknown kind",
			json:    `{"name": "x", "parameters": [{"name": "P", "kind": "TABLE", "address": 1, "dataType": "UBYTE", "factor": 1}]}`,
			wantSub: "unknown kind",
		},
		{
			name:    "duplicate names",
			json:    `{"name": "x", "parameters": [{"name": "P", "kind": "VALUE", "address": 1, "dataType": "UBYTE", "factor": 1}, {"name": "P", "kind": "VALUE", "address": 2, "dataType": "UBYTE", "factor": 1}]}`,
			wantSub: "duplicate name",
		},
		{
			name:    "negative dimensions",
			json:    `{"name": "x", "parameters": [{"name": "P", "kind": "MAP", "address": 1, "dataType": "UBYTE", "factor": 1, "rows": -1}]}`,
			wantSub: "negative table dimensions",
		},
		{
			name:    "axis unknown kind",
			json:    `{"name": "x", "parameters": [{"name": "P", "kind": "CURVE", "address": 1, "dataType": "UBYTE", "factor": 1, "xAxis": {"kind": "WEIRD_AXIS", "points": 4}}]}`,
			wantSub: "unknown kind",
		},
		{
			name:    "axis without points",
			json:    `{"name": "x", "parameters": [{"name": "P", "kind": "CURVE", "address": 1, "dataType": "UBYTE", "factor": 1, "xAxis": {"kind": "FIX_AXIS"}}]}`,
			wantSub: "has no points",
		},
		{
			name:    "axis address without datatype",
			json:    `{"name": "x", "parameters": [{"name": "P", "kind": "CURVE", "address": 1, "dataType": "UBYTE", "factor": 1, "xAxis": {"kind": "STD_AXIS", "points": 4, "address": 64}}]}`,
			wantSub: "both address and dataType",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromJSON([]byte(tc.json))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("error %q does not mention %q", err, tc.wantSub)
			}
		})
	}
}

func TestEnsureLoaded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "def.json")
	if err := os.WriteFile(path, []byte(validDefinition), 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("valid file", func(t *testing.T) {
		def, err := EnsureLoaded(path)
		if err != nil {
			t.Fatalf("EnsureLoaded: %v", err)
		}
		if def.Name != "Test ECU" {
			t.Fatalf("Name = %q", def.Name)
		}
	})

	t.Run("empty path", func(t *testing.T) {
		if _, err := EnsureLoaded("  "); err == nil {
			t.Fatal("blank path accepted")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := EnsureLoaded(filepath.Join(dir, "nope.json")); err == nil {
			t.Fatal("missing file accepted")
		}
	})

	t.Run("directory", func(t *testing.T) {
		if _, err := EnsureLoaded(dir); err == nil {
			t.Fatal("directory accepted")
		}
	})
}

func TestFindParameter(t *testing.T) {
	def, err := FromJSON([]byte(validDefinition))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		query    string
		want     string
		wantFind bool
	}{
		{name: "symbolic name", query: "IDLE_RPM", want: "IDLE_RPM", wantFind: true},
		{name: "display name", query: "Boost Target", want: "BOOST_CURVE", wantFind: true},
		{name: "symbolic name of displayed param", query: "BOOST_CURVE", want: "BOOST_CURVE", wantFind: true},
		{name: "unknown", query: "NOPE", wantFind: false},
		{name: "empty", query: "", wantFind: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, ok := def.FindParameter(tc.query)
			if ok != tc.wantFind {
				t.Fatalf("found = %v, want %v", ok, tc.wantFind)
			}
			if ok && p.Name != tc.want {
				t.Fatalf("parameter = %s, want %s", p.Name, tc.want)
			}
		})
	}
}

func TestCategories(t *testing.T) {
	def, err := FromJSON([]byte(validDefinition))
	if err != nil {
		t.Fatal(err)
	}
	got := def.Categories()
	if len(got) != 1 || got[0] != "Engine/Idle" {
		t.Fatalf("Categories = %v, want [Engine/Idle]", got)
	}
}

func TestLabel(t *testing.T) {
	p := &Parameter{Name: "RAW", DisplayName: "Pretty"}
	if p.Label() != "Pretty" {
		t.Fatalf("Label = %q", p.Label())
	}
	p.DisplayName = ""
	if p.Label() != "RAW" {
		t.Fatalf("Label = %q", p.Label())
	}
	var nilParam *Parameter
	if nilParam.Label() != "" {
		t.Fatal("nil Label should be empty")
	}
}
