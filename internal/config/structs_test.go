package config

import (
	"encoding/json"
	"testing"

	"github.com/MeKo-Tech/codescan/internal/geometry"
	"gopkg.in/yaml.v3"
)

func TestConfigYAMLKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scanner.RegionOfInterest = &geometry.Rect{X: 1, Y: 2, Width: 3, Height: 4}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("yaml.Marshal() error: %v", err)
	}

	var raw map[string]map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("yaml.Unmarshal() error: %v", err)
	}
	for _, key := range []string{"code_types", "region_of_interest", "scan_mode", "target_fps", "scan_enabled", "scale_mode", "highlighting_enabled", "platform", "event_buffer"} {
		if _, ok := raw["scanner"][key]; !ok {
			t.Errorf("scanner.%s missing from YAML output", key)
		}
	}
}

func TestConfigYAMLOmitsEmptyRegion(t *testing.T) {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		t.Fatalf("yaml.Marshal() error: %v", err)
	}

	var back Config
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatalf("yaml.Unmarshal() error: %v", err)
	}
	if back.Scanner.RegionOfInterest != nil {
		t.Errorf("Expected nil region after round trip, got %+v", back.Scanner.RegionOfInterest)
	}
	if back.Scanner.ScaleMode != "cover" {
		t.Errorf("Expected scale mode 'cover', got %s", back.Scanner.ScaleMode)
	}
}

func TestConfigJSONUnmarshaling(t *testing.T) {
	jsonData := `{
		"log_level": "debug",
		"scanner": {
			"code_types": ["qr"],
			"region_of_interest": {"x": 5, "y": 6, "width": 7, "height": 8},
			"platform": "portrait-only"
		},
		"server": {"port": 9090}
	}`

	var cfg Config
	if err := json.Unmarshal([]byte(jsonData), &cfg); err != nil {
		t.Fatalf("json.Unmarshal() error: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.Server.Port != 9090 {
		t.Errorf("Unexpected globals: %+v", cfg)
	}
	if roi := cfg.Scanner.RegionOfInterest; roi == nil || *roi != (geometry.Rect{X: 5, Y: 6, Width: 7, Height: 8}) {
		t.Errorf("Unexpected region: %+v", roi)
	}
	if cfg.Scanner.Platform != "portrait-only" {
		t.Errorf("Unexpected platform: %s", cfg.Scanner.Platform)
	}
}

func TestScannerConfigCloneSharesNoMemory(t *testing.T) {
	orig := DefaultConfig().Scanner
	orig.CodeTypes = []string{"qr", "ean-13"}
	orig.RegionOfInterest = &geometry.Rect{Width: 100, Height: 100}

	clone := orig.Clone()
	if err := json.Unmarshal([]byte(`{"code_types":["code-128"],"region_of_interest":{"x":5,"y":5,"width":10,"height":10}}`), &clone); err != nil {
		t.Fatalf("json.Unmarshal() error: %v", err)
	}

	if len(orig.CodeTypes) != 2 || orig.CodeTypes[0] != "qr" {
		t.Errorf("Expected original code types [qr ean-13], got %v", orig.CodeTypes)
	}
	if *orig.RegionOfInterest != (geometry.Rect{Width: 100, Height: 100}) {
		t.Errorf("Expected original region unchanged, got %+v", *orig.RegionOfInterest)
	}
	if clone.CodeTypes[0] != "code-128" || clone.RegionOfInterest.X != 5 {
		t.Errorf("Expected clone to carry the decoded values, got %v %+v", clone.CodeTypes, *clone.RegionOfInterest)
	}

	var empty ScannerConfig
	if c := empty.Clone(); c.CodeTypes != nil || c.RegionOfInterest != nil {
		t.Errorf("Expected nil fields to stay nil, got %+v", c)
	}
}
