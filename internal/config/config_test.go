package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func TestSetLogger(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.InfoLevel)
	SetLogger(logger)
}

func TestApplyDefaults(t *testing.T) {
	t.Run("Config struct defaults", func(t *testing.T) {
		config := &Config{}
		applyDefaults(config)

		if config.Site.Name != "Notebook" {
			t.Errorf("Expected site name 'Notebook', got %q", config.Site.Name)
		}
		if config.Server.Port != "4567" {
			t.Errorf("Expected port '4567', got %q", config.Server.Port)
		}
		if !config.Server.LiveReload {
			t.Error("Expected live reload to be enabled by default")
		}
		if config.Content.SourceDir != "source" || config.Content.OutputDir != "build" {
			t.Errorf("Unexpected content dirs %q -> %q", config.Content.SourceDir, config.Content.OutputDir)
		}
		if config.Content.Renderer != RendererMmark {
			t.Errorf("Expected renderer %q, got %q", RendererMmark, config.Content.Renderer)
		}
		if config.Content.Drafts {
			t.Error("Expected drafts to be excluded by default")
		}

		if config.Callouts.TriggerAttribute != "data-expand" {
			t.Errorf("Expected trigger attribute 'data-expand', got %q", config.Callouts.TriggerAttribute)
		}
		if config.Callouts.SourceSelector != "[data-expand-source]" {
			t.Errorf("Expected source selector '[data-expand-source]', got %q", config.Callouts.SourceSelector)
		}
		if config.Callouts.SlotSelector != "[data-expansion]" {
			t.Errorf("Expected slot selector '[data-expansion]', got %q", config.Callouts.SlotSelector)
		}
		if config.Callouts.NoteClass != "callout-note" || config.Callouts.TriggerClass != "callout-trigger" {
			t.Errorf("Unexpected callout classes %q %q", config.Callouts.NoteClass, config.Callouts.TriggerClass)
		}

		if config.Build.Workers != 4 {
			t.Errorf("Expected 4 workers, got %d", config.Build.Workers)
		}
		if !config.Build.Compress || !config.Build.Incremental {
			t.Error("Expected compression and incremental builds to be enabled")
		}
		if config.Publish.Region != "auto" {
			t.Errorf("Expected publish region 'auto', got %q", config.Publish.Region)
		}

		expectedKeywords := []string{"blog", "notes", "personal"}
		if !reflect.DeepEqual(config.Meta.Keywords, expectedKeywords) {
			t.Errorf("Expected keywords %v, got %v", expectedKeywords, config.Meta.Keywords)
		}
		if config.Logging.Level != "info" {
			t.Errorf("Expected logging level 'info', got %q", config.Logging.Level)
		}
	})

	t.Run("Custom struct with various field types", func(t *testing.T) {
		type TestStruct struct {
			Name    string   `default:"name"`
			Enabled bool     `default:"true"`
			Count   int      `default:"7"`
			Ratio   float64  `default:"0.5"`
			Tags    []string `default:"x,y"`
			Plain   string
		}

		test := &TestStruct{}
		applyDefaults(test)

		if test.Name != "name" || !test.Enabled || test.Count != 7 || test.Ratio != 0.5 {
			t.Errorf("Scalar defaults not applied: %+v", test)
		}
		if !reflect.DeepEqual(test.Tags, []string{"x", "y"}) {
			t.Errorf("Expected tags [x y], got %v", test.Tags)
		}
		if test.Plain != "" {
			t.Errorf("Expected untagged field to stay empty, got %q", test.Plain)
		}
	})

	t.Run("Invalid default values", func(t *testing.T) {
		type InvalidStruct struct {
			BadBool bool `default:"maybe"`
			BadInt  int  `default:"many"`
		}

		test := &InvalidStruct{}
		applyDefaults(test)

		if test.BadBool || test.BadInt != 0 {
			t.Errorf("Expected invalid defaults to leave zero values, got %+v", test)
		}
	})

	t.Run("Non-struct input", func(t *testing.T) {
		s := "test"
		applyDefaults(&s)
		applyDefaults(s)
		applyDefaults(nil)
	})

	t.Run("Existing slice is kept", func(t *testing.T) {
		type TestStruct struct {
			Items []string `default:"a,b"`
		}

		test := &TestStruct{Items: []string{"kept"}}
		applyDefaults(test)

		if !reflect.DeepEqual(test.Items, []string{"kept"}) {
			t.Errorf("Expected existing items to be preserved, got %v", test.Items)
		}
	})
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected defaults to validate, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"classic renderer", func(c *Config) { c.Content.Renderer = RendererClassic }, ""},
		{"unknown renderer", func(c *Config) { c.Content.Renderer = "kramdown" }, "unsupported markdown renderer"},
		{"zero workers", func(c *Config) { c.Build.Workers = 0 }, "build.workers"},
		{"missing output dir", func(c *Config) { c.Content.OutputDir = "" }, "output_dir"},
		{"absolute base url", func(c *Config) { c.Site.BaseURL = "https://notes.example.com" }, ""},
		{"relative base url", func(c *Config) { c.Site.BaseURL = "notes.example.com/blog" }, "site.base_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	SetLogger(zerolog.New(os.Stdout).Level(zerolog.ErrorLevel))

	write := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}
		return path
	}

	t.Run("Load non-existent config file", func(t *testing.T) {
		originalAppConfig := AppConfig
		defer func() { AppConfig = originalAppConfig }()

		if err := LoadConfig("non-existent-config.yaml"); err != nil {
			t.Errorf("Expected no error for non-existent config file, got %v", err)
		}
		if AppConfig == nil {
			t.Fatal("Expected AppConfig to be set with defaults")
		}
		if AppConfig.Site.Name != "Notebook" {
			t.Errorf("Expected default site name, got %q", AppConfig.Site.Name)
		}
	})

	t.Run("Partial config with defaults", func(t *testing.T) {
		originalAppConfig := AppConfig
		defer func() { AppConfig = originalAppConfig }()

		path := write(t, `
site:
  name: "Reading Notes"
content:
  renderer: classic
callouts:
  slot_selector: "#panel"
build:
  workers: 2
  compress: false
`)
		if err := LoadConfig(path); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		if AppConfig.Site.Name != "Reading Notes" {
			t.Errorf("Expected site name from file, got %q", AppConfig.Site.Name)
		}
		if AppConfig.Content.Renderer != RendererClassic {
			t.Errorf("Expected classic renderer, got %q", AppConfig.Content.Renderer)
		}
		if AppConfig.Callouts.SlotSelector != "#panel" {
			t.Errorf("Expected slot selector from file, got %q", AppConfig.Callouts.SlotSelector)
		}
		if AppConfig.Callouts.TriggerAttribute != "data-expand" {
			t.Errorf("Expected default trigger attribute to survive, got %q", AppConfig.Callouts.TriggerAttribute)
		}
		if AppConfig.Build.Workers != 2 || AppConfig.Build.Compress {
			t.Errorf("Unexpected build section %+v", AppConfig.Build)
		}
		if !AppConfig.Build.Incremental {
			t.Error("Expected default incremental flag to survive")
		}
	})

	t.Run("Load invalid YAML file", func(t *testing.T) {
		originalAppConfig := AppConfig
		defer func() { AppConfig = originalAppConfig }()

		path := write(t, "site:\n  name: [unclosed\n")
		err := LoadConfig(path)
		if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
			t.Errorf("Expected parse error, got %v", err)
		}
	})

	t.Run("Reject invalid values", func(t *testing.T) {
		originalAppConfig := AppConfig
		defer func() { AppConfig = originalAppConfig }()

		path := write(t, "build:\n  workers: -1\n")
		if err := LoadConfig(path); err == nil {
			t.Error("Expected validation error for negative workers")
		}
	})
}

// The golden file is what cmd/generate-config writes for a fresh checkout.
func TestConfigDefaultsGoldenFile(t *testing.T) {
	goldenData, err := os.ReadFile("testdata/defaults.yaml")
	if err != nil {
		t.Fatalf("Failed to read golden defaults file: %v", err)
	}

	var golden Config
	if err := yaml.Unmarshal(goldenData, &golden); err != nil {
		t.Fatalf("Failed to parse golden config: %v", err)
	}

	if got := Default(); !reflect.DeepEqual(*got, golden) {
		t.Errorf("Defaults drifted from testdata/defaults.yaml:\n got %+v\nwant %+v", *got, golden)
	}
}

func TestConstants(t *testing.T) {
	if StaticURLPath != "/static/" {
		t.Errorf("Expected StaticURLPath '/static/', got %q", StaticURLPath)
	}
	if !RegexCodeCallout.MatchString("x := 1 // <<1>>") {
		t.Error("Expected code callout marker to match")
	}
	if RegexCodeCallout.MatchString("[!note:a]") {
		t.Error("Annotation blocks are not code callouts")
	}
}
