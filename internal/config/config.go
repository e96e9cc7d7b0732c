package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

// Config represents the complete configuration structure
type Config struct {
	Site     SiteConfig    `yaml:"site"`
	Server   ServerConfig  `yaml:"server"`
	Theme    ThemeConfig   `yaml:"theme"`
	Content  ContentConfig `yaml:"content"`
	Callouts CalloutConfig `yaml:"callouts"`
	Build    BuildConfig   `yaml:"build"`
	Publish  PublishConfig `yaml:"publish"`
	Meta     MetaConfig    `yaml:"meta"`
	Logging  LoggingConfig `yaml:"logging"`
}

type LoggingConfig struct {
	Level string `yaml:"level" default:"info"`
}

type SiteConfig struct {
	Name        string `yaml:"name" default:"Notebook"`
	Description string `yaml:"description" default:"Notes, essays and annotated reading"`
	Tagline     string `yaml:"tagline" default:"Hover the marked words to expand them"`
	// Absolute address the site is published at. The feed is only
	// written when it is set.
	BaseURL     string `yaml:"base_url" default:""`
	FeedEntries int    `yaml:"feed_entries" default:"20"`
}

type ServerConfig struct {
	Host       string `yaml:"host" default:"127.0.0.1"`
	Port       string `yaml:"port" default:"4567"`
	LiveReload bool   `yaml:"live_reload" default:"true"`
}

type ThemeConfig struct {
	Default            string       `yaml:"default" default:"dark"`
	SyntaxHighlighting SyntaxConfig `yaml:"syntax_highlighting"`
}

type SyntaxConfig struct {
	DefaultDark  string `yaml:"default_dark" default:"gruvbox"`
	DefaultLight string `yaml:"default_light" default:"catppuccin-latte"`
}

type ContentConfig struct {
	SourceDir string `yaml:"source_dir" default:"source"`
	OutputDir string `yaml:"output_dir" default:"build"`
	Renderer  string `yaml:"renderer" default:"mmark"`
	Drafts    bool   `yaml:"drafts" default:"false"`
}

// CalloutConfig ties the generated fragments to the expansion controller.
// The same attribute names are used by the Go controller and static/expand.js.
type CalloutConfig struct {
	NoteClass        string `yaml:"note_class" default:"callout-note"`
	TriggerClass     string `yaml:"trigger_class" default:"callout-trigger"`
	TriggerAttribute string `yaml:"trigger_attribute" default:"data-expand"`
	SourceSelector   string `yaml:"source_selector" default:"[data-expand-source]"`
	SlotSelector     string `yaml:"slot_selector" default:"[data-expansion]"`
	WrapperClass     string `yaml:"wrapper_class" default:"expansion"`
	// Fail the build when a trigger points at a missing fragment.
	Strict bool `yaml:"strict" default:"false"`
}

type BuildConfig struct {
	Workers      int    `yaml:"workers" default:"4"`
	Compress     bool   `yaml:"compress" default:"true"`
	Incremental  bool   `yaml:"incremental" default:"true"`
	ManifestPath string `yaml:"manifest_path" default:"build.db"`
}

// PublishConfig describes the S3-compatible bucket the site is uploaded to.
// Credentials come from the environment (S3_ACCESS_KEY_ID, S3_SECRET_ACCESS_KEY).
type PublishConfig struct {
	Bucket   string `yaml:"bucket" default:""`
	Endpoint string `yaml:"endpoint" default:""`
	Region   string `yaml:"region" default:"auto"`
	Prefix   string `yaml:"prefix" default:""`
}

type MetaConfig struct {
	Author   string   `yaml:"author" default:""`
	Keywords []string `yaml:"keywords" default:"blog,notes,personal"`
	Favicon  string   `yaml:"favicon" default:"/static/favicon.ico"`
}

var AppConfig *Config

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func LoadConfig(path string) error {
	config := &Config{}

	// Apply default values first
	applyDefaults(config)

	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, just use defaults
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
		AppConfig = config
		return nil
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}

	AppConfig = config
	return nil
}

func (c *Config) Validate() error {
	switch c.Content.Renderer {
	case RendererMmark, RendererClassic:
	default:
		return fmt.Errorf("unsupported markdown renderer %q", c.Content.Renderer)
	}
	if c.Build.Workers < 1 {
		return fmt.Errorf("build.workers must be positive, got %d", c.Build.Workers)
	}
	if c.Content.SourceDir == "" || c.Content.OutputDir == "" {
		return fmt.Errorf("content.source_dir and content.output_dir are required")
	}
	if c.Site.BaseURL != "" {
		u, err := url.Parse(c.Site.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("site.base_url must be an absolute URL, got %q", c.Site.BaseURL)
		}
	}
	return nil
}

func ApplyDefaults(config interface{}) {
	applyDefaults(config)
}

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		// Recursively apply defaults to nested structs
		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}
