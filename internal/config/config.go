/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads the scriptcast configuration: a YAML file in the user
// scope, SC_* environment overrides and secrets from the OS keyring.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// PipelineConfig holds every tunable threshold of the ingestion pipeline.
type PipelineConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" validate:"gt=0,lte=1"`
	HeaderMinLines      int     `yaml:"header_min_lines" validate:"gte=1"`
	HeaderRepeatRatio   float64 `yaml:"header_repeat_ratio" validate:"gt=0,lte=1"`
	HeaderRepeatMin     int     `yaml:"header_repeat_min" validate:"gte=1"`
	WrapMaxLength       int     `yaml:"wrap_max_length" validate:"gte=1"`
	DocxMinTableRows    int     `yaml:"docx_min_table_rows" validate:"gte=1"`
	PDFMinColumns       int     `yaml:"pdf_min_columns" validate:"gte=2"`
	PDFMinRows          int     `yaml:"pdf_min_rows" validate:"gte=1"`
	TabularLineRatio    float64 `yaml:"tabular_line_ratio" validate:"gt=0,lte=1"`
	CenteredCapsRatio   float64 `yaml:"centered_caps_ratio" validate:"gt=0,lte=1"`
	StandaloneCapsRatio float64 `yaml:"standalone_caps_ratio" validate:"gt=0,lte=1"`
	MaxTabularRows      int     `yaml:"max_tabular_rows" validate:"gte=1"`
	MaxPDFPages         int     `yaml:"max_pdf_pages" validate:"gte=1"`
	RecentCharacters    int     `yaml:"recent_characters" validate:"gte=1"`
	MaxConflicts        int     `yaml:"max_conflicts" validate:"gte=0"`
	// Workers > 1 extracts and parses files concurrently; results are still merged in input order.
	Workers int `yaml:"workers" validate:"gte=1,lte=64"`
}

// StorageConfig selects the persistence adapter. For sqlite the DSN is a file path.
// A postgres DSN is not written to disk; it lives in the OS keyring.
type StorageConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite pgx"`
	DSN    string `yaml:"dsn,omitempty"`
}

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"oneof=console json"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// AppConfig is the user-editable configuration.
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int            `yaml:"config_version" validate:"gte=1"`
	General       GeneralConfig  `yaml:"general"`
	Pipeline      PipelineConfig `yaml:"pipeline"`
	Storage       StorageConfig  `yaml:"storage"`
	Logging       LoggingConfig  `yaml:"logging"`
}

// DefaultPipeline returns the stock thresholds.
func DefaultPipeline() PipelineConfig {
	return PipelineConfig{
		SimilarityThreshold: 0.75,
		HeaderMinLines:      30,
		HeaderRepeatRatio:   0.15,
		HeaderRepeatMin:     5,
		WrapMaxLength:       60,
		DocxMinTableRows:    5,
		PDFMinColumns:       3,
		PDFMinRows:          10,
		TabularLineRatio:    0.5,
		CenteredCapsRatio:   0.05,
		StandaloneCapsRatio: 0.10,
		MaxTabularRows:      1000,
		MaxPDFPages:         50,
		RecentCharacters:    15,
		MaxConflicts:        100,
		Workers:             1,
	}
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Pipeline:      DefaultPipeline(),
		Storage:       StorageConfig{Driver: "sqlite", DSN: "scriptcast.sqlite"},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath          = "SC_CONFIG"
	EnvTelemetryOptIn      = "SC_TELEMETRY_OPT_IN"
	EnvSimilarityThreshold = "SC_SIMILARITY_THRESHOLD"
	EnvWorkers             = "SC_WORKERS"
	EnvStorageDriver       = "SC_STORAGE_DRIVER"
	EnvStorageDSN          = "SC_STORAGE_DSN"
	EnvLogLevel            = "SC_LOG_LEVEL"
	EnvLogFormat           = "SC_LOG_FORMAT"
	EnvLogSource           = "SC_LOG_SOURCE"
	EnvLogFile             = "SC_LOG_FILE"
)

const (
	keyringService = "ScriptCast"
	keyringDSN     = "postgres_dsn"
)

// SecretStore abstracts the OS keyring so tests can stub it.
type SecretStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error { return keyring.Delete(service, key) }

var secretStore SecretStore = osKeyring{}

// ConfigPath returns the per-user config file path, honoring SC_CONFIG.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "ScriptCast")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "ScriptCast")
	default:
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "scriptcast")
		} else if h := os.Getenv("HOME"); h != "" {
			base = filepath.Join(h, ".config", "scriptcast")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the config file at path (ConfigPath when empty), applies
// defaults and environment overrides, resolves the postgres DSN from the
// keyring when needed and validates the result. A missing file is not an error.
func Load(path string) (AppConfig, error) {
	cfg := Defaults()
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	if cfg.Storage.Driver == "pgx" && cfg.Storage.DSN == "" {
		dsn, err := secretStore.Get(keyringService, keyringDSN)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return cfg, fmt.Errorf("read postgres dsn from keyring: %w", err)
		}
		cfg.Storage.DSN = dsn
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg as YAML to path (ConfigPath when empty). A postgres DSN is
// moved into the OS keyring instead of the file.
func Save(path string, cfg AppConfig) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if cfg.Storage.Driver == "pgx" && cfg.Storage.DSN != "" {
		if err := secretStore.Set(keyringService, keyringDSN, cfg.Storage.DSN); err != nil {
			return fmt.Errorf("store postgres dsn: %w", err)
		}
		cfg.Storage.DSN = ""
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks field constraints and reports every violation in one error.
func Validate(cfg AppConfig) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "AppConfig.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: must satisfy %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn

	p, s := &dst.Pipeline, src.Pipeline
	mergeFloat(&p.SimilarityThreshold, s.SimilarityThreshold)
	mergeInt(&p.HeaderMinLines, s.HeaderMinLines)
	mergeFloat(&p.HeaderRepeatRatio, s.HeaderRepeatRatio)
	mergeInt(&p.HeaderRepeatMin, s.HeaderRepeatMin)
	mergeInt(&p.WrapMaxLength, s.WrapMaxLength)
	mergeInt(&p.DocxMinTableRows, s.DocxMinTableRows)
	mergeInt(&p.PDFMinColumns, s.PDFMinColumns)
	mergeInt(&p.PDFMinRows, s.PDFMinRows)
	mergeFloat(&p.TabularLineRatio, s.TabularLineRatio)
	mergeFloat(&p.CenteredCapsRatio, s.CenteredCapsRatio)
	mergeFloat(&p.StandaloneCapsRatio, s.StandaloneCapsRatio)
	mergeInt(&p.MaxTabularRows, s.MaxTabularRows)
	mergeInt(&p.MaxPDFPages, s.MaxPDFPages)
	mergeInt(&p.RecentCharacters, s.RecentCharacters)
	mergeInt(&p.MaxConflicts, s.MaxConflicts)
	mergeInt(&p.Workers, s.Workers)

	if v := strings.TrimSpace(src.Storage.Driver); v != "" {
		dst.Storage.Driver = strings.ToLower(v)
		// a file that switches drivers must not inherit the sqlite default path
		dst.Storage.DSN = ""
	}
	if v := strings.TrimSpace(src.Storage.DSN); v != "" {
		dst.Storage.DSN = v
	}

	if v := strings.TrimSpace(src.Logging.Level); v != "" {
		dst.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Logging.Format); v != "" {
		dst.Logging.Format = strings.ToLower(v)
	}
	dst.Logging.Source = src.Logging.Source
	if v := strings.TrimSpace(src.Logging.File); v != "" {
		dst.Logging.File = v
	}
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func mergeFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvSimilarityThreshold)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pipeline.SimilarityThreshold = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvWorkers)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Workers = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageDriver)); v != "" {
		if d := strings.ToLower(v); d != cfg.Storage.Driver {
			cfg.Storage.Driver = d
			cfg.Storage.DSN = ""
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageDSN)); v != "" {
		cfg.Storage.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by the environment.
func EnvOverrideFor(key string) (string, bool) {
	names := map[string]string{
		"general.telemetry_opt_in":      EnvTelemetryOptIn,
		"pipeline.similarity_threshold": EnvSimilarityThreshold,
		"pipeline.workers":              EnvWorkers,
		"storage.driver":                EnvStorageDriver,
		"storage.dsn":                   EnvStorageDSN,
		"logging.level":                 EnvLogLevel,
		"logging.format":                EnvLogFormat,
		"logging.source":                EnvLogSource,
		"logging.file":                  EnvLogFile,
	}
	env, ok := names[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}
