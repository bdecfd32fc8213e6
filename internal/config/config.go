// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aleopantest/aleopantest/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete aleopantest configuration.
type Config struct {
	Version string `toml:"version" json:"version" yaml:"version"`

	General      GeneralConfig      `toml:"general" json:"general" yaml:"general"`
	Session      SessionConfig      `toml:"session" json:"session" yaml:"session"`
	Orchestrator OrchestratorConfig `toml:"orchestrator" json:"orchestrator" yaml:"orchestrator"`
	Web          WebConfig          `toml:"web" json:"web" yaml:"web"`
	Server       ServerConfig       `toml:"server" json:"server" yaml:"server"`
	Redirect     RedirectConfig     `toml:"redirect" json:"redirect" yaml:"redirect"`
	Storage      StorageConfig      `toml:"storage" json:"storage" yaml:"storage"`
	UI           UIConfig           `toml:"ui" json:"ui" yaml:"ui"`
}

// GeneralConfig holds process-wide paths and logging.
type GeneralConfig struct {
	AppName   string `toml:"app_name" json:"app_name" yaml:"app_name"`
	LogLevel  string `toml:"log_level" json:"log_level" yaml:"log_level"`
	LogDir    string `toml:"log_dir" json:"log_dir" yaml:"log_dir"`
	OutputDir string `toml:"output_dir" json:"output_dir" yaml:"output_dir"`
	// Environment overrides detection when set (development, staging, production).
	Environment string `toml:"environment" json:"environment" yaml:"environment"`
}

// SessionConfig bounds one operator session.
type SessionConfig struct {
	QuotaSecs              int `toml:"quota_secs" json:"quota_secs" yaml:"quota_secs"`
	InteractiveDurationCap int `toml:"interactive_duration_cap" json:"interactive_duration_cap" yaml:"interactive_duration_cap"`
	// MaxThreads of 0 uses the platform suggestion.
	MaxThreads int `toml:"max_threads" json:"max_threads" yaml:"max_threads"`
}

// OrchestratorConfig is the retry policy.
type OrchestratorConfig struct {
	MaxRetries     int     `toml:"max_retries" json:"max_retries" yaml:"max_retries"`
	RetryDelaySecs float64 `toml:"retry_delay_secs" json:"retry_delay_secs" yaml:"retry_delay_secs"`
}

// WebConfig configures the browser frontend.
type WebConfig struct {
	Host           string   `toml:"host" json:"host" yaml:"host"`
	Port           int      `toml:"port" json:"port" yaml:"port"`
	RateLimit      float64  `toml:"rate_limit" json:"rate_limit" yaml:"rate_limit"` // requests per second per client
	RateBurst      int      `toml:"rate_burst" json:"rate_burst" yaml:"rate_burst"`
	UploadDir      string   `toml:"upload_dir" json:"upload_dir" yaml:"upload_dir"`
	MaxUploadMB    int      `toml:"max_upload_mb" json:"max_upload_mb" yaml:"max_upload_mb"`
	AllowedTypes   []string `toml:"allowed_types" json:"allowed_types" yaml:"allowed_types"`
	TrustedProxies []string `toml:"trusted_proxies" json:"trusted_proxies" yaml:"trusted_proxies"`
}

// ServerConfig configures the API-only server.
type ServerConfig struct {
	Host string `toml:"host" json:"host" yaml:"host"`
	Port int    `toml:"port" json:"port" yaml:"port"`
}

// RedirectConfig configures the shortener listener.
type RedirectConfig struct {
	Port      int    `toml:"port" json:"port" yaml:"port"`
	StorePath string `toml:"store_path" json:"store_path" yaml:"store_path"`
}

// StorageConfig selects the run history backend.
type StorageConfig struct {
	HistoryPath string `toml:"history_path" json:"history_path" yaml:"history_path"`
	InMemory    bool   `toml:"in_memory" json:"in_memory" yaml:"in_memory"`
}

// UIConfig holds terminal presentation settings.
type UIConfig struct {
	Theme   string `toml:"theme" json:"theme" yaml:"theme"`
	NoColor bool   `toml:"no_color" json:"no_color" yaml:"no_color"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with the built-in values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",
		General: GeneralConfig{
			AppName:   "aleopantest",
			LogLevel:  "info",
			LogDir:    "logs",
			OutputDir: "output",
		},
		Session: SessionConfig{
			QuotaSecs:              600,
			InteractiveDurationCap: 60,
		},
		Orchestrator: OrchestratorConfig{
			MaxRetries:     3,
			RetryDelaySecs: 2,
		},
		Web: WebConfig{
			Host:         "127.0.0.1",
			Port:         8002,
			RateLimit:    10,
			RateBurst:    20,
			UploadDir:    "uploads",
			MaxUploadMB:  16,
			AllowedTypes: []string{"png", "jpg", "jpeg", "gif", "pdf", "txt", "json", "csv"},
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 5000,
		},
		Redirect: RedirectConfig{
			Port:      8080,
			StorePath: filepath.Join("output", "url_shortener", "urls.json"),
		},
		Storage: StorageConfig{
			HistoryPath: filepath.Join("output", "history.db"),
		},
		UI: UIConfig{
			Theme: "dark",
		},
	}
}

// Quota returns the session quota as a duration.
func (c *Config) Quota() time.Duration {
	return time.Duration(c.Session.QuotaSecs) * time.Second
}

// RetryDelay returns the orchestrator retry delay as a duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Orchestrator.RetryDelaySecs * float64(time.Second))
}

// AuditLogPath is the append-only audit log inside the log directory.
func (c *Config) AuditLogPath() string {
	return filepath.Join(c.General.LogDir, "audit.log")
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// localNames are searched in the working directory before the home directory.
var localNames = []string{"aleopantest.toml", "aleopantest.json", "aleopantest.yaml", "aleopantest.yml"}

// ConfigDir returns the per-user configuration directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".aleopantest"), nil
}

// ConfigPathTOML returns the per-user TOML config path.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Candidates lists config files in lookup order.
func Candidates() []string {
	out := append([]string(nil), localNames...)
	if dir, err := ConfigDir(); err == nil {
		for _, name := range []string{"config.toml", "config.json", "config.yaml", "config.yml"} {
			out = append(out, filepath.Join(dir, name))
		}
	}
	return out
}

// ensureSecurePermissions narrows a config file to owner read/write.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads .env, then the first existing candidate file, then applies
// environment overrides, defaults and validation. With no file the
// defaults are returned.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit file. An empty path searches Candidates.
func LoadFrom(path string) (*Config, error) {
	loadDotEnv()

	cfg := Default()
	if path == "" {
		for _, c := range Candidates() {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}
	if path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.Migrate()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadDotEnv reads ./.env when present. Existing variables win.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env: %v\n", err)
	}
}

// LoadFile decodes path into cfg, choosing the format by extension
// (.json, .yaml/.yml, anything else TOML).
func LoadFile(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(cfg, path)
	case ".yaml", ".yml":
		return LoadYAML(cfg, path)
	default:
		return LoadTOML(cfg, path)
	}
}

// LoadTOML decodes a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %v\n", path, undecoded)
	}
	return nil
}

// LoadJSON decodes a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file %s: %w", path, err)
	}
	return nil
}

// LoadYAML decodes a YAML file into cfg.
func LoadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read YAML file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode YAML file %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the per-user TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with owner-only permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# aleopantest configuration file")
	fmt.Fprintln(&buf, "# Generated by aleopantest - edit with care")
	fmt.Fprintln(&buf)
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg as indented JSON with owner-only permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validLogLevels = map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}

var validEnvironments = map[string]bool{"": true, "development": true, "staging": true, "production": true}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !validLogLevels[strings.ToLower(c.General.LogLevel)] {
		add("general.log_level", "invalid level '%s', must be one of: debug, info, warn, error", c.General.LogLevel)
	}
	if !validEnvironments[strings.ToLower(c.General.Environment)] {
		add("general.environment", "invalid environment '%s', must be one of: development, staging, production", c.General.Environment)
	}

	if c.Session.QuotaSecs < 1 {
		add("session.quota_secs", "must be at least 1 second, got %d", c.Session.QuotaSecs)
	}
	if c.Session.InteractiveDurationCap < 1 || c.Session.InteractiveDurationCap > 3600 {
		add("session.interactive_duration_cap", "must be between 1 and 3600 seconds, got %d", c.Session.InteractiveDurationCap)
	}
	if c.Session.MaxThreads < 0 {
		add("session.max_threads", "cannot be negative")
	}

	if c.Orchestrator.MaxRetries < 1 || c.Orchestrator.MaxRetries > 10 {
		add("orchestrator.max_retries", "must be between 1 and 10, got %d", c.Orchestrator.MaxRetries)
	}
	if c.Orchestrator.RetryDelaySecs < 0 {
		add("orchestrator.retry_delay_secs", "cannot be negative")
	}

	for field, port := range map[string]int{"web.port": c.Web.Port, "server.port": c.Server.Port, "redirect.port": c.Redirect.Port} {
		if port < 1 || port > 65535 {
			add(field, "port %d out of range 1-65535", port)
		}
	}
	if c.Web.RateLimit <= 0 {
		add("web.rate_limit", "must be positive")
	}
	if c.Web.MaxUploadMB < 1 || c.Web.MaxUploadMB > 1024 {
		add("web.max_upload_mb", "must be between 1 and 1024, got %d", c.Web.MaxUploadMB)
	}
	for _, p := range c.Web.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				add("web.trusted_proxies", "'%s' is not an IP or CIDR", p)
			}
		}
	}

	if c.UI.Theme != "dark" && c.UI.Theme != "light" {
		add("ui.theme", "invalid theme '%s', must be one of: dark, light", c.UI.Theme)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero-valued settings from Default.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.General.AppName == "" {
		c.General.AppName = d.General.AppName
	}
	if c.General.LogLevel == "" {
		c.General.LogLevel = d.General.LogLevel
	}
	if c.General.LogDir == "" {
		c.General.LogDir = d.General.LogDir
	}
	if c.General.OutputDir == "" {
		c.General.OutputDir = d.General.OutputDir
	}

	if c.Session.QuotaSecs == 0 {
		c.Session.QuotaSecs = d.Session.QuotaSecs
	}
	if c.Session.InteractiveDurationCap == 0 {
		c.Session.InteractiveDurationCap = d.Session.InteractiveDurationCap
	}
	if c.Orchestrator.MaxRetries == 0 {
		c.Orchestrator.MaxRetries = d.Orchestrator.MaxRetries
	}

	if c.Web.Host == "" {
		c.Web.Host = d.Web.Host
	}
	if c.Web.Port == 0 {
		c.Web.Port = d.Web.Port
	}
	if c.Web.RateLimit == 0 {
		c.Web.RateLimit = d.Web.RateLimit
	}
	if c.Web.RateBurst == 0 {
		c.Web.RateBurst = d.Web.RateBurst
	}
	if c.Web.UploadDir == "" {
		c.Web.UploadDir = d.Web.UploadDir
	}
	if c.Web.MaxUploadMB == 0 {
		c.Web.MaxUploadMB = d.Web.MaxUploadMB
	}
	if len(c.Web.AllowedTypes) == 0 {
		c.Web.AllowedTypes = d.Web.AllowedTypes
	}

	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Redirect.Port == 0 {
		c.Redirect.Port = d.Redirect.Port
	}
	if c.Redirect.StorePath == "" {
		c.Redirect.StorePath = filepath.Join(c.General.OutputDir, "url_shortener", "urls.json")
	}
	if c.Storage.HistoryPath == "" {
		c.Storage.HistoryPath = filepath.Join(c.General.OutputDir, "history.db")
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
}

// Migrate normalizes legacy spellings.
func (c *Config) Migrate() {
	c.General.LogLevel = strings.ToLower(strings.TrimSpace(c.General.LogLevel))
	switch strings.ToLower(c.General.Environment) {
	case "dev":
		c.General.Environment = "development"
	case "prod":
		c.General.Environment = "production"
	default:
		c.General.Environment = strings.ToLower(c.General.Environment)
	}
	for i, t := range c.Web.AllowedTypes {
		c.Web.AllowedTypes[i] = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "."))
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - ALEO_ENV: general.environment
//   - ALEO_LOG_LEVEL: general.log_level
//   - ALEO_LOG_DIR: general.log_dir
//   - ALEO_OUTPUT_DIR: general.output_dir
//   - ALEO_QUOTA: session.quota_secs
//   - ALEO_WEB_HOST, ALEO_WEB_PORT: web listener
//   - ALEO_SERVER_PORT: server.port
//   - ALEO_REDIRECT_PORT: redirect.port
//   - ALEO_HISTORY_DB: storage.history_path
//   - ALEO_NO_COLOR or NO_COLOR: ui.no_color
func (c *Config) ApplyEnvOverrides() {
	str := map[string]*string{
		"ALEO_ENV":        &c.General.Environment,
		"ALEO_LOG_LEVEL":  &c.General.LogLevel,
		"ALEO_LOG_DIR":    &c.General.LogDir,
		"ALEO_OUTPUT_DIR": &c.General.OutputDir,
		"ALEO_WEB_HOST":   &c.Web.Host,
		"ALEO_HISTORY_DB": &c.Storage.HistoryPath,
	}
	for name, dst := range str {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"ALEO_QUOTA":         &c.Session.QuotaSecs,
		"ALEO_WEB_PORT":      &c.Web.Port,
		"ALEO_SERVER_PORT":   &c.Server.Port,
		"ALEO_REDIRECT_PORT": &c.Redirect.Port,
	}
	for name, dst := range ints {
		v := strings.TrimSpace(os.Getenv(name))
		if v == "" {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		} else {
			fmt.Fprintf(os.Stderr, "Warning: ignoring %s=%q: not an integer\n", name, v)
		}
	}

	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		c.UI.NoColor = true
	}
	if v := os.Getenv("ALEO_NO_COLOR"); v != "" {
		c.UI.NoColor = v == "1" || strings.EqualFold(v, "true")
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a value using dot notation (e.g. "web.port").
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value using dot notation, converting strings as needed.
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		name := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(n string) bool { return strings.EqualFold(n, name) })
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts snake_case or kebab-case to the Go field name.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' })
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(strings.ToLower(p[1:]))
	}
	return b.String()
}

func setFieldValue(field reflect.Value, value any) error {
	if s, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(s)
			return nil
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(n)
			return nil
		case reflect.Float64:
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(f)
			return nil
		case reflect.Bool:
			field.SetBool(s == "1" || strings.EqualFold(s, "true") || strings.EqualFold(s, "yes"))
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				items := []string{}
				for _, item := range strings.Split(s, ",") {
					if item = strings.TrimSpace(item); item != "" {
						items = append(items, item)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns every configuration key in dot notation.
func GetAllKeys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
			if name == "" || name == "-" {
				continue
			}
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, prefix+name+".")
				continue
			}
			keys = append(keys, prefix+name)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	return keys
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Web.AllowedTypes = append([]string(nil), c.Web.AllowedTypes...)
	clone.Web.TrustedProxies = append([]string(nil), c.Web.TrustedProxies...)
	return &clone
}

// String renders the config as indented JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the process configuration, loading it on first access.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal replaces the process configuration.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting clears the singleton between tests.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
