package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultLogLevel         = "info"
	DefaultGatewayListenURL = "http://127.0.0.1:3000"
	DefaultGatewayMount     = "/api/backend"
	DefaultBackendURL       = "http://127.0.0.1:8000"
	DefaultIdentityHeader   = "userid"
	DefaultSessionName      = "chatgate-session"
	DefaultDBFileName       = ".chatgate.db"
	DefaultSignedURLTTL     = time.Hour
	DefaultResolveTimeout   = 5 * time.Second

	DefaultMaxUploadBytes  int64 = 100 * 1024 * 1024
	DefaultMultipartMemory int64 = 8 * 1024 * 1024

	configFileName           = ".chatgate.toml"
	envFileName              = ".env"
	configDirEnvKey          = "CHATGATE_CONFIG_DIR"
	trustProjectConfigEnvKey = "CHATGATE_TRUST_PROJECT_CONFIG"
)

// Duration is a time.Duration stored as a Go duration string in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText renders the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// GatewayConfig configures the transparent gateway.
type GatewayConfig struct {
	ListenURL           string `toml:"listen_url"`
	MountPrefix         string `toml:"mount_prefix"`
	BackendURL          string `toml:"backend_url"`
	ServiceUsername     string `toml:"service_username"`
	ServicePassword     string `toml:"service_password"`
	IdentityHeader      string `toml:"identity_header"`
	SessionSecret       string `toml:"session_secret"`
	SessionName         string `toml:"session_name"`
	TrustInboundHeaders bool   `toml:"trust_inbound_headers"`
}

// BackendConfig configures the reference backend service.
type BackendConfig struct {
	ListenURL           string   `toml:"listen_url"`
	DBPath              string   `toml:"db_path"`
	BlobRoot            string   `toml:"blob_root"`
	PublicURL           string   `toml:"public_url"`
	SigningSecret       string   `toml:"signing_secret"`
	SignedURLTTL        Duration `toml:"signed_url_ttl"`
	ResolveTimeout      Duration `toml:"resolve_timeout"`
	ServiceUsername     string   `toml:"service_username"`
	ServicePasswordHash string   `toml:"service_password_hash"`
	IdentityHeader      string   `toml:"identity_header"`
	MaxUploadBytes      int64    `toml:"max_upload_bytes"`
	MultipartMaxMemory  int64    `toml:"multipart_max_memory"`
}

// Config defines runtime configuration for chatgate.
type Config struct {
	LogLevel                 string        `toml:"log_level"`
	Gateway                  GatewayConfig `toml:"gateway"`
	Backend                  BackendConfig `toml:"backend"`
	TrustedProjectConfigPath string        `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Gateway: GatewayConfig{
			ListenURL:      DefaultGatewayListenURL,
			MountPrefix:    DefaultGatewayMount,
			BackendURL:     DefaultBackendURL,
			IdentityHeader: DefaultIdentityHeader,
			SessionName:    DefaultSessionName,
		},
		Backend: BackendConfig{
			ListenURL:          DefaultBackendURL,
			SignedURLTTL:       Duration{DefaultSignedURLTTL},
			ResolveTimeout:     Duration{DefaultResolveTimeout},
			IdentityHeader:     DefaultIdentityHeader,
			MaxUploadBytes:     DefaultMaxUploadBytes,
			MultipartMaxMemory: DefaultMultipartMemory,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"log_level",
	"gateway.listen_url",
	"gateway.mount_prefix",
	"gateway.backend_url",
	"gateway.service_username",
	"gateway.service_password",
	"gateway.identity_header",
	"gateway.session_secret",
	"gateway.session_name",
	"gateway.trust_inbound_headers",
	"backend.listen_url",
	"backend.db_path",
	"backend.blob_root",
	"backend.public_url",
	"backend.signing_secret",
	"backend.signed_url_ttl",
	"backend.resolve_timeout",
	"backend.service_username",
	"backend.service_password_hash",
	"backend.identity_header",
	"backend.max_upload_bytes",
	"backend.multipart_max_memory",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "log_level":
		return c.LogLevel, nil
	case "gateway.listen_url":
		return c.Gateway.ListenURL, nil
	case "gateway.mount_prefix":
		return c.Gateway.MountPrefix, nil
	case "gateway.backend_url":
		return c.Gateway.BackendURL, nil
	case "gateway.service_username":
		return c.Gateway.ServiceUsername, nil
	case "gateway.service_password":
		return c.Gateway.ServicePassword, nil
	case "gateway.identity_header":
		return c.Gateway.IdentityHeader, nil
	case "gateway.session_secret":
		return c.Gateway.SessionSecret, nil
	case "gateway.session_name":
		return c.Gateway.SessionName, nil
	case "gateway.trust_inbound_headers":
		return strconv.FormatBool(c.Gateway.TrustInboundHeaders), nil
	case "backend.listen_url":
		return c.Backend.ListenURL, nil
	case "backend.db_path":
		return c.Backend.DBPath, nil
	case "backend.blob_root":
		return c.Backend.BlobRoot, nil
	case "backend.public_url":
		return c.Backend.PublicURL, nil
	case "backend.signing_secret":
		return c.Backend.SigningSecret, nil
	case "backend.signed_url_ttl":
		return c.Backend.SignedURLTTL.String(), nil
	case "backend.resolve_timeout":
		return c.Backend.ResolveTimeout.String(), nil
	case "backend.service_username":
		return c.Backend.ServiceUsername, nil
	case "backend.service_password_hash":
		return c.Backend.ServicePasswordHash, nil
	case "backend.identity_header":
		return c.Backend.IdentityHeader, nil
	case "backend.max_upload_bytes":
		return strconv.FormatInt(c.Backend.MaxUploadBytes, 10), nil
	case "backend.multipart_max_memory":
		return strconv.FormatInt(c.Backend.MultipartMaxMemory, 10), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load loads .env, reads config from trusted files, and applies env overrides.
func Load() (*Config, error) {
	if err := loadDotEnv(envFileName); err != nil {
		return nil, err
	}

	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	return &cfg, nil
}

// loadDotEnv loads path into the process environment without overriding existing vars.
func loadDotEnv(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		key    string
		target *string
	}{
		{"CHATGATE_GATEWAY_BACKEND_URL", &c.Gateway.BackendURL},
		{"CHATGATE_GATEWAY_SERVICE_USERNAME", &c.Gateway.ServiceUsername},
		{"CHATGATE_GATEWAY_SERVICE_PASSWORD", &c.Gateway.ServicePassword},
		{"CHATGATE_SESSION_SECRET", &c.Gateway.SessionSecret},
		{"CHATGATE_DB", &c.Backend.DBPath},
		{"CHATGATE_SIGNING_SECRET", &c.Backend.SigningSecret},
		{"CHATGATE_BACKEND_SERVICE_PASSWORD_HASH", &c.Backend.ServicePasswordHash},
		{"CHATGATE_BACKEND_PUBLIC_URL", &c.Backend.PublicURL},
	}
	for _, o := range overrides {
		if value := os.Getenv(o.key); value != "" {
			*o.target = value
		}
	}
}

func (c *Config) normalize() {
	defaults := Default()

	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.Gateway.ListenURL == "" {
		c.Gateway.ListenURL = defaults.Gateway.ListenURL
	}
	if c.Gateway.BackendURL == "" {
		c.Gateway.BackendURL = defaults.Gateway.BackendURL
	}
	c.Gateway.MountPrefix = normalizeMountPrefix(c.Gateway.MountPrefix)
	if strings.TrimSpace(c.Gateway.IdentityHeader) == "" {
		c.Gateway.IdentityHeader = defaults.Gateway.IdentityHeader
	}
	if strings.TrimSpace(c.Gateway.SessionName) == "" {
		c.Gateway.SessionName = defaults.Gateway.SessionName
	}

	if c.Backend.ListenURL == "" {
		c.Backend.ListenURL = defaults.Backend.ListenURL
	}
	if c.Backend.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			c.Backend.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}
	if c.Backend.BlobRoot == "" && c.Backend.DBPath != "" {
		c.Backend.BlobRoot = filepath.Join(filepath.Dir(c.Backend.DBPath), ".chatgate", "blobs")
	}
	if c.Backend.PublicURL == "" {
		c.Backend.PublicURL = c.Backend.ListenURL
	}
	if c.Backend.SignedURLTTL.Duration <= 0 {
		c.Backend.SignedURLTTL = defaults.Backend.SignedURLTTL
	}
	if c.Backend.ResolveTimeout.Duration <= 0 {
		c.Backend.ResolveTimeout = defaults.Backend.ResolveTimeout
	}
	if strings.TrimSpace(c.Backend.IdentityHeader) == "" {
		c.Backend.IdentityHeader = defaults.Backend.IdentityHeader
	}
	if c.Backend.MaxUploadBytes <= 0 {
		c.Backend.MaxUploadBytes = defaults.Backend.MaxUploadBytes
	}
	if c.Backend.MultipartMaxMemory <= 0 {
		c.Backend.MultipartMaxMemory = defaults.Backend.MultipartMaxMemory
	}
}

func normalizeMountPrefix(raw string) string {
	prefix := strings.TrimSpace(raw)
	if prefix == "" {
		return DefaultGatewayMount
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return "/"
	}
	return prefix
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "backend.max_upload_bytes", "backend.multipart_max_memory":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "backend.signed_url_ttl", "backend.resolve_timeout":
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration", key)
		}
		return parsed.String(), nil
	case "gateway.trust_inbound_headers":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "gateway.mount_prefix":
		return normalizeMountPrefix(value), nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}
