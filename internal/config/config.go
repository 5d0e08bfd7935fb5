package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so yaml files can carry "30s" style values,
// which yaml.v3 cannot decode into time.Duration directly.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw interface{}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(time.Duration(v))
	case int64:
		*d = Duration(time.Duration(v))
	default:
		return fmt.Errorf("invalid duration value on line %d", value.Line)
	}

	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Uploads  UploadsConfig  `yaml:"uploads"`
	Auth     AuthConfig     `yaml:"auth"`
	Agent    AgentConfig    `yaml:"agent"`
}

type ServerConfig struct {
	Port         int      `yaml:"port"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type StorageConfig struct {
	UploadDir string `yaml:"upload_dir"`
}

type UploadsConfig struct {
	MaxUploadBytes    int64    `yaml:"max_upload_bytes"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

type AuthConfig struct {
	Secret       string   `yaml:"secret"`
	TokenTTL     Duration `yaml:"token_ttl"`
	AgentToken   string   `yaml:"agent_token"`
	DefaultUsers string   `yaml:"default_users"`
}

type AgentConfig struct {
	ServerURL    string   `yaml:"server_url"`
	Token        string   `yaml:"token"`
	ID           string   `yaml:"id"`
	Printer      string   `yaml:"printer"`
	PollInterval Duration `yaml:"poll_interval"`
	WorkDir      string   `yaml:"work_dir"`
	Copies       int      `yaml:"copies"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         3000,
			ReadTimeout:  Duration(30 * time.Second),
			WriteTimeout: Duration(30 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "./data/print_jobs.db",
		},
		Storage: StorageConfig{
			UploadDir: "./data/uploads",
		},
		Uploads: UploadsConfig{
			MaxUploadBytes:    5 * 1024 * 1024,
			AllowedExtensions: []string{".cpp", ".py", ".c", ".java", ".pdf"},
		},
		Auth: AuthConfig{
			Secret:       "",
			TokenTTL:     Duration(12 * time.Hour),
			AgentToken:   "",
			DefaultUsers: "admin:admin123",
		},
		Agent: AgentConfig{
			ServerURL:    "http://127.0.0.1:3000",
			Token:        "",
			ID:           "default-agent",
			Printer:      "hp_m255nw",
			PollInterval: Duration(3 * time.Second),
			WorkDir:      "./spool",
			Copies:       1,
		},
	}
}

// Load reads configPath over the defaults, then applies ARKAV_* environment
// overrides on top. A missing file is fine; env-only deployments just skip it.
func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(cfg)

	return cfg, nil
}

// LoadFromEnv builds a config from defaults and environment alone.
func LoadFromEnv() *Config {
	cfg := defaults()
	applyEnv(cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ARKAV_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("ARKAV_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("ARKAV_UPLOAD_DIR"); v != "" {
		cfg.Storage.UploadDir = v
	}

	if v := os.Getenv("ARKAV_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Uploads.MaxUploadBytes = n
		}
	}

	if v := os.Getenv("ARKAV_APP_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}

	if v := os.Getenv("ARKAV_AGENT_TOKEN"); v != "" {
		cfg.Auth.AgentToken = v
		cfg.Agent.Token = v
	}

	if v := os.Getenv("ARKAV_DEFAULT_USERS"); v != "" {
		cfg.Auth.DefaultUsers = v
	}

	if v := os.Getenv("ARKAV_SERVER_URL"); v != "" {
		cfg.Agent.ServerURL = v
	}

	if v := os.Getenv("ARKAV_AGENT_ID"); v != "" {
		cfg.Agent.ID = v
	}

	if v := os.Getenv("ARKAV_PRINTER_NAME"); v != "" {
		cfg.Agent.Printer = v
	}

	if v := os.Getenv("ARKAV_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Agent.PollInterval = Duration(d)
		}
	}

	if v := os.Getenv("ARKAV_WORK_DIR"); v != "" {
		cfg.Agent.WorkDir = v
	}

	if v := os.Getenv("ARKAV_COPIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Agent.Copies = n
		}
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must be non-negative")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Storage.UploadDir == "" {
		return fmt.Errorf("upload dir is required")
	}

	if c.Uploads.MaxUploadBytes < 1 {
		return fmt.Errorf("max upload bytes must be at least 1")
	}

	if len(c.Uploads.AllowedExtensions) == 0 {
		return fmt.Errorf("at least one allowed extension is required")
	}

	for _, ext := range c.Uploads.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("invalid allowed extension: %q (must start with a dot)", ext)
		}
	}

	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive")
	}

	if c.Agent.ServerURL == "" {
		return fmt.Errorf("agent server url is required")
	}

	if c.Agent.ID == "" {
		return fmt.Errorf("agent id is required")
	}

	if c.Agent.PollInterval <= 0 {
		return fmt.Errorf("agent poll interval must be positive")
	}

	if c.Agent.WorkDir == "" {
		return fmt.Errorf("agent work dir is required")
	}

	if c.Agent.Copies < 1 {
		return fmt.Errorf("agent copies must be at least 1")
	}

	return nil
}
