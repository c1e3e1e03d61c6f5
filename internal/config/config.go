package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Config represents the main configuration for wipe.
type Config struct {
	StationID  string           `toml:"station_id" validate:"required"`
	BaseDir    string           `toml:"base_dir" validate:"required"`
	LogDir     string           `toml:"log_dir" validate:"required"`
	LogLevel   string           `toml:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Executor   ExecutorConfig   `toml:"executor"`
	Journal    JournalConfig    `toml:"journal"`
	Archives   []ArchiveConfig  `toml:"archives" validate:"dive"`
	Encryption EncryptionConfig `toml:"encryption"`
	Export     ExportConfig     `toml:"export"`
	Protected  []string         `toml:"protected,omitempty"` // device patterns never erased
}

// ExecutorConfig selects how overwrite passes reach the drive.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ExecutorConfig struct {
	Type string `toml:"type" validate:"required,oneof=device simulated"`

	// Device-specific fields (only used when Type == "device")
	BlockSize         int    `toml:"block_size,omitempty" validate:"omitempty,min=512,max=67108864"`
	MaxBytesPerSecond int64  `toml:"max_bytes_per_second,omitempty" validate:"gte=0"`
	Verify            string `toml:"verify,omitempty" validate:"omitempty,oneof=full sample"`
	VerifySamples     int    `toml:"verify_samples,omitempty" validate:"gte=0"`

	// Simulated-specific fields (only used when Type == "simulated")
	PhaseDelayMillis int `toml:"phase_delay_ms,omitempty" validate:"gte=0"`
}

// JournalConfig represents configuration for the erase attempt journal.
type JournalConfig struct {
	Type    string `toml:"type" validate:"required,oneof=sqlite memory none"`
	DataDir string `toml:"data_dir,omitempty" validate:"required_if=Type sqlite"`
}

// ArchiveConfig represents a certificate archive backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ArchiveConfig struct {
	Type    string `toml:"type" validate:"required,oneof=memory filesystem s3"`
	Name    string `toml:"name" validate:"required"`
	Encrypt bool   `toml:"encrypt,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty" validate:"required_if=Type s3"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty" validate:"omitempty,url"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty" validate:"required_if=Type filesystem"`
}

// EncryptionConfig holds paths to the age key pair used for archived
// certificates.
type EncryptionConfig struct {
	Type           string `toml:"type" validate:"omitempty,oneof=age test"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// ExportConfig controls how certificate documents are rendered.
type ExportConfig struct {
	Format string `toml:"format" validate:"omitempty,oneof=json yaml toml"`
}

// NewConfig creates a new Config with the provided values and defaults for
// everything else: a real device executor, a SQLite journal under baseDir
// and a filesystem certificate archive under baseDir.
func NewConfig(stationID, baseDir string) *Config {
	return &Config{
		StationID: stationID,
		BaseDir:   baseDir,
		LogDir:    filepath.Join(baseDir, "log"),
		LogLevel:  "info",
		Executor: ExecutorConfig{
			Type:      "device",
			BlockSize: 1 << 20,
			Verify:    "sample",
		},
		Journal: JournalConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "journal"),
		},
		Archives: []ArchiveConfig{
			{Type: "filesystem", Name: "local", FSVaultRoot: filepath.Join(baseDir, "certificates")},
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "wipe.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "wipe.key"),
		},
		Export: ExportConfig{Format: "json"},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and cross-field rules. The returned
// error lists every violation, one per line.
func (c *Config) Validate() error {
	var msgs []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validating config: %w", err)
		}
		for _, fe := range verrs {
			msgs = append(msgs, describe(fe))
		}
	}

	names := make(map[string]bool)
	for _, a := range c.Archives {
		if names[a.Name] {
			msgs = append(msgs, fmt.Sprintf("archives: duplicate name %q", a.Name))
		}
		names[a.Name] = true
		if a.Encrypt && c.Encryption.PublicKeyPath == "" && c.Encryption.Type != "test" {
			msgs = append(msgs, fmt.Sprintf("archives.%s: encrypt requires encryption.public_key_path", a.Name))
		}
	}

	if len(msgs) > 0 {
		return fmt.Errorf("invalid config:\n  %s", strings.Join(msgs, "\n  "))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %q validation", field, fe.Tag())
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init validates cfg and writes it to path. It refuses to overwrite an
// existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
