// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

const (
	// RecordDirName is the directory under the install dir holding the last
	// update record.
	RecordDirName = ".relaunch"
)

// ErrInvalidConfig is the sentinel wrapped by InvalidConfigError.
var ErrInvalidConfig = errors.New("invalid configuration")

// placeholderProbe fills the artifact URL placeholders so the template can be
// parsed as a URL.
//
//nolint:gochecknoglobals // Immutable replacer.
var placeholderProbe = strings.NewReplacer("%version", "v", "%os", "os", "%arch", "arch")

type (
	// Config holds the application configuration.
	Config struct {
		// ManifestURL is the HTTP(S) location of the version manifest.
		ManifestURL string `json:"manifest_url" mapstructure:"manifest_url"`
		// ArtifactURL is the download URL template. %version, %os and %arch
		// are substituted before use.
		ArtifactURL string `json:"artifact_url" mapstructure:"artifact_url"`
		// Install locates the managed artifact on disk.
		Install InstallConfig `json:"install" mapstructure:"install"`
		// Check tunes the availability check.
		Check CheckConfig `json:"check" mapstructure:"check"`
		// Transfer tunes the resumable download.
		Transfer TransferConfig `json:"transfer" mapstructure:"transfer"`
		// Relaunch configures the handoff to the updated program.
		Relaunch RelaunchConfig `json:"relaunch" mapstructure:"relaunch"`
		// UI configures the user interface.
		UI UIConfig `json:"ui" mapstructure:"ui"`
		// Log configures the logger.
		Log LogConfig `json:"log" mapstructure:"log"`
	}

	// InstallConfig locates the managed artifact and its version record.
	InstallConfig struct {
		Dir         string `json:"dir" mapstructure:"dir"`
		Artifact    string `json:"artifact" mapstructure:"artifact"`
		VersionFile string `json:"version_file" mapstructure:"version_file"`
	}

	// CheckConfig tunes the availability check.
	CheckConfig struct {
		// BaseInterval is the timeout of the first attempt. Attempt n waits
		// n times as long.
		BaseInterval time.Duration `json:"base_interval" mapstructure:"base_interval"`
		// Retries is the number of automatic retries after a failed check.
		Retries uint64 `json:"retries" mapstructure:"retries"`
	}

	// TransferConfig tunes the resumable download.
	TransferConfig struct {
		ChunkSize int `json:"chunk_size" mapstructure:"chunk_size"`
	}

	// RelaunchConfig configures the handoff to the updated program.
	RelaunchConfig struct {
		// Command is a shell-style command line. $ARTIFACT and $ARTIFACT_DIR
		// expand to the installed artifact. Empty disables relaunching.
		Command string `json:"command" mapstructure:"command"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		Verbose   bool `json:"verbose" mapstructure:"verbose"`
		AssumeYes bool `json:"assume_yes" mapstructure:"assume_yes"`
	}

	// LogConfig configures the logger.
	LogConfig struct {
		Level string `json:"level" mapstructure:"level"`
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Install: InstallConfig{
			Dir:         "app",
			Artifact:    "app.jar",
			VersionFile: "Version.txt",
		},
		Check: CheckConfig{
			BaseInterval: 5 * time.Second,
		},
		Transfer: TransferConfig{
			ChunkSize: 32 << 10,
		},
		Relaunch: RelaunchConfig{
			Command: `java -jar "$ARTIFACT"`,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the constraints the commands rely on that the CUE schema
// cannot express, such as settings supplied only through the environment.
func (c *Config) Validate() error {
	var errs []error
	if err := validateHTTPURL("manifest_url", c.ManifestURL); err != nil {
		errs = append(errs, err)
	}
	if err := validateHTTPURL("artifact_url", placeholderProbe.Replace(c.ArtifactURL)); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Install.Dir) == "" {
		errs = append(errs, errors.New("install.dir: must not be empty"))
	}
	if strings.TrimSpace(c.Install.Artifact) == "" {
		errs = append(errs, errors.New("install.artifact: must not be empty"))
	}
	if strings.TrimSpace(c.Install.VersionFile) == "" {
		errs = append(errs, errors.New("install.version_file: must not be empty"))
	}
	if c.Check.BaseInterval <= 0 {
		errs = append(errs, fmt.Errorf("check.base_interval: must be positive, got %s", c.Check.BaseInterval))
	}
	if c.Transfer.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("transfer.chunk_size: must be positive, got %d", c.Transfer.ChunkSize))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// ArtifactPath returns the location of the managed artifact.
func (c *Config) ArtifactPath() string {
	return c.resolve(c.Install.Artifact)
}

// VersionFilePath returns the location of the installed-version record.
func (c *Config) VersionFilePath() string {
	return c.resolve(c.Install.VersionFile)
}

// RecordDir returns the directory holding the last update record.
func (c *Config) RecordDir() string {
	return filepath.Join(c.Install.Dir, RecordDirName)
}

func (c *Config) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Install.Dir, name)
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

func validateHTTPURL(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s: must be set", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: unsupported scheme %q", field, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: missing host", field)
	}
	return nil
}
