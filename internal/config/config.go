// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/relaunch/relaunch/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "relaunch"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. RELAUNCH_CHECK_RETRIES.
	EnvPrefix = "RELAUNCH"
	// LoadOperation is the operation named by configuration loading errors.
	LoadOperation = "load configuration"

	// maxFileSize bounds the config file read into memory.
	maxFileSize = 1 << 20
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the relaunch configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state. The second return value is the config file that was
// read, or "" when only defaults and the environment applied.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""

	// An explicit --config path is used exclusively.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation(LoadOperation).
				WithResource(opts.ConfigFilePath).
				WithSuggestions(
					"Verify the file path is correct",
					"Use 'relaunch config init' to create a default configuration",
				).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := loadCUEIntoViper(v, opts.ConfigFilePath); err != nil {
			return nil, "", schemaError(opts.ConfigFilePath, err)
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}

		candidates := []string{
			filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt),
			ConfigFileName + "." + ConfigFileExt,
		}
		for _, path := range candidates {
			if !fileExists(path) {
				continue
			}
			if err := loadCUEIntoViper(v, path); err != nil {
				return nil, "", schemaError(path, err)
			}
			resolvedPath = path
			break
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper, defaults *Config) {
	v.SetDefault("manifest_url", defaults.ManifestURL)
	v.SetDefault("artifact_url", defaults.ArtifactURL)
	v.SetDefault("install.dir", defaults.Install.Dir)
	v.SetDefault("install.artifact", defaults.Install.Artifact)
	v.SetDefault("install.version_file", defaults.Install.VersionFile)
	v.SetDefault("check.base_interval", defaults.Check.BaseInterval)
	v.SetDefault("check.retries", defaults.Check.Retries)
	v.SetDefault("transfer.chunk_size", defaults.Transfer.ChunkSize)
	v.SetDefault("relaunch.command", defaults.Relaunch.Command)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
	v.SetDefault("ui.assume_yes", defaults.UI.AssumeYes)
	v.SetDefault("log.level", defaults.Log.Level)
}

func schemaError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation(LoadOperation).
		WithResource(path).
		WithSuggestions(
			"Check that the file contains valid CUE syntax",
			"Verify the configuration values match the expected schema",
			"Run 'relaunch config show' to see the effective configuration",
		).
		Wrap(err).
		BuildError()
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper. Fields are optional, so validation runs
// with Concrete(false) and the result is merged over the defaults.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := checkFileSize(data, maxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes a default config file into dir (or the platform
// config directory when dir is empty). An existing file is left untouched and
// reported through the created return value.
func CreateDefaultConfig(dir string) (path string, created bool, err error) {
	cfgDir, err := configDirWithOverride(dir)
	if err != nil {
		return "", false, err
	}

	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)

	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, false, nil
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write config file: %w", err)
	}

	return cfgPath, true, nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// Relaunch Configuration File\n")
	sb.WriteString("// Every field may also be set through RELAUNCH_<SECTION>_<FIELD>.\n\n")

	if cfg.ManifestURL != "" {
		fmt.Fprintf(&sb, "manifest_url: %q\n", cfg.ManifestURL)
	} else {
		sb.WriteString("// manifest_url: \"https://example.com/Version.txt\"\n")
	}
	if cfg.ArtifactURL != "" {
		fmt.Fprintf(&sb, "artifact_url: %q\n", cfg.ArtifactURL)
	} else {
		sb.WriteString("// artifact_url: \"https://example.com/%version/app.jar\"\n")
	}

	sb.WriteString("\ninstall: {\n")
	fmt.Fprintf(&sb, "\tdir:          %q\n", cfg.Install.Dir)
	fmt.Fprintf(&sb, "\tartifact:     %q\n", cfg.Install.Artifact)
	fmt.Fprintf(&sb, "\tversion_file: %q\n", cfg.Install.VersionFile)
	sb.WriteString("}\n")

	sb.WriteString("\ncheck: {\n")
	fmt.Fprintf(&sb, "\tbase_interval: %q\n", cfg.Check.BaseInterval.String())
	fmt.Fprintf(&sb, "\tretries:       %d\n", cfg.Check.Retries)
	sb.WriteString("}\n")

	sb.WriteString("\ntransfer: {\n")
	fmt.Fprintf(&sb, "\tchunk_size: %d\n", cfg.Transfer.ChunkSize)
	sb.WriteString("}\n")

	sb.WriteString("\nrelaunch: {\n")
	fmt.Fprintf(&sb, "\tcommand: %q\n", cfg.Relaunch.Command)
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose:    %v\n", cfg.UI.Verbose)
	fmt.Fprintf(&sb, "\tassume_yes: %v\n", cfg.UI.AssumeYes)
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tlevel: %q\n", cfg.Log.Level)
	sb.WriteString("}\n")

	return sb.String()
}
