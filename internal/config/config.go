// Package config loads commenter settings from defaults, an optional config
// file, the environment and command-line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Hekzory/CommentLLM/internal/failure"
	"github.com/Hekzory/CommentLLM/internal/provider"
	"github.com/Hekzory/CommentLLM/internal/walker"
)

// ConfigName is the base name of the config file looked up in the working directory.
const ConfigName = "commenter-config"

// DefaultInstructionFile is read for the system instruction when present.
const DefaultInstructionFile = "sys_instruction.txt"

// DefaultInstruction is used when no instruction file is configured or found.
const DefaultInstruction = `You are a coding assistant that adds comments to source code.
The input is either the full text of one source file, or a JSON object that maps relative file paths to full file contents.
Add comments that explain how the main logic works and what the inputs and outputs of functions are. Do not explain what standard libraries do.
Never change the code itself. If a file is already well commented, return it exactly as it is.
For a single file, reply with the complete commented file and nothing else.
For a JSON object, reply with a JSON object that has exactly the same keys, each mapped to the complete commented file content.`

// Config represents the structure of the configuration file
type Config struct {
	Provider        string        `mapstructure:"provider"`
	Model           string        `mapstructure:"model"`
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	InstructionFile string        `mapstructure:"instruction_file"`
	HistoryFile     string        `mapstructure:"history_file"`
	SaveHistory     bool          `mapstructure:"save_history"`
	Extensions      []string      `mapstructure:"extensions"`
	Ignore          []string      `mapstructure:"ignore"`
	Backup          bool          `mapstructure:"backup"`
	DryRun          bool          `mapstructure:"dry_run"`
	Theme           string        `mapstructure:"theme"`
	Timeout         time.Duration `mapstructure:"timeout"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
}

// DefaultConfig values
var DefaultConfig = Config{
	Provider:        string(provider.APITypeGemini),
	InstructionFile: DefaultInstructionFile,
	Extensions:      walker.DefaultExtensions,
	Ignore:          walker.DefaultIgnore,
	Theme:           "dracula",
	Timeout:         5 * time.Minute,
	LogLevel:        "info",
	LogFormat:       "console",
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string][]string{
	"provider":         {"COMMENTER_PROVIDER"},
	"model":            {"COMMENTER_MODEL"},
	"api_key":          {"COMMENTER_API_KEY"},
	"base_url":         {"COMMENTER_BASE_URL"},
	"instruction_file": {"COMMENTER_INSTRUCTION_FILE"},
	"history_file":     {"COMMENTER_HISTORY_FILE"},
	"log_level":        {"COMMENTER_LOG_LEVEL"},
	"log_format":       {"COMMENTER_LOG_FORMAT"},
	"timeout":          {"COMMENTER_TIMEOUT"},
}

// Provider credential variables, consulted when api_key is empty.
var credentialEnv = map[provider.APIType]string{
	provider.APITypeGemini:     "GOOGLE_API_KEY",
	provider.APITypeOpenRouter: "OPENROUTER_API_KEY",
}

// Options controls where Load looks for settings.
type Options struct {
	// Dir is searched for the config file and .env. Empty means the working directory.
	Dir string
	// File is an explicit config file. It must exist when set.
	File string
	// Flags, when non-nil, override every other source for flags the user set.
	Flags *pflag.FlagSet
}

// Load initializes the configuration from .env, the config file, environment
// variables and flags, and returns the final config.
func Load(opts Options) (*Config, error) {
	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, failure.New(failure.ErrConfig, "config", "", err)
		}
		dir = wd
	}

	// .env never overrides variables already set in the environment
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, failure.New(failure.ErrConfig, "config", filepath.Join(dir, ".env"), err)
	}

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		_ = v.BindEnv(append([]string{key}, env...)...)
	}

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, failure.New(failure.ErrConfig, "config", opts.File, err)
		}
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, failure.New(failure.ErrConfig, "config", v.ConfigFileUsed(), err)
			}
		}
	}

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return nil, failure.New(failure.ErrConfig, "config", "", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, failure.New(failure.ErrConfig, "config", v.ConfigFileUsed(), fmt.Errorf("unable to decode config: %w", err))
	}
	if _, err := provider.ParseAPIType(cfg.Provider); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets all default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", DefaultConfig.Provider)
	v.SetDefault("model", DefaultConfig.Model)
	v.SetDefault("api_key", DefaultConfig.APIKey)
	v.SetDefault("base_url", DefaultConfig.BaseURL)
	v.SetDefault("instruction_file", DefaultConfig.InstructionFile)
	v.SetDefault("history_file", DefaultConfig.HistoryFile)
	v.SetDefault("save_history", DefaultConfig.SaveHistory)
	v.SetDefault("extensions", DefaultConfig.Extensions)
	v.SetDefault("ignore", DefaultConfig.Ignore)
	v.SetDefault("backup", DefaultConfig.Backup)
	v.SetDefault("dry_run", DefaultConfig.DryRun)
	v.SetDefault("theme", DefaultConfig.Theme)
	v.SetDefault("timeout", DefaultConfig.Timeout)
	v.SetDefault("log_level", DefaultConfig.LogLevel)
	v.SetDefault("log_format", DefaultConfig.LogFormat)
}

// bindFlags binds every flag whose name is a config key.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if !isKey(key) {
			return
		}
		if bindErr := v.BindPFlag(key, f); bindErr != nil && err == nil {
			err = bindErr
		}
	})
	return err
}

func isKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// Keys lists every configuration key.
func Keys() []string {
	return []string{
		"provider", "model", "api_key", "base_url", "instruction_file",
		"history_file", "save_history", "extensions", "ignore", "backup",
		"dry_run", "theme", "timeout", "log_level", "log_format",
	}
}

// API returns the configured provider.
func (c *Config) API() provider.APIType {
	api, err := provider.ParseAPIType(c.Provider)
	if err != nil {
		return provider.APITypeGemini
	}
	return api
}

// ResolveAPIKey returns api_key if set, otherwise the provider's own
// credential variable. Ollama needs none.
func (c *Config) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if env, ok := credentialEnv[c.API()]; ok {
		return os.Getenv(env)
	}
	return ""
}

// Instruction returns the system instruction text. A missing default
// instruction file falls back to DefaultInstruction; a missing file that was
// configured explicitly is an error.
func (c *Config) Instruction() (string, error) {
	path := c.InstructionFile
	if path == "" {
		return DefaultInstruction, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && path == DefaultInstructionFile {
		return DefaultInstruction, nil
	}
	if err != nil {
		return "", failure.New(failure.ErrConfig, "instruction", path, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", failure.New(failure.ErrConfig, "instruction", path, errors.New("instruction file is empty"))
	}
	return text, nil
}

// ProviderOptions assembles client options from the config and instruction.
func (c *Config) ProviderOptions(instruction string) provider.Options {
	return provider.Options{
		API:         c.API(),
		Model:       c.Model,
		APIKey:      c.ResolveAPIKey(),
		BaseURL:     c.BaseURL,
		Instruction: instruction,
		Timeout:     c.Timeout,
	}
}
