package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/tailscale/hujson"

	"github.com/calvinalkan/ringstore/pkg/ringstore"
)

// Config holds the resolved ringctl configuration.
type Config struct {
	Dir              string `json:"dir"`
	Name             string `json:"name"`
	Extension        string `json:"extension"`
	Slots            string `json:"slots"`
	Durability       string `json:"durability"`
	Advance          string `json:"advance"`
	FailureThreshold int    `json:"failure_threshold"`
	Strict           bool   `json:"strict"`
	AutoSave         string `json:"auto_save"`
	Codec            string `json:"codec"`
	BufferSize       int    `json:"buffer_size"`
	LogLevel         string `json:"log_level"`
	LogFormat        string `json:"log_format"`
	LockTimeout      string `json:"lock_timeout"`

	// Resolved (computed, not serialized)
	EffectiveCwd string        `json:"-"`
	DirAbs       string        `json:"-"`
	Sources      ConfigSources `json:"-"`
}

// ConfigSources tracks which layers contributed to the config.
type ConfigSources struct {
	Global  string   // Path to global config if loaded
	Project string   // Path to project or explicit config if loaded
	Env     []string // Environment variables that were applied
	Flags   []string // Flags that were applied
}

// ConfigFileName is the project config file name.
const ConfigFileName = ".ringctl.json"

// DefaultConfig returns the configuration used when nothing else is set.
func DefaultConfig() Config {
	return Config{
		Dir:              ".ring",
		Name:             "state",
		Extension:        ringstore.DefaultExtension,
		Slots:            ringstore.DefaultSlotLabels,
		Durability:       ringstore.CommitToDisk.String(),
		Advance:          ringstore.AdvanceAlways.String(),
		FailureThreshold: 3,
		AutoSave:         ringstore.AutoSaveNone.String(),
		Codec:            "json",
		BufferSize:       ringstore.DefaultBufferSize,
		LogLevel:         "warn",
		LogFormat:        "text",
		LockTimeout:      "5s",
	}
}

// layer is one partial configuration source. Nil fields are unset.
type layer struct {
	Dir              *string `json:"dir"               env:"RINGCTL_DIR"`
	Name             *string `json:"name"              env:"RINGCTL_NAME"`
	Extension        *string `json:"extension"         env:"RINGCTL_EXT"`
	Slots            *string `json:"slots"             env:"RINGCTL_SLOTS"`
	Durability       *string `json:"durability"        env:"RINGCTL_DURABILITY"`
	Advance          *string `json:"advance"           env:"RINGCTL_ADVANCE"`
	FailureThreshold *int    `json:"failure_threshold" env:"RINGCTL_FAILURE_THRESHOLD"`
	Strict           *bool   `json:"strict"            env:"RINGCTL_STRICT"`
	AutoSave         *string `json:"auto_save"         env:"RINGCTL_AUTO_SAVE"`
	Codec            *string `json:"codec"             env:"RINGCTL_CODEC"`
	BufferSize       *int    `json:"buffer_size"       env:"RINGCTL_BUFFER_SIZE"`
	LogLevel         *string `json:"log_level"         env:"RINGCTL_LOG_LEVEL"`
	LogFormat        *string `json:"log_format"        env:"RINGCTL_LOG_FORMAT"`
	LockTimeout      *string `json:"lock_timeout"      env:"RINGCTL_LOCK_TIMEOUT"`
}

// LoadConfigInput holds the inputs for LoadConfig.
type LoadConfigInput struct {
	WorkDirOverride string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath      string            // -c/--config flag value
	Overrides       layer             // values from CLI flags
	OverrideNames   []string          // flag names behind Overrides, for diagnostics
	Env             map[string]string // environment variables
}

// LoadConfig loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/ringctl/config.json or ~/.config/ringctl/config.json)
// 3. Project config file (.ringctl.json, if exists) or explicit config file via -c
// 4. RINGCTL_* environment variables
// 5. CLI flags.
func LoadConfig(input LoadConfigInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	} else if !filepath.IsAbs(workDir) {
		abs, err := filepath.Abs(workDir)
		if err != nil {
			return Config{}, fmt.Errorf("cannot resolve %s: %w", workDir, err)
		}

		workDir = abs
	}

	cfg := DefaultConfig()

	globalPath := globalConfigPath(input.Env)
	if globalPath != "" {
		l, loaded, err := loadConfigFile(globalPath, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg = l.apply(cfg)
			cfg.Sources.Global = globalPath
		}
	}

	projectPath, mustExist := filepath.Join(workDir, ConfigFileName), false
	if input.ConfigPath != "" {
		projectPath, mustExist = input.ConfigPath, true
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(workDir, projectPath)
		}
	}

	l, loaded, err := loadConfigFile(projectPath, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg = l.apply(cfg)
		cfg.Sources.Project = projectPath
	}

	envLayer, envNames, err := parseEnvLayer(input.Env)
	if err != nil {
		return Config{}, err
	}

	cfg = envLayer.apply(cfg)
	cfg.Sources.Env = envNames

	cfg = input.Overrides.apply(cfg)
	cfg.Sources.Flags = input.OverrideNames

	validateErr := cfg.validate()
	if validateErr != nil {
		return Config{}, validateErr
	}

	cfg.EffectiveCwd = workDir

	if filepath.IsAbs(cfg.Dir) {
		cfg.DirAbs = filepath.Clean(cfg.Dir)
	} else {
		cfg.DirAbs = filepath.Join(workDir, cfg.Dir)
	}

	return cfg, nil
}

// globalConfigPath returns $XDG_CONFIG_HOME/ringctl/config.json, falling back
// to ~/.config/ringctl/config.json. Empty if neither variable is set.
func globalConfigPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "ringctl", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "ringctl", "config.json")
	}

	return ""
}

// loadConfigFile loads a JSONC config file. If mustExist is false, a missing
// file is not an error and loaded is false.
func loadConfigFile(path string, mustExist bool) (layer, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if mustExist {
				return layer{}, false, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
			}

			return layer{}, false, nil
		}

		return layer{}, false, fmt.Errorf("%w %s: %w", ErrConfigFileRead, path, err)
	}

	l, err := parseConfigLayer(data)
	if err != nil {
		return layer{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return l, true, nil
}

func parseConfigLayer(data []byte) (layer, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return layer{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var l layer

	unmarshalErr := json.Unmarshal(standardized, &l)
	if unmarshalErr != nil {
		return layer{}, fmt.Errorf("invalid JSON: %w", unmarshalErr)
	}

	return l, nil
}

// parseEnvLayer reads RINGCTL_* variables from env. It also returns the
// names of the variables that were set, sorted by field order.
func parseEnvLayer(environ map[string]string) (layer, []string, error) {
	if environ == nil {
		environ = map[string]string{}
	}

	var l layer

	err := env.ParseWithOptions(&l, env.Options{Environment: environ})
	if err != nil {
		return layer{}, nil, fmt.Errorf("%w: parse env: %w", ErrConfigInvalid, err)
	}

	var names []string

	for _, name := range []string{
		"RINGCTL_DIR", "RINGCTL_NAME", "RINGCTL_EXT", "RINGCTL_SLOTS",
		"RINGCTL_DURABILITY", "RINGCTL_ADVANCE", "RINGCTL_FAILURE_THRESHOLD",
		"RINGCTL_STRICT", "RINGCTL_AUTO_SAVE", "RINGCTL_CODEC", "RINGCTL_BUFFER_SIZE",
		"RINGCTL_LOG_LEVEL", "RINGCTL_LOG_FORMAT", "RINGCTL_LOCK_TIMEOUT",
	} {
		if environ[name] != "" {
			names = append(names, name)
		}
	}

	return l, names, nil
}

// apply overlays every set field of l onto base.
func (l layer) apply(base Config) Config {
	setString(&base.Dir, l.Dir)
	setString(&base.Name, l.Name)
	setString(&base.Slots, l.Slots)
	setString(&base.Durability, l.Durability)
	setString(&base.Advance, l.Advance)
	setString(&base.AutoSave, l.AutoSave)
	setString(&base.Codec, l.Codec)
	setString(&base.LogLevel, l.LogLevel)
	setString(&base.LogFormat, l.LogFormat)
	setString(&base.LockTimeout, l.LockTimeout)

	// An explicitly empty extension is valid.
	if l.Extension != nil {
		base.Extension = *l.Extension
	}

	if l.FailureThreshold != nil {
		base.FailureThreshold = *l.FailureThreshold
	}

	if l.BufferSize != nil {
		base.BufferSize = *l.BufferSize
	}

	if l.Strict != nil {
		base.Strict = *l.Strict
	}

	return base
}

// setString overlays v unless it is unset or empty. Empty strings in a layer
// never clear a required value; validate reports them instead.
func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Dir) == "" {
		return fmt.Errorf("%w: dir cannot be empty", ErrConfigInvalid)
	}

	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrConfigInvalid)
	}

	if strings.ContainsRune(c.Name, filepath.Separator) {
		return fmt.Errorf("%w: name %q contains a path separator", ErrConfigInvalid, c.Name)
	}

	_, err := c.ringOptions()
	if err != nil {
		return err
	}

	_, err = newLogger(io.Discard, c.LogLevel, c.LogFormat)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	_, err = c.lockTimeout()

	return err
}

func (c Config) lockTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.LockTimeout)
	if err != nil {
		return 0, fmt.Errorf("%w: lock_timeout: %w", ErrConfigInvalid, err)
	}

	if d < 0 {
		return 0, fmt.Errorf("%w: lock_timeout cannot be negative", ErrConfigInvalid)
	}

	return d, nil
}

// ringOptions are the parsed enum-like settings of a Config.
type ringOptions struct {
	durability ringstore.Durability
	advance    ringstore.AdvanceRule
	autoSave   ringstore.AutoSave
	codec      ringstore.Codec[*Document]
}

func (c Config) ringOptions() (ringOptions, error) {
	var (
		o   ringOptions
		err error
	)

	o.durability, err = ringstore.ParseDurability(c.Durability)
	if err != nil {
		return o, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	o.advance, err = ringstore.ParseAdvanceRule(c.Advance)
	if err != nil {
		return o, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	o.autoSave, err = ringstore.ParseAutoSave(c.AutoSave)
	if err != nil {
		return o, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	o.codec, err = ringstore.CodecByName[*Document](c.Codec)
	if err != nil {
		return o, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	return o, nil
}

// RingConfig builds the ringstore configuration for the resolved Config.
func (c Config) RingConfig(sink ringstore.Sink) (ringstore.Config[*Document], error) {
	o, err := c.ringOptions()
	if err != nil {
		return ringstore.Config[*Document]{}, err
	}

	rc := ringstore.DefaultConfig(c.DirAbs, c.Name, NewDocument)
	rc.Extension = c.Extension
	rc.SlotLabels = ringstore.SlotLabelsFromString(c.Slots)
	rc.BufferSize = c.BufferSize
	rc.Durability = o.durability
	rc.Advance = o.advance
	rc.FailureThreshold = c.FailureThreshold
	rc.FailOnAnomaly = c.Strict
	rc.AutoSave = o.autoSave
	rc.Codec = o.codec
	rc.Sink = sink

	return rc, nil
}

// FormatConfig renders cfg as the JSON written by "ringctl init".
func FormatConfig(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("format config: %w", err)
	}

	return string(data), nil
}

// formatSources returns "key=value" lines describing where cfg came from.
func formatSources(s ConfigSources) []string {
	var lines []string

	if s.Global != "" {
		lines = append(lines, "global_config="+s.Global)
	}

	if s.Project != "" {
		lines = append(lines, "project_config="+s.Project)
	}

	if len(s.Env) > 0 {
		lines = append(lines, "env="+strings.Join(s.Env, ","))
	}

	if len(s.Flags) > 0 {
		lines = append(lines, "flags="+strings.Join(s.Flags, ","))
	}

	if len(lines) == 0 {
		lines = append(lines, "(defaults only)")
	}

	return lines
}
