// Package config provides configuration types, defaults and loading for tessera.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ByLCY/tessera/fault"
	"github.com/ByLCY/tessera/ipc"
	"github.com/ByLCY/tessera/tracing"
)

// EnvPrefix is prepended to environment overrides, e.g. TESSERA_VIEWPORT_WIDTH.
const EnvPrefix = "TESSERA"

// LocalPath is the project-local config file looked up first.
const LocalPath = ".tessera/config.yaml"

// Config holds all configuration options.
type Config struct {
	Viewport ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	Frame    FrameConfig    `mapstructure:"frame" yaml:"frame"`
	IPC      IPCConfig      `mapstructure:"ipc" yaml:"ipc"`
	Render   RenderConfig   `mapstructure:"render" yaml:"render"`
	Golden   GoldenConfig   `mapstructure:"golden" yaml:"golden"`
	Journal  JournalConfig  `mapstructure:"journal" yaml:"journal"`
	Tracing  tracing.Config `mapstructure:"tracing" yaml:"tracing"`
	Watch    WatchConfig    `mapstructure:"watch" yaml:"watch"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Frames   FramesConfig   `mapstructure:"frames" yaml:"frames"`
}

type ViewportConfig struct {
	Width  uint32 `mapstructure:"width" yaml:"width"`
	Height uint32 `mapstructure:"height" yaml:"height"`
}

type FrameConfig struct {
	TickHz     int `mapstructure:"tick_hz" yaml:"tick_hz"`
	MaxUpdates int `mapstructure:"max_updates" yaml:"max_updates"`
}

// IPCConfig selects the schema version and where the engine runs.
type IPCConfig struct {
	Version uint32 `mapstructure:"version" yaml:"version"`
	// Mode is "inproc" (engine goroutine) or "process" (child process over stdio).
	Mode string `mapstructure:"mode" yaml:"mode"`
}

type RenderConfig struct {
	Overlay bool `mapstructure:"overlay" yaml:"overlay"`
	// Font names the built-in vector font used by PDF/SVG export.
	Font string `mapstructure:"font" yaml:"font"`
}

type GoldenConfig struct {
	FixtureDir string `mapstructure:"fixture_dir" yaml:"fixture_dir"`
	GoldenDir  string `mapstructure:"golden_dir" yaml:"golden_dir"`
	Frame      uint64 `mapstructure:"frame" yaml:"frame"`
}

type JournalConfig struct {
	// Path of the SQLite journal; empty disables recording.
	Path string `mapstructure:"path" yaml:"path"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type FramesConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// IPC modes.
const (
	ModeInProcess = "inproc"
	ModeProcess   = "process"
)

// Defaults returns the built-in configuration.
func Defaults() Config {
	tr := tracing.DefaultConfig()
	tr.Exporter = "none"
	return Config{
		Viewport: ViewportConfig{Width: 960, Height: 540},
		Frame:    FrameConfig{TickHz: 60, MaxUpdates: 4},
		IPC:      IPCConfig{Version: ipc.CurrentVersion, Mode: ModeInProcess},
		Render:   RenderConfig{Font: "gomono"},
		Golden:   GoldenConfig{FixtureDir: "testdata/fixtures", GoldenDir: "testdata/golden"},
		Tracing:  tr,
		Watch:    WatchConfig{Debounce: 250 * time.Millisecond},
		Log:      LogConfig{Level: "info", Format: "text"},
		Frames:   FramesConfig{CacheTTL: time.Minute},
	}
}

// SetDefaults registers every key of Defaults() on v so that environment
// overrides and Unmarshal see the full key set.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("viewport.width", d.Viewport.Width)
	v.SetDefault("viewport.height", d.Viewport.Height)
	v.SetDefault("frame.tick_hz", d.Frame.TickHz)
	v.SetDefault("frame.max_updates", d.Frame.MaxUpdates)
	v.SetDefault("ipc.version", d.IPC.Version)
	v.SetDefault("ipc.mode", d.IPC.Mode)
	v.SetDefault("render.overlay", d.Render.Overlay)
	v.SetDefault("render.font", d.Render.Font)
	v.SetDefault("golden.fixture_dir", d.Golden.FixtureDir)
	v.SetDefault("golden.golden_dir", d.Golden.GoldenDir)
	v.SetDefault("golden.frame", d.Golden.Frame)
	v.SetDefault("journal.path", d.Journal.Path)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("frames.cache_ttl", d.Frames.CacheTTL)
}

// Setup prepares v for Load: defaults, TESSERA_ environment overrides and
// the config file lookup. An explicit file wins; otherwise LocalPath, then
// ~/.config/tessera/config.yaml.
func Setup(v *viper.Viper, file string) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	switch {
	case file != "":
		v.SetConfigFile(file)
	case fileExists(LocalPath):
		v.SetConfigFile(LocalPath)
	default:
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "tessera"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// Load reads the config file (a missing file is not an error), unmarshals
// and validates.
func Load(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.Viewport.Width == 0 || c.Viewport.Height == 0 {
		errs = append(errs, fmt.Errorf("viewport %dx%d must be non-empty", c.Viewport.Width, c.Viewport.Height))
	}
	if c.IPC.Version < ipc.MinVersion || c.IPC.Version > ipc.CurrentVersion {
		errs = append(errs, fmt.Errorf("ipc.version %d outside [%d,%d]", c.IPC.Version, ipc.MinVersion, ipc.CurrentVersion))
	}
	if c.IPC.Mode != ModeInProcess && c.IPC.Mode != ModeProcess {
		errs = append(errs, fmt.Errorf("ipc.mode %q must be %q or %q", c.IPC.Mode, ModeInProcess, ModeProcess))
	}
	if c.Frame.TickHz <= 0 {
		errs = append(errs, fmt.Errorf("frame.tick_hz %d must be positive", c.Frame.TickHz))
	}
	switch c.Tracing.Exporter {
	case "none", "stdout", "file":
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter %q must be none, stdout or file", c.Tracing.Exporter))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w: %w", err, fault.ErrInvalidArgument)
	}
	return nil
}

// ParseLevel maps a log.level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level %q must be debug, info, warn or error", s)
	}
}

// WriteDefault writes Defaults() as YAML to path, creating parent
// directories. An existing file is left untouched.
func WriteDefault(path string) error {
	if fileExists(path) {
		return fmt.Errorf("config file %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	out, err := yaml.Marshal(Defaults())
	if err != nil {
		return fmt.Errorf("encoding default config: %w", err)
	}
	header := "# tessera configuration. Environment variables TESSERA_<SECTION>_<KEY> override these values.\n"
	if err := os.WriteFile(path, append([]byte(header), out...), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
