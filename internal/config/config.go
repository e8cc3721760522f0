// Package config loads anchorkeep settings from a CUE file validated against
// an embedded schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/anchorkeep/internal/cloudsim"
	"github.com/roach88/anchorkeep/internal/telemetry"
)

//go:embed schema.cue
var schemaCUE string

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "anchorkeep.cue"

// Error codes for config loading.
const (
	ErrCodeNotFound    = "C001" // Config file not found
	ErrCodeReadFailed  = "C002" // Config file unreadable
	ErrCodeBuildFailed = "C003" // CUE syntax error
	ErrCodeInvalid     = "C004" // Schema violation
	ErrCodeDecode      = "C005" // Value could not be decoded
)

// LoadError is a config error with the CUE position when one is known.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// File is the decoded config file, with durations still in string form.
type File struct {
	Database        string        `json:"database"`
	TTLDays         int           `json:"ttl_days"`
	HistoryLimit    int           `json:"history_limit"`
	TickInterval    string        `json:"tick_interval"`
	ReturnHomeTicks int           `json:"return_home_ticks"`
	Simulator       SimulatorFile `json:"simulator"`
	Telemetry       TelemetryFile `json:"telemetry"`
}

// SimulatorFile is the simulator section of File.
type SimulatorFile struct {
	HostLatency       string  `json:"host_latency"`
	ResolveLatency    string  `json:"resolve_latency"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
}

// TelemetryFile is the telemetry section of File.
type TelemetryFile struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
	Insecure bool   `json:"insecure"`
	Interval string `json:"interval"`
}

// Config is the resolved configuration.
type Config struct {
	Database        string
	TTLDays         int
	HistoryLimit    int
	TickInterval    time.Duration
	ReturnHomeTicks int
	Simulator       cloudsim.Config
	Telemetry       telemetry.Config

	// Source is the file the config was read from, or "" for defaults.
	Source string
	// File is the decoded file content after defaults were applied.
	File File
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	cfg, err := parse(nil, "")
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema defaults: %v", err))
	}
	return cfg
}

// Find returns dir/anchorkeep.cue if it exists, else "".
func Find(dir string) string {
	path := filepath.Join(dir, DefaultFile)
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// Load reads path and validates it against the schema. An empty path
// yields Defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Defaults(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config file not found: %s", path)}
	}
	if err != nil {
		return Config{}, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading config: %v", err)}
	}
	return parse(data, path)
}

// Parse validates CUE source against the schema. name is used in positions.
func Parse(src []byte, name string) (Config, error) {
	return parse(src, name)
}

func parse(src []byte, name string) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, cueError(ErrCodeBuildFailed, err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := def
	if src != nil {
		user := ctx.CompileBytes(src, cue.Filename(name))
		if err := user.Err(); err != nil {
			return Config{}, cueError(ErrCodeBuildFailed, err)
		}
		value = def.Unify(user)
	}
	if err := value.Validate(); err != nil {
		return Config{}, cueError(ErrCodeInvalid, err)
	}

	var f File
	if err := value.Decode(&f); err != nil {
		return Config{}, cueError(ErrCodeDecode, err)
	}

	cfg, err := resolve(f)
	if err != nil {
		return Config{}, err
	}
	cfg.Source = name
	return cfg, nil
}

func resolve(f File) (Config, error) {
	var errs []error
	dur := func(field, s string) time.Duration {
		d, err := time.ParseDuration(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
		return d
	}

	cfg := Config{
		Database:        f.Database,
		TTLDays:         f.TTLDays,
		HistoryLimit:    f.HistoryLimit,
		TickInterval:    dur("tick_interval", f.TickInterval),
		ReturnHomeTicks: f.ReturnHomeTicks,
		Simulator: cloudsim.Config{
			HostLatency:       dur("simulator.host_latency", f.Simulator.HostLatency),
			ResolveLatency:    dur("simulator.resolve_latency", f.Simulator.ResolveLatency),
			RequestsPerSecond: f.Simulator.RequestsPerSecond,
			Burst:             f.Simulator.Burst,
		},
		Telemetry: telemetry.Config{
			Enabled:  f.Telemetry.Enabled,
			Endpoint: f.Telemetry.Endpoint,
			Insecure: f.Telemetry.Insecure,
			Interval: dur("telemetry.interval", f.Telemetry.Interval),
		},
		File: f,
	}
	if len(errs) > 0 {
		return Config{}, &LoadError{Code: ErrCodeInvalid, Message: errors.Join(errs...).Error()}
	}
	if cfg.TickInterval <= 0 {
		return Config{}, &LoadError{Code: ErrCodeInvalid, Message: "tick_interval must be positive"}
	}
	cfg.Telemetry.ShutdownTimeout = telemetry.DefaultConfig().ShutdownTimeout
	return cfg, nil
}

func cueError(code string, err error) *LoadError {
	le := &LoadError{Code: code, Message: cueerrors.Details(err, nil)}
	if positions := cueerrors.Positions(err); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
