// Package envconfig reads convkit settings from CONVKIT_* environment variables.
//
// Invalid values are reported with slog.Warn and replaced by the default,
// so a typo never aborts a run.
package envconfig

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Var returns an environment variable with surrounding whitespace and quotes removed.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// LogLevel maps CONVKIT_DEBUG to a slog level.
// "1"/"true" enables debug; larger integers lower the level further.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("CONVKIT_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}
	return level
}

// Uint returns a getter for an unsigned integer variable with a default.
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// String returns a getter for a string variable with a default.
func String(key, defaultValue string) func() string {
	return func() string {
		if s := Var(key); s != "" {
			return s
		}
		return defaultValue
	}
}

var (
	// NumThreads caps the CPU backend's worker goroutines. 0 means runtime.NumCPU().
	NumThreads = Uint("CONVKIT_NUM_THREADS", 0)
	// Precision is the default checkpoint precision name (full, half, bfloat, double).
	Precision = String("CONVKIT_PRECISION", "full")
)

// EnvVar describes one setting for help output.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns every setting with its current value and description.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"CONVKIT_DEBUG":       {"CONVKIT_DEBUG", LogLevel(), "Show additional debug information (e.g. CONVKIT_DEBUG=1)"},
		"CONVKIT_NUM_THREADS": {"CONVKIT_NUM_THREADS", NumThreads(), "Worker goroutines for CPU kernels (default: number of CPUs)"},
		"CONVKIT_PRECISION":   {"CONVKIT_PRECISION", Precision(), "Checkpoint precision: full, half, bfloat or double (default: full)"},
	}
}

// Values returns the current settings, for diagnostics.
func Values() map[string]any {
	vals := make(map[string]any)
	for k, v := range AsMap() {
		vals[k] = v.Value
	}
	return vals
}
