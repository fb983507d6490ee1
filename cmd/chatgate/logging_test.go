package main

import (
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		" Info ":  slog.LevelInfo,
		"WARNING": slog.LevelWarn,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"-4":      slog.LevelDebug,
		"8":       slog.LevelError,
	}
	for raw, want := range cases {
		got, err := parseLogLevel(raw)
		if err != nil {
			t.Fatalf("parseLogLevel(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("parseLogLevel(%q): expected %v, got %v", raw, want, got)
		}
	}

	if _, err := parseLogLevel("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestChooseLogLevel(t *testing.T) {
	tests := []struct {
		name                   string
		flag, env, configLevel string
		want                   levelChoice
	}{
		{name: "flag wins", flag: "debug", env: "error", configLevel: "warn", want: levelChoice{"debug", levelFromFlag}},
		{name: "env next", env: "warn", configLevel: "info", want: levelChoice{"warn", levelFromEnv}},
		{name: "config last", configLevel: "error", want: levelChoice{"error", levelFromConfig}},
		{name: "blank env skipped", env: "  ", want: levelChoice{source: levelFromDefault}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chooseLogLevel(tt.flag, tt.env, tt.configLevel); got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestConfigureLoggerForCLI(t *testing.T) {
	t.Run("invalid env ignored when flag set", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "bogus")
		warning, err := configureLoggerForCLI("debug", "")
		if err != nil || warning != "" {
			t.Fatalf("expected clean setup, got warning=%q err=%v", warning, err)
		}
		if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
			t.Fatal("expected debug enabled")
		}
	})

	t.Run("invalid flag fails", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "")
		if _, err := configureLoggerForCLI("loud", ""); err == nil || !strings.Contains(err.Error(), "--log-level") {
			t.Fatalf("expected --log-level error, got %v", err)
		}
	})

	t.Run("invalid env warns", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "loud")
		warning, err := configureLoggerForCLI("", "debug")
		if err != nil {
			t.Fatalf("configure logger: %v", err)
		}
		if warning != `warning: invalid CHATGATE_LOG_LEVEL="loud"; defaulting to info` {
			t.Fatalf("unexpected warning %q", warning)
		}
		if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
			t.Fatal("expected fallback to info")
		}
	})

	t.Run("invalid config warns", func(t *testing.T) {
		t.Setenv(logLevelEnvKey, "")
		warning, err := configureLoggerForCLI("", "loud")
		if err != nil {
			t.Fatalf("configure logger: %v", err)
		}
		if !strings.HasPrefix(warning, `warning: invalid log_level="loud"`) {
			t.Fatalf("unexpected warning %q", warning)
		}
	})
}
