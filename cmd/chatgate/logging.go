package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"chatgate/internal/config"
)

const logLevelEnvKey = "CHATGATE_LOG_LEVEL"

type levelSource int

const (
	levelFromDefault levelSource = iota
	levelFromFlag
	levelFromEnv
	levelFromConfig
)

type levelChoice struct {
	raw    string
	source levelSource
}

// chooseLogLevel picks the first non-blank of flag, env and config.
func chooseLogLevel(flagLevel, envLevel, configLevel string) levelChoice {
	for _, c := range []levelChoice{
		{flagLevel, levelFromFlag},
		{envLevel, levelFromEnv},
		{configLevel, levelFromConfig},
	} {
		if strings.TrimSpace(c.raw) != "" {
			return c
		}
	}
	return levelChoice{source: levelFromDefault}
}

// configureLoggerForCLI installs the default logger. A bad --log-level is an
// error; a bad env or config level falls back to info and returns a warning.
func configureLoggerForCLI(flagLevel, configLevel string) (string, error) {
	choice := chooseLogLevel(flagLevel, os.Getenv(logLevelEnvKey), configLevel)
	level, err := parseLogLevel(choice.raw)
	if err == nil {
		slog.SetDefault(newLogger(level))
		return "", nil
	}

	var origin string
	switch choice.source {
	case levelFromFlag:
		return "", fmt.Errorf("invalid --log-level %q", choice.raw)
	case levelFromEnv:
		origin = logLevelEnvKey
	default:
		origin = "log_level"
	}
	fallback, _ := parseLogLevel(config.DefaultLogLevel)
	slog.SetDefault(newLogger(fallback))
	return fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", origin, choice.raw, config.DefaultLogLevel), nil
}

// parseLogLevel accepts slog level names, "warning" and numeric levels.
// Blank means the configured default.
func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "":
		value = config.DefaultLogLevel
	case "warning":
		value = "warn"
	}

	if numeric, err := strconv.Atoi(value); err == nil {
		return slog.Level(numeric), nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
