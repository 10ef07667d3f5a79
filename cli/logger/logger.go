// Package logger builds the process [slog.Logger] from command line options.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Options struct {
	LogLevel  string `doc:"log from debug, info, warn or error, with an optional offset such as warn+2" name:"log-level"`
	LogFile   string `doc:"append logs to file, - for stdout"                                         name:"log-file"`
	LogFormat string `doc:"format logs as text or json"                                               name:"log-format" default:"text"`
	LogSource bool   `doc:"add the source position of the log call"                                   name:"log-source"`
}

var errDiscard = errors.New("logs discarded")

// level parses a level name as understood by [slog.Level.UnmarshalText].
// An empty option leaves the handler default in place.
func level(option string) (slog.Leveler, error) {
	if option == "" {
		return nil, nil //nolint: nilnil // no level means the handler default
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(option)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", option, err)
	}
	return l, nil
}

func output(file string) (io.Writer, error) {
	switch file {
	case "", "-":
		return os.Stdout, nil
	case os.DevNull:
		return nil, errDiscard
	}
	f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("log file: %w", err)
	}
	return f, nil
}

func handler(format string, w io.Writer, opts *slog.HandlerOptions) (slog.Handler, error) {
	switch strings.ToLower(format) {
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	case "text":
		return slog.NewTextHandler(w, opts), nil
	default:
		return slog.NewTextHandler(w, opts), fmt.Errorf("log format %q: want text or json", format)
	}
}

// New builds a logger from options. An invalid option is reset to its
// default in options, and the returned logger warns about each of them.
func New(options *Options) *slog.Logger {
	var problems []error

	lvl, err := level(options.LogLevel)
	if err != nil {
		problems = append(problems, err)
		options.LogLevel = ""
	}
	opts := &slog.HandlerOptions{Level: lvl, AddSource: options.LogSource}

	w, err := output(options.LogFile)
	switch {
	case errors.Is(err, errDiscard):
		return slog.New(slog.DiscardHandler)
	case err != nil:
		problems = append(problems, err)
		options.LogFile = ""
		w = os.Stdout
	}

	h, err := handler(options.LogFormat, w, opts)
	if err != nil {
		problems = append(problems, err)
		options.LogFormat = "text"
	}

	logger := slog.New(h)
	for _, problem := range problems {
		logger.Warn("invalid logger option, using default", "err", problem)
	}
	return logger
}
