package main

import (
	"io"
	"log/slog"

	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"
)

type logOptions struct {
	Level      string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newLogger logs text to stderr, or JSON to a rotated file when File is set.
func newLogger(o logOptions, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.Level)); err != nil {
		return nil, nil, errors.Wrapf(err, "log level %q", o.Level)
	}
	hopt := &slog.HandlerOptions{Level: level}
	if o.File == "" {
		return slog.New(slog.NewTextHandler(stderr, hopt)), nopCloser{}, nil
	}
	w := &lumberjack.Logger{
		Filename:   o.File,
		MaxSize:    o.MaxSize,
		MaxBackups: o.MaxBackups,
		MaxAge:     o.MaxAge,
		Compress:   o.Compress,
	}
	return slog.New(slog.NewJSONHandler(w, hopt)), w, nil
}
