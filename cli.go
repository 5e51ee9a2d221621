package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
)

type logLevelValue struct {
	slog.Level
}

func (l *logLevelValue) Set(s string) error {
	return l.UnmarshalText([]byte(s))
}

func (l *logLevelValue) String() string {
	return l.Level.String()
}

type logFormatValue struct {
	format string
}

func (l *logFormatValue) Set(s string) error {
	if s != "text" && s != "json" {
		return fmt.Errorf("invalid log format: %s", s)
	}
	l.format = s
	return nil
}

func (l *logFormatValue) String() string {
	return l.format
}

func (l *logFormatValue) Handler(f io.Writer, opts *slog.HandlerOptions) slog.Handler {
	switch l.format {
	case "text":
		return slog.NewTextHandler(f, opts)
	case "json":
		return slog.NewJSONHandler(f, opts)
	}
	panic(fmt.Sprintf("invalid log format: %s", l.format))
}

// beaconUrlValue records whether it was given, so the configuration file
// value is only overridden explicitly.
type beaconUrlValue struct {
	url.URL
	set bool
}

func (b *beaconUrlValue) Set(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid beacon URL scheme: %q", u.Scheme)
	}
	b.URL = *u
	b.set = true
	return nil
}

func (b *beaconUrlValue) String() string {
	return b.URL.String()
}
