// Package logging sets up zerolog the same way for every binary.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "log-level", Value: "info", Usage: "trace, debug, info, warn or error", EnvVars: []string{"PIZZA_LOG_LEVEL"}},
		&cli.BoolFlag{Name: "pretty", Usage: "human friendly console output instead of json", EnvVars: []string{"PIZZA_LOG_PRETTY"}},
	}
}

// New builds a logger writing to w. Unknown levels fall back to info.
func New(w io.Writer, level string, pretty bool) zerolog.Logger {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func FromContext(c *cli.Context) zerolog.Logger {
	return New(os.Stderr, c.String("log-level"), c.Bool("pretty"))
}

// Fallback is for errors that happen before or after the configured logger exists.
func Fallback() *zerolog.Logger {
	l := New(os.Stderr, "info", false)
	return &l
}
