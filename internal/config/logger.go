package config

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
)

func NewLogger(cfg LogConfig, out io.Writer) hclog.Logger {
	if out == nil {
		out = os.Stderr
	}
	level := hclog.LevelFromString(cfg.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       "premigrate",
		Level:      level,
		Output:     out,
		JSONFormat: cfg.JSON,
	})
}
