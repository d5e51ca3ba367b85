package logging

import (
	"github.com/go-chi/httplog"
	"github.com/rs/zerolog"
)

// New returns the JSON logger of a service at the given level; unknown levels mean info
func New(service, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	logger := httplog.NewLogger(service, httplog.Options{
		JSON:     true,
		LogLevel: lvl.String(),
	})
	return logger.Level(lvl)
}
