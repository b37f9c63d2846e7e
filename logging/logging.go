package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/bioinspired/ybot/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Configure sets up the standard logrus logger, which every package logs
// through. The returned closer releases the log file, if there is one.
func Configure(cfg config.LoggerConfig, console io.Writer) (io.Closer, error) {
	return configure(logrus.StandardLogger(), cfg, console)
}

func configure(l *logrus.Logger, cfg config.LoggerConfig, console io.Writer) (io.Closer, error) {
	if console == nil {
		console = os.Stderr
	}

	level := logrus.InfoLevel
	if cfg.Level != "" {
		var err error
		level, err = logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("logger.level: %w", err)
		}
	}
	l.SetLevel(level)

	switch cfg.Format {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("logger.format must be text or json, got %q", cfg.Format)
	}

	if cfg.LogFile == "" {
		l.SetOutput(console)
		return nopCloser{}, nil
	}

	// lumberjack handles rotation, and is safe for concurrent writes.
	file := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	l.SetOutput(io.MultiWriter(console, file))

	return file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
