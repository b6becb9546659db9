package logger

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// output is the log file opened by the last PrepareLogger call, if any.
var output *os.File

type Config struct {
	Level string
	// Format is "text" (default) or "json".
	Format string
	// File is an optional path logs are appended to instead of stdout.
	File string
}

func PrepareLogger(config Config) error {
	level, err := log.ParseLevel(config.Level)
	if err != nil {
		return fmt.Errorf("failed to parse log level %q: %w", config.Level, err)
	}

	switch strings.ToLower(config.Format) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", config.Format)
	}

	var f *os.File
	if config.File != "" {
		f, err = os.OpenFile(config.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		log.SetOutput(f)
	} else {
		log.SetOutput(os.Stdout)
	}
	if err := Close(); err != nil {
		log.Warnf("failed to close previous log file: %v", err)
	}
	output = f

	log.SetLevel(level)
	return nil
}

// Close releases the log file, if logs go to one. The output stays as it is.
func Close() error {
	if output == nil {
		return nil
	}
	err := output.Close()
	output = nil
	return err
}
