package main

import (
	"fanshare/config"
	"fmt"
	"io"
	"log"
	"os"
)

// setupLogging points the standard logger at path and returns the file so it can be
// closed on exit. The previous log survives as path.1; anything older is dropped. An
// empty path keeps logging on stderr.
func setupLogging(path string) (io.Closer, error) {
	if path == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}

	if err := rotateLog(path); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	log.SetOutput(f)
	return f, nil
}

func rotateLog(path string) error {
	_ = os.Remove(path + ".1")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := os.Rename(path, path+".1"); err != nil {
		return fmt.Errorf("failed to rotate existing log: %w", err)
	}
	return nil
}

// debugf logs only when LOG_LEVEL is DEBUG.
func debugf(format string, args ...interface{}) {
	if config.Settings.IsDebug() {
		log.Printf("[debug] "+format, args...)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
