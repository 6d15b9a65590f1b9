// Package audit appends one timestamped line per data mutation to a rotating file.
package audit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// TimeLayout is the timestamp format of each audit line.
const TimeLayout = "2006-01-02 15:04:05"

// Config defines the audit file and its rotation.
type Config struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Path == "" {
		c.Path = "data/constraint_changes.log"
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("audit path is required")
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("audit rotation settings must not be negative")
	}
	return nil
}

// Log writes "[timestamp] description" lines.
type Log struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// New opens a rotating audit log described by cfg.
func New(cfg Config) (*Log, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	return NewWriter(lj, time.Now), nil
}

// NewWriter returns a log writing to w using now for timestamps.
func NewWriter(w io.Writer, now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{w: w, now: now}
}

// Record implements store.Auditor. Line breaks inside the description are
// flattened so that one mutation stays on one line.
func (l *Log) Record(description string) error {
	desc := strings.ReplaceAll(strings.TrimSpace(description), "\n", " ")
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := fmt.Fprintf(l.w, "[%s] %s\n", l.now().Format(TimeLayout), desc)
	return err
}

// Close closes the underlying writer when it supports closing.
func (l *Log) Close() error {
	if c, ok := l.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
