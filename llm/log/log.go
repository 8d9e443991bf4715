/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package log is a printf-style facade over log/slog. Records fan out to
// stderr, an optional rotating file and the systemd journal.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync/atomic"
	"time"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) slog() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps "debug", "info", "warn" and "error" to a Level. Unknown
// names yield InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	}
	return InfoLevel
}

// UnmarshalText lets config files spell levels by name.
func (l *Level) UnmarshalText(text []byte) error {
	*l = ParseLevel(string(text))
	return nil
}

// Options configures the handlers installed by Setup.
type Options struct {
	Level Level `yaml:"level"`
	// File enables a rotating log file when not empty.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	// Journal forces the systemd journal handler even outside a service.
	Journal bool `yaml:"journal"`
	// Writer replaces stderr, mostly for tests.
	Writer io.Writer `yaml:"-"`
}

var (
	level  = new(slog.LevelVar)
	logger atomic.Pointer[slog.Logger]
	closer io.Closer
)

func init() {
	level.Set(slog.LevelInfo)
	logger.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// SetLogLevel changes the level of every installed handler.
func SetLogLevel(l Level) {
	level.Set(l.slog())
}

func GetLogLevel() Level {
	switch level.Level() {
	case slog.LevelDebug:
		return DebugLevel
	case slog.LevelWarn:
		return WarnLevel
	case slog.LevelError:
		return ErrorLevel
	}
	return InfoLevel
}

// Setup replaces the global logger. Call Close to flush the rotating file.
func Setup(opts Options) error {
	SetLogLevel(opts.Level)

	var handlers []slog.Handler
	inService := isSystemdService()

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	if !inService || opts.Writer != nil {
		handlers = append(handlers, slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	}

	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 15),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     28,
			Compress:   true,
		}
		handlers = append(handlers, slog.NewJSONHandler(lj, &slog.HandlerOptions{Level: level}))
		Close()
		closer = lj
	}

	if inService || opts.Journal {
		jh, err := slogjournal.NewHandler(&slogjournal.Options{
			Level: level,
			ReplaceGroup: func(key string) string {
				return toJournalKey(key)
			},
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				a.Key = toJournalKey(a.Key)
				return a
			},
		})
		if err != nil {
			if len(handlers) == 0 {
				return fmt.Errorf("new systemd journal handler: %w", err)
			}
			r := slog.NewRecord(time.Now(), slog.LevelWarn, "new systemd journal handler", 0)
			r.Add("error", err)
			_ = handlers[0].Handle(context.Background(), r)
		} else {
			handlers = append(handlers, jh)
		}
	}

	logger.Store(slog.New(slogmulti.Fanout(handlers...)))
	return nil
}

// Close releases the rotating log file, if any.
func Close() error {
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	return err
}

// Logger exposes the underlying slog logger for structured call sites.
func Logger() *slog.Logger {
	return logger.Load()
}

func Debug(format string, args ...any) {
	logf(slog.LevelDebug, format, args...)
}

func Info(format string, args ...any) {
	logf(slog.LevelInfo, format, args...)
}

func Warn(format string, args ...any) {
	logf(slog.LevelWarn, format, args...)
}

func Error(format string, args ...any) {
	logf(slog.LevelError, format, args...)
}

func logf(l slog.Level, format string, args ...any) {
	lg := logger.Load()
	if !lg.Enabled(context.Background(), l) {
		return
	}
	lg.Log(context.Background(), l, strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func toJournalKey(str string) string {
	str = strings.ToUpper(str)
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, str)
}

func isSystemdService() bool {
	content, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		parts := strings.SplitN(line, ":", 3)
		if len(parts) == 3 && strings.HasSuffix(path.Dir(parts[2]), ".service") {
			return true
		}
	}
	return false
}
