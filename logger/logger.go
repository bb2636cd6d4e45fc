// seehuhn.de/go/pdfgraph - an object graph model for PDF documents
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package logger provides the pluggable logging hook used by the
// pdfgraph packages.
//
// By default all messages are discarded.  Applications install a log
// function with [SetLogger]; the key/value pairs follow the conventions
// of log/slog, so that a slog.Logger can be used directly:
//
//	logger.SetLogger(func(level logger.LogLevel, msg string, keyvals ...any) {
//		slog.Log(context.Background(), level.Slog(), msg, keyvals...)
//	})
package logger

import (
	"log/slog"
	"sync/atomic"
)

// LogLevel represents log severity
type LogLevel string

// Log levels used by the library.
const (
	DebugLevel LogLevel = "debug"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// Slog returns the corresponding log/slog level.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// LogFunc is a single logger function that handles all levels
type LogFunc func(level LogLevel, msg string, keyvals ...any)

var logFunc atomic.Pointer[LogFunc]

func init() {
	Reset()
}

// SetLogger sets the global logger function.  A nil function is ignored.
func SetLogger(f LogFunc) {
	if f != nil {
		logFunc.Store(&f)
	}
}

// Reset restores the default logger, which discards all messages.
func Reset() {
	var discard LogFunc = func(LogLevel, string, ...any) {}
	logFunc.Store(&discard)
}

// Debug logs a message at debug level
func Debug(msg string, keyvals ...any) {
	(*logFunc.Load())(DebugLevel, msg, keyvals...)
}

// Warn logs a message at warning level
func Warn(msg string, keyvals ...any) {
	(*logFunc.Load())(WarnLevel, msg, keyvals...)
}

// Error logs a message at error level
func Error(msg string, keyvals ...any) {
	(*logFunc.Load())(ErrorLevel, msg, keyvals...)
}
