// Package clog is the leveled logging façade used by the stateful layers of
// the module. Output is disabled until LogMode(true); the provider defaults
// to the standard library logger and can be swapped for any LogProvider.
package clog

import (
	"log"
	"os"
	"sync/atomic"
)

// LogProvider receives formatted log messages at four severities.
type LogProvider interface {
	Critical(format string, v ...any)
	Error(format string, v ...any)
	Warn(format string, v ...any)
	Debug(format string, v ...any)
}

// Clog routes log calls to a provider when output is enabled.
type Clog struct {
	provider LogProvider
	// is log output enabled, 1: enable, 0: disable
	has uint32
}

// NewLogger creates a logger writing to stdout with the given prefix,
// initially disabled.
func NewLogger(prefix string) Clog {
	return Clog{
		provider: defaultLogger{log.New(os.Stdout, prefix, log.LstdFlags)},
	}
}

// LogMode enables or disables log output.
func (sf *Clog) LogMode(enable bool) {
	if enable {
		atomic.StoreUint32(&sf.has, 1)
	} else {
		atomic.StoreUint32(&sf.has, 0)
	}
}

// SetLogProvider replaces the output provider.
func (sf *Clog) SetLogProvider(p LogProvider) {
	if p != nil {
		sf.provider = p
	}
}

// Critical logs a CRITICAL level message.
func (sf Clog) Critical(format string, v ...any) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Critical(format, v...)
	}
}

// Error logs an ERROR level message.
func (sf Clog) Error(format string, v ...any) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Error(format, v...)
	}
}

// Warn logs a WARN level message.
func (sf Clog) Warn(format string, v ...any) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Warn(format, v...)
	}
}

// Debug logs a DEBUG level message.
func (sf Clog) Debug(format string, v ...any) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Debug(format, v...)
	}
}

type defaultLogger struct {
	*log.Logger
}

func (l defaultLogger) Critical(format string, v ...any) {
	l.Printf("[C]: "+format, v...)
}

func (l defaultLogger) Error(format string, v ...any) {
	l.Printf("[E]: "+format, v...)
}

func (l defaultLogger) Warn(format string, v ...any) {
	l.Printf("[W]: "+format, v...)
}

func (l defaultLogger) Debug(format string, v ...any) {
	l.Printf("[D]: "+format, v...)
}
