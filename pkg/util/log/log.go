// Package log wraps klog so that packages can hold a single logger value and
// switch verbosity with V.
package log

import (
	"fmt"
	"os"

	"k8s.io/klog/v2"
)

// Logger is the logging surface used across the bootstrap packages.
type Logger interface {
	Is(level int32) bool
	V(level int32) VerboseLogger
	Infof(format string, args ...interface{})
	Info(args ...interface{})
	Warningf(format string, args ...interface{})
	Warning(args ...interface{})
	Errorf(format string, args ...interface{})
	Error(args ...interface{})
	Fatalf(format string, args ...interface{})
	Fatal(args ...interface{})
}

// VerboseLogger logs only when the configured verbosity is high enough.
type VerboseLogger interface {
	Infof(format string, args ...interface{})
	Info(args ...interface{})
}

// StderrLog is the default logger, writing through klog to stderr.
var StderrLog Logger = klogger{}

// None discards everything.
var None Logger = discard{}

type klogger struct{}

func (klogger) Is(level int32) bool {
	return bool(klog.V(klog.Level(level)).Enabled())
}

func (klogger) V(level int32) VerboseLogger {
	return klog.V(klog.Level(level))
}

func (klogger) Infof(format string, args ...interface{}) {
	klog.InfoDepth(1, fmt.Sprintf(format, args...))
}

func (klogger) Info(args ...interface{}) {
	klog.InfoDepth(1, args...)
}

func (klogger) Warningf(format string, args ...interface{}) {
	klog.WarningDepth(1, fmt.Sprintf(format, args...))
}

func (klogger) Warning(args ...interface{}) {
	klog.WarningDepth(1, args...)
}

func (klogger) Errorf(format string, args ...interface{}) {
	klog.ErrorDepth(1, fmt.Sprintf(format, args...))
}

func (klogger) Error(args ...interface{}) {
	klog.ErrorDepth(1, args...)
}

func (klogger) Fatalf(format string, args ...interface{}) {
	klog.ErrorDepth(1, fmt.Sprintf(format, args...))
	klog.Flush()
	os.Exit(1)
}

func (klogger) Fatal(args ...interface{}) {
	klog.ErrorDepth(1, args...)
	klog.Flush()
	os.Exit(1)
}

type discard struct{}

func (discard) Is(level int32) bool                         { return false }
func (discard) V(level int32) VerboseLogger                 { return discard{} }
func (discard) Infof(format string, args ...interface{})    {}
func (discard) Info(args ...interface{})                    {}
func (discard) Warningf(format string, args ...interface{}) {}
func (discard) Warning(args ...interface{})                 {}
func (discard) Errorf(format string, args ...interface{})   {}
func (discard) Error(args ...interface{})                   {}
func (discard) Fatalf(format string, args ...interface{})   { os.Exit(1) }
func (discard) Fatal(args ...interface{})                   { os.Exit(1) }
