package dvid

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// ModeFlag is the minimum severity of messages that are logged.
type ModeFlag uint32

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
	CriticalMode
	SilentMode
)

var modeNames = []string{"debug", "info", "warning", "error", "critical", "silent"}

func (m ModeFlag) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("mode %d", uint32(m))
}

// ParseLogMode returns the mode for a level name like "warning".  An empty name is InfoMode.
func ParseLogMode(name string) (ModeFlag, error) {
	if name == "" {
		return InfoMode, nil
	}
	for i, s := range modeNames {
		if strings.EqualFold(name, s) {
			return ModeFlag(i), nil
		}
	}
	return InfoMode, fmt.Errorf("unknown log level %q, expected one of %s", name, strings.Join(modeNames, ", "))
}

var (
	// Verbose is set when we want to be exceptionally verbose.
	Verbose bool

	mode atomic.Uint32
)

func init() {
	mode.Store(uint32(InfoMode))
}

// Logger writes messages at the five severities.  Filtering by mode happens
// before a Logger is called.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Criticalf(format string, args ...interface{})

	// Shutdown makes sure logs are closed.
	Shutdown()
}

// SetLogMode sets the severity required for a log message to be printed.
// For example, SetLogMode(dvid.WarningMode) will log any calls using
// Warningf, Errorf, or Criticalf.  To turn off all logging, use SilentMode.
func SetLogMode(newMode ModeFlag) {
	mode.Store(uint32(newMode))
}

// LogMode returns the current minimum severity.
func LogMode() ModeFlag {
	return ModeFlag(mode.Load())
}

func logs(m ModeFlag) bool {
	cur := LogMode()
	if m == DebugMode {
		return cur <= DebugMode || (Verbose && cur <= InfoMode)
	}
	return cur <= m
}

func Debugf(format string, args ...interface{}) {
	if logs(DebugMode) {
		logger.Debugf(format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if logs(InfoMode) {
		logger.Infof(format, args...)
	}
}

func Warningf(format string, args ...interface{}) {
	if logs(WarningMode) {
		logger.Warningf(format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if logs(ErrorMode) {
		logger.Errorf(format, args...)
	}
}

func Criticalf(format string, args ...interface{}) {
	if logs(CriticalMode) {
		logger.Criticalf(format, args...)
	}
}

// Shutdown closes any log file.
func Shutdown() {
	logger.Shutdown()
}

// TimeLog appends the time elapsed since its creation to each message.
//
//	tlog := dvid.NewTimeLog()
//	...
//	tlog.Infof("Read %d blocks", n)  // "Read 6 blocks: 2.1ms"
type TimeLog struct {
	start time.Time
}

func NewTimeLog() TimeLog {
	return TimeLog{time.Now()}
}

// Elapsed returns the time since the TimeLog was created.
func (t TimeLog) Elapsed() time.Duration {
	return time.Since(t.start)
}

func (t TimeLog) logf(m ModeFlag, logf func(string, ...interface{}), format string, args []interface{}) {
	if logs(m) {
		format = strings.TrimSuffix(format, "\n") + ": %s\n"
		logf(format, append(args, t.Elapsed())...)
	}
}

func (t TimeLog) Debugf(format string, args ...interface{}) {
	t.logf(DebugMode, logger.Debugf, format, args)
}

func (t TimeLog) Infof(format string, args ...interface{}) {
	t.logf(InfoMode, logger.Infof, format, args)
}

func (t TimeLog) Warningf(format string, args ...interface{}) {
	t.logf(WarningMode, logger.Warningf, format, args)
}

func (t TimeLog) Errorf(format string, args ...interface{}) {
	t.logf(ErrorMode, logger.Errorf, format, args)
}
