package dvid

import (
	"log"
	"os"

	"github.com/natefinch/lumberjack"
)

// stdLogger writes through the standard log package with a severity prefix.
type stdLogger struct {
	file *lumberjack.Logger
}

var logger Logger = stdLogger{}

// LogConfig is the [logging] section of the server TOML configuration.
// Without a logfile, messages go to stdout.
type LogConfig struct {
	Logfile    string
	Level      string
	MaxSize    int  `toml:"max_log_size"` // megabytes
	MaxAge     int  `toml:"max_log_age"`  // days
	MaxBackups int  `toml:"max_log_backups"`
	Compress   bool `toml:"compress_logs"`
}

// Validate checks the level name.
func (c *LogConfig) Validate() error {
	if c == nil {
		return nil
	}
	_, err := ParseLogMode(c.Level)
	return err
}

// SetLogger sets the log level and directs output to stdout or a rotating log file.
func (c *LogConfig) SetLogger() error {
	if c == nil {
		c = &LogConfig{}
	}
	m, err := ParseLogMode(c.Level)
	if err != nil {
		return err
	}
	SetLogMode(m)
	if c.Logfile == "" {
		log.SetOutput(os.Stdout)
		logger = stdLogger{}
		Infof("Logging at %s level to stdout since no log file specified.\n", m)
		return nil
	}
	file := &lumberjack.Logger{
		Filename:   c.Logfile,
		MaxSize:    c.MaxSize,
		MaxAge:     c.MaxAge,
		MaxBackups: c.MaxBackups,
		Compress:   c.Compress,
	}
	log.SetOutput(file)
	logger = stdLogger{file}
	Infof("Logging at %s level to %s\n", m, c.Logfile)
	return nil
}

func (slog stdLogger) Debugf(format string, args ...interface{}) {
	log.Printf(" DEBUG "+format, args...)
}

func (slog stdLogger) Infof(format string, args ...interface{}) {
	log.Printf(" INFO "+format, args...)
}

func (slog stdLogger) Warningf(format string, args ...interface{}) {
	log.Printf(" WARNING "+format, args...)
}

func (slog stdLogger) Errorf(format string, args ...interface{}) {
	log.Printf(" ERROR "+format, args...)
}

func (slog stdLogger) Criticalf(format string, args ...interface{}) {
	log.Printf(" CRITICAL "+format, args...)
}

func (slog stdLogger) Shutdown() {
	if slog.file == nil {
		return
	}
	log.SetOutput(os.Stderr)
	if err := slog.file.Close(); err != nil {
		log.Printf(" ERROR closing log file %s: %v\n", slog.file.Filename, err)
	}
}
