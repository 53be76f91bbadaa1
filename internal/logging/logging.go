package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/saltyorg/ipldash/internal/config"
)

const (
	DefaultLogFileName = "ipldash.log"
	DefaultMaxSizeMB   = 50
	DefaultMaxBackups  = 5
	DefaultMaxAgeDays  = 30
	DefaultCompress    = true

	timeFormat = "2006-01-02 15:04:05"
)

// LevelForVerbosity maps the -v count onto a zerolog level
func LevelForVerbosity(verbosity int) zerolog.Level {
	switch {
	case verbosity <= 0:
		return zerolog.InfoLevel
	case verbosity == 1:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// Console installs a console-only logger. Used before the database (and its settings) is available.
func Console(verbosity int) {
	zerolog.SetGlobalLevel(LevelForVerbosity(verbosity))
	log.Logger = zerolog.New(consoleWriter(os.Stdout)).With().Timestamp().Logger()
}

// Apply adds a rotating log file next to the console output.
// Rotation limits are read from settings when a loader is given.
func Apply(verbosity int, loader *config.Loader, logFilePath string) {
	zerolog.SetGlobalLevel(LevelForVerbosity(verbosity))

	maxSize := DefaultMaxSizeMB
	maxBackups := DefaultMaxBackups
	maxAgeDays := DefaultMaxAgeDays
	compress := DefaultCompress

	if loader != nil {
		if val := loader.Int("log.max_size_mb", DefaultMaxSizeMB); val > 0 {
			maxSize = val
		}
		if val := loader.Int("log.max_backups", DefaultMaxBackups); val >= 0 {
			maxBackups = val
		}
		if val := loader.Int("log.max_age_days", DefaultMaxAgeDays); val >= 0 {
			maxAgeDays = val
		}
		compress = loader.Bool("log.compress", DefaultCompress)
	}

	if logFilePath == "" {
		logFilePath = DefaultLogFileName
	}

	console := consoleWriter(os.Stdout)
	if err := ensureLogDir(logFilePath); err != nil {
		log.Logger = zerolog.New(console).With().Timestamp().Logger()
		log.Error().Err(err).Str("path", logFilePath).Msg("Failed to prepare log directory; logging to console only")
		return
	}

	fileWriter := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   compress,
	}

	file := zerolog.ConsoleWriter{Out: fileWriter, TimeFormat: timeFormat, NoColor: true}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, file)).With().Timestamp().Logger()
}

// FilePathFor returns the log file path for a database DSN: next to the SQLite file,
// or in the working directory for server databases.
func FilePathFor(sqlitePath string) string {
	if sqlitePath == "" || sqlitePath == ":memory:" {
		return DefaultLogFileName
	}
	absPath, err := filepath.Abs(sqlitePath)
	if err != nil {
		return filepath.Join(filepath.Dir(sqlitePath), DefaultLogFileName)
	}
	return filepath.Join(filepath.Dir(absPath), DefaultLogFileName)
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
