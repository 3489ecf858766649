package log

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}).
	With().Timestamp().Logger()

const (
	defaultLogLevel = InfoLevel
	FileName        = "arango-events.log"
	DebugLevel      = "debug"
	InfoLevel       = "info"
	WarnLevel       = "warn"
	ErrorLevel      = "error"
)

// Init sets the global level and rebuilds the logger. An empty path keeps
// console-only output, otherwise log lines are mirrored into <path>/FileName.
func Init(level, path string) {
	if level == "" {
		level = defaultLogLevel
	}
	switch level {
	case DebugLevel:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case InfoLevel:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case WarnLevel:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case ErrorLevel:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		panic(fmt.Sprintf("unknown log level: %s", level))
	}

	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}
	if path == "" {
		logger = zerolog.New(consoleWriter).With().Timestamp().Logger()
		return
	}
	logFile := GetFullLogPath(path, FileName)
	fileWriter, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		panic(fmt.Sprintf("open log file failed: %s", err))
	}
	multi := zerolog.MultiLevelWriter(consoleWriter, fileWriter)
	logger = zerolog.New(multi).With().Timestamp().Logger()
}

func GetFullLogPath(path, fileName string) string {
	if HasSuffix(path, "/") {
		return path + fileName
	}
	return path + "/" + fileName
}

func HasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

func Debugf(format string, args ...any) {
	logger.Debug().Msgf(format, args...)
}

func Infof(format string, args ...any) {
	logger.Info().Msgf(format, args...)
}

func Warnf(format string, args ...any) {
	logger.Warn().Msgf(format, args...)
}

func Errorf(format string, args ...any) {
	logger.Error().Msgf(format, args...)
}
