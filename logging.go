package openclaw

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger builds a logger from the logging fields of config. Console
// output goes to stdout; JSON when JSONLogs is set. When LogFile is set,
// JSON logs are also written to a rotating file, which the returned Closer
// releases.
func NewLogger(config Config, name string) (zerolog.Logger, io.Closer) {
	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil || config.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	var console io.Writer = os.Stdout
	if !config.JSONLogs {
		console = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	var closer io.Closer = nopCloser{}
	writer := console
	if config.LogFile != "" {
		file := &lumberjack.Logger{
			Filename:   config.LogFile,
			MaxSize:    config.LogMaxSizeMB, // megabytes
			MaxBackups: config.LogMaxBackups,
			MaxAge:     0, // don't delete old files based on age
			Compress:   false,
		}
		writer = zerolog.MultiLevelWriter(console, file)
		closer = file
	}

	logger := zerolog.New(writer).Level(level).With().
		Timestamp().
		Str("client", name).
		Logger()

	return logger, closer
}

// SetupLogging installs a logger built by NewLogger as the global zerolog
// logger, for use from main.
func SetupLogging(config Config, name string) io.Closer {
	logger, closer := NewLogger(config, name)
	zerolog.SetGlobalLevel(logger.GetLevel())
	log.Logger = logger
	return closer
}
