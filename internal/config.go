package internal

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

type Config struct {
	BotToken       string `env:"BOT_TOKEN,required=true"`
	OperatorChatID *int64 `env:"OPERATOR_CHAT_ID"`

	MegaEmail    string `env:"MEGA_EMAIL,required=true"`
	MegaPassword string `env:"MEGA_PASSWORD,required=true"`

	WorkRoot       string `env:"WORK_ROOT,default=/tmp/mega-relay"`
	BadgerFilepath string `env:"BADGER_FILEPATH,default=/tmp/mega-relay-db"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`

	BufferSize int `env:"BUFFER_SIZE,default=64"`

	MaxFileBytes   int64 `env:"MAX_FILE_BYTES"`
	MaxFolderBytes int64 `env:"MAX_FOLDER_BYTES"`

	DownloadTimeout  time.Duration `env:"DOWNLOAD_TIMEOUT,default=5m"`
	UploadTimeout    time.Duration `env:"UPLOAD_TIMEOUT,default=10m"`
	PacingDelay      time.Duration `env:"PACING_DELAY,default=1s"`
	ProgressThrottle time.Duration `env:"PROGRESS_THROTTLE,default=2s"`

	JanitorInterval time.Duration `env:"JANITOR_INTERVAL,default=30m"`
	JanitorMaxAge   time.Duration `env:"JANITOR_MAX_AGE,default=1h"`
	MonitorInterval time.Duration `env:"MONITOR_INTERVAL,default=1m"`
}

// Operator returns the operator chat, zero when none is configured.
func (c Config) Operator() int64 {
	if c.OperatorChatID == nil {
		return 0
	}
	return *c.OperatorChatID
}

// NewLogger builds the process-wide structured logger from LOG_LEVEL.
// Unknown levels fall back to info.
func NewLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
