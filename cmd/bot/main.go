package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"mega-relay/domain"
	"mega-relay/domain/event"
	"mega-relay/infrastructure/megacloud"
	"mega-relay/infrastructure/storage"
	"mega-relay/infrastructure/telegram"
	"mega-relay/internal"
	"mega-relay/observability"
	"mega-relay/runtime/workers"
	"mega-relay/services"
	"mega-relay/transfer"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the relay lifecycle, and
// centralizes error reporting. Returning instead of os.Exit keeps the
// defers (database close, worker shutdown) running on every path.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := internal.NewLogger(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. External clients. Both are required, a relay that cannot reach
	// either side has nothing to do.
	chat, err := telegram.NewClient(log, config.BotToken)
	if err != nil {
		return exitRuntime, fmt.Errorf("telegram startup failed: %w", err)
	}

	drive, err := megacloud.NewClient(log, config.MegaEmail, config.MegaPassword)
	if err != nil {
		return exitRuntime, fmt.Errorf("mega startup failed: %w", err)
	}

	// 4. Pipeline wiring
	emitter := event.NewChannelEmitter(config.BufferSize)
	queue := transfer.NewQueue(log)

	opts := transfer.Options{
		WorkRoot:        config.WorkRoot,
		MaxFileBytes:    config.MaxFileBytes,
		MaxFolderBytes:  config.MaxFolderBytes,
		DownloadTimeout: config.DownloadTimeout,
		UploadTimeout:   config.UploadTimeout,
		PacingDelay:     config.PacingDelay,
	}
	relay := services.NewRelayService(
		log, chat, drive, queue, emitter, opts,
		config.ProgressThrottle, config.Operator(),
	)

	inbox := make(chan domain.InboundMessage, config.BufferSize)
	poller := telegram.NewPoller(log, chat, inbox)
	listener := workers.NewLinkListener(log, chat, relay, inbox)

	recorder := workers.NewRecorder(log, emitter.C,
		storage.NewUserRepository(db, log),
		storage.NewTransferLogRepository(db, log),
		storage.NewActiveTaskRepository(db, log),
	)
	janitor := workers.NewJanitor(log, config.WorkRoot, config.JanitorInterval, config.JanitorMaxAge)

	if err := os.MkdirAll(config.WorkRoot, 0o755); err != nil {
		return exitRuntime, fmt.Errorf("work root creation failed: %w", err)
	}
	monitor := observability.NewResourceMonitor(log, config.WorkRoot,
		config.MonitorInterval, uint64(domain.DefaultMaxFolderBytes))

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Supervision
	sup := workers.NewSupervisor(log, emitter)
	sup.Add(poller, listener, queue, recorder, janitor, monitor)

	log.Info("Relay started", "work_root", config.WorkRoot)
	sup.Run(ctx)

	log.Info("Program stopped cleanly")
	return exitOK, nil
}
