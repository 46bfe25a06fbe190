package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"raffle/internal/api"
	"raffle/internal/config"
	"raffle/internal/credential"
	"raffle/internal/logger"
	"raffle/internal/oracle"
	"raffle/internal/raffle"
	"raffle/internal/storage"
	"raffle/internal/token"
	"raffle/internal/tracker"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	envFileFlag := flag.String("env-file", ".env", "path to the .env file")
	listenFlag := flag.String("listen", "", "HTTP listen address (or set RAFFLE_LISTEN_ADDR env var)")
	databaseFlag := flag.String("db", "", "SQLite database path (or set RAFFLE_DB_PATH env var)")
	verboseFlag := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*envFileFlag)
	if err != nil {
		return err
	}
	if *listenFlag != "" {
		cfg.ListenAddr = *listenFlag
	}
	if *databaseFlag != "" {
		cfg.DatabasePath = *databaseFlag
	}
	if *verboseFlag {
		cfg.Log.Level = "debug"
	}

	if err := logger.Initialize(cfg.Log); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Sync()

	sqliteStorage, err := storage.NewSqliteStorage(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer sqliteStorage.Close()

	clock := clockwork.NewRealClock()
	vrf := oracle.NewVRF(cfg.OracleKey, clock)
	if cfg.OracleKeyGenerated {
		logger.Warn("oracle key generated for this process; pending requests will not survive a restart",
			zap.String("oracle", vrf.PublicKey().String()))
	}

	ledger := token.NewLedger()
	program, err := raffle.New(raffle.Config{
		ProgramID:      cfg.ProgramID,
		Clock:          clock,
		Storage:        sqliteStorage,
		Tokens:         ledger,
		Credentials:    credential.NewIssuer(),
		Oracle:         vrf,
		TicketMetadata: credential.Metadata{URI: cfg.TicketURI},
	})
	if err != nil {
		return err
	}

	trackerInstance, err := tracker.NewTracker(tracker.Config{
		Storage:  sqliteStorage,
		VRF:      vrf,
		Callback: program,
		Clock:    clock,
		Interval: cfg.TrackerInterval,
	})
	if err != nil {
		return err
	}

	handler, err := api.NewHandler(api.Config{
		Program:         program,
		Ledger:          ledger,
		Storage:         sqliteStorage,
		Clock:           clock,
		AirdropEnabled:  cfg.AirdropEnabled,
		SignatureWindow: cfg.SignatureWindow,
	})
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	server := api.NewServer(cfg.ListenAddr, api.NewRouter(handler))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-waitForInterrupt()
		logger.Info("interrupt received, shutting down")
		cancel()
	}()

	logger.Info("raffle started",
		zap.String("program", cfg.ProgramID.String()),
		zap.String("oracle", vrf.PublicKey().String()),
		zap.String("db", cfg.DatabasePath),
	)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return server.Run(ctx) })
	group.Go(func() error { return trackerInstance.Run(ctx) })
	return group.Wait()
}

func waitForInterrupt() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	return sigCh
}
