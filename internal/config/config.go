package config

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"raffle/internal/api"
	"raffle/internal/blockchain"
	"raffle/internal/logger"
	"raffle/internal/tracker"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
)

const (
	DefaultDatabasePath = "raffle.db"
	DefaultListenAddr   = ":8080"
	DefaultLogLevel     = "info"
)

type Config struct {
	DatabasePath string
	ListenAddr   string
	Log          logger.Configuration

	ProgramID solana.PublicKey
	// OracleKey signs randomness proofs. A fresh key is generated when none is configured.
	OracleKey          solana.PrivateKey
	OracleKeyGenerated bool

	TicketURI       string
	AirdropEnabled  bool
	TrackerInterval time.Duration
	SignatureWindow time.Duration
}

// Load reads envFile into the process environment, if it exists, and builds
// the configuration from RAFFLE_* variables.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		DatabasePath: getEnv("RAFFLE_DB_PATH", DefaultDatabasePath),
		ListenAddr:   getEnv("RAFFLE_LISTEN_ADDR", DefaultListenAddr),
		Log: logger.Configuration{
			LogFile:   os.Getenv("RAFFLE_LOG_FILE"),
			ErrorFile: os.Getenv("RAFFLE_ERROR_LOG_FILE"),
			Level:     getEnv("RAFFLE_LOG_LEVEL", DefaultLogLevel),
		},
		ProgramID:       blockchain.DefaultProgramID,
		TicketURI:       os.Getenv("RAFFLE_TICKET_URI"),
		TrackerInterval: tracker.DefaultInterval,
		SignatureWindow: api.DefaultSignatureWindow,
	}

	var err error
	if cfg.Log.Console, err = getBool("RAFFLE_LOG_CONSOLE", true); err != nil {
		return nil, err
	}
	if cfg.AirdropEnabled, err = getBool("RAFFLE_AIRDROP_ENABLED", false); err != nil {
		return nil, err
	}

	if value := os.Getenv("RAFFLE_TRACKER_INTERVAL"); value != "" {
		cfg.TrackerInterval, err = time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("RAFFLE_TRACKER_INTERVAL: %w", err)
		}
	}

	if value := os.Getenv("RAFFLE_SIGNATURE_WINDOW"); value != "" {
		cfg.SignatureWindow, err = time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("RAFFLE_SIGNATURE_WINDOW: %w", err)
		}
	}

	if value := os.Getenv("RAFFLE_PROGRAM_ID"); value != "" {
		cfg.ProgramID, err = solana.PublicKeyFromBase58(value)
		if err != nil {
			return nil, fmt.Errorf("RAFFLE_PROGRAM_ID: %w", err)
		}
	}

	if value := os.Getenv("RAFFLE_ORACLE_PRIVATE_KEY"); value != "" {
		cfg.OracleKey, err = solana.PrivateKeyFromBase58(value)
		if err != nil {
			return nil, fmt.Errorf("RAFFLE_ORACLE_PRIVATE_KEY: %w", err)
		}
	} else {
		cfg.OracleKey, err = solana.NewRandomPrivateKey()
		if err != nil {
			return nil, err
		}
		cfg.OracleKeyGenerated = true
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return errors.New("database path is required")
	}
	if c.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	if c.TrackerInterval <= 0 {
		return fmt.Errorf("tracker interval must be positive, got %s", c.TrackerInterval)
	}
	if c.SignatureWindow <= 0 {
		return fmt.Errorf("signature window must be positive, got %s", c.SignatureWindow)
	}
	if len(c.OracleKey) != ed25519.PrivateKeySize {
		return fmt.Errorf("oracle key has %d bytes, want %d", len(c.OracleKey), ed25519.PrivateKeySize)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}
