// Package node wires the vault core to its runtime: configuration,
// persistence, the custody ledger, the attestation client, structured
// logging, and the observable records the host consumes.
package node

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"heirloom.dev/vault/crypto"
)

type Config struct {
	DataDir   string `json:"data_dir"`
	LogLevel  string `json:"log_level"`
	HashAlg   string `json:"hash_alg"`
	SealMode  string `json:"seal_mode"`
	DebugMode bool   `json:"debug_mode"`
}

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".heirloom"
	}
	return filepath.Join(home, ".heirloom")
}

func DefaultConfig() Config {
	return Config{
		DataDir:  DefaultDataDir(),
		LogLevel: "info",
		HashAlg:  "sha3",
		SealMode: "xor",
	}
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	if _, ok := allowedLogLevels[cfg.LogLevel]; !ok {
		return fmt.Errorf("invalid log_level: %q", cfg.LogLevel)
	}
	if _, err := crypto.ProviderByName(cfg.HashAlg); err != nil {
		return err
	}
	if _, err := crypto.SealerByName(cfg.SealMode); err != nil {
		return err
	}
	return nil
}

// NewLogger builds the process logger at the configured level.
func NewLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
