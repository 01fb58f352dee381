// Command admin is the operator CLI: it computes commitments, mints caller
// tokens and reads the persisted ledger.
package main

import (
	"fmt"
	"os"

	"safecase/backend/internal/config"
	"safecase/backend/internal/storage"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	a := &app{
		out:        os.Stdout,
		loadConfig: func() (*config.Config, error) { return config.Load() },
		openStore:  openStore,
	}
	if err := newRootCmd(a).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore connects to the database read side. No Redis is needed here.
func openStore(cfg *config.Config) (store, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return storage.NewStorageService(db, nil, zap.NewNop()), nil
}
