// Command leavectl is the operator CLI for the leave ledger: it previews
// chargeable days from a company file, imports companies, backfills
// historical leave from CSV, runs monthly accrual and mints API tokens.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/leave-ledger/config"
	"github.com/warp/leave-ledger/leave"
	"github.com/warp/leave-ledger/store"
)

var (
	envFile string
	actorID string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:           "leavectl",
	Short:         "Leave ledger operator CLI",
	Long:          "Administrative commands for the leave ledger: company import, CSV backfill, accrual runs and token issuance.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "path to .env file")
	rootCmd.PersistentFlags().StringVar(&actorID, "actor", "leavectl", "admin actor ID recorded on writes")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	zc := zap.NewDevelopmentConfig()
	if !verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := zc.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// adminActor is the CLI operator acting as an admin of companyID.
func adminActor(companyID string) leave.Actor {
	return leave.Actor{ID: actorID, Role: leave.RoleAdmin, CompanyID: companyID}
}

func loadConfig() (*config.Config, error) {
	return config.Load(envFile)
}

// openService loads configuration and opens the configured store. The
// returned func closes the store.
func openService(ctx context.Context) (*leave.Service, *config.Config, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store: %w", err)
	}
	logger := newLogger()
	svc := leave.NewService(db,
		leave.WithLogger(logger),
		leave.WithMaxRetries(cfg.Ledger.MaxRetries),
		leave.WithMaxRangeDays(cfg.Ledger.MaxRangeDays),
	)
	return svc, cfg, func() {
		_ = db.Close(context.Background())
		_ = logger.Sync()
	}, nil
}
