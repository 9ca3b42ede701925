// Package store selects and opens a leave.Store backend from configuration.
package store

import (
	"context"
	"fmt"

	"github.com/warp/leave-ledger/config"
	"github.com/warp/leave-ledger/leave"
	"github.com/warp/leave-ledger/store/memory"
	"github.com/warp/leave-ledger/store/mongo"
	"github.com/warp/leave-ledger/store/sqlstore"
)

// Handle is an open backend. Close releases its connections.
type Handle struct {
	leave.Store
	Driver string
	close  func(context.Context) error
}

func (h *Handle) Close(ctx context.Context) error {
	if h.close == nil {
		return nil
	}
	return h.close(ctx)
}

// Open connects to the backend named by cfg.Driver and prepares its schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Handle, error) {
	switch cfg.Driver {
	case "memory":
		return &Handle{Store: memory.New(), Driver: cfg.Driver}, nil

	case "mongo":
		st, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close(ctx)
			return nil, err
		}
		return &Handle{Store: st, Driver: cfg.Driver, close: st.Close}, nil
	}

	dialect, err := sqlstore.ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	var st *sqlstore.Store
	if dialect == sqlstore.DialectSQLite {
		st, err = sqlstore.NewSQLite(cfg.DSN)
	} else {
		st, err = sqlstore.New(dialect, cfg.DSN)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", dialect, err)
	}
	if err := st.Ping(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("ping %s store: %w", dialect, err)
	}
	return &Handle{
		Store:  st,
		Driver: string(dialect),
		close:  func(context.Context) error { return st.Close() },
	}, nil
}
