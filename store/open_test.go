package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-ledger/config"
	"github.com/warp/leave-ledger/leave"
	"github.com/warp/leave-ledger/store"
)

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()

	for _, cfg := range []config.DatabaseConfig{
		{Driver: "memory"},
		{Driver: "sqlite", DSN: ":memory:"},
	} {
		t.Run(cfg.Driver, func(t *testing.T) {
			h, err := store.Open(ctx, cfg)
			require.NoError(t, err)
			defer h.Close(ctx)

			require.NoError(t, h.SaveCompany(ctx, leave.Company{ID: "acme"}))
			c, err := h.GetCompany(ctx, "acme")
			require.NoError(t, err)
			assert.Equal(t, "acme", c.ID)
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := store.Open(context.Background(), config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}
