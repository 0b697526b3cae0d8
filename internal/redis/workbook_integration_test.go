//go:build integration

package redis

import (
	"context"
	"testing"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/mesh-intelligence/formtrack/internal/workbooktest"
	"github.com/mesh-intelligence/formtrack/pkg/types"
)

// startRedis runs a throwaway Redis container for the test.
func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start redis container")

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err, "redis connection string")
	return url
}

func TestWorkbookConformance_Redis(t *testing.T) {
	url := startRedis(t)
	opts, err := goredis.ParseURL(url)
	require.NoError(t, err)
	client := goredis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	workbooktest.Run(t, func(t *testing.T) types.Workbook {
		// A fresh prefix isolates each subtest on the shared server.
		return New(client, "test-"+uuid.NewString())
	})
}

func TestDial(t *testing.T) {
	url := startRedis(t)
	ctx := context.Background()

	wb, err := Dial(ctx, url, "dial")
	require.NoError(t, err)
	require.NoError(t, wb.ReplaceTable(ctx, types.StatusTable, [][]string{types.StatusHeader}))

	got, err := wb.Values(ctx, types.StatusTable)
	require.NoError(t, err)
	require.Equal(t, [][]string{types.StatusHeader}, got)

	require.NoError(t, wb.Close())
	require.NoError(t, wb.Close())
}
