//go:build integration
// +build integration

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/solatis/ruletree/internal/core/db"
)

// setupPostgres starts a PostgreSQL container and returns a migrated store.
func setupPostgres(t *testing.T) *SQLStore {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "ruletree_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start PostgreSQL container")
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://test:test@%s:%s/ruletree_test?sslmode=disable", host, port.Port())
	database, err := db.Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	_, err = db.MigrateUp(ctx, database)
	require.NoError(t, err)
	require.NoError(t, db.RequireMigrations(ctx, database))

	q, err := db.LoadQueries(database)
	require.NoError(t, err)
	return NewSQLStore(q)
}

func TestSQLStore_Postgres(t *testing.T) {
	testRuleStore(t, setupPostgres(t))
}
