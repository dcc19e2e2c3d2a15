package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/vitaly-zn/coupons-project-back-end/internal/database"
	"github.com/vitaly-zn/coupons-project-back-end/internal/model"
	"github.com/vitaly-zn/coupons-project-back-end/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a migrated test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	Repo      *repository.PostgresRepository
}

// SetupTestDB starts a PostgreSQL container, applies migrations and returns
// a repository bound to it.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		t.Fatalf("failed to parse connection string: %v", err)
	}
	poolConfig.MaxConns = 20
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}
	if err := database.Migrate(ctx, pool, zerolog.Nop()); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		Repo:      repository.NewPostgresRepository(pool, zerolog.Nop()),
	}
}

// SeedAccounts inserts one company and the given number of customers with
// ids 1..customers.
func SeedAccounts(t *testing.T, db *TestDB, customers int) {
	t.Helper()

	ctx := context.Background()
	if err := db.Repo.UpsertCompany(ctx, &model.Company{ID: 1, Name: "Acme", Email: "acme@example.com"}); err != nil {
		t.Fatalf("failed to seed company: %v", err)
	}
	for i := 1; i <= customers; i++ {
		c := &model.Customer{ID: int64(i), FirstName: fmt.Sprintf("Customer%d", i), Email: fmt.Sprintf("c%d@example.com", i)}
		if err := db.Repo.UpsertCustomer(ctx, c); err != nil {
			t.Fatalf("failed to seed customer %d: %v", i, err)
		}
	}
}

// CleanupDB empties every table and resets identities.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(),
		`TRUNCATE customer_coupons, coupons, customers, companies RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("failed to clean tables: %v", err)
	}
}

// CountEntries returns the number of ledger rows for a coupon.
func CountEntries(t *testing.T, pool *pgxpool.Pool, couponID int64) int {
	t.Helper()

	var n int
	err := pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM customer_coupons WHERE coupon_id = $1`, couponID).Scan(&n)
	if err != nil {
		t.Fatalf("failed to count entries: %v", err)
	}
	return n
}
