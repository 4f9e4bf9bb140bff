package bootstrap

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/wolfman30/spa-booking-wizard/internal/audit"
	"github.com/wolfman30/spa-booking-wizard/internal/bookings"
	"github.com/wolfman30/spa-booking-wizard/pkg/logging"
)

// Persistence holds the optional Postgres-backed ledger and audit trail.
type Persistence struct {
	Pool     *pgxpool.Pool
	SQL      *sql.DB
	Bookings *bookings.Repository
	Audit    *audit.Writer
}

// Close releases both connection pools.
func (p *Persistence) Close() {
	if p == nil {
		return
	}
	if p.Pool != nil {
		p.Pool.Close()
	}
	if p.SQL != nil {
		_ = p.SQL.Close()
	}
}

// ConnectPostgresPool returns nil when databaseURL is empty or unreachable.
func ConnectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(databaseURL) == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres not reachable", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// BuildPersistence wires the booking ledger on pgx and the audit trail on
// database/sql. Without a database both are nil and the wizard still runs.
func BuildPersistence(ctx context.Context, databaseURL string, logger *logging.Logger) *Persistence {
	if logger == nil {
		logger = logging.Default()
	}
	pool := ConnectPostgresPool(ctx, databaseURL, logger)
	if pool == nil {
		logger.Warn("DATABASE_URL not set or unreachable; confirmed bookings are not recorded locally")
		return &Persistence{}
	}

	p := &Persistence{Pool: pool, Bookings: bookings.NewRepository(pool)}
	sqlDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		logger.Error("failed to open audit database", "error", err)
		return p
	}
	p.SQL = sqlDB
	p.Audit = audit.NewWriter(sqlDB, logger)
	return p
}
