package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/samber/lo"

	"parley/internal/pkg/logx"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// PostgresStore keeps messages in a PostgreSQL table, for deployments where
// history must outlive the node or be shared between nodes.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres initializes a connection pool, applies pending migrations,
// and returns the store.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := runMigrations(sqlDB); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// runMigrations applies all pending migrations from the embedded file system.
func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	logx.Info("Database migrations applied")
	return nil
}

// Append inserts one accepted message. A duplicate message ID is treated as
// an already-applied append and ignored.
func (s *PostgresStore) Append(ctx context.Context, msg Message) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, room, author_id, author_name, body, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.Room, msg.AuthorID, msg.AuthorName, msg.Body, msg.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("inserting message %s: %w", msg.ID, err)
	}

	return nil
}

// RecentByRoom returns up to limit of the newest messages in the room,
// oldest first.
func (s *PostgresStore) RecentByRoom(ctx context.Context, room string, limit int) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, room, author_id, author_name, body, created_at
		 FROM messages
		 WHERE room = $1
		 ORDER BY id DESC
		 LIMIT $2`,
		room, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying room %s: %w", room, err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.Room, &msg.AuthorID, &msg.AuthorName, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading message rows: %w", err)
	}

	return lo.Reverse(messages), nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
