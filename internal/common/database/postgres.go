// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"academic-advisor/internal/common/config"

	_ "github.com/lib/pq"
)

// PostgresClient wraps the connection pool backing the progress and graph
// stores.
type PostgresClient struct {
	DB *sql.DB
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	return NewPostgresFromDB(db), nil
}

// NewPostgresFromDB wraps an existing pool. Used with sqlmock in tests.
func NewPostgresFromDB(db *sql.DB) *PostgresClient {
	return &PostgresClient{DB: db}
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// AdvisorTables are read by the progress and graph stores.
var AdvisorTables = []string{"courses", "student_grades", "course_skills", "course_specializations"}

// CheckSchema reports the advisor tables missing from the connected database.
func (c *PostgresClient) CheckSchema(ctx context.Context) error {
	rows, err := c.DB.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema()`)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	present := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan table name: %w", err)
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var missing []string
	for _, t := range AdvisorTables {
		if !present[t] {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing advisor tables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
