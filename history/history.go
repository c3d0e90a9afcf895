// Package history records processing runs in Postgres.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
	_ "github.com/jackc/pgx/v5/stdlib"

	"practice-insights/pipeline"
)

var validSchema = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Store writes runs into one schema.
type Store struct {
	db     *sql.DB
	schema string
}

// Open connects with the pgx driver and checks the connection.
func Open(ctx context.Context, url, schema string) (*Store, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	s, err := New(db, schema)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database. The schema name is validated because it is
// interpolated into statements.
func New(db *sql.DB, schema string) (*Store, error) {
	schema = strings.TrimSpace(schema)
	if !validSchema.MatchString(schema) {
		return nil, fmt.Errorf("invalid schema name: %q", schema)
	}
	return &Store{db: db, schema: schema}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the schema and tables if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, s.schema)); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.runs (
			id uuid PRIMARY KEY,
			created_at timestamptz NOT NULL,
			population numeric(12,2) NOT NULL,
			months integer NOT NULL,
			fallback_rows integer NOT NULL,
			dropped_rows integer NOT NULL,
			config jsonb NOT NULL
		)`, s.schema))
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.run_months (
			run_id uuid NOT NULL REFERENCES %s.runs(id) ON DELETE CASCADE,
			month text NOT NULL,
			month_start date NOT NULL,
			total_appts integer NOT NULL,
			gp_appts integer NOT NULL,
			working_days integer NOT NULL,
			metrics jsonb NOT NULL,
			PRIMARY KEY (run_id, month)
		)`, s.schema, s.schema))
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_run_months_start_idx ON %s.run_months (month_start)`, s.schema, s.schema))
	return err
}

// SaveRun stores a run and its enriched months in one transaction.
func (s *Store) SaveRun(ctx context.Context, res *pipeline.Result) (err error) {
	config, err := json.Marshal(res.Config)
	if err != nil {
		return fmt.Errorf("encoding run config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s.runs (
			id, created_at, population, months, fallback_rows, dropped_rows, config
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7
		)`, s.schema),
		res.RunID,
		res.CreatedAt,
		res.Config.Population,
		len(res.Months),
		res.Fallback,
		res.Dropped,
		string(config),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", res.RunID, err)
	}

	insertMonthSQL := fmt.Sprintf(`
		INSERT INTO %s.run_months (
			run_id, month, month_start, total_appts, gp_appts, working_days, metrics
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7
		)`, s.schema)

	for _, m := range res.Months {
		metrics, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encoding month %s: %w", m.Month, err)
		}
		_, err = tx.ExecContext(ctx, insertMonthSQL,
			res.RunID,
			m.Month,
			m.Date,
			m.TotalAppts,
			m.GPAppts,
			m.WorkingDays,
			string(metrics),
		)
		if err != nil {
			return fmt.Errorf("inserting month %s: %w", m.Month, err)
		}
	}

	return tx.Commit()
}
