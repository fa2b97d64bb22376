package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/atomicdeploy/tablecrud/pkg/config"
	"github.com/atomicdeploy/tablecrud/pkg/schema"

	// Database drivers
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var (
	// ErrPrimaryKeyMismatch is returned when the id in the request disagrees with the record's key column
	ErrPrimaryKeyMismatch = errors.New("primary key value mismatch")
	// ErrRecordWidth is returned when a record does not have one value per declared column
	ErrRecordWidth = errors.New("record width does not match table")
)

// Store executes CRUD statements for the compiled-in tables over a connection pool
type Store struct {
	db      *sql.DB
	dialect Dialect
	log     zerolog.Logger
}

// Open connects to the configured database and verifies the connection
func Open(ctx context.Context, cfg config.Database, logger zerolog.Logger) (*Store, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, cfg.DataSourceName())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if cfg.Driver == config.DriverSQLite && cfg.DataSourceName() == ":memory:" {
		// every connection to :memory: is a separate database
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Driver, err)
	}

	return New(db, dialect, logger), nil
}

// New wraps an already opened database handle
func New(db *sql.DB, dialect Dialect, logger zerolog.Logger) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		log:     logger.With().Str("component", "store").Logger(),
	}
}

// DB returns the underlying handle
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect in use
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Ping checks that the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// ListRows returns every row of t. Row order is whatever the database returns.
func (s *Store) ListRows(ctx context.Context, t schema.Table) ([]schema.Record, error) {
	td, err := descriptor(t)
	if err != nil {
		return nil, err
	}

	query := s.dialect.selectQuery(td)
	begin := time.Now()
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.trace(begin, query, -1, err)
		return nil, fmt.Errorf("failed to list %s: %w", td.Name, err)
	}
	defer rows.Close()

	records := []schema.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows, len(td.Fields))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s row: %w", td.Name, err)
		}
		records = append(records, rec)
	}
	err = rows.Err()
	s.trace(begin, query, int64(len(records)), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", td.Name, err)
	}
	return records, nil
}

// GetRow returns the row of t whose primary key is id
func (s *Store) GetRow(ctx context.Context, t schema.Table, id int64) (schema.Record, error) {
	td, err := descriptor(t)
	if err != nil {
		return nil, err
	}

	query := s.dialect.selectOneQuery(td)
	begin := time.Now()
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		s.trace(begin, query, -1, err)
		return nil, fmt.Errorf("failed to read %s %d: %w", td.Name, id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		err := rows.Err()
		s.trace(begin, query, 0, err)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s %d: %w", td.Name, id, err)
		}
		return nil, fmt.Errorf("%s %d: %w", td.Name, id, schema.ErrNotFound)
	}

	rec, err := scanRecord(rows, len(td.Fields))
	s.trace(begin, query, 1, err)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %d: %w", td.Name, id, err)
	}
	return rec, nil
}

// DeleteRow removes the row with the given primary key. Deleting a missing row is not an error.
func (s *Store) DeleteRow(ctx context.Context, t schema.Table, id int64) error {
	td, err := descriptor(t)
	if err != nil {
		return err
	}

	if _, err := s.exec(ctx, s.dialect.deleteQuery(td), id); err != nil {
		return fmt.Errorf("failed to delete %s %d: %w", td.Name, id, err)
	}
	return nil
}

// InsertRow stores rec as a new row and returns the key assigned by the database.
// The record's key column must be empty or zero.
func (s *Store) InsertRow(ctx context.Context, t schema.Table, rec schema.Record) (int64, error) {
	td, err := descriptor(t)
	if err != nil {
		return 0, err
	}
	if len(rec) != len(td.Fields) {
		return 0, fmt.Errorf("%s: got %d values for %d columns: %w", td.Name, len(rec), len(td.Fields), ErrRecordWidth)
	}
	if key, ok := rec.Key(); ok && key != 0 {
		return 0, fmt.Errorf("%s: insert with key %d: %w", td.Name, key, ErrPrimaryKeyMismatch)
	}

	query := s.dialect.insertQuery(td)
	args := []any(rec[1:])

	if s.dialect.returning {
		var id int64
		begin := time.Now()
		err := s.db.QueryRowContext(ctx, query, args...).Scan(&id)
		s.trace(begin, query, 1, err)
		if err != nil {
			return 0, fmt.Errorf("failed to insert into %s: %w", td.Name, err)
		}
		return id, nil
	}

	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", td.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read new %s key: %w", td.Name, err)
	}
	return id, nil
}

// UpdateRow overwrites the row with primary key id. The record's key column must equal id.
func (s *Store) UpdateRow(ctx context.Context, t schema.Table, id int64, rec schema.Record) error {
	td, err := descriptor(t)
	if err != nil {
		return err
	}
	if len(rec) != len(td.Fields) {
		return fmt.Errorf("%s: got %d values for %d columns: %w", td.Name, len(rec), len(td.Fields), ErrRecordWidth)
	}
	if key, ok := rec.Key(); !ok || key != id {
		return fmt.Errorf("%s: id %d, record key %v: %w", td.Name, id, rec[0], ErrPrimaryKeyMismatch)
	}

	args := append([]any(rec[1:len(rec):len(rec)]), id)
	if _, err := s.exec(ctx, s.dialect.updateQuery(td), args...); err != nil {
		return fmt.Errorf("failed to update %s %d: %w", td.Name, id, err)
	}
	return nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	begin := time.Now()
	res, err := s.db.ExecContext(ctx, query, args...)
	rows := int64(-1)
	if err == nil {
		if n, rerr := res.RowsAffected(); rerr == nil {
			rows = n
		}
	}
	s.trace(begin, query, rows, err)
	return res, err
}

// trace logs one executed statement
func (s *Store) trace(begin time.Time, query string, rows int64, err error) {
	elapsed := time.Since(begin)

	var event *zerolog.Event
	if err != nil {
		event = s.log.Error().Err(err)
	} else {
		event = s.log.Debug()
	}

	event = event.
		Str("duration", fmt.Sprintf("%.3fms", float64(elapsed.Nanoseconds())/1e6)).
		Str("sql", query)
	if rows != -1 {
		event = event.Int64("rows", rows)
	}
	event.Msg("SQL executed")
}

func descriptor(t schema.Table) (*schema.TableDescriptor, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("table %s: %w", t, schema.ErrNotFound)
	}
	return t.Descriptor(), nil
}

func scanRecord(rows *sql.Rows, width int) (schema.Record, error) {
	values := make([]any, width)
	dest := make([]any, width)
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}

	rec := make(schema.Record, width)
	for i, v := range values {
		rec[i] = normalize(v)
	}
	return rec, nil
}

// normalize turns driver-specific scan results into plain scalars
func normalize(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(schema.DateLayout)
	default:
		return v
	}
}
