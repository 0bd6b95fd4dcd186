// Package store keeps the demo people table in SQLite and exposes ordered
// query snapshots as livelist sources.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/livefir/livelist"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	// DriverSQLite is the pure Go driver from modernc.org/sqlite.
	DriverSQLite = "sqlite"
	// DriverSQLite3 is the cgo driver from github.com/mattn/go-sqlite3.
	DriverSQLite3 = "sqlite3"

	migrationsDir = "migrations"
)

// ErrUnknownColumn is returned for orderings on columns the table lacks.
var ErrUnknownColumn = errors.New("unknown column")

// Columns of the people table, in select order.
var Columns = []string{"id", "name", "city", "email", "created_at"}

// Schema describes the people table to the coordinator.
var Schema = livelist.Schema{
	PrimaryKey: "id",
	Columns: map[string]livelist.ColumnType{
		"id":         livelist.ColumnInteger,
		"name":       livelist.ColumnString,
		"city":       livelist.ColumnString,
		"email":      livelist.ColumnString,
		"created_at": livelist.ColumnTime,
	},
}

// Person is one row of the people table.
type Person struct {
	ID        int64
	Name      string
	City      string
	Email     string
	CreatedAt time.Time
}

// Record converts the person for a livelist source.
func (p Person) Record() livelist.Record {
	return livelist.Record{
		"id":         p.ID,
		"name":       p.Name,
		"city":       p.City,
		"email":      p.Email,
		"created_at": p.CreatedAt,
	}
}

// Store wraps a SQLite database holding the people table.
type Store struct {
	db     *sql.DB
	path   string
	driver string
	logger *zap.Logger
}

// Open opens the database at path with the given driver. The database is
// created if missing; call Migrate before using it.
func Open(ctx context.Context, driver, path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn, err := dataSourceName(driver, path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", path)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to connect to database %s with driver %s", path, driver)
	}

	logger.Debug("database opened", zap.String("path", path), zap.String("driver", driver))
	return &Store{db: db, path: path, driver: driver, logger: logger}, nil
}

func dataSourceName(driver, path string) (string, error) {
	switch driver {
	case DriverSQLite:
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path), nil
	case DriverSQLite3:
		return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path), nil
	default:
		return "", errors.Newf("unsupported driver %q", driver)
	}
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Driver returns the driver name the store was opened with.
func (s *Store) Driver() string { return s.driver }

// goose keeps its dialect and filesystem in package state.
var gooseMu sync.Mutex

func (s *Store) prepareGoose() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{s.logger.Sugar()})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return errors.Wrap(err, "failed to set dialect")
	}
	return nil
}

// Migrate runs all pending migrations
func (s *Store) Migrate(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := s.prepareGoose(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, s.db, migrationsDir); err != nil {
		return errors.Wrap(err, "migration up failed")
	}
	return nil
}

// Rollback rolls back the most recent migration
func (s *Store) Rollback(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := s.prepareGoose(); err != nil {
		return err
	}
	if err := goose.DownContext(ctx, s.db, migrationsDir); err != nil {
		return errors.Wrap(err, "migration down failed")
	}
	return nil
}

// Version returns the current schema version.
func (s *Store) Version(ctx context.Context) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := s.prepareGoose(); err != nil {
		return 0, err
	}
	v, err := goose.GetDBVersionContext(ctx, s.db)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read schema version")
	}
	return v, nil
}

type gooseLogger struct {
	*zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.Debugf(format, v...)
}

// Insert adds a person and returns its id.
func (s *Store) Insert(ctx context.Context, name, city, email string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO people (name, city, email) VALUES (?, ?, ?)`, name, city, email)
	if err != nil {
		return 0, errors.Wrap(err, "insert person")
	}
	return res.LastInsertId()
}

// InsertMany adds people in one transaction.
func (s *Store) InsertMany(ctx context.Context, people []Person) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO people (name, city, email) VALUES (?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	for _, p := range people {
		if _, err := stmt.ExecContext(ctx, p.Name, p.City, p.Email); err != nil {
			return errors.Wrapf(err, "insert %q", p.Name)
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// Delete removes the person with id. Deleting a missing id is not an error.
func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM people WHERE id = ?`, id)
	return errors.Wrapf(err, "delete person %d", id)
}

// Rename changes the name of the person with id.
func (s *Store) Rename(ctx context.Context, id int64, name string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE people SET name = ? WHERE id = ?`, name, id)
	return errors.Wrapf(err, "rename person %d", id)
}

// Count returns the number of people.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM people`).Scan(&n)
	return n, errors.Wrap(err, "count people")
}

// RandomID returns the id of a random person, or false when the table is
// empty.
func (s *Store) RandomID(ctx context.Context) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM people ORDER BY RANDOM() LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "pick random person")
	}
	return id, true, nil
}

func validOrder(column string) bool {
	for _, c := range Columns {
		if c == column {
			return true
		}
	}
	return false
}

// List returns people ordered by column, ties broken by id. A limit of zero
// or less returns every row.
func (s *Store) List(ctx context.Context, orderBy string, limit int) ([]Person, error) {
	if orderBy == "" {
		orderBy = "id"
	}
	if !validOrder(orderBy) {
		return nil, errors.Wrapf(ErrUnknownColumn, "order by %q", orderBy)
	}

	query := fmt.Sprintf(`SELECT id, name, city, email, created_at FROM people ORDER BY %s, id`, orderBy)
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list people")
	}
	defer rows.Close()

	var people []Person
	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.ID, &p.Name, &p.City, &p.Email, &p.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan person")
		}
		people = append(people, p)
	}
	return people, errors.Wrap(rows.Err(), "iterate people")
}
