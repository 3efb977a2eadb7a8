package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ecofinds/marketplace/internal/domain"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	mysqlmigrate "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

var ErrUnknownDriver = errors.New("unknown audit driver")

// Recorder is the write side of the audit ledger.
type Recorder interface {
	RecordAudit(ctx context.Context, entry domain.AuditEntry) error
	RecordAdminAction(ctx context.Context, action domain.AdminAction) error
}

// Ledger is the full audit store, read side included.
type Ledger interface {
	Recorder
	ListAudit(ctx context.Context, f Filter) ([]domain.AuditEntry, error)
	ListAdminActions(ctx context.Context, adminID string, limit int) ([]domain.AdminAction, error)
}

// Filter narrows audit log listings. Zero values mean no filter.
type Filter struct {
	EntityType string
	EntityID   string
	Limit      int
	Offset     int
}

type Store struct {
	db     *sql.DB
	driver string
}

func NewStore(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	case DriverMySQL:
		cfg, err := gomysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid mysql dsn: %w", err)
		}
		// Migration files hold several statements and rows carry DATETIME columns.
		cfg.MultiStatements = true
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		dsn = cfg.FormatDSN()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == DriverSQLite {
		// One connection, so ":memory:" databases are shared by every query.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}
	return &Store{db: db, driver: driver}, nil
}

// RunMigrations applies the migrations for the store's driver found under
// migrationsPath/<driver>.
func (s *Store) RunMigrations(migrationsPath string) error {
	var (
		driver database.Driver
		err    error
	)
	switch s.driver {
	case DriverPostgres:
		driver, err = postgres.WithInstance(s.db, &postgres.Config{MigrationsTable: "audit_schema_migrations"})
	case DriverMySQL:
		driver, err = mysqlmigrate.WithInstance(s.db, &mysqlmigrate.Config{MigrationsTable: "audit_schema_migrations"})
	case DriverSQLite:
		driver, err = sqlite.WithInstance(s.db, &sqlite.Config{MigrationsTable: "audit_schema_migrations"})
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", filepath.Join(migrationsPath, s.driver)),
		s.driver,
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (s *Store) RecordAudit(ctx context.Context, e domain.AuditEntry) error {
	details, err := encodeDetails(e.Details)
	if err != nil {
		return err
	}
	if e.ChangedByType == "" {
		e.ChangedByType = domain.ActorSystem
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO audit_logs (entity_type, entity_id, action, changed_by, changed_by_type, details, created_at)
	          VALUES (` + s.placeholders(7) + `)`
	_, err = s.db.ExecContext(ctx, query,
		e.EntityType,
		nullString(e.EntityID),
		e.Action,
		nullString(e.ChangedBy),
		string(e.ChangedByType),
		details,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s *Store) RecordAdminAction(ctx context.Context, a domain.AdminAction) error {
	details, err := encodeDetails(a.Details)
	if err != nil {
		return err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO admin_actions (admin_id, action_type, target_type, target_id, reason, details, created_at)
	          VALUES (` + s.placeholders(7) + `)`
	_, err = s.db.ExecContext(ctx, query,
		a.AdminID,
		a.ActionType,
		a.TargetType,
		a.TargetID,
		nullString(a.Reason),
		details,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert admin action: %w", err)
	}
	return nil
}

// ListAudit returns audit log rows newest first.
func (s *Store) ListAudit(ctx context.Context, f Filter) ([]domain.AuditEntry, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var (
		conds []string
		args  []any
	)
	if f.EntityType != "" {
		args = append(args, f.EntityType)
		conds = append(conds, "entity_type = "+s.placeholder(len(args)))
	}
	if f.EntityID != "" {
		args = append(args, f.EntityID)
		conds = append(conds, "entity_id = "+s.placeholder(len(args)))
	}
	args = append(args, limit, f.Offset)

	query := fmt.Sprintf(`SELECT id, entity_type, entity_id, action, changed_by, changed_by_type, details, created_at
	          FROM audit_logs %s
	          ORDER BY created_at DESC, id DESC
	          LIMIT %s OFFSET %s`, where(conds), s.placeholder(len(args)-1), s.placeholder(len(args)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.AuditEntry, 0)
	for rows.Next() {
		var (
			e                    domain.AuditEntry
			entityID, changedBy  sql.NullString
			changedByType, extra sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.EntityType, &entityID, &e.Action, &changedBy, &changedByType, &extra, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		e.EntityID = entityID.String
		e.ChangedBy = changedBy.String
		e.ChangedByType = domain.ActorType(changedByType.String)
		if e.Details, err = decodeDetails(extra); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// ListAdminActions returns the most recent admin actions, optionally for one admin.
func (s *Store) ListAdminActions(ctx context.Context, adminID string, limit int) ([]domain.AdminAction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var (
		conds []string
		args  []any
	)
	if adminID != "" {
		args = append(args, adminID)
		conds = append(conds, "admin_id = "+s.placeholder(len(args)))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT id, admin_id, action_type, target_type, target_id, reason, details, created_at
	          FROM admin_actions %s
	          ORDER BY created_at DESC, id DESC
	          LIMIT %s`, where(conds), s.placeholder(len(args)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query admin actions: %w", err)
	}
	defer rows.Close()

	actions := make([]domain.AdminAction, 0)
	for rows.Next() {
		var (
			a             domain.AdminAction
			reason, extra sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.AdminID, &a.ActionType, &a.TargetType, &a.TargetID, &reason, &extra, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan admin action row: %w", err)
		}
		a.Reason = reason.String
		if a.Details, err = decodeDetails(extra); err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return actions, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// placeholder returns the bind parameter for the n-th argument in the store's dialect.
func (s *Store) placeholder(n int) string {
	if s.driver == DriverMySQL {
		return "?"
	}
	return "$" + strconv.Itoa(n)
}

func (s *Store) placeholders(n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = s.placeholder(i + 1)
	}
	return strings.Join(out, ", ")
}

func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conds, " AND ")
}

func encodeDetails(details map[string]any) (sql.NullString, error) {
	if len(details) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal details: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodeDetails(raw sql.NullString) (map[string]any, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var details map[string]any
	if err := json.Unmarshal([]byte(raw.String), &details); err != nil {
		return nil, fmt.Errorf("unmarshal details: %w", err)
	}
	return details, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
