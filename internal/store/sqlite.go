package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/trazzo/bitacora-relay/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS registros (
		id TEXT PRIMARY KEY,
		tipo TEXT NOT NULL DEFAULT '',
		titulo TEXT NOT NULL DEFAULT '',
		prioridad TEXT NOT NULL DEFAULT '',
		estado INTEGER NOT NULL DEFAULT 0,
		proyecto TEXT NOT NULL DEFAULT '',
		asignado_a TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_registros_estado ON registros(estado);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetRegistro retrieves a registro by its id.
func (s *SQLiteStore) GetRegistro(ctx context.Context, registroID string) (*domain.Registro, error) {
	query := `
		SELECT id, tipo, titulo, prioridad, estado, proyecto, asignado_a,
		       created_at, updated_at
		FROM registros WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, registroID)

	var registro domain.Registro
	var estado int
	var createdAt, updatedAt int64

	err := row.Scan(
		&registro.ID, &registro.Tipo, &registro.Titulo, &registro.Prioridad,
		&estado, &registro.Proyecto, &registro.AsignadoA,
		&createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan registro row: %w", err)
	}

	registro.Estado = domain.EstadoRegistro(estado)
	registro.CreatedAt = time.Unix(createdAt, 0)
	registro.UpdatedAt = time.Unix(updatedAt, 0)

	return &registro, nil
}

// UpsertRegistro creates or updates a registro row.
func (s *SQLiteStore) UpsertRegistro(ctx context.Context, registro *domain.Registro) error {
	query := `
	INSERT INTO registros (id, tipo, titulo, prioridad, estado, proyecto, asignado_a, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		tipo = excluded.tipo,
		titulo = excluded.titulo,
		prioridad = excluded.prioridad,
		estado = excluded.estado,
		proyecto = excluded.proyecto,
		asignado_a = excluded.asignado_a,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		registro.ID, registro.Tipo, registro.Titulo, registro.Prioridad,
		int(registro.Estado), registro.Proyecto, registro.AsignadoA,
		registro.CreatedAt.Unix(), registro.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert registro: %w", err)
	}
	return nil
}

// PauseIfEnProceso applies the guarded EnProceso -> Pausado transition.
// The WHERE clause is the whole correctness mechanism: a registro the user
// already paused, closed, or re-planned through the normal UI is left alone.
func (s *SQLiteStore) PauseIfEnProceso(ctx context.Context, registroID string) (int64, error) {
	query := `UPDATE registros SET estado = ?, updated_at = ? WHERE id = ? AND estado = ?`
	result, err := s.db.ExecContext(ctx, query,
		int(domain.EstadoPausado), time.Now().Unix(),
		registroID, int(domain.EstadoEnProceso),
	)
	if err != nil {
		return 0, fmt.Errorf("pause registro: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return rows, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
