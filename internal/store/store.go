// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/trazzo/bitacora-relay/internal/domain"
)

// Repository defines the interface the relay uses against the system of
// record. The relay's only write is the guarded pause transition; everything
// else is read-only diagnostics.
type Repository interface {
	// GetRegistro retrieves a registro by id. Returns (nil, nil) when the
	// row does not exist.
	GetRegistro(ctx context.Context, registroID string) (*domain.Registro, error)

	// UpsertRegistro creates or updates a registro row.
	UpsertRegistro(ctx context.Context, registro *domain.Registro) error

	// PauseIfEnProceso transitions the registro to Pausado only if it is
	// currently EnProceso, and reports the number of rows affected. Zero
	// rows means the registro was missing or already left EnProceso by
	// other means; that is not an error.
	PauseIfEnProceso(ctx context.Context, registroID string) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
