// Package domain contains core domain types for the Bitacora relay.
package domain

import (
	"time"
)

// EstadoRegistro is the lifecycle state of a registro in the system of
// record. The numeric values match the Registros.Estado column and must not
// be reordered.
type EstadoRegistro int

const (
	EstadoPendiente EstadoRegistro = iota // awaiting planning
	EstadoEnEspera                        // estimated, ready to start
	EstadoEnProceso                       // actively being timed by a session
	EstadoPausado
	EstadoCerrado
)

// Texto returns the display label used on status_update payloads.
func (e EstadoRegistro) Texto() string {
	switch e {
	case EstadoPendiente:
		return "Pendiente"
	case EstadoEnEspera:
		return "En Espera"
	case EstadoEnProceso:
		return "En Curso"
	case EstadoPausado:
		return "En Pausa"
	case EstadoCerrado:
		return "Cerrado"
	default:
		return "Desconocido"
	}
}

// Registro is a work item as the relay sees it. The relay never creates
// registros; it only applies the guarded EnProceso -> Pausado transition and
// reads rows back in tests and diagnostics.
type Registro struct {
	ID        string         `json:"registroId"`
	Tipo      string         `json:"tipo"`
	Titulo    string         `json:"titulo"`
	Prioridad string         `json:"prioridad"`
	Estado    EstadoRegistro `json:"estado"`
	Proyecto  string         `json:"proyecto"`
	AsignadoA string         `json:"asignadoA,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// EnProceso reports whether the registro is currently being timed.
func (r *Registro) EnProceso() bool {
	return r.Estado == EstadoEnProceso
}
