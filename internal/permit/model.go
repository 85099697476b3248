package permit

import (
	"errors"
	"time"
)

// Status is the persisted lifecycle state of a permit record. The record is
// deleted outright when the pending deadline expires; there is no terminal
// "expired" status in storage.
type Status string

const (
	// StatusPending marks a freshly issued permit awaiting payment proof.
	StatusPending Status = "PENDIENTE"
	// StatusProofSubmitted marks a permit whose owner sent a payment proof photo.
	StatusProofSubmitted Status = "COMPROBANTE_ENVIADO"
	// StatusAdminValidated marks a permit validated manually by an operator code.
	StatusAdminValidated Status = "VALIDADO_ADMIN"
)

// Permit is a circulation-permit record as stored in folios_registrados.
type Permit struct {
	Folio            string     `db:"folio"`
	Marca            string     `db:"marca"`
	Linea            string     `db:"linea"`
	Anio             string     `db:"anio"`
	NumeroSerie      string     `db:"numero_serie"`
	NumeroMotor      string     `db:"numero_motor"`
	Color            string     `db:"color"`
	Contribuyente    string     `db:"contribuyente"`
	FechaExpedicion  time.Time  `db:"fecha_expedicion"`
	FechaVencimiento time.Time  `db:"fecha_vencimiento"`
	Entidad          string     `db:"entidad"`
	Estado           Status     `db:"estado"`
	UserID           int64      `db:"user_id"`
	Username         string     `db:"username"`
	FechaComprobante *time.Time `db:"fecha_comprobante"`
}

// Expired reports whether the permit's legal validity window has passed.
// This is the 30-day window printed on the document, not the pending deadline.
func (p *Permit) Expired(now time.Time) bool {
	return now.After(p.FechaVencimiento)
}

// Submission carries the sanitized form data collected by the bot dialogue.
type Submission struct {
	Marca    string
	Linea    string
	Anio     string
	Serie    string
	Motor    string
	Color    string
	Nombre   string
	Username string
}

// Issued is returned to the caller after a successful Issue so the document
// renderer has the folio and both dates.
type Issued struct {
	Folio     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

var (
	// ErrNotFound indicates no permit record exists for the given folio.
	ErrNotFound = errors.New("permit: not found")
	// ErrNoPendingFolio indicates the user has no folio with an open deadline.
	ErrNoPendingFolio = errors.New("permit: no pending folio for user")
	// ErrBadAdminCode indicates the admin override text does not match the
	// expected marker+folio format.
	ErrBadAdminCode = errors.New("permit: malformed admin code")
)
