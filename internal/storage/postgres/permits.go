// Package postgres persists permit records. Every record lives in two
// tables: folios_registrados is the authoritative registry the public
// status pages read, borradores_registros keeps the raw submission the
// operators review. Writes target both; the draft copy is best effort.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"log/slog"

	"github.com/Gsr1989/Aguascalientes/core/logger"
	"github.com/Gsr1989/Aguascalientes/internal/permit"
)

const permitColumns = `folio, marca, linea, anio, numero_serie, numero_motor, color,
	contribuyente, fecha_expedicion, fecha_vencimiento, entidad, estado,
	user_id, username, fecha_comprobante`

// PermitStore implements permit.Store on top of Postgres via sqlx.
type PermitStore struct {
	db *sqlx.DB
}

var _ permit.Store = (*PermitStore)(nil)

// NewPermitStore wraps an open connection pool.
func NewPermitStore(db *sqlx.DB) *PermitStore {
	return &PermitStore{db: db}
}

// Insert writes the record to the registry and mirrors it into the drafts
// table. The registry insert is authoritative; folio uniqueness is enforced
// by its primary key. A failed draft mirror is logged and swallowed.
func (s *PermitStore) Insert(ctx context.Context, p *permit.Permit) error {
	const q = `INSERT INTO folios_registrados (` + permitColumns + `)
		VALUES (:folio, :marca, :linea, :anio, :numero_serie, :numero_motor, :color,
			:contribuyente, :fecha_expedicion, :fecha_vencimiento, :entidad, :estado,
			:user_id, :username, :fecha_comprobante)`

	start := time.Now()
	if _, err := s.db.NamedExecContext(ctx, q, p); err != nil {
		logger.DB.Error("permit insert failed",
			slog.String("event", "permits.insert"),
			slog.String("folio", p.Folio),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("insert permit %s: %w", p.Folio, err)
	}

	const draftQ = `INSERT INTO borradores_registros (` + permitColumns + `)
		VALUES (:folio, :marca, :linea, :anio, :numero_serie, :numero_motor, :color,
			:contribuyente, :fecha_expedicion, :fecha_vencimiento, :entidad, :estado,
			:user_id, :username, :fecha_comprobante)`
	if _, err := s.db.NamedExecContext(ctx, draftQ, p); err != nil {
		logger.DB.Warn("draft mirror failed",
			slog.String("event", "permits.insert.draft"),
			slog.String("folio", p.Folio),
			slog.String("err", err.Error()),
		)
	}

	logger.DB.Debug("permit inserted",
		slog.String("event", "permits.insert"),
		slog.String("folio", p.Folio),
		slog.String("estado", string(p.Estado)),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// UpdateStatus moves the record to the given status and stamps the proof or
// validation time on both tables.
func (s *PermitStore) UpdateStatus(ctx context.Context, folio string, st permit.Status, at time.Time) error {
	const q = `UPDATE folios_registrados
		SET estado = $1, fecha_comprobante = $2 WHERE folio = $3`

	res, err := s.db.ExecContext(ctx, q, string(st), at, folio)
	if err != nil {
		logger.DB.Error("status update failed",
			slog.String("event", "permits.update_status"),
			slog.String("folio", folio),
			slog.String("estado", string(st)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("update status for %s: %w", folio, err)
	}
	if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
		return fmt.Errorf("update status for %s: %w", folio, permit.ErrNotFound)
	}

	const draftQ = `UPDATE borradores_registros
		SET estado = $1, fecha_comprobante = $2 WHERE folio = $3`
	if _, err := s.db.ExecContext(ctx, draftQ, string(st), at, folio); err != nil {
		logger.DB.Warn("draft status update failed",
			slog.String("event", "permits.update_status.draft"),
			slog.String("folio", folio),
			slog.String("err", err.Error()),
		)
	}

	logger.DB.Info("status updated",
		slog.String("event", "permits.update_status"),
		slog.String("folio", folio),
		slog.String("estado", string(st)),
	)
	return nil
}

// Delete removes the folio from both tables. Each table is attempted even
// when the other fails; an absent folio is not an error.
func (s *PermitStore) Delete(ctx context.Context, folio string) error {
	var errs []error
	for _, table := range []string{"folios_registrados", "borradores_registros"} {
		q := fmt.Sprintf("DELETE FROM %s WHERE folio = $1", table)
		if _, err := s.db.ExecContext(ctx, q, folio); err != nil {
			logger.DB.Error("permit delete failed",
				slog.String("event", "permits.delete"),
				slog.String("folio", folio),
				slog.String("db", table),
				slog.String("err", err.Error()),
			)
			errs = append(errs, fmt.Errorf("delete %s from %s: %w", folio, table, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	logger.DB.Info("permit deleted",
		slog.String("event", "permits.delete"),
		slog.String("folio", folio),
	)
	return nil
}

// FoliosByPrefix lists every registered folio for the entity that starts
// with the numeric prefix. Used by the folio generator to find the next
// free suffix.
func (s *PermitStore) FoliosByPrefix(ctx context.Context, entidad, prefix string) ([]string, error) {
	const q = `SELECT folio FROM folios_registrados
		WHERE entidad = $1 AND folio LIKE $2 ORDER BY folio`

	var folios []string
	if err := s.db.SelectContext(ctx, &folios, q, entidad, prefix+"%"); err != nil {
		return nil, fmt.Errorf("list folios with prefix %s: %w", prefix, err)
	}
	return folios, nil
}

// ByFolio fetches a single permit record.
func (s *PermitStore) ByFolio(ctx context.Context, folio string) (*permit.Permit, error) {
	const q = `SELECT ` + permitColumns + ` FROM folios_registrados WHERE folio = $1`

	var p permit.Permit
	if err := s.db.GetContext(ctx, &p, q, folio); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, permit.ErrNotFound
		}
		return nil, fmt.Errorf("load permit %s: %w", folio, err)
	}
	return &p, nil
}
