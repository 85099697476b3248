package permit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/Gsr1989/Aguascalientes/core/logger"
	"github.com/Gsr1989/Aguascalientes/internal/metrics"
)

// Config carries the lifecycle settings for the permit service.
type Config struct {
	// Prefix is the fixed numeric folio prefix, e.g. "129".
	Prefix string
	// Entidad is the jurisdiction code stamped on every record, e.g. "ags".
	Entidad string
	// SuffixStart is the first suffix used when no folios exist yet.
	SuffixStart int
	// PendingTTL is the abandonment window; unpaid permits are deleted after it.
	PendingTTL time.Duration
	// ValidityDays is the legal circulation window printed on the document.
	ValidityDays int
	// AdminMarker is the literal prefix of the operator override code, e.g. "SERO".
	AdminMarker string
	// Location is the timezone used for issue/expiry dates.
	Location *time.Location
}

// Service is the folio lifecycle controller. It allocates folios, persists
// records, and races each record's pending deadline against the two
// cancellation events (payment proof, admin override).
type Service struct {
	cfg      Config
	store    Store
	notifier Notifier
	gen      *Generator
	reg      *Registry
}

// NewService wires the generator and the timer registry around the store.
func NewService(cfg Config, store Store, notifier Notifier) *Service {
	if cfg.ValidityDays <= 0 {
		cfg.ValidityDays = 30
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 12 * time.Hour
	}
	if cfg.AdminMarker == "" {
		cfg.AdminMarker = "SERO"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	s := &Service{
		cfg:      cfg,
		store:    store,
		notifier: notifier,
	}
	s.gen = NewGenerator(store, cfg.Prefix, cfg.Entidad, cfg.SuffixStart)
	s.reg = NewRegistry(cfg.PendingTTL, s.expire)
	return s
}

// Issue allocates a folio, persists the PENDING record, and only then
// schedules the deadline, so a persistence failure never leaves an orphaned
// timer. It returns the folio and both dates for document rendering.
func (s *Service) Issue(ctx context.Context, sub Submission, userID int64) (*Issued, error) {
	folio := s.gen.Next(ctx)
	now := time.Now().In(s.cfg.Location)
	expires := now.AddDate(0, 0, s.cfg.ValidityDays)

	rec := &Permit{
		Folio:            folio,
		Marca:            sub.Marca,
		Linea:            sub.Linea,
		Anio:             sub.Anio,
		NumeroSerie:      sub.Serie,
		NumeroMotor:      sub.Motor,
		Color:            sub.Color,
		Contribuyente:    sub.Nombre,
		FechaExpedicion:  now,
		FechaVencimiento: expires,
		Entidad:          s.cfg.Entidad,
		Estado:           StatusPending,
		UserID:           userID,
		Username:         sub.Username,
	}
	if rec.Username == "" {
		rec.Username = "Sin username"
	}

	if err := s.store.Insert(ctx, rec); err != nil {
		logger.Folio.Error("permit insert failed",
			slog.String("event", "folio.issue"),
			slog.String("folio", folio),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("issue permit %s: %w", folio, err)
	}

	s.reg.Schedule(folio, userID)
	metrics.PermitsIssued.Inc()
	metrics.TimersActive.Set(float64(s.reg.Count()))

	logger.Folio.Info("permit issued",
		slog.String("event", "folio.issue"),
		slog.String("folio", folio),
		slog.Int64("user_id", userID),
		slog.Time("expires_at", expires),
	)
	return &Issued{Folio: folio, IssuedAt: now, ExpiresAt: expires}, nil
}

// SubmitProof applies a payment-proof submission to the user's most recently
// issued open folio. The status update is attempted even when the timer was
// already gone: re-arming a deadline is worse than recording a stale proof.
func (s *Service) SubmitProof(ctx context.Context, userID int64) (string, error) {
	folios := s.reg.ActiveFolios(userID)
	if len(folios) == 0 {
		return "", ErrNoPendingFolio
	}
	folio := folios[len(folios)-1]

	cancelled := s.reg.Cancel(folio)
	metrics.TimersActive.Set(float64(s.reg.Count()))

	if err := s.store.UpdateStatus(ctx, folio, StatusProofSubmitted, time.Now().In(s.cfg.Location)); err != nil {
		// Accepted inconsistency: the deadline is gone but the status write
		// failed. Surfacing the error would tempt callers to re-arm the timer.
		logger.Folio.Warn("proof status update failed",
			slog.String("event", "folio.proof"),
			slog.String("folio", folio),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}

	metrics.PermitsValidated.WithLabelValues("proof").Inc()
	logger.Folio.Info("payment proof received",
		slog.String("event", "folio.proof"),
		slog.String("folio", folio),
		slog.Int64("user_id", userID),
		slog.Bool("timer_found", cancelled),
	)
	return folio, nil
}

// AdminValidate handles an operator override code: the marker followed
// immediately by the folio digits, e.g. "SERO1292". A malformed code is
// rejected without side effects. The status update is applied regardless of
// whether a timer was still registered, since an override must succeed up
// until the record is actually deleted.
func (s *Service) AdminValidate(ctx context.Context, raw string) (string, error) {
	text := strings.ToUpper(strings.TrimSpace(raw))
	marker := strings.ToUpper(s.cfg.AdminMarker)
	if !strings.HasPrefix(text, marker) {
		return "", ErrBadAdminCode
	}
	folio := strings.TrimSpace(strings.TrimPrefix(text, marker))
	if folio == "" || !strings.HasPrefix(folio, s.cfg.Prefix) {
		return "", ErrBadAdminCode
	}

	cancelled := s.reg.Cancel(folio)
	metrics.TimersActive.Set(float64(s.reg.Count()))

	if err := s.store.UpdateStatus(ctx, folio, StatusAdminValidated, time.Now().In(s.cfg.Location)); err != nil {
		logger.Folio.Warn("admin status update failed",
			slog.String("event", "folio.admin"),
			slog.String("folio", folio),
			slog.String("err", err.Error()),
		)
	}

	metrics.PermitsValidated.WithLabelValues("admin").Inc()
	logger.Folio.Info("admin validation applied",
		slog.String("event", "folio.admin"),
		slog.String("folio", folio),
		slog.Bool("timer_found", cancelled),
	)
	return folio, nil
}

// ActiveFolios lists the user's folios with an open deadline, oldest first.
func (s *Service) ActiveFolios(userID int64) []string {
	return s.reg.ActiveFolios(userID)
}

// PendingCount reports the number of deadlines currently registered.
func (s *Service) PendingCount() int {
	return s.reg.Count()
}

// Stop cancels all pending timers on shutdown without touching records.
func (s *Service) Stop() {
	s.reg.Stop()
	metrics.TimersActive.Set(0)
}

// expire runs after the registry claimed the entry for this folio; by the
// time we are here no cancellation can win anymore. The record delete and the
// owner notification are each independently best-effort.
func (s *Service) expire(folio string, userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.store.Delete(ctx, folio); err != nil {
		logger.Folio.Error("expired permit delete failed",
			slog.String("event", "folio.expire"),
			slog.String("folio", folio),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	} else {
		logger.Folio.Info("expired permit deleted",
			slog.String("event", "folio.expire"),
			slog.String("folio", folio),
			slog.Int64("user_id", userID),
		)
	}

	metrics.PermitsExpired.Inc()
	metrics.TimersActive.Set(float64(s.reg.Count()))

	if s.notifier != nil {
		text := fmt.Sprintf(
			"⏰ <b>TIEMPO AGOTADO</b>\n\nEl folio <b>%s</b> fue eliminado por no recibir comprobante ni validación admin a tiempo.",
			folio,
		)
		if err := s.notifier.Notify(ctx, userID, text); err != nil {
			logger.Folio.Warn("expiry notification failed",
				slog.String("event", "folio.expire"),
				slog.String("folio", folio),
				slog.Int64("user_id", userID),
				slog.String("err", err.Error()),
			)
		}
	}
}
