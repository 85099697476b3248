package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Gsr1989/Aguascalientes/core/logger"
	"github.com/Gsr1989/Aguascalientes/internal/permit"
)

const consultaStamp = "02/01/2006 15:04:05"

type portalView struct {
	Entidad       string
	EntidadUpper  string
	TimersActivos int
	PrecioMXN     int
}

type estadoView struct {
	Folio         string
	Entidad       string
	CardBg        string
	StatusColor   string
	StatusIcon    string
	StatusTitle   string
	StatusMessage string
	Contribuyente string
	Marca         string
	Linea         string
	Anio          string
	Serie         string
	Consulta      string
}

type consultaView struct {
	Folio         string
	Entidad       string
	EntidadUpper  string
	StatusLabel   string
	StatusColor   string
	Marca         string
	Linea         string
	Anio          string
	Color         string
	Serie         string
	Motor         string
	Contribuyente string
	FechaExp      string
	FechaVen      string
	BaseURL       string
	Consulta      string
}

type notFoundView struct {
	Folio    string
	Entidad  string
	Consulta string
}

func (s *Server) handlePortal(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "portal.html", portalView{
		Entidad:       s.entidad,
		EntidadUpper:  strings.ToUpper(s.entidad),
		TimersActivos: s.pending.PendingCount(),
		PrecioMXN:     s.priceMXN,
	})
}

// handleEstado is the QR landing page: a single card whose color answers
// "may this vehicle circulate" at a glance.
func (s *Server) handleEstado(w http.ResponseWriter, r *http.Request) {
	folio := sanitizeFolio(chi.URLParam(r, "folio"))
	p, err := s.store.ByFolio(r.Context(), folio)
	if err != nil {
		s.renderLookupError(w, r, folio, err)
		return
	}

	now := s.now()
	view := estadoView{
		Folio:         p.Folio,
		Entidad:       s.entidad,
		Contribuyente: p.Contribuyente,
		Marca:         p.Marca,
		Linea:         p.Linea,
		Anio:          p.Anio,
		Serie:         p.NumeroSerie,
		Consulta:      now.Format(consultaStamp),
	}

	switch {
	case p.Expired(now):
		view.CardBg = "#fff8e1"
		view.StatusColor = "#f39c12"
		view.StatusIcon = "⚠️"
		view.StatusTitle = "FOLIO EXPIRADO"
		view.StatusMessage = "La vigencia de este permiso ha concluido."
	case p.Estado == permit.StatusAdminValidated || p.Estado == permit.StatusProofSubmitted:
		view.CardBg = "#e8f5e9"
		view.StatusColor = "#27ae60"
		view.StatusIcon = "✅"
		view.StatusTitle = "FOLIO VIGENTE"
		view.StatusMessage = "Este permiso es válido para circular."
	default:
		view.CardBg = "#fff8e1"
		view.StatusColor = "#f39c12"
		view.StatusIcon = "⏳"
		view.StatusTitle = "FOLIO PENDIENTE"
		view.StatusMessage = "El permiso está registrado pero el pago aún no ha sido acreditado."
	}

	s.render(w, r, http.StatusOK, "estado.html", view)
}

func (s *Server) handleConsulta(w http.ResponseWriter, r *http.Request) {
	folio := sanitizeFolio(chi.URLParam(r, "folio"))
	p, err := s.store.ByFolio(r.Context(), folio)
	if err != nil {
		s.renderLookupError(w, r, folio, err)
		return
	}

	label, color := estadoBadge(p.Estado)
	s.render(w, r, http.StatusOK, "consulta.html", consultaView{
		Folio:         p.Folio,
		Entidad:       s.entidad,
		EntidadUpper:  strings.ToUpper(p.Entidad),
		StatusLabel:   label,
		StatusColor:   color,
		Marca:         p.Marca,
		Linea:         p.Linea,
		Anio:          p.Anio,
		Color:         p.Color,
		Serie:         p.NumeroSerie,
		Motor:         p.NumeroMotor,
		Contribuyente: p.Contribuyente,
		FechaExp:      p.FechaExpedicion.Format("02/01/2006"),
		FechaVen:      p.FechaVencimiento.Format("02/01/2006"),
		BaseURL:       s.baseURL,
		Consulta:      s.now().Format(consultaStamp),
	})
}

func (s *Server) renderLookupError(w http.ResponseWriter, r *http.Request, folio string, err error) {
	if errors.Is(err, permit.ErrNotFound) {
		s.render(w, r, http.StatusNotFound, "notfound.html", notFoundView{
			Folio:    folio,
			Entidad:  s.entidad,
			Consulta: s.now().Format(consultaStamp),
		})
		return
	}
	logger.LogEvent(r.Context(), logger.Web, slog.LevelError, "web.lookup",
		slog.String("folio", folio),
		slog.String("err", err.Error()),
	)
	http.Error(w, "error interno", http.StatusInternalServerError)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, code int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := s.tpl.ExecuteTemplate(w, name, data); err != nil {
		logger.LogEvent(r.Context(), logger.Web, slog.LevelError, "web.render",
			slog.String("route", name),
			slog.String("err", err.Error()),
		)
	}
}

// estadoBadge maps the stored status to the banner shown on the detail page.
func estadoBadge(st permit.Status) (label, color string) {
	switch st {
	case permit.StatusPending:
		return "⏳ PENDIENTE DE PAGO", "#ff9800"
	case permit.StatusProofSubmitted:
		return "📸 COMPROBANTE ENVIADO", "#2196f3"
	case permit.StatusAdminValidated:
		return "✅ VALIDADO", "#4caf50"
	default:
		return string(st), "#9e9e9e"
	}
}

// sanitizeFolio strips everything but letters and digits so the path segment
// can be echoed into markup and SQL parameters safely.
func sanitizeFolio(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		}
	}
	return b.String()
}
