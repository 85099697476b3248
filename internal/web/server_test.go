package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	coreconfig "github.com/Gsr1989/Aguascalientes/core/config"
	"github.com/Gsr1989/Aguascalientes/internal/permit"
)

type fakeReader struct {
	records map[string]*permit.Permit
}

func (f *fakeReader) ByFolio(_ context.Context, folio string) (*permit.Permit, error) {
	p, ok := f.records[folio]
	if !ok {
		return nil, permit.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type fakePending struct{ n int }

func (f *fakePending) PendingCount() int { return f.n }

func newTestServer(t *testing.T, records map[string]*permit.Permit, pending int) *Server {
	t.Helper()
	srv, err := NewServer(
		coreconfig.WebConfig{Listen: ":0", BaseURL: "https://permisos.example.test"},
		coreconfig.PermitsConfig{Entidad: "ags", DisplayName: "Aguascalientes", PriceMXN: 180},
		&fakeReader{records: records},
		&fakePending{n: pending},
	)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.now = func() time.Time { return time.Date(2026, 3, 15, 12, 30, 0, 0, time.UTC) }
	return srv
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func samplePermit() *permit.Permit {
	return &permit.Permit{
		Folio:            "1294",
		Marca:            "NISSAN",
		Linea:            "VERSA",
		Anio:             "2020",
		NumeroSerie:      "3N1CN7AD4KL812345",
		NumeroMotor:      "HR16123456",
		Color:            "ROJO",
		Contribuyente:    "JUAN PEREZ",
		FechaExpedicion:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		FechaVencimiento: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Entidad:          "ags",
		Estado:           permit.StatusPending,
	}
}

func TestPortalShowsActiveTimers(t *testing.T) {
	srv := newTestServer(t, nil, 3)

	rec := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Aguascalientes") {
		t.Fatal("portal does not mention the entity")
	}
	if !strings.Contains(body, ">3<") && !strings.Contains(body, "3") {
		t.Fatal("portal does not show the active timer count")
	}
	if !strings.Contains(body, "180") {
		t.Fatal("portal does not show the permit price")
	}
}

func TestEstadoPendingFolio(t *testing.T) {
	srv := newTestServer(t, map[string]*permit.Permit{"1294": samplePermit()}, 1)

	rec := get(t, srv, "/estado_folio/1294")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "FOLIO PENDIENTE") {
		t.Fatalf("pending folio not flagged as pending:\n%s", body)
	}
	if !strings.Contains(body, "1294") {
		t.Fatal("page does not echo the folio")
	}
}

func TestEstadoValidatedFolioIsVigente(t *testing.T) {
	p := samplePermit()
	p.Estado = permit.StatusAdminValidated
	srv := newTestServer(t, map[string]*permit.Permit{"1294": p}, 0)

	body := get(t, srv, "/estado_folio/1294").Body.String()
	if !strings.Contains(body, "FOLIO VIGENTE") {
		t.Fatal("validated folio not flagged as vigente")
	}
	if !strings.Contains(body, "#27ae60") {
		t.Fatal("vigente card is not green")
	}
}

func TestEstadoProofSubmittedIsVigente(t *testing.T) {
	p := samplePermit()
	p.Estado = permit.StatusProofSubmitted
	srv := newTestServer(t, map[string]*permit.Permit{"1294": p}, 0)

	if body := get(t, srv, "/estado_folio/1294").Body.String(); !strings.Contains(body, "FOLIO VIGENTE") {
		t.Fatal("proof-submitted folio not flagged as vigente")
	}
}

func TestEstadoExpiredValidityWinsOverStatus(t *testing.T) {
	p := samplePermit()
	p.Estado = permit.StatusAdminValidated
	p.FechaVencimiento = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	srv := newTestServer(t, map[string]*permit.Permit{"1294": p}, 0)

	body := get(t, srv, "/estado_folio/1294").Body.String()
	if !strings.Contains(body, "FOLIO EXPIRADO") {
		t.Fatal("expired folio not flagged as expirado")
	}
}

func TestEstadoUnknownFolioIs404(t *testing.T) {
	srv := newTestServer(t, nil, 0)

	rec := get(t, srv, "/estado_folio/9999")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Folio No Encontrado") {
		t.Fatal("missing not-found card")
	}
}

func TestEstadoSanitizesFolioParam(t *testing.T) {
	srv := newTestServer(t, map[string]*permit.Permit{"1294": samplePermit()}, 0)

	// Punctuation is stripped before the lookup, so this resolves to 1294.
	rec := get(t, srv, "/estado_folio/12-94")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "1294") {
		t.Fatal("sanitized folio not resolved")
	}
}

func TestConsultaFullDetail(t *testing.T) {
	srv := newTestServer(t, map[string]*permit.Permit{"1294": samplePermit()}, 0)

	rec := get(t, srv, "/consulta_folio/1294")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"1294", "NISSAN", "VERSA", "JUAN PEREZ", "3N1CN7AD4KL812345",
		"PENDIENTE DE PAGO", "#ff9800",
		"01/03/2026", "31/03/2026",
		"https://permisos.example.test/estado_folio/1294",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("detail page missing %q", want)
		}
	}
}

func TestConsultaBadges(t *testing.T) {
	cases := []struct {
		status permit.Status
		label  string
		color  string
	}{
		{permit.StatusPending, "PENDIENTE DE PAGO", "#ff9800"},
		{permit.StatusProofSubmitted, "COMPROBANTE ENVIADO", "#2196f3"},
		{permit.StatusAdminValidated, "VALIDADO", "#4caf50"},
	}
	for _, tc := range cases {
		label, color := estadoBadge(tc.status)
		if !strings.Contains(label, tc.label) || color != tc.color {
			t.Fatalf("estadoBadge(%s) = (%q, %s), want (~%q, %s)", tc.status, label, color, tc.label, tc.color)
		}
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, nil, 0)

	rec := get(t, srv, "/healthz")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	srv := newTestServer(t, nil, 0)

	rec := get(t, srv, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "permit_timers_active") {
		t.Fatal("metrics output missing permit gauges")
	}
}

func TestSanitizeFolio(t *testing.T) {
	cases := map[string]string{
		"1294":               "1294",
		"12-94":              "1294",
		"<script>1294":       "script1294",
		"'; DROP TABLE --":   "DROPTABLE",
		"  1294  ":           "1294",
		"folio%201294":       "folio201294",
	}
	for in, want := range cases {
		if got := sanitizeFolio(in); got != want {
			t.Fatalf("sanitizeFolio(%q) = %q, want %q", in, got, want)
		}
	}
}
