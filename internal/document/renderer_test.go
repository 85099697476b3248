package document

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFechaLarga(t *testing.T) {
	cases := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC), "02 ene 2026"},
		{time.Date(2026, time.May, 15, 0, 0, 0, 0, time.UTC), "15 May 2026"},
		{time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC), "31 dic 2025"},
	}
	for _, tc := range cases {
		if got := FechaLarga(tc.in); got != tc.want {
			t.Errorf("FechaLarga(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRenderWritesPDF(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(dir, "https://permisos.example.mx")

	issued := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	path, err := r.Render(Data{
		Folio:     "1294",
		Marca:     "NISSAN",
		Linea:     "VERSA",
		Anio:      "2020",
		Serie:     "3N1CN7AD8KL812345",
		Motor:     "HR16-123456",
		Color:     "ROJO",
		Nombre:    "JUAN PEREZ",
		IssuedAt:  issued,
		ExpiresAt: issued.AddDate(0, 0, 30),
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if want := filepath.Join(dir, "1294_ags.pdf"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if len(data) == 0 || !strings.HasPrefix(string(data[:4]), "%PDF") {
		t.Fatalf("output is not a PDF (%d bytes)", len(data))
	}
}

func TestRenderSkipsPlaceholderMotor(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(dir, "")

	issued := time.Now()
	if _, err := r.Render(Data{
		Folio:     "1295",
		Marca:     "FORD",
		Linea:     "FIESTA",
		Anio:      "2018",
		Serie:     "XYZ987",
		Motor:     "SIN NUMERO",
		Color:     "AZUL",
		Nombre:    "ANA LOPEZ",
		IssuedAt:  issued,
		ExpiresAt: issued.AddDate(0, 0, 30),
	}); err != nil {
		t.Fatalf("Render without motor: %v", err)
	}
}
