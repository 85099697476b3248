package permit

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func storeWithFolios(folios ...string) *fakeStore {
	s := newFakeStore()
	for _, f := range folios {
		s.records[f] = &Permit{Folio: f, Entidad: "ags", Estado: StatusPending}
	}
	return s
}

func TestGeneratorStartsAtConfiguredSuffix(t *testing.T) {
	g := NewGenerator(storeWithFolios(), "129", "ags", 2)
	if got := g.Next(context.Background()); got != "1292" {
		t.Fatalf("Next() = %s, want 1292", got)
	}
}

func TestGeneratorIncrementsPastMax(t *testing.T) {
	g := NewGenerator(storeWithFolios("1292", "1293", "12910"), "129", "ags", 2)
	if got := g.Next(context.Background()); got != "12911" {
		t.Fatalf("Next() = %s, want 12911", got)
	}
}

func TestGeneratorScansPastCollisions(t *testing.T) {
	// A non-numeric suffix occupies the computed slot; the scan must step over it.
	store := storeWithFolios("1292", "1293A")
	g := NewGenerator(store, "129", "ags", 2)
	got := g.Next(context.Background())
	if got == "1293A" {
		t.Fatal("generator returned an occupied folio")
	}
	if got != "1293" {
		// "1293" differs from "1293A", so it is still free.
		t.Fatalf("Next() = %s, want 1293", got)
	}
}

func TestGeneratorUniqueAcrossIssuance(t *testing.T) {
	store := storeWithFolios()
	g := NewGenerator(store, "129", "ags", 2)
	seen := make(map[string]struct{})
	for i := 0; i < 25; i++ {
		folio := g.Next(context.Background())
		if !strings.HasPrefix(folio, "129") {
			t.Fatalf("folio %s missing prefix", folio)
		}
		if _, dup := seen[folio]; dup {
			t.Fatalf("duplicate folio %s", folio)
		}
		seen[folio] = struct{}{}
		store.records[folio] = &Permit{Folio: folio}
	}
}

func TestGeneratorFallsBackToRandomSuffix(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("query timeout")
	g := NewGenerator(store, "129", "ags", 2)
	g.randSuffix = func() int { return 54321 }

	if got := g.Next(context.Background()); got != "12954321" {
		t.Fatalf("Next() = %s, want 12954321", got)
	}
}

func TestGeneratorIgnoresForeignSuffixes(t *testing.T) {
	g := NewGenerator(storeWithFolios("129", "129XYZ"), "129", "ags", 2)
	if got := g.Next(context.Background()); got != "1292" {
		t.Fatalf("Next() = %s, want 1292", got)
	}
}
