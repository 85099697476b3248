package permit

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"log/slog"

	"github.com/Gsr1989/Aguascalientes/core/logger"
)

// Generator allocates sequential folios under a fixed numeric prefix.
// Allocation is best-effort under concurrency: the forward scan below steps
// past suffixes that were taken between the read and the insert, and the
// storage layer's uniqueness constraint is the final backstop.
type Generator struct {
	store       Store
	prefix      string
	entidad     string
	suffixStart int
	randSuffix  func() int
}

// NewGenerator builds a Generator. suffixStart is used when no records exist
// yet under the prefix.
func NewGenerator(store Store, prefix, entidad string, suffixStart int) *Generator {
	if suffixStart <= 0 {
		suffixStart = 2
	}
	return &Generator{
		store:       store,
		prefix:      prefix,
		entidad:     entidad,
		suffixStart: suffixStart,
		randSuffix:  func() int { return 10000 + rand.IntN(90000) },
	}
}

// Next returns the next unused folio: prefix + (max existing suffix + 1),
// scanning forward past collisions. When the query itself fails it degrades
// to prefix + random 5-digit suffix instead of failing the issuance.
func (g *Generator) Next(ctx context.Context) string {
	existing, err := g.store.FoliosByPrefix(ctx, g.entidad, g.prefix)
	if err != nil {
		folio := g.prefix + strconv.Itoa(g.randSuffix())
		logger.Folio.Warn("folio query failed, degrading to random suffix",
			slog.String("event", "folio.fallback"),
			slog.String("folio", folio),
			slog.String("err", err.Error()),
		)
		return folio
	}

	taken := make(map[string]struct{}, len(existing))
	next := 0
	for _, f := range existing {
		if !strings.HasPrefix(f, g.prefix) || len(f) <= len(g.prefix) {
			continue
		}
		taken[f] = struct{}{}
		suffix, convErr := strconv.Atoi(f[len(g.prefix):])
		if convErr != nil {
			continue
		}
		if suffix >= next {
			next = suffix + 1
		}
	}
	if next == 0 {
		next = g.suffixStart
	}
	for {
		folio := fmt.Sprintf("%s%d", g.prefix, next)
		if _, used := taken[folio]; !used {
			return folio
		}
		next++
	}
}
