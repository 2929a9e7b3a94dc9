package catalog

import (
	"sort"
	"strings"

	"github.com/JonMunkholm/munihash/internal/schema"
	"golang.org/x/text/cases"
)

// DefaultExcludedRegion is the pseudo-region of municipalities abroad.
const DefaultExcludedRegion = "EX"

// Groups are the region batches of a catalog.
type Groups struct {
	// Regions lists region codes in case-insensitive alphabetical order.
	Regions []string
	Batches map[string]schema.Batch
}

// Len returns the number of records across all batches.
func (g Groups) Len() int {
	n := 0
	for _, b := range g.Batches {
		n += len(b)
	}
	return n
}

// Group buckets records by region, drops the excluded region and sorts each
// bucket by preferred name under Unicode case folding. Equal names keep a
// stable order by IBGE code.
func Group(records []schema.Record, excluded string) Groups {
	g := Groups{Batches: make(map[string]schema.Batch)}

	for _, r := range records {
		if excluded != "" && strings.EqualFold(r.Region, excluded) {
			continue
		}
		if _, ok := g.Batches[r.Region]; !ok {
			g.Regions = append(g.Regions, r.Region)
		}
		g.Batches[r.Region] = append(g.Batches[r.Region], r)
	}

	fold := cases.Fold()
	key := func(s string) string { return fold.String(s) }

	sort.Slice(g.Regions, func(i, j int) bool {
		a, b := key(g.Regions[i]), key(g.Regions[j])
		if a != b {
			return a < b
		}
		return g.Regions[i] < g.Regions[j]
	})

	for region, batch := range g.Batches {
		keyed := make([]keyedRecord, len(batch))
		for i, r := range batch {
			keyed[i] = keyedRecord{key: key(r.PreferredName()), rec: r}
		}
		sort.SliceStable(keyed, func(i, j int) bool {
			if keyed[i].key != keyed[j].key {
				return keyed[i].key < keyed[j].key
			}
			return keyed[i].rec.IBGE < keyed[j].rec.IBGE
		})
		for i := range keyed {
			batch[i] = keyed[i].rec
		}
		g.Batches[region] = batch
	}

	return g
}

type keyedRecord struct {
	key string
	rec schema.Record
}
