// Package aggregate turns the append-only registration list into per-country
// counts, a ranked top-N and a most-recent list. Every function is pure and
// total: empty input yields empty output, and inputs are never mutated.
package aggregate

import (
	"slices"

	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/models"
)

// Defaults used by the dashboard.
const (
	DefaultTopN    = 10
	DefaultRecentN = 5
)

// Counts maps country to registration count and remembers the order in which
// each country was first encountered.
type Counts struct {
	order  []string
	counts map[string]int
	total  int
}

// CountByCountry counts registrations per country.
func CountByCountry(regs []models.Registration) Counts {
	c := Counts{counts: make(map[string]int)}
	for _, reg := range regs {
		if _, seen := c.counts[reg.Country]; !seen {
			c.order = append(c.order, reg.Country)
		}
		c.counts[reg.Country]++
		c.total++
	}
	return c
}

// FromEntries builds Counts from explicit pairs; the slice order is the
// first-encounter order. Repeated countries are summed.
func FromEntries(entries []models.CountryCount) Counts {
	c := Counts{counts: make(map[string]int)}
	for _, e := range entries {
		if _, seen := c.counts[e.Country]; !seen {
			c.order = append(c.order, e.Country)
		}
		c.counts[e.Country] += e.Count
		c.total += e.Count
	}
	return c
}

// Of returns the count for country, zero when absent.
func (c Counts) Of(country string) int {
	return c.counts[country]
}

// Len returns the number of distinct countries.
func (c Counts) Len() int {
	return len(c.order)
}

// Total returns the sum of all counts.
func (c Counts) Total() int {
	return c.total
}

// Max returns the largest count, zero when empty.
func (c Counts) Max() int {
	highest := 0
	for _, n := range c.counts {
		highest = max(highest, n)
	}
	return highest
}

// Entries returns the counts in first-encounter order.
func (c Counts) Entries() []models.CountryCount {
	out := make([]models.CountryCount, 0, len(c.order))
	for _, country := range c.order {
		out = append(out, models.CountryCount{Country: country, Count: c.counts[country]})
	}
	return out
}

// Ranked returns every entry sorted by count descending. Ties keep
// first-encounter order.
func (c Counts) Ranked() []models.CountryCount {
	entries := c.Entries()
	slices.SortStableFunc(entries, func(a, b models.CountryCount) int {
		return b.Count - a.Count
	})
	return entries
}

// TopN returns at most n ranked entries. n <= 0 yields an empty slice.
func TopN(c Counts, n int) []models.CountryCount {
	if n <= 0 {
		return []models.CountryCount{}
	}
	ranked := c.Ranked()
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// MostRecent returns at most n registrations ordered by timestamp descending.
// Registrations with equal timestamps keep their stored order.
func MostRecent(regs []models.Registration, n int) []models.Registration {
	if n <= 0 {
		return []models.Registration{}
	}
	sorted := slices.Clone(regs)
	slices.SortStableFunc(sorted, func(a, b models.Registration) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	if sorted == nil {
		sorted = []models.Registration{}
	}
	return sorted
}

// Summary is the derived projection of a registration list.
type Summary struct {
	Total           int
	UniqueCountries int
	MaxCount        int
	Counts          Counts
	Top             []models.CountryCount
	Recent          []models.Registration
}

// Summarize computes every derived view in one pass over regs.
func Summarize(regs []models.Registration, topN, recentN int) Summary {
	counts := CountByCountry(regs)
	return Summary{
		Total:           len(regs),
		UniqueCountries: counts.Len(),
		MaxCount:        counts.Max(),
		Counts:          counts,
		Top:             TopN(counts, topN),
		Recent:          MostRecent(regs, recentN),
	}
}
