// Package planner turns visit-frequency policy into a day-by-day week plan:
// required visits per client category, geographic day clusters, and an
// ordered, timed sequence per working day.
package planner

import (
	"sort"

	"fieldops-routing-service/internal/domain"
)

// requiredVisits maps a client category to the number of visits owed in the
// given week. Category C clients are visited on odd week numbers only.
func requiredVisits(cat domain.VisitCategory, weekNumber int) int {
	switch cat {
	case domain.CategoryA:
		return 2
	case domain.CategoryB:
		return 1
	case domain.CategoryC:
		if weekNumber%2 == 1 {
			return 1
		}
		return 0
	}
	return 0
}

// visitDemand is one owed visit. Category A clients produce two demands with
// distinct occurrences.
type visitDemand struct {
	client     domain.Client
	occurrence int
}

// dueVisits expands the portfolio into this week's demands, first occurrence
// only. Second occurrences are planned onto a different day after the first
// ones are placed.
func dueVisits(clients []domain.Client, weekNumber int) (first []visitDemand, second []visitDemand) {
	sorted := make([]domain.Client, len(clients))
	copy(sorted, clients)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, c := range sorted {
		n := requiredVisits(c.Category, weekNumber)
		if n == 0 {
			continue
		}
		first = append(first, visitDemand{client: c, occurrence: 1})
		if n > 1 {
			second = append(second, visitDemand{client: c, occurrence: 2})
		}
	}
	return first, second
}
