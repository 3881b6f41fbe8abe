// Package spatial indexes entity positions (agents, vehicles, pending stops)
// for radius and k-nearest queries. A coarse cell grid keeps queries to a
// handful of buckets; exact haversine ranking happens inside them.
package spatial

import (
	"math"
	"sort"
	"sync"

	"fieldops-routing-service/internal/domain"
)

// EntityKind partitions the index so queries can target one population.
type EntityKind string

const (
	KindAgent   EntityKind = "agent"
	KindVehicle EntityKind = "vehicle"
	KindStop    EntityKind = "stop"
	// KindAny matches every entity in a query.
	KindAny EntityKind = ""
)

type Entity struct {
	ID       string
	Kind     EntityKind
	Position domain.LatLng
}

// Match is a query result with its distance from the query point.
type Match struct {
	Entity
	DistanceMeters float64
}

// cellDegrees ~1.1km of latitude per cell; a radius query walks the square
// of cells covering the circle.
const cellDegrees = 0.01

type cell struct{ row, col int }

func cellOf(p domain.LatLng) cell {
	return cell{
		row: int(math.Floor(p.Lat / cellDegrees)),
		col: int(math.Floor(p.Lon / cellDegrees)),
	}
}

// Index is safe for concurrent use: reads run under a shared lock,
// mutations are serialized.
type Index struct {
	mu       sync.RWMutex
	entities map[string]Entity
	cells    map[cell]map[string]struct{}
}

func NewIndex() *Index {
	return &Index{
		entities: make(map[string]Entity),
		cells:    make(map[cell]map[string]struct{}),
	}
}

// Upsert inserts the entity or moves it if already present.
func (ix *Index) Upsert(id string, kind EntityKind, position domain.LatLng) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if prev, ok := ix.entities[id]; ok {
		ix.removeFromCell(cellOf(prev.Position), id)
	}

	e := Entity{ID: id, Kind: kind, Position: position}
	ix.entities[id] = e

	c := cellOf(position)
	if ix.cells[c] == nil {
		ix.cells[c] = make(map[string]struct{})
	}
	ix.cells[c][id] = struct{}{}
}

func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	e, ok := ix.entities[id]
	if !ok {
		return
	}
	ix.removeFromCell(cellOf(e.Position), id)
	delete(ix.entities, id)
}

func (ix *Index) removeFromCell(c cell, id string) {
	if bucket, ok := ix.cells[c]; ok {
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(ix.cells, c)
		}
	}
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entities)
}

// WithinRadius returns entities of the given kind within meters of center,
// nearest first.
func (ix *Index) WithinRadius(center domain.LatLng, meters float64, kind EntityKind) []Match {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	matches := ix.collect(center, meters, kind)
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].DistanceMeters != matches[j].DistanceMeters {
			return matches[i].DistanceMeters < matches[j].DistanceMeters
		}
		return matches[i].ID < matches[j].ID
	})
	return matches
}

// Nearest returns up to k entities of the given kind closest to center.
// The search ring widens until enough candidates are found or the whole
// index has been covered.
func (ix *Index) Nearest(center domain.LatLng, k int, kind EntityKind) []Match {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if k <= 0 {
		return nil
	}

	radius := 2000.0
	for {
		matches := ix.collect(center, radius, kind)
		if len(matches) >= k || ix.ringCoversAll(center, radius) {
			sort.Slice(matches, func(i, j int) bool {
				if matches[i].DistanceMeters != matches[j].DistanceMeters {
					return matches[i].DistanceMeters < matches[j].DistanceMeters
				}
				return matches[i].ID < matches[j].ID
			})
			if len(matches) > k {
				matches = matches[:k]
			}
			return matches
		}
		radius *= 2
	}
}

func (ix *Index) collect(center domain.LatLng, meters float64, kind EntityKind) []Match {
	latSpan := meters / 111000.0
	lonSpan := latSpan / math.Max(0.05, math.Cos(center.Lat*math.Pi/180))

	minCell := cellOf(domain.LatLng{Lat: center.Lat - latSpan, Lon: center.Lon - lonSpan})
	maxCell := cellOf(domain.LatLng{Lat: center.Lat + latSpan, Lon: center.Lon + lonSpan})

	var out []Match
	for row := minCell.row; row <= maxCell.row; row++ {
		for col := minCell.col; col <= maxCell.col; col++ {
			for id := range ix.cells[cell{row: row, col: col}] {
				e := ix.entities[id]
				if kind != KindAny && e.Kind != kind {
					continue
				}
				d := center.DistanceMeters(e.Position)
				if d <= meters {
					out = append(out, Match{Entity: e, DistanceMeters: d})
				}
			}
		}
	}
	return out
}

// ringCoversAll reports whether the search square already spans every
// occupied cell, i.e. widening further cannot find more candidates.
func (ix *Index) ringCoversAll(center domain.LatLng, meters float64) bool {
	latSpan := meters / 111000.0
	lonSpan := latSpan / math.Max(0.05, math.Cos(center.Lat*math.Pi/180))
	minCell := cellOf(domain.LatLng{Lat: center.Lat - latSpan, Lon: center.Lon - lonSpan})
	maxCell := cellOf(domain.LatLng{Lat: center.Lat + latSpan, Lon: center.Lon + lonSpan})

	for c := range ix.cells {
		if c.row < minCell.row || c.row > maxCell.row || c.col < minCell.col || c.col > maxCell.col {
			return false
		}
	}
	return true
}
