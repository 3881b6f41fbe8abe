package planner

import (
	"fieldops-routing-service/internal/domain"
)

// clusterVisits partitions demands into k geographic groups with
// farthest-point seeding: the first seed is the demand farthest from the
// centroid, each further seed maximizes its distance to the chosen seeds,
// and every demand then joins its nearest seed. The result is exhaustive and
// disjoint.
func clusterVisits(demands []visitDemand, k int) [][]visitDemand {
	if len(demands) == 0 || k <= 0 {
		return nil
	}
	if k > len(demands) {
		k = len(demands)
	}
	if k == 1 {
		group := make([]visitDemand, len(demands))
		copy(group, demands)
		return [][]visitDemand{group}
	}

	seeds := pickSeeds(demands, k)

	groups := make([][]visitDemand, k)
	for _, d := range demands {
		best, bestDist := 0, -1.0
		for s, seed := range seeds {
			dist := d.client.Location.Point.DistanceMeters(seed)
			if bestDist < 0 || dist < bestDist {
				best, bestDist = s, dist
			}
		}
		groups[best] = append(groups[best], d)
	}
	return groups
}

func pickSeeds(demands []visitDemand, k int) []domain.LatLng {
	centroid := domain.LatLng{}
	for _, d := range demands {
		centroid.Lat += d.client.Location.Point.Lat
		centroid.Lon += d.client.Location.Point.Lon
	}
	centroid.Lat /= float64(len(demands))
	centroid.Lon /= float64(len(demands))

	first, firstDist := 0, -1.0
	for i, d := range demands {
		dist := centroid.DistanceMeters(d.client.Location.Point)
		if dist > firstDist {
			first, firstDist = i, dist
		}
	}

	seeds := []domain.LatLng{demands[first].client.Location.Point}
	for len(seeds) < k {
		next, nextDist := -1, -1.0
		for i, d := range demands {
			minDist := -1.0
			for _, s := range seeds {
				dist := d.client.Location.Point.DistanceMeters(s)
				if minDist < 0 || dist < minDist {
					minDist = dist
				}
			}
			if minDist > nextDist {
				next, nextDist = i, minDist
			}
		}
		seeds = append(seeds, demands[next].client.Location.Point)
	}
	return seeds
}
