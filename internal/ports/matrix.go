package ports

import (
	"context"
	"strconv"

	"fieldops-routing-service/internal/domain"
)

// Travel profile a matrix cell was computed under. TTL policy is tiered by
// the stability of the underlying data: the static road network far outlives
// anything derived from a live GPS position.
type Profile string

const (
	ProfileRoadNetwork Profile = "road"
	ProfileLiveGPS     Profile = "live"
)

// CellKey identifies one origin->destination matrix cell. Coordinates are
// rounded to five decimal places (~1.1m) before formatting so semantically
// identical requests from different call sites share cache entries.
type CellKey struct {
	OriginLat string
	OriginLon string
	DestLat   string
	DestLon   string
	Profile   Profile
}

type CellValue struct {
	DistanceMeters  int
	DurationSeconds int
}

func roundCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 5, 64)
}

// Key derives the deterministic cache key for one travel leg.
func Key(origin, dest domain.LatLng, profile Profile) CellKey {
	return CellKey{
		OriginLat: roundCoord(origin.Lat),
		OriginLon: roundCoord(origin.Lon),
		DestLat:   roundCoord(dest.Lat),
		DestLon:   roundCoord(dest.Lon),
		Profile:   profile,
	}
}

// MatrixCache stores computed matrix cells under the tiered TTL policy; an
// implementation picks the TTL from each key's Profile. A cache never returns
// an entry past its expiry. Implementations are safe for concurrent use.
type MatrixCache interface {
	GetMany(ctx context.Context, keys []CellKey) (map[CellKey]CellValue, error)
	PutMany(ctx context.Context, cells map[CellKey]CellValue) error
}

// One rectangular origins x destinations sub-block of a travel matrix.
type MatrixBlock struct {
	DistanceMeters  [][]int
	DurationSeconds [][]int
}

// MatrixSource is the upstream road-network service boundary.
type MatrixSource interface {
	// FetchBlock returns travel metrics from every origin to every destination.
	FetchBlock(ctx context.Context, origins, dests []domain.LatLng, profile Profile) (*MatrixBlock, error)
	// Healthy probes service liveness.
	Healthy(ctx context.Context) error
}
