package roadnet

import (
	"context"
	"math"
	"sync/atomic"

	"fieldops-routing-service/internal/domain"
	"fieldops-routing-service/internal/ports"
)

// MockSource serves matrix blocks from straight-line distances at a fixed
// speed. Used in tests and for local runs without an upstream service.
type MockSource struct {
	// SpeedKmh converts distance into duration. Defaults to 40 km/h.
	SpeedKmh float64
	// Fail, when set, fails every block request with this error.
	Fail error

	calls atomic.Int64
}

func (m *MockSource) Calls() int64 { return m.calls.Load() }

func (m *MockSource) FetchBlock(
	ctx context.Context,
	origins []domain.LatLng,
	dests []domain.LatLng,
	profile ports.Profile,
) (*ports.MatrixBlock, error) {
	m.calls.Add(1)

	if m.Fail != nil {
		return nil, m.Fail
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	speed := m.SpeedKmh
	if speed <= 0 {
		speed = 40
	}
	metersPerSecond := speed * 1000 / 3600

	block := &ports.MatrixBlock{
		DistanceMeters:  make([][]int, len(origins)),
		DurationSeconds: make([][]int, len(origins)),
	}
	for i, o := range origins {
		block.DistanceMeters[i] = make([]int, len(dests))
		block.DurationSeconds[i] = make([]int, len(dests))
		for j, d := range dests {
			meters := o.DistanceMeters(d)
			block.DistanceMeters[i][j] = int(math.Round(meters))
			block.DurationSeconds[i][j] = int(math.Round(meters / metersPerSecond))
		}
	}
	return block, nil
}

func (m *MockSource) Healthy(ctx context.Context) error { return ctx.Err() }
