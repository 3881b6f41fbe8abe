// Package matrix computes full travel matrices by decomposing them into
// rectangular sub-blocks, serving each block from cache where possible and
// fetching only the missing blocks upstream with bounded concurrency.
package matrix

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"fieldops-routing-service/internal/domain"
	"fieldops-routing-service/internal/platform/obs"
	"fieldops-routing-service/internal/ports"
)

const (
	defaultBlockSize = 25
	// The upstream routing service imposes its own throughput ceiling;
	// block fetches never fan out beyond this limit.
	defaultMaxConcurrent = 5
)

type Computer struct {
	source        ports.MatrixSource
	cache         ports.MatrixCache
	blockSize     int
	maxConcurrent int
}

func NewComputer(source ports.MatrixSource, cache ports.MatrixCache) *Computer {
	return NewComputerWithLimits(source, cache, defaultBlockSize, defaultMaxConcurrent)
}

func NewComputerWithLimits(source ports.MatrixSource, cache ports.MatrixCache, blockSize, maxConcurrent int) *Computer {
	if blockSize < 1 {
		blockSize = defaultBlockSize
	}
	if maxConcurrent < 1 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &Computer{
		source:        source,
		cache:         cache,
		blockSize:     blockSize,
		maxConcurrent: maxConcurrent,
	}
}

type block struct {
	rowStart, rowEnd int // [rowStart, rowEnd)
	colStart, colEnd int
}

// Matrix returns the full NxN travel matrix over the given points.
//
// Any block failure fails the whole request: a matrix with invalid entries is
// never returned. Fetched cells are written back to the cache under the
// profile's TTL tier.
func (c *Computer) Matrix(
	ctx context.Context,
	points []domain.LatLng,
	profile ports.Profile,
) (_ *domain.TravelMatrix, err error) {
	defer obs.Time(ctx, "matrix.Compute")(&err)

	n := len(points)
	m := &domain.TravelMatrix{
		Points:          points,
		DistanceMeters:  make([][]int, n),
		DurationSeconds: make([][]int, n),
	}
	for i := 0; i < n; i++ {
		m.DistanceMeters[i] = make([]int, n)
		m.DurationSeconds[i] = make([]int, n)
	}
	if n < 2 {
		return m, nil
	}

	keys := make([]ports.CellKey, 0, n*n-n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			keys = append(keys, ports.Key(points[i], points[j], profile))
		}
	}

	hits := map[ports.CellKey]ports.CellValue{}
	if c.cache != nil {
		hits, err = c.cache.GetMany(ctx, keys)
		if err != nil {
			return nil, fmt.Errorf("compute matrix: cache lookup: %w", err)
		}
	}

	missing := func(i, j int) bool {
		if i == j {
			return false
		}
		_, ok := hits[ports.Key(points[i], points[j], profile)]
		return !ok
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if v, ok := hits[ports.Key(points[i], points[j], profile)]; ok {
				m.DistanceMeters[i][j] = v.DistanceMeters
				m.DurationSeconds[i][j] = v.DurationSeconds
			}
		}
	}

	// Decompose into rectangular sub-blocks and fetch only blocks holding at
	// least one cache miss.
	var toFetch []block
	for rs := 0; rs < n; rs += c.blockSize {
		re := min(rs+c.blockSize, n)
		for cs := 0; cs < n; cs += c.blockSize {
			ce := min(cs+c.blockSize, n)
			b := block{rowStart: rs, rowEnd: re, colStart: cs, colEnd: ce}
			if blockHasMiss(b, missing) {
				toFetch = append(toFetch, b)
			}
		}
	}
	if len(toFetch) == 0 {
		return m, nil
	}

	var mu sync.Mutex
	fetchedCells := make(map[ports.CellKey]ports.CellValue)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrent)

	for _, b := range toFetch {
		g.Go(func() error {
			origins := points[b.rowStart:b.rowEnd]
			dests := points[b.colStart:b.colEnd]

			res, err := c.source.FetchBlock(gctx, origins, dests, profile)
			if err != nil {
				return fmt.Errorf(
					"compute matrix: block rows %d-%d cols %d-%d: %w",
					b.rowStart, b.rowEnd-1, b.colStart, b.colEnd-1, err,
				)
			}

			mu.Lock()
			defer mu.Unlock()
			for i := b.rowStart; i < b.rowEnd; i++ {
				for j := b.colStart; j < b.colEnd; j++ {
					if i == j {
						continue
					}
					v := ports.CellValue{
						DistanceMeters:  res.DistanceMeters[i-b.rowStart][j-b.colStart],
						DurationSeconds: res.DurationSeconds[i-b.rowStart][j-b.colStart],
					}
					m.DistanceMeters[i][j] = v.DistanceMeters
					m.DurationSeconds[i][j] = v.DurationSeconds
					fetchedCells[ports.Key(points[i], points[j], profile)] = v
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if c.cache != nil && len(fetchedCells) > 0 {
		if err := c.cache.PutMany(ctx, fetchedCells); err != nil {
			// A write-back failure leaves the cache cold, not the result wrong.
			log.Printf("matrix cache write failed: %v", err)
		}
	}

	return m, nil
}

func blockHasMiss(b block, missing func(i, j int) bool) bool {
	for i := b.rowStart; i < b.rowEnd; i++ {
		for j := b.colStart; j < b.colEnd; j++ {
			if missing(i, j) {
				return true
			}
		}
	}
	return false
}
