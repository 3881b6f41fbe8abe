package roadnet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"fieldops-routing-service/internal/domain"
	"fieldops-routing-service/internal/ports"
)

// profileNames maps cache profiles onto upstream routing profiles. Live-GPS
// lookups use the same road network; the tier only changes TTL policy, not
// the travel model.
var profileNames = map[ports.Profile]string{
	ports.ProfileRoadNetwork: "driving-car",
	ports.ProfileLiveGPS:     "driving-car",
}

type matrixRequest struct {
	Locations    [][]float64 `json:"locations"`
	Sources      []int       `json:"sources"`
	Destinations []int       `json:"destinations"`
	Metrics      []string    `json:"metrics"`
}

type matrixResponse struct {
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

// FetchBlock retrieves distances and durations from every origin to every
// destination using the matrix endpoint. A response with any missing metric
// fails the block; the caller never assembles a matrix from invalid entries.
func (c *Client) FetchBlock(
	ctx context.Context,
	origins []domain.LatLng,
	dests []domain.LatLng,
	profile ports.Profile,
) (*ports.MatrixBlock, error) {
	if len(origins) == 0 || len(dests) == 0 {
		return nil, errors.New("fetch block: origins and destinations must be non-empty")
	}

	name, ok := profileNames[profile]
	if !ok {
		return nil, fmt.Errorf("fetch block: unknown profile %q", profile)
	}
	endpoint := fmt.Sprintf("%s/v2/matrix/%s", c.baseURL, name)

	locations := make([][]float64, 0, len(origins)+len(dests))
	sources := make([]int, 0, len(origins))
	destIdx := make([]int, 0, len(dests))
	for i, o := range origins {
		locations = append(locations, o.CoordsToList())
		sources = append(sources, i)
	}
	for i, d := range dests {
		locations = append(locations, d.CoordsToList())
		destIdx = append(destIdx, len(origins)+i)
	}

	payload, err := json.Marshal(matrixRequest{
		Locations:    locations,
		Sources:      sources,
		Destinations: destIdx,
		Metrics:      []string{"distance", "duration"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal matrix request: %w", err)
	}

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return nil, fmt.Errorf("matrix request failed: %w", err)
	}
	defer resp.Body.Close()

	var mr matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decode matrix response: %w", err)
	}

	if len(mr.Distances) != len(origins) || len(mr.Durations) != len(origins) {
		return nil, fmt.Errorf(
			"expected %d source rows; got distances=%d durations=%d",
			len(origins), len(mr.Distances), len(mr.Durations),
		)
	}

	block := &ports.MatrixBlock{
		DistanceMeters:  make([][]int, len(origins)),
		DurationSeconds: make([][]int, len(origins)),
	}

	for i := range origins {
		rowDist := mr.Distances[i]
		rowDur := mr.Durations[i]
		if len(rowDist) != len(dests) || len(rowDur) != len(dests) {
			return nil, fmt.Errorf(
				"row %d lengths do not match destinations: distances=%d durations=%d destinations=%d",
				i, len(rowDist), len(rowDur), len(dests),
			)
		}

		block.DistanceMeters[i] = make([]int, len(dests))
		block.DurationSeconds[i] = make([]int, len(dests))
		for j := range dests {
			if rowDist[j] == nil || rowDur[j] == nil {
				return nil, fmt.Errorf("matrix returned invalid metrics for cell (%d,%d)", i, j)
			}
			// Upstream returns float metrics; round to nearest integer for
			// domain consistency.
			block.DistanceMeters[i][j] = int(math.Round(*rowDist[j]))
			block.DurationSeconds[i][j] = int(math.Round(*rowDur[j]))
		}
	}

	return block, nil
}

// Healthy performs a lightweight liveness probe against the service.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("road network health probe: %w", err)
	}
	resp.Body.Close()
	return nil
}
