package distance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"dispatch-sim/internal/domain"
	"dispatch-sim/internal/ports"
)

type tableResponse struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

// fetchTable retrieves the full pairwise distance and duration matrix for the
// given points using the OSRM table endpoint. Legs the backend cannot route
// (null cells) are simply absent from the result.
func (o *OSRMOracle) fetchTable(
	ctx context.Context,
	points []domain.Coordinate,
) (map[string]ports.LegEstimate, error) {
	if len(points) < 2 {
		return map[string]ports.LegEstimate{}, nil
	}

	coords := make([]string, 0, len(points))
	for _, p := range points {
		// OSRM expects lng,lat ordering.
		coords = append(coords, fmt.Sprintf("%f,%f", p.Lng, p.Lat))
	}
	endpoint := fmt.Sprintf(
		"%s/table/v1/driving/%s?annotations=distance,duration",
		o.baseURL, strings.Join(coords, ";"),
	)

	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		return o.newRequest(ctx, endpoint)
	})
	if err != nil {
		return nil, fmt.Errorf("table request failed: %w", err)
	}
	defer resp.Body.Close()

	var tr tableResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode table response: %w", err)
	}

	if tr.Code != "Ok" {
		return nil, fmt.Errorf("table response code %q: %s", tr.Code, tr.Message)
	}

	n := len(points)
	if len(tr.Distances) != n || len(tr.Durations) != n {
		return nil, fmt.Errorf(
			"table rows do not match locations: distances=%d durations=%d locations=%d",
			len(tr.Distances), len(tr.Durations), n,
		)
	}

	out := make(map[string]ports.LegEstimate, n*(n-1))
	for i := 0; i < n; i++ {
		if len(tr.Distances[i]) != n || len(tr.Durations[i]) != n {
			return nil, fmt.Errorf(
				"table row %d length mismatch: distances=%d durations=%d locations=%d",
				i, len(tr.Distances[i]), len(tr.Durations[i]), n,
			)
		}
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			metersPtr := tr.Distances[i][j]
			secondsPtr := tr.Durations[i][j]
			if metersPtr == nil || secondsPtr == nil {
				continue
			}

			out[ports.LegKey(points[i], points[j])] = ports.LegEstimate{
				DistanceKm:   *metersPtr / 1000.0,
				DurationMins: *secondsPtr / 60.0,
			}
		}
	}

	return out, nil
}
