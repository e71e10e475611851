package distance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"dispatch-sim/internal/domain"
	"dispatch-sim/internal/ports"
)

type routeResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

// fetchRoute retrieves a single leg estimate from the OSRM route endpoint.
func (o *OSRMOracle) fetchRoute(
	ctx context.Context,
	from, to domain.Coordinate,
) (ports.LegEstimate, error) {
	endpoint := fmt.Sprintf(
		"%s/route/v1/driving/%f,%f;%f,%f?overview=false",
		o.baseURL, from.Lng, from.Lat, to.Lng, to.Lat,
	)

	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		return o.newRequest(ctx, endpoint)
	})
	if err != nil {
		return ports.LegEstimate{}, fmt.Errorf("route request failed: %w", err)
	}
	defer resp.Body.Close()

	var rr routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return ports.LegEstimate{}, fmt.Errorf("decode route response: %w", err)
	}

	if rr.Code != "Ok" || len(rr.Routes) == 0 {
		return ports.LegEstimate{}, fmt.Errorf("route response code %q: %s", rr.Code, rr.Message)
	}

	return ports.LegEstimate{
		DistanceKm:   rr.Routes[0].Distance / 1000.0,
		DurationMins: rr.Routes[0].Duration / 60.0,
	}, nil
}
