package distance

import (
	"dispatch-sim/internal/domain"
	"dispatch-sim/internal/ports"
)

// StaticPair fixes the estimate for one directed leg.
type StaticPair struct {
	From, To domain.Coordinate
	Km       float64
	Mins     float64
}

// StaticOracle serves fixed estimates and falls back to haversine for
// unlisted legs. Intended for tests that need exact distances. Pairs are
// matched in both directions; a pair with zero Mins derives its duration
// from Km at the configured speed.
type StaticOracle struct {
	m        map[string]ports.LegEstimate
	speedKmh float64
}

func NewStaticOracle(speedKmh float64, pairs []StaticPair) *StaticOracle {
	if speedKmh <= 0 {
		speedKmh = 35
	}

	m := make(map[string]ports.LegEstimate, len(pairs))
	for _, p := range pairs {
		mins := p.Mins
		if mins == 0 {
			mins = TravelMins(p.Km, speedKmh)
		}
		m[ports.LegKey(p.From, p.To)] = ports.LegEstimate{DistanceKm: p.Km, DurationMins: mins}
	}
	return &StaticOracle{m: m, speedKmh: speedKmh}
}

func (s *StaticOracle) DistanceKm(from, to domain.Coordinate) float64 {
	if leg, ok := s.lookup(from, to); ok {
		return leg.DistanceKm
	}
	return Haversine(from, to)
}

func (s *StaticOracle) TravelTimeMins(from, to domain.Coordinate) float64 {
	if leg, ok := s.lookup(from, to); ok {
		return leg.DurationMins
	}
	return TravelMins(Haversine(from, to), s.speedKmh)
}

func (s *StaticOracle) lookup(from, to domain.Coordinate) (ports.LegEstimate, bool) {
	if leg, ok := s.m[ports.LegKey(from, to)]; ok {
		return leg, true
	}
	leg, ok := s.m[ports.LegKey(to, from)]
	return leg, ok
}
