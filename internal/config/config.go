package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"dispatch-sim/internal/domain"
)

// Get returns the environment value for key, or fallback when unset.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Simulation holds every tunable the dispatch simulator reads. The struct is
// immutable once constructed: components receive it by value and never write
// back. Times are minutes since midnight.
type Simulation struct {
	StartTime float64
	EndTime   float64
	TickMins  float64

	BatchWindowMins         float64
	HighLoadThreshold       float64
	CombinatorialWindowMins float64

	MaxBundleSize       int
	MaxPickupDistanceKm float64

	WDistance              float64
	WDelay                 float64
	BundleDiscountPerOrder float64
	MaxDeliveryTimeMins    float64
	DelayCapMins           float64
	OnTimeThresholdMins    float64
	ServiceTimeMins        float64
	AvgSpeedKmh            float64

	PenaltyMotorbike float64
	PenaltyBike      float64
	PenaltyCar       float64

	UseRoadDistance             bool
	OSRMServerURL               string
	OSRMTimeout                 time.Duration
	HaversineFallbackMultiplier float64

	MaxParallelBids int
}

// Default returns the stock tuning: a 17:00-22:00 evening shift dispatched
// minute by minute.
func Default() Simulation {
	return Simulation{
		StartTime: 17 * 60,
		EndTime:   22 * 60,
		TickMins:  1,

		BatchWindowMins:         1,
		HighLoadThreshold:       2,
		CombinatorialWindowMins: 5,

		MaxBundleSize:       2,
		MaxPickupDistanceKm: 5,

		WDistance:              1,
		WDelay:                 1.5,
		BundleDiscountPerOrder: 0.25,
		MaxDeliveryTimeMins:    52,
		DelayCapMins:           20,
		OnTimeThresholdMins:    30,
		ServiceTimeMins:        5,
		AvgSpeedKmh:            35,

		PenaltyMotorbike: 1.0,
		PenaltyBike:      1.2,
		PenaltyCar:       1.4,

		UseRoadDistance:             false,
		OSRMServerURL:               "https://router.project-osrm.org",
		OSRMTimeout:                 5 * time.Second,
		HaversineFallbackMultiplier: 1.4,

		MaxParallelBids: 4,
	}
}

// VehiclePenalty returns the bid multiplier for a vehicle class. Unknown
// classes cost nothing extra.
func (c Simulation) VehiclePenalty(v domain.VehicleType) float64 {
	switch v {
	case domain.VehicleMotorbike:
		return c.PenaltyMotorbike
	case domain.VehicleBike:
		return c.PenaltyBike
	case domain.VehicleCar:
		return c.PenaltyCar
	}
	return 1.0
}

// FromEnv overlays environment variables onto the defaults. Every variable
// is optional; a set-but-malformed value is an error rather than a silent
// fallback.
func FromEnv() (Simulation, error) {
	c := Default()

	var err error
	if c.StartTime, err = clockEnv("SIM_START_TIME", c.StartTime); err != nil {
		return c, err
	}
	if c.EndTime, err = clockEnv("SIM_END_TIME", c.EndTime); err != nil {
		return c, err
	}
	if c.TickMins, err = floatEnv("TICK_MINUTES", c.TickMins); err != nil {
		return c, err
	}
	if c.BatchWindowMins, err = floatEnv("BATCH_WINDOW_MINS", c.BatchWindowMins); err != nil {
		return c, err
	}
	if c.HighLoadThreshold, err = floatEnv("HIGH_LOAD_THRESHOLD", c.HighLoadThreshold); err != nil {
		return c, err
	}
	if c.CombinatorialWindowMins, err = floatEnv("COMBINATORIAL_WINDOW_MINS", c.CombinatorialWindowMins); err != nil {
		return c, err
	}
	if c.MaxBundleSize, err = intEnv("MAX_BUNDLE_SIZE", c.MaxBundleSize); err != nil {
		return c, err
	}
	if c.MaxPickupDistanceKm, err = floatEnv("MAX_PICKUP_DISTANCE_KM", c.MaxPickupDistanceKm); err != nil {
		return c, err
	}
	if c.WDistance, err = floatEnv("W_DISTANCE", c.WDistance); err != nil {
		return c, err
	}
	if c.WDelay, err = floatEnv("W_DELAY", c.WDelay); err != nil {
		return c, err
	}
	if c.BundleDiscountPerOrder, err = floatEnv("BUNDLE_DISCOUNT_PER_ORDER", c.BundleDiscountPerOrder); err != nil {
		return c, err
	}
	if c.MaxDeliveryTimeMins, err = floatEnv("MAX_DELIVERY_TIME_MINS", c.MaxDeliveryTimeMins); err != nil {
		return c, err
	}
	if c.DelayCapMins, err = floatEnv("DELAY_CAP_MINS", c.DelayCapMins); err != nil {
		return c, err
	}
	if c.OnTimeThresholdMins, err = floatEnv("ON_TIME_THRESHOLD_MINS", c.OnTimeThresholdMins); err != nil {
		return c, err
	}
	if c.ServiceTimeMins, err = floatEnv("SERVICE_TIME_MINS", c.ServiceTimeMins); err != nil {
		return c, err
	}
	if c.AvgSpeedKmh, err = floatEnv("AVG_SPEED_KMH", c.AvgSpeedKmh); err != nil {
		return c, err
	}
	if c.PenaltyMotorbike, err = floatEnv("PENALTY_MOTORBIKE", c.PenaltyMotorbike); err != nil {
		return c, err
	}
	if c.PenaltyBike, err = floatEnv("PENALTY_BIKE", c.PenaltyBike); err != nil {
		return c, err
	}
	if c.PenaltyCar, err = floatEnv("PENALTY_CAR", c.PenaltyCar); err != nil {
		return c, err
	}
	if c.UseRoadDistance, err = boolEnv("USE_ROAD_DISTANCE", c.UseRoadDistance); err != nil {
		return c, err
	}
	c.OSRMServerURL = Get("OSRM_SERVER_URL", c.OSRMServerURL)
	timeoutSecs, err := floatEnv("OSRM_TIMEOUT_SECONDS", c.OSRMTimeout.Seconds())
	if err != nil {
		return c, err
	}
	c.OSRMTimeout = time.Duration(timeoutSecs * float64(time.Second))
	if c.HaversineFallbackMultiplier, err = floatEnv("HAVERSINE_FALLBACK_MULTIPLIER", c.HaversineFallbackMultiplier); err != nil {
		return c, err
	}
	if c.MaxParallelBids, err = intEnv("MAX_PARALLEL_BIDS", c.MaxParallelBids); err != nil {
		return c, err
	}
	if c.MaxParallelBids < 1 {
		c.MaxParallelBids = 1
	}

	return c, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s=%q: %w", key, v, err)
	}
	return f, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s=%q: %w", key, v, err)
	}
	return n, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: parse %s=%q: %w", key, v, err)
	}
	return b, nil
}

func clockEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	m, err := domain.ParseMinuteOfDay(v)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	return m, nil
}
