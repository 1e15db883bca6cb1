package model

// ParserConfig controls the parser façade and its session manager.
// Field names and defaults mirror spec.md §6.
type ParserConfig struct {
	UAVTimeoutMs         uint32 `yaml:"uav_timeout_ms"`
	EnableDeduplication  bool   `yaml:"enable_deduplication"`
	EnableASTM           bool   `yaml:"enable_astm"`
	EnableASD            bool   `yaml:"enable_asd"`
	EnableCN             bool   `yaml:"enable_cn"`
}

// DefaultParserConfig returns the spec.md §6 defaults.
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		UAVTimeoutMs:        30_000,
		EnableDeduplication: true,
		EnableASTM:          true,
		EnableASD:           false,
		EnableCN:            false,
	}
}

// AnomalyConfig controls the anomaly detector's rule thresholds.
type AnomalyConfig struct {
	MaxHorizontalSpeed    float64 `yaml:"max_horizontal_speed"`     // m/s
	MaxVerticalSpeed      float64 `yaml:"max_vertical_speed"`       // m/s
	MaxAcceleration       float64 `yaml:"max_acceleration"`         // m/s^2
	MaxPositionJumpM      float64 `yaml:"max_position_jump_m"`      // meters
	MaxAltitudeChangeRate float64 `yaml:"max_altitude_change_rate"` // m/s

	ReplayWindowMs    uint32 `yaml:"replay_window_ms"`
	MinDuplicateCount int    `yaml:"min_duplicate_count"`

	RSSIDistanceTolerance float64 `yaml:"rssi_distance_tolerance"` // fraction
	MinRSSIChange         float64 `yaml:"min_rssi_change"`         // dB

	MaxTimestampGapMs uint32 `yaml:"max_timestamp_gap_ms"`

	// MaxHistory bounds the per-id FIFOs of positions/rssi/timestamps/hashes.
	MaxHistory int `yaml:"max_history"`
}

// DefaultAnomalyConfig returns the spec.md §6 defaults.
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		MaxHorizontalSpeed:    150,
		MaxVerticalSpeed:      50,
		MaxAcceleration:       30,
		MaxPositionJumpM:      1000,
		MaxAltitudeChangeRate: 100,
		ReplayWindowMs:        5000,
		MinDuplicateCount:     3,
		RSSIDistanceTolerance: 0.30,
		MinRSSIChange:         20,
		MaxTimestampGapMs:     10_000,
		MaxHistory:            100,
	}
}

// TrajectoryConfig controls the trajectory analyzer.
type TrajectoryConfig struct {
	MaxHistoryPoints          int     `yaml:"max_history_points"`
	SmoothingFactor           float64 `yaml:"smoothing_factor"` // alpha in (0,1]
	PredictionHorizonMs       uint32  `yaml:"prediction_horizon_ms"`
	MinMovementM              float64 `yaml:"min_movement_m"`
	StationarySpeedThreshold  float64 `yaml:"stationary_speed_threshold"` // m/s
}

// DefaultTrajectoryConfig returns the spec.md §6 defaults.
func DefaultTrajectoryConfig() TrajectoryConfig {
	return TrajectoryConfig{
		MaxHistoryPoints:         1000,
		SmoothingFactor:          0.30,
		PredictionHorizonMs:      5000,
		MinMovementM:             1.0,
		StationarySpeedThreshold: 0.5,
	}
}
