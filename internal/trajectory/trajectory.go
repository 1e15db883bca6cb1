// Package trajectory retains per-aircraft position history, smooths it,
// predicts future position, and classifies flight pattern. Like
// internal/anomaly, its bounded per-id map generalizes the teacher's
// (saviobatista-go1090) aircraft-position map in internal/adsb/cpr.go; its
// great-circle math is internal/geo, used here instead of CPR's grid
// inversion since this package only ever sees already-decoded lat/lon.
package trajectory

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"remoteid/internal/geo"
	"remoteid/internal/model"
)

// Point is one sample of an aircraft's reported kinematic state.
type Point struct {
	Latitude  float64
	Longitude float64
	Altitude  float64 // geodetic altitude, meters
	Speed     float64 // reported horizontal speed, m/s (may be NaN)
	Heading   float64 // reported track direction, degrees (may be NaN)
	Timestamp time.Time
}

// FlightPattern classifies the shape of recent motion.
type FlightPattern int

const (
	PatternUnknown FlightPattern = iota
	PatternStationary
	PatternLanding
	PatternTakeoff
	PatternLinear
	PatternCircular
	PatternPatrol
	PatternErratic
)

func (p FlightPattern) String() string {
	switch p {
	case PatternStationary:
		return "stationary"
	case PatternLanding:
		return "landing"
	case PatternTakeoff:
		return "takeoff"
	case PatternLinear:
		return "linear"
	case PatternCircular:
		return "circular"
	case PatternPatrol:
		return "patrol"
	case PatternErratic:
		return "erratic"
	default:
		return "unknown"
	}
}

// Statistics summarizes a trajectory's raw points. While points only
// accrete (none dropped from the bounded history), TotalDistanceM,
// MaxSpeed, MaxAltitude, Duration and PointCount never decrease and
// MinAltitude never increases; AvgSpeed is a mean and can move either way.
type Statistics struct {
	TotalDistanceM float64
	MaxSpeed       float64
	AvgSpeed       float64
	MaxAltitude    float64
	MinAltitude    float64
	Duration       time.Duration
	PointCount     int
}

// PredictedPosition is the linear extrapolation returned by PredictPosition.
type PredictedPosition struct {
	Latitude    float64
	Longitude   float64
	Altitude    float64
	Confidence  float64
	ErrorRadius float64
	Timestamp   time.Time
}

// Trajectory is the per-id state: bounded raw and smoothed point FIFOs, the
// last-computed statistics, and the last-classified pattern.
type Trajectory struct {
	Raw      []Point
	Smoothed []Point
	Stats    Statistics
	Pattern  FlightPattern
}

// Analyzer holds one Trajectory per tracked id.
type Analyzer struct {
	logger *logrus.Logger
	cfg    model.TrajectoryConfig

	trajectories map[string]*Trajectory
}

// New constructs an Analyzer. A nil logger falls back to
// logrus.StandardLogger().
func New(cfg model.TrajectoryConfig, logger *logrus.Logger) *Analyzer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Analyzer{
		logger:       logger,
		cfg:          cfg,
		trajectories: make(map[string]*Trajectory),
	}
}

func (a *Analyzer) maxPoints() int {
	if a.cfg.MaxHistoryPoints <= 0 {
		return 1000
	}
	return a.cfg.MaxHistoryPoints
}

// AddPosition appends loc (if valid and not within min_movement_m of the
// last raw point) to id's trajectory, updates the exponentially-smoothed
// series, and — every tenth appended raw point — recomputes statistics and
// re-classifies the flight pattern.
func (a *Analyzer) AddPosition(id string, loc model.LocationVector, ts time.Time) {
	if !loc.Valid {
		return
	}

	traj := a.trajectories[id]
	if traj == nil {
		traj = &Trajectory{}
		a.trajectories[id] = traj
	}

	point := Point{
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Altitude:  float64(loc.GeodeticAltitude),
		Speed:     loc.HorizontalSpeed,
		Heading:   loc.TrackDirection,
		Timestamp: ts,
	}

	if len(traj.Raw) > 0 {
		last := traj.Raw[len(traj.Raw)-1]
		if geo.HaversineDistance(last.Latitude, last.Longitude, point.Latitude, point.Longitude) < a.cfg.MinMovementM {
			return
		}
	}

	traj.Raw = appendBounded(traj.Raw, point, a.maxPoints())

	if len(traj.Smoothed) == 0 {
		traj.Smoothed = append(traj.Smoothed, point)
	} else {
		prev := traj.Smoothed[len(traj.Smoothed)-1]
		alpha := a.cfg.SmoothingFactor
		smoothed := Point{
			Latitude:  alpha*point.Latitude + (1-alpha)*prev.Latitude,
			Longitude: alpha*point.Longitude + (1-alpha)*prev.Longitude,
			Altitude:  alpha*point.Altitude + (1-alpha)*prev.Altitude,
			Speed:     alpha*point.Speed + (1-alpha)*prev.Speed,
			Heading:   alpha*point.Heading + (1-alpha)*prev.Heading,
			Timestamp: point.Timestamp,
		}
		traj.Smoothed = appendBounded(traj.Smoothed, smoothed, a.maxPoints())
	}

	if len(traj.Raw)%10 == 0 {
		traj.Stats = computeStatistics(traj.Raw)
		traj.Pattern = classifyPattern(traj.Raw, a.cfg)
	}
}

func appendBounded(s []Point, v Point, max int) []Point {
	s = append(s, v)
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}

func computeStatistics(points []Point) Statistics {
	var stats Statistics
	if len(points) == 0 {
		return stats
	}

	stats.PointCount = len(points)
	stats.MaxAltitude = points[0].Altitude
	stats.MinAltitude = points[0].Altitude
	speedSum := 0.0
	speedCount := 0

	for i, p := range points {
		if !math.IsNaN(p.Speed) {
			speedSum += p.Speed
			speedCount++
			if p.Speed > stats.MaxSpeed {
				stats.MaxSpeed = p.Speed
			}
		}
		if p.Altitude > stats.MaxAltitude {
			stats.MaxAltitude = p.Altitude
		}
		if p.Altitude < stats.MinAltitude {
			stats.MinAltitude = p.Altitude
		}
		if i > 0 {
			prev := points[i-1]
			stats.TotalDistanceM += geo.HaversineDistance(prev.Latitude, prev.Longitude, p.Latitude, p.Longitude)
		}
	}

	if speedCount > 0 {
		stats.AvgSpeed = speedSum / float64(speedCount)
	}
	stats.Duration = points[len(points)-1].Timestamp.Sub(points[0].Timestamp)
	return stats
}

// Trajectory returns a copy of id's current state, or false if unknown.
func (a *Analyzer) Trajectory(id string) (Trajectory, bool) {
	traj, ok := a.trajectories[id]
	if !ok {
		return Trajectory{}, false
	}
	return *traj, true
}

// PredictPosition linearly extrapolates id's position deltaMs into the
// future from its last two (smoothed, or raw if smoothing has fewer than
// two points) samples.
func (a *Analyzer) PredictPosition(id string, deltaMs uint32) PredictedPosition {
	traj, ok := a.trajectories[id]
	if !ok {
		return PredictedPosition{}
	}

	points := traj.Smoothed
	if len(points) < 2 {
		points = traj.Raw
	}
	if len(points) < 2 {
		return PredictedPosition{}
	}

	p1 := points[len(points)-2]
	p2 := points[len(points)-1]

	dtSeconds := p2.Timestamp.Sub(p1.Timestamp).Seconds()
	if dtSeconds <= 0 {
		return PredictedPosition{}
	}

	bearing := geo.InitialBearing(p1.Latitude, p1.Longitude, p2.Latitude, p2.Longitude)
	distanceM := geo.HaversineDistance(p1.Latitude, p1.Longitude, p2.Latitude, p2.Longitude)
	groundSpeed := distanceM / dtSeconds
	verticalRate := (p2.Altitude - p1.Altitude) / dtSeconds

	horizon := float64(deltaMs) / 1000
	projectedDistance := groundSpeed * horizon
	newLat, newLon := geo.Destination(p2.Latitude, p2.Longitude, bearing, projectedDistance)
	newAlt := p2.Altitude + verticalRate*horizon

	confidence := math.Max(0, 1-horizon/30)
	errorRadius := groundSpeed*horizon*0.1 + horizon*2.0

	return PredictedPosition{
		Latitude:    newLat,
		Longitude:   newLon,
		Altitude:    newAlt,
		Confidence:  confidence,
		ErrorRadius: errorRadius,
		Timestamp:   p2.Timestamp.Add(time.Duration(deltaMs) * time.Millisecond),
	}
}

// classifyPattern implements spec.md §4.7's minimum-5-point classifier.
func classifyPattern(points []Point, cfg model.TrajectoryConfig) FlightPattern {
	n := len(points)
	if n < 5 {
		return PatternUnknown
	}

	avgSpeed, speedCount := 0.0, 0
	for _, p := range points {
		if !math.IsNaN(p.Speed) {
			avgSpeed += p.Speed
			speedCount++
		}
	}
	if speedCount > 0 {
		avgSpeed /= float64(speedCount)
	}

	if avgSpeed < cfg.StationarySpeedThreshold {
		return PatternStationary
	}

	altDelta := points[n-1].Altitude - points[0].Altitude
	if altDelta < -10 && avgSpeed < 5 {
		return PatternLanding
	}
	if altDelta > 10 && avgSpeed < 5 {
		return PatternTakeoff
	}

	headings := make([]float64, 0, n)
	for _, p := range points {
		if !math.IsNaN(p.Heading) {
			headings = append(headings, p.Heading)
		}
	}
	if len(headings) < 2 {
		return PatternUnknown
	}

	variance := circularHeadingVariance(headings)

	turns := make([]float64, 0, len(headings)-1)
	for i := 1; i < len(headings); i++ {
		turns = append(turns, wrapTo180(headings[i]-headings[i-1]))
	}
	avgTurn := 0.0
	for _, t := range turns {
		avgTurn += t
	}
	avgTurn /= float64(len(turns))

	// directionChanges counts reversals in turn rate, not single sharp
	// turns: it fires when the turn between i-1 and i differs from the
	// turn between i-2 and i-1 by more than 90 degrees.
	directionChanges := 0
	for i := 1; i < len(turns); i++ {
		if math.Abs(turns[i]-turns[i-1]) > 90 {
			directionChanges++
		}
	}

	switch {
	case variance < 15:
		return PatternLinear
	case math.Abs(avgTurn) > 5 && variance < 30:
		return PatternCircular
	case directionChanges >= 2 && directionChanges <= n/5:
		return PatternPatrol
	case variance > 60:
		return PatternErratic
	default:
		return PatternUnknown
	}
}

// circularHeadingVariance computes the circular mean via
// atan2(Σsinθ,Σcosθ), wraps each deviation to (-180,180], and returns the
// resulting standard deviation in degrees, per spec.md §4.7.
func circularHeadingVariance(headingsDeg []float64) float64 {
	sumSin, sumCos := 0.0, 0.0
	for _, h := range headingsDeg {
		rad := h * math.Pi / 180
		sumSin += math.Sin(rad)
		sumCos += math.Cos(rad)
	}
	meanRad := math.Atan2(sumSin, sumCos)
	meanDeg := meanRad * 180 / math.Pi

	sumSquares := 0.0
	for _, h := range headingsDeg {
		dev := wrapTo180(h - meanDeg)
		sumSquares += dev * dev
	}
	return math.Sqrt(sumSquares / float64(len(headingsDeg)))
}

// wrapTo180 wraps x into (-180,180].
func wrapTo180(x float64) float64 {
	x = math.Mod(x+180, 360)
	if x < 0 {
		x += 360
	}
	if x == 0 {
		return 180
	}
	return x - 180
}

// Clear removes every tracked trajectory.
func (a *Analyzer) Clear() {
	a.trajectories = make(map[string]*Trajectory)
}

// ClearID removes a single tracked trajectory.
func (a *Analyzer) ClearID(id string) {
	delete(a.trajectories, id)
}
