package trajectory

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remoteid/internal/geo"
	"remoteid/internal/model"
)

func TestAddPositionIgnoresInvalidLocation(t *testing.T) {
	a := New(model.DefaultTrajectoryConfig(), nil)
	a.AddPosition("U1", model.LocationVector{Valid: false}, time.Now())
	_, ok := a.Trajectory("U1")
	assert.False(t, ok)
}

func TestAddPositionDropsSubThresholdMovement(t *testing.T) {
	cfg := model.DefaultTrajectoryConfig()
	cfg.MinMovementM = 100
	a := New(cfg, nil)
	base := time.Now()

	a.AddPosition("U1", model.LocationVector{Valid: true, Latitude: 1, Longitude: 1}, base)
	a.AddPosition("U1", model.LocationVector{Valid: true, Latitude: 1.0000001, Longitude: 1}, base.Add(time.Second))

	traj, ok := a.Trajectory("U1")
	require.True(t, ok)
	assert.Len(t, traj.Raw, 1)
}

func TestAddPositionSmoothingInitializesFromFirstPoint(t *testing.T) {
	a := New(model.DefaultTrajectoryConfig(), nil)
	a.AddPosition("U1", model.LocationVector{Valid: true, Latitude: 10, Longitude: 20}, time.Now())

	traj, ok := a.Trajectory("U1")
	require.True(t, ok)
	require.Len(t, traj.Smoothed, 1)
	assert.Equal(t, 10.0, traj.Smoothed[0].Latitude)
}

func TestStatisticsRecomputedEveryTenthPoint(t *testing.T) {
	cfg := model.DefaultTrajectoryConfig()
	cfg.MinMovementM = 0
	a := New(cfg, nil)
	base := time.Now()

	for i := 0; i < 9; i++ {
		a.AddPosition("U1", model.LocationVector{Valid: true, Latitude: float64(i) * 0.01, Longitude: 0, HorizontalSpeed: 10}, base.Add(time.Duration(i)*time.Second))
	}
	traj, _ := a.Trajectory("U1")
	assert.Equal(t, 0, traj.Stats.PointCount) // not yet a multiple of 10

	a.AddPosition("U1", model.LocationVector{Valid: true, Latitude: 0.09, Longitude: 0, HorizontalSpeed: 10}, base.Add(9*time.Second))
	traj, _ = a.Trajectory("U1")
	assert.Equal(t, 10, traj.Stats.PointCount)
	assert.Greater(t, traj.Stats.TotalDistanceM, 0.0)
}

func TestPredictPositionConstantVelocityWithin100Meters(t *testing.T) {
	cfg := model.DefaultTrajectoryConfig()
	cfg.MinMovementM = 0
	a := New(cfg, nil)
	base := time.Now()

	const speed = 20.0 // m/s due north
	lat1, lon1 := 34.0, -118.0
	lat2, lon2 := geo.Destination(lat1, lon1, 0, speed)

	a.AddPosition("LINEAR1", model.LocationVector{Valid: true, Latitude: lat1, Longitude: lon1, HorizontalSpeed: speed, TrackDirection: 0}, base)
	a.AddPosition("LINEAR1", model.LocationVector{Valid: true, Latitude: lat2, Longitude: lon2, HorizontalSpeed: speed, TrackDirection: 0}, base.Add(time.Second))

	for _, horizonMs := range []uint32{200, 500, 1000} {
		pred := a.PredictPosition("LINEAR1", horizonMs)
		trueLat, trueLon := geo.Destination(lat2, lon2, 0, speed*float64(horizonMs)/1000)
		err := geo.HaversineDistance(pred.Latitude, pred.Longitude, trueLat, trueLon)
		assert.LessOrEqual(t, err, 100.0)
	}
}

func TestPredictPositionConfidenceMonotonicallyDecreases(t *testing.T) {
	cfg := model.DefaultTrajectoryConfig()
	cfg.MinMovementM = 0
	a := New(cfg, nil)
	base := time.Now()

	a.AddPosition("LINEAR2", model.LocationVector{Valid: true, Latitude: 0, Longitude: 0, HorizontalSpeed: 10}, base)
	a.AddPosition("LINEAR2", model.LocationVector{Valid: true, Latitude: 0.001, Longitude: 0, HorizontalSpeed: 10}, base.Add(time.Second))

	prev := 2.0
	for _, horizonMs := range []uint32{1000, 5000, 10000, 20000} {
		pred := a.PredictPosition("LINEAR2", horizonMs)
		assert.Less(t, pred.Confidence, prev)
		prev = pred.Confidence
	}
}

func TestPredictPositionFewerThanTwoPointsYieldsZeroConfidence(t *testing.T) {
	a := New(model.DefaultTrajectoryConfig(), nil)
	a.AddPosition("SOLO", model.LocationVector{Valid: true, Latitude: 1, Longitude: 1}, time.Now())
	pred := a.PredictPosition("SOLO", 1000)
	assert.Equal(t, 0.0, pred.Confidence)
}

func TestClassifyPatternUnknownBelowFivePoints(t *testing.T) {
	pts := []Point{{Speed: 10, Heading: 0}, {Speed: 10, Heading: 0}}
	assert.Equal(t, PatternUnknown, classifyPattern(pts, model.DefaultTrajectoryConfig()))
}

func TestClassifyPatternStationary(t *testing.T) {
	cfg := model.DefaultTrajectoryConfig()
	pts := make([]Point, 6)
	for i := range pts {
		pts[i] = Point{Speed: 0.1, Heading: 0, Altitude: 100}
	}
	assert.Equal(t, PatternStationary, classifyPattern(pts, cfg))
}

func TestClassifyPatternTakeoff(t *testing.T) {
	cfg := model.DefaultTrajectoryConfig()
	pts := make([]Point, 6)
	for i := range pts {
		pts[i] = Point{Speed: 2, Heading: 0, Altitude: float64(i) * 5}
	}
	assert.Equal(t, PatternTakeoff, classifyPattern(pts, cfg))
}

func TestClassifyPatternLanding(t *testing.T) {
	cfg := model.DefaultTrajectoryConfig()
	pts := make([]Point, 6)
	for i := range pts {
		pts[i] = Point{Speed: 2, Heading: 0, Altitude: 100 - float64(i)*5}
	}
	assert.Equal(t, PatternLanding, classifyPattern(pts, cfg))
}

func TestClassifyPatternLinear(t *testing.T) {
	cfg := model.DefaultTrajectoryConfig()
	pts := make([]Point, 6)
	for i := range pts {
		pts[i] = Point{Speed: 15, Heading: 45, Altitude: 100}
	}
	assert.Equal(t, PatternLinear, classifyPattern(pts, cfg))
}

func TestClassifyPatternPatrol(t *testing.T) {
	cfg := model.DefaultTrajectoryConfig()
	// Turns right at a steady 60 deg/step, then left at a steady
	// 60 deg/step, then right again: the turn RATE reverses exactly
	// twice, even though no single step is itself a sharp turn beyond
	// the steady rate.
	headings := []float64{0, 60, 120, 180, 240, 300, 240, 180, 120, 60, 0, 60, 120, 180, 240}
	pts := make([]Point, len(headings))
	for i, h := range headings {
		pts[i] = Point{Speed: 15, Heading: h, Altitude: 100}
	}
	assert.Equal(t, PatternPatrol, classifyPattern(pts, cfg))
}

func TestClassifyPatternSteadyTurnIsNotPatrol(t *testing.T) {
	cfg := model.DefaultTrajectoryConfig()
	// A steady turn (constant 37-degree-per-step rate) never reverses its
	// turn rate, so it must not classify as patrol even though individual
	// steps turn sharply.
	headings := make([]float64, 10)
	for i := range headings {
		headings[i] = math.Mod(float64(i)*37, 360)
	}
	pts := make([]Point, len(headings))
	for i, h := range headings {
		pts[i] = Point{Speed: 15, Heading: h, Altitude: 100}
	}
	assert.NotEqual(t, PatternPatrol, classifyPattern(pts, cfg))
}

func TestClassifyPatternErratic(t *testing.T) {
	cfg := model.DefaultTrajectoryConfig()
	headings := []float64{0, 90, 180, 270, 45, 225}
	pts := make([]Point, len(headings))
	for i, h := range headings {
		pts[i] = Point{Speed: 15, Heading: h, Altitude: 100}
	}
	assert.Equal(t, PatternErratic, classifyPattern(pts, cfg))
}

func TestClearRemovesAllTrajectories(t *testing.T) {
	a := New(model.DefaultTrajectoryConfig(), nil)
	a.AddPosition("U1", model.LocationVector{Valid: true, Latitude: 1, Longitude: 1}, time.Now())
	a.Clear()
	_, ok := a.Trajectory("U1")
	assert.False(t, ok)
}

func TestClearIDRemovesOnlyThatTrajectory(t *testing.T) {
	a := New(model.DefaultTrajectoryConfig(), nil)
	a.AddPosition("U1", model.LocationVector{Valid: true, Latitude: 1, Longitude: 1}, time.Now())
	a.AddPosition("U2", model.LocationVector{Valid: true, Latitude: 2, Longitude: 2}, time.Now())
	a.ClearID("U1")
	_, ok1 := a.Trajectory("U1")
	_, ok2 := a.Trajectory("U2")
	assert.False(t, ok1)
	assert.True(t, ok2)
}
