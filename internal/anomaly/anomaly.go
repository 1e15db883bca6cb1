// Package anomaly flags physically impossible motion, replayed messages,
// and signal-versus-position inconsistencies in a stream of decoded UAV
// updates. It keeps a bounded per-id history the same way the teacher's
// (saviobatista-go1090) CPR decoder keeps a per-ICAO aircraft-position map
// in internal/adsb/cpr.go, but trims oldest entries once the configured
// bound is reached instead of retaining one position forever.
//
// Per spec.md §4.6 this detector is a pure function of the update stream:
// it is not wired into the session manager's event path. A caller that
// wants live anomaly detection feeds each decoded UAV into Analyze itself.
package anomaly

import (
	"hash/fnv"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"remoteid/internal/geo"
	"remoteid/internal/model"
)

// Severity classifies how urgently an Anomaly should be surfaced.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityCritical
)

func (s Severity) String() string {
	if s == SeverityCritical {
		return "critical"
	}
	return "warning"
}

// Type identifies which rule emitted an Anomaly.
type Type int

const (
	TypeReplayAttack Type = iota
	TypeSpeedImpossible
	TypeAltitudeSpike
	TypePositionJump
	TypeSignalAnomaly
)

func (t Type) String() string {
	switch t {
	case TypeReplayAttack:
		return "replay_attack"
	case TypeSpeedImpossible:
		return "speed_impossible"
	case TypeAltitudeSpike:
		return "altitude_spike"
	case TypePositionJump:
		return "position_jump"
	case TypeSignalAnomaly:
		return "signal_anomaly"
	default:
		return "unknown"
	}
}

// Anomaly is one rule violation, carrying the expected-vs-actual numerics a
// caller needs to present context.
type Anomaly struct {
	Type        Type
	Severity    Severity
	UAVID       string
	Description string
	Confidence  float64
	Timestamp   time.Time
	Expected    float64
	Actual      float64
}

type positionSample struct {
	lat, lon, altGeo float64
	speedHorizontal  float64
	timestamp        time.Time
}

type rssiSample struct {
	rssi      float64
	timestamp time.Time
}

type hashSample struct {
	hash      uint32
	timestamp time.Time
}

type history struct {
	positions []positionSample
	rssis     []rssiSample
	hashes    []hashSample
}

// Detector holds bounded per-id history and emission counters.
type Detector struct {
	logger *logrus.Logger
	cfg    model.AnomalyConfig

	history map[string]*history
	counts  map[Type]int
	total   int
}

// New constructs a Detector. A nil logger falls back to
// logrus.StandardLogger().
func New(cfg model.AnomalyConfig, logger *logrus.Logger) *Detector {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Detector{
		logger:  logger,
		cfg:     cfg,
		history: make(map[string]*history),
		counts:  make(map[Type]int),
	}
}

// Analyze runs all six rules, in order, against uav's current state and
// this detector's history for uav.ID, appends the new sample to history,
// and returns every anomaly emitted (possibly none).
func (d *Detector) Analyze(uav *model.UAVObject, rssi float64) []Anomaly {
	h := d.history[uav.ID]
	if h == nil {
		h = &history{}
		d.history[uav.ID] = h
	}

	now := uav.LastSeen
	if now.IsZero() {
		now = time.Now()
	}

	sample := positionSample{
		lat:             uav.Location.Latitude,
		lon:             uav.Location.Longitude,
		altGeo:          float64(uav.Location.GeodeticAltitude),
		speedHorizontal: uav.Location.HorizontalSpeed,
		timestamp:       now,
	}

	var out []Anomaly
	out = append(out, d.checkReplay(uav, sample, h)...)
	out = append(out, d.checkImpossibleSpeed(uav, sample, h)...)
	out = append(out, d.checkAltitudeSpike(uav, sample, h)...)
	out = append(out, d.checkAcceleration(uav, sample, h)...)
	out = append(out, d.checkPositionJump(uav, sample, h)...)
	out = append(out, d.checkSignalAnomaly(uav, rssi, sample, h)...)

	if uav.Location.Valid {
		h.positions = appendBounded(h.positions, sample, d.maxHistory())
	}
	h.rssis = appendBounded(h.rssis, rssiSample{rssi: rssi, timestamp: now}, d.maxHistory())
	h.hashes = appendBounded(h.hashes, hashSample{hash: messageHash(uav), timestamp: now}, d.maxHistory())

	for _, a := range out {
		d.counts[a.Type]++
		d.total++
	}
	return out
}

func (d *Detector) maxHistory() int {
	if d.cfg.MaxHistory <= 0 {
		return 100
	}
	return d.cfg.MaxHistory
}

func appendBounded[T any](s []T, v T, max int) []T {
	s = append(s, v)
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}

func messageHash(uav *model.UAVObject) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(uav.ID))
	var buf [32]byte
	writeFloat64(buf[0:8], uav.Location.Latitude)
	writeFloat64(buf[8:16], uav.Location.Longitude)
	writeFloat64(buf[16:24], float64(uav.Location.GeodeticAltitude))
	writeFloat64(buf[24:32], uav.Location.HorizontalSpeed)
	_, _ = h.Write(buf[:])
	return h.Sum32()
}

func writeFloat64(b []byte, f float64) {
	bits := math.Float64bits(f)
	for i := 0; i < 8; i++ {
		b[i] = byte(bits >> (8 * i))
	}
}

// checkReplay is rule 1.
func (d *Detector) checkReplay(uav *model.UAVObject, sample positionSample, h *history) []Anomaly {
	hash := messageHash(uav)
	window := time.Duration(d.cfg.ReplayWindowMs) * time.Millisecond

	count := 1 // the current message counts as one occurrence of itself
	for _, s := range h.hashes {
		if s.hash == hash && sample.timestamp.Sub(s.timestamp) <= window {
			count++
		}
	}
	if count < d.cfg.MinDuplicateCount {
		return nil
	}

	confidence := math.Min(1, float64(count)/10)
	return []Anomaly{{
		Type:        TypeReplayAttack,
		Severity:    SeverityCritical,
		UAVID:       uav.ID,
		Description: "duplicate message observed within replay window",
		Confidence:  confidence,
		Timestamp:   sample.timestamp,
		Expected:    float64(d.cfg.MinDuplicateCount),
		Actual:      float64(count),
	}}
}

func (d *Detector) lastPosition(h *history) (positionSample, bool) {
	if len(h.positions) == 0 {
		return positionSample{}, false
	}
	return h.positions[len(h.positions)-1], true
}

func (d *Detector) elapsed(prev, cur time.Time) (time.Duration, bool) {
	dt := cur.Sub(prev)
	if dt <= 0 || dt > time.Duration(d.cfg.MaxTimestampGapMs)*time.Millisecond {
		return 0, false
	}
	return dt, true
}

// checkImpossibleSpeed is rule 2.
func (d *Detector) checkImpossibleSpeed(uav *model.UAVObject, sample positionSample, h *history) []Anomaly {
	if !uav.Location.Valid {
		return nil
	}
	prev, ok := d.lastPosition(h)
	if !ok {
		return nil
	}
	dt, ok := d.elapsed(prev.timestamp, sample.timestamp)
	if !ok {
		return nil
	}

	distance := geo.HaversineDistance(prev.lat, prev.lon, sample.lat, sample.lon)
	inferredSpeed := distance / dt.Seconds()
	if inferredSpeed <= d.cfg.MaxHorizontalSpeed {
		return nil
	}

	severity := SeverityWarning
	if inferredSpeed > 2*d.cfg.MaxHorizontalSpeed {
		severity = SeverityCritical
	}
	return []Anomaly{{
		Type:        TypeSpeedImpossible,
		Severity:    severity,
		UAVID:       uav.ID,
		Description: "inferred ground speed exceeds configured maximum",
		Confidence:  math.Min(1, inferredSpeed/d.cfg.MaxHorizontalSpeed-1),
		Timestamp:   sample.timestamp,
		Expected:    d.cfg.MaxHorizontalSpeed,
		Actual:      inferredSpeed,
	}}
}

// checkAltitudeSpike is rule 3.
func (d *Detector) checkAltitudeSpike(uav *model.UAVObject, sample positionSample, h *history) []Anomaly {
	if !uav.Location.Valid {
		return nil
	}
	prev, ok := d.lastPosition(h)
	if !ok {
		return nil
	}
	dt, ok := d.elapsed(prev.timestamp, sample.timestamp)
	if !ok {
		return nil
	}

	rate := math.Abs(sample.altGeo-prev.altGeo) / dt.Seconds()
	if rate <= d.cfg.MaxVerticalSpeed {
		return nil
	}
	return []Anomaly{{
		Type:        TypeAltitudeSpike,
		Severity:    SeverityWarning,
		UAVID:       uav.ID,
		Description: "geodetic altitude changed faster than the configured maximum vertical speed",
		Confidence:  math.Min(1, rate/d.cfg.MaxVerticalSpeed-1),
		Timestamp:   sample.timestamp,
		Expected:    d.cfg.MaxVerticalSpeed,
		Actual:      rate,
	}}
}

// checkAcceleration is rule 4.
func (d *Detector) checkAcceleration(uav *model.UAVObject, sample positionSample, h *history) []Anomaly {
	if !uav.Location.Valid || math.IsNaN(sample.speedHorizontal) {
		return nil
	}
	prev, ok := d.lastPosition(h)
	if !ok || math.IsNaN(prev.speedHorizontal) {
		return nil
	}
	dt, ok := d.elapsed(prev.timestamp, sample.timestamp)
	if !ok {
		return nil
	}

	accel := math.Abs(sample.speedHorizontal-prev.speedHorizontal) / dt.Seconds()
	if accel <= d.cfg.MaxAcceleration {
		return nil
	}
	return []Anomaly{{
		Type:        TypeSpeedImpossible,
		Severity:    SeverityWarning,
		UAVID:       uav.ID,
		Description: "reported horizontal speed changed faster than the configured maximum acceleration",
		Confidence:  math.Min(1, accel/d.cfg.MaxAcceleration-1),
		Timestamp:   sample.timestamp,
		Expected:    d.cfg.MaxAcceleration,
		Actual:      accel,
	}}
}

// checkPositionJump is rule 5.
func (d *Detector) checkPositionJump(uav *model.UAVObject, sample positionSample, h *history) []Anomaly {
	if !uav.Location.Valid {
		return nil
	}
	prev, ok := d.lastPosition(h)
	if !ok {
		return nil
	}
	dt, ok := d.elapsed(prev.timestamp, sample.timestamp)
	if !ok {
		return nil
	}

	distance := geo.HaversineDistance(prev.lat, prev.lon, sample.lat, sample.lon)
	physicallyPossible := d.cfg.MaxHorizontalSpeed * dt.Seconds()
	if distance <= d.cfg.MaxPositionJumpM || distance <= 1.5*physicallyPossible {
		return nil
	}
	return []Anomaly{{
		Type:        TypePositionJump,
		Severity:    SeverityCritical,
		UAVID:       uav.ID,
		Description: "position jumped further than both the configured limit and physical plausibility",
		Confidence:  math.Min(1, distance/d.cfg.MaxPositionJumpM-1),
		Timestamp:   sample.timestamp,
		Expected:    1.5 * physicallyPossible,
		Actual:      distance,
	}}
}

// pathLossExponent is the log-distance path-loss exponent used to predict
// how much RSSI should change between two samples a given distance apart.
const pathLossExponent = 2.5

// checkSignalAnomaly is rule 6. It needs at least 3 prior RSSI samples to
// trust the rolling average, then compares the observed RSSI against that
// average and asks whether the position change since the last sample
// plausibly explains the deviation under a log-distance path-loss model: a
// deviation larger than expected_rssi_change*(1+rssi_distance_tolerance) is
// flagged.
func (d *Detector) checkSignalAnomaly(uav *model.UAVObject, rssi float64, sample positionSample, h *history) []Anomaly {
	if len(h.rssis) < 3 {
		return nil
	}
	sum := 0.0
	for _, s := range h.rssis {
		sum += s.rssi
	}
	avg := sum / float64(len(h.rssis))
	deviation := math.Abs(rssi - avg)
	if deviation <= d.cfg.MinRSSIChange {
		return nil
	}

	prev, ok := d.lastPosition(h)
	if !ok || !uav.Location.Valid {
		return nil
	}
	distance := geo.HaversineDistance(prev.lat, prev.lon, sample.lat, sample.lon)
	expectedDelta := 10 * pathLossExponent * math.Log10(math.Max(1, distance))
	if deviation <= expectedDelta*(1+d.cfg.RSSIDistanceTolerance) {
		return nil
	}

	return []Anomaly{{
		Type:        TypeSignalAnomaly,
		Severity:    SeverityWarning,
		UAVID:       uav.ID,
		Description: "observed RSSI change is larger than the position change plausibly explains",
		Confidence:  math.Min(1, deviation/40),
		Timestamp:   sample.timestamp,
		Expected:    expectedDelta,
		Actual:      deviation,
	}}
}

// Count returns the number of anomalies of a given type emitted so far.
func (d *Detector) Count(t Type) int { return d.counts[t] }

// Total returns the total number of anomalies emitted across all types.
func (d *Detector) Total() int { return d.total }

// Clear empties all history and counters.
func (d *Detector) Clear() {
	d.history = make(map[string]*history)
	d.counts = make(map[Type]int)
	d.total = 0
}

// ClearUAV empties the history for a single id, leaving counters intact.
func (d *Detector) ClearUAV(id string) {
	delete(d.history, id)
}
