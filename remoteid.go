// Package remoteid is the public entry point: it wires the envelope
// classifier, protocol decoders, session manager, anomaly detector, and
// trajectory analyzer into the single Parser an importer constructs once
// and feeds frames to, the way saviobatista-go1090's Application
// (internal/app/application.go) wires its RTL-SDR device, ADS-B processor,
// and CPR decoder behind one top-level struct.
package remoteid

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"remoteid/internal/anomaly"
	"remoteid/internal/metrics"
	"remoteid/internal/model"
	"remoteid/internal/parser"
	"remoteid/internal/trajectory"
)

// Metrics re-exports the Prometheus instrumentation Registry so importers
// need not reach into internal/metrics directly.
type Metrics = metrics.Registry

// NewMetrics constructs a Metrics with every collector instantiated but not
// yet registered against a prometheus.Registerer.
func NewMetrics() *Metrics { return metrics.NewRegistry() }

// Re-exported so callers need only import this package for the common
// path; internal/model remains available directly for advanced usage.
type (
	RawFrame    = model.RawFrame
	ParseResult = model.ParseResult
	UAVObject   = model.UAVObject
	Transport   = model.Transport
	Protocol    = model.Protocol

	ParserConfig     = model.ParserConfig
	AnomalyConfig    = model.AnomalyConfig
	TrajectoryConfig = model.TrajectoryConfig

	Anomaly  = anomaly.Anomaly
	Pattern  = trajectory.FlightPattern
	Point    = trajectory.Point
	Forecast = trajectory.PredictedPosition
)

const (
	TransportBTLegacy   = model.TransportBTLegacy
	TransportBTExtended = model.TransportBTExtended
	TransportWiFiBeacon = model.TransportWiFiBeacon
	TransportWiFiNAN    = model.TransportWiFiNAN
)

// Parser is the library's single entry point: not safe for concurrent use
// by convention (like internal/session.Manager, it does not lock itself) —
// an importer serving concurrent receivers should shard by id or guard its
// own Parser with a mutex.
type Parser struct {
	core       *parser.Parser
	anomalies  *anomaly.Detector
	trajectory *trajectory.Analyzer

	metrics *Metrics
}

// Config bundles the three independently-tunable subsystems. Leaving
// Anomaly or Trajectory nil uses that subsystem's spec.md §6 defaults.
// Leaving Metrics nil disables Prometheus instrumentation entirely.
type Config struct {
	Parser     model.ParserConfig
	Anomaly    *model.AnomalyConfig
	Trajectory *model.TrajectoryConfig
	Metrics    *Metrics
}

// DefaultConfig returns the spec.md §6 defaults for every subsystem.
func DefaultConfig() Config {
	return Config{Parser: model.DefaultParserConfig()}
}

// New constructs a Parser. A nil logger falls back to
// logrus.StandardLogger(), matching every other constructor in this
// module.
func New(cfg Config, logger *logrus.Logger) *Parser {
	anomalyCfg := model.DefaultAnomalyConfig()
	if cfg.Anomaly != nil {
		anomalyCfg = *cfg.Anomaly
	}
	trajCfg := model.DefaultTrajectoryConfig()
	if cfg.Trajectory != nil {
		trajCfg = *cfg.Trajectory
	}

	core := parser.New(cfg.Parser, logger)
	if cfg.Metrics != nil {
		core.SetMetrics(cfg.Metrics)
	}

	return &Parser{
		core:       core,
		anomalies:  anomaly.New(anomalyCfg, logger),
		trajectory: trajectory.New(trajCfg, logger),
		metrics:    cfg.Metrics,
	}
}

// RegisterMetrics registers reg's collectors against registerer. It is a
// thin convenience wrapper so a caller that built Config.Metrics via
// NewMetrics need not import internal/metrics or prometheus itself.
func RegisterMetrics(reg *Metrics, registerer prometheus.Registerer) {
	reg.MustRegister(registerer)
}

// Parse decodes a single RawFrame, forwarding a successfully-identified UAV
// into the session manager. It is the library's core operation;
// everything else is a view onto state Parse has accumulated.
func (p *Parser) Parse(frame model.RawFrame) model.ParseResult {
	return p.core.Parse(frame)
}

// ParseBytes is the convenience form of Parse for callers without their
// own RawFrame plumbing: timestamp is set to time.Now().
func (p *Parser) ParseBytes(payload []byte, rssi int8, transport model.Transport) model.ParseResult {
	return p.Parse(model.RawFrame{
		Payload:   payload,
		RSSI:      rssi,
		Transport: transport,
		Timestamp: time.Now(),
	})
}

// GetActiveUAVs returns a snapshot of every currently tracked UAV.
func (p *Parser) GetActiveUAVs() []*model.UAVObject {
	return p.core.Session.GetActiveUAVs()
}

// GetUAV looks up a single tracked UAV by id.
func (p *Parser) GetUAV(id string) (*model.UAVObject, bool) {
	return p.core.Session.GetUAV(id)
}

// GetActiveCount returns the number of currently tracked UAVs.
func (p *Parser) GetActiveCount() int {
	return p.core.Session.Count()
}

// Cleanup evicts UAVs that have exceeded the configured timeout and
// returns their ids.
func (p *Parser) Cleanup() []string {
	return p.core.Cleanup()
}

// Clear removes every tracked UAV without firing lifecycle callbacks, and
// every retained anomaly/trajectory history.
func (p *Parser) Clear() {
	p.core.Session.Clear()
	p.anomalies.Clear()
	p.trajectory.Clear()
}

// SetOnNewUAV registers the callback fired when a previously unseen id is
// first tracked.
func (p *Parser) SetOnNewUAV(cb func(*model.UAVObject)) { p.core.Session.SetOnNew(cb) }

// SetOnUAVUpdate registers the callback fired when an existing id's record
// is merged with a new message.
func (p *Parser) SetOnUAVUpdate(cb func(*model.UAVObject)) { p.core.Session.SetOnUpdate(cb) }

// SetOnUAVTimeout registers the callback fired once per id evicted by
// Cleanup.
func (p *Parser) SetOnUAVTimeout(cb func(*model.UAVObject)) { p.core.Session.SetOnTimeout(cb) }

// Analyze runs the anomaly detector against uav and returns any rule
// violations. The anomaly detector is deliberately not wired into the
// session manager's Update path (spec.md §4.6) — a caller decides per
// ParseResult whether and when to call this.
func (p *Parser) Analyze(uav *model.UAVObject, rssi float64) []anomaly.Anomaly {
	anomalies := p.anomalies.Analyze(uav, rssi)
	if p.metrics != nil {
		p.metrics.ObserveAnomalies(anomalies)
	}
	return anomalies
}

// AddPosition appends uav's current location to its trajectory history. As
// with Analyze, a caller decides per ParseResult whether to call this.
func (p *Parser) AddPosition(id string, loc model.LocationVector, ts time.Time) {
	p.trajectory.AddPosition(id, loc, ts)
}

// PredictPosition linearly extrapolates id's position deltaMs into the
// future.
func (p *Parser) PredictPosition(id string, deltaMs uint32) trajectory.PredictedPosition {
	return p.trajectory.PredictPosition(id, deltaMs)
}

// Trajectory returns id's retained position history and latest
// classification.
func (p *Parser) Trajectory(id string) (trajectory.Trajectory, bool) {
	return p.trajectory.Trajectory(id)
}
