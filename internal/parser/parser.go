// Package parser is the façade that ties the transport envelope classifier
// (internal/envelope), the protocol decoders (internal/astm,
// internal/asdstan), and the session manager (internal/session) into the
// single-frame-in, single-result-out contract of spec.md §4.4.
package parser

import (
	"github.com/sirupsen/logrus"

	"remoteid/internal/asdstan"
	"remoteid/internal/astm"
	"remoteid/internal/envelope"
	"remoteid/internal/metrics"
	"remoteid/internal/model"
	"remoteid/internal/session"
)

type decodeFunc func([]byte, *model.UAVObject) error

func wrapASTM(data []byte, uav *model.UAVObject) error {
	_, err := astm.Decode(data, uav)
	return err
}

func wrapASDSTAN(data []byte, uav *model.UAVObject) error {
	_, err := asdstan.Decode(data, uav)
	return err
}

// wrapCN is the reserved GB/T decoder slot (spec.md §1): the specification
// is not publicly available, so enabling it always reports a decode
// failure rather than silently no-opping.
func wrapCN(data []byte, uav *model.UAVObject) error {
	return model.NewDecodeError(model.ErrorKindUnknownMessageType, "CN-RID decoder not implemented", nil)
}

type protocolEntry struct {
	protocol model.Protocol
	decode   decodeFunc
}

// Parser applies the fixed protocol priority order of spec.md §4.4 — ASTM,
// then ASD-STAN, then the reserved CN-RID slot — and forwards successfully
// decoded, identified UAVs to its session Manager.
type Parser struct {
	logger  *logrus.Logger
	cfg     model.ParserConfig
	Session *session.Manager

	metrics *metrics.Registry
}

// New constructs a Parser. A nil logger falls back to
// logrus.StandardLogger().
func New(cfg model.ParserConfig, logger *logrus.Logger) *Parser {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Parser{
		logger:  logger,
		cfg:     cfg,
		Session: session.New(cfg, logger),
	}
}

// SetMetrics attaches a Registry that Parse and Cleanup report into. A nil
// Registry (the default) disables instrumentation entirely.
func (p *Parser) SetMetrics(m *metrics.Registry) { p.metrics = m }

func (p *Parser) enabledProtocols() []protocolEntry {
	var out []protocolEntry
	if p.cfg.EnableASTM {
		out = append(out, protocolEntry{model.ProtocolASTMF3411, wrapASTM})
	}
	if p.cfg.EnableASD {
		out = append(out, protocolEntry{model.ProtocolASDSTAN, wrapASDSTAN})
	}
	if p.cfg.EnableCN {
		out = append(out, protocolEntry{model.ProtocolCNRID, wrapCN})
	}
	return out
}

func envelopeClassifiers(transport model.Transport) []struct {
	Transport model.Transport
	Classify  func([]byte) (envelope.Result, error)
} {
	if c := envelope.ClassifierFor(transport); c != nil {
		return []struct {
			Transport model.Transport
			Classify  func([]byte) (envelope.Result, error)
		}{{transport, c}}
	}
	return envelope.All()
}

// Parse implements spec.md §4.4's algorithm: empty payload short-circuits;
// for each enabled protocol, each candidate envelope classifier is tried in
// order; the first envelope match stops the search (decode success or
// failure both stop — envelope match is decisive even when decode fails).
func (p *Parser) Parse(frame model.RawFrame) model.ParseResult {
	if p.metrics != nil {
		p.metrics.ObserveFrame(frame.Transport)
		stop := p.metrics.NewDecodeTimer()
		defer stop()
	}

	if len(frame.Payload) == 0 {
		p.observeFailure(model.ErrorKindNotRemoteID)
		return model.ParseResult{Success: false, IsRemoteID: false, Error: "empty payload"}
	}

	for _, proto := range p.enabledProtocols() {
		for _, c := range envelopeClassifiers(frame.Transport) {
			res, err := c.Classify(frame.Payload)
			if err != nil {
				p.observeFailure(decodeErrorKind(err, model.ErrorKindInvalidEnvelope))
				return model.ParseResult{Success: false, IsRemoteID: true, Protocol: proto.protocol, Error: err.Error()}
			}
			if !res.Found {
				continue
			}

			transport := frame.Transport
			if transport == model.TransportUnknown {
				transport = c.Transport
			}
			if p.metrics != nil {
				p.metrics.ObserveEnvelopeMatch(transport)
			}

			uav := &model.UAVObject{
				RSSI:      frame.RSSI,
				Transport: transport,
				LastSeen:  frame.Timestamp,
			}

			if err := proto.decode(res.Payload, uav); err != nil {
				p.observeFailure(decodeErrorKind(err, model.ErrorKindFormatInvalid))
				return model.ParseResult{Success: false, IsRemoteID: true, Protocol: proto.protocol, Error: err.Error()}
			}
			if uav.Protocol == model.ProtocolUnknown {
				uav.Protocol = proto.protocol
			}

			if uav.ID != "" && p.cfg.EnableDeduplication {
				p.Session.Update(uav)
				if p.metrics != nil {
					p.metrics.SetUAVsTracked(p.Session.Count())
				}
			}
			return model.ParseResult{Success: true, IsRemoteID: true, Protocol: uav.Protocol, UAV: uav}
		}
	}

	p.observeFailure(model.ErrorKindUnknownMessageType)
	return model.ParseResult{Success: false, IsRemoteID: false, Error: "no matching protocol decoder"}
}

func (p *Parser) observeFailure(kind model.ErrorKind) {
	if p.metrics != nil {
		p.metrics.ObserveDecodeFailure(kind)
	}
}

// decodeErrorKind extracts the ErrorKind carried by a *model.DecodeError,
// falling back to fallback when err is some other error type.
func decodeErrorKind(err error, fallback model.ErrorKind) model.ErrorKind {
	if de, ok := err.(*model.DecodeError); ok {
		return de.Kind
	}
	return fallback
}

// Cleanup evicts UAVs that have exceeded the configured timeout, reporting
// the eviction count and updated tracked-UAV gauge, and returns their ids.
func (p *Parser) Cleanup() []string {
	expired := p.Session.Cleanup()
	if p.metrics != nil && len(expired) > 0 {
		p.metrics.ObserveUAVsExpired(len(expired))
		p.metrics.SetUAVsTracked(p.Session.Count())
	}
	return expired
}
