// Package envelope locates the Remote-ID payload inside a transport-specific
// radio envelope: a Bluetooth legacy or extended advertisement, a Wi-Fi
// beacon/probe-response/action frame, or a Wi-Fi NAN service-discovery
// frame. It never interprets the Remote-ID bytes themselves — that is the
// message decoder's job (internal/astm) — it only strips the envelope and
// hands back what should be one or more concatenated 25-byte messages.
//
// This mirrors the framing role the teacher's internal/beast.Decoder plays
// for Beast-mode Mode S frames: find the sync marker, validate the fixed
// header, hand the payload upward.
package envelope

import (
	"bytes"

	"remoteid/internal/model"
)

// Remote-ID wire constants, per spec.md §6.
const (
	ADTypeServiceData16 = 0x16
	ServiceUUIDLo        = 0xFA // UUID 0xFFFA, little-endian on the wire
	ServiceUUIDHi        = 0xFF

	VendorIEID   = 221
	VendorTypeID = 0x0D

	dot11HeaderLen = 24

	dot11TypeManagement       = 0x0
	dot11SubtypeBeacon        = 0x8
	dot11SubtypeProbeResponse = 0x5
	dot11SubtypeAction        = 0xD
)

// ASTMOUI is the three-byte ASTM organization identifier used in the Wi-Fi
// vendor-specific information element and in NAN service discovery frames.
var ASTMOUI = [3]byte{0xFA, 0x0B, 0xBC}

// NANServiceID is the 6-byte NAN service id (a SHA-256 prefix of the agreed
// Remote-ID service name).
var NANServiceID = [6]byte{0x88, 0x69, 0x19, 0x9D, 0x92, 0x09}

// Result is the outcome of a single envelope classifier. Found reports
// whether this transport's envelope matched at all; Payload is the bytes
// that follow the envelope (possibly empty or shorter than one full
// message — the message decoder reports that as a truncation failure).
type Result struct {
	Found   bool
	Payload []byte
}

// ExtractBTLegacy scans a Bluetooth legacy advertisement's AD structure
// list for a Service Data (0x16) AD with UUID 0xFFFA. Per spec.md §4.2 the
// loop must tolerate zero-length AD structures and out-of-bound lengths by
// terminating rather than erroring, and must refuse any AD whose declared
// length would make the post-UUID payload negative.
func ExtractBTLegacy(payload []byte) (Result, error) {
	i := 0
	for i < len(payload) {
		length := int(payload[i])
		if length == 0 {
			break // zero-length AD structure: terminate the scan
		}
		end := i + 1 + length
		if end > len(payload) {
			break // declared length runs past the buffer: terminate the scan
		}
		adType := payload[i+1]
		adBytes := payload[i+2 : end] // length-1 bytes

		if adType == ADTypeServiceData16 && len(adBytes) >= 2 &&
			adBytes[0] == ServiceUUIDLo && adBytes[1] == ServiceUUIDHi {
			rest := adBytes[2:]
			if len(rest) < 1 {
				return Result{Found: true, Payload: nil}, nil
			}
			return Result{Found: true, Payload: rest[1:]}, nil // skip the message counter byte
		}
		i = end
	}
	return Result{Found: false}, nil
}

// ExtractBTExtended performs a looser scan for the {0x16, 0xFFFA, ...}
// tuple anywhere in a BT5 extended-advertising payload, since extended
// advertising allows the AD structure to be split across chained PDUs that
// this module receives already reassembled by the radio layer. The first
// match is used.
func ExtractBTExtended(payload []byte) (Result, error) {
	for i := 0; i+3 <= len(payload); i++ {
		if payload[i] == ADTypeServiceData16 && payload[i+1] == ServiceUUIDLo && payload[i+2] == ServiceUUIDHi {
			rest := payload[i+3:]
			if len(rest) < 1 {
				return Result{Found: true, Payload: nil}, nil
			}
			return Result{Found: true, Payload: rest[1:]}, nil
		}
	}
	return Result{Found: false}, nil
}

// ExtractWiFiBeacon parses the fixed 24-byte 802.11 management-frame header,
// verifies frame type/subtype, then walks the information-element list for
// the ASTM vendor-specific IE (id 221, OUI FA:0B:BC, vendor type 0x0D).
func ExtractWiFiBeacon(payload []byte) (Result, error) {
	if len(payload) < dot11HeaderLen {
		return Result{Found: false}, nil
	}

	frameControl := payload[0]
	frameType := (frameControl >> 2) & 0x3
	subtype := (frameControl >> 4) & 0xF

	if frameType != dot11TypeManagement {
		return Result{Found: false}, nil
	}
	switch subtype {
	case dot11SubtypeBeacon, dot11SubtypeProbeResponse, dot11SubtypeAction:
	default:
		return Result{Found: false}, nil
	}

	ies := payload[dot11HeaderLen:]
	i := 0
	for i+2 <= len(ies) {
		id := ies[i]
		length := int(ies[i+1])
		end := i + 2 + length
		if end > len(ies) {
			return Result{}, model.NewDecodeError(model.ErrorKindInvalidEnvelope, "vendor IE length overruns frame", nil)
		}
		if id == VendorIEID {
			ie := ies[i+2 : end]
			if len(ie) >= 4 && ie[0] == ASTMOUI[0] && ie[1] == ASTMOUI[1] && ie[2] == ASTMOUI[2] && ie[3] == VendorTypeID {
				return Result{Found: true, Payload: ie[4:]}, nil
			}
		}
		i = end
	}
	return Result{Found: false}, nil
}

// ExtractWiFiNAN scans a NAN service-discovery frame payload for either the
// 6-byte Remote-ID NAN service id or the ASTM OUI + vendor type tuple.
func ExtractWiFiNAN(payload []byte) (Result, error) {
	for i := 0; i+6 <= len(payload); i++ {
		if bytes.Equal(payload[i:i+6], NANServiceID[:]) {
			return Result{Found: true, Payload: payload[i+6:]}, nil
		}
	}
	for i := 0; i+4 <= len(payload); i++ {
		if payload[i] == ASTMOUI[0] && payload[i+1] == ASTMOUI[1] && payload[i+2] == ASTMOUI[2] && payload[i+3] == VendorTypeID {
			return Result{Found: true, Payload: payload[i+4:]}, nil
		}
	}
	return Result{Found: false}, nil
}

// ClassifierFor returns the envelope classifier appropriate for the
// receiver-tagged transport, or nil if the transport is unknown (in which
// case the caller should try every classifier).
func ClassifierFor(t model.Transport) func([]byte) (Result, error) {
	switch t {
	case model.TransportBTLegacy:
		return ExtractBTLegacy
	case model.TransportBTExtended:
		return ExtractBTExtended
	case model.TransportWiFiBeacon:
		return ExtractWiFiBeacon
	case model.TransportWiFiNAN:
		return ExtractWiFiNAN
	default:
		return nil
	}
}

// All returns every classifier paired with the transport it identifies, in
// the order the parser façade should try them when the receiver did not tag
// a transport.
func All() []struct {
	Transport model.Transport
	Classify  func([]byte) (Result, error)
} {
	return []struct {
		Transport model.Transport
		Classify  func([]byte) (Result, error)
	}{
		{model.TransportBTLegacy, ExtractBTLegacy},
		{model.TransportBTExtended, ExtractBTExtended},
		{model.TransportWiFiBeacon, ExtractWiFiBeacon},
		{model.TransportWiFiNAN, ExtractWiFiNAN},
	}
}
