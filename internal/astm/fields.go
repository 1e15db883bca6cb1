package astm

import (
	"math"
	"time"

	"remoteid/internal/model"
)

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// decodeAltitude maps a raw 16-bit wire value to meters: step 0.5m, offset
// -1000m, with raw=0 reserved to mean exactly 0m rather than -1000m (so a
// field that was never populated round-trips as 0, not as a bogus negative
// altitude). See spec.md §6.
func decodeAltitude(raw uint16) float32 {
	if raw == 0 {
		return 0
	}
	return float32(float64(raw)*0.5 - 1000)
}

// encodeAltitude is the inverse of decodeAltitude, used by this package's
// round-trip tests.
func encodeAltitude(meters float32) uint16 {
	if meters == 0 {
		return 0
	}
	return uint16((float64(meters) + 1000) / 0.5)
}

// decodeBasicID fills id/id-type/uav-type from a type-0x0 message.
func decodeBasicID(data []byte, uav *model.UAVObject) {
	uav.IDType = model.IDType(data[1] >> 4)
	uav.Type = model.UAVType(data[1] & 0x0F)
	uav.ID = model.TrimASCIIField(data[2:22])
}

// decodeLocation fills the LocationVector from a type-0x1 message.
//
// Byte 1's exact bit layout (status nibble vs. height-reference bit vs.
// speed-multiplier bit) is flagged in spec.md §9 as an open question to be
// resolved against a real transmitter; this decoder uses status in bits
// 7-4, height-reference in bit 2, and speed-multiplier in bit 0.
func decodeLocation(data []byte, uav *model.UAVObject) {
	loc := &uav.Location
	loc.Valid = true

	b1 := data[1]
	loc.Status = model.OperationalStatus(b1 >> 4)
	if (b1>>2)&0x1 != 0 {
		loc.HeightReference = model.HeightReferenceGround
	} else {
		loc.HeightReference = model.HeightReferenceTakeoff
	}
	speedMultiplier := b1 & 0x1

	direction := float64(data[2])
	if direction > 360 {
		loc.TrackDirection = model.QuietNaN
	} else {
		loc.TrackDirection = direction
	}

	hSpeedRaw := data[3]
	switch {
	case hSpeedRaw == 255:
		loc.HorizontalSpeed = model.QuietNaN
	case speedMultiplier == 0:
		loc.HorizontalSpeed = float64(hSpeedRaw) * 0.25
	default:
		loc.HorizontalSpeed = 255*0.25 + float64(hSpeedRaw)*0.75
	}

	vSpeedRaw := data[4]
	if vSpeedRaw == 63 {
		loc.VerticalSpeed = model.QuietNaN
	} else {
		loc.VerticalSpeed = float64(int8(vSpeedRaw)) * 0.5
	}

	loc.Latitude = float64(int32(le32(data[5:9]))) * 1e-7
	loc.Longitude = float64(int32(le32(data[9:13]))) * 1e-7

	loc.BarometricAltitude = decodeAltitude(le16(data[13:15]))
	loc.GeodeticAltitude = decodeAltitude(le16(data[15:17]))
	loc.HeightAboveReference = decodeAltitude(le16(data[17:19]))

	loc.HorizontalAccuracy = model.AccuracyLevel(data[19] >> 4)
	loc.VerticalAccuracy = model.AccuracyLevel(data[19] & 0x0F)
	loc.SpeedAccuracy = model.AccuracyLevel(data[20] & 0x0F)

	loc.TimestampTenthsOfSecond = le16(data[21:23])
}

// decodeAuthentication captures bytes 1..24 verbatim; per spec.md §1 and
// §7 this module never validates the authentication contents.
func decodeAuthentication(data []byte, uav *model.UAVObject) {
	auth := make([]byte, 24)
	copy(auth, data[1:25])
	uav.AuthData = auth
}

func decodeSelfID(data []byte, uav *model.UAVObject) {
	uav.SelfID.Valid = true
	uav.SelfID.DescriptionType = data[1]
	uav.SelfID.Description = model.TrimASCIIField(data[2:25])
}

func decodeSystem(data []byte, uav *model.UAVObject) {
	sys := &uav.System
	sys.Valid = true

	sys.OperatorLocationType = model.OperatorLocationType((data[1] >> 4) & 0x3)
	sys.OperatorLatitude = float64(int32(le32(data[2:6]))) * 1e-7
	sys.OperatorLongitude = float64(int32(le32(data[6:10]))) * 1e-7
	sys.AreaCount = le16(data[10:12])
	sys.AreaRadius = float32(data[12]) * 10
	sys.AreaCeiling = decodeAltitude(le16(data[13:15]))
	sys.AreaFloor = decodeAltitude(le16(data[15:17]))

	ts := le32(data[17:21])
	sys.Timestamp = time.Unix(int64(ts), 0).UTC()
}

func decodeOperatorID(data []byte, uav *model.UAVObject) {
	uav.OperatorID.Valid = true
	uav.OperatorID.IDType = data[1]
	uav.OperatorID.ID = model.TrimASCIIField(data[2:22])
}

// IsInvalidReading reports whether f is the decoded "unknown" sentinel.
func IsInvalidReading(f float64) bool {
	return math.IsNaN(f)
}
