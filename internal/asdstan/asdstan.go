// Package asdstan implements the ASD-STAN EN 4709-002 EU extension on top
// of the ASTM F3411 decoder (internal/astm): it decodes exactly the same
// wire format, then re-tags the result as EU, parses two EU-only extension
// bytes in the System message, and validates EU operator-id formatting.
package asdstan

import (
	"strings"

	"remoteid/internal/astm"
	"remoteid/internal/model"
)

// euCountryCodes is the ISO-3166-1 alpha-3 codes accepted as an EU
// operator-id prefix: the 27 EU member states plus the EEA/EFTA states and
// the UK, per spec.md §4.3. This set is a design intent, not finalized by
// the public specification (spec.md §9).
var euCountryCodes = map[string]bool{
	"AUT": true, "BEL": true, "BGR": true, "HRV": true, "CYP": true,
	"CZE": true, "DNK": true, "EST": true, "FIN": true, "FRA": true,
	"DEU": true, "GRC": true, "HUN": true, "IRL": true, "ITA": true,
	"LVA": true, "LTU": true, "LUX": true, "MLT": true, "NLD": true,
	"POL": true, "PRT": true, "ROU": true, "SVK": true, "SVN": true,
	"ESP": true, "SWE": true,
	"ISL": true, "LIE": true, "NOR": true, "CHE": true,
	"GBR": true,
}

// Decode delegates to astm.Decode, then applies the ASD-STAN extension: it
// re-tags uav.Protocol, parses the EU System-message extension bytes, and
// validates EU operator-id formatting. A decode failure from the underlying
// ASTM decoder propagates verbatim; no extension processing runs.
func Decode(data []byte, uav *model.UAVObject) (astm.MessageType, error) {
	mt, err := astm.Decode(data, uav)
	if err != nil {
		return mt, err
	}
	uav.Protocol = model.ProtocolASDSTAN

	switch mt {
	case astm.MessageTypeSystem:
		decodeEUSystemExtension(data, uav)
	case astm.MessageTypeOperatorID:
		validateEUOperatorID(uav)
	}

	return mt, nil
}

// decodeEUSystemExtension parses byte 21 bits 6-7 (classification) and bits
// 3-5 (category class), and byte 22 bit 0 (geo-awareness) and bit 1
// (remote-pilot-id), per spec.md §4.3. These bytes are reserved/unused in a
// plain ASTM System message.
func decodeEUSystemExtension(data []byte, uav *model.UAVObject) {
	b21 := data[21]
	b22 := data[22]

	uav.System.EUClassification = model.EUClassification((b21 >> 6) & 0x3)
	uav.System.EUCategoryClass = model.EUCategoryClass((b21 >> 3) & 0x7)
	uav.System.GeoAwareness = b22&0x1 != 0
	uav.System.RemotePilotID = b22&0x2 != 0
}

// validateEUOperatorID checks the decoded operator-id string against the
// EU format rules and records the outcome on uav.OperatorID rather than
// failing the decode, per spec.md §4.3.
func validateEUOperatorID(uav *model.UAVObject) {
	op := &uav.OperatorID
	if !op.Valid {
		return
	}

	id := op.ID
	if len(id) < 3 {
		return
	}
	countryCode := strings.ToUpper(id[:3])
	if !euCountryCodes[countryCode] {
		return
	}

	rest := id[3:]
	op.CountryCode = countryCode
	op.FormatValid = isValidOperatorIDSuffix(rest)
}

// isValidOperatorIDSuffix reports whether rest (the operator-id string with
// its country-code prefix removed) is either the "-XX-tail" separator form
// (exactly two separators, non-empty middle and tail) or a non-empty
// compact alphanumeric suffix.
func isValidOperatorIDSuffix(rest string) bool {
	if strings.HasPrefix(rest, "-") {
		parts := strings.Split(rest, "-")
		return len(parts) == 3 && parts[0] == "" && parts[1] != "" && parts[2] != ""
	}
	if rest == "" {
		return false
	}
	for _, r := range rest {
		if !isAlphanumeric(r) {
			return false
		}
	}
	return true
}

func isAlphanumeric(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}
