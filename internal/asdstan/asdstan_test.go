package asdstan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remoteid/internal/astm"
	"remoteid/internal/model"
)

func newSystemMessage() []byte {
	msg := make([]byte, astm.MessageLength)
	msg[0] = byte(astm.MessageTypeSystem) << 4
	return msg
}

func TestDecodeRetagsProtocol(t *testing.T) {
	msg := make([]byte, astm.MessageLength)
	msg[0] = byte(astm.MessageTypeBasicID) << 4
	copy(msg[2:22], []byte("EUUAV00000000000000000"))

	uav := &model.UAVObject{}
	_, err := Decode(msg, uav)
	require.NoError(t, err)
	assert.Equal(t, model.ProtocolASDSTAN, uav.Protocol)
}

func TestDecodeSystemExtensionBits(t *testing.T) {
	msg := newSystemMessage()
	// classification=specific in bits 6-7, category class C3 in bits 3-5
	msg[21] = byte(model.EUClassSpecific)<<6 | byte(model.EUCategoryC3)<<3
	// geo-awareness + remote-pilot-id both set
	msg[22] = 0x3

	uav := &model.UAVObject{}
	_, err := Decode(msg, uav)
	require.NoError(t, err)
	assert.Equal(t, model.EUClassSpecific, uav.System.EUClassification)
	assert.Equal(t, model.EUCategoryC3, uav.System.EUCategoryClass)
	assert.True(t, uav.System.GeoAwareness)
	assert.True(t, uav.System.RemotePilotID)
}

func TestValidateEUOperatorIDSeparatorForm(t *testing.T) {
	msg := make([]byte, astm.MessageLength)
	msg[0] = byte(astm.MessageTypeOperatorID) << 4
	msg[1] = 1
	copy(msg[2:22], []byte("FRA-OP-12345678\x00\x00\x00\x00\x00"))

	uav := &model.UAVObject{}
	_, err := Decode(msg, uav)
	require.NoError(t, err)
	assert.True(t, uav.OperatorID.FormatValid)
	assert.Equal(t, "FRA", uav.OperatorID.CountryCode)
}

func TestValidateEUOperatorIDCompactForm(t *testing.T) {
	msg := make([]byte, astm.MessageLength)
	msg[0] = byte(astm.MessageTypeOperatorID) << 4
	msg[1] = 1
	copy(msg[2:22], []byte("DEUOP12345678\x00\x00\x00\x00\x00\x00\x00"))

	uav := &model.UAVObject{}
	_, err := Decode(msg, uav)
	require.NoError(t, err)
	assert.True(t, uav.OperatorID.FormatValid)
	assert.Equal(t, "DEU", uav.OperatorID.CountryCode)
}

func TestValidateEUOperatorIDUnknownCountryLeavesFormatInvalid(t *testing.T) {
	msg := make([]byte, astm.MessageLength)
	msg[0] = byte(astm.MessageTypeOperatorID) << 4
	msg[1] = 1
	copy(msg[2:22], []byte("ZZZ-OP-12345678\x00\x00\x00\x00\x00"))

	uav := &model.UAVObject{}
	_, err := Decode(msg, uav)
	require.NoError(t, err)
	assert.False(t, uav.OperatorID.FormatValid)
	assert.Empty(t, uav.OperatorID.CountryCode)
}

func TestValidateEUOperatorIDBadSeparatorForm(t *testing.T) {
	msg := make([]byte, astm.MessageLength)
	msg[0] = byte(astm.MessageTypeOperatorID) << 4
	msg[1] = 1
	copy(msg[2:22], []byte("FRA--12345678\x00\x00\x00\x00\x00\x00\x00"))

	uav := &model.UAVObject{}
	_, err := Decode(msg, uav)
	require.NoError(t, err)
	assert.False(t, uav.OperatorID.FormatValid)
}

func TestDecodePropagatesUnderlyingDecodeFailure(t *testing.T) {
	uav := &model.UAVObject{}
	_, err := Decode(make([]byte, 10), uav)
	require.Error(t, err)
	var de *model.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, model.ErrorKindTruncated, de.Kind)
	assert.Equal(t, model.ProtocolUnknown, uav.Protocol)
}
