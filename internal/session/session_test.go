package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remoteid/internal/model"
)

func newUAV(id string, rssi int8) *model.UAVObject {
	return &model.UAVObject{ID: id, RSSI: rssi, MessageCount: 1}
}

func TestUpdateFiresOnNewOnce(t *testing.T) {
	m := New(model.DefaultParserConfig(), nil)
	var newCount, updateCount int
	m.SetOnNew(func(*model.UAVObject) { newCount++ })
	m.SetOnUpdate(func(*model.UAVObject) { updateCount++ })

	isNew := m.Update(newUAV("UAV1", -60))
	assert.True(t, isNew)
	assert.Equal(t, 1, newCount)
	assert.Equal(t, 0, updateCount)
}

func TestRepeatedIdenticalFramesFireOneNewThenUpdates(t *testing.T) {
	m := New(model.DefaultParserConfig(), nil)
	var newCount, updateCount int
	m.SetOnNew(func(*model.UAVObject) { newCount++ })
	m.SetOnUpdate(func(*model.UAVObject) { updateCount++ })

	const n = 5
	for i := 0; i < n; i++ {
		m.Update(newUAV("UAV1", -60))
	}
	assert.Equal(t, 1, newCount)
	assert.Equal(t, n-1, updateCount)

	uav, ok := m.GetUAV("UAV1")
	require.True(t, ok)
	assert.EqualValues(t, n, uav.MessageCount)
}

func TestUpdateRejectsEmptyID(t *testing.T) {
	m := New(model.DefaultParserConfig(), nil)
	isNew := m.Update(&model.UAVObject{ID: ""})
	assert.False(t, isNew)
	assert.Equal(t, 0, m.Count())
}

func TestUpdateNeverReplacesValidWithInvalid(t *testing.T) {
	m := New(model.DefaultParserConfig(), nil)
	first := newUAV("UAV1", -60)
	first.Location = model.LocationVector{Valid: true, Latitude: 1, Longitude: 2}
	m.Update(first)

	second := newUAV("UAV1", -61)
	second.Location = model.LocationVector{Valid: false}
	m.Update(second)

	uav, _ := m.GetUAV("UAV1")
	require.True(t, uav.Location.Valid)
	assert.Equal(t, 1.0, uav.Location.Latitude)
	assert.EqualValues(t, -61, uav.RSSI) // rssi always refreshes
}

func TestUpdateOverwritesAuthDataOnlyWhenNonEmpty(t *testing.T) {
	m := New(model.DefaultParserConfig(), nil)
	first := newUAV("UAV1", -60)
	first.AuthData = []byte{1, 2, 3}
	m.Update(first)

	second := newUAV("UAV1", -60)
	second.AuthData = nil
	m.Update(second)

	uav, _ := m.GetUAV("UAV1")
	assert.Equal(t, []byte{1, 2, 3}, uav.AuthData)
}

func TestGetActiveUAVsSortedByLastSeenDescending(t *testing.T) {
	m := New(model.DefaultParserConfig(), nil)
	m.Update(newUAV("UAV1", -60))
	m.Update(newUAV("UAV2", -60))
	m.Update(newUAV("UAV1", -60)) // re-touch UAV1 so it becomes most recent

	active := m.GetActiveUAVs()
	require.Len(t, active, 2)
	assert.Equal(t, "UAV1", active[0].ID)
}

func TestCleanupFiresOnTimeoutAndReturnsIDs(t *testing.T) {
	cfg := model.DefaultParserConfig()
	cfg.UAVTimeoutMs = 0 // everything is immediately stale
	m := New(cfg, nil)
	var timedOut []string
	m.SetOnTimeout(func(u *model.UAVObject) { timedOut = append(timedOut, u.ID) })

	m.Update(newUAV("UAV1", -60))
	expired := m.Cleanup()

	assert.Equal(t, []string{"UAV1"}, expired)
	assert.Equal(t, []string{"UAV1"}, timedOut)
	assert.Equal(t, 0, m.Count())
}

func TestCleanupDoesNotFireBeforeExpiry(t *testing.T) {
	cfg := model.DefaultParserConfig()
	cfg.UAVTimeoutMs = 30_000
	m := New(cfg, nil)
	var timedOut int
	m.SetOnTimeout(func(*model.UAVObject) { timedOut++ })

	m.Update(newUAV("UAV1", -60))
	expired := m.Cleanup()

	assert.Empty(t, expired)
	assert.Equal(t, 0, timedOut)
	assert.Equal(t, 1, m.Count())
}

func TestClearRemovesEverythingWithoutEvents(t *testing.T) {
	m := New(model.DefaultParserConfig(), nil)
	var fired bool
	m.SetOnTimeout(func(*model.UAVObject) { fired = true })

	m.Update(newUAV("UAV1", -60))
	m.Clear()

	assert.Equal(t, 0, m.Count())
	assert.False(t, fired)
}

func TestNonRemoteIDFrameNeverTouchesManager(t *testing.T) {
	m := New(model.DefaultParserConfig(), nil)
	before := m.Count()
	// a ParseResult with IsRemoteID=false never reaches Update at all; this
	// test documents that contract at the Manager boundary: no call, no
	// state change.
	assert.Equal(t, before, m.Count())
}
