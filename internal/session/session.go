// Package session merges successive Remote-ID messages from the same
// aircraft into one live UAVObject, deduplicating by identity, expiring
// stale entries, and firing lifecycle events. The keyed map of live
// records and its merge policy follow the reference implementation's
// SessionManager::update (src/core/session_manager.cpp).
package session

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"remoteid/internal/model"
)

// Callback is fired synchronously on the calling goroutine with a snapshot
// of the affected UAVObject. A nil Callback means "do not notify".
type Callback func(*model.UAVObject)

// Manager is a keyed mapping from UAV id to its current aggregated state.
// Unlike the teacher's mutex-guarded aircraft map (internal/adsb/processor.go),
// this Manager is not internally synchronized: callers own serializing every
// call to a single instance themselves, and callbacks fire synchronously on
// the calling goroutine before the call returns.
type Manager struct {
	logger *logrus.Logger

	uavs    map[string]*model.UAVObject
	timeout time.Duration

	onNew     Callback
	onUpdate  Callback
	onTimeout Callback
}

// New constructs a Manager from a ParserConfig's timeout setting. A nil
// logger falls back to logrus.StandardLogger().
func New(cfg model.ParserConfig, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{
		logger:  logger,
		uavs:    make(map[string]*model.UAVObject),
		timeout: time.Duration(cfg.UAVTimeoutMs) * time.Millisecond,
	}
}

// SetOnNew registers the callback fired when Update installs a previously
// unseen id.
func (m *Manager) SetOnNew(cb Callback) { m.onNew = cb }

// SetOnUpdate registers the callback fired when Update merges into an
// existing id.
func (m *Manager) SetOnUpdate(cb Callback) { m.onUpdate = cb }

// SetOnTimeout registers the callback fired once per id removed by Cleanup.
func (m *Manager) SetOnTimeout(cb Callback) { m.onTimeout = cb }

// Update merges incoming into the stored record for incoming.ID, installing
// a copy of it if the id is new. In both cases the stored LastSeen is set to
// the current wall-clock time, which is what Cleanup measures the timeout
// against. It reports whether the id was new. Per
// spec.md §4.5, exactly one of on_new/on_update fires, after the merge,
// before Update returns.
func (m *Manager) Update(incoming *model.UAVObject) bool {
	if incoming == nil || incoming.ID == "" {
		return false
	}

	existing, found := m.uavs[incoming.ID]
	if !found {
		stored := incoming.Clone()
		stored.LastSeen = time.Now()
		m.uavs[incoming.ID] = stored
		m.logger.WithField("id", stored.ID).Debug("new UAV")
		if m.onNew != nil {
			m.onNew(stored.Clone())
		}
		return true
	}

	mergeInto(existing, incoming)
	existing.LastSeen = time.Now()
	existing.MessageCount++
	if m.onUpdate != nil {
		m.onUpdate(existing.Clone())
	}
	return false
}

// mergeInto overwrites existing's fields from incoming, refusing to replace
// a valid sub-record with an invalid one and only overwriting auth_data
// when incoming's is non-empty, per spec.md §4.5. IDType, Type, Protocol,
// and Transport are fixed at first sight and never touched again on
// merge — an id's identity and routing metadata do not change mid-session.
func mergeInto(existing, incoming *model.UAVObject) {
	existing.RSSI = incoming.RSSI
	if incoming.Location.Valid {
		existing.Location = incoming.Location
	}
	if incoming.System.Valid {
		existing.System = incoming.System
	}
	if incoming.SelfID.Valid {
		existing.SelfID = incoming.SelfID
	}
	if incoming.OperatorID.Valid {
		existing.OperatorID = incoming.OperatorID
	}
	if len(incoming.AuthData) > 0 {
		existing.AuthData = incoming.AuthData
	}
}

// GetActiveUAVs returns a snapshot of every tracked UAV, sorted by
// last-seen descending.
func (m *Manager) GetActiveUAVs() []*model.UAVObject {
	out := make([]*model.UAVObject, 0, len(m.uavs))
	for _, uav := range m.uavs {
		out = append(out, uav.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out
}

// GetUAV looks up a single tracked UAV by id.
func (m *Manager) GetUAV(id string) (*model.UAVObject, bool) {
	uav, ok := m.uavs[id]
	if !ok {
		return nil, false
	}
	return uav.Clone(), true
}

// Cleanup removes entries whose last-seen timestamp exceeds the configured
// timeout, firing on_timeout for each, and returns their ids.
func (m *Manager) Cleanup() []string {
	now := time.Now()
	var expired []string
	for id, uav := range m.uavs {
		if now.Sub(uav.LastSeen) > m.timeout {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		uav := m.uavs[id]
		delete(m.uavs, id)
		m.logger.WithField("id", id).Debug("UAV timed out")
		if m.onTimeout != nil {
			m.onTimeout(uav.Clone())
		}
	}
	return expired
}

// Clear removes every tracked UAV without firing any events.
func (m *Manager) Clear() {
	m.uavs = make(map[string]*model.UAVObject)
}

// Count returns the number of currently tracked UAVs.
func (m *Manager) Count() int {
	return len(m.uavs)
}
