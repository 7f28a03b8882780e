// Package notify fans a payload-free wake signal out to the other live
// connections of a family after a committed push.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Waker is one live connection that can receive a wake signal. Wake must not
// block; slow receivers coalesce or drop their signal.
type Waker interface {
	DeviceID() string
	Wake()
}

// Hub tracks live connections per family and debounces non-important wakes:
// a burst of small pushes within the coalescing window produces one signal.
// Important wakes bypass the debounce and fire immediately.
type Hub struct {
	log    *zap.Logger
	window time.Duration

	mu       sync.Mutex
	families map[string]*familyState
}

type familyState struct {
	conns         map[Waker]struct{}
	timer         *time.Timer
	pendingSource string
}

// NewHub constructs a hub with the given coalescing window.
func NewHub(log *zap.Logger, window time.Duration) *Hub {
	if window <= 0 {
		window = time.Second
	}
	return &Hub{log: log, window: window, families: map[string]*familyState{}}
}

// Register adds a live connection of a family.
func (h *Hub) Register(familyID string, w Waker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.families[familyID]
	if !ok {
		st = &familyState{conns: map[Waker]struct{}{}}
		h.families[familyID] = st
	}
	st.conns[w] = struct{}{}
}

// Unregister removes a connection; the family entry is dropped once it has
// neither connections nor a pending wake.
func (h *Hub) Unregister(familyID string, w Waker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.families[familyID]
	if !ok {
		return
	}
	delete(st.conns, w)
	if len(st.conns) == 0 && st.timer == nil {
		delete(h.families, familyID)
	}
}

// NotifyFamily schedules a wake for every other live connection of the family.
// The wake carries no data; recipients pull the diff themselves.
func (h *Hub) NotifyFamily(familyID, sourceDeviceID string, important bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, ok := h.families[familyID]
	if !ok {
		if !important {
			// still start the window so connections appearing within it get woken
			st = &familyState{conns: map[Waker]struct{}{}}
			h.families[familyID] = st
		} else {
			return
		}
	}

	if important {
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
		h.deliverLocked(familyID, st, sourceDeviceID)
		return
	}

	// restartable debounce: a new notification extends/replaces the pending
	// wake instead of stacking deliveries
	st.pendingSource = sourceDeviceID
	if st.timer != nil {
		st.timer.Reset(h.window)
		return
	}
	st.timer = time.AfterFunc(h.window, func() { h.flush(familyID) })
}

func (h *Hub) flush(familyID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.families[familyID]
	if !ok {
		return
	}
	st.timer = nil
	h.deliverLocked(familyID, st, st.pendingSource)
	if len(st.conns) == 0 {
		delete(h.families, familyID)
	}
}

func (h *Hub) deliverLocked(familyID string, st *familyState, sourceDeviceID string) {
	delivered := 0
	for w := range st.conns {
		if w.DeviceID() == sourceDeviceID {
			continue
		}
		w.Wake()
		delivered++
	}
	if delivered > 0 {
		h.log.Debug("fan-out",
			zap.String("familyId", familyID),
			zap.Int("connections", delivered),
		)
	}
}
