package canopen

import (
	"log/slog"
	"sync"
)

type receiverKey struct {
	id       uint32
	extended bool
}

type subscription struct {
	id       uint64
	mask     uint32
	listener FrameListener
}

// BusManager multiplexes a single Bus among every protocol service that
// needs to send or receive CAN frames. It is the component that component A
// of the network abstraction: a frame arriving from the driver is looked up
// by (CAN-ID, extended-flag) and fanned out to every matching receiver, most
// recently registered first. It also embeds a cooperative Clock, which fires
// the timers created through Clock.NewTimer; the protocol services in this
// module do not register timers on it and use time.AfterFunc instead.
type BusManager struct {
	*Clock

	logger *slog.Logger
	mu     sync.Mutex
	bus    Bus

	listeners map[receiverKey][]subscription
	nextSubId uint64
	canError  uint16
}

// NewBusManager wraps bus with dispatch and scheduling. If bus is nil the
// manager can still be used to register receivers and advance its clock
// (useful in tests); Send will fail with ErrInvalidState until SetBus is
// called.
func NewBusManager(bus Bus) *BusManager {
	return &BusManager{
		Clock:     NewClock(0),
		logger:    slog.Default(),
		bus:       bus,
		listeners: make(map[receiverKey][]subscription),
	}
}

// SetLogger overrides the default logger.
func (bm *BusManager) SetLogger(logger *slog.Logger) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.logger = logger
}

// SetBus installs (or replaces) the driver.
func (bm *BusManager) SetBus(bus Bus) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.bus = bus
}

// Bus returns the currently installed driver.
func (bm *BusManager) Bus() Bus {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.bus
}

// Handle implements FrameListener: it is the frame-ingress surface of the
// network abstraction (deliver(frame) in the specification's terms). It
// consults the receiver index and invokes every matching receiver in LIFO
// registration order. A receiver callback is free to mutate the receiver
// list (start/stop other receivers) or advance the clock; Handle snapshots
// the matching list before invoking callbacks so such mutation never
// corrupts an in-progress delivery.
func (bm *BusManager) Handle(frame Frame) {
	extended := frame.Flags&FlagExtended != 0

	bm.mu.Lock()
	subs := bm.listeners[receiverKey{id: frame.ID, extended: extended}]
	snapshot := make([]subscription, len(subs))
	copy(snapshot, subs)
	bm.mu.Unlock()

	for _, sub := range snapshot {
		sub.listener.Handle(frame)
	}
}

// Subscribe registers listener to receive every frame whose identifier equals
// ident exactly, on the given extended-ness. mask is stored with the
// subscription but is not applied when matching. It returns a cancel function
// that removes the subscription; calling cancel more than once is a no-op.
//
// Receivers for the same key are dispatched most-recently-registered-first:
// Subscribe prepends, never appends.
func (bm *BusManager) Subscribe(ident uint32, mask uint32, extended bool, listener FrameListener) (func(), error) {
	if listener == nil {
		return nil, ErrIllegalArgument
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()

	bm.nextSubId++
	subId := bm.nextSubId
	key := receiverKey{id: ident, extended: extended}

	existing := bm.listeners[key]
	updated := make([]subscription, 0, len(existing)+1)
	updated = append(updated, subscription{id: subId, mask: mask, listener: listener})
	updated = append(updated, existing...)
	bm.listeners[key] = updated

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			bm.mu.Lock()
			defer bm.mu.Unlock()
			subs := bm.listeners[key]
			for i, sub := range subs {
				if sub.id == subId {
					bm.listeners[key] = append(subs[:i:i], subs[i+1:]...)
					return
				}
			}
		})
	}
	return cancel, nil
}

// Send delegates to the installed driver with no buffering: any queueing is
// the driver's responsibility.
func (bm *BusManager) Send(frame Frame) error {
	bm.mu.Lock()
	bus := bm.bus
	logger := bm.logger
	bm.mu.Unlock()

	if bus == nil {
		return ErrInvalidState
	}
	err := bus.Send(frame)
	if err != nil {
		logger.Warn("error sending frame", "id", frame.ID, "err", err)
	}
	return err
}

// Error returns the last observed CAN controller error bitfield (see the
// CanError* constants in pkg/can).
func (bm *BusManager) Error() uint16 {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.canError
}

// SetError records the CAN controller error bitfield; called by a bus
// driver that surfaces controller state.
func (bm *BusManager) SetError(canError uint16) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.canError = canError
}
