package sim

import (
	"sync"

	"github.com/rigado/gattc"
)

// BondWatcher is a simulated OS bonding event source. It tracks one bond
// state per device address and lets tests and demos drive transitions.
type BondWatcher struct {
	mu     sync.Mutex
	states map[string]gattc.BondState
	subs   map[string]chan gattc.BondEvent
	pins   map[string]string // expected pin per device, "" accepts any
}

func NewBondWatcher() *BondWatcher {
	return &BondWatcher{
		states: make(map[string]gattc.BondState),
		subs:   make(map[string]chan gattc.BondEvent),
		pins:   make(map[string]string),
	}
}

// Watch implements gattc.BondWatcher.
func (w *BondWatcher) Watch(a gattc.Addr) (<-chan gattc.BondEvent, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(chan gattc.BondEvent, 8)
	w.subs[a.String()] = ch
	return ch, nil
}

// Unwatch implements gattc.BondWatcher.
func (w *BondWatcher) Unwatch(a gattc.Addr) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ch, ok := w.subs[a.String()]; ok {
		delete(w.subs, a.String())
		close(ch)
	}
}

// State returns the bond state tracked for a device.
func (w *BondWatcher) State(a gattc.Addr) gattc.BondState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.states[a.String()]
}

// SetState transitions a device's bond state and notifies the
// subscriber, if any.
func (w *BondWatcher) SetState(a gattc.Addr, s gattc.BondState) {
	w.mu.Lock()
	prev := w.states[a.String()]
	w.states[a.String()] = s
	ch := w.subs[a.String()]
	w.mu.Unlock()

	if ch != nil && s != prev {
		ch <- gattc.BondEvent{Kind: gattc.BondStateChanged, State: s, Previous: prev}
	}
}

// RequestPairing emits a pairing-variant request for a device.
func (w *BondWatcher) RequestPairing(a gattc.Addr, v gattc.PairingVariant) {
	w.mu.Lock()
	ch := w.subs[a.String()]
	w.mu.Unlock()
	if ch != nil {
		ch <- gattc.BondEvent{Kind: gattc.PairingRequested, Variant: v}
	}
}

// beginBonding services a transport's CreateBond call.
func (w *BondWatcher) beginBonding(d *Device) {
	w.SetState(d.Addr, gattc.Bonding)
	if d.PinCode != "" {
		w.mu.Lock()
		w.pins[d.Addr.String()] = d.PinCode
		w.mu.Unlock()
		w.RequestPairing(d.Addr, gattc.PairingPin)
		return
	}
	w.SetState(d.Addr, gattc.Bonded)
}

// pinEntered checks a submitted pin and finishes or fails the bond.
func (w *BondWatcher) pinEntered(d *Device, pin string) {
	w.mu.Lock()
	want := w.pins[d.Addr.String()]
	w.mu.Unlock()

	if want == "" || pin == want {
		w.SetState(d.Addr, gattc.Bonded)
	} else {
		w.SetState(d.Addr, gattc.BondNone)
	}
}
