package gattc

// PairingVariant identifies what the stack needs from the user to finish
// pairing.
type PairingVariant int

const (
	PairingPin PairingVariant = iota
	PairingPasskey
	PairingConfirm
)

func (v PairingVariant) String() string {
	switch v {
	case PairingPin:
		return "pin"
	case PairingPasskey:
		return "passkey"
	case PairingConfirm:
		return "confirm"
	}
	return "unknown"
}

// BondEventKind discriminates the two event flavors a BondWatcher delivers.
type BondEventKind int

const (
	BondStateChanged BondEventKind = iota
	PairingRequested
)

// BondEvent is an OS bonding notification for a single device.
type BondEvent struct {
	Kind BondEventKind

	// State and Previous are set for BondStateChanged events.
	State    BondState
	Previous BondState

	// Variant is set for PairingRequested events.
	Variant PairingVariant
}

// BondWatcher is the OS bonding-event source. Watch subscribes to events
// for the given device address; the returned channel is closed by Unwatch.
// Events for other devices are filtered out by the watcher.
type BondWatcher interface {
	Watch(a Addr) (<-chan BondEvent, error)
	Unwatch(a Addr)
}
