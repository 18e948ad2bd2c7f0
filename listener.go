package gattc

// ConnectionListener is implemented by the collaborator owning a
// peripheral. Connected fires only after service discovery finishes, not
// at the raw link-up event; a peripheral is not usable before its
// attribute catalog is known.
type ConnectionListener interface {
	Connected()
	ConnectFailed(status GattStatus)
	Disconnected(status GattStatus)

	// PinRequested is queried when the stack asks for a pairing PIN.
	// Return "" to reject the pairing.
	PinRequested() string
}

// BondObserver receives bonding lifecycle events. Listeners that care
// implement it in addition to ConnectionListener; the peripheral
// type-asserts for it.
type BondObserver interface {
	BondingStarted()
	BondingSucceeded()
	BondingFailed()
	BondLost()
}

// NotifyHandler receives notification and indication values for a
// subscribed characteristic.
type NotifyHandler func(value []byte)

// NopListener is a ConnectionListener and BondObserver with no-op
// methods, for embedding when only some events matter.
type NopListener struct{}

func (NopListener) Connected()                  {}
func (NopListener) ConnectFailed(GattStatus)    {}
func (NopListener) Disconnected(GattStatus)     {}
func (NopListener) PinRequested() string        { return "" }
func (NopListener) BondingStarted()             {}
func (NopListener) BondingSucceeded()           {}
func (NopListener) BondingFailed()              {}
func (NopListener) BondLost()                   {}
