package gattc

import (
	"time"
)

// PeripheralOption is implemented by the peripheral to accept
// configuration options.
type PeripheralOption interface {
	SetConnectTimeout(time.Duration) error
	SetCancelGraceDelay(time.Duration) error
	SetBondSettleDelay(time.Duration) error
	SetQueueDepth(int) error
	SetMaxAttempts(int) error
	SetAutoConnect(bool) error
	SetAutoBond(bool) error
	SetPlatformInfo(PlatformInfo) error
	SetSignedWriteKey(csrk []byte) error
	SetGattCache(GattCache) error
	SetBondWatcher(BondWatcher) error
}

// An Option is a configuration function, which configures the peripheral.
type Option func(PeripheralOption) error

// OptConnectTimeout overrides the connection watchdog timeout.
func OptConnectTimeout(d time.Duration) Option {
	return func(opt PeripheralOption) error {
		return opt.SetConnectTimeout(d)
	}
}

// OptCancelGraceDelay overrides the delay after which a cancelled connect
// synthesizes its disconnected event.
func OptCancelGraceDelay(d time.Duration) Option {
	return func(opt PeripheralOption) error {
		return opt.SetCancelGraceDelay(d)
	}
}

// OptBondSettleDelay overrides the delay between a bond loss and the
// connect-failure report, giving the stack time to drop its bond cache.
func OptBondSettleDelay(d time.Duration) Option {
	return func(opt PeripheralOption) error {
		return opt.SetBondSettleDelay(d)
	}
}

// OptQueueDepth bounds the number of pending commands.
func OptQueueDepth(n int) Option {
	return func(opt PeripheralOption) error {
		return opt.SetQueueDepth(n)
	}
}

// OptMaxAttempts bounds how often a congested command is retried.
func OptMaxAttempts(n int) Option {
	return func(opt PeripheralOption) error {
		return opt.SetMaxAttempts(n)
	}
}

// OptAutoConnect makes connect attempts use the background auto-connect
// path instead of a direct attempt.
func OptAutoConnect(auto bool) Option {
	return func(opt PeripheralOption) error {
		return opt.SetAutoConnect(auto)
	}
}

// OptAutoBond bonds automatically before the first GATT operation when
// the device requires it.
func OptAutoBond(auto bool) Option {
	return func(opt PeripheralOption) error {
		return opt.SetAutoBond(auto)
	}
}

// OptPlatformInfo supplies host stack details for strategy selection and
// timeout classification.
func OptPlatformInfo(pi PlatformInfo) Option {
	return func(opt PeripheralOption) error {
		return opt.SetPlatformInfo(pi)
	}
}

// OptSignedWriteKey supplies the CSRK for signed writes.
func OptSignedWriteKey(csrk []byte) Option {
	return func(opt PeripheralOption) error {
		return opt.SetSignedWriteKey(csrk)
	}
}

// OptGattCache persists discovered profiles in the given cache.
func OptGattCache(c GattCache) Option {
	return func(opt PeripheralOption) error {
		return opt.SetGattCache(c)
	}
}

// OptBondWatcher subscribes to OS bonding events for the device.
func OptBondWatcher(w BondWatcher) Option {
	return func(opt PeripheralOption) error {
		return opt.SetBondWatcher(w)
	}
}
