// Package sim is an in-memory GATT stack: a simulated remote device, a
// transport factory and a bond watcher implementing the gattc
// interfaces. Events are delivered from a dedicated goroutine, the same
// way a real stack delivers callbacks from its own thread.
package sim

import (
	"sync"
	"time"

	"github.com/rigado/gattc"
)

// Device is a simulated remote peripheral.
type Device struct {
	Addr    gattc.Addr
	Name    string
	Profile *gattc.Profile

	// Latency delays every callback, mimicking radio round trips.
	Latency time.Duration
	// GrantedMTU answers MTU requests; 0 grants the requested value.
	GrantedMTU int
	// RSSI reported for RSSI reads.
	RSSI int
	// PinCode, when non-empty, makes bonding ask for a PIN first.
	PinCode string
	// FailConnect makes connection attempts end with the given status.
	FailConnect gattc.GattStatus

	mu     sync.Mutex
	values map[uint16][]byte
	txPhy  gattc.Phy
	rxPhy  gattc.Phy
	active *transport
}

// NewDevice creates a simulated device with the given catalog.
func NewDevice(a gattc.Addr, name string, profile *gattc.Profile) *Device {
	return &Device{
		Addr:    a,
		Name:    name,
		Profile: profile,
		RSSI:    -60,
		values:  make(map[uint16][]byte),
		txPhy:   gattc.Phy1M,
		rxPhy:   gattc.Phy1M,
	}
}

// SetValue seeds the value of an attribute handle.
func (d *Device) SetValue(handle uint16, value []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.values[handle] = append([]byte(nil), value...)
}

// Value returns the current value of an attribute handle.
func (d *Device) Value(handle uint16) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.values[handle]...)
}

// Factory creates transports connected to a single simulated device.
type Factory struct {
	Device  *Device
	Watcher *BondWatcher
}

// Create implements gattc.TransportFactory.
func (f *Factory) Create(a gattc.Addr, events gattc.TransportEvents) (gattc.Transport, error) {
	t := &transport{
		dev:     f.Device,
		watcher: f.Watcher,
		events:  events,
		queue:   make(chan func(), 64),
		done:    make(chan struct{}),
	}
	go t.deliver()
	return t, nil
}

// transport is one simulated connection. Callbacks run on the deliver
// goroutine in submission order.
type transport struct {
	dev     *Device
	watcher *BondWatcher
	events  gattc.TransportEvents

	mu        sync.Mutex
	connected bool
	notifying map[uint16]bool

	queue chan func()
	done  chan struct{}
	once  sync.Once
}

func (t *transport) deliver() {
	for {
		select {
		case f := <-t.queue:
			if t.dev.Latency > 0 {
				time.Sleep(t.dev.Latency)
			}
			f()
		case <-t.done:
			return
		}
	}
}

func (t *transport) emit(f func()) bool {
	select {
	case t.queue <- f:
		return true
	case <-t.done:
		return false
	}
}

func (t *transport) isConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *transport) Connect(auto bool) bool {
	if t.dev.FailConnect != gattc.StatusSuccess {
		return t.emit(func() {
			t.events.ConnectionStateChanged(t.dev.FailConnect, gattc.Disconnected)
		})
	}
	return t.emit(func() {
		t.mu.Lock()
		t.connected = true
		t.notifying = make(map[uint16]bool)
		t.mu.Unlock()
		t.dev.mu.Lock()
		t.dev.active = t
		t.dev.mu.Unlock()
		t.events.ConnectionStateChanged(gattc.StatusSuccess, gattc.Connected)
	})
}

func (t *transport) Disconnect() bool {
	return t.emit(func() {
		t.mu.Lock()
		was := t.connected
		t.connected = false
		t.mu.Unlock()
		t.dev.mu.Lock()
		if t.dev.active == t {
			t.dev.active = nil
		}
		t.dev.mu.Unlock()
		if was {
			t.events.ConnectionStateChanged(gattc.StatusSuccess, gattc.Disconnected)
		}
	})
}

func (t *transport) Close() {
	t.once.Do(func() { close(t.done) })
}

func (t *transport) DiscoverServices() bool {
	if !t.isConnected() {
		return false
	}
	return t.emit(func() {
		t.events.ServicesDiscovered(gattc.StatusSuccess, t.dev.Profile)
	})
}

func (t *transport) CancelDiscovery() {}

func (t *transport) ReadCharacteristic(valueHandle uint16) bool {
	if !t.isConnected() {
		return false
	}
	return t.emit(func() {
		t.events.CharacteristicRead(gattc.StatusSuccess, valueHandle, t.dev.Value(valueHandle))
	})
}

func (t *transport) WriteCharacteristic(valueHandle uint16, value []byte, mode gattc.WriteMode) bool {
	if !t.isConnected() {
		return false
	}
	return t.emit(func() {
		t.dev.SetValue(valueHandle, value)
		// Unacknowledged writes are confirmed locally by the stack, so
		// every mode produces a written callback.
		t.events.CharacteristicWritten(gattc.StatusSuccess, valueHandle)
	})
}

func (t *transport) ReadDescriptor(handle uint16) bool {
	if !t.isConnected() {
		return false
	}
	return t.emit(func() {
		t.events.DescriptorRead(gattc.StatusSuccess, handle, t.dev.Value(handle))
	})
}

func (t *transport) WriteDescriptor(handle uint16, value []byte) bool {
	if !t.isConnected() {
		return false
	}
	return t.emit(func() {
		t.dev.SetValue(handle, value)
		t.events.DescriptorWritten(gattc.StatusSuccess, handle)
	})
}

func (t *transport) SetNotify(valueHandle uint16, enable bool) bool {
	if !t.isConnected() {
		return false
	}
	return t.emit(func() {
		t.mu.Lock()
		t.notifying[valueHandle] = enable
		t.mu.Unlock()
		// The toggle lands as a CCCD write confirmation, like a stack
		// writing the descriptor under the hood.
		cccd := t.cccdFor(valueHandle)
		t.events.DescriptorWritten(gattc.StatusSuccess, cccd)
	})
}

func (t *transport) cccdFor(valueHandle uint16) uint16 {
	for _, s := range t.dev.Profile.Services {
		for _, c := range s.Characteristics {
			if c.ValueHandle != valueHandle {
				continue
			}
			if d := c.ClientCharacteristicConfig(); d != nil {
				return d.Handle
			}
		}
	}
	return 0
}

// Notify pushes a notification for a subscribed characteristic over the
// active connection.
func (d *Device) Notify(valueHandle uint16, value []byte) bool {
	d.mu.Lock()
	t := d.active
	d.mu.Unlock()
	if t == nil {
		return false
	}
	return t.notify(valueHandle, value)
}

func (t *transport) notify(valueHandle uint16, value []byte) bool {
	t.mu.Lock()
	on := t.notifying[valueHandle]
	t.mu.Unlock()
	if !on {
		return false
	}
	v := append([]byte(nil), value...)
	return t.emit(func() {
		t.events.CharacteristicChanged(valueHandle, v)
	})
}

func (t *transport) ReadRSSI() bool {
	if !t.isConnected() {
		return false
	}
	return t.emit(func() {
		t.events.RSSIRead(gattc.StatusSuccess, t.dev.RSSI)
	})
}

func (t *transport) RequestMTU(mtu int) bool {
	if !t.isConnected() {
		return false
	}
	granted := mtu
	if t.dev.GrantedMTU > 0 && t.dev.GrantedMTU < mtu {
		granted = t.dev.GrantedMTU
	}
	return t.emit(func() {
		t.events.MTUChanged(gattc.StatusSuccess, granted)
	})
}

func (t *transport) RequestConnectionPriority(p gattc.ConnectionPriority) bool {
	if !t.isConnected() {
		return false
	}
	return t.emit(func() {
		t.events.ConnectionUpdated(24, 0, 400)
	})
}

func (t *transport) ReadPhy() bool {
	if !t.isConnected() {
		return false
	}
	return t.emit(func() {
		t.dev.mu.Lock()
		tx, rx := t.dev.txPhy, t.dev.rxPhy
		t.dev.mu.Unlock()
		t.events.PhyRead(gattc.StatusSuccess, tx, rx)
	})
}

func (t *transport) SetPhy(tx, rx gattc.Phy, opts gattc.PhyOptions) bool {
	if !t.isConnected() {
		return false
	}
	return t.emit(func() {
		t.dev.mu.Lock()
		t.dev.txPhy, t.dev.rxPhy = tx, rx
		t.dev.mu.Unlock()
		t.events.PhyUpdated(gattc.StatusSuccess, tx, rx)
	})
}

func (t *transport) CreateBond() bool {
	if t.watcher == nil {
		return false
	}
	return t.emit(func() {
		t.watcher.beginBonding(t.dev)
	})
}

func (t *transport) SetPin(pin string) bool {
	if t.watcher == nil {
		return false
	}
	t.watcher.pinEntered(t.dev, pin)
	return true
}
