package gattc

// Transport is the platform GATT stack for a single remote device. Every
// method is fire-and-forget: the boolean return reports only whether the
// stack accepted and started the operation; the actual result arrives
// later through the TransportEvents sink supplied at creation.
//
// At most one operation may be outstanding at a time. Enforcing that is
// the job of the peripheral command queue, not the transport.
type Transport interface {
	// Connect initiates a connection attempt. When auto is true the stack
	// keeps trying in the background instead of a single direct attempt.
	Connect(auto bool) bool
	Disconnect() bool
	// Close releases the stack object. No events are delivered afterwards.
	Close()

	DiscoverServices() bool
	// CancelDiscovery aborts a running service discovery, if supported.
	CancelDiscovery()

	ReadCharacteristic(valueHandle uint16) bool
	WriteCharacteristic(valueHandle uint16, value []byte, mode WriteMode) bool
	ReadDescriptor(handle uint16) bool
	WriteDescriptor(handle uint16, value []byte) bool
	SetNotify(valueHandle uint16, enable bool) bool

	ReadRSSI() bool
	RequestMTU(mtu int) bool
	RequestConnectionPriority(p ConnectionPriority) bool
	ReadPhy() bool
	SetPhy(tx, rx Phy, opts PhyOptions) bool
	CreateBond() bool
	// SetPin answers a pairing PIN request.
	SetPin(pin string) bool
}

// TransportEvents receives the asynchronous results of Transport calls.
// The transport may invoke these from any goroutine; implementations are
// expected to serialize internally.
type TransportEvents interface {
	ConnectionStateChanged(status GattStatus, state ConnectionState)
	ServicesDiscovered(status GattStatus, profile *Profile)

	CharacteristicRead(status GattStatus, valueHandle uint16, value []byte)
	CharacteristicWritten(status GattStatus, valueHandle uint16)
	DescriptorRead(status GattStatus, handle uint16, value []byte)
	DescriptorWritten(status GattStatus, handle uint16)

	// CharacteristicChanged delivers a notification or indication. It is
	// unsolicited and never tied to a queued operation.
	CharacteristicChanged(valueHandle uint16, value []byte)

	RSSIRead(status GattStatus, rssi int)
	MTUChanged(status GattStatus, mtu int)
	PhyRead(status GattStatus, tx, rx Phy)
	PhyUpdated(status GattStatus, tx, rx Phy)
	ConnectionUpdated(interval, latency, timeout int)
}

// TransportFactory creates the transport for one remote device. The
// central manager owning the peripherals supplies an implementation.
type TransportFactory interface {
	Create(a Addr, events TransportEvents) (Transport, error)
}

// PlatformInfo describes the host stack, used to pick the connect
// strategy and the supervision timeout classification threshold.
type PlatformInfo struct {
	// ApiLevel of the underlying stack binding. Levels below 23 lack a
	// direct-connect transport call and fall back to the compat strategy.
	ApiLevel int
	// Manufacturer of the host device, lowercase.
	Manufacturer string
}
