package peripheral

import (
	"context"

	"github.com/rigado/gattc"
	"github.com/rigado/gattc/sign"
)

// Blocking request/response wrappers. Each call validates its arguments,
// enqueues one command, and suspends the caller until the matching
// hardware callback resolves it. Validation failures surface before the
// command ever touches the queue; "nothing to do" conditions resolve
// immediately with success. Every call resolves exactly once.

// enqueueErr explains a rejected enqueue to the caller.
func (p *Peripheral) enqueueErr() error {
	if p.State() != gattc.Connected {
		return gattc.ErrNotConnected
	}
	return gattc.ErrQueueFull
}

// ReadCharacteristic reads the value of c.
func (p *Peripheral) ReadCharacteristic(ctx context.Context, c *gattc.Characteristic) ([]byte, error) {
	if c == nil {
		return nil, gattc.InvalidArgf("nil characteristic")
	}
	if c.Property&gattc.CharRead == 0 {
		return nil, gattc.InvalidArgf("characteristic %s is not readable", c.UUID)
	}
	t := p.currentTransport()
	if t == nil {
		return nil, gattc.ErrNotConnected
	}

	cmd := newCommand(opReadChar, c.ValueHandle)
	cmd.start = func() bool { return t.ReadCharacteristic(c.ValueHandle) }
	if !p.q.enqueue(cmd) {
		return nil, p.enqueueErr()
	}
	r, err := cmd.await(ctx)
	return r.value, err
}

// WriteCharacteristic writes value to c using the given mode. Size
// limits depend on the mode: a write with response may carry up to 512
// bytes, a write without response at most MTU-3, and a signed write at
// most MTU-15 to leave room for the authentication signature.
func (p *Peripheral) WriteCharacteristic(ctx context.Context, c *gattc.Characteristic, value []byte, mode gattc.WriteMode) error {
	if c == nil {
		return gattc.InvalidArgf("nil characteristic")
	}
	if len(value) == 0 {
		return gattc.InvalidArgf("empty write payload")
	}

	switch mode {
	case gattc.WriteWithResponse:
		if c.Property&gattc.CharWrite == 0 {
			return gattc.InvalidArgf("characteristic %s is not writable", c.UUID)
		}
		if len(value) > maxAttributeLength {
			return gattc.InvalidArgf("payload %d exceeds %d bytes", len(value), maxAttributeLength)
		}
	case gattc.WriteWithoutResponse:
		if c.Property&gattc.CharWriteNR == 0 {
			return gattc.InvalidArgf("characteristic %s does not accept writes without response", c.UUID)
		}
		if max := p.MTU() - 3; len(value) > max {
			return gattc.InvalidArgf("payload %d exceeds mtu-3 (%d)", len(value), max)
		}
	case gattc.WriteSigned:
		if c.Property&gattc.CharSignedWrite == 0 {
			return gattc.InvalidArgf("characteristic %s does not accept signed writes", c.UUID)
		}
		if max := p.MTU() - 15; len(value) > max {
			return gattc.InvalidArgf("payload %d exceeds mtu-15 (%d)", len(value), max)
		}
		if p.csrk == nil {
			return gattc.InvalidArgf("no signing key configured")
		}
		if p.BondState() != gattc.Bonded {
			return gattc.InvalidArgf("signed write requires a bonded device")
		}
	default:
		return gattc.InvalidArgf("unknown write mode %d", mode)
	}

	t := p.currentTransport()
	if t == nil {
		return gattc.ErrNotConnected
	}

	payload := value
	if mode == gattc.WriteSigned {
		var err error
		payload, err = p.signPayload(c.ValueHandle, value)
		if err != nil {
			return err
		}
	}

	cmd := newCommand(opWriteChar, c.ValueHandle)
	cmd.value = payload
	cmd.mode = mode
	cmd.start = func() bool { return t.WriteCharacteristic(c.ValueHandle, payload, mode) }
	if !p.q.enqueue(cmd) {
		return p.enqueueErr()
	}
	_, err := cmd.await(ctx)
	return err
}

// signPayload appends the ATT authentication signature over the signed
// write PDU; the sign counter increments with every signed write.
func (p *Peripheral) signPayload(valueHandle uint16, value []byte) ([]byte, error) {
	p.signMu.Lock()
	counter := p.signCounter
	p.signCounter++
	p.signMu.Unlock()

	sig, err := sign.Signature(p.csrk, counter, sign.WritePDU(valueHandle, value))
	if err != nil {
		return nil, err
	}
	return append(append([]byte(nil), value...), sig...), nil
}

// ReadDescriptor reads the value of d.
func (p *Peripheral) ReadDescriptor(ctx context.Context, d *gattc.Descriptor) ([]byte, error) {
	if d == nil {
		return nil, gattc.InvalidArgf("nil descriptor")
	}
	t := p.currentTransport()
	if t == nil {
		return nil, gattc.ErrNotConnected
	}

	cmd := newCommand(opReadDesc, d.Handle)
	cmd.start = func() bool { return t.ReadDescriptor(d.Handle) }
	if !p.q.enqueue(cmd) {
		return nil, p.enqueueErr()
	}
	r, err := cmd.await(ctx)
	return r.value, err
}

// WriteDescriptor writes value to d.
func (p *Peripheral) WriteDescriptor(ctx context.Context, d *gattc.Descriptor, value []byte) error {
	if d == nil {
		return gattc.InvalidArgf("nil descriptor")
	}
	if len(value) == 0 {
		return gattc.InvalidArgf("empty write payload")
	}
	if len(value) > maxAttributeLength {
		return gattc.InvalidArgf("payload %d exceeds %d bytes", len(value), maxAttributeLength)
	}
	t := p.currentTransport()
	if t == nil {
		return gattc.ErrNotConnected
	}

	cmd := newCommand(opWriteDesc, d.Handle)
	cmd.value = value
	cmd.start = func() bool { return t.WriteDescriptor(d.Handle, value) }
	if !p.q.enqueue(cmd) {
		return p.enqueueErr()
	}
	_, err := cmd.await(ctx)
	return err
}

// Subscribe enables notifications or indications on c and routes
// incoming values to h. Subscribing an already-notifying characteristic
// is a no-op.
func (p *Peripheral) Subscribe(ctx context.Context, c *gattc.Characteristic, h gattc.NotifyHandler) error {
	if h == nil {
		return gattc.InvalidArgf("nil notify handler")
	}
	return p.setNotify(ctx, c, true, h)
}

// Unsubscribe disables notifications on c. Unsubscribing a
// characteristic that is not notifying is a no-op.
func (p *Peripheral) Unsubscribe(ctx context.Context, c *gattc.Characteristic) error {
	return p.setNotify(ctx, c, false, nil)
}

func (p *Peripheral) setNotify(ctx context.Context, c *gattc.Characteristic, enable bool, h gattc.NotifyHandler) error {
	if c == nil {
		return gattc.InvalidArgf("nil characteristic")
	}
	if c.Property&(gattc.CharNotify|gattc.CharIndicate) == 0 {
		return gattc.InvalidArgf("characteristic %s does not support notifications", c.UUID)
	}
	cccd := c.ClientCharacteristicConfig()
	if cccd == nil {
		return gattc.InvalidArgf("characteristic %s has no client characteristic configuration descriptor", c.UUID)
	}
	t := p.currentTransport()
	if t == nil {
		return gattc.ErrNotConnected
	}

	if p.isNotifying(c.ValueHandle) == enable {
		return nil
	}

	cmd := newCommand(opSetNotify, cccd.Handle)
	cmd.enable = enable
	cmd.vhandle = c.ValueHandle
	cmd.handler = h
	cmd.start = func() bool { return t.SetNotify(c.ValueHandle, enable) }
	if !p.q.enqueue(cmd) {
		return p.enqueueErr()
	}
	_, err := cmd.await(ctx)
	return err
}

func (p *Peripheral) isNotifying(valueHandle uint16) bool {
	ch := make(chan bool, 1)
	p.post(func() {
		_, ok := p.notifying[valueHandle]
		ch <- ok
	})
	select {
	case v := <-ch:
		return v
	case <-p.done:
		return false
	}
}

// ReadRSSI reads the received signal strength of the connection.
func (p *Peripheral) ReadRSSI(ctx context.Context) (int, error) {
	t := p.currentTransport()
	if t == nil {
		return 0, gattc.ErrNotConnected
	}

	cmd := newCommand(opReadRSSI, 0)
	cmd.start = func() bool { return t.ReadRSSI() }
	if !p.q.enqueue(cmd) {
		return 0, p.enqueueErr()
	}
	r, err := cmd.await(ctx)
	return r.rssi, err
}

// RequestMTU negotiates the ATT_MTU and returns the value granted by the
// remote device. The requested value must lie in [23, 517].
func (p *Peripheral) RequestMTU(ctx context.Context, mtu int) (int, error) {
	if mtu < DefaultMTU || mtu > MaxMTU {
		return 0, gattc.InvalidArgf("mtu %d outside [%d, %d]", mtu, DefaultMTU, MaxMTU)
	}
	t := p.currentTransport()
	if t == nil {
		return 0, gattc.ErrNotConnected
	}

	cmd := newCommand(opRequestMTU, 0)
	cmd.start = func() bool { return t.RequestMTU(mtu) }
	if !p.q.enqueue(cmd) {
		return 0, p.enqueueErr()
	}
	r, err := cmd.await(ctx)
	return r.mtu, err
}

// RequestConnectionPriority asks the stack for a connection parameter
// profile. It resolves when the stack reports the parameter update.
func (p *Peripheral) RequestConnectionPriority(ctx context.Context, prio gattc.ConnectionPriority) error {
	if !prio.Valid() {
		return gattc.InvalidArgf("unknown connection priority %d", prio)
	}
	t := p.currentTransport()
	if t == nil {
		return gattc.ErrNotConnected
	}

	cmd := newCommand(opRequestPriority, 0)
	cmd.start = func() bool { return t.RequestConnectionPriority(prio) }
	if !p.q.enqueue(cmd) {
		return p.enqueueErr()
	}
	_, err := cmd.await(ctx)
	return err
}

// ReadPhy reads the radio modes in use for the connection.
func (p *Peripheral) ReadPhy(ctx context.Context) (tx, rx gattc.Phy, err error) {
	t := p.currentTransport()
	if t == nil {
		return 0, 0, gattc.ErrNotConnected
	}

	cmd := newCommand(opReadPhy, 0)
	cmd.start = func() bool { return t.ReadPhy() }
	if !p.q.enqueue(cmd) {
		return 0, 0, p.enqueueErr()
	}
	r, err := cmd.await(ctx)
	return r.txPhy, r.rxPhy, err
}

// SetPhy requests new radio modes for the connection and returns the
// modes the stack settled on.
func (p *Peripheral) SetPhy(ctx context.Context, tx, rx gattc.Phy, opts gattc.PhyOptions) (gattc.Phy, gattc.Phy, error) {
	if !tx.Valid() || !rx.Valid() {
		return 0, 0, gattc.InvalidArgf("invalid phy tx %d, rx %d", tx, rx)
	}
	t := p.currentTransport()
	if t == nil {
		return 0, 0, gattc.ErrNotConnected
	}

	cmd := newCommand(opSetPhy, 0)
	cmd.start = func() bool { return t.SetPhy(tx, rx, opts) }
	if !p.q.enqueue(cmd) {
		return 0, 0, p.enqueueErr()
	}
	r, err := cmd.await(ctx)
	return r.txPhy, r.rxPhy, err
}

// CreateBond starts pairing with the device. It resolves once the bond
// watcher reports Bonded. Bonding an already-bonded device is a no-op.
func (p *Peripheral) CreateBond(ctx context.Context) error {
	if p.watcher == nil {
		return gattc.InvalidArgf("no bond watcher configured")
	}
	if p.BondState() == gattc.Bonded {
		return nil
	}
	t := p.currentTransport()
	if t == nil {
		return gattc.ErrNotConnected
	}

	cmd := newCommand(opCreateBond, 0)
	cmd.start = func() bool { return t.CreateBond() }
	if !p.q.enqueue(cmd) {
		return p.enqueueErr()
	}
	_, err := cmd.await(ctx)
	return err
}
