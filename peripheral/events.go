package peripheral

import (
	"github.com/rigado/gattc"
)

// The handlers below implement the remainder of gattc.TransportEvents.
// Each one is posted to the run loop, matched against the in-flight
// command, and either resolves it or is logged as stray. A non-success
// status fails only the matching command; the queue advances either way.

func (p *Peripheral) resolve(kind opKind, handle uint16, r result, status gattc.GattStatus) {
	c := p.q.inflight()
	if c == nil || c.kind != kind || (handle != 0 && c.handle != handle) {
		p.log.Warnf("stray %s callback (handle 0x%04x)", kind, handle)
		return
	}
	if !status.Success() {
		c.fail(gattc.NewStatusError(kind.String(), status))
	} else {
		c.complete(r)
	}
	p.q.completed(c)
}

// CharacteristicRead implements gattc.TransportEvents.
func (p *Peripheral) CharacteristicRead(status gattc.GattStatus, valueHandle uint16, value []byte) {
	p.post(func() {
		p.resolve(opReadChar, valueHandle, result{value: value}, status)
	})
}

// CharacteristicWritten implements gattc.TransportEvents.
func (p *Peripheral) CharacteristicWritten(status gattc.GattStatus, valueHandle uint16) {
	p.post(func() {
		// A congested stack drops the write but recovers quickly; retry
		// the same command without resetting its attempt count.
		if status == gattc.StatusConnectionCongested {
			if c := p.q.inflight(); c != nil && c.kind == opWriteChar && c.handle == valueHandle {
				if p.q.retry(c) {
					return
				}
			}
		}
		p.resolve(opWriteChar, valueHandle, result{}, status)
	})
}

// DescriptorRead implements gattc.TransportEvents.
func (p *Peripheral) DescriptorRead(status gattc.GattStatus, handle uint16, value []byte) {
	p.post(func() {
		p.resolve(opReadDesc, handle, result{value: value}, status)
	})
}

// DescriptorWritten implements gattc.TransportEvents. It completes plain
// descriptor writes and the CCCD write behind a notify toggle.
func (p *Peripheral) DescriptorWritten(status gattc.GattStatus, handle uint16) {
	p.post(func() {
		c := p.q.inflight()
		if c != nil && c.kind == opSetNotify && c.handle == handle {
			if status.Success() {
				p.notifyToggled(c)
				c.complete(result{})
			} else {
				c.fail(gattc.NewStatusError(c.kind.String(), status))
			}
			p.q.completed(c)
			return
		}
		p.resolve(opWriteDesc, handle, result{}, status)
	})
}

// notifyToggled records the subscription state change carried by a
// completed set-notify command. Runs on the loop.
func (p *Peripheral) notifyToggled(c *command) {
	if c.enable {
		p.notifying[c.vhandle] = c.handler
	} else {
		delete(p.notifying, c.vhandle)
	}
}

// CharacteristicChanged implements gattc.TransportEvents. Notifications
// are unsolicited and bypass the queue entirely.
func (p *Peripheral) CharacteristicChanged(valueHandle uint16, value []byte) {
	p.post(func() {
		h, ok := p.notifying[valueHandle]
		if !ok || h == nil {
			p.log.Debugf("notification for unsubscribed handle 0x%04x", valueHandle)
			return
		}
		h(value)
	})
}

// RSSIRead implements gattc.TransportEvents.
func (p *Peripheral) RSSIRead(status gattc.GattStatus, rssi int) {
	p.post(func() {
		p.resolve(opReadRSSI, 0, result{rssi: rssi}, status)
	})
}

// MTUChanged implements gattc.TransportEvents. The negotiated MTU is
// recorded even when the exchange was initiated by the remote device.
func (p *Peripheral) MTUChanged(status gattc.GattStatus, mtu int) {
	p.post(func() {
		if status.Success() {
			p.stateMu.Lock()
			p.mtu = mtu
			p.stateMu.Unlock()
			p.log.Debugf("mtu changed to %d", mtu)
		}
		if c := p.q.inflight(); c != nil && c.kind == opRequestMTU {
			p.resolve(opRequestMTU, 0, result{mtu: mtu}, status)
		}
	})
}

// PhyRead implements gattc.TransportEvents.
func (p *Peripheral) PhyRead(status gattc.GattStatus, tx, rx gattc.Phy) {
	p.post(func() {
		p.resolve(opReadPhy, 0, result{txPhy: tx, rxPhy: rx}, status)
	})
}

// PhyUpdated implements gattc.TransportEvents. The update may be
// initiated by the remote device, in which case no command is waiting.
func (p *Peripheral) PhyUpdated(status gattc.GattStatus, tx, rx gattc.Phy) {
	p.post(func() {
		if c := p.q.inflight(); c != nil && c.kind == opSetPhy {
			p.resolve(opSetPhy, 0, result{txPhy: tx, rxPhy: rx}, status)
			return
		}
		p.log.Debugf("phy updated by remote: tx %v, rx %v (status %v)", tx, rx, status)
	})
}
