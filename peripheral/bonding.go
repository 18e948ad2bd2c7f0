package peripheral

import (
	"github.com/rigado/gattc"
)

// watchBonding subscribes to OS bonding events for the device and pumps
// them onto the run loop. Registered on every connect attempt and torn
// down on disconnect.
func (p *Peripheral) watchBonding() {
	if p.watcher == nil || p.bondStop != nil {
		return
	}
	ch, err := p.watcher.Watch(p.addr)
	if err != nil {
		p.log.Warnf("can't watch bonding events: %v", err)
		return
	}

	stopped := make(chan struct{})
	p.bondStop = func() {
		p.watcher.Unwatch(p.addr)
		<-stopped
	}
	go func() {
		defer close(stopped)
		for ev := range ch {
			ev := ev
			p.post(func() { p.onBondEvent(ev) })
		}
	}()
}

func (p *Peripheral) unwatchBonding() {
	if p.bondStop == nil {
		return
	}
	stop := p.bondStop
	p.bondStop = nil
	go stop()
}

func (p *Peripheral) bondObserver() gattc.BondObserver {
	if o, ok := p.listener.(gattc.BondObserver); ok {
		return o
	}
	return gattc.NopListener{}
}

func (p *Peripheral) onBondEvent(ev gattc.BondEvent) {
	if ev.Kind == gattc.PairingRequested {
		p.onPairingRequest(ev.Variant)
		return
	}

	p.log.Debugf("bond state %v (was %v)", ev.State, ev.Previous)
	p.stateMu.Lock()
	p.bondState = ev.State
	p.stateMu.Unlock()

	switch ev.State {
	case gattc.Bonding:
		p.bondObserver().BondingStarted()

	case gattc.Bonded:
		p.onBonded()

	case gattc.BondNone:
		if ev.Previous == gattc.Bonded {
			p.onBondLost()
		} else {
			p.onBondingFailed()
		}
	}
}

func (p *Peripheral) onBonded() {
	p.bondObserver().BondingSucceeded()

	// A manual bond command waiting in the queue is now satisfied.
	if c := p.q.inflight(); c != nil && c.kind == opCreateBond {
		c.complete(result{})
		p.q.completed(c)
	}

	// Discovery was held back while the stack was pairing.
	if p.linkUp &&
		(p.phase == discoveryDeferred || (p.phase == discoveryIdle && p.profile == nil)) {
		p.startDiscovery()
	}
}

func (p *Peripheral) onBondingFailed() {
	p.log.Warn("bonding failed")
	p.bondObserver().BondingFailed()

	if c := p.q.inflight(); c != nil && c.kind == opCreateBond {
		c.fail(gattc.NewStatusError(c.kind.String(), gattc.StatusInsufficientAuthn))
		p.q.completed(c)
	}

	if p.state != gattc.Disconnected {
		p.failLink(gattc.StatusInsufficientAuthn)
	}
}

// onBondLost handles the remote (or the user) deleting an established
// bond. The link is useless without its keys: cancel discovery, drop the
// connection, and later report a connect failure rather than a plain
// disconnect so the caller knows to retry.
func (p *Peripheral) onBondLost() {
	p.log.Warn("bond lost")
	p.bondLost = true
	p.bondObserver().BondLost()

	if p.phase == discoveryRunning {
		p.transport.CancelDiscovery()
		p.phase = discoveryIdle
	}
	if p.state != gattc.Disconnected {
		p.setState(gattc.Disconnecting)
		if !p.transport.Disconnect() {
			p.onDisconnected(gattc.StatusInsufficientAuthn)
		}
	}
}

func (p *Peripheral) onPairingRequest(v gattc.PairingVariant) {
	pin := p.listener.PinRequested()
	if pin == "" {
		p.log.Warnf("no pin for pairing request (%v)", v)
		return
	}
	if t := p.transport; t != nil {
		if !t.SetPin(pin) {
			p.log.Warn("stack rejected pin")
		}
	}
}
