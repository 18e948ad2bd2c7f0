// Package peripheral implements a GATT client for one remote device: a
// command queue serializing GATT operations, the connection and bonding
// state machines driven by asynchronous stack callbacks, and blocking
// request/response wrappers over the fire-and-forget transport.
package peripheral

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/gattc"
)

const (
	defaultConnectTimeout   = 30 * time.Second
	defaultCancelGraceDelay = 300 * time.Millisecond
	defaultBondSettleDelay  = time.Second
	defaultQueueDepth       = 32
	defaultMaxAttempts      = 3

	// DefaultMTU is the ATT_MTU before negotiation [Vol 3, Part F, 3.2.8].
	DefaultMTU = 23
	// MaxMTU is the largest negotiable ATT_MTU.
	MaxMTU = 517
	// maxAttributeLength bounds a long write [Vol 3, Part F, 3.2.9].
	maxAttributeLength = 512
)

// discoveryPhase is the consolidated discovery/bonding interlock. It
// replaces separate started/deferred/cancelled booleans: discovery is
// deferred while bonding runs, and Connected is only reported once the
// phase reaches done.
type discoveryPhase int

const (
	discoveryIdle discoveryPhase = iota
	discoveryDeferred
	discoveryRunning
	discoveryDone
)

// Peripheral is the client side of one remote GATT device. It persists
// across connect/disconnect cycles; all of its state is in-memory and
// rebuilt on each connection.
type Peripheral struct {
	addr     gattc.Addr
	factory  gattc.TransportFactory
	listener gattc.ConnectionListener
	log      gattc.Logger

	connectTimeout time.Duration
	cancelGrace    time.Duration
	bondSettle     time.Duration
	autoConnect    bool
	autoBond       bool
	platform       gattc.PlatformInfo
	strategy       connectStrategy
	cache          gattc.GattCache
	watcher        gattc.BondWatcher

	signMu      sync.Mutex
	csrk        []byte
	signCounter uint32

	q *queue

	// stateMu guards the fields below for cross-goroutine readers; they
	// are written only from the run loop (and New).
	stateMu   sync.RWMutex
	name      string
	state     gattc.ConnectionState
	bondState gattc.BondState
	transport gattc.Transport
	profile   *gattc.Profile
	mtu       int

	// Everything below is touched only on the run loop.
	linkUp         bool
	phase          discoveryPhase
	bondLost       bool
	notifying      map[uint16]gattc.NotifyHandler
	connectStarted time.Time
	connectTimer   *time.Timer
	cancelTimer    *time.Timer
	settleTimer    *time.Timer
	bondStop       func()

	run       chan func()
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a peripheral for the device at a. The factory supplies the
// transport per connection attempt; the listener receives connection
// lifecycle events. The peripheral is created disconnected.
func New(a gattc.Addr, name string, factory gattc.TransportFactory, listener gattc.ConnectionListener, opts ...gattc.Option) (*Peripheral, error) {
	if a == nil {
		return nil, errors.New("nil address")
	}
	if factory == nil {
		return nil, errors.New("nil transport factory")
	}
	if listener == nil {
		listener = gattc.NopListener{}
	}

	p := &Peripheral{
		addr:     a,
		name:     name,
		factory:  factory,
		listener: listener,
		log: gattc.GetLogger().ChildLogger(map[string]interface{}{
			"peripheral": a.String(),
		}),

		connectTimeout: defaultConnectTimeout,
		cancelGrace:    defaultCancelGraceDelay,
		bondSettle:     defaultBondSettleDelay,

		state:     gattc.Disconnected,
		bondState: gattc.BondNone,
		mtu:       DefaultMTU,
		notifying: make(map[uint16]gattc.NotifyHandler),

		run:  make(chan func(), 16),
		done: make(chan struct{}),
	}

	queueDepth := defaultQueueDepth
	maxAttempts := defaultMaxAttempts
	p.q = newQueue(p.log, queueDepth, maxAttempts, func() bool {
		return p.State() == gattc.Connected
	})

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, errors.Wrap(err, "can't set option")
		}
	}
	p.strategy = chooseStrategy(p.platform)

	go p.loop()
	return p, nil
}

// Addr returns the remote device address.
func (p *Peripheral) Addr() gattc.Addr { return p.addr }

// Name returns the cached display name of the device.
func (p *Peripheral) Name() string {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.name
}

// State returns the current connection state.
func (p *Peripheral) State() gattc.ConnectionState {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state
}

// BondState returns the current bonding state.
func (p *Peripheral) BondState() gattc.BondState {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.bondState
}

// MTU returns the negotiated ATT_MTU, or DefaultMTU before negotiation.
func (p *Peripheral) MTU() int {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.mtu
}

// Profile returns the discovered attribute catalog, or nil before
// service discovery has completed.
func (p *Peripheral) Profile() *gattc.Profile {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.profile
}

func (p *Peripheral) currentTransport() gattc.Transport {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.transport
}

// loop is the single logical callback-processing context. Every state
// transition and caller resolution runs here, keeping user-visible
// callbacks ordered relative to each other.
func (p *Peripheral) loop() {
	for {
		select {
		case f := <-p.run:
			f()
		case <-p.done:
			return
		}
	}
}

func (p *Peripheral) post(f func()) {
	select {
	case p.run <- f:
	case <-p.done:
	}
}

// call runs f on the loop and waits for its result.
func (p *Peripheral) call(f func() error) error {
	ch := make(chan error, 1)
	p.post(func() { ch <- f() })
	select {
	case err := <-ch:
		return err
	case <-p.done:
		return errors.New("peripheral closed")
	}
}

// Close releases the peripheral. A connected device is disconnected
// without waiting for the stack's confirmation.
func (p *Peripheral) Close() {
	p.closeOnce.Do(func() {
		_ = p.call(func() error {
			p.cleanup(gattc.StatusTerminatedLocalHost, false)
			return nil
		})
		close(p.done)
	})
}

// Connect starts a connection attempt. It is rejected unless the current
// state is Disconnected. The outcome is reported to the listener:
// Connected after service discovery finishes, or ConnectFailed.
func (p *Peripheral) Connect() error {
	return p.call(p.connectOnLoop)
}

func (p *Peripheral) connectOnLoop() error {
	if p.state != gattc.Disconnected {
		p.log.Warnf("connect rejected in state %v", p.state)
		return errors.Wrapf(gattc.ErrInvalidState, "connect in state %v", p.state)
	}

	// A connect supersedes a pending bond-settle report.
	p.stopTimer(&p.settleTimer)

	t, err := p.factory.Create(p.addr, p)
	if err != nil {
		return errors.Wrap(err, "can't create transport")
	}

	p.watchBonding()

	p.setLink(gattc.Connecting, t)
	p.phase = discoveryIdle
	p.connectStarted = time.Now()

	p.log.Debugf("connecting (strategy %s, auto %v)", p.strategy.name(), p.autoConnect)
	if !p.strategy.connect(t, p.autoConnect) {
		p.log.Warn("stack refused connect attempt")
		p.cleanup(gattc.StatusOperationNotStarted, false)
		return errors.Wrap(gattc.ErrInvalidState, "stack refused connect")
	}

	p.connectTimer = time.AfterFunc(p.connectTimeout, func() {
		p.post(p.onConnectTimeout)
	})
	return nil
}

// Disconnect tears down an established connection. The listener's
// Disconnected fires once the stack confirms.
func (p *Peripheral) Disconnect() error {
	return p.call(func() error {
		switch p.state {
		case gattc.Connected:
			p.setState(gattc.Disconnecting)
			if !p.transport.Disconnect() {
				// The stack won't deliver an event for a call it refused.
				p.onDisconnected(gattc.StatusTerminatedLocalHost)
			}
			return nil
		case gattc.Connecting:
			return p.cancelOnLoop()
		default:
			return errors.Wrapf(gattc.ErrInvalidState, "disconnect in state %v", p.state)
		}
	})
}

// CancelConnection aborts a pending connection attempt. The stack may
// never deliver a disconnect event for an attempt it never fully
// started, so one is synthesized after a short grace delay.
func (p *Peripheral) CancelConnection() error {
	return p.call(p.cancelOnLoop)
}

func (p *Peripheral) cancelOnLoop() error {
	switch p.state {
	case gattc.Connecting:
		p.stopTimer(&p.connectTimer)
		p.setState(gattc.Disconnecting)
		p.transport.Disconnect()
		p.cancelTimer = time.AfterFunc(p.cancelGrace, func() {
			p.post(func() {
				if p.state == gattc.Disconnecting {
					p.log.Debug("no disconnect event after cancel, synthesizing")
					p.onDisconnected(gattc.StatusSuccess)
				}
			})
		})
		return nil
	case gattc.Connected:
		p.setState(gattc.Disconnecting)
		p.transport.Disconnect()
		return nil
	default:
		return errors.Wrapf(gattc.ErrInvalidState, "cancel in state %v", p.state)
	}
}

func (p *Peripheral) onConnectTimeout() {
	if p.state != gattc.Connecting {
		return
	}
	p.log.Warnf("no connection event within %v", p.connectTimeout)
	p.transport.Disconnect()
	p.onDisconnected(gattc.StatusFailedToEstablish)
}

// ConnectionStateChanged implements gattc.TransportEvents.
func (p *Peripheral) ConnectionStateChanged(status gattc.GattStatus, state gattc.ConnectionState) {
	p.post(func() {
		p.log.Debugf("connection state %v (status %v)", state, status)
		switch {
		case !status.Success():
			// Any failure status ends up on the disconnection path,
			// whatever state the stack claims.
			p.onDisconnected(status)
		case state == gattc.Connected:
			p.onConnected()
		case state == gattc.Disconnected:
			p.onDisconnected(status)
		default:
			// Intermediate states are informational only.
		}
	})
}

func (p *Peripheral) onConnected() {
	if p.state != gattc.Connecting || p.linkUp {
		p.log.Warnf("connected event in state %v", p.state)
		return
	}
	p.stopTimer(&p.connectTimer)
	p.stopTimer(&p.cancelTimer)
	// The link is up, but the peripheral stays Connecting until its
	// attribute catalog is known; GATT operations are pointless before.
	p.linkUp = true

	if p.bondState == gattc.Bonding {
		// Discovery now would be aborted by the stack when pairing
		// traffic starts. Wait for the bond to settle.
		p.phase = discoveryDeferred
		return
	}
	if p.autoBond && p.watcher != nil && p.bondState == gattc.BondNone {
		if p.transport.CreateBond() {
			p.phase = discoveryDeferred
			return
		}
		p.log.Warn("auto-bond refused by stack, discovering anyway")
	}
	p.startDiscovery()
}

func (p *Peripheral) startDiscovery() {
	p.phase = discoveryRunning
	if !p.transport.DiscoverServices() {
		p.log.Warn("stack refused service discovery")
		p.failLink(gattc.StatusError)
	}
}

// ServicesDiscovered implements gattc.TransportEvents. Its success is
// what finally declares the peripheral connected to the listener.
func (p *Peripheral) ServicesDiscovered(status gattc.GattStatus, profile *gattc.Profile) {
	p.post(func() {
		if p.phase != discoveryRunning {
			p.log.Debugf("ignoring discovery result in phase %d", p.phase)
			return
		}
		if !status.Success() {
			p.log.Warnf("service discovery failed: %v", status)
			p.failLink(status)
			return
		}

		p.phase = discoveryDone
		p.stateMu.Lock()
		p.profile = profile
		p.state = gattc.Connected
		p.stateMu.Unlock()

		if p.cache != nil {
			if err := p.cache.Store(p.addr, *profile, true); err != nil {
				p.log.Warnf("can't cache profile: %v", err)
			}
		}

		p.log.Infof("connected, %d services", len(profile.Services))
		p.listener.Connected()
	})
}

// failLink forces a disconnect and reports the given status through the
// connect-failure path.
func (p *Peripheral) failLink(status gattc.GattStatus) {
	if p.transport != nil {
		p.transport.Disconnect()
	}
	p.onDisconnected(status)
}

// onDisconnected is the single completion path for every connection
// teardown: hardware events, timeouts, cancels and bonding failures.
func (p *Peripheral) onDisconnected(status gattc.GattStatus) {
	if p.state == gattc.Disconnected {
		return
	}
	prev := p.state
	bondLost := p.bondLost
	elapsed := time.Since(p.connectStarted)

	p.cleanup(status, true)

	switch {
	case bondLost:
		// Give the stack time to settle its bonding cache, then report a
		// connect failure so the caller knows a retry may succeed.
		p.settleTimer = time.AfterFunc(p.bondSettle, func() {
			p.post(func() {
				p.listener.ConnectFailed(status)
			})
		})
	case prev == gattc.Connecting:
		p.listener.ConnectFailed(p.classifyFailure(status, elapsed))
	default:
		p.listener.Disconnected(status)
	}
}

// classifyFailure upgrades a generic establishment error to a timeout
// when the attempt outlived the manufacturer's supervision threshold.
func (p *Peripheral) classifyFailure(status gattc.GattStatus, elapsed time.Duration) gattc.GattStatus {
	if status == gattc.StatusError && elapsed >= supervisionThreshold(p.platform.Manufacturer) {
		return gattc.StatusConnectionTimeout
	}
	return status
}

// cleanup flushes the queue, clears per-connection bookkeeping, stops
// timers and releases the transport.
func (p *Peripheral) cleanup(status gattc.GattStatus, keepSettle bool) {
	p.stopTimer(&p.connectTimer)
	p.stopTimer(&p.cancelTimer)
	if !keepSettle {
		p.stopTimer(&p.settleTimer)
	}

	p.q.flush(errors.Wrapf(gattc.ErrDisconnected, "status %v", status))
	p.notifying = make(map[uint16]gattc.NotifyHandler)
	p.linkUp = false
	p.phase = discoveryIdle
	p.bondLost = false
	p.unwatchBonding()

	t := p.transport
	p.setLink(gattc.Disconnected, nil)
	if t != nil {
		t.Close()
	}
}

func (p *Peripheral) setState(s gattc.ConnectionState) {
	p.stateMu.Lock()
	p.state = s
	p.stateMu.Unlock()
}

func (p *Peripheral) setLink(s gattc.ConnectionState, t gattc.Transport) {
	p.stateMu.Lock()
	p.state = s
	p.transport = t
	if t == nil {
		p.profile = nil
		p.mtu = DefaultMTU
	}
	p.stateMu.Unlock()
}

func (p *Peripheral) stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// ConnectionUpdated implements gattc.TransportEvents.
func (p *Peripheral) ConnectionUpdated(interval, latency, timeout int) {
	p.post(func() {
		p.log.Debugf("connection updated: interval %d, latency %d, timeout %d",
			interval, latency, timeout)
		if c := p.q.inflight(); c != nil && c.kind == opRequestPriority {
			c.complete(result{})
			p.q.completed(c)
		}
	})
}
