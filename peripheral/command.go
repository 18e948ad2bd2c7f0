package peripheral

import (
	"context"
	"sync"

	"github.com/rigado/gattc"
)

type opKind int

const (
	opReadChar opKind = iota
	opWriteChar
	opReadDesc
	opWriteDesc
	opSetNotify
	opReadRSSI
	opRequestMTU
	opRequestPriority
	opReadPhy
	opSetPhy
	opCreateBond
)

func (k opKind) String() string {
	switch k {
	case opReadChar:
		return "read characteristic"
	case opWriteChar:
		return "write characteristic"
	case opReadDesc:
		return "read descriptor"
	case opWriteDesc:
		return "write descriptor"
	case opSetNotify:
		return "set notify"
	case opReadRSSI:
		return "read rssi"
	case opRequestMTU:
		return "request mtu"
	case opRequestPriority:
		return "request connection priority"
	case opReadPhy:
		return "read phy"
	case opSetPhy:
		return "set phy"
	case opCreateBond:
		return "create bond"
	}
	return "unknown operation"
}

// result carries the outcome of one command. Exactly one field besides
// err is meaningful, depending on the command kind.
type result struct {
	value []byte
	rssi  int
	mtu   int
	txPhy gattc.Phy
	rxPhy gattc.Phy
	err   error
}

// command is one queued GATT operation. The start closure performs the
// transport call and reports whether the stack accepted it. The done
// channel resolves the caller; it is buffered so a completion never
// blocks on a caller that gave up waiting.
type command struct {
	kind   opKind
	handle uint16
	value  []byte
	mode   gattc.WriteMode

	// set-notify bookkeeping: the toggle direction, the characteristic's
	// value handle (handle above is the CCCD) and the notification sink.
	enable  bool
	vhandle uint16
	handler gattc.NotifyHandler

	start func() bool

	once sync.Once
	done chan result
}

func newCommand(kind opKind, handle uint16) *command {
	return &command{
		kind:   kind,
		handle: handle,
		done:   make(chan result, 1),
	}
}

// complete resolves the command. Safe to call more than once; only the
// first resolution is delivered.
func (c *command) complete(r result) {
	c.once.Do(func() {
		c.done <- r
	})
}

func (c *command) fail(err error) {
	c.complete(result{err: err})
}

// await blocks the caller until the command resolves or ctx expires.
// An expired context abandons the wait; the command itself still runs to
// completion on the queue.
func (c *command) await(ctx context.Context) (result, error) {
	select {
	case r := <-c.done:
		return r, r.err
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

// structurallyValid rejects commands the queue must never accept.
func (c *command) structurallyValid() bool {
	if c.start == nil {
		return false
	}
	switch c.kind {
	case opWriteChar, opWriteDesc:
		return len(c.value) > 0
	case opReadChar, opReadDesc, opSetNotify, opReadRSSI, opRequestMTU,
		opRequestPriority, opReadPhy, opSetPhy, opCreateBond:
		return true
	}
	return false
}
