package peripheral

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rigado/gattc"
)

// queue serializes GATT operations: commands run strictly one at a time,
// in enqueue order. The busy flag is true iff the head command has been
// dispatched and is awaiting its hardware callback. Callers enqueue from
// their own goroutines while completions arrive from the transport's, so
// every mutation of cmds/busy happens under mu.
type queue struct {
	log gattc.Logger

	// accept gates enqueue on connection state; nil accepts everything.
	accept func() bool

	depth       int
	maxAttempts int

	mu       sync.Mutex
	cmds     []*command
	busy     bool
	retrying bool
	attempts int
}

func newQueue(log gattc.Logger, depth, maxAttempts int, accept func() bool) *queue {
	return &queue{
		log:         log,
		accept:      accept,
		depth:       depth,
		maxAttempts: maxAttempts,
	}
}

// enqueue appends c unless it is structurally invalid, the gate rejects
// it, or the queue is at depth. It kicks the sequencer on success.
func (q *queue) enqueue(c *command) bool {
	if c == nil || !c.structurallyValid() {
		return false
	}
	if q.accept != nil && !q.accept() {
		return false
	}

	q.mu.Lock()
	if q.depth > 0 && len(q.cmds) >= q.depth {
		q.mu.Unlock()
		q.log.Warnf("queue full, rejecting %s", c.kind)
		return false
	}
	q.cmds = append(q.cmds, c)
	q.mu.Unlock()

	q.advance()
	return true
}

// advance dispatches the head command when idle. It is idempotent and a
// no-op while a command is in flight or the queue is empty.
func (q *queue) advance() {
	q.mu.Lock()
	if q.busy || len(q.cmds) == 0 {
		q.mu.Unlock()
		return
	}
	c := q.cmds[0]
	q.busy = true
	if q.retrying {
		q.retrying = false
	} else {
		q.attempts = 0
	}
	q.attempts++
	q.mu.Unlock()

	q.dispatch(c)
}

// dispatch runs the command's transport call. A synchronous rejection
// (or a panic) completes the command with a failure immediately so the
// queue never stalls waiting for a callback that will not come.
func (q *queue) dispatch(c *command) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Errorf("%s panicked during dispatch: %v", c.kind, r)
			c.fail(errors.Errorf("%s panicked: %v", c.kind, r))
			q.completed(c)
		}
	}()

	q.log.Debugf("dispatching %s (handle 0x%04x)", c.kind, c.handle)
	if !c.start() {
		q.log.Warnf("stack refused to start %s", c.kind)
		c.fail(gattc.NewStatusError(c.kind.String(), gattc.StatusOperationNotStarted))
		q.completed(c)
	}
}

// inflight returns the dispatched head command, or nil when idle.
func (q *queue) inflight() *command {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.busy || len(q.cmds) == 0 {
		return nil
	}
	return q.cmds[0]
}

// completed removes c from the head of the queue, clears busy and
// dispatches the next command. Completing a command that is not the
// head is a stray callback and only logged.
func (q *queue) completed(c *command) {
	q.mu.Lock()
	if len(q.cmds) == 0 || q.cmds[0] != c {
		q.mu.Unlock()
		q.log.Warnf("completion for %s which is not at queue head", c.kind)
		return
	}
	q.cmds = q.cmds[1:]
	q.busy = false
	q.mu.Unlock()

	q.advance()
}

// retry puts the in-flight command back for another attempt, keeping its
// attempt count. It reports false once the attempt limit is reached.
func (q *queue) retry(c *command) bool {
	q.mu.Lock()
	if len(q.cmds) == 0 || q.cmds[0] != c || !q.busy {
		q.mu.Unlock()
		return false
	}
	if q.attempts >= q.maxAttempts {
		q.mu.Unlock()
		q.log.Warnf("%s failed after %d attempts", c.kind, q.maxAttempts)
		return false
	}
	q.busy = false
	q.retrying = true
	q.mu.Unlock()

	q.advance()
	return true
}

// flush fails every queued command, including the in-flight one, and
// leaves the queue empty and idle.
func (q *queue) flush(err error) {
	q.mu.Lock()
	cmds := q.cmds
	q.cmds = nil
	q.busy = false
	q.retrying = false
	q.mu.Unlock()

	if len(cmds) > 0 {
		q.log.Debugf("flushing %d queued commands: %v", len(cmds), err)
	}
	for _, c := range cmds {
		c.fail(err)
	}
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.cmds)
}
