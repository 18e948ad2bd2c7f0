package peripheral

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/gattc"
)

// The setters below implement gattc.PeripheralOption. They are only
// called from New, before the run loop starts.

func (p *Peripheral) SetConnectTimeout(d time.Duration) error {
	if d <= 0 {
		return errors.New("connect timeout must be positive")
	}
	p.connectTimeout = d
	return nil
}

func (p *Peripheral) SetCancelGraceDelay(d time.Duration) error {
	if d <= 0 {
		return errors.New("cancel grace delay must be positive")
	}
	p.cancelGrace = d
	return nil
}

func (p *Peripheral) SetBondSettleDelay(d time.Duration) error {
	if d <= 0 {
		return errors.New("bond settle delay must be positive")
	}
	p.bondSettle = d
	return nil
}

func (p *Peripheral) SetQueueDepth(n int) error {
	if n <= 0 {
		return errors.New("queue depth must be positive")
	}
	p.q.depth = n
	return nil
}

func (p *Peripheral) SetMaxAttempts(n int) error {
	if n <= 0 {
		return errors.New("max attempts must be positive")
	}
	p.q.maxAttempts = n
	return nil
}

func (p *Peripheral) SetAutoConnect(auto bool) error {
	p.autoConnect = auto
	return nil
}

func (p *Peripheral) SetAutoBond(auto bool) error {
	p.autoBond = auto
	return nil
}

func (p *Peripheral) SetPlatformInfo(pi gattc.PlatformInfo) error {
	p.platform = pi
	return nil
}

func (p *Peripheral) SetSignedWriteKey(csrk []byte) error {
	if len(csrk) != 16 {
		return errors.Errorf("csrk must be 16 bytes, got %d", len(csrk))
	}
	p.csrk = append([]byte(nil), csrk...)
	return nil
}

func (p *Peripheral) SetGattCache(c gattc.GattCache) error {
	p.cache = c
	return nil
}

func (p *Peripheral) SetBondWatcher(w gattc.BondWatcher) error {
	p.watcher = w
	return nil
}
