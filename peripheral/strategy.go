package peripheral

import (
	"strings"
	"time"

	"github.com/rigado/gattc"
)

// connectStrategy abstracts how a connection attempt is started. Old
// stack bindings only expose a reliable direct attempt; newer ones also
// offer a background auto-connect. The strategy is picked once from the
// platform probe, never by runtime introspection.
type connectStrategy interface {
	name() string
	connect(t gattc.Transport, auto bool) bool
}

// directStrategy uses the stack's native connect call for both direct
// and auto-connect attempts.
type directStrategy struct{}

func (directStrategy) name() string { return "direct" }

func (directStrategy) connect(t gattc.Transport, auto bool) bool {
	return t.Connect(auto)
}

// compatStrategy is for bindings whose auto-connect path is broken; it
// always issues a direct attempt and leaves reconnection to the caller.
type compatStrategy struct{}

func (compatStrategy) name() string { return "compat" }

func (compatStrategy) connect(t gattc.Transport, auto bool) bool {
	return t.Connect(false)
}

// autoConnectApiLevel is the first binding level with a usable
// auto-connect transport call.
const autoConnectApiLevel = 23

func chooseStrategy(pi gattc.PlatformInfo) connectStrategy {
	if pi.ApiLevel >= autoConnectApiLevel {
		return directStrategy{}
	}
	return compatStrategy{}
}

// Supervision timeout varies by manufacturer: most stacks give up on a
// connection attempt after 25s, a few after 4.5s. The threshold decides
// whether a late establishment failure is reported as a timeout.
const (
	shortSupervisionThreshold = 4500 * time.Millisecond
	longSupervisionThreshold  = 25 * time.Second
)

var shortTimeoutManufacturers = map[string]struct{}{
	"oneplus": {},
	"oppo":    {},
	"realme":  {},
}

func supervisionThreshold(manufacturer string) time.Duration {
	if _, ok := shortTimeoutManufacturers[strings.ToLower(manufacturer)]; ok {
		return shortSupervisionThreshold
	}
	return longSupervisionThreshold
}
