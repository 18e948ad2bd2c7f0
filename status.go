package gattc

import "fmt"

// GattStatus is the status code delivered with every hardware callback.
// The values mirror the ATT application error codes plus the handful of
// stack-internal codes observed in the wild (0x85 "GATT_ERROR" and the
// link-layer establishment failures).
type GattStatus int

const (
	StatusSuccess              GattStatus = 0x00
	StatusReadNotPermitted     GattStatus = 0x02
	StatusWriteNotPermitted    GattStatus = 0x03
	StatusInsufficientAuthn    GattStatus = 0x05
	StatusRequestNotSupported  GattStatus = 0x06
	StatusInvalidOffset        GattStatus = 0x07
	StatusInsufficientAuthz    GattStatus = 0x08
	StatusInvalidAttrLength    GattStatus = 0x0d
	StatusInsufficientEncrypt  GattStatus = 0x0f
	StatusConnectionTimeout    GattStatus = 0x08 | statusLinkLayer
	StatusTerminatedPeerUser   GattStatus = 0x13 | statusLinkLayer
	StatusTerminatedLocalHost  GattStatus = 0x16 | statusLinkLayer
	StatusFailedToEstablish    GattStatus = 0x3e | statusLinkLayer
	StatusError                GattStatus = 0x85
	StatusConnectionCongested  GattStatus = 0x8f
	StatusOperationCancelled   GattStatus = 0x101
	StatusOperationNotStarted  GattStatus = 0x102
	StatusOperationInterrupted GattStatus = 0x103
)

// Link-layer disconnect reasons share the low code space with ATT errors,
// so they carry a marker bit when surfaced through GattStatus.
const statusLinkLayer GattStatus = 0x200

// LinkStatus converts a raw link-layer disconnect reason to a GattStatus.
func LinkStatus(reason uint8) GattStatus {
	return GattStatus(reason) | statusLinkLayer
}

func (s GattStatus) Success() bool {
	return s == StatusSuccess
}

func (s GattStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusReadNotPermitted:
		return "read not permitted"
	case StatusWriteNotPermitted:
		return "write not permitted"
	case StatusInsufficientAuthn:
		return "insufficient authentication"
	case StatusRequestNotSupported:
		return "request not supported"
	case StatusInvalidOffset:
		return "invalid offset"
	case StatusInsufficientAuthz:
		return "insufficient authorization"
	case StatusInvalidAttrLength:
		return "invalid attribute length"
	case StatusInsufficientEncrypt:
		return "insufficient encryption"
	case StatusConnectionTimeout:
		return "connection timeout"
	case StatusTerminatedPeerUser:
		return "terminated by peer"
	case StatusTerminatedLocalHost:
		return "terminated by local host"
	case StatusFailedToEstablish:
		return "failed to establish connection"
	case StatusError:
		return "gatt stack error"
	case StatusConnectionCongested:
		return "connection congested"
	case StatusOperationCancelled:
		return "operation cancelled"
	case StatusOperationNotStarted:
		return "operation not started"
	case StatusOperationInterrupted:
		return "operation interrupted"
	}
	return fmt.Sprintf("unknown status (0x%02x)", int(s))
}

// ConnectionState tracks the link with the remote device.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Disconnecting
)

func (c ConnectionState) String() string {
	switch c {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	}
	return fmt.Sprintf("unknown connection state (%d)", int(c))
}

// ConnectionStateFromRaw decodes the state value of a raw
// connection-state-changed event.
func ConnectionStateFromRaw(v int) (ConnectionState, bool) {
	switch v {
	case 0:
		return Disconnected, true
	case 1:
		return Connecting, true
	case 2:
		return Connected, true
	case 3:
		return Disconnecting, true
	}
	return Disconnected, false
}

// BondState tracks the pairing lifecycle with the remote device.
type BondState int

const (
	BondNone BondState = iota
	Bonding
	Bonded
)

func (b BondState) String() string {
	switch b {
	case BondNone:
		return "not bonded"
	case Bonding:
		return "bonding"
	case Bonded:
		return "bonded"
	}
	return fmt.Sprintf("unknown bond state (%d)", int(b))
}

// BondStateFromRaw decodes the bond state carried by an OS bonding event.
// Raw values follow the usual 10/11/12 encoding.
func BondStateFromRaw(v int) (BondState, bool) {
	switch v {
	case 10:
		return BondNone, true
	case 11:
		return Bonding, true
	case 12:
		return Bonded, true
	}
	return BondNone, false
}

// Phy is a physical radio layer mode.
type Phy int

const (
	Phy1M    Phy = 1
	Phy2M    Phy = 2
	PhyCoded Phy = 3
)

func (p Phy) String() string {
	switch p {
	case Phy1M:
		return "LE 1M"
	case Phy2M:
		return "LE 2M"
	case PhyCoded:
		return "LE Coded"
	}
	return fmt.Sprintf("unknown phy (%d)", int(p))
}

func (p Phy) Valid() bool {
	return p >= Phy1M && p <= PhyCoded
}

// PhyOptions selects the coding scheme when PhyCoded is in use.
type PhyOptions int

const (
	PhyOptionNone PhyOptions = 0
	PhyOptionS2   PhyOptions = 1
	PhyOptionS8   PhyOptions = 2
)

// WriteMode selects the ATT write flavor for a characteristic write.
type WriteMode int

const (
	WriteWithResponse WriteMode = iota
	WriteWithoutResponse
	WriteSigned
)

func (w WriteMode) String() string {
	switch w {
	case WriteWithResponse:
		return "write with response"
	case WriteWithoutResponse:
		return "write without response"
	case WriteSigned:
		return "signed write"
	}
	return fmt.Sprintf("unknown write mode (%d)", int(w))
}

// ConnectionPriority is a requested connection parameter profile.
type ConnectionPriority int

const (
	PriorityBalanced ConnectionPriority = iota
	PriorityHigh
	PriorityLowPower
)

func (c ConnectionPriority) Valid() bool {
	return c >= PriorityBalanced && c <= PriorityLowPower
}

func (c ConnectionPriority) String() string {
	switch c {
	case PriorityBalanced:
		return "balanced"
	case PriorityHigh:
		return "high"
	case PriorityLowPower:
		return "low power"
	}
	return fmt.Sprintf("unknown priority (%d)", int(c))
}
