package gattc

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Property is the characteristic property bitfield.
type Property uint8

const (
	CharBroadcast   Property = 0x01
	CharRead        Property = 0x02
	CharWriteNR     Property = 0x04
	CharWrite       Property = 0x08
	CharNotify      Property = 0x10
	CharIndicate    Property = 0x20
	CharSignedWrite Property = 0x40
	CharExtended    Property = 0x80
)

func (p Property) String() string {
	flags := []struct {
		bit  Property
		name string
	}{
		{CharBroadcast, "B"},
		{CharRead, "R"},
		{CharWriteNR, "w"},
		{CharWrite, "W"},
		{CharNotify, "N"},
		{CharIndicate, "I"},
		{CharSignedWrite, "S"},
		{CharExtended, "E"},
	}
	var ss []string
	for _, f := range flags {
		if p&f.bit != 0 {
			ss = append(ss, f.name)
		}
	}
	return strings.Join(ss, "")
}

// bluetoothBase is the Bluetooth SIG base UUID used to expand 16 and 32
// bit assigned numbers.
const bluetoothBase = "0000%s-0000-1000-8000-00805f9b34fb"

// ParseUUID parses a full 128 bit UUID or a 16/32 bit assigned-number
// shorthand such as "2902".
func ParseUUID(s string) (uuid.UUID, error) {
	switch len(s) {
	case 4:
		s = fmt.Sprintf(bluetoothBase, s)
	case 8:
		s = fmt.Sprintf("%s-0000-1000-8000-00805f9b34fb", s)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, errors.Wrapf(err, "can't parse uuid %q", s)
	}
	return u, nil
}

// MustParseUUID is ParseUUID for compile-time constants; it panics on error.
func MustParseUUID(s string) uuid.UUID {
	u, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// ClientCharacteristicConfigUUID is the CCCD used to switch
// notifications and indications on and off.
var ClientCharacteristicConfigUUID = MustParseUUID("2902")

// A Descriptor configures the behavior of its characteristic.
type Descriptor struct {
	UUID   uuid.UUID
	Handle uint16
}

// A Characteristic is an addressable attribute of a remote service.
type Characteristic struct {
	UUID        uuid.UUID
	Property    Property
	Handle      uint16
	ValueHandle uint16
	Descriptors []*Descriptor
}

// Descriptor returns the descriptor with the given UUID, or nil.
func (c *Characteristic) Descriptor(u uuid.UUID) *Descriptor {
	for _, d := range c.Descriptors {
		if d.UUID == u {
			return d
		}
	}
	return nil
}

// ClientCharacteristicConfig returns the CCCD of the characteristic, or nil
// when the characteristic does not support subscriptions.
func (c *Characteristic) ClientCharacteristicConfig() *Descriptor {
	return c.Descriptor(ClientCharacteristicConfigUUID)
}

// A Service groups characteristics of the remote device.
type Service struct {
	UUID            uuid.UUID
	Handle          uint16
	EndHandle       uint16
	Characteristics []*Characteristic
}

// Characteristic returns the characteristic with the given UUID, or nil.
func (s *Service) Characteristic(u uuid.UUID) *Characteristic {
	for _, c := range s.Characteristics {
		if c.UUID == u {
			return c
		}
	}
	return nil
}

// Profile is the attribute catalog discovered on a remote device.
type Profile struct {
	Services []*Service
}

// FindService returns the service with the given UUID, or nil.
func (p *Profile) FindService(u uuid.UUID) *Service {
	for _, s := range p.Services {
		if s.UUID == u {
			return s
		}
	}
	return nil
}

// FindCharacteristic searches all services for a characteristic with the
// given UUID and returns the first match, or nil.
func (p *Profile) FindCharacteristic(u uuid.UUID) *Characteristic {
	for _, s := range p.Services {
		if c := s.Characteristic(u); c != nil {
			return c
		}
	}
	return nil
}
