package gattc

import "testing"

func TestLinkStatus(t *testing.T) {
	if got := LinkStatus(0x08); got != StatusConnectionTimeout {
		t.Fatalf("LinkStatus(0x08) = %v, want connection timeout", got)
	}
	if got := LinkStatus(0x13); got != StatusTerminatedPeerUser {
		t.Fatalf("LinkStatus(0x13) = %v, want terminated by peer", got)
	}
	if got := LinkStatus(0x3e); got != StatusFailedToEstablish {
		t.Fatalf("LinkStatus(0x3e) = %v, want failed to establish", got)
	}

	// The marker bit keeps link-layer reasons apart from the ATT error
	// sharing the same low value.
	if LinkStatus(0x08) == StatusInsufficientAuthz {
		t.Fatal("link-layer 0x08 collides with ATT 0x08")
	}
}

func TestStatusSuccess(t *testing.T) {
	if !StatusSuccess.Success() {
		t.Fatal("StatusSuccess not successful")
	}
	for _, s := range []GattStatus{
		StatusError,
		StatusConnectionCongested,
		StatusConnectionTimeout,
		StatusOperationCancelled,
	} {
		if s.Success() {
			t.Fatalf("%v reported success", s)
		}
	}
}

func TestConnectionStateFromRaw(t *testing.T) {
	cases := []struct {
		raw  int
		want ConnectionState
		ok   bool
	}{
		{0, Disconnected, true},
		{1, Connecting, true},
		{2, Connected, true},
		{3, Disconnecting, true},
		{4, Disconnected, false},
		{-1, Disconnected, false},
	}
	for _, c := range cases {
		got, ok := ConnectionStateFromRaw(c.raw)
		if got != c.want || ok != c.ok {
			t.Errorf("ConnectionStateFromRaw(%d) = %v, %v; want %v, %v",
				c.raw, got, ok, c.want, c.ok)
		}
	}
}

func TestBondStateFromRaw(t *testing.T) {
	cases := []struct {
		raw  int
		want BondState
		ok   bool
	}{
		{10, BondNone, true},
		{11, Bonding, true},
		{12, Bonded, true},
		{9, BondNone, false},
		{13, BondNone, false},
	}
	for _, c := range cases {
		got, ok := BondStateFromRaw(c.raw)
		if got != c.want || ok != c.ok {
			t.Errorf("BondStateFromRaw(%d) = %v, %v; want %v, %v",
				c.raw, got, ok, c.want, c.ok)
		}
	}
}

func TestPhyValid(t *testing.T) {
	for _, p := range []Phy{Phy1M, Phy2M, PhyCoded} {
		if !p.Valid() {
			t.Errorf("%v not valid", p)
		}
	}
	if Phy(0).Valid() || Phy(4).Valid() {
		t.Error("out-of-range phy accepted")
	}
}

func TestConnectionPriorityValid(t *testing.T) {
	for _, p := range []ConnectionPriority{PriorityBalanced, PriorityHigh, PriorityLowPower} {
		if !p.Valid() {
			t.Errorf("%v not valid", p)
		}
	}
	if ConnectionPriority(-1).Valid() || ConnectionPriority(3).Valid() {
		t.Error("out-of-range priority accepted")
	}
}
