package sim

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rigado/gattc"
	"github.com/rigado/gattc/peripheral"
)

const (
	batteryHandle = 0x0012
	notifyHandle  = 0x0022
	cccdHandle    = 0x0023
)

var (
	batteryUUID = gattc.MustParseUUID("2a19")
	notifyUUID  = gattc.MustParseUUID("2a37")
)

func testDevice() *Device {
	profile := &gattc.Profile{
		Services: []*gattc.Service{
			{
				UUID:      gattc.MustParseUUID("180f"),
				Handle:    0x0010,
				EndHandle: 0x001f,
				Characteristics: []*gattc.Characteristic{{
					UUID:        batteryUUID,
					Property:    gattc.CharRead | gattc.CharWrite,
					Handle:      0x0011,
					ValueHandle: batteryHandle,
				}},
			},
			{
				UUID:      gattc.MustParseUUID("180d"),
				Handle:    0x0020,
				EndHandle: 0x002f,
				Characteristics: []*gattc.Characteristic{{
					UUID:        notifyUUID,
					Property:    gattc.CharNotify,
					Handle:      0x0021,
					ValueHandle: notifyHandle,
					Descriptors: []*gattc.Descriptor{
						{UUID: gattc.ClientCharacteristicConfigUUID, Handle: cccdHandle},
					},
				}},
			},
		},
	}

	d := NewDevice(gattc.NewAddr("AA:BB:CC:DD:EE:FF"), "sim device", profile)
	d.SetValue(batteryHandle, []byte{0x64})
	return d
}

// listener funnels lifecycle callbacks into channels.
type listener struct {
	gattc.NopListener
	connected    chan struct{}
	failed       chan gattc.GattStatus
	disconnected chan gattc.GattStatus
	pin          string
}

func newListener() *listener {
	return &listener{
		connected:    make(chan struct{}, 2),
		failed:       make(chan gattc.GattStatus, 2),
		disconnected: make(chan gattc.GattStatus, 2),
	}
}

func (l *listener) Connected()                       { l.connected <- struct{}{} }
func (l *listener) ConnectFailed(s gattc.GattStatus) { l.failed <- s }
func (l *listener) Disconnected(s gattc.GattStatus)  { l.disconnected <- s }
func (l *listener) PinRequested() string             { return l.pin }

func connect(t *testing.T, p *peripheral.Peripheral, l *listener) {
	t.Helper()
	if err := p.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	select {
	case <-l.connected:
	case s := <-l.failed:
		t.Fatalf("connect failed: %v", s)
	case <-time.After(2 * time.Second):
		t.Fatal("connect never completed")
	}
}

func TestEndToEnd(t *testing.T) {
	dev := testDevice()
	l := newListener()
	p, err := peripheral.New(dev.Addr, dev.Name, &Factory{Device: dev}, l)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	connect(t, p, l)
	if p.Profile() == nil {
		t.Fatal("no profile after connect")
	}

	ctx := context.Background()
	battery := p.Profile().FindCharacteristic(batteryUUID)

	v, err := p.ReadCharacteristic(ctx, battery)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(v, []byte{0x64}) {
		t.Fatalf("battery %x, want 64", v)
	}

	if err := p.WriteCharacteristic(ctx, battery, []byte{0x32}, gattc.WriteWithResponse); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := dev.Value(batteryHandle); !bytes.Equal(got, []byte{0x32}) {
		t.Fatalf("device value %x after write, want 32", got)
	}

	rssi, err := p.ReadRSSI(ctx)
	if err != nil {
		t.Fatalf("rssi: %v", err)
	}
	if rssi != dev.RSSI {
		t.Fatalf("rssi %d, want %d", rssi, dev.RSSI)
	}

	if err := p.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	select {
	case s := <-l.disconnected:
		if s != gattc.StatusSuccess {
			t.Fatalf("disconnect status %v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect never completed")
	}
}

func TestNotifications(t *testing.T) {
	dev := testDevice()
	l := newListener()
	p, err := peripheral.New(dev.Addr, dev.Name, &Factory{Device: dev}, l)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()
	connect(t, p, l)

	hr := p.Profile().FindCharacteristic(notifyUUID)
	notes := make(chan []byte, 4)
	if err := p.Subscribe(context.Background(), hr, func(v []byte) { notes <- v }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if !dev.Notify(notifyHandle, []byte{0x06, 0x48}) {
		t.Fatal("device refused to notify a subscribed handle")
	}
	select {
	case v := <-notes:
		if !bytes.Equal(v, []byte{0x06, 0x48}) {
			t.Fatalf("notification %x", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification never arrived")
	}

	if err := p.Unsubscribe(context.Background(), hr); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if dev.Notify(notifyHandle, []byte{0x06, 0x49}) {
		t.Fatal("device notified an unsubscribed handle")
	}
}

func TestMTUNegotiation(t *testing.T) {
	dev := testDevice()
	dev.GrantedMTU = 185
	l := newListener()
	p, err := peripheral.New(dev.Addr, dev.Name, &Factory{Device: dev}, l)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()
	connect(t, p, l)

	got, err := p.RequestMTU(context.Background(), 517)
	if err != nil {
		t.Fatalf("RequestMTU: %v", err)
	}
	if got != 185 {
		t.Fatalf("granted %d, want device cap 185", got)
	}
	if p.MTU() != 185 {
		t.Fatalf("recorded mtu %d, want 185", p.MTU())
	}
}

func TestConnectFailure(t *testing.T) {
	dev := testDevice()
	dev.FailConnect = gattc.StatusFailedToEstablish
	l := newListener()
	p, err := peripheral.New(dev.Addr, dev.Name, &Factory{Device: dev}, l)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	if err := p.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	select {
	case s := <-l.failed:
		if s != gattc.StatusFailedToEstablish {
			t.Fatalf("failure status %v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("connect failure never reported")
	}
}

func TestBondingWithPin(t *testing.T) {
	dev := testDevice()
	dev.PinCode = "123456"
	w := NewBondWatcher()
	l := newListener()
	l.pin = "123456"
	p, err := peripheral.New(dev.Addr, dev.Name, &Factory{Device: dev, Watcher: w},
		l, gattc.OptBondWatcher(w))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()
	connect(t, p, l)

	if err := p.CreateBond(context.Background()); err != nil {
		t.Fatalf("CreateBond: %v", err)
	}
	if s := p.BondState(); s != gattc.Bonded {
		t.Fatalf("bond state %v, want Bonded", s)
	}
	if s := w.State(dev.Addr); s != gattc.Bonded {
		t.Fatalf("watcher state %v, want Bonded", s)
	}
}

func TestBondingWrongPin(t *testing.T) {
	dev := testDevice()
	dev.PinCode = "123456"
	w := NewBondWatcher()
	l := newListener()
	l.pin = "000000"
	p, err := peripheral.New(dev.Addr, dev.Name, &Factory{Device: dev, Watcher: w},
		l, gattc.OptBondWatcher(w))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()
	connect(t, p, l)

	if err := p.CreateBond(context.Background()); err == nil {
		t.Fatal("bond with wrong pin succeeded")
	}

	// A failed bond drops the connection.
	select {
	case <-l.disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("link survived a failed bond")
	}
}
