package gattc

// GattCache persists discovered attribute catalogs across sessions so a
// reconnect can present a profile before discovery finishes.
type GattCache interface {
	Store(a Addr, p Profile, replace bool) error
	Load(a Addr) (Profile, error)
	Clear() error
}
