// Package cache persists discovered GATT profiles to disk so a
// reconnecting peripheral can present its attribute catalog before
// service discovery finishes.
package cache

import (
	"io/ioutil"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/rigado/gattc"
)

type profileCache struct {
	filename string
	lock     sync.RWMutex
}

// New returns a file backed gattc.GattCache.
func New(filename string) gattc.GattCache {
	return &profileCache{filename: filename}
}

func (pc *profileCache) Store(a gattc.Addr, p gattc.Profile, replace bool) error {
	pc.lock.Lock()
	defer pc.lock.Unlock()

	cache, err := pc.loadExisting()
	if err != nil {
		return err
	}

	if _, ok := cache[a.String()]; ok && !replace {
		return errors.Errorf("cache already contains profile for %s", a.String())
	}

	cache[a.String()] = p

	return pc.storeCache(cache)
}

func (pc *profileCache) Load(a gattc.Addr) (gattc.Profile, error) {
	pc.lock.RLock()
	defer pc.lock.RUnlock()

	cache, err := pc.loadExisting()
	if err != nil {
		return gattc.Profile{}, err
	}

	p, ok := cache[a.String()]
	if !ok {
		return gattc.Profile{}, errors.Errorf("profile for %s not found in cache", a.String())
	}

	return p, nil
}

func (pc *profileCache) Clear() error {
	pc.lock.Lock()
	defer pc.lock.Unlock()

	err := os.Remove(pc.filename)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

func (pc *profileCache) loadExisting() (map[string]gattc.Profile, error) {
	_, err := os.Stat(pc.filename)
	if os.IsNotExist(err) {
		return map[string]gattc.Profile{}, nil
	}

	in, err := ioutil.ReadFile(pc.filename)
	if err != nil {
		return nil, err
	}

	var cache map[string]gattc.Profile
	if err := jsoniter.Unmarshal(in, &cache); err != nil {
		return nil, errors.Wrap(err, "can't decode profile cache")
	}

	return cache, nil
}

func (pc *profileCache) storeCache(cache map[string]gattc.Profile) error {
	out, err := jsoniter.Marshal(cache)
	if err != nil {
		return err
	}

	return ioutil.WriteFile(pc.filename, out, 0644)
}
