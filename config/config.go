// Package config loads peripheral tuning parameters from a YAML file
// and maps them onto gattc options.
package config

import (
	"encoding/hex"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/rigado/gattc"
)

// Duration is a time.Duration that unmarshals from the usual "30s" /
// "300ms" notation. A bare integer is taken as nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return errors.Errorf("can't decode duration from %q", value.Value)
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "can't parse duration %q", s)
	}
	*d = Duration(dd)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config holds the tunable knobs of a peripheral.
type Config struct {
	ConnectTimeout   Duration `yaml:"connect_timeout"`
	CancelGraceDelay Duration `yaml:"cancel_grace_delay"`
	BondSettleDelay  Duration `yaml:"bond_settle_delay"`
	QueueDepth       int      `yaml:"queue_depth"`
	MaxAttempts      int      `yaml:"max_attempts"`
	AutoConnect      bool     `yaml:"auto_connect"`
	AutoBond         bool     `yaml:"auto_bond"`

	Platform PlatformConfig `yaml:"platform"`

	// SignedWriteKey is the hex encoded 16 byte CSRK, if signed writes
	// are used.
	SignedWriteKey string `yaml:"signed_write_key"`

	// ProfileCache is the path of the on-disk profile cache; empty
	// disables caching.
	ProfileCache string `yaml:"profile_cache"`
}

// PlatformConfig describes the host stack.
type PlatformConfig struct {
	ApiLevel     int    `yaml:"api_level"`
	Manufacturer string `yaml:"manufacturer"`
}

// Default returns a Config matching the peripheral's built-in defaults.
func Default() *Config {
	return &Config{
		ConnectTimeout:   Duration(30 * time.Second),
		CancelGraceDelay: Duration(300 * time.Millisecond),
		BondSettleDelay:  Duration(time.Second),
		QueueDepth:       32,
		MaxAttempts:      3,
	}
}

// Load reads and parses a YAML config file. Missing fields keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "can't read config file")
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "can't parse config file")
	}

	return cfg, nil
}

// Options converts the config to peripheral options. The cacheFactory
// turns the profile cache path into a GattCache; pass nil to ignore the
// cache setting.
func (c *Config) Options(cacheFactory func(path string) gattc.GattCache) ([]gattc.Option, error) {
	var opts []gattc.Option

	if c.ConnectTimeout > 0 {
		opts = append(opts, gattc.OptConnectTimeout(time.Duration(c.ConnectTimeout)))
	}
	if c.CancelGraceDelay > 0 {
		opts = append(opts, gattc.OptCancelGraceDelay(time.Duration(c.CancelGraceDelay)))
	}
	if c.BondSettleDelay > 0 {
		opts = append(opts, gattc.OptBondSettleDelay(time.Duration(c.BondSettleDelay)))
	}
	if c.QueueDepth > 0 {
		opts = append(opts, gattc.OptQueueDepth(c.QueueDepth))
	}
	if c.MaxAttempts > 0 {
		opts = append(opts, gattc.OptMaxAttempts(c.MaxAttempts))
	}
	opts = append(opts,
		gattc.OptAutoConnect(c.AutoConnect),
		gattc.OptAutoBond(c.AutoBond),
		gattc.OptPlatformInfo(gattc.PlatformInfo{
			ApiLevel:     c.Platform.ApiLevel,
			Manufacturer: c.Platform.Manufacturer,
		}),
	)

	if c.SignedWriteKey != "" {
		csrk, err := hex.DecodeString(c.SignedWriteKey)
		if err != nil {
			return nil, errors.Wrap(err, "can't decode signed write key")
		}
		opts = append(opts, gattc.OptSignedWriteKey(csrk))
	}

	if c.ProfileCache != "" && cacheFactory != nil {
		opts = append(opts, gattc.OptGattCache(cacheFactory(c.ProfileCache)))
	}

	return opts, nil
}
