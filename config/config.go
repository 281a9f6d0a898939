// Package config loads ndnctl's TOML configuration file, grounded on the
// corpus's own convention of a small struct decoded straight out of a TOML
// file via BurntSushi/toml (the same library dolt and erigon-adjacent
// tooling in the example pack use for CLI config).
package config

import (
	"github.com/BurntSushi/toml"

	"github.com/buckyos/ndn-core/ndnerr"
)

// Config is ndnctl's on-disk configuration.
type Config struct {
	Store struct {
		Backend string `toml:"backend"` // "disk", "badger", or "mem"
		Path    string `toml:"path"`
		CacheSize int  `toml:"cache_size"`
	} `toml:"store"`

	Relation struct {
		DbPath string `toml:"db_path"`
	} `toml:"relation"`

	Client struct {
		BaseURL string `toml:"base_url"`
	} `toml:"client"`

	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

func Default() Config {
	var c Config
	c.Store.Backend = "disk"
	c.Store.Path = "./ndn-data"
	c.Store.CacheSize = 256
	c.Relation.DbPath = "./ndn-data/relations.sqlite"
	c.Log.Level = "info"
	return c
}

func Load(path string) (Config, error) {
	c := Default()
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Config{}, ndnerr.Wrap(ndnerr.IoError, "load config file failed", err)
	}
	return c, nil
}
