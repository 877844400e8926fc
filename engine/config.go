// Package engine wires every subsystem — buffer pool, catalog, lock
// manager, transaction manager, redo log — behind one Handle rather than
// package-level global state. Config loads the handful of storage tuning
// knobs from an ini file, the way server/conf.Cfg loads mysqld.cnf.
package engine

import (
	"time"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

// Config bundles the tuning parameters a Handle needs to open.
type Config struct {
	DataDir         string
	BufferPoolPages int
	LockWaitTimeout time.Duration
	PageChecksums   bool
}

// DefaultConfig returns sane defaults rooted at dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:         dataDir,
		BufferPoolPages: 256,
		LockWaitTimeout: 50 * time.Millisecond,
		PageChecksums:   true,
	}
}

// LoadConfig reads the "[storage]" section of an ini file at path,
// overlaying DefaultConfig(dataDir) with whatever keys are present,
// following a section.GetKey()-then-parse shape
// (server/conf/config.go's parseMysqldCfg).
func LoadConfig(path, dataDir string) (Config, error) {
	cfg := DefaultConfig(dataDir)

	raw, err := ini.Load(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "engine: load config")
	}
	section := raw.Section("storage")

	if key, err := section.GetKey("data_dir"); err == nil {
		cfg.DataDir = key.Value()
	}
	if key, err := section.GetKey("buffer_pool_pages"); err == nil {
		cfg.BufferPoolPages = key.MustInt(cfg.BufferPoolPages)
	}
	if key, err := section.GetKey("lock_wait_timeout"); err == nil {
		d, err := time.ParseDuration(key.Value())
		if err != nil {
			return Config{}, errors.Wrap(err, "engine: parse lock_wait_timeout")
		}
		cfg.LockWaitTimeout = d
	}
	if key, err := section.GetKey("page_checksums"); err == nil {
		cfg.PageChecksums = key.MustBool(cfg.PageChecksums)
	}
	return cfg, nil
}
