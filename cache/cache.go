// Package cache persists receive state snapshots to a JSON file.
package cache

import (
	"io/ioutil"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/rigado/bass"
)

const version = 1

type cacheFile struct {
	Version int                 `json:"version"`
	Sources []bass.ReceiveState `json:"sources"`
}

type sourceCache struct {
	filename string
	lock     sync.RWMutex
}

// New returns a SourceCache backed by filename.
func New(filename string) bass.SourceCache {
	return &sourceCache{filename: filename}
}

func (sc *sourceCache) Store(states []bass.ReceiveState) error {
	sc.lock.Lock()
	defer sc.lock.Unlock()

	if states == nil {
		states = []bass.ReceiveState{}
	}
	out, err := jsoniter.Marshal(cacheFile{Version: version, Sources: states})
	if err != nil {
		return errors.Wrap(err, "can't encode sources")
	}

	// replace atomically
	tmp := sc.filename + ".tmp"
	if err := ioutil.WriteFile(tmp, out, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, sc.filename)
}

// Load returns the stored states. A missing file holds no states.
func (sc *sourceCache) Load() ([]bass.ReceiveState, error) {
	sc.lock.RLock()
	defer sc.lock.RUnlock()

	in, err := ioutil.ReadFile(sc.filename)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cf cacheFile
	if err := jsoniter.Unmarshal(in, &cf); err != nil {
		return nil, errors.Wrapf(err, "can't decode %s", sc.filename)
	}
	if cf.Version != version {
		return nil, errors.Errorf("%s: unsupported version %d", sc.filename, cf.Version)
	}
	return cf.Sources, nil
}

func (sc *sourceCache) Clear() error {
	sc.lock.Lock()
	defer sc.lock.Unlock()

	err := os.Remove(sc.filename)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
