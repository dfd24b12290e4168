// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"encoding/json"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"
)

// componentCache is the process-level two-level cache for parsed Comp
// values.
//
// Level 1 is an in-memory map from absolute .comp path to (mtime in
// nanoseconds, Comp); a hit requires the stored mtime to match a fresh
// stat, stale entries are evicted. Level 2 is a JSON sidecar
// {name}.comp.json next to the source, decoded when its mtime is not
// older than the source's. Sidecar writes are best effort; corrupt
// sidecars are deleted and the component re-parsed.
//
// A singleflight group serialises concurrent parse-and-store of the same
// path so two readers never race on lookup-then-store.
type componentCacheT struct {
	mu        sync.Mutex
	store     map[string]cachedComp
	overrides map[string]string
	group     singleflight.Group
}

type cachedComp struct {
	mtimeNS int64
	comp    *Comp
}

var componentCache = &componentCacheT{
	store:     make(map[string]cachedComp),
	overrides: make(map[string]string),
}

// ComponentCacheLen returns the number of in-memory entries, used by
// tests and diagnostics.
func ComponentCacheLen() int {
	componentCache.mu.Lock()
	defer componentCache.mu.Unlock()
	return len(componentCache.store)
}

// ClearComponentCache flushes the in-memory layer. Disk sidecars are
// preserved and reload on next access.
func ClearComponentCache() {
	componentCache.mu.Lock()
	defer componentCache.mu.Unlock()
	componentCache.store = make(map[string]cachedComp)
}

func sidecarPath(compPath string) string { return compPath + ".json" }

// get returns the cached component for path, consulting memory first and
// the disk sidecar second.
func (c *componentCacheT) get(path string) *Comp {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	mtime := info.ModTime().UnixNano()

	c.mu.Lock()
	if entry, ok := c.store[path]; ok {
		if entry.mtimeNS == mtime {
			c.mu.Unlock()
			return entry.comp
		}
		delete(c.store, path)
	}
	c.mu.Unlock()

	sidecar := sidecarPath(path)
	sinfo, err := os.Stat(sidecar)
	if err != nil || sinfo.ModTime().UnixNano() < mtime {
		return nil
	}
	raw, err := os.ReadFile(sidecar)
	if err != nil {
		return nil
	}
	comp := &Comp{}
	if err := json.Unmarshal(raw, comp); err != nil || comp.Name == "" {
		// Corrupt sidecar: discard silently and fall through to a parse.
		_ = os.Remove(sidecar)
		return nil
	}
	c.mu.Lock()
	c.store[path] = cachedComp{mtimeNS: mtime, comp: comp}
	c.mu.Unlock()
	return comp
}

// put stores the component in memory and writes the disk sidecar. An I/O
// failure on the sidecar write never fails the operation.
func (c *componentCacheT) put(path string, comp *Comp) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.store[path] = cachedComp{mtimeNS: info.ModTime().UnixNano(), comp: comp}
	c.mu.Unlock()
	if raw, err := json.Marshal(comp); err == nil {
		_ = os.WriteFile(sidecarPath(path), raw, 0o644)
	}
}

// evict drops a single in-memory entry; the sidecar is preserved.
func (c *componentCacheT) evict(path string) {
	c.mu.Lock()
	delete(c.store, path)
	c.mu.Unlock()
}

// loadOrParse returns the cached component at path, or runs parse and
// stores the result. Concurrent callers for the same path share a single
// parse.
func (c *componentCacheT) loadOrParse(path string, parse func() (*Comp, error)) (*Comp, error) {
	v, err, _ := c.group.Do(path, func() (interface{}, error) {
		if comp := c.get(path); comp != nil {
			return comp, nil
		}
		comp, err := parse()
		if err != nil {
			return nil, err
		}
		c.put(path, comp)
		return comp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Comp), nil
}

// overrideSource stores live source text for a component name. All
// readers return it from Contents in preference to on-disk files.
func (c *componentCacheT) overrideSource(name, source string) {
	c.mu.Lock()
	c.overrides[name] = source
	c.mu.Unlock()
}

func (c *componentCacheT) clearOverride(name string) {
	c.mu.Lock()
	delete(c.overrides, name)
	c.mu.Unlock()
}

func (c *componentCacheT) getOverride(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.overrides[name]
	return s, ok
}
