// Copyright 2026 The N5 Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/ctrueden/n5/kv"
)

// Container is the loader the cache falls back to on cold entries.
// It is the uncached read surface of the open container; every
// method consults the backend directly.
type Container interface {
	// AttributesFromContainer reads the attribute document at a
	// normalized path. ok is false when no attribute resource exists,
	// which is a normal outcome, not an error.
	AttributesFromContainer(path string) (doc map[string]any, ok bool, err error)

	// ExistsFromContainer reports whether the path exists in the
	// backend, as a group or as a dataset.
	ExistsFromContainer(path string) (bool, error)

	// IsDatasetFromAttributes reports whether an attribute document
	// declares a dataset.
	IsDatasetFromAttributes(doc map[string]any) bool

	// ListFromContainer returns the immediate child names of a path.
	ListFromContainer(path string) ([]string, error)
}

// ErrAbsent is returned by Entry.Update when the entry was
// invalidated by a concurrent deletion before the update could run.
var ErrAbsent = errors.New("cache entry is absent")

// Tri is a three-valued flag for facts that are expensive to derive:
// not yet known, known false, or known true.
type Tri uint8

const (
	TriUnknown Tri = iota
	TriFalse
	TriTrue
)

type state uint8

const (
	statePresent state = iota
	stateAbsent
)

// Entry mirrors one path's metadata. Its attribute document and
// dataset flag are guarded by mu; the children set has its own lock
// so listing and linking children never contend with attribute work.
type Entry struct {
	mu sync.Mutex

	state        state
	dataset      Tri
	attrsLoaded  bool
	attrsPresent bool
	attrs        map[string]any

	childrenMu     sync.Mutex
	childrenLoaded bool
	children       map[string]struct{}
}

func newEntry(s state) *Entry {
	return &Entry{state: s, children: make(map[string]struct{})}
}

func (e *Entry) isAbsent() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == stateAbsent
}

// markAbsent retires the entry: all cached facts are dropped and the
// entry answers "does not exist" until an explicit creation call
// flips it back. Called only while the cache's outer lock is held.
func (e *Entry) markAbsent() {
	e.mu.Lock()
	e.state = stateAbsent
	e.dataset = TriUnknown
	e.attrsLoaded = false
	e.attrsPresent = false
	e.attrs = nil
	e.mu.Unlock()

	e.childrenMu.Lock()
	e.childrenLoaded = false
	e.children = make(map[string]struct{})
	e.childrenMu.Unlock()
}

func (e *Entry) addChild(name string) {
	e.childrenMu.Lock()
	defer e.childrenMu.Unlock()
	e.children[name] = struct{}{}
}

func (e *Entry) removeChild(name string) {
	e.childrenMu.Lock()
	defer e.childrenMu.Unlock()
	delete(e.children, name)
}

// Update gives a writer exclusive access to the entry's attribute
// document and dataset flag for the duration of fn. The entry lock is
// held across fn, so a concurrent reader can never observe a dataset
// flag without the attributes that justify it, or the reverse.
// Backend I/O inside fn is the per-node attribute rewrite this lock
// exists to protect.
//
// Returns ErrAbsent without running fn if the entry was invalidated
// by a concurrent deletion.
func (e *Entry) Update(fn func(u *Update) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == stateAbsent {
		return ErrAbsent
	}
	return fn(&Update{entry: e})
}

// Update is the mutation handle passed to Entry.Update callbacks.
type Update struct {
	entry *Entry
}

// Dataset returns the entry's dataset flag.
func (u *Update) Dataset() Tri { return u.entry.dataset }

// SetDataset records whether the path is a dataset.
func (u *Update) SetDataset(isDataset bool) {
	if isDataset {
		u.entry.dataset = TriTrue
	} else {
		u.entry.dataset = TriFalse
	}
}

// Document returns the cached attribute document and whether it has
// been loaded. An unloaded document must be read from the backend
// before merging.
func (u *Update) Document() (doc map[string]any, loaded bool) {
	return u.entry.attrs, u.entry.attrsLoaded
}

// SetDocument replaces the cached attribute document with the one
// just written to the backend.
func (u *Update) SetDocument(doc map[string]any) {
	u.entry.attrs = doc
	u.entry.attrsPresent = doc != nil
	u.entry.attrsLoaded = true
}

// Cache is the metadata cache of one open container. The zero value
// is not usable; construct with New.
type Cache struct {
	container Container

	mu      sync.Mutex
	entries map[string]*Entry
}

// New returns an empty cache backed by the given container loader.
func New(container Container) *Cache {
	return &Cache{
		container: container,
		entries:   make(map[string]*Entry),
	}
}

func (c *Cache) lookup(path string) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[path]
}

// insert stores a new entry for path unless one exists already, and
// returns the entry that won. A concurrently inserted entry is never
// replaced: it may already carry more cached data than the caller's
// freshly loaded result.
func (c *Cache) insert(path string, s state) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.entries[path]; e != nil {
		return e
	}
	e := newEntry(s)
	c.entries[path] = e
	return e
}

// ensureEntry returns the entry for path, consulting the backend for
// existence when the path has never been cached.
func (c *Cache) ensureEntry(path string) (*Entry, error) {
	if e := c.lookup(path); e != nil {
		return e, nil
	}
	exists, err := c.container.ExistsFromContainer(path)
	if err != nil {
		return nil, err
	}
	s := stateAbsent
	if exists {
		s = statePresent
	}
	return c.insert(path, s), nil
}

// Exists reports whether the path exists, from the cache when the
// answer is known and from the backend otherwise.
func (c *Cache) Exists(path string) (bool, error) {
	e, err := c.ensureEntry(path)
	if err != nil {
		return false, err
	}
	return !e.isAbsent(), nil
}

// GetAttributes returns the attribute document at path. A hit is
// served from the cache; an absent entry answers without touching
// the backend; a cold entry is populated from the container,
// including the "no document" result, which is itself cached.
func (c *Cache) GetAttributes(path string) (map[string]any, bool, error) {
	e := c.lookup(path)
	if e == nil {
		// Cold path: read attributes first, then settle existence.
		// A present document proves existence without a second probe.
		doc, ok, err := c.container.AttributesFromContainer(path)
		if err != nil {
			return nil, false, err
		}
		exists := ok
		if !exists {
			exists, err = c.container.ExistsFromContainer(path)
			if err != nil {
				return nil, false, err
			}
		}
		s := stateAbsent
		if exists {
			s = statePresent
		}
		e = c.insert(path, s)

		e.mu.Lock()
		defer e.mu.Unlock()
		if e.state == stateAbsent {
			return nil, false, nil
		}
		if !e.attrsLoaded {
			e.attrs, e.attrsPresent, e.attrsLoaded = doc, ok, true
		}
		return e.attrs, e.attrsPresent, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == stateAbsent {
		return nil, false, nil
	}
	if err := c.loadAttrsLocked(e, path); err != nil {
		return nil, false, err
	}
	return e.attrs, e.attrsPresent, nil
}

// loadAttrsLocked populates the entry's attribute document from the
// container if it has not been loaded yet. The caller holds e.mu;
// the backend read under the entry lock serializes the load with
// concurrent per-node writes, which is intended.
func (c *Cache) loadAttrsLocked(e *Entry, path string) error {
	if e.attrsLoaded {
		return nil
	}
	doc, ok, err := c.container.AttributesFromContainer(path)
	if err != nil {
		return err
	}
	e.attrs, e.attrsPresent, e.attrsLoaded = doc, ok, true
	return nil
}

// IsDataset reports whether path is a dataset, deriving the flag
// from the attribute document when it is not yet known.
func (c *Cache) IsDataset(path string) (bool, error) {
	e, err := c.ensureEntry(path)
	if err != nil {
		return false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == stateAbsent {
		return false, nil
	}
	if e.dataset == TriUnknown {
		if err := c.loadAttrsLocked(e, path); err != nil {
			return false, err
		}
		if e.attrsPresent && c.container.IsDatasetFromAttributes(e.attrs) {
			e.dataset = TriTrue
		} else {
			e.dataset = TriFalse
		}
	}
	return e.dataset == TriTrue, nil
}

// List returns the sorted immediate child names of path. exists is
// false when the path itself does not exist. Names linked by
// concurrent creations before the first backend listing are unioned
// with the backend's answer, so no child is ever lost.
func (c *Cache) List(path string) (names []string, exists bool, err error) {
	e, err := c.ensureEntry(path)
	if err != nil {
		return nil, false, err
	}
	if e.isAbsent() {
		return nil, false, nil
	}

	e.childrenMu.Lock()
	defer e.childrenMu.Unlock()
	if !e.childrenLoaded {
		listed, err := c.container.ListFromContainer(path)
		if err != nil {
			return nil, true, err
		}
		for _, name := range listed {
			e.children[name] = struct{}{}
		}
		e.childrenLoaded = true
	}
	names = make([]string, 0, len(e.children))
	for name := range e.children {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, true, nil
}

// InsertGroup records the creation of a group at path and returns
// its entry. The caller must already have issued the idempotent
// backend directory creation. The entry for path is inserted only if
// none exists (an absent entry is revived; a richer concurrent entry
// is kept as-is). Each not-yet-cached ancestor gets an empty
// non-dataset entry and is linked into its own parent's children
// set; the upward walk stops at the first already-cached ancestor.
func (c *Cache) InsertGroup(path string) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[path]
	if e == nil {
		e = newEntry(statePresent)
		c.entries[path] = e
	} else if e.isAbsent() {
		e = newEntry(statePresent)
		c.entries[path] = e
	}

	for child := path; child != "" && child != kv.Separator; {
		parent, ok := kv.Parent(child)
		if !ok {
			break
		}
		p := c.entries[parent]
		cached := p != nil && !p.isAbsent()
		if !cached {
			p = newEntry(statePresent)
			p.dataset = TriFalse
			c.entries[parent] = p
		}
		p.addChild(kv.BaseName(child))
		if cached {
			break
		}
		child = parent
	}
	return e
}

// Entry returns the present entry for path, if any. Absent and
// never-cached paths report no entry.
func (c *Cache) Entry(path string) (*Entry, bool) {
	e := c.lookup(path)
	if e == nil || e.isAbsent() {
		return nil, false
	}
	return e, true
}

// Remove runs the backend deletion and the cache invalidation for
// path in one critical section on the outer lock: a concurrent
// reader can never see the cache still reporting existence after the
// backend delete has completed. Every cached path at or below path
// is retired to the absent state via an iterative scan of the cached
// keys, and path's name is unlinked from its parent's children set.
func (c *Cache) Remove(path string, deleteBackend func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := deleteBackend(); err != nil {
		return err
	}

	prefix := path + kv.Separator
	for key, e := range c.entries {
		if path == "" || key == path || strings.HasPrefix(key, prefix) {
			e.markAbsent()
		}
	}

	if path == "" || path == kv.Separator {
		return nil
	}
	parent, ok := kv.Parent(path)
	if !ok {
		return nil
	}
	if p := c.entries[parent]; p != nil && !p.isAbsent() {
		p.removeChild(kv.BaseName(path))
	}
	return nil
}
