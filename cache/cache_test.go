// Copyright 2026 The N5 Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"fmt"
	"slices"
	"sync"
	"testing"
)

// fakeContainer is an in-memory Container that counts backend calls,
// so tests can assert which operations hit the backend and which are
// answered from the cache.
type fakeContainer struct {
	mu       sync.Mutex
	attrs    map[string]map[string]any
	present  map[string]bool
	children map[string][]string

	attrCalls   map[string]int
	existsCalls map[string]int
	listCalls   map[string]int
}

func newFakeContainer() *fakeContainer {
	return &fakeContainer{
		attrs:       make(map[string]map[string]any),
		present:     make(map[string]bool),
		children:    make(map[string][]string),
		attrCalls:   make(map[string]int),
		existsCalls: make(map[string]int),
		listCalls:   make(map[string]int),
	}
}

func (f *fakeContainer) AttributesFromContainer(path string) (map[string]any, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attrCalls[path]++
	doc, ok := f.attrs[path]
	return doc, ok, nil
}

func (f *fakeContainer) ExistsFromContainer(path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsCalls[path]++
	return f.present[path], nil
}

func (f *fakeContainer) IsDatasetFromAttributes(doc map[string]any) bool {
	_, hasDimensions := doc["dimensions"]
	_, hasDataType := doc["dataType"]
	return hasDimensions && hasDataType
}

func (f *fakeContainer) ListFromContainer(path string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls[path]++
	return slices.Clone(f.children[path]), nil
}

func (f *fakeContainer) backendCalls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attrCalls[path] + f.existsCalls[path] + f.listCalls[path]
}

func TestGetAttributesPopulatesOnce(t *testing.T) {
	backend := newFakeContainer()
	backend.present["g"] = true
	backend.attrs["g"] = map[string]any{"a": float64(1)}
	c := New(backend)

	for n := 0; n < 3; n++ {
		doc, ok, err := c.GetAttributes("g")
		if err != nil {
			t.Fatalf("GetAttributes failed: %v", err)
		}
		if !ok || doc["a"] != float64(1) {
			t.Fatalf("GetAttributes = %v, %v", doc, ok)
		}
	}
	if calls := backend.backendCalls("g"); calls != 1 {
		t.Errorf("backend consulted %d times, want 1", calls)
	}
}

func TestAbsentIsCached(t *testing.T) {
	backend := newFakeContainer()
	c := New(backend)

	if _, ok, _ := c.GetAttributes("missing"); ok {
		t.Fatal("missing path should have no attributes")
	}
	first := backend.backendCalls("missing")

	// Repeated queries are answered from the absent entry without
	// touching the backend again.
	for n := 0; n < 3; n++ {
		if _, ok, _ := c.GetAttributes("missing"); ok {
			t.Fatal("missing path should stay absent")
		}
		if exists, _ := c.Exists("missing"); exists {
			t.Fatal("missing path should not exist")
		}
		if ds, _ := c.IsDataset("missing"); ds {
			t.Fatal("missing path should not be a dataset")
		}
	}
	if calls := backend.backendCalls("missing"); calls != first {
		t.Errorf("absent entry still hit the backend: %d calls, want %d", calls, first)
	}
}

func TestExistingGroupWithoutDocument(t *testing.T) {
	backend := newFakeContainer()
	backend.present["g"] = true
	c := New(backend)

	doc, ok, err := c.GetAttributes("g")
	if err != nil {
		t.Fatalf("GetAttributes failed: %v", err)
	}
	if ok || doc != nil {
		t.Error("group without attribute resource should report no document")
	}
	if exists, _ := c.Exists("g"); !exists {
		t.Error("group should still exist")
	}
}

func TestIsDatasetDerivedFromAttributes(t *testing.T) {
	backend := newFakeContainer()
	backend.present["ds"] = true
	backend.attrs["ds"] = map[string]any{"dimensions": []any{float64(2)}, "dataType": "uint8"}
	backend.present["g"] = true
	backend.attrs["g"] = map[string]any{"note": "plain group"}
	c := New(backend)

	if ds, err := c.IsDataset("ds"); err != nil || !ds {
		t.Errorf("IsDataset(ds) = %v, %v, want true", ds, err)
	}
	if ds, err := c.IsDataset("g"); err != nil || ds {
		t.Errorf("IsDataset(g) = %v, %v, want false", ds, err)
	}

	// The derived flag is cached: no further backend traffic.
	before := backend.backendCalls("ds")
	c.IsDataset("ds")
	if backend.backendCalls("ds") != before {
		t.Error("cached dataset flag should not hit the backend")
	}
}

func TestListUnionsPendingChildren(t *testing.T) {
	backend := newFakeContainer()
	backend.present["g"] = true
	backend.children["g"] = []string{"old"}
	c := New(backend)

	// A concurrent creation links a child before the first listing.
	c.InsertGroup("g/new")

	names, exists, err := c.List("g")
	if err != nil || !exists {
		t.Fatalf("List failed: %v, exists=%v", err, exists)
	}
	if !slices.Equal(names, []string{"new", "old"}) {
		t.Errorf("List = %v, want [new old]", names)
	}
}

func TestInsertGroupAncestorWalk(t *testing.T) {
	backend := newFakeContainer()
	c := New(backend)

	c.InsertGroup("a/b/c")

	for _, path := range []string{"", "a", "a/b", "a/b/c"} {
		if exists, _ := c.Exists(path); !exists {
			t.Errorf("%q should exist after InsertGroup", path)
		}
	}
	if calls := backend.backendCalls("a"); calls != 0 {
		t.Errorf("InsertGroup hit the backend %d times", calls)
	}

	names, _, _ := c.List("a")
	if !slices.Equal(names, []string{"b"}) {
		t.Errorf("children of a = %v, want [b]", names)
	}
}

func TestInsertGroupKeepsRicherEntry(t *testing.T) {
	backend := newFakeContainer()
	backend.present["a/b"] = true
	backend.attrs["a/b"] = map[string]any{"keep": true}
	c := New(backend)

	// Populate a/b with attributes, then create a child of it.
	if _, ok, _ := c.GetAttributes("a/b"); !ok {
		t.Fatal("setup: attributes should load")
	}
	c.InsertGroup("a/b/c")

	// The richer a/b entry survived the walk: its attributes are
	// still cached and the backend was not consulted again.
	before := backend.backendCalls("a/b")
	doc, ok, _ := c.GetAttributes("a/b")
	if !ok || doc["keep"] != true {
		t.Error("InsertGroup clobbered a populated ancestor entry")
	}
	if backend.backendCalls("a/b") != before {
		t.Error("attributes should still be cached after InsertGroup")
	}
}

func TestRemoveInvalidatesSubtree(t *testing.T) {
	backend := newFakeContainer()
	for _, p := range []string{"tree", "tree/a", "tree/a/b", "treeline"} {
		backend.present[p] = true
		backend.attrs[p] = map[string]any{"p": p}
	}
	c := New(backend)
	for _, p := range []string{"tree", "tree/a", "tree/a/b", "treeline"} {
		c.GetAttributes(p)
	}
	c.InsertGroup("tree")
	c.InsertGroup("treeline")

	deleted := false
	err := c.Remove("tree", func() error {
		deleted = true
		return nil
	})
	if err != nil || !deleted {
		t.Fatalf("Remove failed: %v, deleted=%v", err, deleted)
	}

	// The subtree is absent and answered without backend traffic.
	for _, p := range []string{"tree", "tree/a", "tree/a/b"} {
		before := backend.backendCalls(p)
		if exists, _ := c.Exists(p); exists {
			t.Errorf("%q should be absent after Remove", p)
		}
		if _, ok, _ := c.GetAttributes(p); ok {
			t.Errorf("%q should have no attributes after Remove", p)
		}
		if backend.backendCalls(p) != before {
			t.Errorf("%q should be answered from the absent entry", p)
		}
	}

	// A sibling sharing the name prefix is untouched.
	if exists, _ := c.Exists("treeline"); !exists {
		t.Error("treeline should survive removing tree")
	}

	// The parent's children no longer include the removed name.
	names, _, _ := c.List("")
	if slices.Contains(names, "tree") {
		t.Errorf("root children still contain tree: %v", names)
	}
}

func TestRemoveBackendFailureKeepsCache(t *testing.T) {
	backend := newFakeContainer()
	backend.present["g"] = true
	c := New(backend)
	c.GetAttributes("g")

	err := c.Remove("g", func() error { return fmt.Errorf("backend unreachable") })
	if err == nil {
		t.Fatal("Remove should surface the backend failure")
	}
	if exists, _ := c.Exists("g"); !exists {
		t.Error("failed delete must not invalidate the entry")
	}
}

func TestUpdateAfterRemoveFails(t *testing.T) {
	backend := newFakeContainer()
	c := New(backend)
	entry := c.InsertGroup("g")

	if err := c.Remove("g", func() error { return nil }); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	err := entry.Update(func(u *Update) error {
		t.Error("update callback must not run on an absent entry")
		return nil
	})
	if err != ErrAbsent {
		t.Errorf("Update after Remove = %v, want ErrAbsent", err)
	}
}

func TestUpdateSetsDocumentAndFlag(t *testing.T) {
	backend := newFakeContainer()
	c := New(backend)
	entry := c.InsertGroup("ds")

	err := entry.Update(func(u *Update) error {
		if _, loaded := u.Document(); loaded {
			t.Error("fresh entry should have no loaded document")
		}
		u.SetDocument(map[string]any{"dimensions": []any{float64(4)}, "dataType": "uint8"})
		u.SetDataset(true)
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	doc, ok, _ := c.GetAttributes("ds")
	if !ok || doc["dataType"] != "uint8" {
		t.Errorf("GetAttributes after Update = %v, %v", doc, ok)
	}
	if ds, _ := c.IsDataset("ds"); !ds {
		t.Error("IsDataset should be true after Update")
	}
	if calls := backend.backendCalls("ds"); calls != 0 {
		t.Errorf("cached update should not hit the backend, got %d calls", calls)
	}
}

func TestConcurrentInsertGroupSamePath(t *testing.T) {
	backend := newFakeContainer()
	c := New(backend)

	var wg sync.WaitGroup
	for n := 0; n < 100; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.InsertGroup("a/b/c/d")
		}()
	}
	wg.Wait()

	wantChildren := map[string][]string{
		"":      {"a"},
		"a":     {"b"},
		"a/b":   {"c"},
		"a/b/c": {"d"},
	}
	for parent, want := range wantChildren {
		names, exists, err := c.List(parent)
		if err != nil || !exists {
			t.Fatalf("List(%q) failed: %v, exists=%v", parent, err, exists)
		}
		if !slices.Equal(names, want) {
			t.Errorf("children of %q = %v, want %v", parent, names, want)
		}
	}
}

func TestConcurrentInsertGroupDistinctPaths(t *testing.T) {
	backend := newFakeContainer()
	c := New(backend)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.InsertGroup(fmt.Sprintf("parent/child%02d", i))
		}(i)
	}
	wg.Wait()

	names, _, err := c.List("parent")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 50 {
		t.Errorf("parent has %d children, want 50: %v", len(names), names)
	}
}
