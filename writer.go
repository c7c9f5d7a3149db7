// Copyright 2026 The N5 Authors
// SPDX-License-Identifier: Apache-2.0

package n5

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/ctrueden/n5/attrjson"
	"github.com/ctrueden/n5/cache"
	"github.com/ctrueden/n5/kv"
)

// Writer is the mutation surface of an open container. Every write
// keeps the metadata cache, when enabled, consistent with the
// backend.
type Writer interface {
	Reader

	// CreateGroup creates the group at path and all missing
	// ancestors. Idempotent; re-creating an existing dataset's path
	// leaves its dataset-ness untouched.
	CreateGroup(path string) error

	// CreateDataset creates the group at path and merges the
	// dataset's structural attributes into its document.
	CreateDataset(path string, attrs *DatasetAttributes) error

	// SetAttributes deep-merges attrs into the node's document.
	// Keys absent from attrs are preserved. Fails with ErrNotExist
	// when the node has not been created.
	SetAttributes(path string, attrs map[string]any) error

	// RemoveAttribute removes the attribute addressed by key. The
	// root attribute path clears the whole document. Returns whether
	// anything was removed; a no-op is not an error.
	RemoveAttribute(path, key string) (bool, error)

	// RemoveAttributeValue removes the attribute addressed by key
	// and returns the removed raw value.
	RemoveAttributeValue(path, key string) (json.RawMessage, bool, error)

	// RemoveAttributes removes each key independently, reporting
	// whether any was removed.
	RemoveAttributes(path string, keys []string) (bool, error)

	// WriteBlock writes one block of a dataset. Blocks are
	// independent resources; writing one never touches another or
	// the attribute document.
	WriteBlock(path string, attrs *DatasetAttributes, block *DataBlock) error

	// DeleteBlock deletes the block at a grid position. A missing
	// block is a no-op.
	DeleteBlock(path string, gridPosition ...int64) error

	// Remove deletes the node and its whole subtree, and retires
	// every cached descendant.
	Remove(path string) error
}

// KeyValueWriter writes an N5 container through a kv.KeyValueAccess
// backend.
type KeyValueWriter struct {
	*KeyValueReader
}

var _ Writer = (*KeyValueWriter)(nil)

// OpenWriter opens the container rooted at basePath, creating it if
// absent, and stamps the root document with the current format
// version. Opening a container stamped with an incompatible major
// version fails before any attribute is touched.
func OpenWriter(kva kv.KeyValueAccess, basePath string, cfg Config) (*KeyValueWriter, error) {
	base := kva.Normalize(basePath)
	if err := kva.CreateDirectories(base); err != nil {
		return nil, storeErr("create container", "", err)
	}
	reader, err := OpenReader(kva, base, cfg)
	if err != nil {
		return nil, err
	}
	w := &KeyValueWriter{KeyValueReader: reader}
	if err := w.CreateGroup(""); err != nil {
		return nil, err
	}
	if err := w.stampVersion(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *KeyValueWriter) stampVersion() error {
	stored, stamped, err := w.Version()
	if err != nil {
		return err
	}
	if stamped && stored == Current {
		return nil
	}
	w.logger.Debug("stamping container version",
		"stored", stored, "stamped", stamped, "version", Current)
	return w.SetAttributes("", map[string]any{VersionKey: Current.String()})
}

func (w *KeyValueWriter) CreateGroup(path string) error {
	path = NormalizeGroupPath(path)
	if err := w.kva.CreateDirectories(w.groupPath(path)); err != nil {
		return storeErr("create group", path, err)
	}
	if !w.cacheMeta {
		return nil
	}
	entry := w.cache.InsertGroup(path)
	// A fresh entry becomes a known non-dataset; an entry already
	// known to be a dataset is left alone.
	return entry.Update(func(u *cache.Update) error {
		if u.Dataset() == cache.TriUnknown {
			u.SetDataset(false)
		}
		return nil
	})
}

func (w *KeyValueWriter) CreateDataset(path string, attrs *DatasetAttributes) error {
	path = NormalizeGroupPath(path)
	if err := attrs.Validate(); err != nil {
		return storeErr("create dataset", path, err)
	}
	fragment, err := attrs.Document()
	if err != nil {
		return storeErr("create dataset", path, err)
	}
	if err := w.CreateGroup(path); err != nil {
		return err
	}

	if !w.cacheMeta {
		_, err := w.writeAttributesUncached(path, fragment)
		return err
	}
	entry, ok := w.cache.Entry(path)
	if !ok {
		return storeErr("create dataset", path, ErrNotExist)
	}
	// The dataset flag and the attributes that justify it change
	// under one entry lock: no reader sees one without the other.
	err = entry.Update(func(u *cache.Update) error {
		merged, err := w.mergeAndWriteLocked(path, u, fragment)
		if err != nil {
			return err
		}
		u.SetDocument(merged)
		u.SetDataset(true)
		return nil
	})
	if errors.Is(err, cache.ErrAbsent) {
		return storeErr("create dataset", path, ErrNotExist)
	}
	return err
}

func (w *KeyValueWriter) SetAttributes(path string, attrs map[string]any) error {
	path = NormalizeGroupPath(path)
	exists, err := w.Exists(path)
	if err != nil {
		return err
	}
	if !exists {
		return storeErr("set attributes", path, ErrNotExist)
	}

	if !w.cacheMeta {
		_, err := w.writeAttributesUncached(path, attrs)
		return err
	}
	entry, ok := w.cache.Entry(path)
	if !ok {
		return storeErr("set attributes", path, ErrNotExist)
	}
	err = entry.Update(func(u *cache.Update) error {
		merged, err := w.mergeAndWriteLocked(path, u, attrs)
		if err != nil {
			return err
		}
		u.SetDocument(merged)
		_, isDataset := ParseDatasetAttributes(merged)
		u.SetDataset(isDataset)
		return nil
	})
	if errors.Is(err, cache.ErrAbsent) {
		return storeErr("set attributes", path, ErrNotExist)
	}
	return err
}

func (w *KeyValueWriter) RemoveAttribute(path, key string) (bool, error) {
	_, removed, err := w.RemoveAttributeValue(path, key)
	return removed, err
}

func (w *KeyValueWriter) RemoveAttributeValue(path, key string) (json.RawMessage, bool, error) {
	path = NormalizeGroupPath(path)
	attributePath := NormalizeAttributePath(key)
	exists, err := w.Exists(path)
	if err != nil {
		return nil, false, err
	}
	if !exists {
		return nil, false, storeErr("remove attribute", path, ErrNotExist)
	}

	if !w.cacheMeta {
		return w.removeAttributeUncached(path, attributePath)
	}

	entry, present := w.cache.Entry(path)
	if !present {
		return nil, false, storeErr("remove attribute", path, ErrNotExist)
	}
	var removed json.RawMessage
	var anything bool
	err = entry.Update(func(u *cache.Update) error {
		current, err := w.documentLocked(path, u)
		if err != nil {
			return err
		}
		next, raw, ok := removeFromDocument(current, attributePath)
		if !ok {
			return nil
		}
		if err := w.writeDocument(path, next); err != nil {
			return err
		}
		u.SetDocument(next)
		_, isDataset := ParseDatasetAttributes(next)
		u.SetDataset(isDataset)
		removed, anything = raw, true
		return nil
	})
	if errors.Is(err, cache.ErrAbsent) {
		return nil, false, storeErr("remove attribute", path, ErrNotExist)
	}
	return removed, anything, err
}

func (w *KeyValueWriter) RemoveAttributes(path string, keys []string) (bool, error) {
	removedAny := false
	for _, key := range keys {
		removed, err := w.RemoveAttribute(path, key)
		if err != nil {
			return removedAny, err
		}
		removedAny = removedAny || removed
	}
	return removedAny, nil
}

func (w *KeyValueWriter) WriteBlock(path string, attrs *DatasetAttributes, block *DataBlock) error {
	blockPath := w.DataBlockPath(path, block.GridPosition...)
	channel, err := w.kva.LockForWriting(blockPath)
	if err != nil {
		return storeErr("write block", blockPath, err)
	}
	writer, err := channel.Writer()
	if err != nil {
		channel.Close()
		return storeErr("write block", blockPath, err)
	}
	if err := WriteBlockTo(writer, attrs, block); err != nil {
		channel.Close()
		return storeErr("write block", blockPath, err)
	}
	return storeErr("write block", blockPath, channel.Close())
}

func (w *KeyValueWriter) DeleteBlock(path string, gridPosition ...int64) error {
	blockPath := w.DataBlockPath(path, gridPosition...)
	return storeErr("delete block", blockPath, w.kva.Delete(blockPath))
}

func (w *KeyValueWriter) Remove(path string) error {
	path = NormalizeGroupPath(path)
	target := w.groupPath(path)
	if !w.cacheMeta {
		return storeErr("remove", path, w.kva.Delete(target))
	}
	// Backend delete and cache invalidation run in one critical
	// section: no reader observes the cache still reporting
	// existence after the backend delete completed.
	return storeErr("remove", path, w.cache.Remove(path, func() error {
		return w.kva.Delete(target)
	}))
}

// removeFromDocument removes the attribute at attributePath; the
// empty path clears the whole document. ok is false when there was
// nothing to remove.
func removeFromDocument(doc map[string]any, attributePath string) (next map[string]any, removed json.RawMessage, ok bool) {
	if attributePath == "" {
		if len(doc) == 0 {
			return doc, nil, false
		}
		raw, _ := attrjson.Get(doc, "")
		return map[string]any{}, raw, true
	}
	return attrjson.Remove(doc, attributePath)
}

// documentLocked returns the entry's attribute document, loading it
// from the backend if the cache has not seen it yet. Caller holds
// the entry lock through cache.Update.
func (w *KeyValueWriter) documentLocked(path string, u *cache.Update) (map[string]any, error) {
	if doc, loaded := u.Document(); loaded {
		return doc, nil
	}
	doc, _, err := w.attributesUncached(path)
	return doc, err
}

// mergeAndWriteLocked merges overlay onto the node's current
// document and writes the result to the backend. Caller holds the
// entry lock.
func (w *KeyValueWriter) mergeAndWriteLocked(path string, u *cache.Update, overlay map[string]any) (map[string]any, error) {
	current, err := w.documentLocked(path, u)
	if err != nil {
		return nil, err
	}
	merged, err := attrjson.Merge(current, overlay)
	if err != nil {
		return nil, storeErr("merge attributes", path, err)
	}
	if err := w.writeDocument(path, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// writeAttributesUncached merges overlay onto the document read
// under the resource's write lock and writes the result back, all
// within one scoped handle.
func (w *KeyValueWriter) writeAttributesUncached(path string, overlay map[string]any) (map[string]any, error) {
	resource := w.attributesPath(path)
	channel, err := w.kva.LockForWriting(resource)
	if err != nil {
		return nil, storeErr("write attributes", path, err)
	}
	merged, err := func() (map[string]any, error) {
		reader, err := channel.Reader()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(reader)
		if err != nil {
			return nil, err
		}
		current, _ := attrjson.Parse(data)

		merged, err := attrjson.Merge(current, overlay)
		if err != nil {
			return nil, err
		}
		encoded, err := attrjson.Encode(merged)
		if err != nil {
			return nil, err
		}
		writer, err := channel.Writer()
		if err != nil {
			return nil, err
		}
		_, err = writer.Write(encoded)
		return merged, err
	}()
	if err != nil {
		channel.Close()
		return nil, storeErr("write attributes", path, err)
	}
	if err := channel.Close(); err != nil {
		return nil, storeErr("write attributes", path, err)
	}
	return merged, nil
}

// removeAttributeUncached deletes one attribute under a single write
// lock so a concurrent merge on the same node cannot be lost between
// the read and the rewrite.
func (w *KeyValueWriter) removeAttributeUncached(path, attributePath string) (json.RawMessage, bool, error) {
	resource := w.attributesPath(path)
	if !w.kva.IsFile(resource) {
		return nil, false, nil
	}
	channel, err := w.kva.LockForWriting(resource)
	if err != nil {
		return nil, false, storeErr("remove attribute", path, err)
	}
	removed, anything, err := func() (json.RawMessage, bool, error) {
		reader, err := channel.Reader()
		if err != nil {
			return nil, false, err
		}
		data, err := io.ReadAll(reader)
		if err != nil {
			return nil, false, err
		}
		current, _ := attrjson.Parse(data)

		next, raw, ok := removeFromDocument(current, attributePath)
		if !ok {
			return nil, false, nil
		}
		encoded, err := attrjson.Encode(next)
		if err != nil {
			return nil, false, err
		}
		writer, err := channel.Writer()
		if err != nil {
			return nil, false, err
		}
		_, err = writer.Write(encoded)
		return raw, true, err
	}()
	if err != nil {
		channel.Close()
		return nil, false, storeErr("remove attribute", path, err)
	}
	if err := channel.Close(); err != nil {
		return nil, false, storeErr("remove attribute", path, err)
	}
	return removed, anything, nil
}

// writeDocument replaces the node's attribute resource with doc.
func (w *KeyValueWriter) writeDocument(path string, doc map[string]any) error {
	encoded, err := attrjson.Encode(doc)
	if err != nil {
		return storeErr("write attributes", path, err)
	}
	channel, err := w.kva.LockForWriting(w.attributesPath(path))
	if err != nil {
		return storeErr("write attributes", path, err)
	}
	writer, err := channel.Writer()
	if err != nil {
		channel.Close()
		return storeErr("write attributes", path, err)
	}
	if _, err := writer.Write(encoded); err != nil {
		channel.Close()
		return storeErr("write attributes", path, err)
	}
	return storeErr("write attributes", path, channel.Close())
}
