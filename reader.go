// Copyright 2026 The N5 Authors
// SPDX-License-Identifier: Apache-2.0

package n5

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"

	"github.com/ctrueden/n5/attrjson"
	"github.com/ctrueden/n5/cache"
	"github.com/ctrueden/n5/kv"
)

// attributesFile is the reserved name of the attribute resource
// inside each node's backend directory.
const attributesFile = "attributes.json"

// Config configures an open container handle.
type Config struct {
	// CacheMetadata mirrors the hierarchy's attributes, dataset
	// flags, and child listings in memory. Reads served from the
	// mirror never touch the backend; every write through the same
	// handle keeps the mirror consistent. Do not enable it when
	// other processes mutate the container concurrently.
	CacheMetadata bool

	// Logger receives debug output, container open and version
	// stamping. Defaults to a discarding logger.
	Logger *slog.Logger
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Reader is the read surface of an open container. Paths are group
// paths in any spelling; they are normalized on entry.
type Reader interface {
	// Exists reports whether a group or dataset exists at path.
	Exists(path string) (bool, error)

	// GroupExists reports whether path is a group that is not a
	// dataset.
	GroupExists(path string) (bool, error)

	// DatasetExists reports whether path is a dataset.
	DatasetExists(path string) (bool, error)

	// GetAttributes returns the node's attribute document. ok is
	// false when the node or its document does not exist.
	GetAttributes(path string) (map[string]any, bool, error)

	// GetAttribute unmarshals one attribute, addressed by attribute
	// path, into v. found is false when the node or the attribute
	// does not exist.
	GetAttribute(path, key string, v any) (found bool, err error)

	// ListAttributes maps each top-level attribute name to its JSON
	// type name. Fails with ErrNotExist when the node does not
	// exist.
	ListAttributes(path string) (map[string]string, error)

	// GetDatasetAttributes returns the dataset's structural
	// attributes. ok is false when path is not a dataset.
	GetDatasetAttributes(path string) (*DatasetAttributes, bool, error)

	// List returns the sorted names of the node's immediate
	// children. Fails with ErrNotExist when the node does not
	// exist.
	List(path string) ([]string, error)

	// ReadBlock returns the dataset's block at a grid position, or
	// nil when no block has been written there. A missing block is
	// not an error; datasets are sparse.
	ReadBlock(path string, attrs *DatasetAttributes, gridPosition ...int64) (*DataBlock, error)
}

// KeyValueReader reads an N5 container through a kv.KeyValueAccess
// backend. With caching enabled it serves reads from a metadata
// mirror, falling back to the backend for cold entries; with caching
// disabled every call consults the backend, reflecting concurrent
// external mutation.
type KeyValueReader struct {
	kva       kv.KeyValueAccess
	basePath  string
	cacheMeta bool
	cache     *cache.Cache
	logger    *slog.Logger
}

var _ Reader = (*KeyValueReader)(nil)

// OpenReader opens the container rooted at basePath. It fails with
// ErrIncompatibleVersion when the container is stamped with a
// different major format version.
func OpenReader(kva kv.KeyValueAccess, basePath string, cfg Config) (*KeyValueReader, error) {
	r := &KeyValueReader{
		kva:       kva,
		basePath:  kva.Normalize(basePath),
		cacheMeta: cfg.CacheMetadata,
		logger:    cfg.logger(),
	}
	if r.cacheMeta {
		r.cache = cache.New(containerLoader{r})
	}
	if err := r.checkVersion(); err != nil {
		return nil, err
	}
	r.logger.Debug("container opened",
		"basePath", r.basePath, "cacheMetadata", r.cacheMeta)
	return r, nil
}

// Version returns the container's stamped format version. stamped is
// false when the root document carries no version, which reads as
// compatible.
func (r *KeyValueReader) Version() (v Version, stamped bool, err error) {
	doc, ok, err := r.GetAttributes("")
	if err != nil {
		return Version{}, false, err
	}
	if !ok {
		return Version{}, false, nil
	}
	var s string
	if found, err := attrjson.GetInto(doc, VersionKey, &s); !found || err != nil {
		return Version{}, false, err
	}
	v, err = ParseVersion(s)
	if err != nil {
		return Version{}, false, storeErr("parse version", "", err)
	}
	return v, true, nil
}

func (r *KeyValueReader) checkVersion() error {
	v, stamped, err := r.Version()
	if err != nil {
		return err
	}
	if stamped && !v.Compatible(Current) {
		return fmt.Errorf("%w: container has %s, this implementation handles %s",
			ErrIncompatibleVersion, v, Current)
	}
	return nil
}

// groupPath composes the backend path of a node.
func (r *KeyValueReader) groupPath(path string) string {
	return r.kva.Compose(r.basePath, path)
}

// attributesPath composes the backend path of a node's attribute
// resource.
func (r *KeyValueReader) attributesPath(path string) string {
	return r.kva.Compose(r.basePath, path, attributesFile)
}

// DataBlockPath composes the backend path of one block:
// <base>/<dataset>/<grid0>/<grid1>/...
func (r *KeyValueReader) DataBlockPath(path string, gridPosition ...int64) string {
	components := make([]string, 0, len(gridPosition)+2)
	components = append(components, r.basePath, NormalizeGroupPath(path))
	for _, g := range gridPosition {
		components = append(components, strconv.FormatInt(g, 10))
	}
	return r.kva.Compose(components...)
}

func (r *KeyValueReader) Exists(path string) (bool, error) {
	path = NormalizeGroupPath(path)
	if r.cacheMeta {
		return r.cache.Exists(path)
	}
	return r.existsUncached(path), nil
}

func (r *KeyValueReader) GroupExists(path string) (bool, error) {
	exists, err := r.Exists(path)
	if err != nil || !exists {
		return false, err
	}
	dataset, err := r.DatasetExists(path)
	if err != nil {
		return false, err
	}
	return !dataset, nil
}

func (r *KeyValueReader) DatasetExists(path string) (bool, error) {
	path = NormalizeGroupPath(path)
	if r.cacheMeta {
		return r.cache.IsDataset(path)
	}
	doc, ok, err := r.attributesUncached(path)
	if err != nil || !ok {
		return false, err
	}
	_, isDataset := ParseDatasetAttributes(doc)
	return isDataset, nil
}

// GetAttributes returns a copy of the node's attribute document;
// mutating it never affects cached state.
func (r *KeyValueReader) GetAttributes(path string) (map[string]any, bool, error) {
	path = NormalizeGroupPath(path)
	if r.cacheMeta {
		doc, ok, err := r.cache.GetAttributes(path)
		if err != nil || !ok {
			return nil, false, err
		}
		return attrjson.Clone(doc), true, nil
	}
	return r.attributesUncached(path)
}

func (r *KeyValueReader) GetAttribute(path, key string, v any) (bool, error) {
	doc, ok, err := r.GetAttributes(path)
	if err != nil || !ok {
		return false, err
	}
	return attrjson.GetInto(doc, NormalizeAttributePath(key), v)
}

func (r *KeyValueReader) ListAttributes(path string) (map[string]string, error) {
	normalized := NormalizeGroupPath(path)
	exists, err := r.Exists(normalized)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, storeErr("list attributes", normalized, ErrNotExist)
	}
	doc, _, err := r.GetAttributes(normalized)
	if err != nil {
		return nil, err
	}
	return attrjson.TypeNames(doc), nil
}

func (r *KeyValueReader) GetDatasetAttributes(path string) (*DatasetAttributes, bool, error) {
	doc, ok, err := r.GetAttributes(path)
	if err != nil || !ok {
		return nil, false, err
	}
	attrs, isDataset := ParseDatasetAttributes(doc)
	if !isDataset {
		return nil, false, nil
	}
	return attrs, true, nil
}

func (r *KeyValueReader) List(path string) ([]string, error) {
	path = NormalizeGroupPath(path)
	if r.cacheMeta {
		names, exists, err := r.cache.List(path)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, storeErr("list", path, ErrNotExist)
		}
		return names, nil
	}
	if !r.existsUncached(path) {
		return nil, storeErr("list", path, ErrNotExist)
	}
	names, err := r.listUncached(path)
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

func (r *KeyValueReader) ReadBlock(path string, attrs *DatasetAttributes, gridPosition ...int64) (*DataBlock, error) {
	blockPath := r.DataBlockPath(path, gridPosition...)
	if !r.kva.IsFile(blockPath) {
		return nil, nil
	}
	channel, err := r.kva.LockForReading(blockPath)
	if err != nil {
		return nil, storeErr("read block", blockPath, err)
	}
	defer channel.Close()
	reader, err := channel.Reader()
	if err != nil {
		return nil, storeErr("read block", blockPath, err)
	}
	block, err := ReadBlockFrom(reader, attrs, gridPosition)
	if err != nil {
		return nil, storeErr("read block", blockPath, err)
	}
	return block, nil
}

// attributesUncached reads a node's attribute document from the
// backend. A missing resource, and a resource that does not parse as
// a JSON object, both read as "no document".
func (r *KeyValueReader) attributesUncached(path string) (map[string]any, bool, error) {
	resource := r.attributesPath(path)
	if !r.kva.IsFile(resource) {
		return nil, false, nil
	}
	channel, err := r.kva.LockForReading(resource)
	if err != nil {
		return nil, false, storeErr("read attributes", path, err)
	}
	defer channel.Close()
	reader, err := channel.Reader()
	if err != nil {
		return nil, false, storeErr("read attributes", path, err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, false, storeErr("read attributes", path, err)
	}
	doc, ok := attrjson.Parse(data)
	return doc, ok, nil
}

func (r *KeyValueReader) existsUncached(path string) bool {
	return r.kva.IsDirectory(r.groupPath(path))
}

func (r *KeyValueReader) listUncached(path string) ([]string, error) {
	names, err := r.kva.ListDirectories(r.groupPath(path))
	if err != nil {
		return nil, storeErr("list", path, err)
	}
	return names, nil
}

// containerLoader adapts the reader's uncached surface to the
// cache's loader contract.
type containerLoader struct {
	r *KeyValueReader
}

func (l containerLoader) AttributesFromContainer(path string) (map[string]any, bool, error) {
	return l.r.attributesUncached(path)
}

func (l containerLoader) ExistsFromContainer(path string) (bool, error) {
	return l.r.existsUncached(path), nil
}

func (l containerLoader) IsDatasetFromAttributes(doc map[string]any) bool {
	_, isDataset := ParseDatasetAttributes(doc)
	return isDataset
}

func (l containerLoader) ListFromContainer(path string) ([]string, error) {
	return l.r.listUncached(path)
}
