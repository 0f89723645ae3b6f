// Copyright 2023 The AnyCache Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package mount

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	"github.com/anycache/anycache/common/kvstore"
	apierrors "github.com/anycache/anycache/errors"
	"github.com/anycache/anycache/proto"
	"github.com/anycache/anycache/ufs"
)

type entry struct {
	path   string
	ufsURI string
	store  ufs.UnderFileSystem
}

// Table maps namespace paths onto external stores. Lookups resolve by
// longest prefix; mounts persist in a small dedicated kv store so they
// survive restart.
type Table struct {
	factory *ufs.Factory

	mu      sync.Mutex
	mounts  map[string]*entry
	kvStore kvstore.Store
}

func NewTable(factory *ufs.Factory, kvStore kvstore.Store) *Table {
	return &Table{
		factory: factory,
		mounts:  make(map[string]*entry),
		kvStore: kvStore,
	}
}

// Load reloads persisted mount points; invalid URIs are skipped.
func (t *Table) Load(ctx context.Context) error {
	if t.kvStore == nil {
		return nil
	}
	span := trace.SpanFromContextSafe(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	lr := t.kvStore.List(ctx, "", nil, nil, nil)
	defer lr.Close()
	for {
		key, value, err := lr.ReadNextCopy()
		if err != nil {
			return apierrors.IOError("load mount table: " + err.Error())
		}
		if key == nil {
			break
		}
		path, uri := string(key), string(value)
		store, err := t.factory.Create(ctx, uri)
		if err != nil {
			span.Warnf("skip invalid mount %s -> %s: %s", path, uri, err)
			continue
		}
		t.mounts[path] = &entry{path: path, ufsURI: uri, store: store}
	}
	span.Infof("mount table loaded, %d mount(s)", len(t.mounts))
	return nil
}

func (t *Table) Mount(ctx context.Context, path, ufsURI string) error {
	path = normalize(path)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.mounts[path]; ok {
		return apierrors.AlreadyExists("mount point already exists: " + path)
	}
	store, err := t.factory.Create(ctx, ufsURI)
	if err != nil {
		return err
	}
	if t.kvStore != nil {
		if err := t.kvStore.SetRaw(ctx, "", []byte(path), []byte(ufsURI), nil); err != nil {
			return apierrors.IOError("persist mount: " + err.Error())
		}
	}
	t.mounts[path] = &entry{path: path, ufsURI: ufsURI, store: store}
	trace.SpanFromContextSafe(ctx).Infof("mounted %s -> %s", path, ufsURI)
	return nil
}

func (t *Table) Unmount(ctx context.Context, path string) error {
	path = normalize(path)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.mounts[path]; !ok {
		return apierrors.NotFound("mount point not found: " + path)
	}
	if t.kvStore != nil {
		if err := t.kvStore.Delete(ctx, "", []byte(path), nil); err != nil {
			return apierrors.IOError("persist unmount: " + err.Error())
		}
	}
	delete(t.mounts, path)
	trace.SpanFromContextSafe(ctx).Infof("unmounted %s", path)
	return nil
}

// Resolve finds the longest mount prefix covering path and returns the
// store plus the path relative to the mount point.
func (t *Table) Resolve(path string) (ufs.UnderFileSystem, string, error) {
	path = normalize(path)

	t.mu.Lock()
	defer t.mu.Unlock()

	var best *entry
	for _, e := range t.mounts {
		if !covers(e.path, path) {
			continue
		}
		if best == nil || len(e.path) > len(best.path) {
			best = e
		}
	}
	if best == nil {
		return nil, "", apierrors.NotFound("no mount point for: " + path)
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(path, best.path), "/")
	return best.store, rel, nil
}

func (t *Table) MountPoints() []proto.MountPoint {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]proto.MountPoint, 0, len(t.mounts))
	for _, e := range t.mounts {
		out = append(out, proto.MountPoint{Path: e.path, UfsURI: e.ufsURI})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (t *Table) IsMountPoint(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.mounts[normalize(path)]
	return ok
}

func normalize(path string) string {
	if path == "" {
		return "/"
	}
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func covers(mountPath, path string) bool {
	if mountPath == path {
		return true
	}
	if mountPath == "/" {
		return true
	}
	return strings.HasPrefix(path, mountPath+"/")
}
