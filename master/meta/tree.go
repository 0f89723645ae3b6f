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

package meta

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	"github.com/anycache/anycache/common/kvstore"
	apierrors "github.com/anycache/anycache/errors"
	"github.com/anycache/anycache/proto"
)

const idAllocBatchSize = proto.InodeID(1000)

// Tree maintains the file system namespace over two operating modes:
//
//  1. memory-only (store == nil): every inode, files included, lives in
//     the dirs map; used by tests.
//  2. two-tier (store != nil): only directory inodes and their children
//     maps stay in memory, file inodes are fetched from the store.
//
// All writes persist first and memorize second: the batch commits, then
// the in-memory maps mutate under the write lock. A failed commit never
// touches memory.
type Tree struct {
	mu     sync.RWMutex
	dirs   map[proto.InodeID]*Inode
	rootID proto.InodeID

	nextID   proto.InodeID
	allocEnd proto.InodeID

	store *InodeStore
}

func NewTree(store *InodeStore) *Tree {
	t := &Tree{
		dirs:     make(map[proto.InodeID]*Inode),
		rootID:   proto.RootInodeID,
		nextID:   proto.RootInodeID + 1,
		allocEnd: proto.RootInodeID + 1,
		store:    store,
	}
	if store == nil {
		t.dirs[t.rootID] = newRootInode()
	}
	return t
}

func newRootInode() *Inode {
	now := time.Now().UnixMilli()
	return &Inode{
		ID:                 proto.RootInodeID,
		ParentID:           proto.InvalidInodeID,
		IsDirectory:        true,
		Mode:               0o755,
		BlockSize:          proto.DefaultBlockSize,
		CreationTimeMs:     now,
		ModificationTimeMs: now,
		IsComplete:         true,
		Children:           make(map[string]proto.InodeID),
	}
}

// Recover rebuilds the directory map from the store: directory inodes
// first, then every edge re-linked into its parent's children map, then
// the allocator cursor. A missing root is synthesized and committed.
func (t *Tree) Recover(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	span := trace.SpanFromContextSafe(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.dirs = make(map[proto.InodeID]*Inode)

	err := t.store.ScanDirectoryInodes(ctx, func(inode *Inode) error {
		inode.Children = make(map[string]proto.InodeID)
		t.dirs[inode.ID] = inode
		return nil
	})
	if err != nil {
		return err
	}

	edges := 0
	err = t.store.ScanAllEdges(ctx, func(parentID proto.InodeID, name string, childID proto.InodeID) error {
		if parent, ok := t.dirs[parentID]; ok {
			parent.Children[name] = childID
			edges++
		}
		return nil
	})
	if err != nil {
		return err
	}

	if cursor, err := t.store.GetCursor(ctx); err == nil && cursor > 0 {
		t.nextID = cursor
		t.allocEnd = cursor
	} else {
		maxID := t.rootID
		for id := range t.dirs {
			if id > maxID {
				maxID = id
			}
		}
		t.nextID = maxID + 1
		t.allocEnd = maxID + 1
	}

	if _, ok := t.dirs[t.rootID]; !ok {
		root := newRootInode()
		batch := t.store.NewBatch()
		defer batch.Close()
		t.store.BatchPutInode(batch, root)
		if err := t.store.CommitBatch(ctx, batch); err != nil {
			return err
		}
		t.dirs[t.rootID] = root
	}

	span.Infof("inode tree recovered: %d directories, %d edges, next id %d",
		len(t.dirs), edges, t.nextID)
	return nil
}

func (t *Tree) RootID() proto.InodeID {
	return t.rootID
}

func (t *Tree) DirCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.dirs)
}

func splitPath(path string) []string {
	raw := strings.Split(path, "/")
	parts := raw[:0]
	for _, p := range raw {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// allocateID hands out the next id and persists the advanced cursor every
// idAllocBatchSize ids; a restart discards at most the unused tail of one
// batch, keeping ids strictly monotone. Caller holds the write lock.
func (t *Tree) allocateID(ctx context.Context) proto.InodeID {
	id := t.nextID
	t.nextID++
	if t.store != nil && id >= t.allocEnd {
		t.allocEnd = id + idAllocBatchSize
		batch := t.store.NewBatch()
		t.store.BatchPutCursor(batch, t.allocEnd)
		if err := t.store.CommitBatch(ctx, batch); err != nil {
			trace.SpanFromContextSafe(ctx).Warnf("persist id cursor failed: %s", err)
		}
		batch.Close()
	}
	return id
}

// resolveLocked walks the path from the root; every intermediate component
// must be a directory present in memory. Caller holds at least the read
// lock.
func (t *Tree) resolveLocked(path string) (proto.InodeID, error) {
	current := t.rootID
	for _, part := range splitPath(path) {
		node, ok := t.dirs[current]
		if !ok {
			return proto.InvalidInodeID, apierrors.NotFound("inode missing")
		}
		if !node.IsDirectory {
			return proto.InvalidInodeID, apierrors.InvalidArgument("not a directory: " + part)
		}
		child, ok := node.Children[part]
		if !ok {
			return proto.InvalidInodeID, apierrors.NotFound("path not found: " + path)
		}
		current = child
	}
	return current, nil
}

// resolveParentLocked resolves the directory containing the final path
// component.
func (t *Tree) resolveParentLocked(parts []string) (proto.InodeID, error) {
	current := t.rootID
	for i := 0; i+1 < len(parts); i++ {
		node, ok := t.dirs[current]
		if !ok {
			return proto.InvalidInodeID, apierrors.NotFound("parent missing")
		}
		child, ok := node.Children[parts[i]]
		if !ok {
			return proto.InvalidInodeID, apierrors.NotFound("parent directory not found: " + parts[i])
		}
		current = child
	}
	return current, nil
}

func (t *Tree) GetByPath(ctx context.Context, path string) (*Inode, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	id, err := t.resolveLocked(path)
	if err != nil {
		return nil, err
	}
	return t.getLocked(ctx, id)
}

func (t *Tree) GetByID(ctx context.Context, id proto.InodeID) (*Inode, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.getLocked(ctx, id)
}

func (t *Tree) getLocked(ctx context.Context, id proto.InodeID) (*Inode, error) {
	if inode, ok := t.dirs[id]; ok {
		return inode.Clone(), nil
	}
	if t.store != nil {
		return t.store.GetInode(ctx, id)
	}
	return nil, apierrors.NotFound("inode missing")
}

// List returns a directory's children, unordered. Directories come from
// memory, files are batch-fetched from the store.
func (t *Tree) List(ctx context.Context, path string) ([]*Inode, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	id, err := t.resolveLocked(path)
	if err != nil {
		return nil, err
	}
	dir, ok := t.dirs[id]
	if !ok {
		return nil, apierrors.NotFound("directory not found")
	}
	if !dir.IsDirectory {
		return nil, apierrors.InvalidArgument("not a directory")
	}

	children := make([]*Inode, 0, len(dir.Children))
	var fileIDs []proto.InodeID
	for _, childID := range dir.Children {
		if child, ok := t.dirs[childID]; ok {
			children = append(children, child.Clone())
		} else {
			fileIDs = append(fileIDs, childID)
		}
	}
	if len(fileIDs) > 0 && t.store != nil {
		files, err := t.store.MultiGetInodes(ctx, fileIDs)
		if err != nil {
			return nil, err
		}
		children = append(children, files...)
	}
	return children, nil
}

// CreateFile creates an incomplete file inode under an existing parent
// directory. The new inode does not enter the directory map.
func (t *Tree) CreateFile(ctx context.Context, path string, mode uint32) (proto.InodeID, error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return proto.InvalidInodeID, apierrors.InvalidArgument("empty path")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	parentID, err := t.resolveParentLocked(parts)
	if err != nil {
		return proto.InvalidInodeID, err
	}
	parent, ok := t.dirs[parentID]
	if !ok {
		return proto.InvalidInodeID, apierrors.NotFound("parent missing")
	}
	if !parent.IsDirectory {
		return proto.InvalidInodeID, apierrors.InvalidArgument("parent is not a directory")
	}

	name := parts[len(parts)-1]
	if _, exists := parent.Children[name]; exists {
		return proto.InvalidInodeID, apierrors.AlreadyExists("file already exists: " + path)
	}

	now := time.Now().UnixMilli()
	inode := &Inode{
		ID:                 t.allocateID(ctx),
		ParentID:           parentID,
		Name:               name,
		Mode:               mode,
		BlockSize:          proto.DefaultBlockSize,
		CreationTimeMs:     now,
		ModificationTimeMs: now,
		IsComplete:         false,
	}

	if t.store != nil {
		batch := t.store.NewBatch()
		defer batch.Close()
		t.store.BatchPutInode(batch, inode)
		t.store.BatchPutEdge(batch, parentID, name, inode.ID)
		if err := t.store.CommitBatch(ctx, batch); err != nil {
			return proto.InvalidInodeID, err
		}
		parent.Children[name] = inode.ID
	} else {
		parent.Children[name] = inode.ID
		t.dirs[inode.ID] = inode
	}
	return inode.ID, nil
}

// CreateDirectory creates a directory; recursive mode creates the missing
// ancestors, each in its own commit.
func (t *Tree) CreateDirectory(ctx context.Context, path string, mode uint32, recursive bool) (proto.InodeID, error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return t.rootID, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.rootID
	for i := 0; i < len(parts); i++ {
		node, ok := t.dirs[current]
		if !ok {
			return proto.InvalidInodeID, apierrors.NotFound("parent missing")
		}
		if !node.IsDirectory {
			return proto.InvalidInodeID, apierrors.InvalidArgument("not a directory")
		}

		if childID, exists := node.Children[parts[i]]; exists {
			current = childID
			if i+1 == len(parts) {
				return current, apierrors.AlreadyExists("directory exists: " + path)
			}
			continue
		}

		if !recursive && i+1 < len(parts) {
			return proto.InvalidInodeID, apierrors.NotFound("parent not found: " + parts[i])
		}

		now := time.Now().UnixMilli()
		dir := &Inode{
			ID:                 t.allocateID(ctx),
			ParentID:           current,
			Name:               parts[i],
			IsDirectory:        true,
			Mode:               mode,
			BlockSize:          proto.DefaultBlockSize,
			CreationTimeMs:     now,
			ModificationTimeMs: now,
			IsComplete:         true,
			Children:           make(map[string]proto.InodeID),
		}

		if t.store != nil {
			batch := t.store.NewBatch()
			t.store.BatchPutInode(batch, dir)
			t.store.BatchPutEdge(batch, current, parts[i], dir.ID)
			err := t.store.CommitBatch(ctx, batch)
			batch.Close()
			if err != nil {
				return proto.InvalidInodeID, err
			}
		}

		node.Children[parts[i]] = dir.ID
		t.dirs[dir.ID] = dir
		current = dir.ID
	}
	return current, nil
}

// CompleteFile finalizes a file: size, complete flag, mtime.
func (t *Tree) CompleteFile(ctx context.Context, id proto.InodeID, size uint64) error {
	return t.updateFileLocked(ctx, id, func(inode *Inode) {
		inode.Size = size
		inode.IsComplete = true
		inode.ModificationTimeMs = time.Now().UnixMilli()
	})
}

// UpdateSize sets a file's size without completing it.
func (t *Tree) UpdateSize(ctx context.Context, id proto.InodeID, newSize uint64) error {
	return t.updateFileLocked(ctx, id, func(inode *Inode) {
		inode.Size = newSize
		inode.ModificationTimeMs = time.Now().UnixMilli()
	})
}

func (t *Tree) updateFileLocked(ctx context.Context, id proto.InodeID, mutate func(*Inode)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.store != nil {
		inode, err := t.store.GetInode(ctx, id)
		if err != nil {
			if _, ok := t.dirs[id]; ok {
				return apierrors.InvalidArgument("not a file")
			}
			return err
		}
		if inode.IsDirectory {
			return apierrors.InvalidArgument("not a file")
		}
		mutate(inode)
		batch := t.store.NewBatch()
		defer batch.Close()
		t.store.BatchPutInode(batch, inode)
		return t.store.CommitBatch(ctx, batch)
	}

	inode, ok := t.dirs[id]
	if !ok {
		return apierrors.NotFound("file not found")
	}
	if inode.IsDirectory {
		return apierrors.InvalidArgument("not a file")
	}
	mutate(inode)
	return nil
}

// Delete removes the target; a non-empty directory needs recursive, whose
// whole subtree goes into one batch.
func (t *Tree) Delete(ctx context.Context, path string, recursive bool) error {
	parts := splitPath(path)
	if len(parts) == 0 {
		return apierrors.InvalidArgument("cannot delete root")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	id, err := t.resolveLocked(path)
	if err != nil {
		return err
	}
	parentID, err := t.resolveParentLocked(parts)
	if err != nil {
		return err
	}
	name := parts[len(parts)-1]

	target, inMem := t.dirs[id]
	isDir := inMem && target.IsDirectory
	if isDir && len(target.Children) > 0 && !recursive {
		return apierrors.InvalidArgument("directory not empty")
	}
	if !inMem && t.store == nil {
		return apierrors.NotFound("inode not found")
	}

	if t.store != nil {
		batch := t.store.NewBatch()
		defer batch.Close()

		t.store.BatchDeleteInode(batch, id)
		t.store.BatchDeleteEdge(batch, parentID, name)

		var subDirs []proto.InodeID
		if isDir && recursive {
			t.collectSubtreeLocked(id, batch, &subDirs)
		}
		if err := t.store.CommitBatch(ctx, batch); err != nil {
			return err
		}

		if parent, ok := t.dirs[parentID]; ok {
			delete(parent.Children, name)
		}
		for _, dirID := range subDirs {
			delete(t.dirs, dirID)
		}
		delete(t.dirs, id)
		return nil
	}

	// memory-only: drop the whole subtree from the map
	if parent, ok := t.dirs[parentID]; ok {
		delete(parent.Children, name)
	}
	stack := []proto.InodeID{id}
	for len(stack) > 0 {
		rid := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node, ok := t.dirs[rid]; ok {
			for _, childID := range node.Children {
				stack = append(stack, childID)
			}
			delete(t.dirs, rid)
		}
	}
	return nil
}

// collectSubtreeLocked walks the directory nodes depth-first and stages
// every descendant edge and inode delete into the batch; file children are
// reached through the parent's children map, never by a store scan.
func (t *Tree) collectSubtreeLocked(dirID proto.InodeID, batch kvstore.WriteBatch, subDirs *[]proto.InodeID) {
	dir, ok := t.dirs[dirID]
	if !ok {
		return
	}
	for name, childID := range dir.Children {
		t.store.BatchDeleteEdge(batch, dirID, name)
		t.store.BatchDeleteInode(batch, childID)
		if _, ok := t.dirs[childID]; ok {
			*subDirs = append(*subDirs, childID)
			t.collectSubtreeLocked(childID, batch, subDirs)
		}
	}
}

// Rename moves src to dst; the destination name must not exist. One batch
// carries the re-parented inode record, the old edge delete and the new
// edge put.
func (t *Tree) Rename(ctx context.Context, src, dst string) error {
	srcParts := splitPath(src)
	dstParts := splitPath(dst)
	if len(srcParts) == 0 || len(dstParts) == 0 {
		return apierrors.InvalidArgument("invalid path")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	srcID, err := t.resolveLocked(src)
	if err != nil {
		return err
	}
	oldParentID, err := t.resolveParentLocked(srcParts)
	if err != nil {
		return err
	}
	newParentID, err := t.resolveParentLocked(dstParts)
	if err != nil {
		return err
	}

	newParent, ok := t.dirs[newParentID]
	if !ok || !newParent.IsDirectory {
		return apierrors.InvalidArgument("destination parent is not a directory")
	}
	newName := dstParts[len(dstParts)-1]
	if _, exists := newParent.Children[newName]; exists {
		return apierrors.AlreadyExists("destination exists")
	}
	oldName := srcParts[len(srcParts)-1]

	if t.store != nil {
		var inode *Inode
		if dir, isDir := t.dirs[srcID]; isDir {
			inode = dir.Clone()
		} else {
			inode, err = t.store.GetInode(ctx, srcID)
			if err != nil {
				return err
			}
		}
		inode.ParentID = newParentID
		inode.Name = newName

		batch := t.store.NewBatch()
		defer batch.Close()
		t.store.BatchPutInode(batch, inode)
		t.store.BatchDeleteEdge(batch, oldParentID, oldName)
		t.store.BatchPutEdge(batch, newParentID, newName, srcID)
		if err := t.store.CommitBatch(ctx, batch); err != nil {
			return err
		}

		if oldParent, ok := t.dirs[oldParentID]; ok {
			delete(oldParent.Children, oldName)
		}
		newParent.Children[newName] = srcID
		if dir, isDir := t.dirs[srcID]; isDir {
			dir.Name = newName
			dir.ParentID = newParentID
		}
		return nil
	}

	inode, ok := t.dirs[srcID]
	if !ok {
		return apierrors.NotFound("inode not found")
	}
	if oldParent, ok := t.dirs[oldParentID]; ok {
		delete(oldParent.Children, oldName)
	}
	inode.Name = newName
	inode.ParentID = newParentID
	newParent.Children[newName] = srcID
	return nil
}
