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

	"github.com/cubefs/cubefs/blobstore/common/trace"

	"github.com/anycache/anycache/common/kvstore"
	apierrors "github.com/anycache/anycache/errors"
	"github.com/anycache/anycache/master/store"
	"github.com/anycache/anycache/proto"
)

// InodeStore persists the namespace in two column families:
//
//	inodes: inode id (8B big-endian) -> inode record
//	edges:  parent id (8B big-endian) + child name -> child id (8B)
//
// The owner/group dictionaries and the allocator cursor live under sentinel
// keys in the inodes column. Batches are the only write primitive.
type InodeStore struct {
	kvStore kvstore.Store
	dict    *OwnerGroupDict
}

func NewInodeStore(ctx context.Context, kvStore kvstore.Store) (*InodeStore, error) {
	span := trace.SpanFromContextSafe(ctx)

	s := &InodeStore{
		kvStore: kvStore,
		dict:    NewOwnerGroupDict(),
	}

	if raw, err := kvStore.GetRaw(ctx, store.InodeCF, encodeUint64(ownerDictKey), nil); err == nil {
		s.dict.LoadOwners(raw)
	} else if err != kvstore.ErrNotFound {
		return nil, apierrors.IOError("load owner dictionary: " + err.Error())
	}
	if raw, err := kvStore.GetRaw(ctx, store.InodeCF, encodeUint64(groupDictKey), nil); err == nil {
		s.dict.LoadGroups(raw)
	} else if err != kvstore.ErrNotFound {
		return nil, apierrors.IOError("load group dictionary: " + err.Error())
	}
	s.dict.ClearDirty()

	span.Infof("inode store opened, owners=%d groups=%d", s.dict.OwnerCount(), s.dict.GroupCount())
	return s, nil
}

func (s *InodeStore) Dict() *OwnerGroupDict {
	return s.dict
}

// GetInode point-queries one inode; the name is recovered from the record.
func (s *InodeStore) GetInode(ctx context.Context, id proto.InodeID) (*Inode, error) {
	raw, err := s.kvStore.GetRaw(ctx, store.InodeCF, encodeInodeKey(id), nil)
	if err == kvstore.ErrNotFound {
		return nil, apierrors.NotFound("inode not found")
	}
	if err != nil {
		return nil, apierrors.IOError("get inode: " + err.Error())
	}
	return unmarshalInode(id, raw, s.dict), nil
}

// MultiGetInodes batches point lookups; missing ids are dropped from the
// result.
func (s *InodeStore) MultiGetInodes(ctx context.Context, ids []proto.InodeID) ([]*Inode, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([][]byte, len(ids))
	for i, id := range ids {
		keys[i] = encodeInodeKey(id)
	}
	values, err := s.kvStore.MultiGet(ctx, store.InodeCF, keys, nil)
	if err != nil {
		return nil, apierrors.IOError("multiget inodes: " + err.Error())
	}
	out := make([]*Inode, 0, len(ids))
	for i, vg := range values {
		if vg == nil {
			continue
		}
		out = append(out, unmarshalInode(ids[i], vg.Value(), s.dict))
		vg.Close()
	}
	return out, nil
}

// GetCursor reads the persisted allocator cursor.
func (s *InodeStore) GetCursor(ctx context.Context) (proto.InodeID, error) {
	raw, err := s.kvStore.GetRaw(ctx, store.InodeCF, encodeUint64(cursorKey), nil)
	if err == kvstore.ErrNotFound {
		return proto.InvalidInodeID, apierrors.NotFound("cursor not found")
	}
	if err != nil {
		return proto.InvalidInodeID, apierrors.IOError("get cursor: " + err.Error())
	}
	if len(raw) < 8 {
		return proto.InvalidInodeID, apierrors.IOError("cursor value truncated")
	}
	return decodeUint64(raw), nil
}

func (s *InodeStore) NewBatch() kvstore.WriteBatch {
	return s.kvStore.NewWriteBatch()
}

// CommitBatch applies all accumulated puts and deletes atomically. The WAL
// provides durability; sync to disk is asynchronous.
func (s *InodeStore) CommitBatch(ctx context.Context, batch kvstore.WriteBatch) error {
	if err := s.kvStore.Write(ctx, batch, nil); err != nil {
		return apierrors.IOError("commit batch: " + err.Error())
	}
	return nil
}

func (s *InodeStore) BatchPutInode(batch kvstore.WriteBatch, inode *Inode) {
	batch.Put(store.InodeCF, encodeInodeKey(inode.ID), marshalInode(inode, s.dict))
	s.maybePersistDict(batch)
}

func (s *InodeStore) BatchDeleteInode(batch kvstore.WriteBatch, id proto.InodeID) {
	batch.Delete(store.InodeCF, encodeInodeKey(id))
}

func (s *InodeStore) BatchPutEdge(batch kvstore.WriteBatch, parentID proto.InodeID, childName string, childID proto.InodeID) {
	batch.Put(store.EdgeCF, encodeEdgeKey(parentID, childName), encodeUint64(childID))
}

func (s *InodeStore) BatchDeleteEdge(batch kvstore.WriteBatch, parentID proto.InodeID, childName string) {
	batch.Delete(store.EdgeCF, encodeEdgeKey(parentID, childName))
}

func (s *InodeStore) BatchPutCursor(batch kvstore.WriteBatch, cursor proto.InodeID) {
	batch.Put(store.InodeCF, encodeUint64(cursorKey), encodeUint64(cursor))
}

// A record put that first introduced a new dictionary id rides in the same
// batch as the dictionaries themselves.
func (s *InodeStore) maybePersistDict(batch kvstore.WriteBatch) {
	if !s.dict.Dirty() {
		return
	}
	batch.Put(store.InodeCF, encodeUint64(ownerDictKey), s.dict.SerializeOwners())
	batch.Put(store.InodeCF, encodeUint64(groupDictKey), s.dict.SerializeGroups())
	s.dict.ClearDirty()
}

// ScanDirectoryInodes streams every directory record to fn, skipping files
// and sentinel keys. Constant memory: one record at a time.
func (s *InodeStore) ScanDirectoryInodes(ctx context.Context, fn func(*Inode) error) error {
	lr := s.kvStore.List(ctx, store.InodeCF, nil, nil, nil)
	defer lr.Close()

	for {
		kg, vg, err := lr.ReadNext()
		if err != nil {
			return apierrors.IOError("scan directory inodes: " + err.Error())
		}
		if kg == nil || vg == nil {
			return nil
		}
		key := kg.Key()
		if len(key) == 8 {
			if k := decodeUint64(key); k >= ownerDictKey {
				kg.Close()
				vg.Close()
				continue
			}
		}
		if !inodeRecordIsDirectory(vg.Value()) {
			kg.Close()
			vg.Close()
			continue
		}
		inode := unmarshalInode(decodeInodeKey(key), vg.Value(), s.dict)
		kg.Close()
		vg.Close()
		if err := fn(inode); err != nil {
			return err
		}
	}
}

// ScanAllEdges streams every edge in key order. Total-order seek bypasses
// the fixed-prefix extractor for the full scan.
func (s *InodeStore) ScanAllEdges(ctx context.Context, fn func(parentID proto.InodeID, name string, childID proto.InodeID) error) error {
	ro := s.kvStore.NewReadOption()
	ro.SetTotalOrderSeek(true)
	defer ro.Close()

	lr := s.kvStore.List(ctx, store.EdgeCF, nil, nil, ro)
	defer lr.Close()

	for {
		kg, vg, err := lr.ReadNext()
		if err != nil {
			return apierrors.IOError("scan edges: " + err.Error())
		}
		if kg == nil || vg == nil {
			return nil
		}
		if len(kg.Key()) < 8 || vg.Size() < 8 {
			kg.Close()
			vg.Close()
			continue
		}
		parentID, name := decodeEdgeKey(kg.Key())
		childID := decodeUint64(vg.Value())
		kg.Close()
		vg.Close()
		if err := fn(parentID, name, childID); err != nil {
			return err
		}
	}
}
