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

package worker

import (
	"context"
	"encoding/binary"

	"github.com/anycache/anycache/common/kvstore"
	apierrors "github.com/anycache/anycache/errors"
	"github.com/anycache/anycache/proto"
)

// BlockMeta is the per-block record a worker persists for warm restart.
// The owning file and offset are derivable from the composite block id.
type BlockMeta struct {
	BlockID          proto.BlockID
	Length           uint64
	Tier             proto.TierType
	CreateTimeMs     int64
	LastAccessTimeMs int64
	AccessCount      uint64
}

const blockMetaSize = 8 + 8 + 1 + 8 + 8 + 8

func (m *BlockMeta) marshal() []byte {
	buf := make([]byte, blockMetaSize)
	binary.BigEndian.PutUint64(buf[0:], m.BlockID)
	binary.BigEndian.PutUint64(buf[8:], m.Length)
	buf[16] = byte(m.Tier)
	binary.BigEndian.PutUint64(buf[17:], uint64(m.CreateTimeMs))
	binary.BigEndian.PutUint64(buf[25:], uint64(m.LastAccessTimeMs))
	binary.BigEndian.PutUint64(buf[33:], m.AccessCount)
	return buf
}

func unmarshalBlockMeta(raw []byte) BlockMeta {
	var m BlockMeta
	if len(raw) < blockMetaSize {
		return m
	}
	m.BlockID = binary.BigEndian.Uint64(raw[0:])
	m.Length = binary.BigEndian.Uint64(raw[8:])
	m.Tier = proto.TierType(raw[16])
	m.CreateTimeMs = int64(binary.BigEndian.Uint64(raw[17:]))
	m.LastAccessTimeMs = int64(binary.BigEndian.Uint64(raw[25:]))
	m.AccessCount = binary.BigEndian.Uint64(raw[33:])
	return m
}

// MetaStore persists block metadata in a worker-local kv store keyed by
// 8-byte big-endian block id.
type MetaStore struct {
	kvStore kvstore.Store
}

func OpenMetaStore(ctx context.Context, path string) (*MetaStore, error) {
	opt := kvstore.Option{CreateIfMissing: true}
	kvStore, err := kvstore.NewKVStore(ctx, path, kvstore.RocksdbLsmKVType, &opt)
	if err != nil {
		return nil, apierrors.IOError("open meta store: " + err.Error())
	}
	return &MetaStore{kvStore: kvStore}, nil
}

func (s *MetaStore) Close() {
	s.kvStore.Close()
}

func metaKey(id proto.BlockID) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}

func (s *MetaStore) Put(ctx context.Context, meta *BlockMeta) error {
	if err := s.kvStore.SetRaw(ctx, "", metaKey(meta.BlockID), meta.marshal(), nil); err != nil {
		return apierrors.IOError("put block meta: " + err.Error())
	}
	return nil
}

func (s *MetaStore) Get(ctx context.Context, id proto.BlockID) (BlockMeta, error) {
	raw, err := s.kvStore.GetRaw(ctx, "", metaKey(id), nil)
	if err == kvstore.ErrNotFound {
		return BlockMeta{}, apierrors.NotFound("block meta not found")
	}
	if err != nil {
		return BlockMeta{}, apierrors.IOError("get block meta: " + err.Error())
	}
	return unmarshalBlockMeta(raw), nil
}

func (s *MetaStore) Delete(ctx context.Context, id proto.BlockID) error {
	if err := s.kvStore.Delete(ctx, "", metaKey(id), nil); err != nil {
		return apierrors.IOError("delete block meta: " + err.Error())
	}
	return nil
}

// ScanAll streams every record in key order for recovery.
func (s *MetaStore) ScanAll(ctx context.Context, fn func(BlockMeta) error) error {
	lr := s.kvStore.List(ctx, "", nil, nil, nil)
	defer lr.Close()

	for {
		_, value, err := lr.ReadNextCopy()
		if err != nil {
			return apierrors.IOError("scan block meta: " + err.Error())
		}
		if value == nil {
			return nil
		}
		if err := fn(unmarshalBlockMeta(value)); err != nil {
			return err
		}
	}
}
