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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	apierrors "github.com/anycache/anycache/errors"
	"github.com/anycache/anycache/proto"
)

type blockHandle struct {
	blockID  proto.BlockID
	path     string // disk tiers
	mem      []byte // memory tier
	capacity uint64
}

// Tier is one storage medium of a worker. The memory tier holds bytes on
// the heap; disk tiers keep one file per block under the tier root,
// pre-sized on allocation.
type Tier struct {
	tierType proto.TierType
	path     string
	capacity uint64

	mu     sync.Mutex
	used   uint64
	blocks map[proto.BlockID]*blockHandle
}

func NewTier(tierType proto.TierType, path string, capacity uint64) (*Tier, error) {
	t := &Tier{
		tierType: tierType,
		path:     path,
		capacity: capacity,
		blocks:   make(map[proto.BlockID]*blockHandle),
	}
	if tierType == proto.TierMemory {
		return t, nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, apierrors.IOError("create tier root: " + err.Error())
	}
	if err := t.loadBlockFiles(); err != nil {
		return nil, err
	}
	return t, nil
}

// loadBlockFiles rediscovers surviving block files after a restart so
// recovery can match persisted metadata against Has.
func (t *Tier) loadBlockFiles() error {
	entries, err := os.ReadDir(t.path)
	if err != nil {
		return apierrors.IOError("scan tier root: " + err.Error())
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) <= len("block_") || name[:len("block_")] != "block_" {
			continue
		}
		id, err := strconv.ParseUint(name[len("block_"):], 10, 64)
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		t.blocks[id] = &blockHandle{
			blockID:  id,
			path:     filepath.Join(t.path, name),
			capacity: uint64(info.Size()),
		}
		t.used += uint64(info.Size())
	}
	return nil
}

func (t *Tier) Type() proto.TierType { return t.tierType }
func (t *Tier) Capacity() uint64     { return t.capacity }

func (t *Tier) UsedBytes() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.used
}

func (t *Tier) AvailableBytes() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.used > t.capacity {
		return 0
	}
	return t.capacity - t.used
}

func (t *Tier) Has(id proto.BlockID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.blocks[id]
	return ok
}

func (t *Tier) BlockIDs() []proto.BlockID {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]proto.BlockID, 0, len(t.blocks))
	for id := range t.blocks {
		ids = append(ids, id)
	}
	return ids
}

func (t *Tier) blockFilePath(id proto.BlockID) string {
	return filepath.Join(t.path, "block_"+strconv.FormatUint(id, 10))
}

// Allocate reserves size bytes for a block.
func (t *Tier) Allocate(id proto.BlockID, size uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.blocks[id]; ok {
		return apierrors.AlreadyExists("block already allocated in tier")
	}
	if t.used+size > t.capacity {
		return apierrors.ResourceExhausted("tier capacity exceeded")
	}

	handle := &blockHandle{blockID: id, capacity: size}
	if t.tierType == proto.TierMemory {
		handle.mem = make([]byte, size)
	} else {
		fpath := t.blockFilePath(id)
		f, err := os.OpenFile(fpath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return apierrors.IOError("create block file: " + err.Error())
		}
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			os.Remove(fpath)
			return apierrors.IOError("presize block file: " + err.Error())
		}
		f.Close()
		handle.path = fpath
	}

	t.blocks[id] = handle
	t.used += size
	return nil
}

func (t *Tier) Read(id proto.BlockID, buf []byte, offset uint64) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	handle, ok := t.blocks[id]
	if !ok {
		return 0, apierrors.NotFound("block not found")
	}
	if offset >= handle.capacity {
		return 0, nil
	}
	n := len(buf)
	if offset+uint64(n) > handle.capacity {
		n = int(handle.capacity - offset)
	}

	if t.tierType == proto.TierMemory {
		copy(buf[:n], handle.mem[offset:offset+uint64(n)])
		return n, nil
	}

	f, err := os.Open(handle.path)
	if err != nil {
		return 0, apierrors.IOError("open block file: " + err.Error())
	}
	defer f.Close()
	read, err := f.ReadAt(buf[:n], int64(offset))
	if err != nil && read != n {
		return read, apierrors.IOError("read block file: " + err.Error())
	}
	return read, nil
}

func (t *Tier) Write(id proto.BlockID, buf []byte, offset uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	handle, ok := t.blocks[id]
	if !ok {
		return apierrors.NotFound("block not found")
	}
	if offset+uint64(len(buf)) > handle.capacity {
		return apierrors.InvalidArgument(fmt.Sprintf(
			"write [%d,%d) exceeds block capacity %d", offset, offset+uint64(len(buf)), handle.capacity))
	}

	if t.tierType == proto.TierMemory {
		copy(handle.mem[offset:], buf)
		return nil
	}

	f, err := os.OpenFile(handle.path, os.O_WRONLY, 0o644)
	if err != nil {
		return apierrors.IOError("open block file: " + err.Error())
	}
	defer f.Close()
	if _, err := f.WriteAt(buf, int64(offset)); err != nil {
		return apierrors.IOError("write block file: " + err.Error())
	}
	return nil
}

func (t *Tier) Remove(id proto.BlockID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	handle, ok := t.blocks[id]
	if !ok {
		return apierrors.NotFound("block not found")
	}
	if t.tierType != proto.TierMemory {
		os.Remove(handle.path)
	}
	t.used -= handle.capacity
	delete(t.blocks, id)
	return nil
}

// Export copies a block's bytes out for a tier move.
func (t *Tier) Export(id proto.BlockID) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	handle, ok := t.blocks[id]
	if !ok {
		return nil, apierrors.NotFound("block not in tier")
	}
	data := make([]byte, handle.capacity)
	if t.tierType == proto.TierMemory {
		copy(data, handle.mem)
		return data, nil
	}
	f, err := os.Open(handle.path)
	if err != nil {
		return nil, apierrors.IOError("open block file: " + err.Error())
	}
	defer f.Close()
	n, err := f.ReadAt(data, 0)
	if err != nil && n != len(data) {
		return nil, apierrors.IOError("read block file: " + err.Error())
	}
	return data[:n], nil
}

// Import allocates and fills a block from an Export of another tier.
func (t *Tier) Import(id proto.BlockID, data []byte) error {
	if err := t.Allocate(id, uint64(len(data))); err != nil {
		return err
	}
	return t.Write(id, data, 0)
}
