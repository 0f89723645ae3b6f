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

package cluster

import (
	"sync"

	"github.com/anycache/anycache/proto"
)

// BlockMap is the master's in-memory block id -> locations index. Entries
// arrive from worker reports and leave on delete, truncate or worker
// death; stale entries are tolerated until then.
type BlockMap struct {
	mu           sync.Mutex
	locations    map[proto.BlockID][]proto.BlockLocation
	workerBlocks map[proto.WorkerID]map[proto.BlockID]struct{}
}

func NewBlockMap() *BlockMap {
	return &BlockMap{
		locations:    make(map[proto.BlockID][]proto.BlockLocation),
		workerBlocks: make(map[proto.WorkerID]map[proto.BlockID]struct{}),
	}
}

// Add records one replica; a re-report from the same worker replaces its
// previous entry (the tier may have changed).
func (m *BlockMap) Add(loc proto.BlockLocation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	locs := m.locations[loc.BlockID]
	replaced := false
	for i := range locs {
		if locs[i].WorkerID == loc.WorkerID {
			locs[i] = loc
			replaced = true
			break
		}
	}
	if !replaced {
		locs = append(locs, loc)
	}
	m.locations[loc.BlockID] = locs

	blocks, ok := m.workerBlocks[loc.WorkerID]
	if !ok {
		blocks = make(map[proto.BlockID]struct{})
		m.workerBlocks[loc.WorkerID] = blocks
	}
	blocks[loc.BlockID] = struct{}{}
}

// GetLocations returns every known replica of the given blocks; unknown
// blocks contribute nothing.
func (m *BlockMap) GetLocations(blockIDs []proto.BlockID) []proto.BlockLocation {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []proto.BlockLocation
	for _, id := range blockIDs {
		out = append(out, m.locations[id]...)
	}
	return out
}

// RemoveBlock drops every replica of one block.
func (m *BlockMap) RemoveBlock(blockID proto.BlockID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, loc := range m.locations[blockID] {
		if blocks, ok := m.workerBlocks[loc.WorkerID]; ok {
			delete(blocks, blockID)
		}
	}
	delete(m.locations, blockID)
}

// RemoveBlockOnWorker drops one (block, worker) replica.
func (m *BlockMap) RemoveBlockOnWorker(blockID proto.BlockID, workerID proto.WorkerID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	locs := m.locations[blockID]
	for i := range locs {
		if locs[i].WorkerID == workerID {
			locs = append(locs[:i], locs[i+1:]...)
			break
		}
	}
	if len(locs) == 0 {
		delete(m.locations, blockID)
	} else {
		m.locations[blockID] = locs
	}
	if blocks, ok := m.workerBlocks[workerID]; ok {
		delete(blocks, blockID)
	}
}

// RemoveWorkerBlocks drops every location held by one worker.
func (m *BlockMap) RemoveWorkerBlocks(workerID proto.WorkerID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	blocks, ok := m.workerBlocks[workerID]
	if !ok {
		return
	}
	for blockID := range blocks {
		locs := m.locations[blockID]
		for i := range locs {
			if locs[i].WorkerID == workerID {
				locs = append(locs[:i], locs[i+1:]...)
				break
			}
		}
		if len(locs) == 0 {
			delete(m.locations, blockID)
		} else {
			m.locations[blockID] = locs
		}
	}
	delete(m.workerBlocks, workerID)
}

// WorkerBlocks lists every block id a worker currently holds.
func (m *BlockMap) WorkerBlocks(workerID proto.WorkerID) []proto.BlockID {
	m.mu.Lock()
	defer m.mu.Unlock()

	blocks := m.workerBlocks[workerID]
	out := make([]proto.BlockID, 0, len(blocks))
	for id := range blocks {
		out = append(out, id)
	}
	return out
}

func (m *BlockMap) ReplicaCount(blockID proto.BlockID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locations[blockID])
}
