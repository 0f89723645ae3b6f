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
	"sync"

	"github.com/anycache/anycache/proto"
)

// CacheManager drives the eviction policy and tracks per-block byte sizes
// plus the aggregate cached-bytes counter.
type CacheManager struct {
	mu         sync.Mutex
	policy     Policy
	blockSizes map[proto.BlockID]uint64
	totalBytes uint64
}

func NewCacheManager(policyName string) *CacheManager {
	return &CacheManager{
		policy:     NewPolicy(policyName),
		blockSizes: make(map[proto.BlockID]uint64),
	}
}

func (m *CacheManager) OnBlockAccess(id proto.BlockID) {
	m.mu.Lock()
	m.policy.OnAccess(id)
	m.mu.Unlock()
}

func (m *CacheManager) OnBlockInsert(id proto.BlockID, size uint64) {
	m.mu.Lock()
	m.policy.OnInsert(id)
	m.blockSizes[id] = size
	m.totalBytes += size
	m.mu.Unlock()
}

func (m *CacheManager) OnBlockRemove(id proto.BlockID) {
	m.mu.Lock()
	m.policy.OnRemove(id)
	if size, ok := m.blockSizes[id]; ok {
		m.totalBytes -= size
		delete(m.blockSizes, id)
	}
	m.mu.Unlock()
}

// EvictionCandidates pops victims, in policy order, until their summed
// sizes reach bytesNeeded or the policy runs dry.
func (m *CacheManager) EvictionCandidates(bytesNeeded uint64) []proto.BlockID {
	m.mu.Lock()
	defer m.mu.Unlock()

	var victims []proto.BlockID
	var freed uint64
	for freed < bytesNeeded && m.policy.Size() > 0 {
		victim := m.policy.Evict()
		if victim == proto.InvalidBlockID {
			break
		}
		if size, ok := m.blockSizes[victim]; ok {
			freed += size
			m.totalBytes -= size
			delete(m.blockSizes, victim)
		}
		victims = append(victims, victim)
	}
	return victims
}

func (m *CacheManager) CachedBlockCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blockSizes)
}

func (m *CacheManager) CachedBytes() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalBytes
}
