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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anycache/anycache/proto"
)

func TestLRUEvictionOrder(t *testing.T) {
	mgr := NewCacheManager(PolicyLRU)

	mgr.OnBlockInsert(1, 100)
	mgr.OnBlockInsert(2, 200)
	mgr.OnBlockInsert(3, 300)
	mgr.OnBlockAccess(1)

	// block 2 is the least recently used and alone covers the request
	victims := mgr.EvictionCandidates(200)
	require.Equal(t, []proto.BlockID{2}, victims)
	require.Equal(t, uint64(400), mgr.CachedBytes())
	require.Equal(t, 2, mgr.CachedBlockCount())
}

func TestLRUEvictsMultiple(t *testing.T) {
	mgr := NewCacheManager(PolicyLRU)

	mgr.OnBlockInsert(1, 100)
	mgr.OnBlockInsert(2, 100)
	mgr.OnBlockInsert(3, 100)
	mgr.OnBlockAccess(1)

	victims := mgr.EvictionCandidates(200)
	require.Equal(t, []proto.BlockID{2, 3}, victims)
	require.Equal(t, uint64(100), mgr.CachedBytes())
	require.Equal(t, 1, mgr.CachedBlockCount())
}

func TestLFUEvictionOrder(t *testing.T) {
	mgr := NewCacheManager(PolicyLFU)

	mgr.OnBlockInsert(1, 100)
	mgr.OnBlockInsert(2, 100)
	mgr.OnBlockInsert(3, 100)
	mgr.OnBlockAccess(1)
	mgr.OnBlockAccess(1)
	mgr.OnBlockAccess(1)
	mgr.OnBlockAccess(3)

	victims := mgr.EvictionCandidates(100)
	require.Equal(t, []proto.BlockID{2}, victims)
}

func TestLFUEvictTiesOldestFirst(t *testing.T) {
	p := newLFUPolicy()
	p.OnInsert(10)
	p.OnInsert(20)
	p.OnInsert(30)

	require.Equal(t, proto.BlockID(10), p.Evict())
	require.Equal(t, proto.BlockID(20), p.Evict())
	require.Equal(t, proto.BlockID(30), p.Evict())
	require.Equal(t, proto.InvalidBlockID, p.Evict())
}

func TestLFUMinFreqAdvances(t *testing.T) {
	p := newLFUPolicy()
	p.OnInsert(1)
	p.OnInsert(2)
	p.OnAccess(1)
	p.OnAccess(2)

	// everyone is at freq 2; min frequency walks forward
	require.Equal(t, proto.BlockID(1), p.Evict())
	require.Equal(t, proto.BlockID(2), p.Evict())
	require.Equal(t, 0, p.Size())
}

func TestLRURemove(t *testing.T) {
	p := newLRUPolicy()
	p.OnInsert(1)
	p.OnInsert(2)
	p.OnRemove(1)

	require.Equal(t, proto.BlockID(2), p.Evict())
	require.Equal(t, proto.InvalidBlockID, p.Evict())
}

func TestEvictionSufficiency(t *testing.T) {
	mgr := NewCacheManager(PolicyLRU)
	for i := proto.BlockID(1); i <= 5; i++ {
		mgr.OnBlockInsert(i, 100)
	}

	// freed bytes reach the request without overshooting past one victim
	victims := mgr.EvictionCandidates(250)
	require.Len(t, victims, 3)

	// asking for more than exists drains the policy and stops
	victims = mgr.EvictionCandidates(10000)
	require.Len(t, victims, 2)
	require.Equal(t, uint64(0), mgr.CachedBytes())
}
