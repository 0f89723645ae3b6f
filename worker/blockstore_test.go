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
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	apierrors "github.com/anycache/anycache/errors"
	"github.com/anycache/anycache/proto"
	"github.com/anycache/anycache/util"
)

type storeEnv struct {
	store *BlockStore
	paths []string
	opts  BlockStoreOptions
}

func newStoreEnv(t *testing.T, opts BlockStoreOptions) *storeEnv {
	ctx := context.TODO()
	env := &storeEnv{opts: opts}

	if opts.MetaDBPath == "" {
		metaPath, err := util.GenTmpPath()
		require.NoError(t, err)
		env.paths = append(env.paths, metaPath)
		env.opts.MetaDBPath = metaPath
	}
	for i := range env.opts.Tiers {
		if env.opts.Tiers[i].Kind != "mem" && env.opts.Tiers[i].Path == "" {
			p, err := util.GenTmpPath()
			require.NoError(t, err)
			env.paths = append(env.paths, p)
			env.opts.Tiers[i].Path = p
		}
	}

	store, err := NewBlockStore(ctx, env.opts)
	require.NoError(t, err)
	require.NoError(t, store.Recover(ctx))
	env.store = store
	return env
}

func (e *storeEnv) cleanup() {
	e.store.Close()
	for _, p := range e.paths {
		os.RemoveAll(p)
	}
}

func TestBlockStoreCreateReadWrite(t *testing.T) {
	ctx := context.TODO()
	env := newStoreEnv(t, BlockStoreOptions{
		Tiers:         []TierConfig{{Kind: "mem", CapacityBytes: 1 << 20}},
		HighWatermark: 1,
	})
	defer env.cleanup()
	s := env.store

	id := proto.MakeBlockID(42, 0)
	require.NoError(t, s.CreateBlock(ctx, id, 4096))
	require.True(t, s.HasBlock(id))

	// create lands in exactly one tier with room
	tier, ok := s.GetBlockTier(id)
	require.True(t, ok)
	require.Equal(t, proto.TierMemory, tier)

	require.NoError(t, s.WriteBlock(ctx, id, []byte("cached bytes"), 0))
	buf := make([]byte, 12)
	n, err := s.ReadBlock(ctx, id, buf, 0)
	require.NoError(t, err)
	require.Equal(t, 12, n)
	require.Equal(t, []byte("cached bytes"), buf)

	meta, err := s.GetBlockMeta(ctx, id)
	require.NoError(t, err)
	require.Equal(t, uint64(4096), meta.Length)
	require.Equal(t, uint64(1), meta.AccessCount)

	// ensure is a no-op on a present block
	require.NoError(t, s.EnsureBlock(ctx, id, 4096))
	require.Equal(t, 1, s.CachedBlockCount())

	require.NoError(t, s.RemoveBlock(ctx, id))
	require.False(t, s.HasBlock(id))
	_, err = s.GetBlockMeta(ctx, id)
	require.True(t, apierrors.IsNotFound(err))
	require.Equal(t, uint64(0), s.TotalCachedBytes())
}

func TestBlockStoreMissingBlock(t *testing.T) {
	ctx := context.TODO()
	env := newStoreEnv(t, BlockStoreOptions{
		Tiers:         []TierConfig{{Kind: "mem", CapacityBytes: 1 << 20}},
		HighWatermark: 1,
	})
	defer env.cleanup()

	buf := make([]byte, 8)
	_, err := env.store.ReadBlock(ctx, 12345, buf, 0)
	require.True(t, apierrors.IsNotFound(err))
	require.True(t, apierrors.IsNotFound(env.store.WriteBlock(ctx, 12345, buf, 0)))
}

func TestBlockStoreEvictionOnFull(t *testing.T) {
	ctx := context.TODO()
	env := newStoreEnv(t, BlockStoreOptions{
		Tiers:         []TierConfig{{Kind: "mem", CapacityBytes: 1000}},
		HighWatermark: 1,
	})
	defer env.cleanup()
	s := env.store

	require.NoError(t, s.CreateBlock(ctx, 1, 400))
	require.NoError(t, s.CreateBlock(ctx, 2, 400))

	// no tier has 400 free; the LRU head (block 1) is evicted
	require.NoError(t, s.CreateBlock(ctx, 3, 400))
	require.False(t, s.HasBlock(1))
	require.True(t, s.HasBlock(2))
	require.True(t, s.HasBlock(3))

	// an unsatisfiable request reports exhaustion
	err := s.CreateBlock(ctx, 4, 10000)
	require.Equal(t, proto.CodeResourceExhausted, apierrors.CodeOf(err))
}

func TestBlockStoreAutoEvictWatermark(t *testing.T) {
	ctx := context.TODO()
	env := newStoreEnv(t, BlockStoreOptions{
		Tiers:         []TierConfig{{Kind: "mem", CapacityBytes: 1000}},
		HighWatermark: 0.95,
		LowWatermark:  0.50,
	})
	defer env.cleanup()
	s := env.store

	for i := proto.BlockID(1); i <= 9; i++ {
		require.NoError(t, s.CreateBlock(ctx, i, 100))
	}
	// 9 blocks: 900/1000 = 0.9, under the high watermark
	require.Equal(t, 9, s.CachedBlockCount())

	// the tenth crosses 0.95 and eviction pulls usage to the low watermark
	require.NoError(t, s.CreateBlock(ctx, 10, 100))
	require.LessOrEqual(t, s.TierUsedBytes(proto.TierMemory), uint64(500))
	require.True(t, s.HasBlock(10))
}

func TestBlockStoreAutoPromotion(t *testing.T) {
	ctx := context.TODO()
	env := newStoreEnv(t, BlockStoreOptions{
		Tiers: []TierConfig{
			{Kind: "mem", CapacityBytes: 1 << 20},
			{Kind: "ssd", CapacityBytes: 1 << 20},
		},
		AutoPromoteThreshold: 3,
		HighWatermark:        1,
	})
	defer env.cleanup()
	s := env.store

	// fill the memory tier so the next create lands on SSD
	filler := proto.MakeBlockID(1, 0)
	require.NoError(t, s.CreateBlock(ctx, filler, 1<<20))
	tier, _ := s.GetBlockTier(filler)
	require.Equal(t, proto.TierMemory, tier)

	hot := proto.MakeBlockID(2, 0)
	require.NoError(t, s.CreateBlock(ctx, hot, 4096))
	tier, _ = s.GetBlockTier(hot)
	require.Equal(t, proto.TierSSD, tier)

	// free memory again so promotion has room
	require.NoError(t, s.RemoveBlock(ctx, filler))

	buf := make([]byte, 16)
	for i := 0; i < 3; i++ {
		_, err := s.ReadBlock(ctx, hot, buf, 0)
		require.NoError(t, err)
	}

	tier, ok := s.GetBlockTier(hot)
	require.True(t, ok)
	require.Equal(t, proto.TierMemory, tier)
	meta, err := s.GetBlockMeta(ctx, hot)
	require.NoError(t, err)
	require.Equal(t, proto.TierMemory, meta.Tier)
	require.Equal(t, uint64(0), s.TierUsedBytes(proto.TierSSD))
}

func TestBlockStorePromoteExplicit(t *testing.T) {
	ctx := context.TODO()
	env := newStoreEnv(t, BlockStoreOptions{
		Tiers: []TierConfig{
			{Kind: "mem", CapacityBytes: 1 << 20},
			{Kind: "ssd", CapacityBytes: 1 << 20},
		},
		AutoPromoteThreshold: 100,
		HighWatermark:        1,
	})
	defer env.cleanup()
	s := env.store

	filler := proto.BlockID(7)
	require.NoError(t, s.CreateBlock(ctx, filler, 1<<20))
	id := proto.BlockID(8)
	require.NoError(t, s.CreateBlock(ctx, id, 256))
	require.NoError(t, s.WriteBlock(ctx, id, []byte("promote me"), 0))
	require.NoError(t, s.RemoveBlock(ctx, filler))

	require.NoError(t, s.PromoteBlock(ctx, id, proto.TierMemory))

	tier, _ := s.GetBlockTier(id)
	require.Equal(t, proto.TierMemory, tier)
	buf := make([]byte, 10)
	_, err := s.ReadBlock(ctx, id, buf, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("promote me"), buf)

	// promoting to the current tier is a no-op
	require.NoError(t, s.PromoteBlock(ctx, id, proto.TierMemory))
}

func TestBlockStoreRecoverWarmRestart(t *testing.T) {
	ctx := context.TODO()

	metaPath, err := util.GenTmpPath()
	require.NoError(t, err)
	defer os.RemoveAll(metaPath)
	ssdPath, err := util.GenTmpPath()
	require.NoError(t, err)
	defer os.RemoveAll(ssdPath)

	opts := BlockStoreOptions{
		Tiers: []TierConfig{
			{Kind: "mem", CapacityBytes: 1 << 20},
			{Kind: "ssd", Path: ssdPath, CapacityBytes: 1 << 20},
		},
		MetaDBPath:    metaPath,
		HighWatermark: 1,
	}

	s1, err := NewBlockStore(ctx, opts)
	require.NoError(t, err)

	memBlock := proto.BlockID(1)
	require.NoError(t, s1.CreateBlock(ctx, memBlock, 512))
	// force one block onto SSD
	require.NoError(t, s1.PromoteBlock(ctx, memBlock, proto.TierSSD))
	ssdBlock := memBlock

	volatile := proto.BlockID(2)
	require.NoError(t, s1.CreateBlock(ctx, volatile, 512))
	tier, _ := s1.GetBlockTier(volatile)
	require.Equal(t, proto.TierMemory, tier)
	s1.Close()

	// restart: the disk tier rediscovers its files, memory comes up empty
	s2, err := NewBlockStore(ctx, opts)
	require.NoError(t, err)
	defer s2.Close()
	require.NoError(t, s2.Recover(ctx))

	require.True(t, s2.HasBlock(ssdBlock))
	tier, _ = s2.GetBlockTier(ssdBlock)
	require.Equal(t, proto.TierSSD, tier)

	// the memory-backed record was dropped as an orphan
	require.False(t, s2.HasBlock(volatile))
	_, err = s2.GetBlockMeta(ctx, volatile)
	require.True(t, apierrors.IsNotFound(err))
}
