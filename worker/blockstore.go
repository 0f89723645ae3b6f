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
	"sort"
	"sync"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	apierrors "github.com/anycache/anycache/errors"
	"github.com/anycache/anycache/metrics"
	"github.com/anycache/anycache/proto"
)

// TierConfig is one tier spec from the worker configuration.
type TierConfig struct {
	Kind          string `json:"kind"`
	Path          string `json:"path"`
	CapacityBytes uint64 `json:"capacity_bytes"`
}

type BlockStoreOptions struct {
	Tiers       []TierConfig `json:"tiers"`
	MetaDBPath  string       `json:"meta_db_path"`
	CachePolicy string       `json:"cache_policy"`

	// AutoPromoteThreshold promotes a block one tier up once its access
	// count reaches the threshold; 0 disables.
	AutoPromoteThreshold uint64 `json:"auto_promote_threshold"`

	// Watermarks are per-tier used/capacity ratios: crossing the high one
	// evicts down to the low one.
	HighWatermark float64 `json:"high_watermark"`
	LowWatermark  float64 `json:"low_watermark"`
}

const (
	defaultAutoPromoteThreshold = uint64(3)
	defaultHighWatermark        = 0.95
	defaultLowWatermark         = 0.80
)

// BlockStore is the worker's multi-tier block engine. Tiers order fastest
// first; the engine owns the block->tier map, the cache manager and the
// durable block metadata.
type BlockStore struct {
	opts     BlockStoreOptions
	tiers    []*Tier
	cacheMgr *CacheManager
	meta     *MetaStore

	mu        sync.Mutex
	blockTier map[proto.BlockID]proto.TierType
}

func NewBlockStore(ctx context.Context, opts BlockStoreOptions) (*BlockStore, error) {
	if opts.AutoPromoteThreshold == 0 {
		opts.AutoPromoteThreshold = defaultAutoPromoteThreshold
	}
	if opts.HighWatermark == 0 {
		opts.HighWatermark = defaultHighWatermark
	}
	if opts.LowWatermark == 0 {
		opts.LowWatermark = defaultLowWatermark
	}

	s := &BlockStore{
		opts:      opts,
		cacheMgr:  NewCacheManager(opts.CachePolicy),
		blockTier: make(map[proto.BlockID]proto.TierType),
	}

	for _, tc := range opts.Tiers {
		tierType, ok := proto.ParseTierType(tc.Kind)
		if !ok {
			return nil, apierrors.InvalidArgument("unknown tier kind: " + tc.Kind)
		}
		tier, err := NewTier(tierType, tc.Path, tc.CapacityBytes)
		if err != nil {
			return nil, err
		}
		s.tiers = append(s.tiers, tier)
	}
	// fastest first; ties keep configuration order
	sort.SliceStable(s.tiers, func(i, j int) bool {
		return s.tiers[i].Type() < s.tiers[j].Type()
	})

	meta, err := OpenMetaStore(ctx, opts.MetaDBPath)
	if err != nil {
		return nil, err
	}
	s.meta = meta
	return s, nil
}

func (s *BlockStore) Close() {
	s.meta.Close()
}

func (s *BlockStore) findTier(tierType proto.TierType) *Tier {
	for _, t := range s.tiers {
		if t.Type() == tierType {
			return t
		}
	}
	return nil
}

func (s *BlockStore) findBlockTier(id proto.BlockID) *Tier {
	s.mu.Lock()
	tierType, ok := s.blockTier[id]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.findTier(tierType)
}

// CreateBlock allocates in the fastest tier with room; with none, it
// evicts from the fastest tier and retries there. A failure after
// allocation rolls the allocation back so tier, policy, metadata and the
// block map never disagree.
func (s *BlockStore) CreateBlock(ctx context.Context, id proto.BlockID, size uint64) error {
	var target *Tier
	for _, tier := range s.tiers {
		if tier.AvailableBytes() >= size {
			target = tier
			break
		}
	}
	if target == nil {
		if len(s.tiers) == 0 {
			return apierrors.ResourceExhausted("no tiers configured")
		}
		target = s.tiers[0]
		if _, err := s.EvictBlocks(ctx, target.Type(), size); err != nil {
			return err
		}
		if target.AvailableBytes() < size {
			return apierrors.ResourceExhausted("no tier has enough space")
		}
	}

	if err := target.Allocate(id, size); err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	meta := &BlockMeta{
		BlockID:          id,
		Length:           size,
		Tier:             target.Type(),
		CreateTimeMs:     now,
		LastAccessTimeMs: now,
	}
	if err := s.meta.Put(ctx, meta); err != nil {
		target.Remove(id)
		return err
	}

	s.mu.Lock()
	s.blockTier[id] = target.Type()
	s.mu.Unlock()
	s.cacheMgr.OnBlockInsert(id, size)
	metrics.BlocksCreated.Inc()

	s.maybeAutoEvict(ctx, target.Type())
	return nil
}

// EnsureBlock is CreateBlock unless the block is already present anywhere.
func (s *BlockStore) EnsureBlock(ctx context.Context, id proto.BlockID, size uint64) error {
	if s.HasBlock(id) {
		return nil
	}
	return s.CreateBlock(ctx, id, size)
}

// ReadBlock copies bytes out, feeds the policy, bumps the access stats and
// then consults the auto-promotion rule.
func (s *BlockStore) ReadBlock(ctx context.Context, id proto.BlockID, buf []byte, offset uint64) (int, error) {
	tier := s.findBlockTier(id)
	if tier == nil {
		return 0, apierrors.NotFound("block not cached")
	}

	n, err := tier.Read(id, buf, offset)
	if err != nil {
		return n, err
	}
	s.cacheMgr.OnBlockAccess(id)

	if meta, err := s.meta.Get(ctx, id); err == nil {
		meta.LastAccessTimeMs = time.Now().UnixMilli()
		meta.AccessCount++
		if err := s.meta.Put(ctx, &meta); err == nil {
			s.maybeAutoPromote(ctx, id, meta)
		}
	}
	return n, nil
}

// WriteBlock copies bytes in; writes never change the tier choice.
func (s *BlockStore) WriteBlock(ctx context.Context, id proto.BlockID, buf []byte, offset uint64) error {
	tier := s.findBlockTier(id)
	if tier == nil {
		return apierrors.NotFound("block not cached")
	}
	if err := tier.Write(id, buf, offset); err != nil {
		return err
	}
	s.cacheMgr.OnBlockAccess(id)
	return nil
}

func (s *BlockStore) RemoveBlock(ctx context.Context, id proto.BlockID) error {
	if tier := s.findBlockTier(id); tier != nil {
		tier.Remove(id)
	}
	s.cacheMgr.OnBlockRemove(id)
	s.meta.Delete(ctx, id)

	s.mu.Lock()
	delete(s.blockTier, id)
	s.mu.Unlock()
	metrics.BlocksRemoved.Inc()
	return nil
}

// PromoteBlock moves a block to a faster tier: export, import, remove from
// source, update metadata and the block map — in that order, so a failure
// before the source removal leaves the block readable where it was.
func (s *BlockStore) PromoteBlock(ctx context.Context, id proto.BlockID, target proto.TierType) error {
	src := s.findBlockTier(id)
	if src == nil {
		return apierrors.NotFound("block not found")
	}
	if src.Type() == target {
		return nil
	}
	dst := s.findTier(target)
	if dst == nil {
		return apierrors.NotFound("target tier not found")
	}

	data, err := src.Export(id)
	if err != nil {
		return err
	}
	if err := dst.Import(id, data); err != nil {
		return err
	}
	src.Remove(id)

	if meta, err := s.meta.Get(ctx, id); err == nil {
		meta.Tier = target
		s.meta.Put(ctx, &meta)
	}

	s.mu.Lock()
	s.blockTier[id] = target
	s.mu.Unlock()
	metrics.BlocksPromoted.Inc()

	trace.SpanFromContextSafe(ctx).Debugf("promoted block %d to %s", id, target)
	return nil
}

// EvictBlocks asks the policy for candidates summing to bytesNeeded and
// removes the ones living in the requested tier, metadata included.
// Candidate order is purely policy-driven.
func (s *BlockStore) EvictBlocks(ctx context.Context, tierType proto.TierType, bytesNeeded uint64) ([]proto.BlockID, error) {
	candidates := s.cacheMgr.EvictionCandidates(bytesNeeded)

	var evicted []proto.BlockID
	for _, id := range candidates {
		tier := s.findBlockTier(id)
		if tier == nil || tier.Type() != tierType {
			continue
		}
		tier.Remove(id)
		s.meta.Delete(ctx, id)
		s.mu.Lock()
		delete(s.blockTier, id)
		s.mu.Unlock()
		evicted = append(evicted, id)
	}
	metrics.BlocksEvicted.Add(float64(len(evicted)))
	return evicted, nil
}

// Recover repopulates the block map from persisted metadata. A record
// whose claimed tier no longer has the block (volatile backing) is
// deleted instead.
func (s *BlockStore) Recover(ctx context.Context) error {
	span := trace.SpanFromContextSafe(ctx)

	var orphans []proto.BlockID
	recovered := 0
	err := s.meta.ScanAll(ctx, func(meta BlockMeta) error {
		tier := s.findTier(meta.Tier)
		if tier != nil && tier.Has(meta.BlockID) {
			s.mu.Lock()
			s.blockTier[meta.BlockID] = meta.Tier
			s.mu.Unlock()
			s.cacheMgr.OnBlockInsert(meta.BlockID, meta.Length)
			recovered++
		} else {
			orphans = append(orphans, meta.BlockID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, id := range orphans {
		s.meta.Delete(ctx, id)
	}

	span.Infof("block store recovery: %d blocks recovered, %d orphan records dropped", recovered, len(orphans))
	return nil
}

func (s *BlockStore) HasBlock(id proto.BlockID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blockTier[id]
	return ok
}

func (s *BlockStore) GetBlockMeta(ctx context.Context, id proto.BlockID) (BlockMeta, error) {
	return s.meta.Get(ctx, id)
}

func (s *BlockStore) GetBlockTier(id proto.BlockID) (proto.TierType, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tierType, ok := s.blockTier[id]
	return tierType, ok
}

func (s *BlockStore) TierCapacity(tierType proto.TierType) uint64 {
	if tier := s.findTier(tierType); tier != nil {
		return tier.Capacity()
	}
	return 0
}

func (s *BlockStore) TierUsedBytes(tierType proto.TierType) uint64 {
	if tier := s.findTier(tierType); tier != nil {
		return tier.UsedBytes()
	}
	return 0
}

func (s *BlockStore) TotalCachedBytes() uint64 {
	return s.cacheMgr.CachedBytes()
}

func (s *BlockStore) CachedBlockCount() int {
	return s.cacheMgr.CachedBlockCount()
}

// maybeAutoPromote moves a hot block one tier up once its access count
// reaches the threshold and the faster tier has room. Monotone: blocks
// never demote.
func (s *BlockStore) maybeAutoPromote(ctx context.Context, id proto.BlockID, meta BlockMeta) {
	if s.opts.AutoPromoteThreshold == 0 || meta.AccessCount < s.opts.AutoPromoteThreshold {
		return
	}

	current, ok := s.GetBlockTier(id)
	if !ok {
		return
	}
	var target proto.TierType
	switch current {
	case proto.TierHDD:
		target = proto.TierSSD
	case proto.TierSSD:
		target = proto.TierMemory
	default:
		return
	}

	dst := s.findTier(target)
	if dst == nil || dst.AvailableBytes() < meta.Length {
		return
	}
	s.PromoteBlock(ctx, id, target)
}

// maybeAutoEvict checks the tier against the high watermark after an
// allocation and evicts down to the low watermark.
func (s *BlockStore) maybeAutoEvict(ctx context.Context, tierType proto.TierType) {
	tier := s.findTier(tierType)
	if tier == nil || tier.Capacity() == 0 {
		return
	}
	used := tier.UsedBytes()
	if float64(used)/float64(tier.Capacity()) <= s.opts.HighWatermark {
		return
	}
	targetUsed := uint64(float64(tier.Capacity()) * s.opts.LowWatermark)
	if used <= targetUsed {
		return
	}
	evicted, _ := s.EvictBlocks(ctx, tierType, used-targetUsed)
	if len(evicted) > 0 {
		trace.SpanFromContextSafe(ctx).Debugf("auto-evicted %d blocks from %s", len(evicted), tierType)
	}
}
