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
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	"github.com/anycache/anycache/client"
	"github.com/anycache/anycache/proto"
	"github.com/anycache/anycache/ufs"
	"github.com/anycache/anycache/util/limiter"
)

type Config struct {
	Host          string `json:"host"`
	Port          uint32 `json:"port"`
	MasterAddress string `json:"master_address"`

	BlockStore BlockStoreOptions `json:"block_store"`
	BlockSize  uint64            `json:"block_size"`
	PageSize   uint64            `json:"page_size"`

	DataMoverThreads   int `json:"data_mover_threads"`
	HeartbeatIntervalS int `json:"heartbeat_interval_s"`

	Limiter    limiter.Config   `json:"limiter"`
	UfsFactory ufs.Factory      `json:"ufs"`
	Rpc        client.RpcConfig `json:"rpc"`
}

const defaultHeartbeatIntervalS = 10

// Worker owns the block engine and the data mover, registers itself with
// the master and heartbeats capacity/used.
type Worker struct {
	cfg        *Config
	blockStore *BlockStore
	mover      *DataMover
	lim        limiter.Limiter

	pool         *client.Pool
	masterClient *client.MasterClient
	workerID     uint64

	done      chan struct{}
	closeOnce sync.Once
}

func NewWorker(ctx context.Context, cfg *Config) (*Worker, error) {
	if cfg.BlockSize == 0 {
		cfg.BlockSize = proto.DefaultBlockSize
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = proto.DefaultPageSize
	}
	if cfg.HeartbeatIntervalS <= 0 {
		cfg.HeartbeatIntervalS = defaultHeartbeatIntervalS
	}
	if cfg.Rpc.InternalRPCTimeoutMs == 0 {
		cfg.Rpc = client.DefaultRpcConfig()
	}

	blockStore, err := NewBlockStore(ctx, cfg.BlockStore)
	if err != nil {
		return nil, err
	}
	if err := blockStore.Recover(ctx); err != nil {
		trace.SpanFromContextSafe(ctx).Warnf("block store recovery: %s", err)
	}

	w := &Worker{
		cfg:        cfg,
		blockStore: blockStore,
		mover:      NewDataMover(blockStore, nil, cfg.DataMoverThreads),
		lim:        limiter.NewLimiter(cfg.Limiter),
		pool:       client.NewPool(),
		done:       make(chan struct{}),
	}
	if cfg.MasterAddress != "" {
		w.masterClient = client.NewMasterClient(w.pool, cfg.MasterAddress, cfg.Rpc.InternalRPCTimeoutMs)
	}
	return w, nil
}

func (w *Worker) BlockStore() *BlockStore  { return w.blockStore }
func (w *Worker) DataMover() *DataMover    { return w.mover }
func (w *Worker) UfsFactory() *ufs.Factory { return &w.cfg.UfsFactory }
func (w *Worker) Limiter() limiter.Limiter { return w.lim }
func (w *Worker) WorkerID() proto.WorkerID { return atomic.LoadUint64(&w.workerID) }
func (w *Worker) PageSize() uint64         { return w.cfg.PageSize }

func (w *Worker) SelfAddress() string {
	host := w.cfg.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return host + ":" + strconv.Itoa(int(w.cfg.Port))
}

// Start registers with the master and begins heartbeating; a failed
// registration is retried from the heartbeat loop.
func (w *Worker) Start(ctx context.Context) {
	span := trace.SpanFromContextSafe(ctx)

	if w.masterClient == nil {
		return
	}
	id, err := w.masterClient.RegisterWorker(ctx, w.SelfAddress(), w.TotalCapacity(), w.TotalUsed())
	if err != nil {
		span.Warnf("register with master failed: %s", err)
	} else {
		atomic.StoreUint64(&w.workerID, id)
		span.Infof("registered with master as worker %d", id)
	}

	go w.heartbeatLoop()
}

func (w *Worker) heartbeatLoop() {
	span, ctx := trace.StartSpanFromContext(context.Background(), "worker-heartbeat")
	ticker := time.NewTicker(time.Duration(w.cfg.HeartbeatIntervalS) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-w.done:
			return
		}

		capacity, used := w.TotalCapacity(), w.TotalUsed()
		if w.WorkerID() == proto.InvalidWorkerID {
			id, err := w.masterClient.RegisterWorker(ctx, w.SelfAddress(), capacity, used)
			if err == nil {
				atomic.StoreUint64(&w.workerID, id)
				span.Infof("late-registered with master as worker %d", id)
			}
			continue
		}
		if err := w.masterClient.Heartbeat(ctx, w.WorkerID(), capacity, used); err != nil {
			span.Warnf("heartbeat failed: %s", err)
		}
	}
}

// ReportBlockLocation tells the master this worker now holds the block.
func (w *Worker) ReportBlockLocation(ctx context.Context, blockID proto.BlockID) {
	if w.masterClient == nil || w.WorkerID() == proto.InvalidWorkerID {
		return
	}
	tier, ok := w.blockStore.GetBlockTier(blockID)
	if !ok {
		tier = proto.TierMemory
	}
	err := w.masterClient.ReportBlockLocation(ctx, w.WorkerID(), []proto.BlockLocation{{
		BlockID:       blockID,
		WorkerID:      w.WorkerID(),
		WorkerAddress: w.SelfAddress(),
		Tier:          tier,
	}})
	if err != nil {
		trace.SpanFromContextSafe(ctx).Warnf("report block %d failed: %s", blockID, err)
	}
}

func (w *Worker) TotalCapacity() uint64 {
	var total uint64
	for _, t := range []proto.TierType{proto.TierMemory, proto.TierSSD, proto.TierHDD} {
		total += w.blockStore.TierCapacity(t)
	}
	return total
}

func (w *Worker) TotalUsed() uint64 {
	return w.blockStore.TotalCachedBytes()
}

func (w *Worker) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
		w.mover.Stop()
		w.blockStore.Close()
		w.pool.Close()
	})
}
