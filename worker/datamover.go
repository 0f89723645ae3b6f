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
	"io"
	"sync"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	apierrors "github.com/anycache/anycache/errors"
	"github.com/anycache/anycache/metrics"
	"github.com/anycache/anycache/proto"
	"github.com/anycache/anycache/ufs"
)

type taskKind int

const (
	taskPreload taskKind = iota
	taskPersist
)

// moverTask carries one preload or persist. A per-task store dominates the
// mover-wide one; a task finding neither fails.
type moverTask struct {
	kind        taskKind
	blockID     proto.BlockID
	ufsPath     string
	offsetInUfs uint64
	length      uint64
	ownedUfs    ufs.UnderFileSystem
}

// DataMover is the worker's background executor moving bytes between the
// cache and the external store. A bounded goroutine pool consumes a FIFO
// queue; failures are logged, not retried — the submitter treats a failed
// preload as a cache miss.
type DataMover struct {
	blockStore *BlockStore
	defaultUfs ufs.UnderFileSystem

	mu       sync.Mutex
	notEmpty *sync.Cond
	allDone  *sync.Cond
	queue    []moverTask
	active   int
	running  bool

	wg sync.WaitGroup
}

const defaultMoverThreads = 2

func NewDataMover(blockStore *BlockStore, defaultUfs ufs.UnderFileSystem, numThreads int) *DataMover {
	if numThreads <= 0 {
		numThreads = defaultMoverThreads
	}
	m := &DataMover{
		blockStore: blockStore,
		defaultUfs: defaultUfs,
		running:    true,
	}
	m.notEmpty = sync.NewCond(&m.mu)
	m.allDone = sync.NewCond(&m.mu)

	m.wg.Add(numThreads)
	for i := 0; i < numThreads; i++ {
		go m.workerLoop()
	}
	return m
}

func (m *DataMover) submit(task moverTask) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return apierrors.Unavailable("data mover stopped")
	}
	m.queue = append(m.queue, task)
	m.mu.Unlock()
	m.notEmpty.Signal()
	return nil
}

// SubmitPreload schedules reading [offset, offset+length) of ufsPath into
// the block.
func (m *DataMover) SubmitPreload(blockID proto.BlockID, ufsPath string, offset, length uint64, store ufs.UnderFileSystem) error {
	return m.submit(moverTask{
		kind:        taskPreload,
		blockID:     blockID,
		ufsPath:     ufsPath,
		offsetInUfs: offset,
		length:      length,
		ownedUfs:    store,
	})
}

// SubmitPersist schedules writing the whole block to ufsPath at offset.
func (m *DataMover) SubmitPersist(blockID proto.BlockID, ufsPath string, offset uint64, store ufs.UnderFileSystem) error {
	return m.submit(moverTask{
		kind:        taskPersist,
		blockID:     blockID,
		ufsPath:     ufsPath,
		offsetInUfs: offset,
		ownedUfs:    store,
	})
}

// WaitAll blocks until the queue drains and no task is in flight.
func (m *DataMover) WaitAll() {
	m.mu.Lock()
	for len(m.queue) > 0 || m.active > 0 {
		m.allDone.Wait()
	}
	m.mu.Unlock()
}

// Stop terminates the pool; pending tasks are discarded.
func (m *DataMover) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.queue = nil
	m.mu.Unlock()
	m.notEmpty.Broadcast()
	m.allDone.Broadcast()
	m.wg.Wait()
}

func (m *DataMover) PendingTaskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *DataMover) workerLoop() {
	defer m.wg.Done()
	span, ctx := trace.StartSpanFromContext(context.Background(), "data-mover")

	for {
		m.mu.Lock()
		for m.running && len(m.queue) == 0 {
			m.notEmpty.Wait()
		}
		if !m.running {
			m.mu.Unlock()
			return
		}
		task := m.queue[0]
		m.queue = m.queue[1:]
		m.active++
		m.mu.Unlock()

		if err := m.executeTask(ctx, task); err != nil {
			span.Warnf("data mover task failed, block %d: %s", task.blockID, err)
		}

		m.mu.Lock()
		m.active--
		m.mu.Unlock()
		m.allDone.Broadcast()
	}
}

func (m *DataMover) executeTask(ctx context.Context, task moverTask) error {
	store := task.ownedUfs
	if store == nil {
		store = m.defaultUfs
	}
	if store == nil {
		return apierrors.Internal("no ufs available for data mover task")
	}

	switch task.kind {
	case taskPreload:
		return m.preload(ctx, store, task)
	case taskPersist:
		return m.persist(ctx, store, task)
	}
	return apierrors.InvalidArgument("unknown task kind")
}

func (m *DataMover) preload(ctx context.Context, store ufs.UnderFileSystem, task moverTask) error {
	f, err := store.Open(ctx, task.ufsPath)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, task.length)
	n, err := f.ReadAt(buf, int64(task.offsetInUfs))
	if err != nil && err != io.EOF {
		return err
	}
	if n == 0 {
		return apierrors.IOError("empty read from " + task.ufsPath)
	}

	if err := m.blockStore.EnsureBlock(ctx, task.blockID, uint64(n)); err != nil {
		return err
	}
	if err := m.blockStore.WriteBlock(ctx, task.blockID, buf[:n], 0); err != nil {
		return err
	}

	metrics.DataMoverPreloads.Inc()
	trace.SpanFromContextSafe(ctx).Debugf("preloaded %d bytes from %s into block %d", n, task.ufsPath, task.blockID)
	return nil
}

func (m *DataMover) persist(ctx context.Context, store ufs.UnderFileSystem, task moverTask) error {
	meta, err := m.blockStore.GetBlockMeta(ctx, task.blockID)
	if err != nil {
		return err
	}

	buf := make([]byte, meta.Length)
	if _, err := m.blockStore.ReadBlock(ctx, task.blockID, buf, 0); err != nil {
		return err
	}

	f, err := store.Create(ctx, task.ufsPath, ufs.CreateOptions{Recursive: true})
	if err != nil {
		return err
	}
	if _, err := f.WriteAt(buf, int64(task.offsetInUfs)); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	metrics.DataMoverPersists.Inc()
	trace.SpanFromContextSafe(ctx).Debugf("persisted block %d (%d bytes) to %s", task.blockID, meta.Length, task.ufsPath)
	return nil
}
