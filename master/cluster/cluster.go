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
	"context"
	"sync"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	apierrors "github.com/anycache/anycache/errors"
	"github.com/anycache/anycache/proto"
)

type Config struct {
	HeartbeatTimeoutS int `json:"heartbeat_timeout_s"`
	CheckIntervalS    int `json:"check_interval_s"`
}

const (
	defaultHeartbeatTimeoutS = 30
	defaultCheckIntervalS    = 5
)

// WorkerInfo is a snapshot of one registered worker.
type WorkerInfo struct {
	ID              proto.WorkerID
	Address         string
	CapacityBytes   uint64
	UsedBytes       uint64
	LastHeartbeatMs int64
	Alive           bool
}

// Cluster tracks worker membership and health. A periodic checker marks
// workers whose heartbeat lapsed as dead and hands their ids to the
// onDead callback so the master can drop their block locations.
type Cluster struct {
	cfg Config

	mu      sync.Mutex
	workers map[proto.WorkerID]*WorkerInfo
	hosts   map[string]proto.WorkerID
	nextID  proto.WorkerID

	done      chan struct{}
	closeOnce sync.Once
}

func NewCluster(cfg Config) *Cluster {
	if cfg.HeartbeatTimeoutS <= 0 {
		cfg.HeartbeatTimeoutS = defaultHeartbeatTimeoutS
	}
	if cfg.CheckIntervalS <= 0 {
		cfg.CheckIntervalS = defaultCheckIntervalS
	}
	return &Cluster{
		cfg:     cfg,
		workers: make(map[proto.WorkerID]*WorkerInfo),
		hosts:   make(map[string]proto.WorkerID),
		nextID:  1,
		done:    make(chan struct{}),
	}
}

// Register adds a worker; re-registration by address is idempotent and
// refreshes the worker's stats and liveness.
func (c *Cluster) Register(ctx context.Context, address string, capacity, used uint64) (proto.WorkerID, error) {
	span := trace.SpanFromContextSafe(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UnixMilli()
	if id, ok := c.hosts[address]; ok {
		w := c.workers[id]
		w.CapacityBytes = capacity
		w.UsedBytes = used
		w.LastHeartbeatMs = now
		w.Alive = true
		span.Infof("worker re-registered: id=%d address=%s", id, address)
		return id, nil
	}

	id := c.nextID
	c.nextID++
	c.workers[id] = &WorkerInfo{
		ID:              id,
		Address:         address,
		CapacityBytes:   capacity,
		UsedBytes:       used,
		LastHeartbeatMs: now,
		Alive:           true,
	}
	c.hosts[address] = id
	span.Infof("worker registered: id=%d address=%s capacity=%dMB", id, address, capacity>>20)
	return id, nil
}

func (c *Cluster) Heartbeat(ctx context.Context, id proto.WorkerID, capacity, used uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.workers[id]
	if !ok {
		return apierrors.NotFound("worker not registered")
	}
	w.CapacityBytes = capacity
	w.UsedBytes = used
	w.LastHeartbeatMs = time.Now().UnixMilli()
	w.Alive = true
	return nil
}

func (c *Cluster) GetWorker(id proto.WorkerID) (WorkerInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.workers[id]
	if !ok {
		return WorkerInfo{}, apierrors.NotFound("worker not found")
	}
	return *w, nil
}

func (c *Cluster) ListLiveWorkers() []WorkerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []WorkerInfo
	for _, w := range c.workers {
		if w.Alive {
			out = append(out, *w)
		}
	}
	return out
}

// SelectWorkerForWrite picks the alive worker with the most available
// bytes.
func (c *Cluster) SelectWorkerForWrite() (WorkerInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var best *WorkerInfo
	var bestAvail uint64
	for _, w := range c.workers {
		if !w.Alive || w.CapacityBytes < w.UsedBytes {
			continue
		}
		if avail := w.CapacityBytes - w.UsedBytes; avail > bestAvail {
			bestAvail = avail
			best = w
		}
	}
	if best == nil {
		return WorkerInfo{}, apierrors.Unavailable("no workers available")
	}
	return *best, nil
}

// CheckHeartbeats marks expired workers dead and returns their ids.
func (c *Cluster) CheckHeartbeats() []proto.WorkerID {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UnixMilli()
	timeout := int64(c.cfg.HeartbeatTimeoutS) * 1000
	var dead []proto.WorkerID
	for id, w := range c.workers {
		if w.Alive && now-w.LastHeartbeatMs > timeout {
			w.Alive = false
			dead = append(dead, id)
		}
	}
	return dead
}

func (c *Cluster) WorkerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, w := range c.workers {
		if w.Alive {
			count++
		}
	}
	return count
}

// StartChecker runs the heartbeat checker until Close.
func (c *Cluster) StartChecker(onDead func(dead []proto.WorkerID)) {
	_, ctx := trace.StartSpanFromContext(context.Background(), "heartbeat-checker")
	span := trace.SpanFromContextSafe(ctx)
	ticker := time.NewTicker(time.Duration(c.cfg.CheckIntervalS) * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if dead := c.CheckHeartbeats(); len(dead) > 0 {
					span.Warnf("workers expired: %v", dead)
					if onDead != nil {
						onDead(dead)
					}
				}
			case <-c.done:
				return
			}
		}
	}()
}

func (c *Cluster) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
