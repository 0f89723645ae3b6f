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

package limiter

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Limiter bounds block I/O on a worker: a concurrency gate per direction
// plus an optional MB/s token bucket shared by all calls in that direction.
type (
	Limiter interface {
		AcquireRead() error
		ReleaseRead()
		AcquireWrite() error
		ReleaseWrite()
		WaitRead(ctx context.Context, n int) error
		WaitWrite(ctx context.Context, n int) error
		Status() Status
	}
	Config struct {
		ReadConcurrency  int `json:"read_concurrency"`
		WriteConcurrency int `json:"write_concurrency"`
		ReadMBPS         int `json:"read_mbps"`
		WriteMBPS        int `json:"write_mbps"`
	}
	Status struct {
		Config       Config
		ReadRunning  int
		WriteRunning int
	}
	limiter struct {
		config     Config
		readCount  *countLimit
		writeCount *countLimit
		rateRead   *rate.Limiter
		rateWrite  *rate.Limiter
	}
)

var ErrLimitExceeded = errors.New("limit exceeded")

func NewLimiter(cfg Config) Limiter {
	mb := 1 << 20
	lim := &limiter{config: cfg}
	if cfg.ReadConcurrency > 0 {
		lim.readCount = newCountLimit(cfg.ReadConcurrency)
	}
	if cfg.WriteConcurrency > 0 {
		lim.writeCount = newCountLimit(cfg.WriteConcurrency)
	}
	if cfg.ReadMBPS > 0 {
		lim.rateRead = rate.NewLimiter(rate.Limit(cfg.ReadMBPS*mb), cfg.ReadMBPS*mb)
	}
	if cfg.WriteMBPS > 0 {
		lim.rateWrite = rate.NewLimiter(rate.Limit(cfg.WriteMBPS*mb), cfg.WriteMBPS*mb)
	}
	return lim
}

func (lim *limiter) AcquireRead() error {
	if lim.readCount != nil {
		return lim.readCount.Acquire()
	}
	return nil
}

func (lim *limiter) ReleaseRead() {
	if lim.readCount != nil {
		lim.readCount.Release()
	}
}

func (lim *limiter) AcquireWrite() error {
	if lim.writeCount != nil {
		return lim.writeCount.Acquire()
	}
	return nil
}

func (lim *limiter) ReleaseWrite() {
	if lim.writeCount != nil {
		lim.writeCount.Release()
	}
}

func (lim *limiter) WaitRead(ctx context.Context, n int) error {
	if lim.rateRead == nil || n <= 0 {
		return nil
	}
	if n > lim.rateRead.Burst() {
		n = lim.rateRead.Burst()
	}
	return lim.rateRead.WaitN(ctx, n)
}

func (lim *limiter) WaitWrite(ctx context.Context, n int) error {
	if lim.rateWrite == nil || n <= 0 {
		return nil
	}
	if n > lim.rateWrite.Burst() {
		n = lim.rateWrite.Burst()
	}
	return lim.rateWrite.WaitN(ctx, n)
}

func (lim *limiter) Status() Status {
	st := Status{Config: lim.config}
	if lim.readCount != nil {
		st.ReadRunning = lim.readCount.Running()
	}
	if lim.writeCount != nil {
		st.WriteRunning = lim.writeCount.Running()
	}
	return st
}

const minusOne = ^uint32(0)

type countLimit struct {
	limit   uint32
	current uint32
}

func newCountLimit(n int) *countLimit {
	return &countLimit{limit: uint32(n)}
}

func (l *countLimit) Running() int {
	return int(atomic.LoadUint32(&l.current))
}

func (l *countLimit) Acquire() error {
	if atomic.AddUint32(&l.current, 1) > atomic.LoadUint32(&l.limit) {
		atomic.AddUint32(&l.current, minusOne)
		return ErrLimitExceeded
	}
	return nil
}

func (l *countLimit) Release() {
	atomic.AddUint32(&l.current, minusOne)
}
