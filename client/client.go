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

package client

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"

	apierrors "github.com/anycache/anycache/errors"
	"github.com/anycache/anycache/proto"
)

// RpcConfig carries the per-path deadlines in milliseconds; zero disables
// the deadline on that path.
type RpcConfig struct {
	MasterRPCTimeoutMs   int `json:"master_rpc_timeout_ms"`
	WorkerRPCTimeoutMs   int `json:"worker_rpc_timeout_ms"`
	InternalRPCTimeoutMs int `json:"internal_rpc_timeout_ms"`
}

func DefaultRpcConfig() RpcConfig {
	return RpcConfig{
		MasterRPCTimeoutMs:   10000,
		WorkerRPCTimeoutMs:   30000,
		InternalRPCTimeoutMs: 10000,
	}
}

// Pool caches one channel per remote address. A channel in a terminal
// state is evicted; transient failures are kept because the transport
// back-off reconnects on its own.
type Pool struct {
	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

func NewPool() *Pool {
	return &Pool{conns: make(map[string]*grpc.ClientConn)}
}

func (p *Pool) Get(addr string) (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.conns[addr]; ok {
		if conn.GetState() != connectivity.Shutdown {
			return conn, nil
		}
		conn.Close()
		delete(p.conns, addr)
	}

	conn, err := grpc.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, apierrors.Unavailable("dial " + addr + ": " + err.Error())
	}
	p.conns[addr] = conn
	return conn, nil
}

func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for addr, conn := range p.conns {
		conn.Close()
		delete(p.conns, addr)
	}
}

func withDeadline(ctx context.Context, timeoutMs int) (context.Context, context.CancelFunc) {
	if timeoutMs <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
}

// rpcError folds a transport failure into the retryable taxonomy: a lapsed
// deadline or unreachable peer is Unavailable to the caller.
func rpcError(err error) error {
	if err == nil {
		return nil
	}
	if err == context.DeadlineExceeded {
		return apierrors.Unavailable("rpc deadline exceeded")
	}
	return apierrors.Unavailable("rpc failed: " + err.Error())
}

// MasterClient talks to the master with the configured deadline applied
// to every call and in-band statuses folded back into errors.
type MasterClient struct {
	pool      *Pool
	addr      string
	timeoutMs int
}

func NewMasterClient(pool *Pool, addr string, timeoutMs int) *MasterClient {
	return &MasterClient{pool: pool, addr: addr, timeoutMs: timeoutMs}
}

func (c *MasterClient) raw() (proto.MasterClient, error) {
	conn, err := c.pool.Get(c.addr)
	if err != nil {
		return nil, err
	}
	return proto.NewMasterClient(conn), nil
}

func (c *MasterClient) RegisterWorker(ctx context.Context, address string, capacity, used uint64) (proto.WorkerID, error) {
	cli, err := c.raw()
	if err != nil {
		return proto.InvalidWorkerID, err
	}
	ctx, cancel := withDeadline(ctx, c.timeoutMs)
	defer cancel()
	resp, err := cli.RegisterWorker(ctx, &proto.RegisterWorkerRequest{
		Address:       address,
		CapacityBytes: capacity,
		UsedBytes:     used,
	})
	if err != nil {
		return proto.InvalidWorkerID, rpcError(err)
	}
	if err := apierrors.FromStatus(resp.Status); err != nil {
		return proto.InvalidWorkerID, err
	}
	return resp.WorkerID, nil
}

func (c *MasterClient) Heartbeat(ctx context.Context, id proto.WorkerID, capacity, used uint64) error {
	cli, err := c.raw()
	if err != nil {
		return err
	}
	ctx, cancel := withDeadline(ctx, c.timeoutMs)
	defer cancel()
	resp, err := cli.WorkerHeartbeat(ctx, &proto.WorkerHeartbeatRequest{
		WorkerID:      id,
		CapacityBytes: capacity,
		UsedBytes:     used,
	})
	if err != nil {
		return rpcError(err)
	}
	return apierrors.FromStatus(resp.Status)
}

func (c *MasterClient) ReportBlockLocation(ctx context.Context, workerID proto.WorkerID, locs []proto.BlockLocation) error {
	cli, err := c.raw()
	if err != nil {
		return err
	}
	ctx, cancel := withDeadline(ctx, c.timeoutMs)
	defer cancel()
	resp, err := cli.ReportBlockLocation(ctx, &proto.ReportBlockLocationRequest{
		WorkerID:  workerID,
		Locations: locs,
	})
	if err != nil {
		return rpcError(err)
	}
	return apierrors.FromStatus(resp.Status)
}

func (c *MasterClient) GetFileInfo(ctx context.Context, path string) (proto.FileInfo, error) {
	cli, err := c.raw()
	if err != nil {
		return proto.FileInfo{}, err
	}
	ctx, cancel := withDeadline(ctx, c.timeoutMs)
	defer cancel()
	resp, err := cli.GetFileInfo(ctx, &proto.GetFileInfoRequest{Path: path})
	if err != nil {
		return proto.FileInfo{}, rpcError(err)
	}
	if err := apierrors.FromStatus(resp.Status); err != nil {
		return proto.FileInfo{}, err
	}
	return resp.Info, nil
}

func (c *MasterClient) GetBlockLocations(ctx context.Context, blockIDs []proto.BlockID) ([]proto.BlockLocation, error) {
	cli, err := c.raw()
	if err != nil {
		return nil, err
	}
	ctx, cancel := withDeadline(ctx, c.timeoutMs)
	defer cancel()
	resp, err := cli.GetBlockLocations(ctx, &proto.GetBlockLocationsRequest{BlockIDs: blockIDs})
	if err != nil {
		return nil, rpcError(err)
	}
	if err := apierrors.FromStatus(resp.Status); err != nil {
		return nil, err
	}
	return resp.Locations, nil
}

// WorkerRPCClient drives one worker's block service.
type WorkerRPCClient struct {
	pool      *Pool
	addr      string
	timeoutMs int
}

func NewWorkerRPCClient(pool *Pool, addr string, timeoutMs int) *WorkerRPCClient {
	return &WorkerRPCClient{pool: pool, addr: addr, timeoutMs: timeoutMs}
}

func (c *WorkerRPCClient) raw() (proto.WorkerClient, error) {
	conn, err := c.pool.Get(c.addr)
	if err != nil {
		return nil, err
	}
	return proto.NewWorkerClient(conn), nil
}

func (c *WorkerRPCClient) ReadBlock(ctx context.Context, blockID proto.BlockID, offset, length uint64) ([]byte, error) {
	cli, err := c.raw()
	if err != nil {
		return nil, err
	}
	ctx, cancel := withDeadline(ctx, c.timeoutMs)
	defer cancel()
	resp, err := cli.ReadBlock(ctx, &proto.ReadBlockRequest{BlockID: blockID, Offset: offset, Length: length})
	if err != nil {
		return nil, rpcError(err)
	}
	if err := apierrors.FromStatus(resp.Status); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *WorkerRPCClient) WriteBlock(ctx context.Context, blockID proto.BlockID, offset uint64, data []byte) error {
	cli, err := c.raw()
	if err != nil {
		return err
	}
	ctx, cancel := withDeadline(ctx, c.timeoutMs)
	defer cancel()
	resp, err := cli.WriteBlock(ctx, &proto.WriteBlockRequest{BlockID: blockID, Offset: offset, Data: data})
	if err != nil {
		return rpcError(err)
	}
	return apierrors.FromStatus(resp.Status)
}

func (c *WorkerRPCClient) CacheBlock(ctx context.Context, blockID proto.BlockID, ufsPath string, offset, length uint64) error {
	cli, err := c.raw()
	if err != nil {
		return err
	}
	ctx, cancel := withDeadline(ctx, c.timeoutMs)
	defer cancel()
	resp, err := cli.CacheBlock(ctx, &proto.CacheBlockRequest{
		BlockID: blockID, UfsPath: ufsPath, OffsetInUfs: offset, Length: length,
	})
	if err != nil {
		return rpcError(err)
	}
	return apierrors.FromStatus(resp.Status)
}

func (c *WorkerRPCClient) GetWorkerStatus(ctx context.Context) (*proto.GetWorkerStatusResponse, error) {
	cli, err := c.raw()
	if err != nil {
		return nil, err
	}
	ctx, cancel := withDeadline(ctx, c.timeoutMs)
	defer cancel()
	resp, err := cli.GetWorkerStatus(ctx, &proto.GetWorkerStatusRequest{})
	if err != nil {
		return nil, rpcError(err)
	}
	if err := apierrors.FromStatus(resp.Status); err != nil {
		return nil, err
	}
	return resp, nil
}
