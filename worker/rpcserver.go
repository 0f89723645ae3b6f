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
	"net"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	apierrors "github.com/anycache/anycache/errors"
	"github.com/anycache/anycache/metrics"
	"github.com/anycache/anycache/proto"
	"github.com/anycache/anycache/ufs"
	"github.com/anycache/anycache/util"
)

// RPCServer exposes the worker block service.
type RPCServer struct {
	worker *Worker
	server *grpc.Server
}

func NewRPCServer(worker *Worker) *RPCServer {
	rs := &RPCServer{worker: worker}
	rs.server = grpc.NewServer(grpc.ChainUnaryInterceptor(
		workerUnaryInterceptorWithTracer,
		metrics.GRPCMetrics.UnaryServerInterceptor(),
	))
	proto.RegisterWorkerServer(rs.server, rs)
	return rs
}

func (r *RPCServer) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		_ = r.server.Serve(lis)
	}()
	return nil
}

func (r *RPCServer) Stop() {
	r.server.GracefulStop()
}

func workerUnaryInterceptorWithTracer(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if reqID := md.Get(proto.ReqIdKey); len(reqID) > 0 {
			_, ctx = trace.StartSpanFromContextWithTraceID(ctx, info.FullMethod, reqID[0])
			return handler(ctx, req)
		}
	}
	_, ctx = trace.StartSpanFromContext(ctx, info.FullMethod)
	return handler(ctx, req)
}

func (r *RPCServer) ReadBlock(ctx context.Context, req *proto.ReadBlockRequest) (*proto.ReadBlockResponse, error) {
	resp := &proto.ReadBlockResponse{}

	lim := r.worker.Limiter()
	if err := lim.AcquireRead(); err != nil {
		resp.Status = apierrors.Status(apierrors.ResourceExhausted("read concurrency limit"))
		return resp, nil
	}
	defer lim.ReleaseRead()
	if err := lim.WaitRead(ctx, int(req.Length)); err != nil {
		resp.Status = apierrors.Status(apierrors.Unavailable("read rate limit: " + err.Error()))
		return resp, nil
	}

	buf := make([]byte, req.Length)
	n, err := r.worker.BlockStore().ReadBlock(ctx, req.BlockID, buf, req.Offset)
	resp.Status = apierrors.Status(err)
	if err == nil {
		resp.Data = buf[:n]
	}
	return resp, nil
}

func (r *RPCServer) WriteBlock(ctx context.Context, req *proto.WriteBlockRequest) (*proto.WriteBlockResponse, error) {
	resp := &proto.WriteBlockResponse{}

	lim := r.worker.Limiter()
	if err := lim.AcquireWrite(); err != nil {
		resp.Status = apierrors.Status(apierrors.ResourceExhausted("write concurrency limit"))
		return resp, nil
	}
	defer lim.ReleaseWrite()
	if err := lim.WaitWrite(ctx, len(req.Data)); err != nil {
		resp.Status = apierrors.Status(apierrors.Unavailable("write rate limit: " + err.Error()))
		return resp, nil
	}

	store := r.worker.BlockStore()
	if err := store.EnsureBlock(ctx, req.BlockID, req.Offset+uint64(len(req.Data))); err != nil {
		resp.Status = apierrors.Status(err)
		return resp, nil
	}
	if err := store.WriteBlock(ctx, req.BlockID, req.Data, req.Offset); err != nil {
		resp.Status = apierrors.Status(err)
		return resp, nil
	}

	resp.Status = apierrors.Status(nil)
	resp.BlockID = req.BlockID
	r.worker.ReportBlockLocation(ctx, req.BlockID)
	return resp, nil
}

// CacheBlock synchronously pulls a range of an external-store file into
// the block and reports the new location.
func (r *RPCServer) CacheBlock(ctx context.Context, req *proto.CacheBlockRequest) (*proto.CacheBlockResponse, error) {
	resp := &proto.CacheBlockResponse{}
	if req.UfsPath == "" {
		resp.Status = apierrors.Status(apierrors.InvalidArgument("ufs_path is required"))
		return resp, nil
	}

	base, rel := splitUfsPath(req.UfsPath)
	store, err := r.worker.UfsFactory().Create(ctx, base)
	if err != nil {
		resp.Status = apierrors.Status(err)
		return resp, nil
	}

	f, err := store.Open(ctx, rel)
	if err != nil {
		resp.Status = apierrors.Status(err)
		return resp, nil
	}
	defer f.Close()

	buf := util.GetBuffer(int(req.Length))
	defer util.PutBuffer(buf)
	n, err := f.ReadAt(buf[:req.Length], int64(req.OffsetInUfs))
	if err != nil && err != io.EOF {
		resp.Status = apierrors.Status(err)
		return resp, nil
	}
	if n == 0 {
		resp.Status = apierrors.Status(apierrors.IOError("empty read from " + req.UfsPath))
		return resp, nil
	}

	blockStore := r.worker.BlockStore()
	if err := blockStore.EnsureBlock(ctx, req.BlockID, uint64(n)); err != nil {
		resp.Status = apierrors.Status(err)
		return resp, nil
	}
	if err := blockStore.WriteBlock(ctx, req.BlockID, buf[:n], 0); err != nil {
		resp.Status = apierrors.Status(err)
		return resp, nil
	}

	r.worker.ReportBlockLocation(ctx, req.BlockID)
	resp.Status = apierrors.Status(nil)
	return resp, nil
}

// AsyncCacheBlock enqueues the preload on the data mover and returns as
// soon as the task is accepted.
func (r *RPCServer) AsyncCacheBlock(ctx context.Context, req *proto.AsyncCacheBlockRequest) (*proto.AsyncCacheBlockResponse, error) {
	resp := &proto.AsyncCacheBlockResponse{}
	if req.UfsPath == "" {
		resp.Status = apierrors.Status(apierrors.InvalidArgument("ufs_path is required"))
		return resp, nil
	}

	base, rel := splitUfsPath(req.UfsPath)
	store, err := r.worker.UfsFactory().Create(ctx, base)
	if err != nil {
		resp.Status = apierrors.Status(err)
		return resp, nil
	}

	err = r.worker.DataMover().SubmitPreload(req.BlockID, rel, req.OffsetInUfs, req.Length, store)
	resp.Status = apierrors.Status(err)
	return resp, nil
}

// PersistBlock enqueues writing the block back to the external store.
func (r *RPCServer) PersistBlock(ctx context.Context, req *proto.PersistBlockRequest) (*proto.PersistBlockResponse, error) {
	resp := &proto.PersistBlockResponse{}
	if req.UfsPath == "" {
		resp.Status = apierrors.Status(apierrors.InvalidArgument("ufs_path is required"))
		return resp, nil
	}

	base, rel := splitUfsPath(req.UfsPath)
	store, err := r.worker.UfsFactory().Create(ctx, base)
	if err != nil {
		resp.Status = apierrors.Status(err)
		return resp, nil
	}

	err = r.worker.DataMover().SubmitPersist(req.BlockID, rel, req.OffsetInUfs, store)
	resp.Status = apierrors.Status(err)
	return resp, nil
}

func (r *RPCServer) RemoveBlock(ctx context.Context, req *proto.RemoveBlockRequest) (*proto.RemoveBlockResponse, error) {
	err := r.worker.BlockStore().RemoveBlock(ctx, req.BlockID)
	return &proto.RemoveBlockResponse{Status: apierrors.Status(err)}, nil
}

// ReadPage belongs to the page-granular accelerator, which is not built.
func (r *RPCServer) ReadPage(ctx context.Context, req *proto.ReadPageRequest) (*proto.ReadPageResponse, error) {
	return &proto.ReadPageResponse{
		Status: apierrors.Status(apierrors.NotImplemented("page store")),
	}, nil
}

func (r *RPCServer) GetWorkerStatus(ctx context.Context, req *proto.GetWorkerStatusRequest) (*proto.GetWorkerStatusResponse, error) {
	resp := &proto.GetWorkerStatusResponse{Status: apierrors.Status(nil)}

	store := r.worker.BlockStore()
	for _, tierType := range []proto.TierType{proto.TierMemory, proto.TierSSD, proto.TierHDD} {
		capacity := store.TierCapacity(tierType)
		if capacity == 0 {
			continue
		}
		used := store.TierUsedBytes(tierType)
		resp.Tiers = append(resp.Tiers, proto.TierStat{
			Type:          tierType,
			CapacityBytes: capacity,
			UsedBytes:     used,
		})
		resp.CapacityBytes += capacity
		resp.UsedBytes += used
	}
	resp.BlockCount = uint64(store.CachedBlockCount())
	return resp, nil
}

// splitUfsPath separates a full object URI into the store base and the
// path inside it, defaulting bare paths to the local scheme.
func splitUfsPath(ufsPath string) (base, rel string) {
	return ufs.SplitURI(ufsPath)
}
