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

package master

import (
	"context"
	"net"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	apierrors "github.com/anycache/anycache/errors"
	"github.com/anycache/anycache/metrics"
	"github.com/anycache/anycache/proto"
)

// RPCServer exposes the master service over grpc. Errors travel in-band
// as the response Status.
type RPCServer struct {
	master *Master
	server *grpc.Server
}

func NewRPCServer(master *Master) *RPCServer {
	rs := &RPCServer{master: master}
	rs.server = grpc.NewServer(grpc.ChainUnaryInterceptor(
		unaryInterceptorWithTracer,
		metrics.GRPCMetrics.UnaryServerInterceptor(),
	))
	proto.RegisterMasterServer(rs.server, rs)
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

func unaryInterceptorWithTracer(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if reqID := md.Get(proto.ReqIdKey); len(reqID) > 0 {
			_, ctx = trace.StartSpanFromContextWithTraceID(ctx, info.FullMethod, reqID[0])
			return handler(ctx, req)
		}
	}
	_, ctx = trace.StartSpanFromContext(ctx, info.FullMethod)
	return handler(ctx, req)
}

func (r *RPCServer) GetFileInfo(ctx context.Context, req *proto.GetFileInfoRequest) (*proto.GetFileInfoResponse, error) {
	resp := &proto.GetFileInfoResponse{}
	inode, err := r.master.GetFileInfo(ctx, req.Path)
	resp.Status = apierrors.Status(err)
	if err == nil {
		resp.Info = inode.FileInfo()
	}
	return resp, nil
}

func (r *RPCServer) CreateFile(ctx context.Context, req *proto.CreateFileRequest) (*proto.CreateFileResponse, error) {
	resp := &proto.CreateFileResponse{}
	id, worker, err := r.master.CreateFile(ctx, req.Path, req.Mode)
	resp.Status = apierrors.Status(err)
	if err != nil {
		trace.SpanFromContextSafe(ctx).Errorf("create file %s failed: %s", req.Path, err)
		return resp, nil
	}
	resp.FileID = id
	resp.WorkerID = worker.ID
	resp.WorkerAddress = worker.Address
	return resp, nil
}

func (r *RPCServer) CompleteFile(ctx context.Context, req *proto.CompleteFileRequest) (*proto.CompleteFileResponse, error) {
	err := r.master.CompleteFile(ctx, req.FileID, req.FileSize)
	return &proto.CompleteFileResponse{Status: apierrors.Status(err)}, nil
}

func (r *RPCServer) DeleteFile(ctx context.Context, req *proto.DeleteFileRequest) (*proto.DeleteFileResponse, error) {
	err := r.master.DeleteFile(ctx, req.Path, req.Recursive)
	if err != nil {
		trace.SpanFromContextSafe(ctx).Errorf("delete %s failed: %s", req.Path, err)
	}
	return &proto.DeleteFileResponse{Status: apierrors.Status(err)}, nil
}

func (r *RPCServer) RenameFile(ctx context.Context, req *proto.RenameFileRequest) (*proto.RenameFileResponse, error) {
	err := r.master.RenameFile(ctx, req.Src, req.Dst)
	return &proto.RenameFileResponse{Status: apierrors.Status(err)}, nil
}

func (r *RPCServer) ListStatus(ctx context.Context, req *proto.ListStatusRequest) (*proto.ListStatusResponse, error) {
	resp := &proto.ListStatusResponse{}
	entries, err := r.master.ListStatus(ctx, req.Path)
	resp.Status = apierrors.Status(err)
	if err == nil {
		resp.Entries = make([]proto.FileInfo, 0, len(entries))
		for _, inode := range entries {
			resp.Entries = append(resp.Entries, inode.FileInfo())
		}
	}
	return resp, nil
}

func (r *RPCServer) Mkdir(ctx context.Context, req *proto.MkdirRequest) (*proto.MkdirResponse, error) {
	err := r.master.Mkdir(ctx, req.Path, req.Mode, req.Recursive)
	return &proto.MkdirResponse{Status: apierrors.Status(err)}, nil
}

func (r *RPCServer) TruncateFile(ctx context.Context, req *proto.TruncateFileRequest) (*proto.TruncateFileResponse, error) {
	err := r.master.TruncateFile(ctx, req.Path, req.NewSize)
	return &proto.TruncateFileResponse{Status: apierrors.Status(err)}, nil
}

func (r *RPCServer) GetBlockLocations(ctx context.Context, req *proto.GetBlockLocationsRequest) (*proto.GetBlockLocationsResponse, error) {
	return &proto.GetBlockLocationsResponse{
		Status:    apierrors.Status(nil),
		Locations: r.master.GetBlockLocations(ctx, req.BlockIDs),
	}, nil
}

func (r *RPCServer) ReportBlockLocation(ctx context.Context, req *proto.ReportBlockLocationRequest) (*proto.ReportBlockLocationResponse, error) {
	r.master.ReportBlockLocation(ctx, req.WorkerID, req.Locations)
	return &proto.ReportBlockLocationResponse{Status: apierrors.Status(nil)}, nil
}

func (r *RPCServer) RegisterWorker(ctx context.Context, req *proto.RegisterWorkerRequest) (*proto.RegisterWorkerResponse, error) {
	resp := &proto.RegisterWorkerResponse{}
	id, err := r.master.RegisterWorker(ctx, req.Address, req.CapacityBytes, req.UsedBytes)
	resp.Status = apierrors.Status(err)
	resp.WorkerID = id
	return resp, nil
}

func (r *RPCServer) WorkerHeartbeat(ctx context.Context, req *proto.WorkerHeartbeatRequest) (*proto.WorkerHeartbeatResponse, error) {
	err := r.master.WorkerHeartbeat(ctx, req.WorkerID, req.CapacityBytes, req.UsedBytes)
	return &proto.WorkerHeartbeatResponse{Status: apierrors.Status(err)}, nil
}

func (r *RPCServer) Mount(ctx context.Context, req *proto.MountRequest) (*proto.MountResponse, error) {
	err := r.master.Mount(ctx, req.Path, req.UfsURI)
	return &proto.MountResponse{Status: apierrors.Status(err)}, nil
}

func (r *RPCServer) Unmount(ctx context.Context, req *proto.UnmountRequest) (*proto.UnmountResponse, error) {
	err := r.master.Unmount(ctx, req.Path)
	return &proto.UnmountResponse{Status: apierrors.Status(err)}, nil
}

func (r *RPCServer) GetMountTable(ctx context.Context, req *proto.GetMountTableRequest) (*proto.GetMountTableResponse, error) {
	return &proto.GetMountTableResponse{
		Status: apierrors.Status(nil),
		Mounts: r.master.GetMountTable(ctx),
	}, nil
}
