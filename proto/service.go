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

package proto

import (
	"context"

	"google.golang.org/grpc"
)

// Service descriptors are written by hand: the transport codec is
// encoding-agnostic JSON (see codec.go), so there is no generated stub layer.

const (
	MasterServiceName = "anycache.Master"
	WorkerServiceName = "anycache.Worker"
)

type MasterServer interface {
	GetFileInfo(ctx context.Context, req *GetFileInfoRequest) (*GetFileInfoResponse, error)
	CreateFile(ctx context.Context, req *CreateFileRequest) (*CreateFileResponse, error)
	CompleteFile(ctx context.Context, req *CompleteFileRequest) (*CompleteFileResponse, error)
	DeleteFile(ctx context.Context, req *DeleteFileRequest) (*DeleteFileResponse, error)
	RenameFile(ctx context.Context, req *RenameFileRequest) (*RenameFileResponse, error)
	ListStatus(ctx context.Context, req *ListStatusRequest) (*ListStatusResponse, error)
	Mkdir(ctx context.Context, req *MkdirRequest) (*MkdirResponse, error)
	TruncateFile(ctx context.Context, req *TruncateFileRequest) (*TruncateFileResponse, error)
	GetBlockLocations(ctx context.Context, req *GetBlockLocationsRequest) (*GetBlockLocationsResponse, error)
	ReportBlockLocation(ctx context.Context, req *ReportBlockLocationRequest) (*ReportBlockLocationResponse, error)
	RegisterWorker(ctx context.Context, req *RegisterWorkerRequest) (*RegisterWorkerResponse, error)
	WorkerHeartbeat(ctx context.Context, req *WorkerHeartbeatRequest) (*WorkerHeartbeatResponse, error)
	Mount(ctx context.Context, req *MountRequest) (*MountResponse, error)
	Unmount(ctx context.Context, req *UnmountRequest) (*UnmountResponse, error)
	GetMountTable(ctx context.Context, req *GetMountTableRequest) (*GetMountTableResponse, error)
}

type WorkerServer interface {
	ReadBlock(ctx context.Context, req *ReadBlockRequest) (*ReadBlockResponse, error)
	WriteBlock(ctx context.Context, req *WriteBlockRequest) (*WriteBlockResponse, error)
	CacheBlock(ctx context.Context, req *CacheBlockRequest) (*CacheBlockResponse, error)
	AsyncCacheBlock(ctx context.Context, req *AsyncCacheBlockRequest) (*AsyncCacheBlockResponse, error)
	PersistBlock(ctx context.Context, req *PersistBlockRequest) (*PersistBlockResponse, error)
	RemoveBlock(ctx context.Context, req *RemoveBlockRequest) (*RemoveBlockResponse, error)
	ReadPage(ctx context.Context, req *ReadPageRequest) (*ReadPageResponse, error)
	GetWorkerStatus(ctx context.Context, req *GetWorkerStatusRequest) (*GetWorkerStatusResponse, error)
}

type methodHandler = func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error)

func unaryHandler(fullMethod string, alloc func() interface{},
	invoke func(ctx context.Context, srv interface{}, req interface{}) (interface{}, error),
) methodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := alloc()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return invoke(ctx, srv, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			return invoke(ctx, srv, req)
		})
	}
}

var masterServiceDesc = grpc.ServiceDesc{
	ServiceName: MasterServiceName,
	HandlerType: (*MasterServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetFileInfo", Handler: unaryHandler("/anycache.Master/GetFileInfo",
			func() interface{} { return new(GetFileInfoRequest) },
			func(ctx context.Context, srv, req interface{}) (interface{}, error) {
				return srv.(MasterServer).GetFileInfo(ctx, req.(*GetFileInfoRequest))
			})},
		{MethodName: "CreateFile", Handler: unaryHandler("/anycache.Master/CreateFile",
			func() interface{} { return new(CreateFileRequest) },
			func(ctx context.Context, srv, req interface{}) (interface{}, error) {
				return srv.(MasterServer).CreateFile(ctx, req.(*CreateFileRequest))
			})},
		{MethodName: "CompleteFile", Handler: unaryHandler("/anycache.Master/CompleteFile",
			func() interface{} { return new(CompleteFileRequest) },
			func(ctx context.Context, srv, req interface{}) (interface{}, error) {
				return srv.(MasterServer).CompleteFile(ctx, req.(*CompleteFileRequest))
			})},
		{MethodName: "DeleteFile", Handler: unaryHandler("/anycache.Master/DeleteFile",
			func() interface{} { return new(DeleteFileRequest) },
			func(ctx context.Context, srv, req interface{}) (interface{}, error) {
				return srv.(MasterServer).DeleteFile(ctx, req.(*DeleteFileRequest))
			})},
		{MethodName: "RenameFile", Handler: unaryHandler("/anycache.Master/RenameFile",
			func() interface{} { return new(RenameFileRequest) },
			func(ctx context.Context, srv, req interface{}) (interface{}, error) {
				return srv.(MasterServer).RenameFile(ctx, req.(*RenameFileRequest))
			})},
		{MethodName: "ListStatus", Handler: unaryHandler("/anycache.Master/ListStatus",
			func() interface{} { return new(ListStatusRequest) },
			func(ctx context.Context, srv, req interface{}) (interface{}, error) {
				return srv.(MasterServer).ListStatus(ctx, req.(*ListStatusRequest))
			})},
		{MethodName: "Mkdir", Handler: unaryHandler("/anycache.Master/Mkdir",
			func() interface{} { return new(MkdirRequest) },
			func(ctx context.Context, srv, req interface{}) (interface{}, error) {
				return srv.(MasterServer).Mkdir(ctx, req.(*MkdirRequest))
			})},
		{MethodName: "TruncateFile", Handler: unaryHandler("/anycache.Master/TruncateFile",
			func() interface{} { return new(TruncateFileRequest) },
			func(ctx context.Context, srv, req interface{}) (interface{}, error) {
				return srv.(MasterServer).TruncateFile(ctx, req.(*TruncateFileRequest))
			})},
		{MethodName: "GetBlockLocations", Handler: unaryHandler("/anycache.Master/GetBlockLocations",
			func() interface{} { return new(GetBlockLocationsRequest) },
			func(ctx context.Context, srv, req interface{}) (interface{}, error) {
				return srv.(MasterServer).GetBlockLocations(ctx, req.(*GetBlockLocationsRequest))
			})},
		{MethodName: "ReportBlockLocation", Handler: unaryHandler("/anycache.Master/ReportBlockLocation",
			func() interface{} { return new(ReportBlockLocationRequest) },
			func(ctx context.Context, srv, req interface{}) (interface{}, error) {
				return srv.(MasterServer).ReportBlockLocation(ctx, req.(*ReportBlockLocationRequest))
			})},
		{MethodName: "RegisterWorker", Handler: unaryHandler("/anycache.Master/RegisterWorker",
			func() interface{} { return new(RegisterWorkerRequest) },
			func(ctx context.Context, srv, req interface{}) (interface{}, error) {
				return srv.(MasterServer).RegisterWorker(ctx, req.(*RegisterWorkerRequest))
			})},
		{MethodName: "WorkerHeartbeat", Handler: unaryHandler("/anycache.Master/WorkerHeartbeat",
			func() interface{} { return new(WorkerHeartbeatRequest) },
			func(ctx context.Context, srv, req interface{}) (interface{}, error) {
				return srv.(MasterServer).WorkerHeartbeat(ctx, req.(*WorkerHeartbeatRequest))
			})},
		{MethodName: "Mount", Handler: unaryHandler("/anycache.Master/Mount",
			func() interface{} { return new(MountRequest) },
			func(ctx context.Context, srv, req interface{}) (interface{}, error) {
				return srv.(MasterServer).Mount(ctx, req.(*MountRequest))
			})},
		{MethodName: "Unmount", Handler: unaryHandler("/anycache.Master/Unmount",
			func() interface{} { return new(UnmountRequest) },
			func(ctx context.Context, srv, req interface{}) (interface{}, error) {
				return srv.(MasterServer).Unmount(ctx, req.(*UnmountRequest))
			})},
		{MethodName: "GetMountTable", Handler: unaryHandler("/anycache.Master/GetMountTable",
			func() interface{} { return new(GetMountTableRequest) },
			func(ctx context.Context, srv, req interface{}) (interface{}, error) {
				return srv.(MasterServer).GetMountTable(ctx, req.(*GetMountTableRequest))
			})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "anycache/master",
}

var workerServiceDesc = grpc.ServiceDesc{
	ServiceName: WorkerServiceName,
	HandlerType: (*WorkerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ReadBlock", Handler: unaryHandler("/anycache.Worker/ReadBlock",
			func() interface{} { return new(ReadBlockRequest) },
			func(ctx context.Context, srv, req interface{}) (interface{}, error) {
				return srv.(WorkerServer).ReadBlock(ctx, req.(*ReadBlockRequest))
			})},
		{MethodName: "WriteBlock", Handler: unaryHandler("/anycache.Worker/WriteBlock",
			func() interface{} { return new(WriteBlockRequest) },
			func(ctx context.Context, srv, req interface{}) (interface{}, error) {
				return srv.(WorkerServer).WriteBlock(ctx, req.(*WriteBlockRequest))
			})},
		{MethodName: "CacheBlock", Handler: unaryHandler("/anycache.Worker/CacheBlock",
			func() interface{} { return new(CacheBlockRequest) },
			func(ctx context.Context, srv, req interface{}) (interface{}, error) {
				return srv.(WorkerServer).CacheBlock(ctx, req.(*CacheBlockRequest))
			})},
		{MethodName: "AsyncCacheBlock", Handler: unaryHandler("/anycache.Worker/AsyncCacheBlock",
			func() interface{} { return new(AsyncCacheBlockRequest) },
			func(ctx context.Context, srv, req interface{}) (interface{}, error) {
				return srv.(WorkerServer).AsyncCacheBlock(ctx, req.(*AsyncCacheBlockRequest))
			})},
		{MethodName: "PersistBlock", Handler: unaryHandler("/anycache.Worker/PersistBlock",
			func() interface{} { return new(PersistBlockRequest) },
			func(ctx context.Context, srv, req interface{}) (interface{}, error) {
				return srv.(WorkerServer).PersistBlock(ctx, req.(*PersistBlockRequest))
			})},
		{MethodName: "RemoveBlock", Handler: unaryHandler("/anycache.Worker/RemoveBlock",
			func() interface{} { return new(RemoveBlockRequest) },
			func(ctx context.Context, srv, req interface{}) (interface{}, error) {
				return srv.(WorkerServer).RemoveBlock(ctx, req.(*RemoveBlockRequest))
			})},
		{MethodName: "ReadPage", Handler: unaryHandler("/anycache.Worker/ReadPage",
			func() interface{} { return new(ReadPageRequest) },
			func(ctx context.Context, srv, req interface{}) (interface{}, error) {
				return srv.(WorkerServer).ReadPage(ctx, req.(*ReadPageRequest))
			})},
		{MethodName: "GetWorkerStatus", Handler: unaryHandler("/anycache.Worker/GetWorkerStatus",
			func() interface{} { return new(GetWorkerStatusRequest) },
			func(ctx context.Context, srv, req interface{}) (interface{}, error) {
				return srv.(WorkerServer).GetWorkerStatus(ctx, req.(*GetWorkerStatusRequest))
			})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "anycache/worker",
}

func RegisterMasterServer(s *grpc.Server, srv MasterServer) {
	s.RegisterService(&masterServiceDesc, srv)
}

func RegisterWorkerServer(s *grpc.Server, srv WorkerServer) {
	s.RegisterService(&workerServiceDesc, srv)
}

type MasterClient interface {
	GetFileInfo(ctx context.Context, req *GetFileInfoRequest) (*GetFileInfoResponse, error)
	CreateFile(ctx context.Context, req *CreateFileRequest) (*CreateFileResponse, error)
	CompleteFile(ctx context.Context, req *CompleteFileRequest) (*CompleteFileResponse, error)
	DeleteFile(ctx context.Context, req *DeleteFileRequest) (*DeleteFileResponse, error)
	RenameFile(ctx context.Context, req *RenameFileRequest) (*RenameFileResponse, error)
	ListStatus(ctx context.Context, req *ListStatusRequest) (*ListStatusResponse, error)
	Mkdir(ctx context.Context, req *MkdirRequest) (*MkdirResponse, error)
	TruncateFile(ctx context.Context, req *TruncateFileRequest) (*TruncateFileResponse, error)
	GetBlockLocations(ctx context.Context, req *GetBlockLocationsRequest) (*GetBlockLocationsResponse, error)
	ReportBlockLocation(ctx context.Context, req *ReportBlockLocationRequest) (*ReportBlockLocationResponse, error)
	RegisterWorker(ctx context.Context, req *RegisterWorkerRequest) (*RegisterWorkerResponse, error)
	WorkerHeartbeat(ctx context.Context, req *WorkerHeartbeatRequest) (*WorkerHeartbeatResponse, error)
	Mount(ctx context.Context, req *MountRequest) (*MountResponse, error)
	Unmount(ctx context.Context, req *UnmountRequest) (*UnmountResponse, error)
	GetMountTable(ctx context.Context, req *GetMountTableRequest) (*GetMountTableResponse, error)
}

type masterClient struct {
	cc grpc.ClientConnInterface
}

func NewMasterClient(cc grpc.ClientConnInterface) MasterClient {
	return &masterClient{cc: cc}
}

func (c *masterClient) invoke(ctx context.Context, method string, in, out interface{}) error {
	return c.cc.Invoke(ctx, method, in, out, CallOption())
}

func (c *masterClient) GetFileInfo(ctx context.Context, req *GetFileInfoRequest) (*GetFileInfoResponse, error) {
	out := new(GetFileInfoResponse)
	if err := c.invoke(ctx, "/anycache.Master/GetFileInfo", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *masterClient) CreateFile(ctx context.Context, req *CreateFileRequest) (*CreateFileResponse, error) {
	out := new(CreateFileResponse)
	if err := c.invoke(ctx, "/anycache.Master/CreateFile", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *masterClient) CompleteFile(ctx context.Context, req *CompleteFileRequest) (*CompleteFileResponse, error) {
	out := new(CompleteFileResponse)
	if err := c.invoke(ctx, "/anycache.Master/CompleteFile", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *masterClient) DeleteFile(ctx context.Context, req *DeleteFileRequest) (*DeleteFileResponse, error) {
	out := new(DeleteFileResponse)
	if err := c.invoke(ctx, "/anycache.Master/DeleteFile", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *masterClient) RenameFile(ctx context.Context, req *RenameFileRequest) (*RenameFileResponse, error) {
	out := new(RenameFileResponse)
	if err := c.invoke(ctx, "/anycache.Master/RenameFile", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *masterClient) ListStatus(ctx context.Context, req *ListStatusRequest) (*ListStatusResponse, error) {
	out := new(ListStatusResponse)
	if err := c.invoke(ctx, "/anycache.Master/ListStatus", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *masterClient) Mkdir(ctx context.Context, req *MkdirRequest) (*MkdirResponse, error) {
	out := new(MkdirResponse)
	if err := c.invoke(ctx, "/anycache.Master/Mkdir", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *masterClient) TruncateFile(ctx context.Context, req *TruncateFileRequest) (*TruncateFileResponse, error) {
	out := new(TruncateFileResponse)
	if err := c.invoke(ctx, "/anycache.Master/TruncateFile", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *masterClient) GetBlockLocations(ctx context.Context, req *GetBlockLocationsRequest) (*GetBlockLocationsResponse, error) {
	out := new(GetBlockLocationsResponse)
	if err := c.invoke(ctx, "/anycache.Master/GetBlockLocations", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *masterClient) ReportBlockLocation(ctx context.Context, req *ReportBlockLocationRequest) (*ReportBlockLocationResponse, error) {
	out := new(ReportBlockLocationResponse)
	if err := c.invoke(ctx, "/anycache.Master/ReportBlockLocation", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *masterClient) RegisterWorker(ctx context.Context, req *RegisterWorkerRequest) (*RegisterWorkerResponse, error) {
	out := new(RegisterWorkerResponse)
	if err := c.invoke(ctx, "/anycache.Master/RegisterWorker", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *masterClient) WorkerHeartbeat(ctx context.Context, req *WorkerHeartbeatRequest) (*WorkerHeartbeatResponse, error) {
	out := new(WorkerHeartbeatResponse)
	if err := c.invoke(ctx, "/anycache.Master/WorkerHeartbeat", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *masterClient) Mount(ctx context.Context, req *MountRequest) (*MountResponse, error) {
	out := new(MountResponse)
	if err := c.invoke(ctx, "/anycache.Master/Mount", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *masterClient) Unmount(ctx context.Context, req *UnmountRequest) (*UnmountResponse, error) {
	out := new(UnmountResponse)
	if err := c.invoke(ctx, "/anycache.Master/Unmount", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *masterClient) GetMountTable(ctx context.Context, req *GetMountTableRequest) (*GetMountTableResponse, error) {
	out := new(GetMountTableResponse)
	if err := c.invoke(ctx, "/anycache.Master/GetMountTable", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

type WorkerClient interface {
	ReadBlock(ctx context.Context, req *ReadBlockRequest) (*ReadBlockResponse, error)
	WriteBlock(ctx context.Context, req *WriteBlockRequest) (*WriteBlockResponse, error)
	CacheBlock(ctx context.Context, req *CacheBlockRequest) (*CacheBlockResponse, error)
	AsyncCacheBlock(ctx context.Context, req *AsyncCacheBlockRequest) (*AsyncCacheBlockResponse, error)
	PersistBlock(ctx context.Context, req *PersistBlockRequest) (*PersistBlockResponse, error)
	RemoveBlock(ctx context.Context, req *RemoveBlockRequest) (*RemoveBlockResponse, error)
	ReadPage(ctx context.Context, req *ReadPageRequest) (*ReadPageResponse, error)
	GetWorkerStatus(ctx context.Context, req *GetWorkerStatusRequest) (*GetWorkerStatusResponse, error)
}

type workerClient struct {
	cc grpc.ClientConnInterface
}

func NewWorkerClient(cc grpc.ClientConnInterface) WorkerClient {
	return &workerClient{cc: cc}
}

func (c *workerClient) invoke(ctx context.Context, method string, in, out interface{}) error {
	return c.cc.Invoke(ctx, method, in, out, CallOption())
}

func (c *workerClient) ReadBlock(ctx context.Context, req *ReadBlockRequest) (*ReadBlockResponse, error) {
	out := new(ReadBlockResponse)
	if err := c.invoke(ctx, "/anycache.Worker/ReadBlock", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *workerClient) WriteBlock(ctx context.Context, req *WriteBlockRequest) (*WriteBlockResponse, error) {
	out := new(WriteBlockResponse)
	if err := c.invoke(ctx, "/anycache.Worker/WriteBlock", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *workerClient) CacheBlock(ctx context.Context, req *CacheBlockRequest) (*CacheBlockResponse, error) {
	out := new(CacheBlockResponse)
	if err := c.invoke(ctx, "/anycache.Worker/CacheBlock", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *workerClient) AsyncCacheBlock(ctx context.Context, req *AsyncCacheBlockRequest) (*AsyncCacheBlockResponse, error) {
	out := new(AsyncCacheBlockResponse)
	if err := c.invoke(ctx, "/anycache.Worker/AsyncCacheBlock", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *workerClient) PersistBlock(ctx context.Context, req *PersistBlockRequest) (*PersistBlockResponse, error) {
	out := new(PersistBlockResponse)
	if err := c.invoke(ctx, "/anycache.Worker/PersistBlock", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *workerClient) RemoveBlock(ctx context.Context, req *RemoveBlockRequest) (*RemoveBlockResponse, error) {
	out := new(RemoveBlockResponse)
	if err := c.invoke(ctx, "/anycache.Worker/RemoveBlock", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *workerClient) ReadPage(ctx context.Context, req *ReadPageRequest) (*ReadPageResponse, error) {
	out := new(ReadPageResponse)
	if err := c.invoke(ctx, "/anycache.Worker/ReadPage", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *workerClient) GetWorkerStatus(ctx context.Context, req *GetWorkerStatusRequest) (*GetWorkerStatusResponse, error) {
	out := new(GetWorkerStatusResponse)
	if err := c.invoke(ctx, "/anycache.Worker/GetWorkerStatus", req, out); err != nil {
		return nil, err
	}
	return out, nil
}
