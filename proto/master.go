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

type GetFileInfoRequest struct {
	Path string `json:"path"`
}

type GetFileInfoResponse struct {
	Status Status   `json:"status"`
	Info   FileInfo `json:"info"`
}

type CreateFileRequest struct {
	Path string `json:"path"`
	Mode uint32 `json:"mode"`
}

type CreateFileResponse struct {
	Status        Status   `json:"status"`
	FileID        InodeID  `json:"file_id"`
	WorkerID      WorkerID `json:"worker_id"`
	WorkerAddress string   `json:"worker_address,omitempty"`
}

type CompleteFileRequest struct {
	FileID   InodeID `json:"file_id"`
	FileSize uint64  `json:"file_size"`
}

type CompleteFileResponse struct {
	Status Status `json:"status"`
}

type DeleteFileRequest struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive"`
}

type DeleteFileResponse struct {
	Status Status `json:"status"`
}

type RenameFileRequest struct {
	Src string `json:"src"`
	Dst string `json:"dst"`
}

type RenameFileResponse struct {
	Status Status `json:"status"`
}

type ListStatusRequest struct {
	Path string `json:"path"`
}

type ListStatusResponse struct {
	Status  Status     `json:"status"`
	Entries []FileInfo `json:"entries,omitempty"`
}

type MkdirRequest struct {
	Path      string `json:"path"`
	Mode      uint32 `json:"mode"`
	Recursive bool   `json:"recursive"`
}

type MkdirResponse struct {
	Status Status `json:"status"`
}

type TruncateFileRequest struct {
	Path    string `json:"path"`
	NewSize uint64 `json:"new_size"`
}

type TruncateFileResponse struct {
	Status Status `json:"status"`
}

type GetBlockLocationsRequest struct {
	BlockIDs []BlockID `json:"block_ids"`
}

type GetBlockLocationsResponse struct {
	Status    Status          `json:"status"`
	Locations []BlockLocation `json:"locations,omitempty"`
}

type ReportBlockLocationRequest struct {
	WorkerID  WorkerID        `json:"worker_id"`
	Locations []BlockLocation `json:"locations"`
}

type ReportBlockLocationResponse struct {
	Status Status `json:"status"`
}

type RegisterWorkerRequest struct {
	Address       string `json:"address"`
	CapacityBytes uint64 `json:"capacity_bytes"`
	UsedBytes     uint64 `json:"used_bytes"`
}

type RegisterWorkerResponse struct {
	Status   Status   `json:"status"`
	WorkerID WorkerID `json:"worker_id"`
}

type WorkerHeartbeatRequest struct {
	WorkerID      WorkerID `json:"worker_id"`
	CapacityBytes uint64   `json:"capacity_bytes"`
	UsedBytes     uint64   `json:"used_bytes"`
}

type WorkerHeartbeatResponse struct {
	Status Status `json:"status"`
}

type MountRequest struct {
	Path   string `json:"path"`
	UfsURI string `json:"ufs_uri"`
}

type MountResponse struct {
	Status Status `json:"status"`
}

type UnmountRequest struct {
	Path string `json:"path"`
}

type UnmountResponse struct {
	Status Status `json:"status"`
}

type GetMountTableRequest struct{}

type GetMountTableResponse struct {
	Status Status       `json:"status"`
	Mounts []MountPoint `json:"mounts,omitempty"`
}
