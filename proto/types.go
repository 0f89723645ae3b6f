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

// FileInfo is the wire form of one namespace entry.
type FileInfo struct {
	ID                 InodeID `json:"id"`
	ParentID           InodeID `json:"parent_id"`
	Name               string  `json:"name"`
	IsDirectory        bool    `json:"is_directory"`
	Size               uint64  `json:"size"`
	Mode               uint32  `json:"mode"`
	Owner              string  `json:"owner,omitempty"`
	Group              string  `json:"group,omitempty"`
	BlockSize          uint64  `json:"block_size"`
	CreationTimeMs     int64   `json:"creation_time_ms"`
	ModificationTimeMs int64   `json:"modification_time_ms"`
	IsComplete         bool    `json:"is_complete"`
}

// BlockLocation names one replica of a cached block.
type BlockLocation struct {
	BlockID       BlockID  `json:"block_id"`
	WorkerID      WorkerID `json:"worker_id"`
	WorkerAddress string   `json:"worker_address"`
	Tier          TierType `json:"tier"`
}

// MountPoint maps a namespace path onto an external store URI.
type MountPoint struct {
	Path   string `json:"path"`
	UfsURI string `json:"ufs_uri"`
}

// TierStat reports one tier's usage in GetWorkerStatus.
type TierStat struct {
	Type          TierType `json:"type"`
	CapacityBytes uint64   `json:"capacity_bytes"`
	UsedBytes     uint64   `json:"used_bytes"`
}
