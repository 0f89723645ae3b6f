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

const (
	ReqIdKey = "req-id"

	DefaultBlockSize = uint64(64 << 20)
	DefaultPageSize  = uint64(1 << 20)
	MaxBlockSize     = uint64(512 << 20)
)

type (
	InodeID  = uint64
	BlockID  = uint64
	WorkerID = uint64
)

const (
	InvalidInodeID  = InodeID(0)
	RootInodeID     = InodeID(1)
	InvalidBlockID  = BlockID(0)
	InvalidWorkerID = WorkerID(0)
)

type TierType uint8

const (
	TierMemory TierType = iota
	TierSSD
	TierHDD
)

func (t TierType) String() string {
	switch t {
	case TierMemory:
		return "MEM"
	case TierSSD:
		return "SSD"
	case TierHDD:
		return "HDD"
	}
	return "UNKNOWN"
}

// ParseTierType maps a tier spec kind from configuration onto a TierType.
func ParseTierType(kind string) (TierType, bool) {
	switch kind {
	case "mem", "MEM", "memory":
		return TierMemory, true
	case "ssd", "SSD":
		return TierSSD, true
	case "hdd", "HDD":
		return TierHDD, true
	}
	return TierMemory, false
}
