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

// Composite block id layout: [inode id (40 bits) | block index (24 bits)].
// The file-to-block mapping is computable, so no file->block table exists
// anywhere in the system.
const (
	BlockIndexBits = 24
	BlockIndexMask = uint64(1<<BlockIndexBits) - 1

	MaxInodeID    = InodeID(1<<40) - 1
	MaxBlockIndex = uint32(1<<BlockIndexBits) - 1
)

// MakeBlockID composes a block id from an inode id and a block index
// within the file.
func MakeBlockID(inodeID InodeID, blockIndex uint32) BlockID {
	return BlockID(inodeID<<BlockIndexBits) | (BlockID(blockIndex) & BlockIndexMask)
}

// BlockInodeID extracts the inode id from a composite block id.
func BlockInodeID(blockID BlockID) InodeID {
	return InodeID(blockID >> BlockIndexBits)
}

// BlockIndex extracts the block index from a composite block id.
func BlockIndex(blockID BlockID) uint32 {
	return uint32(blockID & BlockIndexMask)
}

// BlockCount computes how many blocks a file of fileSize bytes occupies.
func BlockCount(fileSize uint64, blockSize uint64) uint32 {
	if fileSize == 0 || blockSize == 0 {
		return 0
	}
	return uint32((fileSize + blockSize - 1) / blockSize)
}

// BlockLength computes the actual data length of one block; the last
// block of a file may be short.
func BlockLength(fileSize uint64, blockIndex uint32, blockSize uint64) uint64 {
	start := uint64(blockIndex) * blockSize
	if start >= fileSize {
		return 0
	}
	if remain := fileSize - start; remain < blockSize {
		return remain
	}
	return blockSize
}
