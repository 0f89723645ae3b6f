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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockIDBijection(t *testing.T) {
	inodes := []InodeID{1, 2, 42, 1 << 20, MaxInodeID}
	indexes := []uint32{0, 1, 255, 1 << 16, MaxBlockIndex}

	for _, ino := range inodes {
		for _, idx := range indexes {
			id := MakeBlockID(ino, idx)
			require.Equal(t, ino, BlockInodeID(id))
			require.Equal(t, idx, BlockIndex(id))
		}
	}

	// zero stays reserved invalid
	require.Equal(t, InvalidBlockID, MakeBlockID(0, 0))
	require.NotEqual(t, InvalidBlockID, MakeBlockID(1, 0))
}

func TestBlockIDIndexMasking(t *testing.T) {
	// the index contributes only its low 24 bits
	id := MakeBlockID(7, MaxBlockIndex)
	require.Equal(t, InodeID(7), BlockInodeID(id))
	require.Equal(t, MaxBlockIndex, BlockIndex(id))

	// bits above the low 24 are dropped and do not reach the inode id
	id = MakeBlockID(7, MaxBlockIndex+6)
	require.Equal(t, InodeID(7), BlockInodeID(id))
	require.Equal(t, uint32(5), BlockIndex(id))
}

func TestBlockCount(t *testing.T) {
	require.Equal(t, uint32(0), BlockCount(0, DefaultBlockSize))
	require.Equal(t, uint32(1), BlockCount(1, DefaultBlockSize))
	require.Equal(t, uint32(1), BlockCount(DefaultBlockSize, DefaultBlockSize))
	require.Equal(t, uint32(2), BlockCount(DefaultBlockSize+1, DefaultBlockSize))
}

func TestBlockEnumeration(t *testing.T) {
	// 200 MiB file with 64 MiB blocks on inode 42
	fileSize := uint64(200 << 20)
	blockSize := uint64(64 << 20)

	require.Equal(t, uint32(4), BlockCount(fileSize, blockSize))

	ids := make([]BlockID, 0, 4)
	for i := uint32(0); i < 4; i++ {
		ids = append(ids, MakeBlockID(42, i))
	}
	for i, id := range ids {
		require.Equal(t, InodeID(42), BlockInodeID(id))
		require.Equal(t, uint32(i), BlockIndex(id))
	}

	require.Equal(t, blockSize, BlockLength(fileSize, 0, blockSize))
	require.Equal(t, blockSize, BlockLength(fileSize, 1, blockSize))
	require.Equal(t, blockSize, BlockLength(fileSize, 2, blockSize))
	require.Equal(t, uint64(8<<20), BlockLength(fileSize, 3, blockSize))
	require.Equal(t, uint64(0), BlockLength(fileSize, 4, blockSize))
}
