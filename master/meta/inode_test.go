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

package meta

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anycache/anycache/proto"
)

func TestInodeRecordRoundTrip(t *testing.T) {
	dict := NewOwnerGroupDict()
	in := &Inode{
		ID:                 7,
		ParentID:           3,
		Name:               "train.csv",
		IsDirectory:        false,
		Size:               200 << 20,
		Mode:               0o644,
		Owner:              "alice",
		Group:              "ml",
		BlockSize:          proto.DefaultBlockSize,
		CreationTimeMs:     1690000000000,
		ModificationTimeMs: 1690000000123,
		IsComplete:         true,
	}

	raw := marshalInode(in, dict)
	require.Len(t, raw, inodeHeaderSize+len(in.Name))

	out := unmarshalInode(in.ID, raw, dict)
	require.Equal(t, in.ParentID, out.ParentID)
	require.Equal(t, in.Name, out.Name)
	require.Equal(t, in.Size, out.Size)
	require.Equal(t, in.Mode, out.Mode)
	require.Equal(t, in.Owner, out.Owner)
	require.Equal(t, in.Group, out.Group)
	require.Equal(t, in.BlockSize, out.BlockSize)
	require.Equal(t, in.CreationTimeMs, out.CreationTimeMs)
	require.Equal(t, in.ModificationTimeMs, out.ModificationTimeMs)
	require.False(t, out.IsDirectory)
	require.True(t, out.IsComplete)
}

func TestInodeRecordDirectoryFlag(t *testing.T) {
	dict := NewOwnerGroupDict()
	dir := &Inode{ID: 2, ParentID: 1, Name: "d", IsDirectory: true, IsComplete: true}
	raw := marshalInode(dir, dict)
	require.True(t, inodeRecordIsDirectory(raw))

	file := &Inode{ID: 3, ParentID: 1, Name: "f"}
	require.False(t, inodeRecordIsDirectory(marshalInode(file, dict)))
}

func TestInodeRecordCorrupt(t *testing.T) {
	dict := NewOwnerGroupDict()
	// a short record deserializes to a usable default, not a crash
	out := unmarshalInode(9, []byte{1, 2, 3}, dict)
	require.Equal(t, proto.InodeID(9), out.ID)
	require.Equal(t, proto.DefaultBlockSize, out.BlockSize)
}

func TestOwnerGroupDict(t *testing.T) {
	dict := NewOwnerGroupDict()

	require.Equal(t, uint8(0), dict.GetOrAddOwnerID(""))
	a := dict.GetOrAddOwnerID("alice")
	b := dict.GetOrAddOwnerID("bob")
	require.Equal(t, uint8(1), a)
	require.Equal(t, uint8(2), b)
	require.Equal(t, a, dict.GetOrAddOwnerID("alice"))
	require.True(t, dict.Dirty())

	require.Equal(t, "alice", dict.Owner(1))
	require.Equal(t, "bob", dict.Owner(2))
	require.Equal(t, "", dict.Owner(0))
	require.Equal(t, "", dict.Owner(200))

	// round trip through the persisted form
	raw := dict.SerializeOwners()
	other := NewOwnerGroupDict()
	other.LoadOwners(raw)
	require.Equal(t, "alice", other.Owner(1))
	require.Equal(t, "bob", other.Owner(2))
	require.Equal(t, uint8(2), other.GetOrAddOwnerID("bob"))
}

func TestOwnerGroupDictOverflow(t *testing.T) {
	dict := NewOwnerGroupDict()
	for i := 0; i < 255; i++ {
		require.NotEqual(t, uint8(0), dict.GetOrAddGroupID(string(rune('a'+i%26))+string(rune('0'+i/26))))
	}
	// 256th distinct string falls back to the empty id
	require.Equal(t, uint8(0), dict.GetOrAddGroupID("overflow-entry"))
}

func TestEdgeKeyEncoding(t *testing.T) {
	key := encodeEdgeKey(42, "child.bin")
	require.Len(t, key, 8+len("child.bin"))

	parent, name := decodeEdgeKey(key)
	require.Equal(t, proto.InodeID(42), parent)
	require.Equal(t, "child.bin", name)

	require.Equal(t, key[:8], encodeEdgePrefix(42))
}
