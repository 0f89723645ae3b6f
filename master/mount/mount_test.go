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

package mount

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anycache/anycache/common/kvstore"
	apierrors "github.com/anycache/anycache/errors"
	"github.com/anycache/anycache/ufs"
	"github.com/anycache/anycache/util"
)

func TestMountLongestPrefix(t *testing.T) {
	ctx := context.TODO()
	table := NewTable(&ufs.Factory{}, nil)

	require.NoError(t, table.Mount(ctx, "/data/a", "file:///mnt/store-a"))
	require.NoError(t, table.Mount(ctx, "/data/b", "file:///mnt/store-b"))

	store, rel, err := table.Resolve("/data/b/sub/x")
	require.NoError(t, err)
	require.Equal(t, "file", store.Scheme())
	require.Equal(t, "sub/x", rel)

	// exact mount point resolves with empty relative path
	_, rel, err = table.Resolve("/data/a")
	require.NoError(t, err)
	require.Equal(t, "", rel)

	// the longer of two nested prefixes wins
	require.NoError(t, table.Mount(ctx, "/data/b/sub", "file:///mnt/store-b-sub"))
	_, rel, err = table.Resolve("/data/b/sub/x")
	require.NoError(t, err)
	require.Equal(t, "x", rel)

	_, _, err = table.Resolve("/unmounted/x")
	require.True(t, apierrors.IsNotFound(err))

	// sibling with a shared name prefix does not match
	_, _, err = table.Resolve("/data/bb/x")
	require.True(t, apierrors.IsNotFound(err))
}

func TestMountDuplicateAndUnmount(t *testing.T) {
	ctx := context.TODO()
	table := NewTable(&ufs.Factory{}, nil)

	require.NoError(t, table.Mount(ctx, "/data", "file:///mnt/store"))
	err := table.Mount(ctx, "/data", "file:///mnt/other")
	require.True(t, apierrors.IsAlreadyExists(err))

	require.True(t, table.IsMountPoint("/data"))
	require.NoError(t, table.Unmount(ctx, "/data"))
	require.False(t, table.IsMountPoint("/data"))

	err = table.Unmount(ctx, "/data")
	require.True(t, apierrors.IsNotFound(err))
}

func TestMountPersistence(t *testing.T) {
	ctx := context.TODO()
	path, err := util.GenTmpPath()
	require.NoError(t, err)
	defer os.RemoveAll(path)

	opt := kvstore.Option{CreateIfMissing: true}
	kv, err := kvstore.NewKVStore(ctx, path, kvstore.RocksdbLsmKVType, &opt)
	require.NoError(t, err)

	table := NewTable(&ufs.Factory{}, kv)
	require.NoError(t, table.Mount(ctx, "/data/a", "file:///mnt/store-a"))
	require.NoError(t, table.Mount(ctx, "/data/b", "file:///mnt/store-b"))
	require.NoError(t, table.Unmount(ctx, "/data/b"))
	kv.Close()

	// reopen and reload
	kv2, err := kvstore.NewKVStore(ctx, path, kvstore.RocksdbLsmKVType, &opt)
	require.NoError(t, err)
	defer kv2.Close()

	table2 := NewTable(&ufs.Factory{}, kv2)
	require.NoError(t, table2.Load(ctx))

	mounts := table2.MountPoints()
	require.Len(t, mounts, 1)
	require.Equal(t, "/data/a", mounts[0].Path)
	require.Equal(t, "file:///mnt/store-a", mounts[0].UfsURI)
}
