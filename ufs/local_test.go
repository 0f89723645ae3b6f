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

package ufs

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	apierrors "github.com/anycache/anycache/errors"
	"github.com/anycache/anycache/util"
)

func newLocalEnv(t *testing.T) (UnderFileSystem, string, func()) {
	root, err := util.GenTmpPath()
	require.NoError(t, err)
	return NewLocal(root), root, func() { os.RemoveAll(root) }
}

func TestLocalCreateReadWrite(t *testing.T) {
	ctx := context.TODO()
	store, _, cleanup := newLocalEnv(t)
	defer cleanup()

	f, err := store.Create(ctx, "dir/file.bin", CreateOptions{Recursive: true})
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("content"), 3)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r, err := store.Open(ctx, "dir/file.bin")
	require.NoError(t, err)
	buf := make([]byte, 7)
	_, err = r.ReadAt(buf, 3)
	require.NoError(t, err)
	require.Equal(t, []byte("content"), buf)
	require.NoError(t, r.Close())

	info, err := store.GetFileInfo(ctx, "dir/file.bin")
	require.NoError(t, err)
	require.Equal(t, uint64(10), info.Size)
	require.False(t, info.IsDirectory)
}

func TestLocalOpenMissing(t *testing.T) {
	ctx := context.TODO()
	store, _, cleanup := newLocalEnv(t)
	defer cleanup()

	_, err := store.Open(ctx, "missing")
	require.True(t, apierrors.IsNotFound(err))
	_, err = store.GetFileInfo(ctx, "missing")
	require.True(t, apierrors.IsNotFound(err))

	exists, err := store.Exists(ctx, "missing")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestLocalListAndDelete(t *testing.T) {
	ctx := context.TODO()
	store, _, cleanup := newLocalEnv(t)
	defer cleanup()

	require.NoError(t, store.Mkdir(ctx, "d", MkdirOptions{}))
	f, err := store.Create(ctx, "d/a", CreateOptions{})
	require.NoError(t, err)
	f.Close()
	f, err = store.Create(ctx, "d/b", CreateOptions{})
	require.NoError(t, err)
	f.Close()

	entries, err := store.ListDir(ctx, "d")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.NoError(t, store.Delete(ctx, "d/a", false))
	entries, err = store.ListDir(ctx, "d")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, store.Delete(ctx, "d", true))
	exists, err := store.Exists(ctx, "d")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestLocalRename(t *testing.T) {
	ctx := context.TODO()
	store, _, cleanup := newLocalEnv(t)
	defer cleanup()

	f, err := store.Create(ctx, "old", CreateOptions{})
	require.NoError(t, err)
	f.Close()

	require.NoError(t, store.Rename(ctx, "old", "new"))
	exists, err := store.Exists(ctx, "new")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestFactorySchemes(t *testing.T) {
	ctx := context.TODO()
	factory := &Factory{}

	store, err := factory.Create(ctx, "file:///tmp/anycache-test")
	require.NoError(t, err)
	require.Equal(t, "file", store.Scheme())

	store, err = factory.Create(ctx, "/tmp/anycache-test")
	require.NoError(t, err)
	require.Equal(t, "file", store.Scheme())

	_, err = factory.Create(ctx, "hdfs://nn/path")
	require.Equal(t, apierrors.CodeOf(err).String(), "NotImplemented")
}

func TestSplitURI(t *testing.T) {
	base, rel := SplitURI("file:///mnt/data/f")
	require.Equal(t, "file:///mnt/data", base)
	require.Equal(t, "f", rel)

	base, rel = SplitURI("/mnt/data/f")
	require.Equal(t, "/mnt/data", base)
	require.Equal(t, "f", rel)

	base, rel = SplitURI("s3://bucket/prefix/obj")
	require.Equal(t, "s3://bucket/prefix", base)
	require.Equal(t, "obj", rel)
}
