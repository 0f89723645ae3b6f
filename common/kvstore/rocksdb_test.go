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

package kvstore

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anycache/anycache/util"
)

type testEg struct {
	engine Store
	path   string
	opt    *Option
}

func newEngine(ctx context.Context, opt *Option) (*testEg, error) {
	path, err := util.GenTmpPath()
	if err != nil {
		return nil, err
	}
	if opt == nil {
		opt = new(Option)
	}
	opt.CreateIfMissing = true
	engine, err := newRocksdb(ctx, path, opt)
	if err != nil {
		return nil, err
	}
	return &testEg{engine: engine, path: path, opt: opt}, nil
}

func (eg *testEg) close() {
	eg.engine.Close()
	os.RemoveAll(eg.path)
}

func TestOpenRocksdb(t *testing.T) {
	ctx := context.TODO()
	path, err := util.GenTmpPath()
	require.NoError(t, err)
	defer os.RemoveAll(path)

	opt := &Option{
		CreateIfMissing: true,
		ColumnFamily:    []CF{"inodes", "edges"},
		ColumnOptions: map[CF]ColumnOption{
			"inodes": {BloomFilterBitsPerKey: 10},
			"edges":  {FixedPrefixLen: 8},
		},
		BlockSize:  1 << 20,
		BlockCache: 1 << 20,
	}
	eg, err := newRocksdb(ctx, path, opt)
	require.NoError(t, err)
	require.True(t, eg.CheckColumns("inodes"))
	require.True(t, eg.CheckColumns("edges"))
	require.False(t, eg.CheckColumns("bogus"))
	eg.Close()

	// open with empty path
	_, err = newRocksdb(ctx, "", opt)
	require.Equal(t, errors.New("path is empty"), err)

	// reopen
	eg, err = newRocksdb(ctx, path, opt)
	require.NoError(t, err)
	eg.Close()
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.TODO()
	eg, err := newEngine(ctx, nil)
	require.NoError(t, err)
	defer eg.close()

	require.NoError(t, eg.engine.SetRaw(ctx, "", []byte("k"), []byte("v"), nil))
	v, err := eg.engine.GetRaw(ctx, "", []byte("k"), nil)
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)

	vg, err := eg.engine.Get(ctx, "", []byte("k"), nil)
	require.NoError(t, err)
	require.Equal(t, []byte("v"), vg.Value())
	require.Equal(t, 1, vg.Size())
	vg.Close()

	require.NoError(t, eg.engine.Delete(ctx, "", []byte("k"), nil))
	_, err = eg.engine.GetRaw(ctx, "", []byte("k"), nil)
	require.Equal(t, ErrNotFound, err)
}

func TestWriteBatchAtomic(t *testing.T) {
	ctx := context.TODO()
	eg, err := newEngine(ctx, &Option{ColumnFamily: []CF{"a", "b"}})
	require.NoError(t, err)
	defer eg.close()

	batch := eg.engine.NewWriteBatch()
	batch.Put("a", []byte("k1"), []byte("v1"))
	batch.Put("b", []byte("k2"), []byte("v2"))
	batch.Delete("a", []byte("missing"))
	require.Equal(t, 3, batch.Count())
	require.NoError(t, eg.engine.Write(ctx, batch, nil))
	batch.Close()

	v, err := eg.engine.GetRaw(ctx, "a", []byte("k1"), nil)
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), v)
	v, err = eg.engine.GetRaw(ctx, "b", []byte("k2"), nil)
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), v)
}

func TestMultiGet(t *testing.T) {
	ctx := context.TODO()
	eg, err := newEngine(ctx, nil)
	require.NoError(t, err)
	defer eg.close()

	require.NoError(t, eg.engine.SetRaw(ctx, "", []byte("k1"), []byte("v1"), nil))
	require.NoError(t, eg.engine.SetRaw(ctx, "", []byte("k3"), []byte("v3"), nil))

	values, err := eg.engine.MultiGet(ctx, "", [][]byte{[]byte("k1"), []byte("k2"), []byte("k3")}, nil)
	require.NoError(t, err)
	require.Len(t, values, 3)
	require.Equal(t, []byte("v1"), values[0].Value())
	require.Nil(t, values[1])
	require.Equal(t, []byte("v3"), values[2].Value())
	values[0].Close()
	values[2].Close()
}

func TestListPrefix(t *testing.T) {
	ctx := context.TODO()
	eg, err := newEngine(ctx, &Option{
		ColumnFamily:  []CF{"edges"},
		ColumnOptions: map[CF]ColumnOption{"edges": {FixedPrefixLen: 2}},
	})
	require.NoError(t, err)
	defer eg.close()

	require.NoError(t, eg.engine.SetRaw(ctx, "edges", []byte("aa1"), []byte("x"), nil))
	require.NoError(t, eg.engine.SetRaw(ctx, "edges", []byte("aa2"), []byte("y"), nil))
	require.NoError(t, eg.engine.SetRaw(ctx, "edges", []byte("bb1"), []byte("z"), nil))

	lr := eg.engine.List(ctx, "edges", []byte("aa"), nil, nil)
	var keys []string
	for {
		k, _, err := lr.ReadNextCopy()
		require.NoError(t, err)
		if k == nil {
			break
		}
		keys = append(keys, string(k))
	}
	lr.Close()
	require.Equal(t, []string{"aa1", "aa2"}, keys)

	// full scan sees every key
	ro := eg.engine.NewReadOption()
	ro.SetTotalOrderSeek(true)
	lr = eg.engine.List(ctx, "edges", nil, nil, ro)
	count := 0
	for {
		k, _, err := lr.ReadNextCopy()
		require.NoError(t, err)
		if k == nil {
			break
		}
		count++
	}
	lr.Close()
	ro.Close()
	require.Equal(t, 3, count)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.TODO()
	path, err := util.GenTmpPath()
	require.NoError(t, err)
	defer os.RemoveAll(path)

	opt := &Option{CreateIfMissing: true}
	eg, err := newRocksdb(ctx, path, opt)
	require.NoError(t, err)
	require.NoError(t, eg.SetRaw(ctx, "", []byte("durable"), []byte("yes"), nil))
	eg.Close()

	eg, err = newRocksdb(ctx, path, opt)
	require.NoError(t, err)
	defer eg.Close()
	v, err := eg.GetRaw(ctx, "", []byte("durable"), nil)
	require.NoError(t, err)
	require.Equal(t, []byte("yes"), v)
}
