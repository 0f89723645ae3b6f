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

package worker

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anycache/anycache/proto"
	"github.com/anycache/anycache/ufs"
	"github.com/anycache/anycache/util"
)

func newMoverEnv(t *testing.T) (*storeEnv, ufs.UnderFileSystem, string, func()) {
	env := newStoreEnv(t, BlockStoreOptions{
		Tiers:         []TierConfig{{Kind: "mem", CapacityBytes: 1 << 20}},
		HighWatermark: 1,
	})
	ufsRoot, err := util.GenTmpPath()
	require.NoError(t, err)
	return env, ufs.NewLocal(ufsRoot), ufsRoot, func() {
		env.cleanup()
		os.RemoveAll(ufsRoot)
	}
}

func TestDataMoverPreload(t *testing.T) {
	ctx := context.TODO()
	env, store, ufsRoot, cleanup := newMoverEnv(t)
	defer cleanup()

	payload := bytes.Repeat([]byte("anycache"), 512)
	require.NoError(t, os.WriteFile(filepath.Join(ufsRoot, "src.bin"), payload, 0o644))

	mover := NewDataMover(env.store, store, 2)
	defer mover.Stop()

	id := proto.MakeBlockID(5, 0)
	require.NoError(t, mover.SubmitPreload(id, "src.bin", 8, 1024, nil))
	mover.WaitAll()

	require.True(t, env.store.HasBlock(id))
	buf := make([]byte, 1024)
	n, err := env.store.ReadBlock(ctx, id, buf, 0)
	require.NoError(t, err)
	require.Equal(t, 1024, n)
	require.Equal(t, payload[8:8+1024], buf)
}

func TestDataMoverPersist(t *testing.T) {
	ctx := context.TODO()
	env, store, ufsRoot, cleanup := newMoverEnv(t)
	defer cleanup()

	id := proto.MakeBlockID(6, 0)
	payload := []byte("persist me to the external store")
	require.NoError(t, env.store.CreateBlock(ctx, id, uint64(len(payload))))
	require.NoError(t, env.store.WriteBlock(ctx, id, payload, 0))

	mover := NewDataMover(env.store, store, 2)
	defer mover.Stop()

	require.NoError(t, mover.SubmitPersist(id, "out/dest.bin", 0, nil))
	mover.WaitAll()

	got, err := os.ReadFile(filepath.Join(ufsRoot, "out", "dest.bin"))
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestDataMoverPerTaskUfsDominates(t *testing.T) {
	ctx := context.TODO()
	env, defaultStore, _, cleanup := newMoverEnv(t)
	defer cleanup()

	otherRoot, err := util.GenTmpPath()
	require.NoError(t, err)
	defer os.RemoveAll(otherRoot)
	otherStore := ufs.NewLocal(otherRoot)

	payload := []byte("from the per-task store")
	require.NoError(t, os.WriteFile(filepath.Join(otherRoot, "f"), payload, 0o644))

	mover := NewDataMover(env.store, defaultStore, 1)
	defer mover.Stop()

	id := proto.MakeBlockID(7, 0)
	require.NoError(t, mover.SubmitPreload(id, "f", 0, uint64(len(payload)), otherStore))
	mover.WaitAll()

	buf := make([]byte, len(payload))
	_, err = env.store.ReadBlock(ctx, id, buf, 0)
	require.NoError(t, err)
	require.Equal(t, payload, buf)
}

func TestDataMoverNoUfsFails(t *testing.T) {
	env := newStoreEnv(t, BlockStoreOptions{
		Tiers:         []TierConfig{{Kind: "mem", CapacityBytes: 1 << 20}},
		HighWatermark: 1,
	})
	defer env.cleanup()

	mover := NewDataMover(env.store, nil, 1)
	defer mover.Stop()

	id := proto.MakeBlockID(8, 0)
	require.NoError(t, mover.SubmitPreload(id, "nowhere", 0, 16, nil))
	mover.WaitAll()

	// failure is logged, not retried; the block never materializes
	require.False(t, env.store.HasBlock(id))
	require.Equal(t, 0, mover.PendingTaskCount())
}

func TestDataMoverStopDiscardsPending(t *testing.T) {
	env, store, _, cleanup := newMoverEnv(t)
	defer cleanup()

	mover := NewDataMover(env.store, store, 1)
	mover.Stop()

	err := mover.SubmitPreload(proto.MakeBlockID(9, 0), "f", 0, 16, nil)
	require.Error(t, err)
	require.Equal(t, 0, mover.PendingTaskCount())
}
