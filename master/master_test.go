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

package master

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apierrors "github.com/anycache/anycache/errors"
	"github.com/anycache/anycache/master/cluster"
	"github.com/anycache/anycache/master/store"
	"github.com/anycache/anycache/proto"
	"github.com/anycache/anycache/util"
)

func newTestMaster(t *testing.T, path string) (*Master, string) {
	ctx := context.TODO()
	if path == "" {
		var err error
		path, err = util.GenTmpPath()
		require.NoError(t, err)
	}
	m, err := NewMaster(ctx, &Config{
		StoreConfig:   store.Config{Path: path},
		ClusterConfig: cluster.Config{HeartbeatTimeoutS: 1, CheckIntervalS: 1},
	})
	require.NoError(t, err)
	return m, path
}

func TestMasterPathLifecycle(t *testing.T) {
	ctx := context.TODO()
	m, dbPath := newTestMaster(t, "")
	defer func() {
		m.Close()
		os.RemoveAll(dbPath)
	}()

	require.NoError(t, m.Mkdir(ctx, "/a/b/c", 0o755, true))
	// mkdir again is idempotent
	require.NoError(t, m.Mkdir(ctx, "/a/b/c", 0o755, false))

	id, worker, err := m.CreateFile(ctx, "/a/b/c/f.bin", 0o644)
	require.NoError(t, err)
	require.NotEqual(t, proto.InvalidInodeID, id)
	// no workers registered: invalid sentinel, creation still succeeded
	require.Equal(t, proto.InvalidWorkerID, worker.ID)

	entries, err := m.ListStatus(ctx, "/a/b/c")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "f.bin", entries[0].Name)

	require.NoError(t, m.DeleteFile(ctx, "/a/b/c/f.bin", false))
	entries, err = m.ListStatus(ctx, "/a/b/c")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestMasterRestartRetainsFile(t *testing.T) {
	ctx := context.TODO()
	m, dbPath := newTestMaster(t, "")
	defer os.RemoveAll(dbPath)

	id, _, err := m.CreateFile(ctx, "/train.csv", 0o644)
	require.NoError(t, err)
	require.NoError(t, m.CompleteFile(ctx, id, 200<<20))
	m.Close()

	m2, _ := newTestMaster(t, dbPath)
	defer m2.Close()

	inode, err := m2.GetFileInfo(ctx, "/train.csv")
	require.NoError(t, err)
	require.Equal(t, uint64(200<<20), inode.Size)
	require.True(t, inode.IsComplete)
}

func TestMasterTruncatePurgesLocations(t *testing.T) {
	ctx := context.TODO()
	m, dbPath := newTestMaster(t, "")
	defer func() {
		m.Close()
		os.RemoveAll(dbPath)
	}()

	id, _, err := m.CreateFile(ctx, "/big.bin", 0o644)
	require.NoError(t, err)
	require.NoError(t, m.CompleteFile(ctx, id, 200<<20)) // 4 blocks of 64 MiB

	workerID, err := m.RegisterWorker(ctx, "w1:29999", 1<<40, 0)
	require.NoError(t, err)
	var ids []proto.BlockID
	for i := uint32(0); i < 4; i++ {
		ids = append(ids, proto.MakeBlockID(id, i))
	}
	for _, bid := range ids {
		m.ReportBlockLocation(ctx, workerID, []proto.BlockLocation{{
			BlockID: bid, WorkerAddress: "w1:29999", Tier: proto.TierSSD,
		}})
	}
	require.Len(t, m.GetBlockLocations(ctx, ids), 4)

	// shrink to 130 MiB: 3 blocks remain, the fourth's location is purged
	require.NoError(t, m.TruncateFile(ctx, "/big.bin", 130<<20))
	require.Len(t, m.GetBlockLocations(ctx, ids), 3)
	require.Empty(t, m.GetBlockLocations(ctx, []proto.BlockID{ids[3]}))

	inode, err := m.GetFileInfo(ctx, "/big.bin")
	require.NoError(t, err)
	require.Equal(t, uint64(130<<20), inode.Size)
}

func TestMasterDeletePurgesLocations(t *testing.T) {
	ctx := context.TODO()
	m, dbPath := newTestMaster(t, "")
	defer func() {
		m.Close()
		os.RemoveAll(dbPath)
	}()

	id, _, err := m.CreateFile(ctx, "/f.bin", 0o644)
	require.NoError(t, err)
	require.NoError(t, m.CompleteFile(ctx, id, 1<<20))

	workerID, err := m.RegisterWorker(ctx, "w1:29999", 1<<40, 0)
	require.NoError(t, err)
	bid := proto.MakeBlockID(id, 0)
	m.ReportBlockLocation(ctx, workerID, []proto.BlockLocation{{BlockID: bid}})

	require.NoError(t, m.DeleteFile(ctx, "/f.bin", false))
	require.Empty(t, m.GetBlockLocations(ctx, []proto.BlockID{bid}))
}

func TestMasterWorkerDeathEvictsLocations(t *testing.T) {
	ctx := context.TODO()
	m, dbPath := newTestMaster(t, "")
	defer func() {
		m.Close()
		os.RemoveAll(dbPath)
	}()

	workerID, err := m.RegisterWorker(ctx, "w1:29999", 1<<30, 0)
	require.NoError(t, err)
	m.ReportBlockLocation(ctx, workerID, []proto.BlockLocation{{
		BlockID: 0xABCD, WorkerAddress: "w1:29999", Tier: proto.TierMemory,
	}})
	require.Len(t, m.GetBlockLocations(ctx, []proto.BlockID{0xABCD}), 1)

	// past the 1 s heartbeat timeout the checker drops the locations
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(m.GetBlockLocations(ctx, []proto.BlockID{0xABCD})) == 0 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	require.Empty(t, m.GetBlockLocations(ctx, []proto.BlockID{0xABCD}))

	w, err := m.Cluster().GetWorker(workerID)
	require.NoError(t, err)
	require.False(t, w.Alive)
}

func TestMasterMountTable(t *testing.T) {
	ctx := context.TODO()
	m, dbPath := newTestMaster(t, "")
	defer func() {
		m.Close()
		os.RemoveAll(dbPath)
	}()

	require.NoError(t, m.Mount(ctx, "/data/a", "file:///mnt/store-a"))
	require.NoError(t, m.Mount(ctx, "/data/b", "file:///mnt/store-b"))

	_, rel, err := m.MountTable().Resolve("/data/b/sub/x")
	require.NoError(t, err)
	require.Equal(t, "sub/x", rel)

	_, _, err = m.MountTable().Resolve("/unmounted/x")
	require.True(t, apierrors.IsNotFound(err))

	mounts := m.GetMountTable(ctx)
	require.Len(t, mounts, 2)
}
