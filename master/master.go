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

	"github.com/cubefs/cubefs/blobstore/common/trace"

	apierrors "github.com/anycache/anycache/errors"
	"github.com/anycache/anycache/master/cluster"
	"github.com/anycache/anycache/master/meta"
	"github.com/anycache/anycache/master/mount"
	"github.com/anycache/anycache/master/store"
	"github.com/anycache/anycache/proto"
	"github.com/anycache/anycache/ufs"
)

type Config struct {
	StoreConfig   store.Config   `json:"store_config"`
	ClusterConfig cluster.Config `json:"cluster_config"`
	UfsFactory    ufs.Factory    `json:"ufs"`
}

// Master coordinates the namespace tree, block placement and worker
// membership.
type Master struct {
	store      *store.Store
	inodeStore *meta.InodeStore
	tree       *meta.Tree
	cluster    *cluster.Cluster
	blocks     *cluster.BlockMap
	mounts     *mount.Table
}

func NewMaster(ctx context.Context, cfg *Config) (*Master, error) {
	span := trace.SpanFromContextSafe(ctx)

	st, err := store.NewStore(ctx, &cfg.StoreConfig)
	if err != nil {
		return nil, apierrors.IOError("open master store: " + err.Error())
	}

	inodeStore, err := meta.NewInodeStore(ctx, st.KVStore())
	if err != nil {
		st.Close()
		return nil, err
	}

	tree := meta.NewTree(inodeStore)
	if err := tree.Recover(ctx); err != nil {
		st.Close()
		return nil, err
	}

	mounts := mount.NewTable(&cfg.UfsFactory, st.MountStore())
	if err := mounts.Load(ctx); err != nil {
		st.Close()
		return nil, err
	}

	m := &Master{
		store:      st,
		inodeStore: inodeStore,
		tree:       tree,
		cluster:    cluster.NewCluster(cfg.ClusterConfig),
		blocks:     cluster.NewBlockMap(),
		mounts:     mounts,
	}
	m.cluster.StartChecker(func(dead []proto.WorkerID) {
		for _, id := range dead {
			m.blocks.RemoveWorkerBlocks(id)
		}
	})

	span.Infof("master started, %d directories", tree.DirCount())
	return m, nil
}

func (m *Master) Tree() *meta.Tree            { return m.tree }
func (m *Master) Cluster() *cluster.Cluster   { return m.cluster }
func (m *Master) BlockMap() *cluster.BlockMap { return m.blocks }
func (m *Master) MountTable() *mount.Table    { return m.mounts }

func (m *Master) Close() {
	m.cluster.Close()
	m.store.Close()
}

// ─── file operations ─────────────────────────────────────────

func (m *Master) GetFileInfo(ctx context.Context, path string) (*meta.Inode, error) {
	return m.tree.GetByPath(ctx, path)
}

// CreateFile creates the inode and picks the alive worker with the most
// available bytes. Creation still succeeds with no worker; the returned
// worker id is then the invalid sentinel and the client retries placement.
func (m *Master) CreateFile(ctx context.Context, path string, mode uint32) (proto.InodeID, cluster.WorkerInfo, error) {
	id, err := m.tree.CreateFile(ctx, path, mode)
	if err != nil {
		return proto.InvalidInodeID, cluster.WorkerInfo{}, err
	}
	worker, err := m.cluster.SelectWorkerForWrite()
	if err != nil {
		return id, cluster.WorkerInfo{ID: proto.InvalidWorkerID}, nil
	}
	return id, worker, nil
}

func (m *Master) CompleteFile(ctx context.Context, fileID proto.InodeID, size uint64) error {
	return m.tree.CompleteFile(ctx, fileID, size)
}

// DeleteFile drops the namespace entry and purges the deleted file's block
// locations; workers reclaim the bytes lazily.
func (m *Master) DeleteFile(ctx context.Context, path string, recursive bool) error {
	inode, err := m.tree.GetByPath(ctx, path)
	if err == nil && !inode.IsDirectory {
		count := proto.BlockCount(inode.Size, inode.BlockSize)
		for i := uint32(0); i < count; i++ {
			m.blocks.RemoveBlock(proto.MakeBlockID(inode.ID, i))
		}
	}
	return m.tree.Delete(ctx, path, recursive)
}

func (m *Master) RenameFile(ctx context.Context, src, dst string) error {
	return m.tree.Rename(ctx, src, dst)
}

func (m *Master) ListStatus(ctx context.Context, path string) ([]*meta.Inode, error) {
	return m.tree.List(ctx, path)
}

// Mkdir is idempotent: creating an existing directory answers OK.
func (m *Master) Mkdir(ctx context.Context, path string, mode uint32, recursive bool) error {
	_, err := m.tree.CreateDirectory(ctx, path, mode, recursive)
	if apierrors.IsAlreadyExists(err) {
		return nil
	}
	return err
}

// TruncateFile updates the size; shrinking purges the dropped blocks'
// locations from the master map.
func (m *Master) TruncateFile(ctx context.Context, path string, newSize uint64) error {
	inode, err := m.tree.GetByPath(ctx, path)
	if err != nil {
		return err
	}
	if inode.IsDirectory {
		return apierrors.InvalidArgument("cannot truncate a directory")
	}
	if newSize < inode.Size {
		newCount := proto.BlockCount(newSize, inode.BlockSize)
		oldCount := proto.BlockCount(inode.Size, inode.BlockSize)
		for i := newCount; i < oldCount; i++ {
			m.blocks.RemoveBlock(proto.MakeBlockID(inode.ID, i))
		}
	}
	return m.tree.UpdateSize(ctx, inode.ID, newSize)
}

// ─── block operations ────────────────────────────────────────

func (m *Master) GetBlockLocations(ctx context.Context, blockIDs []proto.BlockID) []proto.BlockLocation {
	return m.blocks.GetLocations(blockIDs)
}

func (m *Master) ReportBlockLocation(ctx context.Context, workerID proto.WorkerID, locs []proto.BlockLocation) {
	for _, loc := range locs {
		loc.WorkerID = workerID
		m.blocks.Add(loc)
	}
}

// ─── worker management ───────────────────────────────────────

func (m *Master) RegisterWorker(ctx context.Context, address string, capacity, used uint64) (proto.WorkerID, error) {
	return m.cluster.Register(ctx, address, capacity, used)
}

func (m *Master) WorkerHeartbeat(ctx context.Context, id proto.WorkerID, capacity, used uint64) error {
	return m.cluster.Heartbeat(ctx, id, capacity, used)
}

// ─── mounts ──────────────────────────────────────────────────

func (m *Master) Mount(ctx context.Context, path, ufsURI string) error {
	return m.mounts.Mount(ctx, path, ufsURI)
}

func (m *Master) Unmount(ctx context.Context, path string) error {
	return m.mounts.Unmount(ctx, path)
}

func (m *Master) GetMountTable(ctx context.Context) []proto.MountPoint {
	return m.mounts.MountPoints()
}
