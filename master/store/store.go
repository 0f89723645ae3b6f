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

package store

import (
	"context"

	"github.com/anycache/anycache/common/kvstore"
)

// Column families of the master meta store. inodes is point-lookup
// dominant; edges is prefix-scanned by an 8-byte parent id.
const (
	InodeCF = kvstore.CF("inodes")
	EdgeCF  = kvstore.CF("edges")
)

type Config struct {
	Path     string         `json:"path"`
	KVOption kvstore.Option `json:"kv_option"`
}

// Store owns the master's database directories: the meta kv store holding
// the inodes/edges column families, and a small separate store for the
// mount table.
type Store struct {
	kvStore    kvstore.Store
	mountStore kvstore.Store

	cfg *Config
}

func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	cfg.KVOption.CreateIfMissing = true
	cfg.KVOption.ColumnFamily = []kvstore.CF{InodeCF, EdgeCF}
	if cfg.KVOption.ColumnOptions == nil {
		cfg.KVOption.ColumnOptions = map[kvstore.CF]kvstore.ColumnOption{
			InodeCF: {BloomFilterBitsPerKey: 10},
			EdgeCF:  {FixedPrefixLen: 8},
		}
	}

	kvStore, err := kvstore.NewKVStore(ctx, cfg.Path+"/meta", kvstore.RocksdbLsmKVType, &cfg.KVOption)
	if err != nil {
		return nil, err
	}

	mountOpt := kvstore.Option{CreateIfMissing: true}
	mountStore, err := kvstore.NewKVStore(ctx, cfg.Path+"/mount", kvstore.RocksdbLsmKVType, &mountOpt)
	if err != nil {
		kvStore.Close()
		return nil, err
	}

	return &Store{
		kvStore:    kvStore,
		mountStore: mountStore,
		cfg:        cfg,
	}, nil
}

func (s *Store) KVStore() kvstore.Store {
	return s.kvStore
}

func (s *Store) MountStore() kvstore.Store {
	return s.mountStore
}

func (s *Store) Close() {
	s.kvStore.Close()
	s.mountStore.Close()
}
