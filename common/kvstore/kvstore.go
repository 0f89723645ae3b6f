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
)

const (
	defaultCF = "default"

	RocksdbLsmKVType = LsmKVType("rocksdb")
)

var (
	ErrNotFound       = errors.New("key not found")
	ErrKVTypeNotFound = errors.New("kv type not found")
)

type (
	CF        string
	LsmKVType string

	Store interface {
		GetAllColumns() []CF
		CheckColumns(col CF) bool
		Get(ctx context.Context, col CF, key []byte, readOpt ReadOption) (value ValueGetter, err error)
		GetRaw(ctx context.Context, col CF, key []byte, readOpt ReadOption) (value []byte, err error)
		MultiGet(ctx context.Context, col CF, keys [][]byte, readOpt ReadOption) (values []ValueGetter, err error)
		SetRaw(ctx context.Context, col CF, key []byte, value []byte, writeOpt WriteOption) error
		Delete(ctx context.Context, col CF, key []byte, writeOpt WriteOption) error
		List(ctx context.Context, col CF, prefix []byte, marker []byte, readOpt ReadOption) ListReader
		Write(ctx context.Context, batch WriteBatch, writeOpt WriteOption) error
		NewReadOption() (readOption ReadOption)
		NewWriteOption() (writeOption WriteOption)
		NewWriteBatch() (writeBatch WriteBatch)
		FlushCF(ctx context.Context, col CF) error
		Stats(ctx context.Context) (Stats, error)
		Close()
	}
	ListReader interface {
		ReadNext() (key KeyGetter, val ValueGetter, err error)
		ReadNextCopy() (key []byte, value []byte, err error)
		SeekTo(key []byte)
		Close()
	}
	KeyGetter interface {
		Key() []byte
		Close()
	}
	ValueGetter interface {
		Value() []byte
		Size() int
		Close()
	}
	ReadOption interface {
		SetTotalOrderSeek(value bool)
		Close()
	}
	WriteOption interface {
		SetSync(value bool)
		DisableWAL(value bool)
		Close()
	}
	WriteBatch interface {
		Put(col CF, key, value []byte)
		Delete(col CF, key []byte)
		DeleteRange(col CF, startKey, endKey []byte)
		Count() int
		Close()
	}

	Stats struct {
		Used uint64
	}

	// ColumnOption tunes one column family's table layout for its dominant
	// access pattern: a bloom filter for point-lookup tables, a fixed prefix
	// extractor for prefix-scan tables.
	ColumnOption struct {
		BloomFilterBitsPerKey int `json:"bloom_filter_bits_per_key"`
		FixedPrefixLen        int `json:"fixed_prefix_len"`
	}

	Option struct {
		Sync            bool                `json:"sync"`
		DisableWal      bool                `json:"disable_wal"`
		ColumnFamily    []CF                `json:"column_family"`
		ColumnOptions   map[CF]ColumnOption `json:"column_options"`
		CreateIfMissing bool                `json:"create_if_missing"`
		BlockSize       int                 `json:"block_size"`
		BlockCache      uint64              `json:"block_cache"`
		MaxOpenFiles    int                 `json:"max_open_files"`
		WriteBufferSize int                 `json:"write_buffer_size"`
		KeepLogFileNum  int                 `json:"keep_log_file_num"`
		MaxLogFileSize  int                 `json:"max_log_file_size"`
	}
)

func NewKVStore(ctx context.Context, path string, lsmType LsmKVType, option *Option) (Store, error) {
	switch lsmType {
	case RocksdbLsmKVType:
		return newRocksdb(ctx, path, option)
	default:
		return nil, ErrKVTypeNotFound
	}
}

func (cf CF) String() string {
	return string(cf)
}
