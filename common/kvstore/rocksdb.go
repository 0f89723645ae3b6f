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
	"fmt"
	"os"
	"sync"

	rdb "github.com/tecbot/gorocksdb"
)

type (
	rocksdb struct {
		path      string
		db        *rdb.DB
		opt       *rdb.Options
		cfOpts    []*rdb.Options
		readOpt   *rdb.ReadOptions
		writeOpt  *rdb.WriteOptions
		flushOpt  *rdb.FlushOptions
		cfHandles map[CF]*rdb.ColumnFamilyHandle
		lock      sync.RWMutex
	}
	readOption struct {
		opt *rdb.ReadOptions
	}
	writeOption struct {
		opt *rdb.WriteOptions
	}
	listReader struct {
		iterator *rdb.Iterator
		prefix   []byte
		isFirst  bool
	}
	keyGetter struct {
		key *rdb.Slice
	}
	valueGetter struct {
		value *rdb.Slice
	}
	writeBatch struct {
		s     *rocksdb
		batch *rdb.WriteBatch
	}
)

func newRocksdb(ctx context.Context, path string, option *Option) (Store, error) {
	if path == "" {
		return nil, errors.New("path is empty")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}

	dbOpt := genRocksdbOpts(option)

	cfNum := len(option.ColumnFamily) + 1
	cols := make([]CF, 0, cfNum)
	cols = append(cols, defaultCF)
	cols = append(cols, option.ColumnFamily...)

	cfNames := make([]string, 0, cfNum)
	cfOpts := make([]*rdb.Options, 0, cfNum)
	for i := 0; i < cfNum; i++ {
		cfNames = append(cfNames, cols[i].String())
		cfOpts = append(cfOpts, genColumnOpts(option, cols[i]))
	}

	db, cfhs, err := rdb.OpenDbColumnFamilies(dbOpt, path, cfNames, cfOpts)
	if err != nil {
		return nil, err
	}

	cfhMap := make(map[CF]*rdb.ColumnFamilyHandle)
	for i, h := range cfhs {
		cfhMap[cols[i]] = h
	}

	wo := rdb.NewDefaultWriteOptions()
	if option.Sync {
		wo.SetSync(option.Sync)
	}
	if option.DisableWal {
		wo.DisableWAL(option.DisableWal)
	}
	ro := rdb.NewDefaultReadOptions()

	ins := &rocksdb{
		db:        db,
		path:      path,
		opt:       dbOpt,
		cfOpts:    cfOpts,
		readOpt:   ro,
		writeOpt:  wo,
		flushOpt:  rdb.NewDefaultFlushOptions(),
		cfHandles: cfhMap,
	}
	return ins, nil
}

func (ro *readOption) SetTotalOrderSeek(value bool) {
	ro.opt.SetTotalOrderSeek(value)
}

func (ro *readOption) Close() {
	ro.opt.Destroy()
}

func (wo *writeOption) SetSync(value bool) {
	wo.opt.SetSync(value)
}

func (wo *writeOption) DisableWAL(value bool) {
	wo.opt.DisableWAL(value)
}

func (wo *writeOption) Close() {
	wo.opt.Destroy()
}

func (kg keyGetter) Key() []byte {
	return kg.key.Data()
}

func (kg keyGetter) Close() {
	kg.key.Free()
}

func (vg *valueGetter) Value() []byte {
	return vg.value.Data()
}

func (vg *valueGetter) Size() int {
	return vg.value.Size()
}

func (vg *valueGetter) Close() {
	vg.value.Free()
}

func (lr *listReader) ReadNext() (key KeyGetter, val ValueGetter, err error) {
	if !lr.isFirst {
		lr.iterator.Next()
	}
	lr.isFirst = false
	if err = lr.iterator.Err(); err != nil {
		return nil, nil, err
	}
	if !lr.iterator.Valid() {
		return nil, nil, nil
	}
	if lr.prefix != nil && !lr.iterator.ValidForPrefix(lr.prefix) {
		return nil, nil, nil
	}
	return keyGetter{key: lr.iterator.Key()}, &valueGetter{value: lr.iterator.Value()}, nil
}

func (lr *listReader) ReadNextCopy() (key []byte, value []byte, err error) {
	kg, vg, err := lr.ReadNext()
	if err != nil {
		return nil, nil, err
	}
	if kg != nil && vg != nil {
		key = make([]byte, len(kg.Key()))
		value = make([]byte, vg.Size())
		copy(key, kg.Key())
		copy(value, vg.Value())
		kg.Close()
		vg.Close()
	}
	return
}

func (lr *listReader) SeekTo(key []byte) {
	lr.isFirst = true
	lr.prefix = nil
	lr.iterator.Seek(key)
}

func (lr *listReader) Close() {
	lr.iterator.Close()
}

func (w *writeBatch) Put(col CF, key, value []byte) {
	cf := w.s.getColumnFamily(col)
	w.batch.PutCF(cf, key, value)
}

func (w *writeBatch) Delete(col CF, key []byte) {
	cf := w.s.getColumnFamily(col)
	w.batch.DeleteCF(cf, key)
}

func (w *writeBatch) DeleteRange(col CF, startKey, endKey []byte) {
	cf := w.s.getColumnFamily(col)
	w.batch.DeleteRangeCF(cf, startKey, endKey)
}

func (w *writeBatch) Count() int {
	return w.batch.Count()
}

func (w *writeBatch) Close() {
	w.batch.Destroy()
}

func (s *rocksdb) NewReadOption() ReadOption {
	return &readOption{opt: rdb.NewDefaultReadOptions()}
}

func (s *rocksdb) NewWriteOption() WriteOption {
	return &writeOption{opt: rdb.NewDefaultWriteOptions()}
}

func (s *rocksdb) NewWriteBatch() WriteBatch {
	return &writeBatch{
		s:     s,
		batch: rdb.NewWriteBatch(),
	}
}

func (s *rocksdb) GetAllColumns() (ret []CF) {
	s.lock.RLock()
	for col := range s.cfHandles {
		ret = append(ret, col)
	}
	s.lock.RUnlock()
	return
}

func (s *rocksdb) CheckColumns(col CF) bool {
	if col == "" {
		return true
	}
	s.lock.RLock()
	defer s.lock.RUnlock()
	_, ok := s.cfHandles[col]
	return ok
}

func (s *rocksdb) Get(ctx context.Context, col CF, key []byte, readOpt ReadOption) (value ValueGetter, err error) {
	var v *rdb.Slice
	cf := s.getColumnFamily(col)
	ro := s.readOpt
	if readOpt != nil {
		ro = readOpt.(*readOption).opt
	}
	if v, err = s.db.GetCF(ro, cf, key); err != nil {
		return nil, err
	}
	if !v.Exists() {
		return nil, ErrNotFound
	}
	return &valueGetter{value: v}, nil
}

func (s *rocksdb) GetRaw(ctx context.Context, col CF, key []byte, readOpt ReadOption) (value []byte, err error) {
	var v *rdb.Slice
	cf := s.getColumnFamily(col)
	ro := s.readOpt
	if readOpt != nil {
		ro = readOpt.(*readOption).opt
	}
	if v, err = s.db.GetCF(ro, cf, key); err != nil {
		return nil, err
	}
	if !v.Exists() {
		return nil, ErrNotFound
	}
	value = make([]byte, v.Size())
	copy(value, v.Data())
	v.Free()
	return value, nil
}

// MultiGet batches point lookups in one column family; missing keys yield
// nil entries in the result slice.
func (s *rocksdb) MultiGet(ctx context.Context, col CF, keys [][]byte, readOpt ReadOption) (values []ValueGetter, err error) {
	cf := s.getColumnFamily(col)
	ro := s.readOpt
	if readOpt != nil {
		ro = readOpt.(*readOption).opt
	}
	slices, err := s.db.MultiGetCF(ro, cf, keys...)
	if err != nil {
		return nil, err
	}
	values = make([]ValueGetter, len(slices))
	for i := range slices {
		if slices[i].Data() == nil {
			values[i] = nil
			continue
		}
		values[i] = &valueGetter{value: slices[i]}
	}
	return
}

func (s *rocksdb) SetRaw(ctx context.Context, col CF, key []byte, value []byte, writeOpt WriteOption) error {
	wo := s.writeOpt
	cf := s.getColumnFamily(col)
	if writeOpt != nil {
		wo = writeOpt.(*writeOption).opt
	}
	return s.db.PutCF(wo, cf, key, value)
}

func (s *rocksdb) Delete(ctx context.Context, col CF, key []byte, writeOpt WriteOption) error {
	wo := s.writeOpt
	cf := s.getColumnFamily(col)
	if writeOpt != nil {
		wo = writeOpt.(*writeOption).opt
	}
	return s.db.DeleteCF(wo, cf, key)
}

func (s *rocksdb) List(ctx context.Context, col CF, prefix []byte, marker []byte, readOpt ReadOption) ListReader {
	cf := s.getColumnFamily(col)

	ro := s.readOpt
	if readOpt != nil {
		ro = readOpt.(*readOption).opt
	}
	t := s.db.NewIteratorCF(ro, cf)
	if len(marker) > 0 {
		t.Seek(marker)
	} else if prefix != nil {
		t.Seek(prefix)
	} else {
		t.SeekToFirst()
	}

	return &listReader{
		iterator: t,
		prefix:   prefix,
		isFirst:  true,
	}
}

func (s *rocksdb) Write(ctx context.Context, batch WriteBatch, writeOpt WriteOption) error {
	wo := s.writeOpt
	if writeOpt != nil {
		wo = writeOpt.(*writeOption).opt
	}
	return s.db.Write(wo, batch.(*writeBatch).batch)
}

func (s *rocksdb) FlushCF(ctx context.Context, col CF) error {
	cf := s.getColumnFamily(col)
	return s.db.FlushCF(s.flushOpt, cf)
}

func (s *rocksdb) Stats(ctx context.Context) (stats Stats, err error) {
	var size int64
	files := s.db.GetLiveFilesMetaData()
	for i := range files {
		size += files[i].Size
	}
	return Stats{Used: uint64(size)}, nil
}

func (s *rocksdb) Close() {
	s.writeOpt.Destroy()
	s.readOpt.Destroy()
	s.flushOpt.Destroy()
	for i := range s.cfHandles {
		s.cfHandles[i].Destroy()
	}
	s.db.Close()
	s.opt.Destroy()
	for _, o := range s.cfOpts {
		o.Destroy()
	}
}

func (s *rocksdb) getColumnFamily(col CF) *rdb.ColumnFamilyHandle {
	if col == "" {
		col = defaultCF
	}
	s.lock.RLock()
	cf, ok := s.cfHandles[col]
	if !ok {
		s.lock.RUnlock()
		panic(fmt.Sprintf("col:%s not exist", col.String()))
	}
	s.lock.RUnlock()
	return cf
}

func genRocksdbOpts(opt *Option) (opts *rdb.Options) {
	opts = rdb.NewDefaultOptions()
	opts.SetCreateIfMissing(opt.CreateIfMissing)
	opts.SetCreateIfMissingColumnFamilies(true)
	if opt.MaxOpenFiles > 0 {
		opts.SetMaxOpenFiles(opt.MaxOpenFiles)
	}
	if opt.WriteBufferSize > 0 {
		opts.SetWriteBufferSize(opt.WriteBufferSize)
	}
	if opt.KeepLogFileNum > 0 {
		opts.SetKeepLogFileNum(opt.KeepLogFileNum)
	}
	if opt.MaxLogFileSize > 0 {
		opts.SetMaxLogFileSize(opt.MaxLogFileSize)
	}
	opts.SetStatsDumpPeriodSec(0)
	opts.SetStatsPersistPeriodSec(0)
	return
}

func genColumnOpts(opt *Option, col CF) (opts *rdb.Options) {
	opts = genRocksdbOpts(opt)

	blockBaseOpt := rdb.NewDefaultBlockBasedTableOptions()
	if opt.BlockSize > 0 {
		blockBaseOpt.SetBlockSize(opt.BlockSize)
	}
	if opt.BlockCache > 0 {
		blockBaseOpt.SetBlockCache(rdb.NewLRUCache(opt.BlockCache))
	}

	if co, ok := opt.ColumnOptions[col]; ok {
		if co.BloomFilterBitsPerKey > 0 {
			blockBaseOpt.SetFilterPolicy(rdb.NewBloomFilter(co.BloomFilterBitsPerKey))
		}
		if co.FixedPrefixLen > 0 {
			opts.SetPrefixExtractor(rdb.NewFixedPrefixTransform(co.FixedPrefixLen))
		}
	}

	opts.SetBlockBasedTableFactory(blockBaseOpt)
	return
}
