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
	"encoding/binary"
	"sync"

	"github.com/anycache/anycache/proto"
)

// Inode is one namespace entry. Directories additionally carry the
// children map; it is reconstructed from the edges column on recovery and
// never serialized into the inode record.
type Inode struct {
	ID                 proto.InodeID
	ParentID           proto.InodeID
	Name               string
	IsDirectory        bool
	Size               uint64
	Mode               uint32
	Owner              string
	Group              string
	BlockSize          uint64
	CreationTimeMs     int64
	ModificationTimeMs int64
	IsComplete         bool

	Children map[string]proto.InodeID
}

func (i *Inode) Clone() *Inode {
	c := *i
	if i.Children != nil {
		c.Children = make(map[string]proto.InodeID, len(i.Children))
		for name, id := range i.Children {
			c.Children[name] = id
		}
	}
	return &c
}

func (i *Inode) FileInfo() proto.FileInfo {
	return proto.FileInfo{
		ID:                 i.ID,
		ParentID:           i.ParentID,
		Name:               i.Name,
		IsDirectory:        i.IsDirectory,
		Size:               i.Size,
		Mode:               i.Mode,
		Owner:              i.Owner,
		Group:              i.Group,
		BlockSize:          i.BlockSize,
		CreationTimeMs:     i.CreationTimeMs,
		ModificationTimeMs: i.ModificationTimeMs,
		IsComplete:         i.IsComplete,
	}
}

// On-disk record: fixed 48-byte header followed by the raw name bytes.
// parent(8) size(8) block_size(8) ctime(8) mtime(8) mode(4) flags(1)
// owner_dict_id(1) group_dict_id(1) reserved(1). The inode id is the key,
// the children map lives in the edges column.
const inodeHeaderSize = 48

const (
	inodeFlagDirectory = uint8(0x01)
	inodeFlagComplete  = uint8(0x02)
)

// Sentinel keys in the inodes column, sorted after every valid inode id.
const (
	ownerDictKey = uint64(0xFFFFFFFFFFFFFFFD)
	groupDictKey = uint64(0xFFFFFFFFFFFFFFFE)
	cursorKey    = uint64(0xFFFFFFFFFFFFFFFF)
)

func encodeUint64(v uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, v)
	return key
}

func decodeUint64(raw []byte) uint64 {
	return binary.BigEndian.Uint64(raw)
}

func encodeInodeKey(id proto.InodeID) []byte {
	return encodeUint64(id)
}

func decodeInodeKey(raw []byte) proto.InodeID {
	return decodeUint64(raw)
}

// Edge key: parent id (8 bytes big-endian) followed by the child name, so
// one directory's children cluster under an 8-byte prefix.
func encodeEdgeKey(parentID proto.InodeID, childName string) []byte {
	key := make([]byte, 8+len(childName))
	binary.BigEndian.PutUint64(key, parentID)
	copy(key[8:], childName)
	return key
}

func decodeEdgeKey(raw []byte) (parentID proto.InodeID, childName string) {
	if len(raw) < 8 {
		return proto.InvalidInodeID, ""
	}
	return decodeUint64(raw[:8]), string(raw[8:])
}

func encodeEdgePrefix(parentID proto.InodeID) []byte {
	return encodeUint64(parentID)
}

func marshalInode(inode *Inode, dict *OwnerGroupDict) []byte {
	buf := make([]byte, inodeHeaderSize+len(inode.Name))
	binary.BigEndian.PutUint64(buf[0:], inode.ParentID)
	binary.BigEndian.PutUint64(buf[8:], inode.Size)
	binary.BigEndian.PutUint64(buf[16:], inode.BlockSize)
	binary.BigEndian.PutUint64(buf[24:], uint64(inode.CreationTimeMs))
	binary.BigEndian.PutUint64(buf[32:], uint64(inode.ModificationTimeMs))
	binary.BigEndian.PutUint32(buf[40:], inode.Mode)
	var flags uint8
	if inode.IsDirectory {
		flags |= inodeFlagDirectory
	}
	if inode.IsComplete {
		flags |= inodeFlagComplete
	}
	buf[44] = flags
	buf[45] = dict.GetOrAddOwnerID(inode.Owner)
	buf[46] = dict.GetOrAddGroupID(inode.Group)
	buf[47] = 0
	copy(buf[inodeHeaderSize:], inode.Name)
	return buf
}

// unmarshalInode tolerates short records: a truncated value yields a
// default inode carrying its id, the default block size and the complete
// flag, and recovery proceeds.
func unmarshalInode(id proto.InodeID, raw []byte, dict *OwnerGroupDict) *Inode {
	inode := &Inode{ID: id, BlockSize: proto.DefaultBlockSize, IsComplete: true}
	if len(raw) < inodeHeaderSize {
		return inode
	}
	inode.ParentID = binary.BigEndian.Uint64(raw[0:])
	inode.Size = binary.BigEndian.Uint64(raw[8:])
	inode.BlockSize = binary.BigEndian.Uint64(raw[16:])
	inode.CreationTimeMs = int64(binary.BigEndian.Uint64(raw[24:]))
	inode.ModificationTimeMs = int64(binary.BigEndian.Uint64(raw[32:]))
	inode.Mode = binary.BigEndian.Uint32(raw[40:])
	flags := raw[44]
	inode.IsDirectory = flags&inodeFlagDirectory != 0
	inode.IsComplete = flags&inodeFlagComplete != 0
	inode.Owner = dict.Owner(raw[45])
	inode.Group = dict.Group(raw[46])
	inode.Name = string(raw[inodeHeaderSize:])
	return inode
}

func inodeRecordIsDirectory(raw []byte) bool {
	return len(raw) >= inodeHeaderSize && raw[44]&inodeFlagDirectory != 0
}

// OwnerGroupDict maps owner/group strings onto 1-byte ids so inode records
// never repeat the strings. Id 0 is the empty string; insertion order
// assigns 1..255. Persisted as [count:1][len:1|bytes]* under sentinel keys,
// in the same atomic batch as the record that first introduces a new id.
type OwnerGroupDict struct {
	mu       sync.RWMutex
	owners   []string
	groups   []string
	ownerIDs map[string]uint8
	groupIDs map[string]uint8
	dirty    bool
}

func NewOwnerGroupDict() *OwnerGroupDict {
	return &OwnerGroupDict{
		ownerIDs: make(map[string]uint8),
		groupIDs: make(map[string]uint8),
	}
}

func (d *OwnerGroupDict) GetOrAddOwnerID(owner string) uint8 {
	return d.getOrAdd(owner, &d.owners, d.ownerIDs)
}

func (d *OwnerGroupDict) GetOrAddGroupID(group string) uint8 {
	return d.getOrAdd(group, &d.groups, d.groupIDs)
}

func (d *OwnerGroupDict) getOrAdd(s string, list *[]string, ids map[string]uint8) uint8 {
	if s == "" {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := ids[s]; ok {
		return id
	}
	if len(*list) >= 255 {
		// dictionary full, fall back to the empty id
		return 0
	}
	*list = append(*list, s)
	id := uint8(len(*list))
	ids[s] = id
	d.dirty = true
	return id
}

func (d *OwnerGroupDict) Owner(id uint8) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return lookup(id, d.owners)
}

func (d *OwnerGroupDict) Group(id uint8) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return lookup(id, d.groups)
}

func lookup(id uint8, list []string) string {
	if id == 0 || int(id) > len(list) {
		return ""
	}
	return list[id-1]
}

func (d *OwnerGroupDict) OwnerCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.owners)
}

func (d *OwnerGroupDict) GroupCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.groups)
}

func (d *OwnerGroupDict) Dirty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dirty
}

func (d *OwnerGroupDict) ClearDirty() {
	d.mu.Lock()
	d.dirty = false
	d.mu.Unlock()
}

func (d *OwnerGroupDict) SerializeOwners() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return serializeList(d.owners)
}

func (d *OwnerGroupDict) SerializeGroups() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return serializeList(d.groups)
}

func (d *OwnerGroupDict) LoadOwners(raw []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.owners = deserializeList(raw)
	d.ownerIDs = rebuildIndex(d.owners)
}

func (d *OwnerGroupDict) LoadGroups(raw []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.groups = deserializeList(raw)
	d.groupIDs = rebuildIndex(d.groups)
}

func serializeList(list []string) []byte {
	buf := make([]byte, 1, 1+len(list)*8)
	buf[0] = uint8(len(list))
	for _, s := range list {
		n := len(s)
		if n > 255 {
			n = 255
		}
		buf = append(buf, uint8(n))
		buf = append(buf, s[:n]...)
	}
	return buf
}

func deserializeList(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	count := int(raw[0])
	list := make([]string, 0, count)
	pos := 1
	for i := 0; i < count && pos < len(raw); i++ {
		n := int(raw[pos])
		pos++
		if n > len(raw)-pos {
			n = len(raw) - pos
		}
		list = append(list, string(raw[pos:pos+n]))
		pos += n
	}
	return list
}

func rebuildIndex(list []string) map[string]uint8 {
	ids := make(map[string]uint8, len(list))
	for i, s := range list {
		ids[s] = uint8(i + 1)
	}
	return ids
}
