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
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	apierrors "github.com/anycache/anycache/errors"
	"github.com/anycache/anycache/proto"
	"github.com/anycache/anycache/util"
)

func newTestTier(t *testing.T, tierType proto.TierType, capacity uint64) (*Tier, func()) {
	path := ""
	if tierType != proto.TierMemory {
		var err error
		path, err = util.GenTmpPath()
		require.NoError(t, err)
	}
	tier, err := NewTier(tierType, path, capacity)
	require.NoError(t, err)
	return tier, func() {
		if path != "" {
			os.RemoveAll(path)
		}
	}
}

func testTierIO(t *testing.T, tier *Tier) {
	require.NoError(t, tier.Allocate(1, 1024))
	require.True(t, tier.Has(1))
	require.Equal(t, uint64(1024), tier.UsedBytes())

	err := tier.Allocate(1, 1024)
	require.True(t, apierrors.IsAlreadyExists(err))

	payload := []byte("hello block")
	require.NoError(t, tier.Write(1, payload, 64))

	buf := make([]byte, len(payload))
	n, err := tier.Read(1, buf, 64)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Equal(t, payload, buf)

	// writes past capacity are rejected, short reads clamp
	require.Error(t, tier.Write(1, make([]byte, 2048), 0))
	big := make([]byte, 2048)
	n, err = tier.Read(1, big, 0)
	require.NoError(t, err)
	require.Equal(t, 1024, n)

	data, err := tier.Export(1)
	require.NoError(t, err)
	require.Len(t, data, 1024)
	require.Equal(t, payload, data[64:64+len(payload)])

	require.NoError(t, tier.Remove(1))
	require.False(t, tier.Has(1))
	require.Equal(t, uint64(0), tier.UsedBytes())
	_, err = tier.Read(1, buf, 0)
	require.True(t, apierrors.IsNotFound(err))
}

func TestMemoryTier(t *testing.T) {
	tier, cleanup := newTestTier(t, proto.TierMemory, 1<<20)
	defer cleanup()
	testTierIO(t, tier)
}

func TestDiskTier(t *testing.T) {
	tier, cleanup := newTestTier(t, proto.TierSSD, 1<<20)
	defer cleanup()
	testTierIO(t, tier)
}

func TestTierCapacityBound(t *testing.T) {
	tier, cleanup := newTestTier(t, proto.TierMemory, 1000)
	defer cleanup()

	require.NoError(t, tier.Allocate(1, 600))
	err := tier.Allocate(2, 600)
	require.Equal(t, proto.CodeResourceExhausted, apierrors.CodeOf(err))
	require.NoError(t, tier.Allocate(2, 400))
	require.Equal(t, uint64(0), tier.AvailableBytes())
}

func TestTierImportExport(t *testing.T) {
	src, cleanupSrc := newTestTier(t, proto.TierSSD, 1<<20)
	defer cleanupSrc()
	dst, cleanupDst := newTestTier(t, proto.TierMemory, 1<<20)
	defer cleanupDst()

	require.NoError(t, src.Allocate(9, 128))
	require.NoError(t, src.Write(9, []byte("payload"), 0))

	data, err := src.Export(9)
	require.NoError(t, err)
	require.NoError(t, dst.Import(9, data))

	buf := make([]byte, 7)
	_, err = dst.Read(9, buf, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), buf)
}

func TestDiskTierFilesPreSized(t *testing.T) {
	path, err := util.GenTmpPath()
	require.NoError(t, err)
	defer os.RemoveAll(path)

	tier, err := NewTier(proto.TierHDD, path, 1<<20)
	require.NoError(t, err)
	require.NoError(t, tier.Allocate(77, 4096))

	info, err := os.Stat(tier.blockFilePath(77))
	require.NoError(t, err)
	require.Equal(t, int64(4096), info.Size())
}
