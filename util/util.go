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

package util

import (
	"errors"
	"net"
	"os"

	"github.com/cubefs/cubefs/blobstore/util/bytespool"
	"github.com/google/uuid"
)

// GenTmpPath creates a fresh temporary directory.
func GenTmpPath() (string, error) {
	id := uuid.NewString()
	path := os.TempDir() + "/" + id
	if err := os.RemoveAll(path); err != nil {
		return "", err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// GetLocalIP returns the first non-loopback IPv4 address of this host.
func GetLocalIP() (string, error) {
	addresses, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, address := range addresses {
		if ipnet, ok := address.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String(), nil
			}
		}
	}
	return "", errors.New("can not find the local ip address")
}

// GetBuffer draws a transfer buffer from the shared pool.
func GetBuffer(size int) []byte {
	return bytespool.Alloc(size)
}

// PutBuffer returns a buffer obtained from GetBuffer.
func PutBuffer(b []byte) {
	bytespool.Free(b)
}
