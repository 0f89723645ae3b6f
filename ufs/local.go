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

package ufs

import (
	"context"
	"os"
	"path/filepath"

	apierrors "github.com/anycache/anycache/errors"
)

// localUFS serves a directory of the local file system. Relative paths
// resolve under root.
type localUFS struct {
	root string
}

func NewLocal(root string) UnderFileSystem {
	return &localUFS{root: root}
}

func (l *localUFS) Scheme() string {
	return "file"
}

func (l *localUFS) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.root, path)
}

func (l *localUFS) Open(ctx context.Context, path string) (File, error) {
	f, err := os.Open(l.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apierrors.NotFound("file not found: " + path)
		}
		return nil, apierrors.IOError("open: " + err.Error())
	}
	return f, nil
}

func (l *localUFS) Create(ctx context.Context, path string, opts CreateOptions) (File, error) {
	full := l.abs(path)
	if opts.Recursive {
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return nil, apierrors.IOError("mkdir parents: " + err.Error())
		}
	}
	mode := opts.Mode
	if mode == 0 {
		mode = 0o644
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_RDWR|os.O_TRUNC, os.FileMode(mode))
	if err != nil {
		return nil, apierrors.IOError("create: " + err.Error())
	}
	return f, nil
}

func (l *localUFS) Delete(ctx context.Context, path string, recursive bool) error {
	full := l.abs(path)
	var err error
	if recursive {
		err = os.RemoveAll(full)
	} else {
		err = os.Remove(full)
	}
	if err != nil {
		if os.IsNotExist(err) {
			return apierrors.NotFound("path not found: " + path)
		}
		return apierrors.IOError("delete: " + err.Error())
	}
	return nil
}

func (l *localUFS) Rename(ctx context.Context, src, dst string) error {
	if err := os.Rename(l.abs(src), l.abs(dst)); err != nil {
		if os.IsNotExist(err) {
			return apierrors.NotFound("path not found: " + src)
		}
		return apierrors.IOError("rename: " + err.Error())
	}
	return nil
}

func (l *localUFS) ListDir(ctx context.Context, path string) ([]FileInfo, error) {
	entries, err := os.ReadDir(l.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apierrors.NotFound("directory not found: " + path)
		}
		return nil, apierrors.IOError("list: " + err.Error())
	}
	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, FileInfo{
			Name:               e.Name(),
			Path:               filepath.Join(path, e.Name()),
			IsDirectory:        e.IsDir(),
			Size:               uint64(info.Size()),
			Mode:               uint32(info.Mode().Perm()),
			ModificationTimeMs: info.ModTime().UnixMilli(),
		})
	}
	return out, nil
}

func (l *localUFS) GetFileInfo(ctx context.Context, path string) (FileInfo, error) {
	info, err := os.Stat(l.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return FileInfo{}, apierrors.NotFound("path not found: " + path)
		}
		return FileInfo{}, apierrors.IOError("stat: " + err.Error())
	}
	return FileInfo{
		Name:               info.Name(),
		Path:               path,
		IsDirectory:        info.IsDir(),
		Size:               uint64(info.Size()),
		Mode:               uint32(info.Mode().Perm()),
		ModificationTimeMs: info.ModTime().UnixMilli(),
	}, nil
}

func (l *localUFS) Mkdir(ctx context.Context, path string, opts MkdirOptions) error {
	mode := opts.Mode
	if mode == 0 {
		mode = 0o755
	}
	full := l.abs(path)
	var err error
	if opts.Recursive {
		err = os.MkdirAll(full, os.FileMode(mode))
	} else {
		err = os.Mkdir(full, os.FileMode(mode))
	}
	if err != nil {
		if os.IsExist(err) {
			return apierrors.AlreadyExists("directory exists: " + path)
		}
		return apierrors.IOError("mkdir: " + err.Error())
	}
	return nil
}

func (l *localUFS) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(l.abs(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, apierrors.IOError("stat: " + err.Error())
}
