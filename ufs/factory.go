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
	"strings"

	apierrors "github.com/anycache/anycache/errors"
)

// Factory builds UnderFileSystem instances from URIs:
//
//	file:///mnt/storage      local directory
//	/mnt/storage             local directory (bare path)
//	s3://bucket/prefix       S3-compatible object store
type Factory struct {
	S3 S3Config `json:"s3"`
}

func (f *Factory) Create(ctx context.Context, uri string) (UnderFileSystem, error) {
	switch {
	case strings.HasPrefix(uri, "file://"):
		return NewLocal(strings.TrimPrefix(uri, "file://")), nil
	case strings.HasPrefix(uri, "s3://"):
		rest := strings.TrimPrefix(uri, "s3://")
		bucket := rest
		prefix := ""
		if i := strings.Index(rest, "/"); i >= 0 {
			bucket = rest[:i]
			prefix = rest[i+1:]
		}
		if bucket == "" {
			return nil, apierrors.InvalidArgument("s3 uri missing bucket: " + uri)
		}
		return NewS3(ctx, bucket, prefix, f.S3)
	case strings.Contains(uri, "://"):
		return nil, apierrors.NotImplemented("unsupported ufs scheme: " + uri)
	default:
		// bare path means local
		return NewLocal(uri), nil
	}
}

// SplitURI splits a full object URI into its store base and the relative
// path inside it: "file:///mnt/data/f" -> ("file:///mnt/data", "f").
func SplitURI(uri string) (base, rel string) {
	pos := strings.Index(uri, "://")
	if pos < 0 {
		slash := strings.LastIndex(uri, "/")
		if slash <= 0 {
			return "/", strings.TrimPrefix(uri, "/")
		}
		return uri[:slash], uri[slash+1:]
	}
	scheme := uri[:pos+3]
	rest := uri[pos+3:]
	slash := strings.LastIndex(rest, "/")
	if slash < 0 {
		return uri, ""
	}
	return scheme + rest[:slash], rest[slash+1:]
}
