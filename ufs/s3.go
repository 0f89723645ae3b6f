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
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	apierrors "github.com/anycache/anycache/errors"
)

// S3Config carries the S3-compatible endpoint settings.
type S3Config struct {
	Endpoint     string `json:"endpoint"`
	Region       string `json:"region"`
	AccessKey    string `json:"access_key"`
	SecretKey    string `json:"secret_key"`
	UsePathStyle bool   `json:"use_path_style"`
}

// s3UFS maps UFS paths onto object keys under bucket/prefix.
type s3UFS struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3(ctx context.Context, bucket, prefix string, cfg S3Config) (UnderFileSystem, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{URL: cfg.Endpoint, HostnameImmutable: true}, nil
			})
		loadOpts = append(loadOpts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, apierrors.Unavailable("load aws config: " + err.Error())
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &s3UFS{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (u *s3UFS) Scheme() string {
	return "s3"
}

func (u *s3UFS) key(path string) string {
	path = strings.Trim(path, "/")
	if u.prefix == "" {
		return path
	}
	if path == "" {
		return u.prefix
	}
	return u.prefix + "/" + path
}

func (u *s3UFS) Open(ctx context.Context, path string) (File, error) {
	key := u.key(path)
	if _, err := u.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return nil, apierrors.NotFound("object not found: " + path)
	}
	return &s3File{ufs: u, ctx: ctx, key: key}, nil
}

func (u *s3UFS) Create(ctx context.Context, path string, opts CreateOptions) (File, error) {
	return &s3File{ufs: u, ctx: ctx, key: u.key(path), created: true}, nil
}

func (u *s3UFS) Delete(ctx context.Context, path string, recursive bool) error {
	key := u.key(path)
	if recursive {
		// delete every object under the prefix
		var token *string
		for {
			out, err := u.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
				Bucket:            aws.String(u.bucket),
				Prefix:            aws.String(key + "/"),
				ContinuationToken: token,
			})
			if err != nil {
				return apierrors.IOError("list objects: " + err.Error())
			}
			for _, obj := range out.Contents {
				if _, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
					Bucket: aws.String(u.bucket),
					Key:    obj.Key,
				}); err != nil {
					return apierrors.IOError("delete object: " + err.Error())
				}
			}
			if out.IsTruncated {
				token = out.NextContinuationToken
				continue
			}
			break
		}
	}
	if _, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return apierrors.IOError("delete object: " + err.Error())
	}
	return nil
}

// Rename is not a single-copy S3 primitive; the namespace rename stays a
// master-side metadata operation.
func (u *s3UFS) Rename(ctx context.Context, src, dst string) error {
	return apierrors.NotImplemented("rename on s3 store")
}

func (u *s3UFS) ListDir(ctx context.Context, path string) ([]FileInfo, error) {
	prefix := u.key(path)
	if prefix != "" {
		prefix += "/"
	}
	var out []FileInfo
	var token *string
	for {
		resp, err := u.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(u.bucket),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, apierrors.IOError("list objects: " + err.Error())
		}
		for _, cp := range resp.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			out = append(out, FileInfo{Name: name, Path: path + "/" + name, IsDirectory: true})
		}
		for _, obj := range resp.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" {
				continue
			}
			fi := FileInfo{
				Name: name,
				Path: path + "/" + name,
				Size: uint64(obj.Size),
			}
			if obj.LastModified != nil {
				fi.ModificationTimeMs = obj.LastModified.UnixMilli()
			}
			out = append(out, fi)
		}
		if resp.IsTruncated {
			token = resp.NextContinuationToken
			continue
		}
		break
	}
	return out, nil
}

func (u *s3UFS) GetFileInfo(ctx context.Context, path string) (FileInfo, error) {
	key := u.key(path)
	head, err := u.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		// an existing "directory" shows up as a common prefix
		resp, lerr := u.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(u.bucket),
			Prefix:  aws.String(key + "/"),
			MaxKeys: 1,
		})
		if lerr == nil && len(resp.Contents) > 0 {
			return FileInfo{Name: nameOf(path), Path: path, IsDirectory: true}, nil
		}
		return FileInfo{}, apierrors.NotFound("object not found: " + path)
	}
	fi := FileInfo{
		Name: nameOf(path),
		Path: path,
		Size: uint64(head.ContentLength),
	}
	if head.LastModified != nil {
		fi.ModificationTimeMs = head.LastModified.UnixMilli()
	}
	return fi, nil
}

// Mkdir is a no-op: S3 has no directories, prefixes materialize with the
// first object.
func (u *s3UFS) Mkdir(ctx context.Context, path string, opts MkdirOptions) error {
	return nil
}

func (u *s3UFS) Exists(ctx context.Context, path string) (bool, error) {
	if _, err := u.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(u.key(path)),
	}); err != nil {
		var nf *s3types.NotFound
		if stderrors.As(err, &nf) {
			return false, nil
		}
		return false, nil
	}
	return true, nil
}

func nameOf(path string) string {
	if i := strings.LastIndex(strings.TrimSuffix(path, "/"), "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// s3File reads with ranged GetObject calls; a created file buffers writes
// and uploads the object on Close.
type s3File struct {
	ufs     *s3UFS
	ctx     context.Context
	key     string
	created bool

	mu  sync.Mutex
	buf []byte
}

func (f *s3File) ReadAt(p []byte, off int64) (int, error) {
	rng := fmt.Sprintf("bytes=%d-%d", off, off+int64(len(p))-1)
	out, err := f.ufs.client.GetObject(f.ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.ufs.bucket),
		Key:    aws.String(f.key),
		Range:  aws.String(rng),
	})
	if err != nil {
		return 0, apierrors.IOError("get object: " + err.Error())
	}
	defer out.Body.Close()
	n, err := io.ReadFull(out.Body, p)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return n, io.EOF
	}
	if err != nil {
		return n, apierrors.IOError("read object body: " + err.Error())
	}
	return n, nil
}

func (f *s3File) WriteAt(p []byte, off int64) (int, error) {
	if !f.created {
		return 0, apierrors.InvalidArgument("object not opened for writing")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	end := off + int64(len(p))
	if int64(len(f.buf)) < end {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}
	copy(f.buf[off:end], p)
	return len(p), nil
}

func (f *s3File) Close() error {
	if !f.created {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.ufs.client.PutObject(f.ctx, &s3.PutObjectInput{
		Bucket: aws.String(f.ufs.bucket),
		Key:    aws.String(f.key),
		Body:   bytes.NewReader(f.buf),
	})
	if err != nil {
		return apierrors.IOError("put object: " + err.Error())
	}
	return nil
}
