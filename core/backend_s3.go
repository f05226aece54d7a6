/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config names the bucket and credentials for an S3Backend. Grounded on
// storage/persistence-s3.go's S3Factory, minus the per-schema-database
// framing (fold has one prefix per job directory, not per database).
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Endpoint        string // for S3-compatible stores (MinIO etc.)
	Bucket          string
	Prefix          string
	ForcePathStyle  bool
}

// S3Backend stores job-directory files as objects under Prefix. S3 has no
// atomic rename, so LandingZone's drain is emulated as copy-then-delete;
// this is safe because the copy targets a fresh, never-before-read key
// (spec §4.2 only requires that a reader of the drained stream sees
// exactly what was appended before the drain, not that the rename itself
// be a single filesystem syscall).
type S3Backend struct {
	cfg S3Config

	mu     sync.Mutex
	client *s3.Client
	opened bool
}

func NewS3Backend(cfg S3Config) *S3Backend {
	return &S3Backend{cfg: cfg}
}

func (b *S3Backend) ensureOpen() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.opened {
		return nil
	}
	ctx := context.Background()
	var opts []func(*config.LoadOptions) error
	if b.cfg.Region != "" {
		opts = append(opts, config.WithRegion(b.cfg.Region))
	}
	if b.cfg.AccessKeyID != "" && b.cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(b.cfg.AccessKeyID, b.cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return ioErr("load aws config", err)
	}
	var s3Opts []func(*s3.Options)
	if b.cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(b.cfg.Endpoint) })
	}
	if b.cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}
	b.client = s3.NewFromConfig(awsCfg, s3Opts...)
	b.opened = true
	return nil
}

func (b *S3Backend) key(path string) string {
	pfx := strings.TrimSuffix(b.cfg.Prefix, "/")
	if pfx == "" {
		return path
	}
	return pfx + "/" + path
}

type s3PutOnClose struct {
	b      *S3Backend
	key    string
	buf    bytes.Buffer
	closed bool
}

func (w *s3PutOnClose) Write(p []byte) (int, error) {
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	return w.buf.Write(p)
}

func (w *s3PutOnClose) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	_, err := w.b.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(w.b.cfg.Bucket),
		Key:    aws.String(w.key),
		Body:   bytes.NewReader(w.buf.Bytes()),
	})
	if err != nil {
		return ioErr("s3 put "+w.key, err)
	}
	return nil
}

func (b *S3Backend) Create(path string) (io.WriteCloser, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}
	return &s3PutOnClose{b: b, key: b.key(path)}, nil
}

// OpenAppend reads the existing object (if any) and buffers new writes on
// top of it, re-putting the whole object on Close. Objects in fold's
// append paths (active.log) are bounded by LandingZone's drain cadence,
// so the read-modify-write cost stays proportional to one generation's
// worth of results, not the job's lifetime.
func (b *S3Backend) OpenAppend(path string) (io.WriteCloser, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}
	key := b.key(path)
	w := &s3PutOnClose{b: b, key: key}
	resp, err := b.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		io.Copy(&w.buf, resp.Body)
		resp.Body.Close()
	}
	return w, nil
}

func (b *S3Backend) Open(path string) (io.ReadCloser, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}
	resp, err := b.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(b.key(path)),
	})
	if err != nil {
		return nil, ioErr("s3 get "+path, err)
	}
	return resp.Body, nil
}

func (b *S3Backend) Rename(oldPath, newPath string) error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	src := b.cfg.Bucket + "/" + b.key(oldPath)
	_, err := b.client.CopyObject(context.Background(), &s3.CopyObjectInput{
		Bucket:     aws.String(b.cfg.Bucket),
		Key:        aws.String(b.key(newPath)),
		CopySource: aws.String(src),
	})
	if err != nil {
		return ioErr("s3 copy "+oldPath+" -> "+newPath, err)
	}
	return b.Remove(oldPath)
}

func (b *S3Backend) Remove(path string) error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	_, err := b.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(b.key(path)),
	})
	if err != nil {
		return ioErr("s3 delete "+path, err)
	}
	return nil
}

func (b *S3Backend) RemoveAll(prefix string) error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	full := b.key(prefix)
	if full != "" && !strings.HasSuffix(full, "/") {
		full += "/"
	}
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.cfg.Bucket),
		Prefix: aws.String(full),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(context.Background())
		if err != nil {
			return ioErr("s3 list for removeall "+prefix, err)
		}
		for _, obj := range page.Contents {
			if _, err := b.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
				Bucket: aws.String(b.cfg.Bucket),
				Key:    obj.Key,
			}); err != nil {
				return ioErr("s3 delete during removeall", err)
			}
		}
	}
	return nil
}

func (b *S3Backend) List(prefix string) ([]string, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}
	full := b.key(prefix)
	if full != "" && !strings.HasSuffix(full, "/") {
		full += "/"
	}
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.cfg.Bucket),
		Prefix:    aws.String(full),
		Delimiter: aws.String("/"),
	})
	var names []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(context.Background())
		if err != nil {
			return nil, ioErr("s3 list "+prefix, err)
		}
		for _, obj := range page.Contents {
			names = append(names, strings.TrimPrefix(*obj.Key, full))
		}
	}
	return names, nil
}

func (b *S3Backend) MkdirAll(prefix string) error {
	// object stores have no directories; nothing to create
	return nil
}

func (b *S3Backend) Stat(path string) (int64, bool, error) {
	if err := b.ensureOpen(); err != nil {
		return 0, false, err
	}
	head, err := b.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(b.key(path)),
	})
	if err != nil {
		return 0, false, nil
	}
	size := int64(0)
	if head.ContentLength != nil {
		size = *head.ContentLength
	}
	return size, true, nil
}

// Touch re-puts an empty marker object, which bumps LastModified whether
// or not the object already existed — HeadObject's modtime is the only
// signal S3 gives us, so recreating the object is how heartbeat staleness
// gets reset.
func (b *S3Backend) Touch(path string) error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	_, err := b.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(b.key(path)),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return ioErr(fmt.Sprintf("s3 touch %s", path), err)
	}
	return nil
}

func (b *S3Backend) ModTime(path string) (int64, bool, error) {
	if err := b.ensureOpen(); err != nil {
		return 0, false, err
	}
	head, err := b.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(b.key(path)),
	})
	if err != nil {
		return 0, false, nil
	}
	if head.LastModified == nil {
		return 0, true, nil
	}
	return head.LastModified.Unix(), true, nil
}
