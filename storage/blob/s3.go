// Copyright 2024 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package blob

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/gorse-io/reco/base/log"
	"github.com/gorse-io/reco/config"
	"github.com/juju/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

type S3 struct {
	*minio.Client
	bucket string
	prefix string
}

func NewS3(cfg config.S3Config, bucket, prefix string) (*S3, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &S3{
		Client: minioClient,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (s *S3) Open(name string) (io.ReadCloser, error) {
	object, err := s.Client.GetObject(context.Background(), s.bucket, path.Join(s.prefix, name), minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return object, nil
}

func (s *S3) Create(name string) (io.WriteCloser, chan struct{}, error) {
	fullPath := path.Join(s.prefix, name)
	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := s.Client.PutObject(context.Background(), s.bucket, fullPath, pr, -1, minio.PutObjectOptions{})
		if err != nil {
			_ = pr.CloseWithError(err)
			log.Logger().Error("failed to upload file to S3", zap.String("file", fullPath), zap.Error(err))
		}
	}()
	return pw, done, nil
}

func (s *S3) List() ([]string, error) {
	var names []string
	prefix := s.prefix
	if prefix != "" {
		prefix += "/"
	}
	for object := range s.Client.ListObjects(context.Background(), s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, errors.Trace(object.Err)
		}
		names = append(names, strings.TrimPrefix(object.Key, prefix))
	}
	return names, nil
}

func (s *S3) Remove(name string) error {
	return errors.Trace(s.Client.RemoveObject(context.Background(), s.bucket, path.Join(s.prefix, name), minio.RemoveObjectOptions{}))
}
