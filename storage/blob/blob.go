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
	"net/url"
	"strings"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorse-io/reco/base/log"
	"github.com/gorse-io/reco/config"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Store keeps model archives. Create returns a writer and a channel closed
// once the content is persisted after the writer is closed.
type Store interface {
	Open(name string) (io.ReadCloser, error)
	Create(name string) (io.WriteCloser, chan struct{}, error)
	List() ([]string, error)
	Remove(name string) error
}

const (
	FilePrefix  = "file://"
	S3Prefix    = "s3://"
	GCSPrefix   = "gs://"
	AzurePrefix = "azblob://"
)

// Open a blob store by URL. A URL without a known scheme is a local directory.
func Open(cfg config.StorageConfig) (Store, error) {
	rawURL := cfg.BlobStore
	switch {
	case strings.HasPrefix(rawURL, S3Prefix):
		bucket, prefix, err := parseBucket(rawURL)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return NewS3(cfg.S3, bucket, prefix)
	case strings.HasPrefix(rawURL, GCSPrefix):
		bucket, prefix, err := parseBucket(rawURL)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return NewGCS(cfg.GCS, bucket, prefix)
	case strings.HasPrefix(rawURL, AzurePrefix):
		container, prefix, err := parseBucket(rawURL)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return NewAzureBlob(cfg.Azure, container, prefix)
	case strings.HasPrefix(rawURL, FilePrefix):
		return NewPOSIX(strings.TrimPrefix(rawURL, FilePrefix)), nil
	case strings.Contains(rawURL, "://"):
		return nil, errors.NotSupportedf("blob store %s", log.RedactURL(rawURL))
	default:
		return NewPOSIX(rawURL), nil
	}
}

func parseBucket(rawURL string) (string, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", "", errors.Trace(err)
	}
	if parsed.Host == "" {
		return "", "", errors.NotValidf("blob store %s without bucket", log.RedactURL(rawURL))
	}
	return parsed.Host, strings.Trim(parsed.Path, "/"), nil
}

// Save writes a blob and waits until it is persisted.
func Save(store Store, name string, write func(w io.Writer) error) error {
	w, done, err := store.Create(name)
	if err != nil {
		return errors.Trace(err)
	}
	if err = write(w); err != nil {
		if pw, ok := w.(*io.PipeWriter); ok {
			_ = pw.CloseWithError(err)
		} else {
			_ = w.Close()
		}
		<-done
		return errors.Trace(err)
	}
	if err = w.Close(); err != nil {
		<-done
		return errors.Trace(err)
	}
	<-done
	log.Logger().Debug("save blob", zap.String("name", name))
	return nil
}

// SaveWithRetry saves a blob with exponential backoff. Failures of write are
// permanent and returned at once.
func SaveWithRetry(ctx context.Context, store Store, name string, maxTries int, write func(w io.Writer) error) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		var writeErr error
		err := Save(store, name, func(w io.Writer) error {
			writeErr = write(w)
			return writeErr
		})
		if writeErr != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if err != nil {
			log.Logger().Warn("failed to save blob", zap.String("name", name), zap.Error(err))
		}
		return struct{}{}, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(uint(max(maxTries, 1))))
	return errors.Trace(err)
}

// Load reads a blob.
func Load(store Store, name string, read func(r io.Reader) error) error {
	r, err := store.Open(name)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			log.Logger().Warn("failed to close blob", zap.String("name", name), zap.Error(err))
		}
	}()
	return errors.Trace(read(r))
}
