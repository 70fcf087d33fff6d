// Copyright 2025 gorse Project Authors
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
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gorse-io/reco/base/log"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

type POSIX struct {
	dir string
}

func NewPOSIX(dir string) *POSIX {
	return &POSIX{dir: dir}
}

// Open a file for reading.
func (p *POSIX) Open(name string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(p.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errors.NotFoundf("blob %s", name)
	}
	return file, err
}

// Create a new file for writing. The content is written to a temporary file
// and renamed once the writer is closed, so readers never see partial archives.
func (p *POSIX) Create(name string) (io.WriteCloser, chan struct{}, error) {
	fullPath := filepath.Join(p.dir, name)
	if err := os.MkdirAll(filepath.Dir(fullPath), os.ModePerm); err != nil {
		return nil, nil, errors.Trace(err)
	}
	file, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	done := make(chan struct{})
	pr, pw := io.Pipe()
	go func() {
		defer close(done)
		_, err := io.Copy(file, pr)
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
		if err == nil {
			err = os.Rename(file.Name(), fullPath)
		}
		if err != nil {
			_ = pr.CloseWithError(err)
			_ = os.Remove(file.Name())
			log.Logger().Error("failed to write to file", zap.String("file", fullPath), zap.Error(err))
		}
	}()
	return pw, done, nil
}

// List names of files relative to the directory.
func (p *POSIX) List() ([]string, error) {
	var names []string
	err := filepath.WalkDir(p.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Base(path)[0] == '.' {
			return nil
		}
		name, err := filepath.Rel(p.dir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(name))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return names, errors.Trace(err)
}

func (p *POSIX) Remove(name string) error {
	err := os.Remove(filepath.Join(p.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return errors.NotFoundf("blob %s", name)
	}
	return errors.Trace(err)
}
