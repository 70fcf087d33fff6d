// Copyright 2022 gorse Project Authors
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

package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	defer CloseLogger()
	path := filepath.Join(t.TempDir(), "reco.log")
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(flagSet)
	assert.NoError(t, flagSet.Parse([]string{"--log-path", path}))

	SetLogger(flagSet, false)
	Logger().Info("hello")
	_ = Logger().Sync()
	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "hello")

	SetLogger(flagSet, true)
	Logger().Debug("world")
	_ = Logger().Sync()
	data, err = os.ReadFile(path)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "world")
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "s3://xxxx:xxxxxx@localhost:9000/bucket", RedactURL("s3://user:secret@localhost:9000/bucket"))
	assert.Equal(t, "s3://xxxx@localhost:9000/bucket", RedactURL("s3://user@localhost:9000/bucket"))
	assert.Equal(t, "file:///tmp/models", RedactURL("file:///tmp/models"))
}
