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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorse-io/reco/model"
	"github.com/juju/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

const configText = `
[training]
model = "fm"
jobs = 4
timeout = "10m"
search_trials = 20

[training.params]
n_factors = 32
n_epochs = 100
lr = 0.01
reg_factor = 0.05
tolerance = 0.0001
patience = 3
seed = 42
shuffle = "once"
clip = true

[training.params.schedule]
type = "step"
decay_rate = 0.9
step_size = 5

[data]
train_path = "ml-100k/u1.base"
valid_path = "ml-100k/u1.test"
separator = "\t"
valid_ratio = 0.1

[storage]
blob_store = "s3://reco/models"
meta_store = "sqlite:///var/lib/reco/meta.db"
max_tries = 5

[storage.s3]
endpoint = "localhost:9000"
access_key_id = "minioadmin"
secret_access_key = "minioadmin"

[metrics]
listen = ":9090"

[tracing]
enable_tracing = true
exporter = "zipkin"
collector_endpoint = "http://localhost:9411/api/v2/spans"
sampler = "ratio"
ratio = 0.25
`

func TestUnmarshal(t *testing.T) {
	v := viper.New()
	setDefault(v)
	v.SetConfigType("toml")
	assert.NoError(t, v.ReadConfig(strings.NewReader(configText)))
	config, err := decode(v)
	assert.NoError(t, err)

	// [training]
	assert.Equal(t, ModelFM, config.Training.Model)
	assert.Equal(t, 4, config.Training.Jobs)
	assert.Equal(t, 10*time.Minute, config.Training.Timeout)
	assert.Equal(t, 20, config.Training.SearchTrials)
	// [training.params]
	assert.Equal(t, 32, config.Training.Params.NumFactors)
	assert.Equal(t, 100, config.Training.Params.NumEpochs)
	assert.Equal(t, 0.01, config.Training.Params.LearningRate)
	assert.Equal(t, 0.05, config.Training.Params.RegFactor)
	assert.Equal(t, 0.02, config.Training.Params.RegWeight)
	assert.Equal(t, 0.0001, config.Training.Params.Tolerance)
	assert.Equal(t, 3, config.Training.Params.Patience)
	assert.Equal(t, int64(42), config.Training.Params.Seed)
	assert.Equal(t, model.ShuffleOnce, config.Training.Params.Shuffle)
	assert.True(t, config.Training.Params.Clip)
	assert.False(t, config.Training.Params.StrictColdStart)
	// [training.params.schedule]
	assert.Equal(t, model.ScheduleStep, config.Training.Params.Schedule.Type)
	assert.Equal(t, 0.9, config.Training.Params.Schedule.DecayRate)
	assert.Equal(t, 5, config.Training.Params.Schedule.StepSize)
	// [data]
	assert.Equal(t, "ml-100k/u1.base", config.Data.TrainPath)
	assert.Equal(t, "ml-100k/u1.test", config.Data.ValidPath)
	assert.Equal(t, FormatCSV, config.Data.Format)
	assert.Equal(t, "\t", config.Data.Separator)
	assert.False(t, config.Data.Header)
	assert.Equal(t, 0.1, config.Data.ValidRatio)
	// [storage]
	assert.Equal(t, "s3://reco/models", config.Storage.BlobStore)
	assert.Equal(t, "sqlite:///var/lib/reco/meta.db", config.Storage.MetaStore)
	assert.Equal(t, "localhost:9000", config.Storage.S3.Endpoint)
	assert.Equal(t, "minioadmin", config.Storage.S3.AccessKeyID)
	assert.Equal(t, "minioadmin", config.Storage.S3.SecretAccessKey)
	assert.False(t, config.Storage.S3.UseSSL)
	assert.Equal(t, 5, config.Storage.MaxTries)
	// [metrics]
	assert.Equal(t, ":9090", config.Metrics.Listen)
	assert.Equal(t, "reco", config.Metrics.Namespace)
	// [tracing]
	assert.True(t, config.Tracing.EnableTracing)
	assert.Equal(t, "zipkin", config.Tracing.Exporter)
	assert.Equal(t, "http://localhost:9411/api/v2/spans", config.Tracing.CollectorEndpoint)
	assert.Equal(t, "ratio", config.Tracing.Sampler)
	assert.Equal(t, 0.25, config.Tracing.Ratio)
}

func TestSetDefault(t *testing.T) {
	v := viper.New()
	setDefault(v)
	config, err := decode(v)
	assert.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), config)
}

func TestBindEnv(t *testing.T) {
	t.Setenv("RECO_TRAINING_MODEL", "fm")
	t.Setenv("RECO_TRAINING_PARAMS_LR", "0.05")
	t.Setenv("RECO_TRAINING_PARAMS_N_FACTORS", "8")
	t.Setenv("RECO_TRAINING_PARAMS_SCHEDULE_TYPE", "inverse_time")
	t.Setenv("RECO_TRAINING_TIMEOUT", "30s")
	t.Setenv("RECO_STORAGE_BLOB_STORE", "gs://reco/models")
	t.Setenv("RECO_DATA_HEADER", "true")

	config, err := LoadConfig("")
	assert.NoError(t, err)
	assert.Equal(t, ModelFM, config.Training.Model)
	assert.Equal(t, 0.05, config.Training.Params.LearningRate)
	assert.Equal(t, 8, config.Training.Params.NumFactors)
	assert.Equal(t, model.ScheduleInverseTime, config.Training.Params.Schedule.Type)
	assert.Equal(t, 30*time.Second, config.Training.Timeout)
	assert.Equal(t, "gs://reco/models", config.Storage.BlobStore)
	assert.True(t, config.Data.Header)

	// check default values
	assert.Equal(t, 20, config.Training.Params.NumEpochs)
	assert.Equal(t, "sqlite://reco.db", config.Storage.MetaStore)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	assert.NoError(t, os.WriteFile(path, []byte(configText), 0644))
	config, err := LoadConfig(path)
	assert.NoError(t, err)
	assert.Equal(t, ModelFM, config.Training.Model)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	config := GetDefaultConfig()
	assert.NoError(t, config.Validate())

	config.Training.Model = "knn"
	err := config.Validate()
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.Contains(t, err.Error(), "training.model")

	config = GetDefaultConfig()
	config.Data.ValidRatio = 1
	assert.ErrorContains(t, config.Validate(), "data.valid_ratio")

	config = GetDefaultConfig()
	config.Tracing.Exporter = "jaeger"
	assert.ErrorContains(t, config.Validate(), "tracing.exporter")

	config = GetDefaultConfig()
	config.Storage.MaxTries = 0
	assert.ErrorContains(t, config.Validate(), "storage.max_tries")

	config = GetDefaultConfig()
	config.Training.Params.LearningRate = -1
	err = config.Validate()
	var configError *model.ConfigError
	assert.True(t, errors.As(err, &configError))
	assert.Equal(t, "lr", configError.Field)
}
