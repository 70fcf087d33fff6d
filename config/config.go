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
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/reco/model"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

const (
	ModelSVD = "svd"
	ModelFM  = "fm"

	FormatCSV   = "csv"
	FormatLibFM = "libfm"
)

// Config is the configuration of the command line tool.
type Config struct {
	Training TrainingConfig `mapstructure:"training"`
	Data     DataConfig     `mapstructure:"data"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// TrainingConfig is the configuration of training.
type TrainingConfig struct {
	Model        string        `mapstructure:"model" validate:"oneof=svd fm"`
	Jobs         int           `mapstructure:"jobs" validate:"gt=0"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gte=0"`
	SearchTrials int           `mapstructure:"search_trials" validate:"gt=0"`
	Params       model.Config  `mapstructure:"params" validate:"-"`
}

// DataConfig is the configuration of training data.
type DataConfig struct {
	TrainPath  string  `mapstructure:"train_path"`
	ValidPath  string  `mapstructure:"valid_path"`
	Format     string  `mapstructure:"format" validate:"oneof=csv libfm"`
	Separator  string  `mapstructure:"separator" validate:"len=1"`
	Header     bool    `mapstructure:"header"`
	ValidRatio float64 `mapstructure:"valid_ratio" validate:"gte=0,lt=1"`
	SplitSeed  int64   `mapstructure:"split_seed"`
}

// StorageConfig is the configuration of model archives and the run registry.
//
//	blob_store = "file:///var/lib/reco" | "s3://bucket/prefix" | "gs://bucket/prefix" | "azblob://container/prefix"
//	meta_store = "sqlite:///var/lib/reco/meta.db"
type StorageConfig struct {
	BlobStore string          `mapstructure:"blob_store" validate:"required"`
	MetaStore string          `mapstructure:"meta_store" validate:"required"`
	MaxTries  int             `mapstructure:"max_tries" validate:"gt=0"`
	S3        S3Config        `mapstructure:"s3"`
	GCS       GCSConfig       `mapstructure:"gcs"`
	Azure     AzureBlobConfig `mapstructure:"azure"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type GCSConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AzureBlobConfig struct {
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Endpoint         string `mapstructure:"endpoint"`
}

// MetricsConfig is the configuration of the Prometheus endpoint. Metrics are
// not served if the address is empty.
type MetricsConfig struct {
	Listen    string `mapstructure:"listen"`
	Namespace string `mapstructure:"namespace" validate:"required"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Training: TrainingConfig{
			Model:        ModelSVD,
			Jobs:         1,
			SearchTrials: 10,
			Params:       *model.NewConfig(),
		},
		Data: DataConfig{
			Format:    FormatCSV,
			Separator: ",",
		},
		Storage: StorageConfig{
			BlobStore: "file://models",
			MetaStore: "sqlite://reco.db",
			MaxTries:  3,
		},
		Metrics: MetricsConfig{
			Namespace: "reco",
		},
		Tracing: TracingConfig{
			Exporter: "otlp",
			Sampler:  "always",
			Ratio:    1,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [training]
	v.SetDefault("training.model", defaultConfig.Training.Model)
	v.SetDefault("training.jobs", defaultConfig.Training.Jobs)
	v.SetDefault("training.timeout", defaultConfig.Training.Timeout)
	v.SetDefault("training.search_trials", defaultConfig.Training.SearchTrials)
	// [training.params]
	params := defaultConfig.Training.Params
	v.SetDefault("training.params.n_factors", params.NumFactors)
	v.SetDefault("training.params.n_epochs", params.NumEpochs)
	v.SetDefault("training.params.lr", params.LearningRate)
	v.SetDefault("training.params.reg_user_factor", params.RegUserFactor)
	v.SetDefault("training.params.reg_item_factor", params.RegItemFactor)
	v.SetDefault("training.params.reg_user_bias", params.RegUserBias)
	v.SetDefault("training.params.reg_item_bias", params.RegItemBias)
	v.SetDefault("training.params.reg_weight", params.RegWeight)
	v.SetDefault("training.params.reg_factor", params.RegFactor)
	v.SetDefault("training.params.reg_global_bias", params.RegGlobalBias)
	v.SetDefault("training.params.fit_global_bias", params.FitGlobalBias)
	v.SetDefault("training.params.init_mean", params.InitMean)
	v.SetDefault("training.params.init_std", params.InitStdDev)
	v.SetDefault("training.params.tolerance", params.Tolerance)
	v.SetDefault("training.params.patience", params.Patience)
	v.SetDefault("training.params.seed", params.Seed)
	v.SetDefault("training.params.shuffle", params.Shuffle)
	v.SetDefault("training.params.clip", params.Clip)
	v.SetDefault("training.params.strict_cold_start", params.StrictColdStart)
	// [training.params.schedule]
	v.SetDefault("training.params.schedule.type", params.Schedule.Type)
	v.SetDefault("training.params.schedule.decay_rate", params.Schedule.DecayRate)
	v.SetDefault("training.params.schedule.step_size", params.Schedule.StepSize)
	// [data]
	v.SetDefault("data.train_path", defaultConfig.Data.TrainPath)
	v.SetDefault("data.valid_path", defaultConfig.Data.ValidPath)
	v.SetDefault("data.format", defaultConfig.Data.Format)
	v.SetDefault("data.separator", defaultConfig.Data.Separator)
	v.SetDefault("data.header", defaultConfig.Data.Header)
	v.SetDefault("data.valid_ratio", defaultConfig.Data.ValidRatio)
	v.SetDefault("data.split_seed", defaultConfig.Data.SplitSeed)
	// [storage]
	v.SetDefault("storage.blob_store", defaultConfig.Storage.BlobStore)
	v.SetDefault("storage.meta_store", defaultConfig.Storage.MetaStore)
	v.SetDefault("storage.max_tries", defaultConfig.Storage.MaxTries)
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.use_ssl", false)
	v.SetDefault("storage.gcs.credentials_file", "")
	v.SetDefault("storage.azure.account_name", "")
	v.SetDefault("storage.azure.account_key", "")
	v.SetDefault("storage.azure.connection_string", "")
	v.SetDefault("storage.azure.endpoint", "")
	// [metrics]
	v.SetDefault("metrics.listen", defaultConfig.Metrics.Listen)
	v.SetDefault("metrics.namespace", defaultConfig.Metrics.Namespace)
	// [tracing]
	v.SetDefault("tracing.enable_tracing", defaultConfig.Tracing.EnableTracing)
	v.SetDefault("tracing.exporter", defaultConfig.Tracing.Exporter)
	v.SetDefault("tracing.collector_endpoint", defaultConfig.Tracing.CollectorEndpoint)
	v.SetDefault("tracing.sampler", defaultConfig.Tracing.Sampler)
	v.SetDefault("tracing.ratio", defaultConfig.Tracing.Ratio)
}

// LoadConfig loads a configuration file. Every key can be overwritten by an
// environment variable, e.g. RECO_TRAINING_PARAMS_LR overwrites training.params.lr.
// Defaults are used if the path is empty.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	v.SetEnvPrefix("reco")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &config, nil
}

// Validate checks every section. Training parameters are checked by model.Config.
func (config *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		return strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
	})
	if err := validate.Struct(config); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
			fieldError := fieldErrors[0]
			return errors.NotValidf("%s = %v (%s)", strings.TrimPrefix(fieldError.Namespace(), "Config."),
				fieldError.Value(), strings.TrimSuffix(fmt.Sprintf("%s=%s", fieldError.Tag(), fieldError.Param()), "="))
		}
		return errors.Trace(err)
	}
	if err := config.Training.Params.Validate(); err != nil {
		return errors.Annotate(err, "training.params")
	}
	return nil
}
