// Copyright 2026 gorse Project Authors
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

package model

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
)

const (
	ShuffleNone  = "none"
	ShuffleOnce  = "once"
	ShuffleEpoch = "epoch"
)

// Config holds the hyper-parameters of a training run. It is validated before
// any training step and never mutated by training.
type Config struct {
	NumFactors      int      `mapstructure:"n_factors" validate:"gt=0"`
	NumEpochs       int      `mapstructure:"n_epochs" validate:"gte=0"`
	LearningRate    float64  `mapstructure:"lr" validate:"gt=0,finite"`
	RegUserFactor   float64  `mapstructure:"reg_user_factor" validate:"gte=0,finite"`
	RegItemFactor   float64  `mapstructure:"reg_item_factor" validate:"gte=0,finite"`
	RegUserBias     float64  `mapstructure:"reg_user_bias" validate:"gte=0,finite"`
	RegItemBias     float64  `mapstructure:"reg_item_bias" validate:"gte=0,finite"`
	RegWeight       float64  `mapstructure:"reg_weight" validate:"gte=0,finite"`
	RegFactor       float64  `mapstructure:"reg_factor" validate:"gte=0,finite"`
	RegGlobalBias   float64  `mapstructure:"reg_global_bias" validate:"gte=0,finite"`
	FitGlobalBias   bool     `mapstructure:"fit_global_bias"`
	InitMean        float64  `mapstructure:"init_mean" validate:"finite"`
	InitStdDev      float64  `mapstructure:"init_std" validate:"gte=0,finite"`
	Tolerance       float64  `mapstructure:"tolerance" validate:"gte=0,finite"`
	Patience        int      `mapstructure:"patience" validate:"gte=1"`
	Seed            int64    `mapstructure:"seed"`
	Shuffle         string   `mapstructure:"shuffle" validate:"oneof=none once epoch"`
	Schedule        Schedule `mapstructure:"schedule"`
	Clip            bool     `mapstructure:"clip"`
	StrictColdStart bool     `mapstructure:"strict_cold_start"`
}

// NewConfig creates a config with default values.
func NewConfig() *Config {
	return &Config{
		NumFactors:    16,
		NumEpochs:     20,
		LearningRate:  0.005,
		RegUserFactor: 0.02,
		RegItemFactor: 0.02,
		RegUserBias:   0.02,
		RegItemBias:   0.02,
		RegWeight:     0.02,
		RegFactor:     0.02,
		InitStdDev:    0.1,
		Patience:      1,
		Shuffle:       ShuffleEpoch,
		Schedule: Schedule{
			Type:      ScheduleConstant,
			DecayRate: 0.5,
			StepSize:  10,
		},
	}
}

// SetReg sets the regularization of every group except the global bias.
func (config *Config) SetReg(reg float64) *Config {
	config.SetRegBias(reg)
	config.SetRegFactor(reg)
	return config
}

// SetRegBias sets the regularization of user, item and feature biases.
func (config *Config) SetRegBias(reg float64) *Config {
	config.RegUserBias = reg
	config.RegItemBias = reg
	config.RegWeight = reg
	return config
}

// SetRegFactor sets the regularization of latent factors.
func (config *Config) SetRegFactor(reg float64) *Config {
	config.RegUserFactor = reg
	config.RegItemFactor = reg
	config.RegFactor = reg
	return config
}

// Overwrite returns a copy of the config with hyper-parameters replaced by params.
func (config *Config) Overwrite(params Params) *Config {
	c := *config
	c.LearningRate = params.GetFloat64(Lr, c.LearningRate)
	if _, exist := params[Reg]; exist {
		c.SetReg(params.GetFloat64(Reg, 0))
	}
	if _, exist := params[RegBias]; exist {
		c.SetRegBias(params.GetFloat64(RegBias, 0))
	}
	if _, exist := params[RegFactor]; exist {
		c.SetRegFactor(params.GetFloat64(RegFactor, 0))
	}
	c.NumEpochs = params.GetInt(NEpochs, c.NumEpochs)
	c.NumFactors = params.GetInt(NFactors, c.NumFactors)
	c.Seed = params.GetInt64(RandomState, c.Seed)
	c.InitMean = params.GetFloat64(InitMean, c.InitMean)
	c.InitStdDev = params.GetFloat64(InitStdDev, c.InitStdDev)
	return &c
}

// Validate checks hyper-parameters. A *ConfigError is returned for the first
// invalid field.
func (config *Config) Validate() error {
	if config == nil {
		return &ConfigError{Field: "config", Reason: "missing"}
	}
	if err := getValidator().Struct(config); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
			fieldError := fieldErrors[0]
			return &ConfigError{
				Field:  strings.TrimPrefix(fieldError.Namespace(), "Config."),
				Reason: fmt.Sprintf("%v violates %s", fieldError.Value(), strings.TrimSuffix(fieldError.Tag()+"="+fieldError.Param(), "=")),
			}
		}
		return errors.Trace(err)
	}
	return nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})
		if err := validate.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
			v := fl.Field().Float()
			return !math.IsNaN(v) && !math.IsInf(v, 0)
		}); err != nil {
			panic(err)
		}
	})
	return validate
}
