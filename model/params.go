// Copyright 2020 gorse Project Authors
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
	"encoding/json"
	"reflect"

	"github.com/gorse-io/reco/base/log"
	"go.uber.org/zap"
)

/* ParamName */

// ParamName is the type of hyper-parameter names.
type ParamName string

// Predefined hyper-parameter names
const (
	Lr          ParamName = "Lr"          // learning rate
	Reg         ParamName = "Reg"         // regularization strength of every group except the global bias
	RegBias     ParamName = "RegBias"     // regularization strength of user, item and feature biases
	RegFactor   ParamName = "RegFactor"   // regularization strength of latent factors
	NEpochs     ParamName = "NEpochs"     // number of epochs
	NFactors    ParamName = "NFactors"    // number of factors
	RandomState ParamName = "RandomState" // random state (seed)
	InitMean    ParamName = "InitMean"    // mean of gaussian initial parameter
	InitStdDev  ParamName = "InitStdDev"  // standard deviation of gaussian initial parameter
)

// Params stores hyper-parameters for an model. It is a map between strings
// (names) and interface{}s (values). For example, hyper-parameters for SVD
// is given by:
//
//	model.Params{
//		model.Lr:       0.007,
//		model.NEpochs:  100,
//		model.NFactors: 80,
//		model.Reg:      0.1,
//	}
type Params map[ParamName]interface{}

// Copy hyper-parameters.
func (parameters Params) Copy() Params {
	newParams := make(Params)
	for k, v := range parameters {
		newParams[k] = v
	}
	return newParams
}

// GetInt gets a integer parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetInt(name ParamName, _default int) int {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int:
			return val
		case int64:
			return int(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "int"),
				zap.String("actual", reflect.TypeOf(val).Name()))
		}
	}
	return _default
}

// GetInt64 gets a int64 parameter by name. Returns _default if not exists or type doesn't match. The
// type will be converted if given int.
func (parameters Params) GetInt64(name ParamName, _default int64) int64 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int64:
			return val
		case int:
			return int64(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "int64"),
				zap.String("actual", reflect.TypeOf(val).Name()))
		}
	}
	return _default
}

// GetFloat64 gets a float parameter by name. Returns _default if not exists or type doesn't match. The
// type will be converted if given int or float32.
func (parameters Params) GetFloat64(name ParamName, _default float64) float64 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case float64:
			return val
		case float32:
			return float64(val)
		case int:
			return float64(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "float64"),
				zap.String("actual", reflect.TypeOf(val).Name()))
		}
	}
	return _default
}

// ToString encodes hyper-parameters as JSON for logging.
func (parameters Params) ToString() string {
	b, err := json.Marshal(parameters)
	if err != nil {
		log.Logger().Fatal("failed to marshal params", zap.Error(err))
	}
	return string(b)
}
