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

package main

import (
	"os"

	"github.com/gorse-io/reco/base/log"
	"github.com/gorse-io/reco/config"
	"github.com/gorse-io/reco/dataset"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// trainingData holds either ratings or libFM samples.
type trainingData struct {
	trainRatings  *dataset.RatingSet
	validRatings  *dataset.RatingSet
	trainFeatures *dataset.FeatureSet
	validFeatures *dataset.FeatureSet
	userDict      *dataset.FreqDict
	itemDict      *dataset.FreqDict
}

// features returns samples for factorization machines. Ratings are one-hot encoded.
func (data *trainingData) features() (*dataset.FeatureSet, *dataset.FeatureSet) {
	if data.trainFeatures != nil {
		return data.trainFeatures, data.validFeatures
	}
	var validSet *dataset.FeatureSet
	if data.validRatings.Count() > 0 {
		validSet = dataset.OneHot(data.validRatings)
	}
	return dataset.OneHot(data.trainRatings), validSet
}

func loadData(cfg config.DataConfig) (*trainingData, error) {
	if cfg.TrainPath == "" {
		return nil, errors.NotValidf("empty training data path")
	}
	var (
		data = new(trainingData)
		err  error
	)
	switch cfg.Format {
	case config.FormatCSV:
		if err = data.loadRatings(cfg); err != nil {
			return nil, errors.Trace(err)
		}
		log.Logger().Info("load ratings",
			zap.Int32("n_users", data.trainRatings.NumUsers),
			zap.Int32("n_items", data.trainRatings.NumItems),
			zap.Int("train_set_size", data.trainRatings.Count()),
			zap.Int("valid_set_size", data.validRatings.Count()))
	case config.FormatLibFM:
		if err = data.loadFeatures(cfg); err != nil {
			return nil, errors.Trace(err)
		}
		log.Logger().Info("load samples",
			zap.Int32("n_features", data.trainFeatures.Dim),
			zap.Int("train_set_size", data.trainFeatures.Count()),
			zap.Int("valid_set_size", data.validFeatures.Count()))
	default:
		return nil, errors.NotSupportedf("data format %s", cfg.Format)
	}
	return data, nil
}

func (data *trainingData) loadRatings(cfg config.DataConfig) error {
	sep := []rune(cfg.Separator)[0]
	data.userDict, data.itemDict = dataset.NewFreqDict(), dataset.NewFreqDict()
	file, err := os.Open(cfg.TrainPath)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	if data.trainRatings, err = dataset.ReadRatingCSV(file, sep, cfg.Header, data.userDict, data.itemDict); err != nil {
		return errors.Annotate(err, cfg.TrainPath)
	}
	if cfg.ValidPath != "" {
		validFile, err := os.Open(cfg.ValidPath)
		if err != nil {
			return errors.Trace(err)
		}
		defer validFile.Close()
		if data.validRatings, err = dataset.ReadRatingCSV(validFile, sep, cfg.Header, data.userDict, data.itemDict); err != nil {
			return errors.Annotate(err, cfg.ValidPath)
		}
		// entities first seen in the validation set are cold
		data.trainRatings.NumUsers = data.userDict.Count()
		data.trainRatings.NumItems = data.itemDict.Count()
	} else if cfg.ValidRatio > 0 {
		data.trainRatings, data.validRatings = data.trainRatings.Split(cfg.ValidRatio, cfg.SplitSeed)
	}
	return nil
}

func (data *trainingData) loadFeatures(cfg config.DataConfig) error {
	var err error
	if data.trainFeatures, err = dataset.LoadLibFMFile(cfg.TrainPath); err != nil {
		return errors.Annotate(err, cfg.TrainPath)
	}
	if cfg.ValidPath != "" {
		validFile, err := os.Open(cfg.ValidPath)
		if err != nil {
			return errors.Trace(err)
		}
		defer validFile.Close()
		if data.validFeatures, err = dataset.ReadLibFM(validFile, data.trainFeatures.Dim); err != nil {
			return errors.Annotate(err, cfg.ValidPath)
		}
		data.trainFeatures.Dim = data.validFeatures.Dim
	} else if cfg.ValidRatio > 0 {
		data.trainFeatures, data.validFeatures = data.trainFeatures.Split(cfg.ValidRatio, cfg.SplitSeed)
	}
	return nil
}
