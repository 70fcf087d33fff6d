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

package cf

import (
	"context"
	"io"
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/reco/base"
	"github.com/gorse-io/reco/base/encoding"
	"github.com/gorse-io/reco/base/log"
	"github.com/gorse-io/reco/common/floats"
	"github.com/gorse-io/reco/common/parallel"
	"github.com/gorse-io/reco/dataset"
	"github.com/gorse-io/reco/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const headerSVD = "svd"

// SVD is the FunkSVD model: a target is predicted by the global bias, the
// user bias, the item bias and the dot product of user and item factors.
type SVD struct {
	Config *model.Config
	// Model parameters
	GlobalBias      float64
	UserBias        []float64
	ItemBias        []float64
	UserFactor      [][]float64
	ItemFactor      [][]float64
	MinTarget       float64
	MaxTarget       float64
	UserPredictable *bitset.BitSet
	ItemPredictable *bitset.BitSet
	// Training state
	trainSet   *dataset.RatingSet
	validSet   *dataset.RatingSet
	checkpoint *svdParams
	buffer     []float64
}

// svdParams is a copy of mutable parameters.
type svdParams struct {
	globalBias float64
	userBias   []float64
	itemBias   []float64
	userFactor [][]float64
	itemFactor [][]float64
}

// NewSVD creates a FunkSVD model. A nil config is replaced by the default config.
func NewSVD(config *model.Config) *SVD {
	if config == nil {
		config = model.NewConfig()
	}
	return &SVD{
		Config:          config,
		UserPredictable: bitset.New(0),
		ItemPredictable: bitset.New(0),
	}
}

func (svd *SVD) NumUsers() int {
	return len(svd.UserBias)
}

func (svd *SVD) NumItems() int {
	return len(svd.ItemBias)
}

// Predict a rating. Users or items never observed in training contribute
// neither biases nor factors. A *model.ColdStartError is returned with the
// fallback prediction in strict mode.
func (svd *SVD) Predict(userIndex, itemIndex int32) (float64, error) {
	prediction, userKnown, itemKnown := svd.predict(userIndex, itemIndex)
	if !userKnown || !itemKnown {
		if svd.Config.StrictColdStart {
			if !userKnown {
				return prediction, &model.ColdStartError{Entity: "user", Index: userIndex}
			}
			return prediction, &model.ColdStartError{Entity: "item", Index: itemIndex}
		}
		log.Logger().Debug("cold start prediction",
			zap.Int32("user_index", userIndex), zap.Bool("user_known", userKnown),
			zap.Int32("item_index", itemIndex), zap.Bool("item_known", itemKnown))
	}
	return prediction, nil
}

// PredictWithFlag predicts a rating and reports whether both user and item
// were observed in training.
func (svd *SVD) PredictWithFlag(userIndex, itemIndex int32) (float64, bool) {
	prediction, userKnown, itemKnown := svd.predict(userIndex, itemIndex)
	return prediction, userKnown && itemKnown
}

// BatchPredict predicts ratings of (user, item) pairs in parallel.
func (svd *SVD) BatchPredict(pairs []lo.Tuple2[int32, int32], jobs int) []float64 {
	predictions := make([]float64, len(pairs))
	parallel.ForEach(pairs, jobs, func(i int, pair lo.Tuple2[int32, int32]) {
		predictions[i], _ = svd.PredictWithFlag(pair.A, pair.B)
	})
	return predictions
}

func (svd *SVD) predict(userIndex, itemIndex int32) (float64, bool, bool) {
	userKnown := userIndex >= 0 && int(userIndex) < len(svd.UserBias) && svd.UserPredictable.Test(uint(userIndex))
	itemKnown := itemIndex >= 0 && int(itemIndex) < len(svd.ItemBias) && svd.ItemPredictable.Test(uint(itemIndex))
	prediction := svd.GlobalBias
	if userKnown {
		prediction += svd.UserBias[userIndex]
	}
	if itemKnown {
		prediction += svd.ItemBias[itemIndex]
	}
	if userKnown && itemKnown {
		prediction += floats.Dot(svd.UserFactor[userIndex], svd.ItemFactor[itemIndex])
	}
	if svd.Config.Clip {
		prediction = min(max(prediction, svd.MinTarget), svd.MaxTarget)
	}
	return prediction, userKnown, itemKnown
}

func (svd *SVD) internalPredict(userIndex, itemIndex int32) float64 {
	return svd.GlobalBias + svd.UserBias[userIndex] + svd.ItemBias[itemIndex] +
		floats.Dot(svd.UserFactor[userIndex], svd.ItemFactor[itemIndex])
}

// Fit the model on a training set. The validation set is optional. Parameters
// of the last finished epoch are kept if training diverges.
func (svd *SVD) Fit(ctx context.Context, trainSet, validSet *dataset.RatingSet, reporters ...model.Reporter) (model.Result, error) {
	if err := svd.Config.Validate(); err != nil {
		return model.Result{}, errors.Trace(err)
	}
	if trainSet == nil {
		return model.Result{}, errors.NotValidf("nil training set")
	}
	if err := trainSet.Validate(); err != nil {
		return model.Result{}, errors.Trace(err)
	}
	if validSet != nil {
		if err := validSet.Validate(); err != nil {
			return model.Result{}, errors.Trace(err)
		}
	}
	log.Logger().Info("fit svd",
		zap.Int("train_set_size", trainSet.Count()),
		zap.Int("valid_set_size", validSet.Count()),
		zap.Int32("n_users", trainSet.NumUsers),
		zap.Int32("n_items", trainSet.NumItems),
		zap.Any("config", svd.Config))
	rng := svd.init(trainSet)
	svd.trainSet, svd.validSet = trainSet, validSet
	defer func() {
		svd.trainSet, svd.validSet, svd.checkpoint = nil, nil, nil
	}()
	result, err := model.NewTrainer(headerSVD, svd.Config, rng.Int63(), reporters...).Fit(ctx, svd)
	if err != nil {
		return result, errors.Trace(err)
	}
	log.Logger().Info("fit svd complete", result.ZapFields()...)
	return result, nil
}

// init draws user factors then item factors from the same generator.
func (svd *SVD) init(trainSet *dataset.RatingSet) base.RandomGenerator {
	rng := base.NewRandomGenerator(svd.Config.Seed)
	svd.UserFactor = rng.NormalMatrix(int(trainSet.NumUsers), svd.Config.NumFactors, svd.Config.InitMean, svd.Config.InitStdDev)
	svd.ItemFactor = rng.NormalMatrix(int(trainSet.NumItems), svd.Config.NumFactors, svd.Config.InitMean, svd.Config.InitStdDev)
	svd.UserBias = make([]float64, trainSet.NumUsers)
	svd.ItemBias = make([]float64, trainSet.NumItems)
	svd.GlobalBias = trainSet.Mean()
	svd.MinTarget, svd.MaxTarget = trainSet.TargetRange()
	svd.UserPredictable = bitset.New(uint(trainSet.NumUsers))
	svd.ItemPredictable = bitset.New(uint(trainSet.NumItems))
	for _, rating := range trainSet.Ratings {
		svd.UserPredictable.Set(uint(rating.UserIndex))
		svd.ItemPredictable.Set(uint(rating.ItemIndex))
	}
	svd.buffer = make([]float64, svd.Config.NumFactors)
	return rng
}

func (svd *SVD) NumSamples() int {
	return svd.trainSet.Count()
}

// Update applies one SGD step. Updates of user and item factors both read old values.
func (svd *SVD) Update(sample int, lr float64) float64 {
	rating := svd.trainSet.Ratings[sample]
	u, i := rating.UserIndex, rating.ItemIndex
	e := rating.GetWeight() * (rating.Target - svd.internalPredict(u, i))
	userFactor, itemFactor := svd.UserFactor[u], svd.ItemFactor[i]
	copy(svd.buffer, userFactor)
	// p_u += lr * (e * q_i - reg * p_u)
	floats.MulConst(userFactor, 1-lr*svd.Config.RegUserFactor)
	floats.MulConstAdd(itemFactor, lr*e, userFactor)
	// q_i += lr * (e * p_u - reg * q_i)
	floats.MulConst(itemFactor, 1-lr*svd.Config.RegItemFactor)
	floats.MulConstAdd(svd.buffer, lr*e, itemFactor)
	// biases
	svd.UserBias[u] += lr * (e - svd.Config.RegUserBias*svd.UserBias[u])
	svd.ItemBias[i] += lr * (e - svd.Config.RegItemBias*svd.ItemBias[i])
	if svd.Config.FitGlobalBias {
		svd.GlobalBias += lr * (e - svd.Config.RegGlobalBias*svd.GlobalBias)
	}
	return e
}

// Loss returns RMSE on the training set and the validation set.
func (svd *SVD) Loss() (float64, float64, bool) {
	train := svd.evaluate(svd.trainSet)
	if svd.validSet.Count() == 0 {
		return train, 0, false
	}
	return train, svd.evaluate(svd.validSet), true
}

func (svd *SVD) evaluate(set *dataset.RatingSet) float64 {
	predictions := make([]float64, len(set.Ratings))
	targets := make([]float64, len(set.Ratings))
	weights := make([]float64, len(set.Ratings))
	for j, rating := range set.Ratings {
		predictions[j], _ = svd.PredictWithFlag(rating.UserIndex, rating.ItemIndex)
		targets[j] = rating.Target
		weights[j] = rating.GetWeight()
	}
	return model.WeightedRMSE(predictions, targets, weights)
}

func (svd *SVD) Finite() bool {
	return floats.IsFinite([]float64{svd.GlobalBias}) &&
		floats.IsFinite(svd.UserBias) &&
		floats.IsFinite(svd.ItemBias) &&
		floats.MatIsFinite(svd.UserFactor) &&
		floats.MatIsFinite(svd.ItemFactor)
}

func (svd *SVD) Checkpoint() {
	if svd.checkpoint == nil {
		svd.checkpoint = &svdParams{
			userBias:   make([]float64, len(svd.UserBias)),
			itemBias:   make([]float64, len(svd.ItemBias)),
			userFactor: base.NewMatrix(len(svd.UserFactor), svd.Config.NumFactors),
			itemFactor: base.NewMatrix(len(svd.ItemFactor), svd.Config.NumFactors),
		}
	}
	svd.checkpoint.globalBias = svd.GlobalBias
	copy(svd.checkpoint.userBias, svd.UserBias)
	copy(svd.checkpoint.itemBias, svd.ItemBias)
	base.CopyMatrix(svd.checkpoint.userFactor, svd.UserFactor)
	base.CopyMatrix(svd.checkpoint.itemFactor, svd.ItemFactor)
}

func (svd *SVD) Rollback() {
	svd.GlobalBias = svd.checkpoint.globalBias
	copy(svd.UserBias, svd.checkpoint.userBias)
	copy(svd.ItemBias, svd.checkpoint.itemBias)
	base.CopyMatrix(svd.UserFactor, svd.checkpoint.userFactor)
	base.CopyMatrix(svd.ItemFactor, svd.checkpoint.itemFactor)
}

// MarshalModel writes a model with its header.
func MarshalModel(w io.Writer, svd *SVD) error {
	if err := encoding.WriteString(w, headerSVD); err != nil {
		return errors.Trace(err)
	}
	return svd.Marshal(w)
}

// UnmarshalModel reads a model written by MarshalModel.
func UnmarshalModel(r io.Reader) (*SVD, error) {
	header, err := encoding.ReadString(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if header != headerSVD {
		return nil, errors.NotValidf("model %q", header)
	}
	svd := NewSVD(nil)
	if err = svd.Unmarshal(r); err != nil {
		return nil, errors.Trace(err)
	}
	return svd, nil
}

// Marshal model into byte stream.
func (svd *SVD) Marshal(w io.Writer) error {
	// write config
	if err := encoding.WriteGob(w, svd.Config); err != nil {
		return errors.Trace(err)
	}
	// write header
	if err := encoding.WriteInt64(w, int64(svd.NumUsers()), int64(svd.NumItems()), int64(svd.Config.NumFactors)); err != nil {
		return errors.Trace(err)
	}
	// write scalars
	if err := encoding.WriteFloat64(w, svd.GlobalBias, svd.MinTarget, svd.MaxTarget); err != nil {
		return errors.Trace(err)
	}
	// write biases
	if err := encoding.WriteVector(w, svd.UserBias); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteVector(w, svd.ItemBias); err != nil {
		return errors.Trace(err)
	}
	// write factors
	if err := encoding.WriteMatrix(w, svd.UserFactor); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteMatrix(w, svd.ItemFactor); err != nil {
		return errors.Trace(err)
	}
	// write predictable sets
	if err := encoding.WriteBitSet(w, svd.UserPredictable); err != nil {
		return errors.Trace(err)
	}
	return encoding.WriteBitSet(w, svd.ItemPredictable)
}

// Unmarshal model from byte stream.
func (svd *SVD) Unmarshal(r io.Reader) error {
	// read config
	config := &model.Config{}
	if err := encoding.ReadGob(r, config); err != nil {
		return errors.Trace(err)
	}
	// read header
	var numUsers, numItems, numFactors int64
	if err := encoding.ReadInt64(r, &numUsers, &numItems, &numFactors); err != nil {
		return errors.Trace(err)
	}
	if numUsers < 0 || numUsers > math.MaxInt32 || numItems < 0 || numItems > math.MaxInt32 ||
		numFactors != int64(config.NumFactors) {
		return errors.NotValidf("svd of %d users, %d items and %d factors", numUsers, numItems, numFactors)
	}
	svd.Config = config
	// read scalars
	if err := encoding.ReadFloat64(r, &svd.GlobalBias, &svd.MinTarget, &svd.MaxTarget); err != nil {
		return errors.Trace(err)
	}
	// read biases
	svd.UserBias = make([]float64, numUsers)
	if err := encoding.ReadVector(r, svd.UserBias); err != nil {
		return errors.Trace(err)
	}
	svd.ItemBias = make([]float64, numItems)
	if err := encoding.ReadVector(r, svd.ItemBias); err != nil {
		return errors.Trace(err)
	}
	// read factors
	svd.UserFactor = base.NewMatrix(int(numUsers), int(numFactors))
	if err := encoding.ReadMatrix(r, svd.UserFactor); err != nil {
		return errors.Trace(err)
	}
	svd.ItemFactor = base.NewMatrix(int(numItems), int(numFactors))
	if err := encoding.ReadMatrix(r, svd.ItemFactor); err != nil {
		return errors.Trace(err)
	}
	// read predictable sets
	var err error
	if svd.UserPredictable, err = encoding.ReadBitSet(r); err != nil {
		return errors.Trace(err)
	}
	if svd.ItemPredictable, err = encoding.ReadBitSet(r); err != nil {
		return errors.Trace(err)
	}
	return nil
}
