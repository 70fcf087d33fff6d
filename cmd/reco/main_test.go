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
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gorse-io/reco/base"
	"github.com/gorse-io/reco/base/log"
	"github.com/gorse-io/reco/config"
	"github.com/gorse-io/reco/dataset"
	"github.com/gorse-io/reco/model"
	"github.com/gorse-io/reco/model/cf"
	"github.com/gorse-io/reco/storage/meta"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

func init() {
	log.CloseLogger()
}

type CommandTestSuite struct {
	suite.Suite
	dir  string
	conf *config.Config
}

func (suite *CommandTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()
	// ratings of 10 users and 8 items
	var builder strings.Builder
	builder.WriteString("user,item,rating\n")
	for u := 0; u < 10; u++ {
		for i := 0; i < 8; i++ {
			if (u+i)%3 != 0 {
				_, _ = fmt.Fprintf(&builder, "u%d,i%d,%d\n", u, i, 1+(u*i)%5)
			}
		}
	}
	trainPath := filepath.Join(suite.dir, "ratings.csv")
	suite.NoError(os.WriteFile(trainPath, []byte(builder.String()), 0644))

	suite.conf = config.GetDefaultConfig()
	suite.conf.Data.TrainPath = trainPath
	suite.conf.Data.Header = true
	suite.conf.Data.ValidRatio = 0.2
	suite.conf.Training.Params.NumEpochs = 10
	suite.conf.Training.Params.LearningRate = 0.01
	suite.conf.Storage.BlobStore = "file://" + filepath.Join(suite.dir, "models")
	suite.conf.Storage.MetaStore = "sqlite://" + filepath.Join(suite.dir, "meta.db")
}

func (suite *CommandTestSuite) TestTrainPredictSVD() {
	out := bytes.NewBuffer(nil)
	run, err := train(context.Background(), suite.conf, out)
	suite.NoError(err)
	suite.Equal(meta.StatusCompleted, run.Status)
	suite.Equal(10, run.Epochs)
	suite.Equal("svd/"+run.ID, run.Archive)
	suite.Contains(out.String(), run.ID)

	// load the latest archive
	a, err := loadArchive(suite.conf, "")
	suite.NoError(err)
	suite.Equal("svd", a.modelName())
	suite.NotNil(a.userDict)
	suite.NotNil(a.itemDict)
	suite.Equal(int32(10), a.userDict.Count())

	// predict a known pair
	out.Reset()
	suite.NoError(predict(out, a, []string{"u1", "i1"}))
	prediction, err := strconv.ParseFloat(strings.Fields(out.String())[0], 64)
	suite.NoError(err)
	userIndex, _ := a.userDict.Lookup("u1")
	itemIndex, _ := a.itemDict.Lookup("i1")
	expected, _ := a.svd.PredictWithFlag(userIndex, itemIndex)
	suite.InDelta(expected, prediction, 1e-4)

	// predict an unknown user
	out.Reset()
	suite.NoError(predict(out, a, []string{"unknown", "i1"}))
	suite.Contains(out.String(), "(cold start)")
	suite.Error(predict(out, a, []string{"u1"}))

	// load by run
	a, err = loadArchive(suite.conf, run.ID)
	suite.NoError(err)
	suite.NotNil(a.svd)
	_, err = loadArchive(suite.conf, "missing")
	suite.True(errors.Is(err, errors.NotFound))

	// list runs
	database, err := openMeta(suite.conf.Storage)
	suite.NoError(err)
	defer database.Close()
	runs, err := database.ListRuns("svd", 0)
	suite.NoError(err)
	if suite.Len(runs, 1) {
		suite.Equal(run.ID, runs[0].ID)
	}
	out.Reset()
	suite.NoError(renderRuns(out, runs))
	suite.Contains(out.String(), run.ID)
}

func (suite *CommandTestSuite) TestTrainPredictFM() {
	suite.conf.Training.Model = config.ModelFM
	out := bytes.NewBuffer(nil)
	run, err := train(context.Background(), suite.conf, out)
	suite.NoError(err)
	suite.Equal("fm/"+run.ID, run.Archive)

	// no svd model is trained
	suite.conf.Training.Model = config.ModelSVD
	_, err = loadArchive(suite.conf, "")
	suite.True(errors.Is(err, errors.NotFound))

	suite.conf.Training.Model = config.ModelFM
	a, err := loadArchive(suite.conf, "")
	suite.NoError(err)
	suite.Equal("fm", a.modelName())
	out.Reset()
	suite.NoError(predict(out, a, []string{"u2", "i2"}))
	_, err = strconv.ParseFloat(strings.Fields(out.String())[0], 64)
	suite.NoError(err)
	out.Reset()
	suite.NoError(predict(out, a, []string{"u2", "unknown"}))
	suite.Contains(out.String(), "(cold start)")
}

func (suite *CommandTestSuite) TestTrainLibFM() {
	var builder strings.Builder
	for i := 0; i < 50; i++ {
		_, _ = fmt.Fprintf(&builder, "%d 0:1 %d:1 %d:0.5\n", 1+i%5, 1+i%4, 5+i%3)
	}
	path := filepath.Join(suite.dir, "train.libfm")
	suite.NoError(os.WriteFile(path, []byte(builder.String()), 0644))
	suite.conf.Data.TrainPath = path
	suite.conf.Data.Format = config.FormatLibFM

	// svd needs ratings
	_, err := train(context.Background(), suite.conf, bytes.NewBuffer(nil))
	suite.True(errors.Is(err, errors.NotSupported))

	suite.conf.Training.Model = config.ModelFM
	_, err = train(context.Background(), suite.conf, bytes.NewBuffer(nil))
	suite.NoError(err)
	a, err := loadArchive(suite.conf, "")
	suite.NoError(err)
	suite.Nil(a.userDict)
	suite.Equal(int32(8), a.fm.NumFeatures())

	out := bytes.NewBuffer(nil)
	suite.NoError(predict(out, a, []string{"0:1", "2:1", "6:0.5"}))
	prediction, err := strconv.ParseFloat(strings.TrimSpace(out.String()), 64)
	suite.NoError(err)
	x, err := base.NewSparseVector(8, []int32{0, 2, 6}, []float64{1, 1, 0.5})
	suite.NoError(err)
	expected, err := a.fm.Predict(x)
	suite.NoError(err)
	suite.InDelta(expected, prediction, 1e-6)

	// feature outside the feature space
	var dimensionError *model.DimensionMismatchError
	suite.True(errors.As(predict(out, a, []string{"100:1"}), &dimensionError))
	suite.Error(predict(out, a, []string{"1:1", "1:2"}))
	suite.Error(predict(out, a, []string{"x"}))
}

func (suite *CommandTestSuite) TestDivergence() {
	suite.conf.Training.Params.LearningRate = 1e10
	run, err := train(context.Background(), suite.conf, bytes.NewBuffer(nil))
	var divergenceError *model.DivergenceError
	suite.True(errors.As(err, &divergenceError))
	suite.Equal(meta.StatusDiverged, run.Status)
	suite.Empty(run.Archive)

	// diverged runs are never used for prediction
	_, err = loadArchive(suite.conf, "")
	suite.True(errors.Is(err, errors.NotFound))
	_, err = loadArchive(suite.conf, run.ID)
	suite.True(errors.Is(err, errors.NotValid))
}

func (suite *CommandTestSuite) TestSearch() {
	suite.conf.Training.SearchTrials = 3
	suite.conf.Training.Params.NumEpochs = 3
	result, err := search(suite.conf, bytes.NewBuffer(nil))
	suite.NoError(err)
	suite.Equal(3, result.Trials)
	suite.NotNil(result.Config)

	suite.conf.Training.Model = config.ModelFM
	result, err = search(suite.conf, bytes.NewBuffer(nil))
	suite.NoError(err)
	suite.Equal(3, result.Trials)

	suite.conf.Data.ValidRatio = 0
	_, err = search(suite.conf, bytes.NewBuffer(nil))
	suite.True(errors.Is(err, errors.NotValid))
}

func TestCommand(t *testing.T) {
	suite.Run(t, new(CommandTestSuite))
}

func TestArchive(t *testing.T) {
	set := dataset.NewRatingSet(2, 2, []dataset.Rating{
		{UserIndex: 0, ItemIndex: 0, Target: 5},
		{UserIndex: 1, ItemIndex: 1, Target: 3},
	})
	svd := cf.NewSVD(nil)
	_, err := svd.Fit(context.Background(), set, nil)
	assert.NoError(t, err)
	a := &archive{
		svd:      svd,
		userDict: dataset.NewFreqDictFromStrings([]string{"alice", "bob"}),
	}
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, a.Marshal(buf))
	copied := new(archive)
	assert.NoError(t, copied.Unmarshal(buf))
	assert.Equal(t, svd.UserFactor, copied.svd.UserFactor)
	assert.Equal(t, []string{"alice", "bob"}, copied.userDict.Strings())
	assert.Nil(t, copied.itemDict)
	assert.Nil(t, copied.fm)

	// unknown archive version
	buf = bytes.NewBuffer([]byte{2, 0, 0, 0, 0, 0, 0, 0})
	assert.True(t, errors.Is(new(archive).Unmarshal(buf), errors.NotSupported))
}
