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

package meta

import (
	"time"

	"github.com/gorse-io/reco/model"
	"github.com/juju/errors"
	"github.com/stretchr/testify/suite"
)

type baseTestSuite struct {
	suite.Suite
	Database
}

func (suite *baseTestSuite) TestRuns() {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	config := model.NewConfig()
	config.NumFactors = 8
	// Add runs
	first := NewRun("svd", config)
	first.StartTime = now
	suite.NoError(suite.Database.PutRun(first))
	second := NewRun("fm", model.NewConfig())
	second.StartTime = now.Add(time.Hour)
	suite.NoError(suite.Database.PutRun(second))
	third := NewRun("svd", model.NewConfig())
	third.StartTime = now.Add(2 * time.Hour)
	suite.NoError(suite.Database.PutRun(third))
	suite.NotEqual(first.ID, third.ID)

	// Update run
	first.Finish(model.Result{Epochs: 20, TrainRMSE: 0.8, ValidRMSE: 0.9, HasValid: true}, nil)
	first.Archive = "svd/" + first.ID
	suite.NoError(suite.Database.PutRun(first))
	run, err := suite.Database.GetRun(first.ID)
	suite.NoError(err)
	suite.Equal("svd", run.Model)
	suite.Equal(StatusCompleted, run.Status)
	suite.Equal(20, run.Epochs)
	suite.Equal(0.8, run.TrainRMSE)
	suite.Equal(0.9, run.ValidRMSE)
	suite.Equal("svd/"+first.ID, run.Archive)
	suite.Equal(config, run.Config)
	suite.True(first.StartTime.Equal(run.StartTime))
	suite.True(first.EndTime.Equal(run.EndTime))

	// Get missing run
	_, err = suite.Database.GetRun("missing")
	suite.True(errors.Is(err, errors.NotFound))

	// List runs
	runs, err := suite.Database.ListRuns("svd", 0)
	suite.NoError(err)
	if suite.Equal(2, len(runs)) {
		suite.Equal(third.ID, runs[0].ID)
		suite.Equal(first.ID, runs[1].ID)
	}
	runs, err = suite.Database.ListRuns("", 2)
	suite.NoError(err)
	if suite.Equal(2, len(runs)) {
		suite.Equal(third.ID, runs[0].ID)
		suite.Equal(second.ID, runs[1].ID)
	}
}

func (suite *baseTestSuite) TestKeyValues() {
	err := suite.Database.Put(LatestKey("svd"), "value1")
	suite.NoError(err)
	err = suite.Database.Put(LatestKey("fm"), "value2")
	suite.NoError(err)
	err = suite.Database.Put(LatestKey("svd"), "value3")
	suite.NoError(err)

	value, err := suite.Database.Get(LatestKey("svd"))
	suite.NoError(err)
	suite.Equal("value3", *value)

	value, err = suite.Database.Get(LatestKey("fm"))
	suite.NoError(err)
	suite.Equal("value2", *value)

	// Test non-existing key
	value, err = suite.Database.Get("non-existing-key")
	suite.NoError(err)
	suite.Nil(value)
}
