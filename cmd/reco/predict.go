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
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/gorse-io/reco/base"
	"github.com/gorse-io/reco/config"
	"github.com/gorse-io/reco/storage/blob"
	"github.com/gorse-io/reco/storage/meta"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
)

var predictCommand = &cobra.Command{
	Use:   "predict <user> <item> | predict <index:value>...",
	Short: "Predict with a trained model",
	Long: "Predict the rating of a user and an item, or the target of a sparse feature vector " +
		"if the model was trained on libFM data. The latest run of the model is used by default.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd.Flags())
		if err != nil {
			return errors.Trace(err)
		}
		runId, _ := cmd.Flags().GetString("run")
		a, err := loadArchive(conf, runId)
		if err != nil {
			return errors.Trace(err)
		}
		return predict(cmd.OutOrStdout(), a, args)
	},
}

func init() {
	rootCommand.AddCommand(predictCommand)
	predictCommand.Flags().String("model", config.ModelSVD, "model of the latest run (svd or fm)")
	predictCommand.Flags().String("run", "", "identifier of the run")
}

// loadArchive loads the archive of a run or the latest run of the configured model.
func loadArchive(conf *config.Config, runId string) (*archive, error) {
	database, err := openMeta(conf.Storage)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer database.Close()
	if runId == "" {
		latest, err := database.Get(meta.LatestKey(conf.Training.Model))
		if err != nil {
			return nil, errors.Trace(err)
		}
		if latest == nil {
			return nil, errors.NotFoundf("trained %s model", conf.Training.Model)
		}
		runId = *latest
	}
	run, err := database.GetRun(runId)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if run.Status != meta.StatusCompleted {
		return nil, errors.NotValidf("run %s is %s", run.ID, run.Status)
	}
	store, err := blob.Open(conf.Storage)
	if err != nil {
		return nil, errors.Trace(err)
	}
	a := new(archive)
	if err = blob.Load(store, run.Archive, a.Unmarshal); err != nil {
		return nil, errors.Trace(err)
	}
	return a, nil
}

func predict(out io.Writer, a *archive, args []string) error {
	var (
		prediction float64
		known      bool
	)
	if a.userDict != nil && a.itemDict != nil {
		if len(args) != 2 {
			return errors.NotValidf("expect a user and an item but get %d arguments", len(args))
		}
		userIndex, userFound := a.userDict.Lookup(args[0])
		itemIndex, itemFound := a.itemDict.Lookup(args[1])
		if !userFound {
			userIndex = -1
		}
		if !itemFound {
			itemIndex = -1
		}
		if a.svd != nil {
			prediction, known = a.svd.PredictWithFlag(userIndex, itemIndex)
		} else {
			numUsers := a.userDict.Count()
			var indices []int32
			if userFound {
				indices = append(indices, userIndex)
			}
			if itemFound {
				indices = append(indices, numUsers+itemIndex)
			}
			x := &base.SparseVector{Dim: numUsers + a.itemDict.Count(), Indices: indices, Values: make([]float64, len(indices))}
			for i := range x.Values {
				x.Values[i] = 1
			}
			prediction, known = a.fm.PredictWithFlag(x)
			known = known && userFound && itemFound
		}
	} else {
		if a.fm == nil {
			return errors.NotValidf("svd archive without dictionaries")
		}
		x, err := parseFeatures(args, a.fm.NumFeatures())
		if err != nil {
			return errors.Trace(err)
		}
		if prediction, err = a.fm.Predict(x); err != nil {
			return errors.Trace(err)
		}
		_, known = a.fm.PredictWithFlag(x)
	}
	if known {
		_, err := fmt.Fprintf(out, "%g\n", prediction)
		return errors.Trace(err)
	}
	_, err := fmt.Fprintf(out, "%g (cold start)\n", prediction)
	return errors.Trace(err)
}

// parseFeatures parses "index:value" pairs.
func parseFeatures(args []string, dim int32) (*base.SparseVector, error) {
	indices := make([]int32, 0, len(args))
	values := make([]float64, 0, len(args))
	for _, arg := range args {
		k, v, found := strings.Cut(arg, ":")
		if !found {
			return nil, errors.NotValidf("feature %q", arg)
		}
		index, err := strconv.ParseInt(k, 10, 32)
		if err != nil {
			return nil, errors.Annotatef(err, "feature %q", arg)
		}
		value, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, errors.Annotatef(err, "feature %q", arg)
		}
		indices = append(indices, int32(index))
		values = append(values, value)
	}
	// indices beyond the feature space are rejected by the model
	x, err := base.NewSparseVector(math.MaxInt32, indices, values)
	if err != nil {
		return nil, errors.Trace(err)
	}
	x.Dim = dim
	return x, nil
}
