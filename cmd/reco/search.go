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
	"sort"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/gorse-io/reco/base/log"
	"github.com/gorse-io/reco/config"
	"github.com/gorse-io/reco/model"
	"github.com/gorse-io/reco/model/cf"
	"github.com/gorse-io/reco/model/ctr"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var searchCommand = &cobra.Command{
	Use:   "search",
	Short: "Search hyper-parameters minimizing validation RMSE",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd.Flags())
		if err != nil {
			return errors.Trace(err)
		}
		if cmd.Flags().Changed("trials") {
			conf.Training.SearchTrials, _ = cmd.Flags().GetInt("trials")
		}
		_, err = search(conf, cmd.OutOrStdout())
		return err
	},
}

func init() {
	rootCommand.AddCommand(searchCommand)
	searchCommand.Flags().String("model", config.ModelSVD, "model to search (svd or fm)")
	searchCommand.Flags().String("train", "", "training data path")
	searchCommand.Flags().String("valid", "", "validation data path")
	searchCommand.Flags().String("format", config.FormatCSV, "data format (csv or libfm)")
	searchCommand.Flags().Int("trials", 10, "number of trials")
}

type objective interface {
	Objective(trial goptuna.Trial) (float64, error)
	Result() model.SearchResult
}

func search(conf *config.Config, out io.Writer) (model.SearchResult, error) {
	data, err := loadData(conf.Data)
	if err != nil {
		return model.SearchResult{}, errors.Trace(err)
	}
	var o objective
	switch conf.Training.Model {
	case config.ModelSVD:
		if data.trainRatings == nil {
			return model.SearchResult{}, errors.NotSupportedf("svd on libfm data")
		}
		if data.validRatings.Count() == 0 {
			return model.SearchResult{}, errors.NotValidf("search without validation data")
		}
		o = cf.NewModelSearch(&conf.Training.Params, data.trainRatings, data.validRatings)
	case config.ModelFM:
		trainSet, validSet := data.features()
		if validSet.Count() == 0 {
			return model.SearchResult{}, errors.NotValidf("search without validation data")
		}
		o = ctr.NewModelSearch(&conf.Training.Params, trainSet, validSet)
	default:
		return model.SearchResult{}, errors.NotSupportedf("model %s", conf.Training.Model)
	}
	study, err := goptuna.CreateStudy("reco-"+conf.Training.Model,
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMinimize),
		goptuna.StudyOptionSampler(tpe.NewSampler()))
	if err != nil {
		return model.SearchResult{}, errors.Trace(err)
	}
	if err = study.Optimize(o.Objective, conf.Training.SearchTrials); err != nil {
		return model.SearchResult{}, errors.Trace(err)
	}
	result := o.Result()
	log.Logger().Info("complete searching", zap.String("model", conf.Training.Model),
		zap.Int("trials", result.Trials), zap.Float64("valid_rmse", result.Score), zap.Any("params", result.Params))

	// render the best hyper-parameters
	table := tablewriter.NewWriter(out)
	table.Header("Param", "Value")
	names := lo.Keys(result.Params)
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	for _, name := range names {
		if err = table.Append([]string{string(name), fmt.Sprint(result.Params[name])}); err != nil {
			return result, errors.Trace(err)
		}
	}
	if err = table.Append([]string{"valid RMSE", fmt.Sprintf("%.6f", result.Score)}); err != nil {
		return result, errors.Trace(err)
	}
	return result, errors.Trace(table.Render())
}
