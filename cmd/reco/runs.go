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
	"time"

	"github.com/gorse-io/reco/storage/meta"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var runsCommand = &cobra.Command{
	Use:   "runs",
	Short: "List training runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd.Flags())
		if err != nil {
			return errors.Trace(err)
		}
		modelName, _ := cmd.Flags().GetString("model")
		limit, _ := cmd.Flags().GetInt("limit")
		database, err := openMeta(conf.Storage)
		if err != nil {
			return errors.Trace(err)
		}
		defer database.Close()
		runs, err := database.ListRuns(modelName, limit)
		if err != nil {
			return errors.Trace(err)
		}
		return renderRuns(cmd.OutOrStdout(), runs)
	},
}

func init() {
	rootCommand.AddCommand(runsCommand)
	runsCommand.Flags().String("model", "", "list runs of a model (svd or fm)")
	runsCommand.Flags().Int("limit", 10, "maximum number of runs")
}

func renderRuns(out io.Writer, runs []*meta.Run) error {
	table := tablewriter.NewWriter(out)
	table.Header("Run", "Model", "Status", "Epochs", "Train RMSE", "Valid RMSE", "Start", "Duration")
	for _, run := range runs {
		duration := "-"
		if !run.EndTime.IsZero() {
			duration = run.EndTime.Sub(run.StartTime).Round(time.Millisecond).String()
		}
		if err := table.Append([]string{
			run.ID,
			run.Model,
			run.Status,
			fmt.Sprint(run.Epochs),
			fmt.Sprintf("%.6f", run.TrainRMSE),
			fmt.Sprintf("%.6f", run.ValidRMSE),
			run.StartTime.Local().Format(time.DateTime),
			duration,
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}
