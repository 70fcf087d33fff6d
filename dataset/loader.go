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

package dataset

import (
	"bufio"
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/gorse-io/reco/base"
	"github.com/juju/errors"
)

// LoadRatingCSV loads ratings from a CSV file. Each record is
// "user,item,rating[,weight]". User and item identifiers are mapped to dense
// indices by new dictionaries.
func LoadRatingCSV(path string, sep rune, header bool) (*RatingSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	return ReadRatingCSV(file, sep, header, NewFreqDict(), NewFreqDict())
}

// ReadRatingCSV reads ratings from a CSV stream using the given dictionaries.
// Sharing dictionaries between files keeps indices consistent.
func ReadRatingCSV(r io.Reader, sep rune, header bool, userDict, itemDict *FreqDict) (*RatingSet, error) {
	reader := csv.NewReader(r)
	reader.Comma = sep
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true
	set := &RatingSet{UserDict: userDict, ItemDict: itemDict}
	for lineNumber := 1; ; lineNumber++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		if header && lineNumber == 1 {
			continue
		}
		if len(record) < 3 || len(record) > 4 {
			return nil, errors.NotValidf("line %d: expect 3 or 4 fields but get %d", lineNumber, len(record))
		}
		target, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			return nil, errors.Annotatef(err, "line %d", lineNumber)
		}
		rating := Rating{
			UserIndex: userDict.Id(strings.TrimSpace(record[0])),
			ItemIndex: itemDict.Id(strings.TrimSpace(record[1])),
			Target:    target,
		}
		if len(record) == 4 {
			if rating.Weight, err = strconv.ParseFloat(strings.TrimSpace(record[3]), 64); err != nil {
				return nil, errors.Annotatef(err, "line %d", lineNumber)
			}
		}
		if err = validateTarget(rating.Target, rating.Weight); err != nil {
			return nil, errors.Annotatef(err, "line %d", lineNumber)
		}
		set.Ratings = append(set.Ratings, rating)
	}
	set.NumUsers = userDict.Count()
	set.NumItems = itemDict.Count()
	return set, nil
}

// LoadLibFMFile loads samples from a libFM format file. Each line is
// "target index:value index:value ...". The feature space size is one more
// than the largest index.
func LoadLibFMFile(path string) (*FeatureSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	return ReadLibFM(file, 0)
}

// ReadLibFM reads samples from a libFM format stream. The feature space size is
// the larger of minDim and one more than the largest index.
func ReadLibFM(r io.Reader, minDim int32) (*FeatureSet, error) {
	type entry struct {
		indices []int32
		values  []float64
		target  float64
	}
	var entries []entry
	dim := minDim
	scanner := bufio.NewScanner(r)
	for lineNumber := 1; scanner.Scan(); lineNumber++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		// fetch target
		target, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, errors.Annotatef(err, "line %d", lineNumber)
		}
		// fetch features
		e := entry{target: target}
		for _, field := range fields[1:] {
			k, v, found := strings.Cut(field, ":")
			if !found {
				return nil, errors.NotValidf("line %d: feature %q", lineNumber, field)
			}
			index, err := strconv.ParseInt(k, 10, 32)
			if err != nil {
				return nil, errors.Annotatef(err, "line %d", lineNumber)
			}
			if index < 0 {
				return nil, errors.NotValidf("line %d: negative feature index %d", lineNumber, index)
			}
			if index >= math.MaxInt32 {
				return nil, errors.NotValidf("line %d: feature index %d exceeds %d", lineNumber, index, math.MaxInt32-1)
			}
			value, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, errors.Annotatef(err, "line %d", lineNumber)
			}
			e.indices = append(e.indices, int32(index))
			e.values = append(e.values, value)
			dim = max(dim, int32(index)+1)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	set := &FeatureSet{Dim: dim, Samples: make([]Sample, 0, len(entries))}
	for i, e := range entries {
		features, err := base.NewSparseVector(dim, e.indices, e.values)
		if err != nil {
			return nil, errors.Annotatef(err, "sample %d", i)
		}
		set.Samples = append(set.Samples, Sample{Features: features, Target: e.target})
	}
	return set, nil
}
