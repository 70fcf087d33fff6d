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
	"io"

	"github.com/gorse-io/reco/base/encoding"
	"github.com/gorse-io/reco/cmd/version"
	"github.com/gorse-io/reco/dataset"
	"github.com/gorse-io/reco/model/cf"
	"github.com/gorse-io/reco/model/ctr"
	"github.com/juju/errors"
)

// archive is a trained model with the dictionaries of its training data.
// Dictionaries are absent for models trained on libFM files.
type archive struct {
	svd      *cf.SVD
	fm       *ctr.FM
	userDict *dataset.FreqDict
	itemDict *dataset.FreqDict
}

func (a *archive) modelName() string {
	if a.svd != nil {
		return "svd"
	}
	return "fm"
}

func (a *archive) Marshal(w io.Writer) error {
	if err := encoding.WriteInt64(w, version.ArchiveVersion); err != nil {
		return errors.Trace(err)
	}
	var err error
	if a.svd != nil {
		err = cf.MarshalModel(w, a.svd)
	} else {
		err = ctr.MarshalModel(w, a.fm)
	}
	if err != nil {
		return errors.Trace(err)
	}
	if err = writeDict(w, a.userDict); err != nil {
		return errors.Trace(err)
	}
	return writeDict(w, a.itemDict)
}

func (a *archive) Unmarshal(r io.Reader) error {
	var archiveVersion int64
	if err := encoding.ReadInt64(r, &archiveVersion); err != nil {
		return errors.Trace(err)
	}
	if archiveVersion != version.ArchiveVersion {
		return errors.NotSupportedf("archive version %d", archiveVersion)
	}
	name, err := encoding.ReadString(r)
	if err != nil {
		return errors.Trace(err)
	}
	switch name {
	case "svd":
		a.svd = cf.NewSVD(nil)
		err = a.svd.Unmarshal(r)
	case "fm":
		a.fm = ctr.NewFM(nil)
		err = a.fm.Unmarshal(r)
	default:
		return errors.NotSupportedf("model %q", name)
	}
	if err != nil {
		return errors.Trace(err)
	}
	if a.userDict, err = readDict(r); err != nil {
		return errors.Trace(err)
	}
	a.itemDict, err = readDict(r)
	return errors.Trace(err)
}

func writeDict(w io.Writer, dict *dataset.FreqDict) error {
	if dict == nil {
		return encoding.WriteInt64(w, -1)
	}
	names := dict.Strings()
	if err := encoding.WriteInt64(w, int64(len(names))); err != nil {
		return errors.Trace(err)
	}
	for _, name := range names {
		if err := encoding.WriteString(w, name); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func readDict(r io.Reader) (*dataset.FreqDict, error) {
	var n int64
	if err := encoding.ReadInt64(r, &n); err != nil {
		return nil, errors.Trace(err)
	}
	if n < 0 {
		return nil, nil
	}
	names := make([]string, 0, min(n, 1<<20))
	for i := int64(0); i < n; i++ {
		name, err := encoding.ReadString(r)
		if err != nil {
			return nil, errors.Trace(err)
		}
		names = append(names, name)
	}
	return dataset.NewFreqDictFromStrings(names), nil
}
