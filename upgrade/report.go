/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package upgrade

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type report struct {
	Facts `yaml:",inline"`
	Error string `yaml:"error,omitempty"`
}

// MarshalReport renders the facts of a run, and the error it ended with, as YAML.
func MarshalReport(f *Facts, runErr error) ([]byte, error) {
	r := report{Facts: *f}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	return yaml.Marshal(r)
}

// WriteReport writes the YAML report of a run to path.
func WriteReport(path string, f *Facts, runErr error) error {
	data, err := MarshalReport(f, runErr)
	if err != nil {
		return errors.Wrap(err, "while marshalling report")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "while writing report to %s", path)
	}
	return nil
}
