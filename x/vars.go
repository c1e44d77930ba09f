/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package x

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// ParseVars parses a string of variables. It is first parsed as JSON and, if
// that fails, as YAML. Either way the result must be a mapping. An empty input
// (or a YAML document with no content) yields an empty map.
func ParseVars(s string) (map[string]interface{}, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == `""` {
		return map[string]interface{}{}, nil
	}

	var vars map[string]interface{}
	jsonErr := json.Unmarshal([]byte(s), &vars)
	if jsonErr == nil && vars != nil {
		return vars, nil
	}
	if jsonErr == nil {
		jsonErr = errors.New("input is not a mapping")
	}

	var doc interface{}
	if yamlErr := yaml.Unmarshal([]byte(s), &doc); yamlErr != nil {
		return nil, errors.Errorf("cannot parse as JSON (error: %v) or YAML (error: %v)",
			jsonErr, yamlErr)
	}
	if doc == nil {
		return map[string]interface{}{}, nil
	}
	vars, ok := doc.(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("input type `%T` is not a mapping", doc)
	}
	return vars, nil
}

// ToBool converts v to a bool. Bools are returned as is. Any other value is
// formatted as a string and matched case-insensitively against "true", "1",
// "t" and "false", "0", "f". Anything else, nil included, is an error.
func ToBool(v interface{}) (bool, error) {
	switch v := v.(type) {
	case bool:
		return v, nil
	case nil:
		return false, errors.New("unable to convert <nil> to boolean")
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return false, errors.Wrapf(err, "unable to convert %v to boolean", v)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "t":
		return true, nil
	case "false", "0", "f":
		return false, nil
	}
	return false, errors.Errorf("unable to convert %q to boolean", s)
}
