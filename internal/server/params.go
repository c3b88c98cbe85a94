// SPDX-License-Identifier: MPL-2.0

package server

import (
	"fmt"
	"strconv"
	"strings"
)

// Param keys understood by Run.
const (
	ParamPause          = "pause"
	ParamRecord         = "record"
	ParamRecordEncoding = "record_encoding"
	ParamRecordPath     = "record_path"
	ParamIterations     = "iterations"
)

// Params are the startup parameters, filled once before Run.
type Params map[string]string

// Bool interprets key as a boolean. Missing keys are false. Besides the forms
// strconv.ParseBool accepts, yes/no and on/off are recognised.
func (p Params) Bool(key string) (bool, error) {
	raw, ok := p[key]
	if !ok {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "on":
		return true, nil
	case "no", "off", "":
		return false, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("param %s: %q is not a boolean", key, raw)
	}
	return v, nil
}

// Iterations returns the iteration limit. Zero means unlimited; an unparsable
// value also yields zero along with the error.
func (p Params) Iterations() (uint64, error) {
	raw, ok := p[ParamIterations]
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("param %s: %q is not a non-negative integer", ParamIterations, raw)
	}
	return n, nil
}

