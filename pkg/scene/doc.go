// SPDX-License-Identifier: MPL-2.0

// Package scene reads and writes scene documents.
//
// A scene document holds zero or more world sections. Each world may carry a
// physics section, a list of models (with their sensors) and named physics
// presets. Documents are written in CUE; YAML is accepted on input. Every
// format is validated against the embedded #Scene schema.
package scene
