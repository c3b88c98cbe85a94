// SPDX-License-Identifier: MPL-2.0

// Package config loads the server configuration with Viper, using CUE as the
// file format.
//
// The file is config.cue in the user configuration directory (or the current
// directory, or an explicit --config path). It is validated against the
// embedded #Config schema before being merged over the defaults. The master
// endpoint and resource search path can also come from SIMSERVER_MASTER_URI and
// SIMSERVER_RESOURCE_PATH.
package config
