// SPDX-License-Identifier: MPL-2.0

// Package record writes and replays state logs.
//
// A state log starts with one plain JSON header line. The rest of the file is
// a stream of JSON entries, each holding a full scene document in CUE form,
// compressed with the encoding named in the header (zlib, zstd or txt for none).
// The first entry is the scene the server started with; playback loads it
// inline.
package record
