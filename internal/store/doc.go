// Package store persists the bridge inventory: device identities, learned or
// imported IR commands and the persisted log level.
//
// Everything lives in the [devices], [commands] and [logging] sections of
// the config document. Every mutation rewrites the whole file before
// returning; a failed write leaves memory unchanged.
//
// Device identities are kept as raw text ("<hex-type> <host> <mac>"); parsing
// belongs to the registry. Commands are stored as lower-case hex.
package store
