// Package canon provides RFC 8785 canonical JSON and domain-separated
// SHA-256 hashing for ephvault.
//
// Canonical bytes are the only input ever hashed: vault addresses and
// event IDs must be identical across processes and replays, so map
// ordering, HTML escaping and Unicode normalization cannot be left to
// encoding/json.
//
// canon imports nothing internal.
package canon
