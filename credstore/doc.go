// Package credstore persists the current access/refresh credential pair.
//
// # Storage model
//
// A [Store] holds zero or one [Pair] under a fixed key inside a namespace. The
// [Sealed] implementation encodes the pair with a versioned binary codec,
// encrypts it with a [Sealer] and writes the ciphertext to a [Backend]
// (memory, file, Redis or Postgres). Backends only see opaque bytes.
//
// # Architecture boundaries
//
// This package owns encoding, sealing and backend I/O. It does NOT decide when
// credentials are rotated or cleared; that belongs to the refresh coordinator
// and the client.
//
// # What this package must NOT do
//
//   - Import goSession, refresh, or session (no upward imports).
//   - Log or otherwise expose token material.
//   - Leave a stale pair readable after a failed write.
package credstore
