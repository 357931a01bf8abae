// Package store provides the durable slot the mutation queue persists into.
//
// The slot holds one serialized JSON array of queue items under a single
// name. Three implementations share the contract:
//
//   - FileStore: a JSON file written atomically, the default for desktop
//     and CLI hosts.
//   - SQLiteStore: a single-row slot table in a SQLite database, for hosts
//     that already carry a local database.
//   - MemoryStore: process-local, for tests and the scenario harness.
//
// The contract is deliberately forgiving: a missing slot is an empty queue,
// and corrupted slot content is logged and treated as empty. Neither is
// ever surfaced to the caller of a queue mutation.
//
// The slot is not safe against two processes writing it concurrently; the
// last writer wins. SQLite's busy_timeout narrows the window but does not
// close it, because each save replaces the whole payload.
package store
