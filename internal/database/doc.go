// Package database provides the SQLite crawl index for sitecrawl.
//
// The index records, per crawl run:
//   - the run itself (seed, budget, timing, outcome and the JSON summary)
//   - every visited page (title, detected language, content hash, record path)
//   - every failure (kind, message, attempt)
//
// Page content is not stored here; it lives in the JSON records written by
// the storage package. Runs are identified by random UUIDs so that indexes
// from different machines can be merged.
//
// SQLite is used through modernc.org/sqlite, a CGO-free driver, with WAL
// enabled by default.
package database
