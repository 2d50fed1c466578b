// Package model defines the core data structures used throughout sitecrawl.
//
// This package contains the following main types:
//   - PageRecord: One fetched page as it is written to disk
//   - LinkRecord: An outbound link discovered on a page
//   - ImageRecord: An embedded image discovered on a page
//   - Summary: The outcome of a single crawl run
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The crawler, storage, database and report packages all need
// these types, so centralizing them prevents import cycles.
package model
