// Package storage writes fetched pages to disk as JSON records.
//
// Each record lands in a directory derived from the page URL:
//
//	<root>/<host with "." replaced by "_">/[<path with "/" replaced by "_">/]page_<YYYYMMDD_HHMMSS>.json
//
// The path component is omitted when the URL has no path. File names have
// one-second resolution, so two records saved to the same directory within the
// same second overwrite each other.
package storage
