// Package main provides the entry point for the sitecrawl CLI.
//
// sitecrawl is a scoped breadth-first web crawler. Starting from a seed URL it
// follows links that stay on the seed's host and below the seed's path, and
// saves every fetched page as a JSON record.
//
// Usage:
//
//	sitecrawl crawl https://example.com/docs
//	sitecrawl crawl --max-pages 50 --dry-run https://example.com/docs
//	sitecrawl inspect https://example.com
//	sitecrawl history
//
// See --help for all available options.
package main

// main is the entry point for sitecrawl.
func main() {
	Execute()
}
