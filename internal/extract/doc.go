// Package extract pulls links, images and text out of raw HTML.
//
// Extraction is pure: it never touches the network and holds no state between
// calls, so a single Extractor can be shared by concurrent crawl workers.
//
// Design decision: We parse with golang.org/x/net/html and query the tree
// with goquery rather than matching tags with regular expressions because:
//  1. Malformed HTML, which is common on the web, is repaired the same way a
//     browser would repair it
//  2. The parent of an anchor (its surrounding context) is a tree relation
//     that regular expressions cannot express
//
// Plain text and Markdown renderings are produced with bluemonday and
// html-to-markdown respectively.
package extract
