// Package batch crawls several seeds concurrently.
//
// Every seed gets its own crawl, built fresh by a factory, so no frontier,
// visited set or page budget is shared between seeds. A failing seed does
// not stop the others.
package batch
