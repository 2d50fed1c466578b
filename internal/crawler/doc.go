// Package crawler drives a breadth-first crawl bounded by a page budget and
// the seed's scope.
//
// # Architecture
//
// A Controller owns the frontier queue and the visited set for exactly one
// run. The goroutine that calls Run is the only one that touches either.
// Workers only fetch and extract; they hand a typed result back to Run, which
// marks the page visited, persists it and enqueues its eligible links.
//
// With one worker (the default) the traversal is strictly sequential: pop,
// fetch, persist, enqueue. With more workers, each URL is claimed into an
// in-flight set before dispatch so no two workers ever fetch the same URL,
// and in-flight fetches count against the budget.
//
// # Failures
//
// A fetch or parse failure is recorded in the summary and the crawl moves on.
// The URL is not marked visited, so it is attempted again if another page
// links to it (see WithMaxAttempts to bound this). A persistence failure stops
// the crawl; Run returns the partial summary together with a
// *PersistenceError.
//
// # Usage
//
//	ctrl, err := crawler.New(crawler.Config{
//		Seed:      "https://example.com/docs",
//		MaxPages:  10,
//		OutputDir: "saved_pages",
//	}, crawler.WithWorkers(4))
//	if err != nil {
//		return err
//	}
//	summary, err := ctrl.Run(ctx)
package crawler
