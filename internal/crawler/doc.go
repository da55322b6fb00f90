// Package crawler implements the single-task traversal engine: selector
// compilation, page loading, extraction to an append-only sink, link
// resolution over the crawl list and its sub-page stack, and the politeness
// throttle between fetches.
//
// A Task is built once from a validated Config and driven by Process until the
// list is exhausted, an error aborts the run, or Stop is called. Only one page
// is ever in flight.
package crawler
