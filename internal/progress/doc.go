// Package progress carries crawl run milestones from the traversal loop to
// observers. The task emits Events through a non-blocking Hub, which batches
// them on a background goroutine and fans them out to sinks such as the
// terminal progress bar, structured logs or Prometheus collectors.
package progress
