// Package pagination fetches the partitions of a finished search job.
//
// The reporting API shards a job's results into partitions that are read
// one page request at a time. This package walks a resolved partition
// list strictly in order, one request at a time, and concatenates the
// returned records so that partition order and in-partition order are
// preserved.
//
// Example usage:
//
//	fetcher := pagination.NewFetcher(searchClient.PageFetcher(job), pagination.DefaultConfig(), logger)
//	orders, err := fetcher.FetchAll(ctx, []int{0, 1, 2})
//
// The fetcher:
//   - Requests partitions in the order given (callers pass them sorted)
//   - Stops at the first failing partition; nothing fetched so far is returned
//   - Checks for context cancellation between partitions
//   - Logs progress every ProgressEvery partitions
package pagination
