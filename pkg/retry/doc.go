// Package retry runs an operation again after transient failures.
//
// A Backoff is a plain function from the failure count to the next pause;
// Factor reproduces urllib3's Retry(backoff_factor) schedule used by the
// HTTP transport. Wait is the context-aware sleep shared with the product
// fetcher's empty-result back-off.
package retry
