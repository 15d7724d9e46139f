// Package cache implements and compares five cache-stampede mitigation
// strategies — basic, jitter, jitter-swr, jitter-lock, and full-protection —
// sharing one contract: given a key and a loader, return a value while
// honoring the strategy's stampede-mitigation guarantees.
//
// Each strategy owns a disjoint Redis key namespace (product:<name>:<key>)
// so they can be benchmarked side by side against the same logical keys
// without interfering with one another.
package cache
