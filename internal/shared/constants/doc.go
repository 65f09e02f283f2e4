// Package constants centralizes the timing defaults and list caps shared by
// the grading poller, the transparency normalizer and the summary.
//
// The cobra layer reads these as config defaults; the core packages fall back
// to them when a zero value is configured.
package constants
