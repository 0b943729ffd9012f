// Package types defines the Cupboard and Table interfaces, the test case
// management entities (products, plans, cases, runs, case-runs, trackers,
// comments and link references), their status vocabularies, and the
// standard errors shared by every backend and service.
package types
