// Package store is the controller's local bbolt-backed archive: a
// best-effort completion log for terminal jobs, kept so a client can
// still ask what happened to a purged job (§3.2 purge, the sacct-style
// query this package serves). It is not the authoritative multi-cluster
// accounting sink spec.md §1 scopes out — just this controller's own
// history. The raft log and stable store pkg/controller/ha.go runs are a
// separate bbolt file managed entirely by hashicorp/raft-boltdb; this
// package never touches that file.
package store
