// Package reservation implements the C7 reservation and license
// ledgers: named time-bounded node claims restricted to specific
// users/accounts, and a simple counted-resource ledger for licenses
// consumed per job.
package reservation
