// Package commands implements the cashsplitter command line.
//
// Groups live in a local SQLite database. Every command that changes a group
// loads it, applies one ledger operation and stores the new value; push and
// pull exchange groups with a sync relay and merge the result locally.
package commands
