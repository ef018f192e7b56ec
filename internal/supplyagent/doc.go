// Package supplyagent turns a worker's material-need message into a
// persisted supply request and a supervisor-ready summary.
//
// A run threads a State through four stages:
//
//	detect -> extract -> history -> format
//
// Each stage returns only the fields it computed; Agent.Run merges them
// into the State and stops after detect when the message is not a supply
// request, or after extract when no entities could be read. History
// lookup is an enrichment: its failure is logged and the run continues.
package supplyagent
