// Package supply holds the domain model shared by the supply request
// pipeline and the approval state machine: request, order, message and
// reply records, the item and unit normalization tables, the static
// supplier directory, and the error taxonomy.
package supply
