// Package internaldefs holds the family definitions and the Gather step
// shared by the Prometheus and OTel exporters, so both publish identical
// series from one read of the source.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O beyond what the Source does.
package internaldefs
