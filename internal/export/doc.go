// Package export renders completed systems and their mass-flow
// summaries for external consumption: GraphViz DOT graphs, CSV summary
// tables, and NDJSON system streams.
//
// All writers produce byte-deterministic output for a given system so
// artifacts can be diffed and golden-tested.
package export
