// Package synth implements the network synthesis engine: an exhaustive
// depth-first enumeration of every complete System reachable from a
// source technology by matching open outputs to technology inputs.
//
// The search is single-threaded and recursion-based. Sibling branches
// never share mutable state: each branch extends a private clone of its
// System. Completed systems are emitted to an injected ResultSink in
// discovery order; ordering is not significant.
package synth
