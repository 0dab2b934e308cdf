// Package tech provides the catalog data model for sanigraph.
//
// This package contains value types only. All other internal packages
// import tech; tech imports nothing internal. This keeps the catalog
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Product and Technology are immutable values compared structurally,
//     never by identity; the membership key inside a System is the name
//   - All JSON tags use snake_case
//   - Structure hashes never include mass values - identity is the
//     network shape, not a simulation outcome
package tech
