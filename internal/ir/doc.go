// Package ir provides the value types shared by every reasoner package:
// identifiers, concepts, attribute values and immutable concept maps.
//
// This package imports nothing internal. All other internal packages import
// ir, which keeps it the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float values - attribute values are strings, longs or booleans
//   - ConceptMaps are immutable; composition always returns a new map
//   - Content ids (attribute iids, inferred relation iids, explanation ids,
//     concept map hashes) use RFC 8785 canonical JSON and SHA-256 with
//     domain separation
package ir
