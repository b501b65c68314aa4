// Package pattern compiles user supplied path patterns into matchers that are
// cheap enough to run for every file of a bulk indexing pass.
//
// A pattern uses Go regexp syntax, is matched case-insensitively against the
// whole path, and uses "/" as the segment separator. Compilation derives a
// substring prefilter from the literal segments of the pattern:
//
//	.*/node_modules/.*   -> substring check only
//	.*/build/.*/gen/.*   -> "/build/" or "/gen/" must be present, then regexp
//	.*\.min\.js          -> regexp only
//
// The prefilter never changes an answer. It only rejects paths that the
// regexp would reject anyway.
package pattern
