// Package scanner walks a source tree and yields the files eligible for indexing.
//
// Ignore rules come in two forms, evaluated uniformly by Matcher:
//
//	scanner.Literal("node_modules") // any path segment or base name equal to it
//	scanner.SuffixGlob(".lock")     // base names ending in ".lock" ("*.lock")
//
// Directories matching a rule are pruned before descent, so the cost of a
// scan does not grow with the size of excluded trees. Unreadable subtrees
// are recorded in Result.Skipped and the scan continues.
package scanner
