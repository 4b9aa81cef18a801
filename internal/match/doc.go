// Package match finds duplicates of a freshly built fingerprint among the
// fingerprints already in the store.
//
// Three rules are checked against every stored fingerprint except the one
// with the same source:
//
//	content-hash     both prefix hashes present and equal
//	etag             both normalized etags present and equal
//	boundary-sample  the stored boundary sample occurs in the new prefix
//
// Each rule that fires yields its own model.MatchEvent. Boundary samples
// made mostly of zero digits are padding and never match.
package match
