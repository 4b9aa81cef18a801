// Package analysis groups content hashes by the exact set of domains that
// produced them.
//
// It works offline over the store: BuildIndex maps every content hash to
// the domain labels whose records carry it, and GroupByDomainSet clusters
// hashes whose domain sets are identical. Only sets of two or more domains
// are reported, largest groups first.
package analysis
