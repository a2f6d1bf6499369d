// Package dbscan implements density-based spatial clustering (DBSCAN) over
// caller-defined points.
//
// Responsibilities: region queries, core/border/noise classification and
// breadth-first cluster expansion. Key types: Clusterer, Cluster, Partition.
//
// Points are tracked by their index in the input slice, so value-equal
// duplicates are separate entities. The package holds no mutable state
// between calls; a Clusterer may be shared by goroutines that each cluster
// their own input.
//
// Distance functions, centroids and any domain-specific point types live
// with the callers (see internal/geometry).
package dbscan
