package dbscan

// NoiseLabel is the Partition label of a point that belongs to no cluster.
const NoiseLabel = -1

// Cluster is one density-connected group. Members are kept in the order they
// were added; Indices[i] is the input position of Members[i].
type Cluster[T any] struct {
	ID      int // Zero-based discovery order
	Members []T
	Indices []int
}

// Len returns the number of members.
func (c Cluster[T]) Len() int {
	return len(c.Indices)
}

func (c *Cluster[T]) add(points []T, idx int) {
	c.Members = append(c.Members, points[idx])
	c.Indices = append(c.Indices, idx)
}

// Partition is the full outcome of one clustering call.
type Partition[T any] struct {
	Clusters []Cluster[T]
	// Labels holds the cluster ID of every input point, or NoiseLabel.
	Labels []int
	// Noise lists the input positions of noise points in ascending order.
	Noise []int
}

// ClusterSizes returns the member count of each cluster in discovery order.
func (p *Partition[T]) ClusterSizes() []int {
	sizes := make([]int, len(p.Clusters))
	for i, c := range p.Clusters {
		sizes[i] = c.Len()
	}
	return sizes
}
