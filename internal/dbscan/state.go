package dbscan

// PointState is the visitation status of one point during a single
// clustering call.
type PointState uint8

const (
	Unvisited PointState = iota
	Noise                // provisional until the point is reached from a core point
	Clustered
)

func (s PointState) String() string {
	switch s {
	case Unvisited:
		return "unvisited"
	case Noise:
		return "noise"
	case Clustered:
		return "clustered"
	default:
		return "unknown"
	}
}
