package dbscan

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func randomPoints(seed uint64, n int, span float64) []pt {
	rng := rand.New(rand.NewPCG(seed, 0x5eed))
	return randomPointsFrom(rng, n, span)
}

// randomPointsFrom draws n points in [0, span)^2, repeating roughly one in
// ten so value-equal duplicates are always exercised.
func randomPointsFrom(rng *rand.Rand, n int, span float64) []pt {
	points := make([]pt, n)
	for i := range points {
		if i > 0 && rng.IntN(10) == 0 {
			points[i] = points[rng.IntN(i)]
			continue
		}
		points[i] = pt{X: rng.Float64() * span, Y: rng.Float64() * span}
	}
	return points
}

// corePoints classifies every point by brute force.
func corePoints(points []pt, eps float64, minPts int) []bool {
	core := make([]bool, len(points))
	for i := range points {
		count := 0
		for j := range points {
			if d, _ := points[i].Distance(points[j]); d <= eps {
				count++
			}
		}
		core[i] = count >= minPts
	}
	return core
}

// shape reduces a partition to the index-level data compared across runs.
type shape struct {
	Labels  []int
	Members [][]int
	Noise   []int
}

func shapeOf(p *Partition[pt]) shape {
	s := shape{Labels: p.Labels, Noise: p.Noise}
	for _, c := range p.Clusters {
		s.Members = append(s.Members, c.Indices)
	}
	return s
}

// checkPartition asserts the structural and DBSCAN-specific invariants.
func checkPartition(t *testing.T, points []pt, eps float64, minPts int, p *Partition[pt]) {
	t.Helper()
	n := len(points)
	require.Len(t, p.Labels, n)

	owner := make(map[int]int, n)
	for id, c := range p.Clusters {
		if c.ID != id {
			t.Errorf("cluster at position %d has ID %d", id, c.ID)
		}
		if c.Len() == 0 {
			t.Errorf("cluster %d is empty", id)
		}
		if len(c.Members) != len(c.Indices) {
			t.Fatalf("cluster %d: %d members but %d indices", id, len(c.Members), len(c.Indices))
		}
		for k, idx := range c.Indices {
			if prev, dup := owner[idx]; dup {
				t.Errorf("point %d in clusters %d and %d", idx, prev, id)
			}
			owner[idx] = id
			if c.Members[k] != points[idx] {
				t.Errorf("cluster %d member %d does not match input point %d", id, k, idx)
			}
			if p.Labels[idx] != id {
				t.Errorf("label of point %d = %d, want %d", idx, p.Labels[idx], id)
			}
		}
	}

	for k, idx := range p.Noise {
		if k > 0 && p.Noise[k-1] >= idx {
			t.Errorf("noise indices not ascending: %v", p.Noise)
		}
		if _, clustered := owner[idx]; clustered {
			t.Errorf("point %d is both noise and clustered", idx)
		}
		if p.Labels[idx] != NoiseLabel {
			t.Errorf("noise point %d has label %d", idx, p.Labels[idx])
		}
	}
	if len(owner)+len(p.Noise) != n {
		t.Errorf("clustered %d + noise %d != %d points", len(owner), len(p.Noise), n)
	}

	core := corePoints(points, eps, minPts)
	hasCore := make([]bool, len(p.Clusters))
	for i := range points {
		if !core[i] {
			continue
		}
		if p.Labels[i] == NoiseLabel {
			t.Errorf("core point %d marked noise", i)
			continue
		}
		hasCore[p.Labels[i]] = true
		for j := range points {
			d, _ := points[i].Distance(points[j])
			if d > eps {
				continue
			}
			if p.Labels[j] == NoiseLabel {
				t.Errorf("point %d is within eps of core %d but marked noise", j, i)
			}
			if core[j] && p.Labels[j] != p.Labels[i] {
				t.Errorf("neighbouring cores %d and %d split across clusters", i, j)
			}
		}
	}
	for id, ok := range hasCore {
		if !ok {
			t.Errorf("cluster %d has no core point", id)
		}
	}
}

func TestCluster_Properties(t *testing.T) {
	for seed := uint64(1); seed <= 60; seed++ {
		rng := rand.New(rand.NewPCG(seed, 42))
		points := randomPointsFrom(rng, rng.IntN(90), 10)
		eps := 0.2 + rng.Float64()*2.5
		minPts := 1 + rng.IntN(6)

		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			c := mustNew(t, eps, minPts)

			first, err := c.Partition(points)
			require.NoError(t, err)
			checkPartition(t, points, eps, minPts, first)

			second, err := c.Partition(points)
			require.NoError(t, err)
			if diff := cmp.Diff(shapeOf(first), shapeOf(second)); diff != "" {
				t.Errorf("repeat run differs (-first +second):\n%s", diff)
			}
		})
	}
}

func TestCluster_MonotonicEps(t *testing.T) {
	for seed := uint64(1); seed <= 40; seed++ {
		rng := rand.New(rand.NewPCG(seed, 7))
		points := randomPointsFrom(rng, 20+rng.IntN(60), 10)
		eps1 := 0.3 + rng.Float64()*1.5
		eps2 := eps1 * (1 + rng.Float64())
		minPts := 2 + rng.IntN(4)

		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			small, err := mustNew(t, eps1, minPts).Partition(points)
			require.NoError(t, err)
			large, err := mustNew(t, eps2, minPts).Partition(points)
			require.NoError(t, err)

			// Core points stay core and stay density-connected as eps grows.
			core := corePoints(points, eps1, minPts)
			for i := range points {
				for j := i + 1; j < len(points); j++ {
					if !core[i] || !core[j] || small.Labels[i] != small.Labels[j] {
						continue
					}
					if large.Labels[i] != large.Labels[j] {
						t.Errorf("cores %d and %d together at eps=%g but split at eps=%g", i, j, eps1, eps2)
					}
				}
			}

			// Anything clustered at the smaller radius stays clustered.
			for i := range points {
				if small.Labels[i] != NoiseLabel && large.Labels[i] == NoiseLabel {
					t.Errorf("point %d clustered at eps=%g but noise at eps=%g", i, eps1, eps2)
				}
			}
			require.LessOrEqual(t, len(large.Noise), len(small.Noise))
		})
	}
}

func TestCluster_GrowingEpsMergesClusters(t *testing.T) {
	points := line(0, 0.5, 1, 4, 4.5, 5)

	small, err := mustNew(t, 0.5, 2).Cluster(points)
	require.NoError(t, err)
	require.Len(t, small, 2)

	large, err := mustNew(t, 3, 2).Cluster(points)
	require.NoError(t, err)
	require.Len(t, large, 1)
	require.Equal(t, 6, large[0].Len())
}

func TestScanQuerier_ParallelMatchesSequential(t *testing.T) {
	points := randomPoints(99, 600, 20)

	seq, err := mustNew(t, 0.8, 4).Partition(points)
	require.NoError(t, err)
	par, err := mustNew(t, 0.8, 4, WithWorkers(4)).Partition(points)
	require.NoError(t, err)

	if diff := cmp.Diff(shapeOf(seq), shapeOf(par)); diff != "" {
		t.Errorf("parallel partition differs (-sequential +parallel):\n%s", diff)
	}

	// Neighbour lists themselves must match, not just the outcome.
	metric := selfMetric[pt]{}
	for _, idx := range []int{0, 17, 299, 599} {
		want, err := ScanQuerier[pt]{}.Neighbors(points, idx, 0.8, metric)
		require.NoError(t, err)
		got, err := ScanQuerier[pt]{Workers: 4}.Neighbors(points, idx, 0.8, metric)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("neighbours of %d differ:\n%s", idx, diff)
		}
	}
}

func TestScanQuerier_ParallelDistanceError(t *testing.T) {
	cause := errors.New("bad pair")
	points := randomPoints(5, 400, 10)
	points[333] = pt{X: -1, Y: -1}

	metric := MetricFunc[pt](func(a, b pt) (float64, error) {
		if a.X < 0 || b.X < 0 {
			return 0, cause
		}
		return a.Distance(b)
	})

	_, err := ScanQuerier[pt]{Workers: 4}.Neighbors(points, 0, 1, metric)
	require.ErrorIs(t, err, cause)

	var distErr *DistanceError
	require.ErrorAs(t, err, &distErr)
	require.Equal(t, 0, distErr.I)
	require.Equal(t, 333, distErr.J)
}

func BenchmarkCluster(b *testing.B) {
	points := randomPoints(1, 2000, 50)
	for _, workers := range []int{1, 4} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			c, err := New[pt](1.0, 5, WithWorkers(workers))
			if err != nil {
				b.Fatal(err)
			}
			b.ResetTimer()
			for b.Loop() {
				if _, err := c.Cluster(points); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkScanQuerier(b *testing.B) {
	points := randomPoints(2, 5000, 50)
	metric := selfMetric[pt]{}
	b.ReportAllocs()
	for b.Loop() {
		if _, err := (ScanQuerier[pt]{}).Neighbors(points, 0, math.Sqrt2, metric); err != nil {
			b.Fatal(err)
		}
	}
}
