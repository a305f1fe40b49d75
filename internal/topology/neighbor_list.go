package topology

// NeighborList holds, for each particle, the indices of the particles inside
// its interaction radius. Lists never include the particle itself.
type NeighborList [][]int

// Len returns the number of particles covered.
func (n NeighborList) Len() int { return len(n) }

// Of returns the neighbors of particle i, or nil when i is out of range.
func (n NeighborList) Of(i int) []int {
	if i < 0 || i >= len(n) {
		return nil
	}
	return n[i]
}

// Contains reports whether j is listed as a neighbor of i.
func (n NeighborList) Contains(i, j int) bool {
	for _, k := range n.Of(i) {
		if k == j {
			return true
		}
	}
	return false
}

// Mean returns the average neighbor count.
func (n NeighborList) Mean() float64 {
	if len(n) == 0 {
		return 0
	}
	total := 0
	for _, l := range n {
		total += len(l)
	}
	return float64(total) / float64(len(n))
}
