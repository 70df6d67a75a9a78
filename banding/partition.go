package banding

import (
	"math"

	"github.com/biogo/store/llrb"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidPartitions is the cause of every ParsePartitions failure:
	// empty, NaN, duplicate, or out-of-order boundary lists.
	ErrInvalidPartitions = errors.New("invalid score partition boundaries")
	// ErrPartitionNotFound means a score fell outside every registered band.
	// Since the lowest band extends to -infinity, only NaN scores reach this.
	ErrPartitionNotFound = errors.New("score does not fall in any partition")
)

// Interval is one half-open [Min, Max) score band of a partition table.
type Interval struct {
	Min, Max float64
}

// Contains reports whether lod falls inside the band.
func (iv Interval) Contains(lod float64) bool {
	return lod >= iv.Min && lod < iv.Max
}

// partitionKey orders bands by lower bound inside the llrb tree.
type partitionKey struct {
	lower float64
	iv    Interval
}

// Compare implements llrb.Comparable.
func (k partitionKey) Compare(c llrb.Comparable) int {
	k2 := c.(partitionKey)
	switch {
	case k.lower < k2.lower:
		return -1
	case k.lower > k2.lower:
		return 1
	}
	return 0
}

// Partitions maps any log-odds score to the band it belongs to.  It is built
// once at writer construction and immutable thereafter.
type Partitions struct {
	tree llrb.Tree
	n    int
}

// ParsePartitions builds a Partitions from a non-empty, strictly increasing
// sequence of positive boundary values.  Boundaries [a, b] produce the bands
// [-inf, a), [a, b), [b, +inf).  The lowest band absorbs negative scores:
// log odds go below zero for deep, clean hom-ref pileups, and those belong in
// the most-confident band rather than nowhere.
func ParsePartitions(bounds []float64) (*Partitions, error) {
	if len(bounds) == 0 {
		return nil, errors.Wrap(ErrInvalidPartitions, "empty boundary list")
	}
	p := &Partitions{}
	lastThreshold := 0.0
	lower := math.Inf(-1)
	for i, b := range bounds {
		if math.IsNaN(b) {
			return nil, errors.Wrapf(ErrInvalidPartitions, "boundary %d is NaN", i)
		}
		if b == lastThreshold {
			return nil, errors.Wrapf(ErrInvalidPartitions, "boundary %v appears more than once", b)
		}
		if b < lastThreshold {
			return nil, errors.Wrapf(ErrInvalidPartitions, "boundaries out of order: %v after %v", b, lastThreshold)
		}
		p.tree.Insert(partitionKey{lower, Interval{lower, b}})
		lastThreshold = b
		lower = b
		p.n++
	}
	p.tree.Insert(partitionKey{lower, Interval{lower, math.Inf(1)}})
	p.n++
	return p, nil
}

// NumBands returns the number of registered bands (len(bounds) + 1).
func (p *Partitions) NumBands() int {
	return p.n
}

// Lookup returns the band containing lod.
func (p *Partitions) Lookup(lod float64) (Interval, error) {
	if math.IsNaN(lod) {
		return Interval{}, errors.Wrap(ErrPartitionNotFound, "score is NaN")
	}
	c := p.tree.Floor(partitionKey{lower: lod})
	if c == nil {
		return Interval{}, errors.Wrapf(ErrPartitionNotFound, "score %v", lod)
	}
	iv := c.(partitionKey).iv
	if !iv.Contains(lod) {
		return Interval{}, errors.Wrapf(ErrPartitionNotFound, "score %v", lod)
	}
	return iv, nil
}
