package banding

import (
	"math"
	"sort"

	"github.com/grailbio/refband/pileup"
	"github.com/pkg/errors"
)

var (
	// ErrNonContiguous means a site's position does not follow the band's
	// current end by exactly one.  Upstream ordering defect; not recoverable.
	ErrNonContiguous = errors.New("site not contiguous with current band")
	// ErrOutOfBand means a score was added to a band whose bounds do not
	// contain it.  Partition/band mismatch bug.
	ErrOutOfBand = errors.New("score outside band bounds")
	// ErrEmptyBand means Finalize was called on a band that never received a
	// site.
	ErrEmptyBand = errors.New("band holds no sites")
)

// Band accumulates one contiguous run of hom-ref sites whose scores all fall
// in a single partition band.  A Band is owned by one Writer and exists only
// between creation and finalize-or-discard.
type Band struct {
	contig string
	start  pileup.PosType
	iv     Interval

	end    pileup.PosType
	dps    []int
	maxLOD float64
}

// NewBand returns an empty band anchored at (contig, start) with score
// bounds iv.  The empty state is end == start-1.
func NewBand(contig string, start pileup.PosType, iv Interval) *Band {
	return &Band{
		contig: contig,
		start:  start,
		iv:     iv,
		end:    start - 1,
		maxLOD: math.Inf(-1),
	}
}

// Contig returns the band's anchoring contig.
func (b *Band) Contig() string { return b.contig }

// Start returns the band's first position.
func (b *Band) Start() pileup.PosType { return b.start }

// End returns the band's current last position (start-1 while empty).
func (b *Band) End() pileup.PosType { return b.end }

// Size returns the number of sites added so far.
func (b *Band) Size() int { return len(b.dps) }

// WithinBounds reports whether lod falls inside the band's score bounds.
func (b *Band) WithinBounds(lod float64) bool {
	return b.iv.Contains(lod)
}

// IsContiguous reports whether a site at (contig, pos) would extend the band
// by exactly one position.
func (b *Band) IsContiguous(pos pileup.PosType, contig string) bool {
	return pos == b.end+1 && contig == b.contig
}

// Add extends the band by one site.  pos must follow the current end by
// exactly one and lod must lie within the band's bounds; the band is
// unchanged on error.  Negative depths are clamped to zero.
func (b *Band) Add(pos pileup.PosType, dp int, lod float64) error {
	if pos != b.end+1 {
		return errors.Wrapf(ErrNonContiguous, "pos %d does not follow band end %d", pos, b.end)
	}
	if !b.WithinBounds(lod) {
		return errors.Wrapf(ErrOutOfBand, "score %v, band bounds [%v,%v)", lod, b.iv.Min, b.iv.Max)
	}
	b.end = pos
	if dp < 0 {
		dp = 0
	}
	b.dps = append(b.dps, dp)
	// Lower scores mean higher hom-ref confidence under this scoring
	// convention, so the running max is the conservative block summary.
	if lod > b.maxLOD {
		b.maxLOD = lod
	}
	return nil
}

// Finalize converts the band into its summary Block.  It is read-only:
// calling it twice without an intervening Add yields identical records.
func (b *Band) Finalize(sample string) (Block, error) {
	if len(b.dps) == 0 {
		return Block{}, errors.Wrapf(ErrEmptyBand, "band at %s:%d", b.contig, b.start)
	}
	return Block{
		Chrom:  b.contig,
		Pos:    b.start,
		EndPos: b.end,
		Sample: sample,
		LOD:    b.maxLOD,
		DP:     medianInt(b.dps),
		MinDP:  minInt(b.dps),
	}, nil
}

func minInt(a []int) int {
	m := a[0]
	for _, v := range a[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// medianInt returns the rounded median; for an even-sized list, the mean of
// the two central values.  The input slice is left untouched.
func medianInt(a []int) int {
	s := make([]int, len(a))
	copy(s, a)
	sort.Ints(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return int(math.Round(float64(s[mid-1]+s[mid]) / 2.0))
}
