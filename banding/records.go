package banding

import (
	"github.com/grailbio/refband/pileup"
)

// Record is one entry of the writer's ordered output stream: either an
// explicit call passed through unmodified, or a synthesized hom-ref Block.
type Record interface {
	// Span returns the genomic region the record covers, end-inclusive.
	Span() (contig string, start, end pileup.PosType)
}

// Block is a compacted summary of a contiguous run of hom-ref positions
// whose scores share one partition band.  Produced by Band.Finalize, never
// mutated afterwards.
type Block struct {
	Chrom  string
	Pos    pileup.PosType
	EndPos pileup.PosType
	Sample string
	// LOD is the maximum site score observed in the block (the conservative,
	// least-confident summary; lower = more confident hom-ref).
	LOD float64
	// DP is the median site depth; MinDP the minimum.
	DP    int
	MinDP int
}

// Span implements Record.
func (b Block) Span() (string, pileup.PosType, pileup.PosType) {
	return b.Chrom, b.Pos, b.EndPos
}

// Call is an explicit variant call.  The writer passes it through unmodified
// and suppresses hom-ref evaluation for positions it still covers.  Payload
// is opaque to this package.
type Call struct {
	Chrom   string
	Pos     pileup.PosType
	EndPos  pileup.PosType
	Sample  string
	Payload []byte
}

// Span implements Record.
func (c Call) Span() (string, pileup.PosType, pileup.PosType) {
	return c.Chrom, c.Pos, c.EndPos
}

// Sink consumes the writer's output records in order.  Close must be called
// exactly once; the writer's Close does so.
type Sink interface {
	Accept(rec Record) error
	Close() error
}
