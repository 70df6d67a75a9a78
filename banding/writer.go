// Package banding compacts consecutive homozygous-reference positions with
// similar confidence scores into summary blocks, interleaving them in
// genomic order with unmodified explicit calls.
//
// The Writer is a single-threaded stateful transducer: one caller feeds it
// records in strictly increasing genomic order per contig, and it emits an
// ordered Record stream to a Sink.  Concurrent calls into one Writer are not
// allowed; independent regions go to independent Writers.
package banding

import (
	"github.com/grailbio/refband/confidence"
	"github.com/grailbio/refband/pileup"
)

// Opts configures a Writer.
type Opts struct {
	// Bounds are the score partition boundaries, strictly increasing and
	// positive (see ParsePartitions).
	Bounds []float64
	// Ploidy is the assumed number of allele copies per site.
	Ploidy int
	// MinBaseQual is the quality assigned to spanning-deletion observations,
	// which carry no base quality of their own.  It is not a filter; every
	// pileup observation is scored.
	MinBaseQual byte
	// Realigned selects the post-realignment alt/ref classifier.
	Realigned bool
}

// DefaultOpts mirrors the cmd's flag defaults.
var DefaultOpts = Opts{
	Bounds:      []float64{0.5, 1, 2, 4, 8},
	Ploidy:      2,
	MinBaseQual: 6,
	Realigned:   true,
}

// HomRefSite is an uncalled position to be scored and banded.
type HomRefSite struct {
	Chrom  string
	Pos    pileup.PosType
	Sample string
	// Pileup is this position's read evidence; RefBase the reference base as
	// an A/C/G/T/X enum value.
	Pileup  pileup.Pileup
	RefBase byte
}

// Writer is the banding state machine.  It is either idle (no current band)
// or accumulating (current band present); Close finalizes any pending band
// and closes the sink.
type Writer struct {
	sink  Sink
	model *confidence.Model
	parts *Partitions
	opts  Opts

	cur *Band
	// nextAvailableStart, while >= 0, suppresses hom-ref evaluation for
	// positions on nextAvailableChrom at or below it.  A multi-base call
	// (e.g. a deletion) still covers those positions even though they are
	// fed to the writer independently.
	nextAvailableStart pileup.PosType
	nextAvailableChrom string
	// sample is bound from the first record seen and fixed thereafter.
	sample string
}

// NewWriter returns a Writer emitting to sink.  A nil model selects the
// stock confidence model.
func NewWriter(sink Sink, model *confidence.Model, opts Opts) (*Writer, error) {
	parts, err := ParsePartitions(opts.Bounds)
	if err != nil {
		return nil, err
	}
	if model == nil {
		model = confidence.NewModel()
	}
	if opts.Ploidy == 0 {
		opts.Ploidy = DefaultOpts.Ploidy
	}
	return &Writer{
		sink:               sink,
		model:              model,
		parts:              parts,
		opts:               opts,
		nextAvailableStart: -1,
	}, nil
}

func (w *Writer) bindSample(sample string) {
	if w.sample == "" {
		w.sample = sample
	}
}

// suppressed reports whether a hom-ref site at (chrom, pos) is still covered
// by a previously emitted call.  Once a position escapes the covered range,
// the suppression state is cleared.
func (w *Writer) suppressed(chrom string, pos pileup.PosType) bool {
	if w.nextAvailableStart < 0 {
		return false
	}
	if pos <= w.nextAvailableStart && chrom == w.nextAvailableChrom {
		return true
	}
	w.nextAvailableStart = -1
	w.nextAvailableChrom = ""
	return false
}

// emitCurrent finalizes and emits the pending band, if any.
func (w *Writer) emitCurrent() error {
	if w.cur == nil {
		return nil
	}
	blk, err := w.cur.Finalize(w.sample)
	if err != nil {
		return err
	}
	w.cur = nil
	return w.sink.Accept(blk)
}

// AddCall flushes any pending band, passes c through to the sink unmodified,
// and suppresses hom-ref evaluation up to c.EndPos on c's contig.
func (w *Writer) AddCall(c Call) error {
	w.bindSample(c.Sample)
	if err := w.emitCurrent(); err != nil {
		return err
	}
	if err := w.sink.Accept(c); err != nil {
		return err
	}
	w.nextAvailableStart = c.EndPos
	w.nextAvailableChrom = c.Chrom
	return nil
}

// AddHomRefSite scores s with the confidence model and feeds the result to
// the banding state machine.  Sites still covered by a previous call are
// discarded without scoring.
func (w *Writer) AddHomRefSite(s HomRefSite) error {
	if w.suppressed(s.Chrom, s.Pos) {
		return nil
	}
	res := w.model.RefVsAny(w.opts.Ploidy, s.Pileup, s.RefBase, w.opts.MinBaseQual, w.opts.Realigned)
	return w.AddScoredSite(s.Chrom, s.Pos, s.Sample, res)
}

// AddScoredSite feeds an already-scored hom-ref site to the banding state
// machine: merge into the current band when the site is contiguous and its
// score stays within the band's bounds, otherwise flush and open a new band
// in the score's partition.
func (w *Writer) AddScoredSite(chrom string, pos pileup.PosType, sample string, res confidence.Result) error {
	if w.suppressed(chrom, pos) {
		return nil
	}
	w.bindSample(sample)
	if w.cur != nil && w.cur.IsContiguous(pos, chrom) && w.cur.WithinBounds(res.LOD) {
		return w.cur.Add(pos, res.DP(), res.LOD)
	}
	if err := w.emitCurrent(); err != nil {
		return err
	}
	iv, err := w.parts.Lookup(res.LOD)
	if err != nil {
		return err
	}
	w.cur = NewBand(chrom, pos, iv)
	return w.cur.Add(pos, res.DP(), res.LOD)
}

// Close emits the pending band, if any, and closes the sink.  The sink is
// closed even when emitting fails, so the caller's resources are released
// exactly once either way.
func (w *Writer) Close() (err error) {
	defer func() {
		if e := w.sink.Close(); e != nil && err == nil {
			err = e
		}
	}()
	return w.emitCurrent()
}
