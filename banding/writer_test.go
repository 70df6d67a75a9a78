package banding_test

import (
	"testing"

	"github.com/grailbio/refband/banding"
	"github.com/grailbio/refband/confidence"
	"github.com/grailbio/refband/pileup"
	"github.com/grailbio/testutil/expect"
)

// memSink collects the emitted record stream.
type memSink struct {
	recs   []banding.Record
	closed int
}

func (s *memSink) Accept(rec banding.Record) error {
	s.recs = append(s.recs, rec)
	return nil
}

func (s *memSink) Close() error {
	s.closed++
	return nil
}

func newTestWriter(t *testing.T, sink banding.Sink) *banding.Writer {
	w, err := banding.NewWriter(sink, nil, banding.Opts{
		Bounds: []float64{1, 2, 5},
		Ploidy: 2,
	})
	expect.NoError(t, err)
	return w
}

func scored(dp int, lod float64) confidence.Result {
	return confidence.Result{RefDepth: dp, LOD: lod}
}

func TestWriterSingleBand(t *testing.T) {
	sink := &memSink{}
	w := newTestWriter(t, sink)
	feed := []struct {
		pos pileup.PosType
		dp  int
		lod float64
	}{
		{10, 30, 0.2},
		{11, 28, 0.9},
		{12, 35, 0.5},
	}
	for _, f := range feed {
		expect.NoError(t, w.AddScoredSite("chr1", f.pos, "s1", scored(f.dp, f.lod)))
	}
	expect.EQ(t, len(sink.recs), 0) // nothing emitted until the run breaks
	expect.NoError(t, w.Close())
	expect.EQ(t, sink.closed, 1)
	expect.EQ(t, len(sink.recs), 1)
	expect.EQ(t, sink.recs[0], banding.Record(banding.Block{
		Chrom:  "chr1",
		Pos:    10,
		EndPos: 12,
		Sample: "s1",
		LOD:    0.9,
		DP:     30,
		MinDP:  28,
	}))
}

// A score crossing into a different partition band forces a band boundary.
func TestWriterPartitionCrossing(t *testing.T) {
	sink := &memSink{}
	w := newTestWriter(t, sink)
	expect.NoError(t, w.AddScoredSite("chr1", 1, "s1", scored(10, 0.1)))
	expect.NoError(t, w.AddScoredSite("chr1", 2, "s1", scored(10, 0.2)))
	expect.NoError(t, w.AddScoredSite("chr1", 3, "s1", scored(10, 0.3)))
	expect.NoError(t, w.AddScoredSite("chr1", 4, "s1", scored(10, 1.5))) // next band
	expect.NoError(t, w.Close())
	expect.EQ(t, len(sink.recs), 2)
	blk0 := sink.recs[0].(banding.Block)
	expect.EQ(t, blk0.Pos, pileup.PosType(1))
	expect.EQ(t, blk0.EndPos, pileup.PosType(3))
	expect.EQ(t, blk0.LOD, 0.3)
	blk1 := sink.recs[1].(banding.Block)
	expect.EQ(t, blk1.Pos, pileup.PosType(4))
	expect.EQ(t, blk1.EndPos, pileup.PosType(4))
	expect.EQ(t, blk1.LOD, 1.5)
}

// A positional gap flushes the pending band and anchors a fresh one; every
// emitted band stays gap-free.
func TestWriterGap(t *testing.T) {
	sink := &memSink{}
	w := newTestWriter(t, sink)
	expect.NoError(t, w.AddScoredSite("chr1", 1, "s1", scored(10, 0.1)))
	expect.NoError(t, w.AddScoredSite("chr1", 2, "s1", scored(10, 0.1)))
	expect.NoError(t, w.AddScoredSite("chr1", 4, "s1", scored(10, 0.1)))
	expect.NoError(t, w.Close())
	expect.EQ(t, len(sink.recs), 2)
	blk0 := sink.recs[0].(banding.Block)
	expect.EQ(t, blk0.Pos, pileup.PosType(1))
	expect.EQ(t, blk0.EndPos, pileup.PosType(2))
	blk1 := sink.recs[1].(banding.Block)
	expect.EQ(t, blk1.Pos, pileup.PosType(4))
	expect.EQ(t, blk1.EndPos, pileup.PosType(4))
}

func TestWriterContigChange(t *testing.T) {
	sink := &memSink{}
	w := newTestWriter(t, sink)
	expect.NoError(t, w.AddScoredSite("chr1", 100, "s1", scored(10, 0.1)))
	expect.NoError(t, w.AddScoredSite("chr2", 101, "s1", scored(10, 0.1)))
	expect.NoError(t, w.Close())
	expect.EQ(t, len(sink.recs), 2)
	expect.EQ(t, sink.recs[0].(banding.Block).Chrom, "chr1")
	expect.EQ(t, sink.recs[1].(banding.Block).Chrom, "chr2")
}

// An explicit call flushes the pending band, passes through unmodified, and
// suppresses hom-ref evaluation for the positions it still covers.
func TestWriterCallInterleaving(t *testing.T) {
	sink := &memSink{}
	w := newTestWriter(t, sink)
	expect.NoError(t, w.AddScoredSite("chr1", 10, "s1", scored(20, 0.1)))
	call := banding.Call{Chrom: "chr1", Pos: 11, EndPos: 15, Sample: "s1", Payload: []byte("DEL")}
	expect.NoError(t, w.AddCall(call))
	// Still covered by the call: discarded, no band interaction.
	expect.NoError(t, w.AddScoredSite("chr1", 12, "s1", scored(20, 0.1)))
	expect.EQ(t, len(sink.recs), 2)
	blk := sink.recs[0].(banding.Block)
	expect.EQ(t, blk.Pos, pileup.PosType(10))
	expect.EQ(t, blk.EndPos, pileup.PosType(10))
	expect.EQ(t, sink.recs[1], banding.Record(call))

	// First uncovered position starts a new band.
	expect.NoError(t, w.AddScoredSite("chr1", 16, "s1", scored(20, 0.1)))
	expect.NoError(t, w.Close())
	expect.EQ(t, len(sink.recs), 3)
	blk = sink.recs[2].(banding.Block)
	expect.EQ(t, blk.Pos, pileup.PosType(16))
	expect.EQ(t, blk.EndPos, pileup.PosType(16))
}

// Suppression is per-contig: a position inside the covered range but on a
// different contig is evaluated normally.
func TestWriterSuppressionContigScoped(t *testing.T) {
	sink := &memSink{}
	w := newTestWriter(t, sink)
	expect.NoError(t, w.AddCall(banding.Call{Chrom: "chr1", Pos: 5, EndPos: 50, Sample: "s1"}))
	expect.NoError(t, w.AddScoredSite("chr2", 10, "s1", scored(20, 0.1)))
	expect.NoError(t, w.Close())
	expect.EQ(t, len(sink.recs), 2)
	expect.EQ(t, sink.recs[1].(banding.Block).Chrom, "chr2")
}

func TestWriterCloseIdle(t *testing.T) {
	sink := &memSink{}
	w := newTestWriter(t, sink)
	expect.NoError(t, w.Close())
	expect.EQ(t, len(sink.recs), 0)
	expect.EQ(t, sink.closed, 1)
}

// The sample identifier is bound from the first record seen and fixed
// thereafter.
func TestWriterSampleBinding(t *testing.T) {
	sink := &memSink{}
	w := newTestWriter(t, sink)
	expect.NoError(t, w.AddScoredSite("chr1", 1, "first", scored(10, 0.1)))
	expect.NoError(t, w.AddScoredSite("chr1", 2, "second", scored(10, 0.1)))
	expect.NoError(t, w.Close())
	expect.EQ(t, len(sink.recs), 1)
	expect.EQ(t, sink.recs[0].(banding.Block).Sample, "first")
}

// End-to-end through the confidence model: clean reference pileups band
// together at low scores; an alt-heavy pileup breaks the run with a high
// score.
func TestWriterWithModel(t *testing.T) {
	sink := &memSink{}
	w, err := banding.NewWriter(sink, nil, banding.Opts{
		Bounds:      []float64{1, 5},
		Ploidy:      2,
		MinBaseQual: 6,
		Realigned:   true,
	})
	expect.NoError(t, err)

	refPile := func(n int) pileup.Pileup {
		p := make(pileup.Pileup, n)
		for i := range p {
			p[i] = pileup.Read{Base: pileup.BaseA, Qual: 30}
		}
		return p
	}
	altPile := func(n int) pileup.Pileup {
		p := make(pileup.Pileup, n)
		for i := range p {
			p[i] = pileup.Read{Base: pileup.BaseT, Qual: 30}
		}
		return p
	}

	for pos := pileup.PosType(100); pos < 103; pos++ {
		expect.NoError(t, w.AddHomRefSite(banding.HomRefSite{
			Chrom: "chr1", Pos: pos, Sample: "s1", Pileup: refPile(20), RefBase: pileup.BaseA,
		}))
	}
	expect.NoError(t, w.AddHomRefSite(banding.HomRefSite{
		Chrom: "chr1", Pos: 103, Sample: "s1", Pileup: altPile(20), RefBase: pileup.BaseA,
	}))
	expect.NoError(t, w.Close())

	expect.EQ(t, len(sink.recs), 2)
	blk0 := sink.recs[0].(banding.Block)
	expect.EQ(t, blk0.Pos, pileup.PosType(100))
	expect.EQ(t, blk0.EndPos, pileup.PosType(102))
	expect.EQ(t, blk0.DP, 20)
	expect.EQ(t, blk0.MinDP, 20)
	expect.True(t, blk0.LOD < 1, "ref run LOD=%v", blk0.LOD)
	blk1 := sink.recs[1].(banding.Block)
	expect.EQ(t, blk1.Pos, pileup.PosType(103))
	expect.True(t, blk1.LOD >= 5, "alt site LOD=%v", blk1.LOD)
}
