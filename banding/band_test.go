package banding_test

import (
	"math"
	"testing"

	"github.com/grailbio/refband/banding"
	"github.com/grailbio/refband/pileup"
	"github.com/grailbio/testutil/expect"
	"github.com/pkg/errors"
)

func mustInterval(t *testing.T, bounds []float64, lod float64) banding.Interval {
	p, err := banding.ParsePartitions(bounds)
	expect.NoError(t, err)
	iv, err := p.Lookup(lod)
	expect.NoError(t, err)
	return iv
}

func TestBandAccumulate(t *testing.T) {
	iv := mustInterval(t, []float64{10}, 1) // [-inf, 10)
	b := banding.NewBand("chr2", 100, iv)
	expect.EQ(t, b.End(), pileup.PosType(99)) // empty state is end == start-1
	expect.EQ(t, b.Size(), 0)

	expect.NoError(t, b.Add(100, 30, 2.5))
	expect.NoError(t, b.Add(101, 25, 1.0))
	expect.NoError(t, b.Add(102, 40, 2.0))
	expect.EQ(t, b.End(), pileup.PosType(102))

	blk, err := b.Finalize("sampleA")
	expect.NoError(t, err)
	expect.EQ(t, blk, banding.Block{
		Chrom:  "chr2",
		Pos:    100,
		EndPos: 102,
		Sample: "sampleA",
		LOD:    2.5, // running max is the conservative summary
		DP:     30,
		MinDP:  25,
	})

	// Finalize is read-only; a second call yields the identical record.
	blk2, err := b.Finalize("sampleA")
	expect.NoError(t, err)
	expect.EQ(t, blk2, blk)
}

func TestBandMedianEven(t *testing.T) {
	iv := mustInterval(t, []float64{10}, 1)
	b := banding.NewBand("chr1", 1, iv)
	for i, dp := range []int{10, 20, 31, 40} {
		expect.NoError(t, b.Add(pileup.PosType(1+i), dp, 1))
	}
	blk, err := b.Finalize("s")
	expect.NoError(t, err)
	// Even-sized list: mean of the two central values, rounded.
	expect.EQ(t, blk.DP, 26)
	expect.EQ(t, blk.MinDP, 10)
}

func TestBandNegativeDepthClamped(t *testing.T) {
	iv := mustInterval(t, []float64{10}, 1)
	b := banding.NewBand("chr1", 5, iv)
	expect.NoError(t, b.Add(5, -3, 1))
	blk, err := b.Finalize("s")
	expect.NoError(t, err)
	expect.EQ(t, blk.DP, 0)
	expect.EQ(t, blk.MinDP, 0)
}

func TestBandAddErrors(t *testing.T) {
	iv := mustInterval(t, []float64{2, 4}, 3) // [2, 4)
	b := banding.NewBand("chr1", 1, iv)
	expect.NoError(t, b.Add(1, 10, 2.5))
	expect.NoError(t, b.Add(2, 10, 3.5))

	// Gap: position 4 does not follow end 2.
	err := b.Add(4, 10, 3.0)
	if errors.Cause(err) != banding.ErrNonContiguous {
		t.Errorf("got %v, want ErrNonContiguous", err)
	}
	// The malformed add left the band untouched.
	expect.EQ(t, b.End(), pileup.PosType(2))
	blk, err := b.Finalize("s")
	expect.NoError(t, err)
	expect.EQ(t, blk.EndPos, pileup.PosType(2))

	err = b.Add(3, 10, 4.0) // upper bound is exclusive
	if errors.Cause(err) != banding.ErrOutOfBand {
		t.Errorf("got %v, want ErrOutOfBand", err)
	}
	err = b.Add(3, 10, 1.999)
	if errors.Cause(err) != banding.ErrOutOfBand {
		t.Errorf("got %v, want ErrOutOfBand", err)
	}
}

func TestBandEmptyFinalize(t *testing.T) {
	iv := mustInterval(t, []float64{10}, 1)
	b := banding.NewBand("chr1", 1, iv)
	_, err := b.Finalize("s")
	if errors.Cause(err) != banding.ErrEmptyBand {
		t.Errorf("got %v, want ErrEmptyBand", err)
	}
}

func TestBandIsContiguous(t *testing.T) {
	iv := mustInterval(t, []float64{10}, 1)
	b := banding.NewBand("chr1", 1, iv)
	expect.NoError(t, b.Add(1, 10, 1))
	expect.True(t, b.IsContiguous(2, "chr1"))
	expect.False(t, b.IsContiguous(3, "chr1"))
	expect.False(t, b.IsContiguous(2, "chr2"))
}

func TestBandWithinBounds(t *testing.T) {
	iv := mustInterval(t, []float64{1, 2}, 0.5) // [-inf, 1)
	b := banding.NewBand("chr1", 1, iv)
	expect.True(t, b.WithinBounds(math.Inf(-1)))
	expect.True(t, b.WithinBounds(-5))
	expect.True(t, b.WithinBounds(0.999))
	expect.False(t, b.WithinBounds(1))
}
