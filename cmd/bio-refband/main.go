// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

/*
bio-refband compacts consecutive homozygous-reference positions into
confidence bands, interleaved in genomic order with explicit variant calls.
It reads samtools-mpileup-style site rows (CHROM, POS, REF, DEPTH, BASES,
QUALS), scores each site's pileup against the reference base, and writes a
banded record stream.
*/

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/refband/banding"
	"github.com/grailbio/refband/pileup"
	"github.com/klauspost/compress/gzip"
)

var (
	bounds      = flag.String("bounds", "0.5,1,2,4,8", "Comma-separated, strictly increasing LOD band boundaries")
	callsPath   = flag.String("calls", "", "Optional TSV of explicit calls (CHROM, POS, END, PAYLOAD), sorted consistently with the sites input")
	format      = flag.String("format", "tsv", "Output format; 'tsv', 'tsv-gz', and 'rio' supported")
	minBaseQual = flag.Int("min-base-qual", int(banding.DefaultOpts.MinBaseQual), "Quality assigned to spanning-deletion observations")
	outPrefix   = flag.String("out", "bio-refband", "Output path prefix")
	ploidy      = flag.Int("ploidy", banding.DefaultOpts.Ploidy, "Assumed allele copies per site")
	realigned   = flag.Bool("realigned", banding.DefaultOpts.Realigned, "Sites were piled up after local realignment")
	sampleName  = flag.String("sample", "SAMPLE", "Sample name for emitted block records")
)

func bioRefbandUsage() {
	fmt.Printf("Usage: %s [OPTIONS] sitespath\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func parseBounds(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	bs := make([]float64, 0, len(parts))
	for _, part := range parts {
		b, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("parseBounds: bad boundary %q: %v", part, err)
		}
		bs = append(bs, b)
	}
	return bs, nil
}

// parsePileup converts one mpileup bases/quals column pair into pileup
// observations.  refEnum is the reference base as an A/C/G/T/X enum value.
func parsePileup(bases, quals string, refEnum byte) (pileup.Pileup, error) {
	var p pileup.Pileup
	qualIdx := 0
	nextQual := func() (byte, error) {
		if qualIdx >= len(quals) {
			return 0, fmt.Errorf("parsePileup: more base observations than quals in %q/%q", bases, quals)
		}
		q := quals[qualIdx] - 33
		qualIdx++
		return q, nil
	}
	for i := 0; i < len(bases); i++ {
		c := bases[i]
		switch {
		case c == '^':
			// Read-start marker; the next char is the encoded MAPQ.
			i++
		case c == '$':
			// Read-end marker.
		case c == '+' || c == '-':
			// Indel run: digits, then that many inserted/deleted bases.  The
			// indel itself belongs to the previous observation's read; mark
			// that observation as indel-adjacent.
			j := i + 1
			n := 0
			for j < len(bases) && bases[j] >= '0' && bases[j] <= '9' {
				n = n*10 + int(bases[j]-'0')
				j++
			}
			if n == 0 || j+n > len(bases) {
				return nil, fmt.Errorf("parsePileup: malformed indel run in %q", bases)
			}
			i = j + n - 1
			if len(p) > 0 {
				p[len(p)-1].NearIndel = true
			}
		case c == '*':
			if _, err := nextQual(); err != nil {
				return nil, err
			}
			p = append(p, pileup.Read{Base: pileup.BaseX, Deletion: true})
		case c == '>' || c == '<':
			// Reference skip; consumes a qual but is not base evidence.
			if _, err := nextQual(); err != nil {
				return nil, err
			}
		case c == '.' || c == ',':
			q, err := nextQual()
			if err != nil {
				return nil, err
			}
			p = append(p, pileup.Read{Base: refEnum, Qual: q})
		default:
			q, err := nextQual()
			if err != nil {
				return nil, err
			}
			p = append(p, pileup.Read{Base: pileup.ASCIIToEnumTable[c], Qual: q})
		}
	}
	if qualIdx != len(quals) {
		return nil, fmt.Errorf("parsePileup: %d quals left over in %q/%q", len(quals)-qualIdx, bases, quals)
	}
	return p, nil
}

// loadCalls reads the explicit-call TSV.  POS and END are 1-based; the
// payload is everything after the third tab, passed through verbatim.
func loadCalls(ctx context.Context, path, sample string) (calls []banding.Call, err error) {
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return
	}
	defer file.CloseAndReport(ctx, in, &err)
	reader, _ := compress.NewReader(in.Reader(ctx))
	defer func() {
		if e := reader.Close(); e != nil && err == nil {
			err = e
		}
	}()
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cols := strings.SplitN(line, "\t", 4)
		if len(cols) < 3 {
			return nil, fmt.Errorf("loadCalls: expected at least 3 columns, got %q", line)
		}
		pos, e := strconv.Atoi(cols[1])
		if e != nil {
			return nil, fmt.Errorf("loadCalls: bad POS in %q: %v", line, e)
		}
		end, e := strconv.Atoi(cols[2])
		if e != nil {
			return nil, fmt.Errorf("loadCalls: bad END in %q: %v", line, e)
		}
		var payload []byte
		if len(cols) == 4 {
			payload = []byte(cols[3])
		}
		calls = append(calls, banding.Call{
			Chrom:   cols[0],
			Pos:     pileup.PosType(pos - 1),
			EndPos:  pileup.PosType(end - 1),
			Sample:  sample,
			Payload: payload,
		})
	}
	err = scanner.Err()
	return
}

// run streams the sites file through w, interleaving calls in genomic order.
// Both inputs must be sorted in the same contig order, positions increasing
// within each contig.
func run(ctx context.Context, sitesPath string, w *banding.Writer, calls []banding.Call, sample string) (err error) {
	var in file.File
	if in, err = file.Open(ctx, sitesPath); err != nil {
		return
	}
	defer file.CloseAndReport(ctx, in, &err)
	reader, _ := compress.NewReader(in.Reader(ctx))
	defer func() {
		if e := reader.Close(); e != nil && err == nil {
			err = e
		}
	}()

	ci := 0
	lastChrom := ""
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	nSites := 0
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 6 {
			return fmt.Errorf("run: expected 6 mpileup columns, got %q", line)
		}
		pos1, e := strconv.Atoi(cols[1])
		if e != nil {
			return fmt.Errorf("run: bad POS in %q: %v", line, e)
		}
		chrom := cols[0]
		pos := pileup.PosType(pos1 - 1)

		// Flush calls left behind on the previous contig, then calls at or
		// before this site on the current contig.
		if chrom != lastChrom {
			for ci < len(calls) && calls[ci].Chrom == lastChrom {
				if err = w.AddCall(calls[ci]); err != nil {
					return
				}
				ci++
			}
			lastChrom = chrom
		}
		for ci < len(calls) && calls[ci].Chrom == chrom && calls[ci].Pos <= pos {
			if err = w.AddCall(calls[ci]); err != nil {
				return
			}
			ci++
		}

		refEnum := pileup.ASCIIToEnumTable[cols[2][0]]
		var pile pileup.Pileup
		if pile, e = parsePileup(cols[4], cols[5], refEnum); e != nil {
			return fmt.Errorf("run: %s:%d: %v", chrom, pos1, e)
		}
		if err = w.AddHomRefSite(banding.HomRefSite{
			Chrom:   chrom,
			Pos:     pos,
			Sample:  sample,
			Pileup:  pile,
			RefBase: refEnum,
		}); err != nil {
			return
		}
		nSites++
	}
	if err = scanner.Err(); err != nil {
		return
	}
	for ci < len(calls) {
		if err = w.AddCall(calls[ci]); err != nil {
			return
		}
		ci++
	}
	log.Debug.Printf("run: processed %d sites, %d calls", nSites, len(calls))
	return
}

func main() {
	flag.Usage = bioRefbandUsage
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() != 1 {
		log.Fatalf("Exactly one positional argument (sitespath) expected; please check flag syntax: '%s'", strings.Join(flag.Args(), " "))
	}
	sitesPath := flag.Arg(0)
	ctx := vcontext.Background()

	bs, err := parseBounds(*bounds)
	if err != nil {
		log.Fatalf("%v", err)
	}

	var outPath string
	switch *format {
	case "tsv":
		outPath = *outPrefix + ".tsv"
	case "tsv-gz":
		outPath = *outPrefix + ".tsv.gz"
	case "rio":
		outPath = *outPrefix + ".rio"
	default:
		log.Fatalf("Unsupported -format %q", *format)
	}
	dst, err := file.Create(ctx, outPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer file.CloseAndReport(ctx, dst, &err)

	var sink banding.Sink
	var gzw *gzip.Writer
	switch *format {
	case "tsv":
		sink = banding.NewTSVSink(dst.Writer(ctx))
	case "tsv-gz":
		gzw = gzip.NewWriter(dst.Writer(ctx))
		sink = banding.NewTSVSink(gzw)
	case "rio":
		sink = banding.NewRecordioSink(dst.Writer(ctx))
	}

	var calls []banding.Call
	if *callsPath != "" {
		if calls, err = loadCalls(ctx, *callsPath, *sampleName); err != nil {
			log.Fatalf("%v", err)
		}
	}

	w, err := banding.NewWriter(sink, nil, banding.Opts{
		Bounds:      bs,
		Ploidy:      *ploidy,
		MinBaseQual: byte(*minBaseQual),
		Realigned:   *realigned,
	})
	if err != nil {
		log.Fatalf("%v", err)
	}

	err = run(ctx, sitesPath, w, calls, *sampleName)
	// Close the writer even after a mid-stream failure so the sink is
	// released exactly once.
	if e := w.Close(); e != nil && err == nil {
		err = e
	}
	if gzw != nil {
		if e := gzw.Close(); e != nil && err == nil {
			err = e
		}
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Debug.Printf("exiting")
}
