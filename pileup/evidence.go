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
package pileup

import (
	"github.com/grailbio/hts/sam"
)

// seqAt returns the .bam seq nibble of the i'th base of seq.
func seqAt(seq sam.Seq, i int) byte {
	b := byte(seq.Seq[i>>1])
	if i&1 == 0 {
		return b >> 4
	}
	return b & 0x0f
}

func isIndel(t sam.CigarOpType) bool {
	return t == sam.CigarInsertion || t == sam.CigarDeletion
}

// AppendFromSAM appends the observation samr makes at refPos (0-based,
// matching sam.Record.Pos) to dst, returning the extended pileup.  dst is
// unchanged if the read's alignment does not cover refPos (leading/trailing
// clips, insertions near the ends, and reference skips do not count as
// coverage; a spanning deletion does, and yields a Deletion observation).
func AppendFromSAM(dst Pileup, samr *sam.Record, refPos PosType) Pileup {
	posInRef := PosType(samr.Pos)
	posInRead := 0
	cigar := samr.Cigar
	for i, co := range cigar {
		cLen := PosType(co.Len())
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			if refPos >= posInRef && refPos < posInRef+cLen {
				offset := refPos - posInRef
				idx := posInRead + int(offset)
				r := Read{
					Base: Seq8ToEnumTable[seqAt(samr.Seq, idx)],
					Qual: samr.Qual[idx],
				}
				if offset == 0 && i > 0 && isIndel(cigar[i-1].Type()) {
					r.NearIndel = true
				}
				if offset == cLen-1 && i+1 < len(cigar) && isIndel(cigar[i+1].Type()) {
					r.NearIndel = true
				}
				return append(dst, r)
			}
			posInRef += cLen
			posInRead += int(cLen)
		case sam.CigarDeletion:
			if refPos >= posInRef && refPos < posInRef+cLen {
				return append(dst, Read{Base: BaseX, Deletion: true})
			}
			posInRef += cLen
		case sam.CigarSkipped:
			posInRef += cLen
		case sam.CigarInsertion, sam.CigarSoftClipped:
			posInRead += int(cLen)
		}
		// CigarHardClipped and CigarPadded consume neither reference nor
		// read bases.
	}
	return dst
}

// FromSAM builds the pileup at refPos from a set of mapped reads.  Reads not
// covering refPos contribute nothing.
func FromSAM(recs []*sam.Record, refPos PosType) Pileup {
	var p Pileup
	for _, samr := range recs {
		p = AppendFromSAM(p, samr, refPos)
	}
	return p
}
