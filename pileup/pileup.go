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
	"math"
)

// Common pileup components.

// PosType is the integer type used to represent genomic positions.
// Positions are 0-based internally and in binary output, 1-based in text
// formats, per the usual convention.
type PosType int32

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = math.MaxInt32

// These constants have two relevant meanings:
// 1. In the .bam seq[] encoding (sam.BaseA, sam.BaseC, etc.), it's the
//    position of A's set bit.
// 2. It's the natural value for A/C/G/T in a packed 2-bit representation
//    (useful anywhere we don't have to worry about Ns).

const (
	// BaseA represents an A base.
	BaseA byte = iota
	// BaseC represents an C base.
	BaseC
	// BaseG represents an G base.
	BaseG
	// BaseT represents an T base.
	BaseT
	// BaseX is a catch-all.
	BaseX
)

const (
	// NBase is the number of regular base types.
	NBase = 4
	// NBaseEnum counts BaseX as well as the regular base types.
	NBaseEnum = 5
)

// Seq8ToEnumTable is the .bam seq nibble -> A/C/G/T/X enum mapping.
var Seq8ToEnumTable = [...]byte{BaseX, BaseA, BaseC, BaseX, BaseG, BaseX, BaseX, BaseX, BaseT, BaseX, BaseX, BaseX, BaseX, BaseX, BaseX, BaseX}

// EnumToASCIITable is the A/C/G/T/X -> ASCII mapping, with X rendered as 'N'.
var EnumToASCIITable = [...]byte{'A', 'C', 'G', 'T', 'N'}

// ASCIIToEnumTable is the ASCII -> A/C/G/T/X enum mapping; anything that is
// not an upper- or lowercase base letter maps to BaseX.
var ASCIIToEnumTable [256]byte

func init() {
	for i := range ASCIIToEnumTable {
		ASCIIToEnumTable[i] = BaseX
	}
	ASCIIToEnumTable['A'] = BaseA
	ASCIIToEnumTable['a'] = BaseA
	ASCIIToEnumTable['C'] = BaseC
	ASCIIToEnumTable['c'] = BaseC
	ASCIIToEnumTable['G'] = BaseG
	ASCIIToEnumTable['g'] = BaseG
	ASCIIToEnumTable['T'] = BaseT
	ASCIIToEnumTable['t'] = BaseT
}

// Read is a single read's observation at one reference position.  Base is an
// A/C/G/T/X enum value and Qual the raw phred base quality.
type Read struct {
	Base byte
	Qual byte
	// Deletion marks an observation where the read's alignment deletes this
	// reference position.  Base is meaningless in that case, and there is no
	// base quality of its own.
	Deletion bool
	// NearIndel marks a base immediately adjacent to an insertion or deletion
	// in its read.
	NearIndel bool
}

// Pileup is the ordered set of read observations at one reference position.
// It is built once per position and consumed once.
type Pileup []Read
