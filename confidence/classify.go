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
package confidence

import (
	"github.com/grailbio/refband/pileup"
)

// Classifier decides whether a single pileup observation supports an allele
// other than the reference base (given as an A/C/G/T/X enum value).  Which
// classifier applies depends on whether the pileup was built before or after
// local realignment.
type Classifier func(r pileup.Read, refBase byte) bool

// IsAltAfterRealignment is the post-realignment classifier: a mismatching
// base or a spanning deletion supports a non-reference allele.
func IsAltAfterRealignment(r pileup.Read, refBase byte) bool {
	return r.Deletion || r.Base != refBase
}

// IsAltBeforeRealignment is the pre-realignment classifier.  Before
// realignment, a base sitting next to an indel in its own read is unreliable
// evidence for the reference, so it counts as alt-supporting too.
func IsAltBeforeRealignment(r pileup.Read, refBase byte) bool {
	return IsAltAfterRealignment(r, refBase) || r.NearIndel
}
