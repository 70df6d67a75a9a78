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
	"math"
)

// FractionalGenotyper is the stock Genotyper.  It contrasts the hypothesis
// that a non-reference allele is present at a smoothed empirical fraction f
// against the hypothesis that every read derives from the reference:
//
//   LOD = sum_i log10(f * 10^NonRef[i] + (1-f) * 10^Ref[i]) - sum_i Ref[i]
//
// f is the fraction of reads favoring the non-reference allele, smoothed by
// one pseudo-observation of weight 1/ploidy so that f is never exactly 0 or
// 1.  The computation is deterministic and linear in the number of reads.
type FractionalGenotyper struct{}

// RefVsAnyLOD implements Genotyper.
func (FractionalGenotyper) RefVsAnyLOD(ploidy int, lik Likelihoods) float64 {
	n := len(lik.Ref)
	if n == 0 {
		return 0
	}
	if ploidy < 1 {
		ploidy = 1
	}
	nAlt := 0
	for i := range lik.Ref {
		if lik.NonRef[i] > lik.Ref[i] {
			nAlt++
		}
	}
	f := (float64(nAlt) + 1.0/float64(ploidy)) / (float64(n) + 1.0)
	logF := math.Log10(f)
	log1mF := math.Log10(1.0 - f)
	var lod float64
	for i := range lik.Ref {
		lod += log10SumLog10(logF+lik.NonRef[i], log1mF+lik.Ref[i]) - lik.Ref[i]
	}
	return lod
}

// log10SumLog10 returns log10(10^a + 10^b) without leaving log space.
func log10SumLog10(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if math.IsInf(b, -1) {
		return a
	}
	return a + math.Log10(1.0+math.Pow(10.0, b-a))
}
