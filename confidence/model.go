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

// Package confidence computes, from one position's pileup evidence, a
// log-odds score for the sample carrying some non-reference allele there.
// Lower scores mean stronger evidence for homozygous-reference.
package confidence

import (
	"github.com/grailbio/refband/pileup"
)

// Result is the outcome of scoring one pileup against the reference base.
type Result struct {
	// RefDepth and NonRefDepth count the observations classified as
	// ref-supporting and alt-supporting, respectively.
	RefDepth    int
	NonRefDepth int
	// LOD is the aggregate log10 odds for the non-reference allele.  Lower
	// means more confident hom-ref.
	LOD float64
}

// DP returns the total depth (sum of the per-allele depths).
func (r Result) DP() int {
	return r.RefDepth + r.NonRefDepth
}

// Likelihoods is the per-read log10 likelihood matrix: Ref[i] and NonRef[i]
// are read i's likelihoods under the reference and the aggregate
// non-reference allele.
type Likelihoods struct {
	Ref    []float64
	NonRef []float64
}

// Genotyper reduces a per-read likelihood matrix to a single log10-odds
// score for the non-reference allele under the given ploidy.
type Genotyper interface {
	RefVsAnyLOD(ploidy int, lik Likelihoods) float64
}

// Model scores pileups.  The two classifiers and the genotyper are
// injectable so the scoring stays unit-testable against synthetic pileups
// without a full genotyping stack.
type Model struct {
	BeforeRealign Classifier
	AfterRealign  Classifier
	Genotyper     Genotyper
}

// NewModel returns a Model with the stock classifiers and genotyper.
func NewModel() *Model {
	return &Model{
		BeforeRealign: IsAltBeforeRealignment,
		AfterRealign:  IsAltAfterRealignment,
		Genotyper:     FractionalGenotyper{},
	}
}

// RefVsAny scores one pileup against refBase (an A/C/G/T/X enum value).
// Every observation is counted; quality filtering, if any, happens upstream.
// Each observation contributes its own base quality; minQual is only used as
// the stand-in quality for spanning-deletion observations, which carry none.
// The realigned flag selects which classifier applies.
func (m *Model) RefVsAny(ploidy int, p pileup.Pileup, refBase byte, minQual byte, realigned bool) Result {
	classify := m.BeforeRealign
	if realigned {
		classify = m.AfterRealign
	}
	lik := Likelihoods{
		Ref:    make([]float64, len(p)),
		NonRef: make([]float64, len(p)),
	}
	var res Result
	for i, r := range p {
		q := r.Qual
		if r.Deletion && q < minQual {
			q = minQual
		}
		if classify(r, refBase) {
			lik.NonRef[i] = QualToProbLog10(q)
			lik.Ref[i] = QualToErrProbLog10(q) + log10OneThird
			res.NonRefDepth++
		} else {
			lik.Ref[i] = QualToProbLog10(q)
			lik.NonRef[i] = QualToErrProbLog10(q) + log10OneThird
			res.RefDepth++
		}
	}
	res.LOD = m.Genotyper.RefVsAnyLOD(ploidy, lik)
	return res
}
