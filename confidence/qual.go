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

// This file contains qual phred-math routines.

// All functions here assume input qual scores are never larger than
// (nQual - 1); larger values are clamped.
const nQual = 96

// log10OneThird spreads a base-error probability evenly over the three
// non-observed bases.
var log10OneThird = -math.Log10(3)

var (
	// qualToProbLog10Table[q] = log10(1 - 10^(-q/10)), the log10 probability
	// that a base with quality q was called correctly.
	qualToProbLog10Table [nQual]float64
	// qualToErrProbLog10Table[q] = -q/10, the log10 probability that the base
	// was miscalled.
	qualToErrProbLog10Table [nQual]float64
)

func init() {
	for q := range qualToProbLog10Table {
		// Qual 0 claims the base carries no information at all; treat it as
		// qual 1 so the correct-call likelihood stays finite.
		eq := q
		if eq == 0 {
			eq = 1
		}
		errProb := math.Exp(float64(eq) * (-0.1 * math.Ln10))
		qualToProbLog10Table[q] = math.Log10(1.0 - errProb)
		qualToErrProbLog10Table[q] = -0.1 * float64(eq)
	}
}

// QualToProbLog10 returns log10 P(base call correct | qual q).
func QualToProbLog10(q byte) float64 {
	if q >= nQual {
		q = nQual - 1
	}
	return qualToProbLog10Table[q]
}

// QualToErrProbLog10 returns log10 P(base call wrong | qual q).
func QualToErrProbLog10(q byte) float64 {
	if q >= nQual {
		q = nQual - 1
	}
	return qualToErrProbLog10Table[q]
}
