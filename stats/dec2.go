// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package stats

import "math"

// dec2Acc implements the exact two-decimal-digit kernel (spec.md
// §4.B.2). Every observation is scaled by 100 and held as an int64;
// mean and sum_sq_diff are computed with the same Welford recurrence
// as numericAcc but over the scaled values, then un-scaled once at
// finalization.
type dec2Acc struct {
	count uint64

	sumScaled int64
	minScaled int64
	maxScaled int64

	meanScaled      float64
	sumSqDiffScaled float64
}

func newDec2Acc() *dec2Acc { return &dec2Acc{} }

func (a *dec2Acc) Kind() StatKind { return KindDec2 }

func (a *dec2Acc) Update(name string, s Stat) error {
	if s.Kind != KindDec2 {
		return &TypeMismatchError{Name: name, Have: s.Kind.String(), Want: KindDec2.String()}
	}
	x := float64(s.Dec2)

	a.count++
	if a.count == 1 {
		a.meanScaled = x
		a.sumSqDiffScaled = 0
		a.minScaled, a.maxScaled = s.Dec2, s.Dec2
		a.sumScaled = s.Dec2
		return nil
	}

	delta := x - a.meanScaled
	a.meanScaled += delta / float64(a.count)
	delta2 := x - a.meanScaled
	a.sumSqDiffScaled += delta * delta2

	if s.Dec2 < a.minScaled {
		a.minScaled = s.Dec2
	}
	if s.Dec2 > a.maxScaled {
		a.maxScaled = s.Dec2
	}
	a.sumScaled += s.Dec2
	return nil
}

func (a *dec2Acc) Merge(name string, other Accumulator) (Accumulator, error) {
	b, ok := other.(*dec2Acc)
	if !ok {
		return nil, &TypeMismatchError{Name: name, Have: other.Kind().String(), Want: KindDec2.String()}
	}
	if a.count == 0 {
		cp := *b
		return &cp, nil
	}
	if b.count == 0 {
		cp := *a
		return &cp, nil
	}
	n := a.count + b.count
	delta := b.meanScaled - a.meanScaled
	return &dec2Acc{
		count:           n,
		meanScaled:      a.meanScaled + delta*(float64(b.count)/float64(n)),
		sumSqDiffScaled: a.sumSqDiffScaled + b.sumSqDiffScaled + delta*delta*(float64(a.count)*float64(b.count)/float64(n)),
		minScaled:       minI64(a.minScaled, b.minScaled),
		maxScaled:       maxI64(a.maxScaled, b.maxScaled),
		sumScaled:       a.sumScaled + b.sumScaled,
	}, nil
}

func (a *dec2Acc) Finalize() AggEntry {
	const scale = 100.0
	const scale2 = scale * scale

	var variance, stddev, cvPct *float64
	meanUnscaled := a.meanScaled / scale
	if a.count > 1 {
		varRaw := (a.sumSqDiffScaled / scale2) / float64(a.count-1)
		v := round2(varRaw)
		variance = &v
		if varRaw >= 0 {
			sdRaw := math.Sqrt(varRaw)
			sd := round2(sdRaw)
			stddev = &sd
			if meanUnscaled != 0 {
				cv := round2((sdRaw / meanUnscaled) * 100)
				cvPct = &cv
			}
		}
	}

	var mean *float64
	if a.count > 0 {
		m := round2(meanUnscaled)
		mean = &m
	}
	var min, max *float64
	if a.count > 0 {
		minF, maxF := round2(float64(a.minScaled)/scale), round2(float64(a.maxScaled)/scale)
		min, max = &minF, &maxF
	}

	return &Dec2Agg{numAggCommon: numAggCommon{
		Count: a.count, Sum: round2(float64(a.sumScaled) / scale), Min: min, Max: max,
		Mean: mean, SumSqDiff: round2(a.sumSqDiffScaled / scale2),
		Variance: variance, Stddev: stddev, CVPct: cvPct,
	}}
}

// rawFinalize produces the unrounded, still-scaled aggregate form used
// for worker-to-leader state transport (spec.md §4.D, §9): sum/min/max
// stay as exact scaled integers and mean/sum_sq_diff stay in scaled
// float64, so Deserialize can reconstruct the dec2Acc bit-for-bit
// rather than re-deriving it from a display-rounded document.
func (a *dec2Acc) rawFinalize() AggEntry {
	var mean *float64
	if a.count > 0 {
		m := a.meanScaled
		mean = &m
	}
	var min, max *float64
	if a.count > 0 {
		minF, maxF := float64(a.minScaled), float64(a.maxScaled)
		min, max = &minF, &maxF
	}
	return &Dec2Agg{numAggCommon: numAggCommon{
		Count: a.count, Sum: float64(a.sumScaled), Min: min, Max: max,
		Mean: mean, SumSqDiff: a.sumSqDiffScaled, intValued: true,
	}}
}
