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

import (
	"math"
	"math/big"
)

// numericAcc implements the Welford/Chan online-and-pairwise-merge
// kernel (spec.md §4.B.1) shared by the int, float, and nat variants.
// sum/min/max are held in the kernel's native exact precision (a
// big.Int for int/nat, to absorb overflow on realistic populations, a
// float64 for float); mean and sum_sq_diff always live in float64 for
// Welford stability, per spec.md's numeric-precision-boundary note.
type numericAcc struct {
	kind  StatKind
	count uint64

	mean      float64
	sumSqDiff float64

	// int/nat path
	sumInt   *big.Int
	minInt   int64
	maxInt   int64

	// float path
	sumFloat float64
	minFloat float64
	maxFloat float64
}

func newNumericAcc(k StatKind) *numericAcc {
	return &numericAcc{kind: k}
}

func (a *numericAcc) Kind() StatKind { return a.kind }

func (a *numericAcc) Update(name string, s Stat) error {
	if s.Kind != a.kind {
		return &TypeMismatchError{Name: name, Have: s.Kind.String(), Want: a.kind.String()}
	}
	var x float64
	switch a.kind {
	case KindInt, KindNat:
		if a.kind == KindNat && s.I64 < 0 {
			return &NegativeNatError{Name: name, Value: s.I64}
		}
		x = float64(s.I64)
	case KindFloat:
		if math.IsNaN(s.F64) || math.IsInf(s.F64, 0) {
			return &InvalidScalarError{Msg: "non-finite float observation"}
		}
		x = s.F64
	}

	a.count++
	if a.count == 1 {
		a.mean = x
		a.sumSqDiff = 0
		switch a.kind {
		case KindInt, KindNat:
			a.minInt, a.maxInt = s.I64, s.I64
			a.sumInt = big.NewInt(s.I64)
		case KindFloat:
			a.minFloat, a.maxFloat = x, x
			a.sumFloat = x
		}
		return nil
	}

	delta := x - a.mean
	a.mean += delta / float64(a.count)
	delta2 := x - a.mean
	a.sumSqDiff += delta * delta2

	switch a.kind {
	case KindInt, KindNat:
		if s.I64 < a.minInt {
			a.minInt = s.I64
		}
		if s.I64 > a.maxInt {
			a.maxInt = s.I64
		}
		a.sumInt.Add(a.sumInt, big.NewInt(s.I64))
	case KindFloat:
		if x < a.minFloat {
			a.minFloat = x
		}
		if x > a.maxFloat {
			a.maxFloat = x
		}
		a.sumFloat += x
	}
	return nil
}

func (a *numericAcc) Merge(name string, other Accumulator) (Accumulator, error) {
	b, ok := other.(*numericAcc)
	if !ok || b.kind != a.kind {
		return nil, &TypeMismatchError{Name: name, Have: other.Kind().String(), Want: a.kind.String()}
	}
	if a.count == 0 {
		return b.clone(), nil
	}
	if b.count == 0 {
		return a.clone(), nil
	}

	n := a.count + b.count
	delta := b.mean - a.mean
	result := &numericAcc{
		kind:      a.kind,
		count:     n,
		mean:      a.mean + delta*(float64(b.count)/float64(n)),
		sumSqDiff: a.sumSqDiff + b.sumSqDiff + delta*delta*(float64(a.count)*float64(b.count)/float64(n)),
	}
	switch a.kind {
	case KindInt, KindNat:
		result.minInt = minI64(a.minInt, b.minInt)
		result.maxInt = maxI64(a.maxInt, b.maxInt)
		result.sumInt = new(big.Int).Add(a.sumInt, b.sumInt)
	case KindFloat:
		result.minFloat = math.Min(a.minFloat, b.minFloat)
		result.maxFloat = math.Max(a.maxFloat, b.maxFloat)
		result.sumFloat = a.sumFloat + b.sumFloat
	}
	return result, nil
}

func (a *numericAcc) clone() *numericAcc {
	cp := *a
	if a.sumInt != nil {
		cp.sumInt = new(big.Int).Set(a.sumInt)
	}
	return &cp
}

func (a *numericAcc) Finalize() AggEntry {
	var variance, stddev, cvPct *float64
	if a.count > 1 {
		vRaw := a.sumSqDiff / float64(a.count-1)
		v := round2(vRaw)
		variance = &v
		if vRaw >= 0 {
			sdRaw := math.Sqrt(vRaw)
			sd := round2(sdRaw)
			stddev = &sd
			if a.mean != 0 {
				cv := round2((sdRaw / a.mean) * 100)
				cvPct = &cv
			}
		}
	}

	var mean *float64
	if a.count > 0 {
		m := round2(a.mean)
		mean = &m
	}

	switch a.kind {
	case KindFloat:
		var min, max *float64
		if a.count > 0 {
			min, max = &a.minFloat, &a.maxFloat
		}
		return &FloatAgg{
			numAggCommon: numAggCommon{
				Count: a.count, Sum: a.sumFloat, Min: min, Max: max,
				Mean: mean, SumSqDiff: round2(a.sumSqDiff),
				Variance: variance, Stddev: stddev, CVPct: cvPct,
			},
		}
	default: // KindInt, KindNat
		sum := int64(0)
		if a.sumInt != nil {
			sum = a.sumInt.Int64()
		}
		var min, max *float64
		if a.count > 0 {
			minF, maxF := float64(a.minInt), float64(a.maxInt)
			min, max = &minF, &maxF
		}
		common := numAggCommon{
			Count: a.count, Sum: float64(sum), Min: min, Max: max,
			Mean: mean, SumSqDiff: round2(a.sumSqDiff),
			Variance: variance, Stddev: stddev, CVPct: cvPct,
			intValued: true,
		}
		if a.kind == KindNat {
			return &NatAgg{numAggCommon: common}
		}
		return &IntAgg{numAggCommon: common}
	}
}

// rawFinalize produces the unrounded aggregate-entry form used for
// worker-to-leader state transport (spec.md §4.D, §9): mean and
// sum_sq_diff are carried at full float64 precision so that a
// subsequent Merge sees the same inputs a single-process accumulation
// would have, rather than values already rounded for display.
func (a *numericAcc) rawFinalize() AggEntry {
	var mean *float64
	if a.count > 0 {
		m := a.mean
		mean = &m
	}
	switch a.kind {
	case KindFloat:
		var min, max *float64
		if a.count > 0 {
			min, max = &a.minFloat, &a.maxFloat
		}
		return &FloatAgg{numAggCommon: numAggCommon{
			Count: a.count, Sum: a.sumFloat, Min: min, Max: max,
			Mean: mean, SumSqDiff: a.sumSqDiff,
		}}
	default:
		sum := int64(0)
		if a.sumInt != nil {
			sum = a.sumInt.Int64()
		}
		var min, max *float64
		if a.count > 0 {
			minF, maxF := float64(a.minInt), float64(a.maxInt)
			min, max = &minF, &maxF
		}
		common := numAggCommon{
			Count: a.count, Sum: float64(sum), Min: min, Max: max,
			Mean: mean, SumSqDiff: a.sumSqDiff, intValued: true,
		}
		if a.kind == KindNat {
			return &NatAgg{numAggCommon: common}
		}
		return &IntAgg{numAggCommon: common}
	}
}

func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
