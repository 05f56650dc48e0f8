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
	"testing"
)

// naiveNumeric computes count/sum/min/max/mean/variance with a
// straightforward two-pass algorithm, the reference this package's
// Welford/Chan kernel is checked against.
func naiveNumeric(xs []float64) (count int, sum, min, max, mean, variance float64) {
	count = len(xs)
	min, max = xs[0], xs[0]
	for _, x := range xs {
		sum += x
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	mean = sum / float64(count)
	if count > 1 {
		var ss float64
		for _, x := range xs {
			d := x - mean
			ss += d * d
		}
		variance = ss / float64(count-1)
	}
	return
}

func observeInts(t *testing.T, xs []int64) *numericAcc {
	t.Helper()
	acc := newNumericAcc(KindInt)
	for _, x := range xs {
		if err := acc.Update("x", Stat{Kind: KindInt, I64: x}); err != nil {
			t.Fatalf("Update(%d): %v", x, err)
		}
	}
	return acc
}

func TestWelfordCorrectnessInt(t *testing.T) {
	xs := []int64{10, 5, 20, 1, 7, 3, -4, 100, 42}
	acc := observeInts(t, xs)

	floats := make([]float64, len(xs))
	for i, x := range xs {
		floats[i] = float64(x)
	}
	_, wantSum, wantMin, wantMax, wantMean, wantVar := naiveNumeric(floats)

	entry := acc.Finalize().(*IntAgg)
	if entry.Count != uint64(len(xs)) {
		t.Errorf("count = %d, want %d", entry.Count, len(xs))
	}
	if entry.Sum != wantSum {
		t.Errorf("sum = %v, want %v", entry.Sum, wantSum)
	}
	if *entry.Min != wantMin {
		t.Errorf("min = %v, want %v", *entry.Min, wantMin)
	}
	if *entry.Max != wantMax {
		t.Errorf("max = %v, want %v", *entry.Max, wantMax)
	}
	if math.Abs(*entry.Mean-round2(wantMean)) > 0.01 {
		t.Errorf("mean = %v, want ~%v", *entry.Mean, wantMean)
	}
	if math.Abs(*entry.Variance-round2(wantVar)) > 0.01 {
		t.Errorf("variance = %v, want ~%v", *entry.Variance, wantVar)
	}
}

// TestScenarioIntReading is spec scenario 1: observations [10, 5, 20]
// under kind int.
func TestScenarioIntReading(t *testing.T) {
	acc := observeInts(t, []int64{10, 5, 20})
	entry := acc.Finalize().(*IntAgg)

	want := map[string]float64{
		"count":       3,
		"sum":         35,
		"min":         5,
		"max":         20,
		"mean":        11.67,
		"sum_sq_diff": 116.67,
		"variance":    58.33,
		"stddev":      7.64,
		"cv_pct":      65.47,
	}
	if float64(entry.Count) != want["count"] {
		t.Errorf("count = %d, want %v", entry.Count, want["count"])
	}
	if entry.Sum != want["sum"] {
		t.Errorf("sum = %v, want %v", entry.Sum, want["sum"])
	}
	if *entry.Min != want["min"] {
		t.Errorf("min = %v, want %v", *entry.Min, want["min"])
	}
	if *entry.Max != want["max"] {
		t.Errorf("max = %v, want %v", *entry.Max, want["max"])
	}
	if *entry.Mean != want["mean"] {
		t.Errorf("mean = %v, want %v", *entry.Mean, want["mean"])
	}
	if entry.SumSqDiff != want["sum_sq_diff"] {
		t.Errorf("sum_sq_diff = %v, want %v", entry.SumSqDiff, want["sum_sq_diff"])
	}
	if *entry.Variance != want["variance"] {
		t.Errorf("variance = %v, want %v", *entry.Variance, want["variance"])
	}
	if *entry.Stddev != want["stddev"] {
		t.Errorf("stddev = %v, want %v", *entry.Stddev, want["stddev"])
	}
	if *entry.CVPct != want["cv_pct"] {
		t.Errorf("cv_pct = %v, want %v", *entry.CVPct, want["cv_pct"])
	}
}

// TestMergeAssociativity is spec scenario 6: splitting a sequence into
// any two nonempty partitions and merging must reproduce the single-
// pass result.
func TestMergeAssociativity(t *testing.T) {
	full := []int64{10, 5, 20, 1, 7, 3}
	wantEntry := observeInts(t, full).Finalize().(*IntAgg)

	for split := 1; split < len(full); split++ {
		a := observeInts(t, full[:split])
		b := observeInts(t, full[split:])
		merged, err := a.Merge("x", b)
		if err != nil {
			t.Fatalf("split %d: Merge: %v", split, err)
		}
		got := merged.Finalize().(*IntAgg)
		if got.Count != wantEntry.Count || got.Sum != wantEntry.Sum ||
			*got.Min != *wantEntry.Min || *got.Max != *wantEntry.Max {
			t.Errorf("split %d: count/sum/min/max = %d/%v/%v/%v, want %d/%v/%v/%v",
				split, got.Count, got.Sum, *got.Min, *got.Max,
				wantEntry.Count, wantEntry.Sum, *wantEntry.Min, *wantEntry.Max)
		}
		if math.Abs(*got.Mean-*wantEntry.Mean) > 0.01 {
			t.Errorf("split %d: mean = %v, want %v", split, *got.Mean, *wantEntry.Mean)
		}
		if math.Abs(*got.Variance-*wantEntry.Variance) > 0.01 {
			t.Errorf("split %d: variance = %v, want %v", split, *got.Variance, *wantEntry.Variance)
		}
	}

	// three-way partition, merged in a non-trivial order, still agrees.
	p1 := observeInts(t, full[:2])
	p2 := observeInts(t, full[2:4])
	p3 := observeInts(t, full[4:])
	m23, err := p2.Merge("x", p3)
	if err != nil {
		t.Fatal(err)
	}
	m123, err := p1.Merge("x", m23)
	if err != nil {
		t.Fatal(err)
	}
	got := m123.Finalize().(*IntAgg)
	if got.Count != wantEntry.Count || got.Sum != wantEntry.Sum {
		t.Errorf("three-way merge: count/sum = %d/%v, want %d/%v", got.Count, got.Sum, wantEntry.Count, wantEntry.Sum)
	}
}

func TestDerivedStatsNullPolicy(t *testing.T) {
	// count == 0: mean/variance/stddev/cv_pct all nil.
	empty := newNumericAcc(KindFloat).Finalize().(*FloatAgg)
	if empty.Mean != nil || empty.Variance != nil || empty.Stddev != nil || empty.CVPct != nil {
		t.Errorf("count=0: expected all derived stats nil, got mean=%v variance=%v stddev=%v cv_pct=%v",
			empty.Mean, empty.Variance, empty.Stddev, empty.CVPct)
	}

	// count == 1: variance/stddev/cv_pct nil, but mean is set.
	acc := newNumericAcc(KindFloat)
	if err := acc.Update("x", Stat{Kind: KindFloat, F64: 42}); err != nil {
		t.Fatal(err)
	}
	single := acc.Finalize().(*FloatAgg)
	if single.Mean == nil || *single.Mean != 42 {
		t.Errorf("count=1: mean = %v, want 42", single.Mean)
	}
	if single.Variance != nil || single.Stddev != nil || single.CVPct != nil {
		t.Errorf("count=1: expected variance/stddev/cv_pct nil, got %v/%v/%v", single.Variance, single.Stddev, single.CVPct)
	}

	// mean == 0 with count > 1: cv_pct nil, variance/stddev present.
	acc = newNumericAcc(KindFloat)
	for _, x := range []float64{-1, 1} {
		if err := acc.Update("x", Stat{Kind: KindFloat, F64: x}); err != nil {
			t.Fatal(err)
		}
	}
	zeroMean := acc.Finalize().(*FloatAgg)
	if zeroMean.Mean == nil || *zeroMean.Mean != 0 {
		t.Fatalf("mean = %v, want 0", zeroMean.Mean)
	}
	if zeroMean.CVPct != nil {
		t.Errorf("mean=0: expected cv_pct nil, got %v", *zeroMean.CVPct)
	}
	if zeroMean.Variance == nil || zeroMean.Stddev == nil {
		t.Errorf("mean=0: expected variance/stddev present, got variance=%v stddev=%v", zeroMean.Variance, zeroMean.Stddev)
	}
}

func TestNegativeNatRejected(t *testing.T) {
	acc := newNumericAcc(KindNat)
	if err := acc.Update("count_of_items", Stat{Kind: KindNat, I64: -1}); err == nil {
		t.Fatal("expected error for negative nat observation")
	} else if _, ok := err.(*NegativeNatError); !ok {
		t.Errorf("got %T, want *NegativeNatError", err)
	}
}

func TestNonFiniteFloatRejected(t *testing.T) {
	acc := newNumericAcc(KindFloat)
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if err := acc.Update("x", Stat{Kind: KindFloat, F64: bad}); err == nil {
			t.Errorf("expected error for %v", bad)
		}
	}
}

func TestDec2Scenario(t *testing.T) {
	// spec scenario 4's "num" variable, expressed as dec2 rather than
	// int, exercises the scaled-integer path end to end.
	acc := newDec2Acc()
	for _, v := range []float64{150, 50} {
		if err := acc.Update("num", Stat{Kind: KindDec2, Dec2: scaleDec2(v)}); err != nil {
			t.Fatal(err)
		}
	}
	entry := acc.Finalize().(*Dec2Agg)
	if entry.Count != 2 || entry.Sum != 200 || *entry.Min != 50 || *entry.Max != 150 {
		t.Errorf("count/sum/min/max = %d/%v/%v/%v, want 2/200/50/150", entry.Count, entry.Sum, *entry.Min, *entry.Max)
	}
	if *entry.Mean != 100 {
		t.Errorf("mean = %v, want 100", *entry.Mean)
	}
	if *entry.Variance != 5000 {
		t.Errorf("variance = %v, want 5000", *entry.Variance)
	}
	if *entry.Stddev != 70.71 {
		t.Errorf("stddev = %v, want 70.71", *entry.Stddev)
	}
	if *entry.CVPct != 70.71 {
		t.Errorf("cv_pct = %v, want 70.71", *entry.CVPct)
	}
}
