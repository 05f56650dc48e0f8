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
	"reflect"
	"testing"
)

func observeStrs(t *testing.T, vals []string) map[string]uint64 {
	t.Helper()
	acc := newCountMapAcc(KindStr)
	for _, v := range vals {
		if err := acc.Update("category", Stat{Kind: KindStr, Str: v}); err != nil {
			t.Fatal(err)
		}
	}
	return acc.Finalize().(*StrAgg).Counts
}

// TestScenarioCategoryCounts is spec scenario 2.
func TestScenarioCategoryCounts(t *testing.T) {
	got := observeStrs(t, []string{"apple", "banana", "apple"})
	want := map[string]uint64{"apple": 2, "banana": 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("counts = %v, want %v", got, want)
	}
}

// TestScenarioBoolCounts is spec scenario 3.
func TestScenarioBoolCounts(t *testing.T) {
	acc := newCountMapAcc(KindBool)
	for _, v := range []bool{true, false, true} {
		if err := acc.Update("active", Stat{Kind: KindBool, Bool: v}); err != nil {
			t.Fatal(err)
		}
	}
	got := acc.Finalize().(*BoolAgg).Counts
	want := map[string]uint64{"true": 2, "false": 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("counts = %v, want %v", got, want)
	}
}

func TestCountMapIdempotentUnderPermutation(t *testing.T) {
	orders := [][]string{
		{"a", "b", "a", "c", "b", "a"},
		{"c", "b", "a", "a", "a", "b"},
		{"a", "a", "a", "b", "b", "c"},
	}
	var want map[string]uint64
	for i, order := range orders {
		got := observeStrs(t, order)
		if i == 0 {
			want = got
			continue
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("order %d: counts = %v, want %v", i, got, want)
		}
	}
}

// TestScenarioArrTags is spec scenario 5: array observations
// [[1,2],[2,3],[3,4]] under "tags".
func TestScenarioArrTags(t *testing.T) {
	acc := newArrAcc()
	arrays := [][]int64{{1, 2}, {2, 3}, {3, 4}}
	for _, arr := range arrays {
		elems := make([]Stat, len(arr))
		for i, v := range arr {
			elems[i] = Stat{Kind: KindInt, I64: v}
		}
		if err := acc.Update("tags", Stat{Kind: KindArr, Arr: elems}); err != nil {
			t.Fatal(err)
		}
	}
	entry := acc.Finalize().(*ArrAgg)
	if entry.Count != 3 {
		t.Errorf("count = %d, want 3", entry.Count)
	}
	want := map[string]uint64{"1": 1, "2": 2, "3": 2, "4": 1}
	if !reflect.DeepEqual(entry.Counts, want) {
		t.Errorf("counts = %v, want %v", entry.Counts, want)
	}
}

func TestArrIdempotentUnderPermutation(t *testing.T) {
	build := func(order [][]int64) *ArrAgg {
		acc := newArrAcc()
		for _, arr := range order {
			elems := make([]Stat, len(arr))
			for i, v := range arr {
				elems[i] = Stat{Kind: KindInt, I64: v}
			}
			if err := acc.Update("tags", Stat{Kind: KindArr, Arr: elems}); err != nil {
				t.Fatal(err)
			}
		}
		return acc.Finalize().(*ArrAgg)
	}
	a := build([][]int64{{1, 2}, {2, 3}, {3, 4}})
	b := build([][]int64{{3, 4}, {1, 2}, {2, 3}})
	if a.Count != b.Count || !reflect.DeepEqual(a.Counts, b.Counts) {
		t.Errorf("reordered arrays produced different arr_agg: %+v vs %+v", a, b)
	}
}

func TestDateKernel(t *testing.T) {
	acc := newDateAcc()
	for _, d := range []string{"2024-03-01", "2024-01-15", "2024-06-30", "2024-01-15"} {
		if err := acc.Update("signup_date", Stat{Kind: KindDate, Date: d}); err != nil {
			t.Fatal(err)
		}
	}
	entry := acc.Finalize().(*DateAgg)
	if entry.Min != "2024-01-15" || entry.Max != "2024-06-30" {
		t.Errorf("min/max = %s/%s, want 2024-01-15/2024-06-30", entry.Min, entry.Max)
	}
	if entry.Counts["2024-01-15"] != 2 {
		t.Errorf("counts[2024-01-15] = %d, want 2", entry.Counts["2024-01-15"])
	}
}
