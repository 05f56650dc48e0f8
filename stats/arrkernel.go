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

// arrAcc implements the arr kernel (spec.md §4.B.5): a count of
// arrays observed plus per-element frequencies across all of them.
// Duplicate elements within a single array are counted multiply.
type arrAcc struct {
	count  uint64
	counts map[string]uint64
}

func newArrAcc() *arrAcc {
	return &arrAcc{counts: map[string]uint64{}}
}

func (a *arrAcc) Kind() StatKind { return KindArr }

func (a *arrAcc) Update(name string, s Stat) error {
	if s.Kind != KindArr {
		return &TypeMismatchError{Name: name, Have: s.Kind.String(), Want: KindArr.String()}
	}
	a.count++
	for _, elem := range s.Arr {
		a.counts[elementString(elem)]++
	}
	return nil
}

func (a *arrAcc) Merge(name string, other Accumulator) (Accumulator, error) {
	b, ok := other.(*arrAcc)
	if !ok {
		return nil, &TypeMismatchError{Name: name, Have: other.Kind().String(), Want: KindArr.String()}
	}
	merged := make(map[string]uint64, len(a.counts)+len(b.counts))
	for k, v := range a.counts {
		merged[k] = v
	}
	for k, v := range b.counts {
		merged[k] += v
	}
	return &arrAcc{count: a.count + b.count, counts: merged}, nil
}

func (a *arrAcc) Finalize() AggEntry {
	return &ArrAgg{Count: a.count, Counts: a.counts}
}
