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

// dateAcc implements the date kernel (spec.md §4.B.4): a count-map
// plus a running (min, max) pair of ISO YYYY-MM-DD strings, valid
// because ISO date strings compare lexicographically in chronological
// order.
type dateAcc struct {
	counts   map[string]uint64
	min, max string
	has      bool
}

func newDateAcc() *dateAcc {
	return &dateAcc{counts: map[string]uint64{}}
}

func (a *dateAcc) Kind() StatKind { return KindDate }

func (a *dateAcc) Update(name string, s Stat) error {
	if s.Kind != KindDate {
		return &TypeMismatchError{Name: name, Have: s.Kind.String(), Want: KindDate.String()}
	}
	a.counts[s.Date]++
	if !a.has {
		a.min, a.max = s.Date, s.Date
		a.has = true
		return nil
	}
	if s.Date < a.min {
		a.min = s.Date
	}
	if s.Date > a.max {
		a.max = s.Date
	}
	return nil
}

func (a *dateAcc) Merge(name string, other Accumulator) (Accumulator, error) {
	b, ok := other.(*dateAcc)
	if !ok {
		return nil, &TypeMismatchError{Name: name, Have: other.Kind().String(), Want: KindDate.String()}
	}
	if !a.has {
		cp := *b
		return &cp, nil
	}
	if !b.has {
		cp := *a
		return &cp, nil
	}
	merged := make(map[string]uint64, len(a.counts)+len(b.counts))
	for k, v := range a.counts {
		merged[k] = v
	}
	for k, v := range b.counts {
		merged[k] += v
	}
	min, max := a.min, a.max
	if b.min < min {
		min = b.min
	}
	if b.max > max {
		max = b.max
	}
	return &dateAcc{counts: merged, min: min, max: max, has: true}, nil
}

func (a *dateAcc) Finalize() AggEntry {
	return &DateAgg{Counts: a.counts, Min: a.min, Max: a.max}
}
