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

// countMapAcc implements the str/bool count-map kernel (spec.md
// §4.B.3): an unordered value->count mapping, updated by increment
// and merged by pointwise sum. Booleans are keyed as "true"/"false"
// strings by countMapKey on their way into the map.
type countMapAcc struct {
	kind   StatKind
	counts map[string]uint64
}

func newCountMapAcc(k StatKind) *countMapAcc {
	return &countMapAcc{kind: k, counts: map[string]uint64{}}
}

func (a *countMapAcc) Kind() StatKind { return a.kind }

func (a *countMapAcc) Update(name string, s Stat) error {
	if s.Kind != a.kind {
		return &TypeMismatchError{Name: name, Have: s.Kind.String(), Want: a.kind.String()}
	}
	a.counts[countMapKey(s)]++
	return nil
}

func countMapKey(s Stat) string {
	if s.Kind == KindBool {
		if s.Bool {
			return "true"
		}
		return "false"
	}
	return s.Str
}

func (a *countMapAcc) Merge(name string, other Accumulator) (Accumulator, error) {
	b, ok := other.(*countMapAcc)
	if !ok || b.kind != a.kind {
		return nil, &TypeMismatchError{Name: name, Have: other.Kind().String(), Want: a.kind.String()}
	}
	merged := make(map[string]uint64, len(a.counts)+len(b.counts))
	for k, v := range a.counts {
		merged[k] = v
	}
	for k, v := range b.counts {
		merged[k] += v
	}
	return &countMapAcc{kind: a.kind, counts: merged}, nil
}

func (a *countMapAcc) Finalize() AggEntry {
	if a.kind == KindBool {
		return &BoolAgg{Counts: a.counts}
	}
	return &StrAgg{Counts: a.counts}
}
