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

// Accumulator is the common interface every per-variable kernel
// (component B) implements: init is folded into the first Update,
// Merge combines two same-kind accumulators associatively and
// commutatively, and Finalize produces the aggregate-entry document
// form exactly once, at the top level.
type Accumulator interface {
	// Kind reports the StatKind this accumulator is bound to.
	Kind() StatKind
	// Update folds one observation into the accumulator. The
	// observation's Kind must match Kind(), or TypeMismatchError is
	// returned.
	Update(name string, s Stat) error
	// Merge returns a new accumulator holding the pairwise-merged
	// state of the receiver and other. Neither input is mutated.
	Merge(name string, other Accumulator) (Accumulator, error)
	// Finalize produces the aggregate-entry document for this
	// accumulator's current state.
	Finalize() AggEntry
}

// AggEntry is a finalized aggregate-entry document: one of
// *IntAgg/*FloatAgg/*NatAgg, *Dec2Agg, *StrAgg/*BoolAgg, *DateAgg, or
// *ArrAgg. Type returns the entry's own "<kind>_agg" discriminator.
type AggEntry interface {
	Type() string
	fields() []fieldValue
}

// newAccumulator constructs the zero-value accumulator for the kind of
// the first observation seen for a variable, per §4.C's lazy-binding
// contract.
func newAccumulator(k StatKind) (Accumulator, error) {
	switch k {
	case KindInt, KindFloat, KindNat:
		return newNumericAcc(k), nil
	case KindDec2:
		return newDec2Acc(), nil
	case KindStr, KindBool:
		return newCountMapAcc(k), nil
	case KindDate:
		return newDateAcc(), nil
	case KindArr:
		return newArrAcc(), nil
	default:
		return nil, &UnknownStatTypeError{Type: k.String()}
	}
}
