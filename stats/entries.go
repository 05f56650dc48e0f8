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

// fieldValue is one key/value pair of an emitted aggregate entry. It
// is the unit component E walks to build the ion wire form; the
// materializer sorts these by name before encoding; fields() need not
// emit them in sorted order itself.
type fieldValue struct {
	name string
	kind fvKind

	i       int64
	f       float64
	nullF   *float64
	s       string
	intLike bool // render i/f as an integer literal, not a decimal
	counts  map[string]uint64
	entry   AggEntry
}

type fvKind uint8

const (
	fvInt fvKind = iota
	fvFloat
	fvNullableFloat
	fvString
	fvCountMap
	fvEntry
)

func intField(name string, v int64) fieldValue {
	return fieldValue{name: name, kind: fvInt, i: v, intLike: true}
}

func floatField(name string, v float64) fieldValue {
	return fieldValue{name: name, kind: fvFloat, f: v}
}

func nullableFloatField(name string, v *float64) fieldValue {
	return fieldValue{name: name, kind: fvNullableFloat, nullF: v}
}

func stringField(name, v string) fieldValue {
	return fieldValue{name: name, kind: fvString, s: v}
}

func countMapField(name string, v map[string]uint64) fieldValue {
	return fieldValue{name: name, kind: fvCountMap, counts: v}
}

func entryField(name string, v AggEntry) fieldValue {
	return fieldValue{name: name, kind: fvEntry, entry: v}
}

// numAggCommon is the shared field set of int_agg, float_agg, and
// nat_agg (spec.md §3): count, sum, min, max, mean, sum_sq_diff plus
// the derived statistics computed once at finalization (§4.D.1). min,
// max, and mean are nil when count == 0, per the "undefined" clause
// of the count=0 invariant. intValued renders sum/min/max without a
// fractional part, matching the exact int/nat storage precision.
type numAggCommon struct {
	Count     uint64
	Sum       float64
	Min, Max  *float64
	Mean      *float64
	SumSqDiff float64
	Variance  *float64
	Stddev    *float64
	CVPct     *float64
	intValued bool
}

func (c numAggCommon) commonFields() []fieldValue {
	numF := func(name string, v float64) fieldValue {
		if c.intValued {
			return intField(name, int64(v))
		}
		return floatField(name, v)
	}
	nullNumF := func(name string, v *float64) fieldValue {
		if v == nil {
			return nullableFloatField(name, nil)
		}
		if c.intValued {
			vv := *v
			return intField(name, int64(vv))
		}
		return nullableFloatField(name, v)
	}
	return []fieldValue{
		nullableFloatField("coefficient_of_variation_pct", c.CVPct),
		intField("count", int64(c.Count)),
		nullNumF("max", c.Max),
		nullableFloatField("mean", c.Mean),
		nullNumF("min", c.Min),
		nullableFloatField("stddev", c.Stddev),
		numF("sum", c.Sum),
		floatField("sum_sq_diff", c.SumSqDiff),
		nullableFloatField("variance", c.Variance),
	}
}

// IntAgg is the finalized aggregate entry for a variable bound to
// KindInt.
type IntAgg struct{ numAggCommon }

func (a *IntAgg) Type() string { return "int_agg" }
func (a *IntAgg) fields() []fieldValue {
	return append(a.commonFields(), stringField("type", a.Type()))
}

// FloatAgg is the finalized aggregate entry for a variable bound to
// KindFloat.
type FloatAgg struct{ numAggCommon }

func (a *FloatAgg) Type() string { return "float_agg" }
func (a *FloatAgg) fields() []fieldValue {
	return append(a.commonFields(), stringField("type", a.Type()))
}

// NatAgg is the finalized aggregate entry for a variable bound to
// KindNat. Invariant: Min, if present, is >= 0 (enforced by the
// kernel rejecting negative observations before they ever reach
// Finalize).
type NatAgg struct{ numAggCommon }

func (a *NatAgg) Type() string { return "nat_agg" }
func (a *NatAgg) fields() []fieldValue {
	return append(a.commonFields(), stringField("type", a.Type()))
}

// Dec2Agg is the finalized aggregate entry for a variable bound to
// KindDec2: same shape as the numeric variants, but sum/min/max are
// always exact multiples of 0.01 (the internal scaled-integer state
// is un-scaled once, at finalization).
type Dec2Agg struct{ numAggCommon }

func (a *Dec2Agg) Type() string { return "dec2_agg" }
func (a *Dec2Agg) fields() []fieldValue {
	return append(a.commonFields(), stringField("type", a.Type()))
}

// StrAgg is the finalized aggregate entry for a variable bound to
// KindStr: a frequency map keyed by the observed text values.
type StrAgg struct{ Counts map[string]uint64 }

func (a *StrAgg) Type() string { return "str_agg" }
func (a *StrAgg) fields() []fieldValue {
	return []fieldValue{countMapField("counts", a.Counts), stringField("type", a.Type())}
}

// BoolAgg is the finalized aggregate entry for a variable bound to
// KindBool: a frequency map with only "true"/"false" keys.
type BoolAgg struct{ Counts map[string]uint64 }

func (a *BoolAgg) Type() string { return "bool_agg" }
func (a *BoolAgg) fields() []fieldValue {
	return []fieldValue{countMapField("counts", a.Counts), stringField("type", a.Type())}
}

// DateAgg is the finalized aggregate entry for a variable bound to
// KindDate: a frequency map over ISO dates plus their chronological
// (== lexicographic) min/max.
type DateAgg struct {
	Counts   map[string]uint64
	Min, Max string
}

func (a *DateAgg) Type() string { return "date_agg" }
func (a *DateAgg) fields() []fieldValue {
	return []fieldValue{
		countMapField("counts", a.Counts),
		stringField("max", a.Max),
		stringField("min", a.Min),
		stringField("type", a.Type()),
	}
}

// ArrAgg is the finalized aggregate entry for a variable bound to
// KindArr: the number of arrays observed plus per-element frequencies
// across all of them.
type ArrAgg struct {
	Count  uint64
	Counts map[string]uint64
}

func (a *ArrAgg) Type() string { return "arr_agg" }
func (a *ArrAgg) fields() []fieldValue {
	return []fieldValue{
		intField("count", int64(a.Count)),
		countMapField("counts", a.Counts),
		stringField("type", a.Type()),
	}
}
