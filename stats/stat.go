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
	"fmt"
	"math"
	"strconv"

	"github.com/veridit/jsonbstats/date"
)

// StatKind discriminates the closed set of observation kinds a Stat
// can carry. It doubles as the aggregate-entry variant selector once
// an Accumulator has been bound to one.
type StatKind uint8

const (
	KindUnknown StatKind = iota
	KindInt
	KindFloat
	KindDec2
	KindNat
	KindStr
	KindBool
	KindDate
	KindArr
)

// String renders the wire-level type tag of a bare stat for k, e.g.
// "int"; aggregate entries carry their "<kind>_agg" tag through their
// own Type method.
func (k StatKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDec2:
		return "dec2"
	case KindNat:
		return "nat"
	case KindStr:
		return "str"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindArr:
		return "arr"
	default:
		return "unknown"
	}
}

func kindFromString(s string) (StatKind, bool) {
	switch s {
	case "int":
		return KindInt, true
	case "float":
		return KindFloat, true
	case "dec2":
		return KindDec2, true
	case "nat":
		return KindNat, true
	case "str":
		return KindStr, true
	case "bool":
		return KindBool, true
	case "date":
		return KindDate, true
	case "arr":
		return KindArr, true
	default:
		return KindUnknown, false
	}
}

// Stat is one tagged scalar observation, the unit produced by the
// value codec (component A) and consumed by an Accumulator (component
// B). Exactly one of the typed fields is meaningful, selected by Kind;
// Arr is populated only when Kind == KindArr, and each of its elements
// must itself have Kind != KindArr (recursive arrays are rejected by
// the codec, never by Stat itself).
type Stat struct {
	Kind StatKind
	I64  int64   // KindInt, KindNat
	F64  float64 // KindFloat
	Dec2 int64   // KindDec2, value scaled by 100
	Str  string  // KindStr
	Bool bool    // KindBool
	Date string  // KindDate, ISO YYYY-MM-DD
	Arr  []Stat  // KindArr
}

// NatStat builds a nat-kind Stat directly; nat has no automatic
// host-type mapping (§4.A) so this is the only constructor. Negative
// values are accepted here and rejected later by the nat accumulator,
// per spec: validation is the kernel's job, not the codec's.
func NatStat(v int64) Stat {
	return Stat{Kind: KindNat, I64: v}
}

// HostKind identifies the host scalar type presented to FromScalar.
// The zero value, HostUnknown, always fails with InvalidScalarError,
// mirroring a host dispatching on an OID this core does not recognize.
type HostKind uint8

const (
	HostUnknown HostKind = iota
	HostInt32
	HostFloat64
	HostDecimal // exact decimal, presented as decimal text, e.g. "12.340"
	HostBool
	HostText
	HostDate  // calendar date, presented as parseable date/timestamp text
	HostArray // homogeneous array of host scalars, one level deep
)

// HostValue is the (typeOid, datum) pair the value codec translates
// into a Stat. It stands in for the host's actual dynamically-typed
// scalar representation, which is out of scope for this core (§1).
type HostValue struct {
	Kind HostKind
	I32  int32
	F64  float64
	Text string // HostDecimal, HostText, HostDate payload
	Bool bool
	Arr  []HostValue
}

// FromScalar decodes a host scalar into a Stat, per the table in
// spec.md §4.A. It is the only entry point of component A.
func FromScalar(v HostValue) (Stat, error) {
	switch v.Kind {
	case HostInt32:
		return Stat{Kind: KindInt, I64: int64(v.I32)}, nil
	case HostFloat64:
		if math.IsNaN(v.F64) || math.IsInf(v.F64, 0) {
			return Stat{}, &InvalidScalarError{Msg: "non-finite float"}
		}
		return Stat{Kind: KindFloat, F64: v.F64}, nil
	case HostDecimal:
		f, err := strconv.ParseFloat(v.Text, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return Stat{}, &InvalidScalarError{Msg: fmt.Sprintf("unparseable decimal %q", v.Text)}
		}
		return Stat{Kind: KindDec2, Dec2: scaleDec2(f)}, nil
	case HostBool:
		return Stat{Kind: KindBool, Bool: v.Bool}, nil
	case HostText:
		return Stat{Kind: KindStr, Str: v.Text}, nil
	case HostDate:
		iso, err := parseISODate(v.Text)
		if err != nil {
			return Stat{}, err
		}
		return Stat{Kind: KindDate, Date: iso}, nil
	case HostArray:
		elems := make([]Stat, len(v.Arr))
		for i, e := range v.Arr {
			if e.Kind == HostArray {
				return Stat{}, &InvalidScalarError{Msg: "recursive arrays are rejected"}
			}
			s, err := FromScalar(e)
			if err != nil {
				return Stat{}, err
			}
			elems[i] = s
		}
		return Stat{Kind: KindArr, Arr: elems}, nil
	default:
		return Stat{}, &InvalidScalarError{Msg: "unknown host type"}
	}
}

// parseISODate validates data as a calendar date and reformats it to
// canonical ISO YYYY-MM-DD, using the same parser the core uses to
// build date.Time values elsewhere (date.Parse).
func parseISODate(data string) (string, error) {
	t, ok := date.Parse([]byte(data))
	if !ok {
		return "", &InvalidScalarError{Msg: fmt.Sprintf("unparseable date %q", data)}
	}
	return fmt.Sprintf("%04d-%02d-%02d", t.Year(), t.Month(), t.Day()), nil
}

// elementString renders an array element (arbitrary non-arr Stat) to
// the string key used by the arr kernel's frequency map, per §4.B.5:
// strings verbatim, int/nat/float via shortest round-trip decimal,
// dec2 with exactly two fractional digits (e.g. "150.00"), booleans
// as "true"/"false", and a literal "null" for an absent
// element kind (KindUnknown is used as that null marker by callers
// building arrays directly).
func elementString(s Stat) string {
	switch s.Kind {
	case KindStr:
		return s.Str
	case KindInt, KindNat:
		return strconv.FormatInt(s.I64, 10)
	case KindFloat:
		return strconv.FormatFloat(s.F64, 'g', -1, 64)
	case KindDec2:
		return strconv.FormatFloat(float64(s.Dec2)/100, 'f', 2, 64)
	case KindBool:
		if s.Bool {
			return "true"
		}
		return "false"
	case KindDate:
		return s.Date
	default:
		return "null"
	}
}
