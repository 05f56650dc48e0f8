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
	"math/big"
	"sort"

	"github.com/veridit/jsonbstats/ion"
)

// Document is the in-memory form of a stats document (spec.md §3): a
// named bundle of stats for one entity. Entries are kept in whatever
// order they were appended; Encode sorts them, per the canonical-form
// invariant (§6, §8).
type Document struct {
	Entries []NamedStat
}

// NamedStat is one (variable name, stat) pair of a Document.
type NamedStat struct {
	Name string
	Stat Stat
}

// NamedAggEntry is one (variable name, aggregate entry) pair of an
// AggDocument.
type NamedAggEntry struct {
	Name  string
	Entry AggEntry
}

// AggDocument is the in-memory form of a stats_agg document (spec.md
// §3): a named bundle of aggregate entries for one entity.
type AggDocument struct {
	Entries []NamedAggEntry
}

// component E: the document materializer. It walks a document's
// (already-sorted) entries and either the ion wire encoding or a
// fieldValue stream; it never re-parses an inner document it has
// already decoded (spec.md §9's "avoid re-parsing nested documents"
// hazard note), since every accumulator's Finalize() happens exactly
// once and results are threaded through Go values, not re-encoded
// intermediate documents.

// Encode renders d to its canonical ion form: a struct with fields
// sorted lexicographically and the "stats" discriminator at its
// sorted position (spec.md §3, §6).
func (d *Document) Encode(st *ion.Symtab) ion.Datum {
	names := make([]string, len(d.Entries))
	byName := make(map[string]Stat, len(d.Entries))
	for i, e := range d.Entries {
		names[i] = e.Name
		byName[e.Name] = e.Stat
	}
	sort.Strings(names)

	fields := make([]ion.Field, 0, len(names)+1)
	fields = appendSortedWithDiscriminator(fields, names, "stats", func(dst []ion.Field, name string) []ion.Field {
		return append(dst, ion.Field{Label: name, Value: statDatum(byName[name], st)})
	})
	return ion.NewStruct(st, fields).Datum()
}

// Encode renders d to its canonical stats_agg ion form (spec.md §3,
// §6): fields sorted lexicographically, each aggregate entry itself a
// struct with the "<kind>_agg" discriminator at its own sorted
// position, and the top-level "stats_agg" discriminator at its sorted
// position.
func (d *AggDocument) Encode(st *ion.Symtab) ion.Datum {
	names := make([]string, len(d.Entries))
	byName := make(map[string]AggEntry, len(d.Entries))
	for i, e := range d.Entries {
		names[i] = e.Name
		byName[e.Name] = e.Entry
	}
	sort.Strings(names)

	fields := make([]ion.Field, 0, len(names)+1)
	fields = appendSortedWithDiscriminator(fields, names, "stats_agg", func(dst []ion.Field, name string) []ion.Field {
		return append(dst, ion.Field{Label: name, Value: entryDatum(byName[name], st)})
	})
	return ion.NewStruct(st, fields).Datum()
}

// appendSortedWithDiscriminator inserts the synthetic "type" key at
// its lexicographically-sorted position among names and calls add for
// every real (non-discriminator) name in sorted order, preserving the
// single-discriminator invariant (spec.md §9).
func appendSortedWithDiscriminator(fields []ion.Field, sortedNames []string, typeValue string, add func([]ion.Field, string) []ion.Field) []ion.Field {
	inserted := false
	for _, name := range sortedNames {
		if !inserted && "type" < name {
			fields = append(fields, ion.Field{Label: "type", Value: ion.String(typeValue)})
			inserted = true
		}
		fields = add(fields, name)
	}
	if !inserted {
		fields = append(fields, ion.Field{Label: "type", Value: ion.String(typeValue)})
	}
	return fields
}

// statDatum encodes one Stat to its ion wire value, per spec.md §4.A's
// "stat.value encoding" column; the struct carries both "type" and
// "value" fields, sorted ("type" < "value").
func statDatum(s Stat, st *ion.Symtab) ion.Datum {
	return ion.NewStruct(st, []ion.Field{
		{Label: "type", Value: ion.String(s.Kind.String())},
		{Label: "value", Value: scalarValueDatum(s, st)},
	}).Datum()
}

func scalarValueDatum(s Stat, st *ion.Symtab) ion.Datum {
	switch s.Kind {
	case KindInt, KindNat:
		return ion.Int(s.I64)
	case KindFloat:
		return ion.Float(s.F64)
	case KindDec2:
		return ion.Float(float64(s.Dec2) / 100)
	case KindStr:
		return ion.String(s.Str)
	case KindBool:
		return ion.Bool(s.Bool)
	case KindDate:
		return ion.String(s.Date)
	case KindArr:
		items := make([]ion.Datum, len(s.Arr))
		for i, e := range s.Arr {
			items[i] = scalarValueDatum(e, st)
		}
		return ion.NewList(st, items).Datum()
	default:
		return ion.Null
	}
}

// entryDatum encodes one finalized AggEntry to its ion struct form,
// sorting the entry's fieldValues by name first (fields() in
// entries.go does not return them in sorted order: the numeric
// variants append "type" after "variance").
func entryDatum(e AggEntry, st *ion.Symtab) ion.Datum {
	fvs := e.fields()
	sort.Slice(fvs, func(i, j int) bool { return fvs[i].name < fvs[j].name })
	fields := make([]ion.Field, len(fvs))
	for i, fv := range fvs {
		fields[i] = ion.Field{Label: fv.name, Value: fieldValueDatum(fv, st)}
	}
	return ion.NewStruct(st, fields).Datum()
}

func fieldValueDatum(fv fieldValue, st *ion.Symtab) ion.Datum {
	switch fv.kind {
	case fvInt:
		return ion.Int(fv.i)
	case fvFloat:
		return ion.Float(fv.f)
	case fvNullableFloat:
		if fv.nullF == nil {
			return ion.Null
		}
		return ion.Float(*fv.nullF)
	case fvString:
		return ion.String(fv.s)
	case fvCountMap:
		names := make([]string, 0, len(fv.counts))
		for k := range fv.counts {
			names = append(names, k)
		}
		sort.Strings(names)
		cfields := make([]ion.Field, len(names))
		for i, k := range names {
			cfields[i] = ion.Field{Label: k, Value: ion.Int(int64(fv.counts[k]))}
		}
		return ion.NewStruct(st, cfields).Datum()
	case fvEntry:
		return entryDatum(fv.entry, st)
	default:
		return ion.Null
	}
}

// StatsFromDocument decodes a stats-document ion struct into a
// Document. Every field other than "type" must itself be a {type,
// value} stat struct; a field of any other shape is rejected with
// MalformedDocumentError. Any top-level "type" field on the input is
// skipped; Document.Encode writes the discriminator again.
func StatsFromDocument(d ion.Datum) (Document, error) {
	s, ok := d.Struct()
	if !ok {
		return Document{}, &MalformedDocumentError{Msg: "stats document is not a struct"}
	}
	var doc Document
	var walkErr error
	err := s.Each(func(f ion.Field) bool {
		if f.Label == "type" {
			return true
		}
		stat, err := decodeStatField(f.Value)
		if err != nil {
			walkErr = err
			return false
		}
		doc.Entries = append(doc.Entries, NamedStat{Name: f.Label, Stat: stat})
		return true
	})
	if err != nil {
		return Document{}, &MalformedDocumentError{Msg: err.Error()}
	}
	if walkErr != nil {
		return Document{}, walkErr
	}
	return doc, nil
}

// decodeStatField decodes one {type, value} stat struct, per spec.md
// §4.A's type table.
func decodeStatField(d ion.Datum) (Stat, error) {
	s, ok := d.Struct()
	if !ok {
		return Stat{}, &MalformedDocumentError{Msg: "stat is not a struct"}
	}
	typeField, ok := s.FieldByName("type")
	if !ok {
		return Stat{}, &MalformedDocumentError{Field: "type", Msg: "missing"}
	}
	typeStr, ok := typeField.Value.String()
	if !ok {
		return Stat{}, &MalformedDocumentError{Field: "type", Msg: "not a string"}
	}
	kind, ok := kindFromString(typeStr)
	if !ok {
		return Stat{}, &UnknownStatTypeError{Type: typeStr}
	}
	valueField, ok := s.FieldByName("value")
	if !ok {
		return Stat{}, &MalformedDocumentError{Field: "value", Msg: "missing"}
	}
	return decodeScalarValue(kind, valueField.Value)
}

func decodeScalarValue(kind StatKind, v ion.Datum) (Stat, error) {
	switch kind {
	case KindInt, KindNat:
		i, ok := v.Int()
		if !ok {
			if u, ok2 := v.Uint(); ok2 {
				i, ok = int64(u), true
			}
		}
		if !ok {
			return Stat{}, &MalformedDocumentError{Field: "value", Msg: "not an integer"}
		}
		return Stat{Kind: kind, I64: i}, nil
	case KindFloat:
		f, ok := v.Float()
		if !ok {
			return Stat{}, &MalformedDocumentError{Field: "value", Msg: "not a float"}
		}
		return Stat{Kind: KindFloat, F64: f}, nil
	case KindDec2:
		f, ok := v.Float()
		if !ok {
			return Stat{}, &MalformedDocumentError{Field: "value", Msg: "not a decimal"}
		}
		return Stat{Kind: KindDec2, Dec2: scaleDec2(f)}, nil
	case KindStr:
		str, ok := v.String()
		if !ok {
			return Stat{}, &MalformedDocumentError{Field: "value", Msg: "not a string"}
		}
		return Stat{Kind: KindStr, Str: str}, nil
	case KindBool:
		b, ok := v.Bool()
		if !ok {
			return Stat{}, &MalformedDocumentError{Field: "value", Msg: "not a bool"}
		}
		return Stat{Kind: KindBool, Bool: b}, nil
	case KindDate:
		str, ok := v.String()
		if !ok {
			return Stat{}, &MalformedDocumentError{Field: "value", Msg: "not a date string"}
		}
		return Stat{Kind: KindDate, Date: str}, nil
	case KindArr:
		l, ok := v.List()
		if !ok {
			return Stat{}, &MalformedDocumentError{Field: "value", Msg: "not an array"}
		}
		items := l.Items(nil)
		elems := make([]Stat, 0, len(items))
		for _, item := range items {
			s, ok := item.Struct()
			if !ok {
				return Stat{}, &MalformedDocumentError{Field: "value", Msg: "array element is not a stat struct"}
			}
			tf, ok := s.FieldByName("type")
			if !ok {
				return Stat{}, &MalformedDocumentError{Field: "type", Msg: "missing on array element"}
			}
			ts, ok := tf.Value.String()
			if !ok {
				return Stat{}, &MalformedDocumentError{Field: "type", Msg: "not a string"}
			}
			ek, ok := kindFromString(ts)
			if !ok {
				return Stat{}, &UnknownStatTypeError{Type: ts}
			}
			if ek == KindArr {
				return Stat{}, &InvalidScalarError{Msg: "recursive arrays are rejected"}
			}
			vf, ok := s.FieldByName("value")
			if !ok {
				return Stat{}, &MalformedDocumentError{Field: "value", Msg: "missing on array element"}
			}
			elem, err := decodeScalarValue(ek, vf.Value)
			if err != nil {
				return Stat{}, err
			}
			elems = append(elems, elem)
		}
		return Stat{Kind: KindArr, Arr: elems}, nil
	default:
		return Stat{}, &UnknownStatTypeError{Type: kind.String()}
	}
}

// decodeAggDocumentToEntity decodes a stats_agg ion struct back into
// an entity of accumulators-in-progress, one per variable, so that
// merge-of-aggs (aggregate case 3, spec.md §4.D) can fold a
// previously-emitted stats_agg value back into a running merge. This
// is the "re-reads stats_agg documents for merge-with-value paths"
// responsibility of component E (spec.md §2).
func decodeAggDocumentToEntity(d ion.Datum) (*entity, error) {
	s, ok := d.Struct()
	if !ok {
		return nil, &MalformedDocumentError{Msg: "stats_agg document is not a struct"}
	}
	e := newEntity()
	var walkErr error
	err := s.Each(func(f ion.Field) bool {
		if f.Label == "type" {
			return true
		}
		acc, err := decodeAggEntry(f.Value)
		if err != nil {
			walkErr = err
			return false
		}
		e.vars[f.Label] = acc
		return true
	})
	if err != nil {
		return nil, &MalformedDocumentError{Msg: err.Error()}
	}
	if walkErr != nil {
		return nil, walkErr
	}
	return e, nil
}

// decodeAggEntry decodes one aggregate-entry struct into a "replayed"
// Accumulator: one already containing the decoded count/sum/... state,
// ready to be merged against another accumulator via the ordinary
// Merge path (so merge-of-aggs reuses exactly the same pairwise-merge
// code as agg-from-stats, per spec.md §4.D's combine contract).
func decodeAggEntry(d ion.Datum) (Accumulator, error) {
	s, ok := d.Struct()
	if !ok {
		return nil, &MalformedDocumentError{Msg: "aggregate entry is not a struct"}
	}
	typeField, ok := s.FieldByName("type")
	if !ok {
		return nil, &MalformedDocumentError{Field: "type", Msg: "missing"}
	}
	typeStr, ok := typeField.Value.String()
	if !ok {
		return nil, &MalformedDocumentError{Field: "type", Msg: "not a string"}
	}
	switch typeStr {
	case "int_agg", "float_agg", "nat_agg":
		return decodeNumericAgg(typeStr, s)
	case "dec2_agg":
		return decodeDec2Agg(s)
	case "str_agg", "bool_agg":
		return decodeCountMapAgg(typeStr, s)
	case "date_agg":
		return decodeDateAgg(s)
	case "arr_agg":
		return decodeArrAgg(s)
	default:
		return nil, &UnknownAggTypeError{Type: typeStr}
	}
}

func requiredInt(s ion.Struct, field string) (int64, error) {
	f, ok := s.FieldByName(field)
	if !ok {
		return 0, &MalformedDocumentError{Field: field, Msg: "missing"}
	}
	if i, ok := f.Value.Int(); ok {
		return i, nil
	}
	if u, ok := f.Value.Uint(); ok {
		return int64(u), nil
	}
	if fl, ok := f.Value.Float(); ok {
		return int64(fl), nil
	}
	return 0, &MalformedDocumentError{Field: field, Msg: "not an integer"}
}

func optionalFloat(s ion.Struct, field string) (*float64, error) {
	f, ok := s.FieldByName(field)
	if !ok {
		return nil, nil
	}
	if f.Value.Null() {
		return nil, nil
	}
	if v, ok := f.Value.Float(); ok {
		return &v, nil
	}
	if v, ok := f.Value.Int(); ok {
		fv := float64(v)
		return &fv, nil
	}
	return nil, &MalformedDocumentError{Field: field, Msg: "not a number"}
}

func decodeNumericAgg(typeStr string, s ion.Struct) (Accumulator, error) {
	kind := KindInt
	switch typeStr {
	case "float_agg":
		kind = KindFloat
	case "nat_agg":
		kind = KindNat
	}
	count, err := requiredInt(s, "count")
	if err != nil {
		return nil, err
	}
	acc := &numericAcc{kind: kind, count: uint64(count)}
	if count == 0 {
		return acc, nil
	}
	sum, err := requiredFloat(s, "sum")
	if err != nil {
		return nil, err
	}
	min, err := optionalFloat(s, "min")
	if err != nil {
		return nil, err
	}
	max, err := optionalFloat(s, "max")
	if err != nil {
		return nil, err
	}
	mean, err := optionalFloat(s, "mean")
	if err != nil {
		return nil, err
	}
	sumSqDiff, err := requiredFloat(s, "sum_sq_diff")
	if err != nil {
		return nil, err
	}
	if mean != nil {
		acc.mean = *mean
	}
	acc.sumSqDiff = sumSqDiff
	switch kind {
	case KindFloat:
		acc.sumFloat = sum
		if min != nil {
			acc.minFloat = *min
		}
		if max != nil {
			acc.maxFloat = *max
		}
	default:
		acc.sumInt = big.NewInt(int64(sum))
		if min != nil {
			acc.minInt = int64(*min)
		}
		if max != nil {
			acc.maxInt = int64(*max)
		}
	}
	return acc, nil
}

func requiredFloat(s ion.Struct, field string) (float64, error) {
	f, ok := s.FieldByName(field)
	if !ok {
		return 0, &MalformedDocumentError{Field: field, Msg: "missing"}
	}
	if v, ok := f.Value.Float(); ok {
		return v, nil
	}
	if v, ok := f.Value.Int(); ok {
		return float64(v), nil
	}
	if v, ok := f.Value.Uint(); ok {
		return float64(v), nil
	}
	return 0, &MalformedDocumentError{Field: field, Msg: "not a number"}
}

func decodeDec2Agg(s ion.Struct) (Accumulator, error) {
	count, err := requiredInt(s, "count")
	if err != nil {
		return nil, err
	}
	acc := &dec2Acc{count: uint64(count)}
	if count == 0 {
		return acc, nil
	}
	sum, err := requiredFloat(s, "sum")
	if err != nil {
		return nil, err
	}
	min, err := optionalFloat(s, "min")
	if err != nil {
		return nil, err
	}
	max, err := optionalFloat(s, "max")
	if err != nil {
		return nil, err
	}
	mean, err := optionalFloat(s, "mean")
	if err != nil {
		return nil, err
	}
	sumSqDiff, err := requiredFloat(s, "sum_sq_diff")
	if err != nil {
		return nil, err
	}
	acc.sumScaled = scaleDec2(sum)
	if min != nil {
		acc.minScaled = scaleDec2(*min)
	}
	if max != nil {
		acc.maxScaled = scaleDec2(*max)
	}
	if mean != nil {
		acc.meanScaled = *mean * 100
	}
	acc.sumSqDiffScaled = sumSqDiff * 100 * 100
	return acc, nil
}

func decodeCountMapAgg(typeStr string, s ion.Struct) (Accumulator, error) {
	kind := KindStr
	if typeStr == "bool_agg" {
		kind = KindBool
	}
	counts, err := decodeCounts(s)
	if err != nil {
		return nil, err
	}
	return &countMapAcc{kind: kind, counts: counts}, nil
}

func decodeCounts(s ion.Struct) (map[string]uint64, error) {
	f, ok := s.FieldByName("counts")
	if !ok {
		return nil, &MalformedDocumentError{Field: "counts", Msg: "missing"}
	}
	cs, ok := f.Value.Struct()
	if !ok {
		return nil, &MalformedDocumentError{Field: "counts", Msg: "not a struct"}
	}
	counts := map[string]uint64{}
	var walkErr error
	cs.Each(func(cf ion.Field) bool {
		n, ok := cf.Value.Int()
		if !ok {
			if u, ok2 := cf.Value.Uint(); ok2 {
				n, ok = int64(u), true
			}
		}
		if !ok {
			walkErr = &MalformedDocumentError{Field: "counts." + cf.Label, Msg: "not an integer"}
			return false
		}
		counts[cf.Label] = uint64(n)
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return counts, nil
}

func decodeDateAgg(s ion.Struct) (Accumulator, error) {
	counts, err := decodeCounts(s)
	if err != nil {
		return nil, err
	}
	minF, ok := s.FieldByName("min")
	if !ok {
		return nil, &MalformedDocumentError{Field: "min", Msg: "missing"}
	}
	maxF, ok := s.FieldByName("max")
	if !ok {
		return nil, &MalformedDocumentError{Field: "max", Msg: "missing"}
	}
	min, ok := minF.Value.String()
	if !ok {
		return nil, &MalformedDocumentError{Field: "min", Msg: "not a string"}
	}
	max, ok := maxF.Value.String()
	if !ok {
		return nil, &MalformedDocumentError{Field: "max", Msg: "not a string"}
	}
	return &dateAcc{counts: counts, min: min, max: max, has: len(counts) > 0 || min != "" || max != ""}, nil
}

// decodeAggDocumentToEntityRaw mirrors decodeAggDocumentToEntity but
// decodes the unrounded, still-scaled form that entity.finalizeRaw
// emits (used only by AggState/MergeState's Serialize/Deserialize
// round-trip, never for the public merge(a, b) surface).
func decodeAggDocumentToEntityRaw(d ion.Datum) (*entity, error) {
	s, ok := d.Struct()
	if !ok {
		return nil, &MalformedDocumentError{Msg: "serialized state is not a struct"}
	}
	e := newEntity()
	var walkErr error
	err := s.Each(func(f ion.Field) bool {
		if f.Label == "type" {
			return true
		}
		acc, err := decodeAggEntryRaw(f.Value)
		if err != nil {
			walkErr = err
			return false
		}
		e.vars[f.Label] = acc
		return true
	})
	if err != nil {
		return nil, &MalformedDocumentError{Msg: err.Error()}
	}
	if walkErr != nil {
		return nil, walkErr
	}
	return e, nil
}

func decodeAggEntryRaw(d ion.Datum) (Accumulator, error) {
	s, ok := d.Struct()
	if !ok {
		return nil, &MalformedDocumentError{Msg: "aggregate entry is not a struct"}
	}
	typeField, ok := s.FieldByName("type")
	if !ok {
		return nil, &MalformedDocumentError{Field: "type", Msg: "missing"}
	}
	typeStr, ok := typeField.Value.String()
	if !ok {
		return nil, &MalformedDocumentError{Field: "type", Msg: "not a string"}
	}
	if typeStr == "dec2_agg" {
		return decodeDec2AggRaw(s)
	}
	return decodeAggEntry(d)
}

func decodeDec2AggRaw(s ion.Struct) (Accumulator, error) {
	count, err := requiredInt(s, "count")
	if err != nil {
		return nil, err
	}
	acc := &dec2Acc{count: uint64(count)}
	if count == 0 {
		return acc, nil
	}
	sum, err := requiredFloat(s, "sum")
	if err != nil {
		return nil, err
	}
	min, err := optionalFloat(s, "min")
	if err != nil {
		return nil, err
	}
	max, err := optionalFloat(s, "max")
	if err != nil {
		return nil, err
	}
	mean, err := optionalFloat(s, "mean")
	if err != nil {
		return nil, err
	}
	sumSqDiff, err := requiredFloat(s, "sum_sq_diff")
	if err != nil {
		return nil, err
	}
	acc.sumScaled = int64(sum)
	if min != nil {
		acc.minScaled = int64(*min)
	}
	if max != nil {
		acc.maxScaled = int64(*max)
	}
	if mean != nil {
		acc.meanScaled = *mean
	}
	acc.sumSqDiffScaled = sumSqDiff
	return acc, nil
}

func decodeArrAgg(s ion.Struct) (Accumulator, error) {
	counts, err := decodeCounts(s)
	if err != nil {
		return nil, err
	}
	count, err := requiredInt(s, "count")
	if err != nil {
		return nil, err
	}
	return &arrAcc{count: uint64(count), counts: counts}, nil
}
