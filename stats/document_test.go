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
	"sort"
	"testing"

	"github.com/veridit/jsonbstats/ion"
)

// fieldLabels walks a struct datum and returns its field labels in
// encoded order.
func fieldLabels(t *testing.T, d ion.Datum) []string {
	t.Helper()
	s, ok := d.Struct()
	if !ok {
		t.Fatalf("not a struct: %v", d)
	}
	var labels []string
	err := s.Each(func(f ion.Field) bool {
		labels = append(labels, f.Label)
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	return labels
}

func assertSortedWithType(t *testing.T, labels []string) {
	t.Helper()
	if !sort.StringsAreSorted(labels) {
		t.Errorf("labels not in lexicographic order: %v", labels)
	}
	n := 0
	for _, l := range labels {
		if l == "type" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("expected exactly one \"type\" field, found %d in %v", n, labels)
	}
}

func TestCanonicalFormDocument(t *testing.T) {
	doc := Document{Entries: []NamedStat{
		{Name: "zebra", Stat: Stat{Kind: KindInt, I64: 1}},
		{Name: "apple", Stat: Stat{Kind: KindStr, Str: "x"}},
		{Name: "mango", Stat: Stat{Kind: KindBool, Bool: true}},
	}}
	var st ion.Symtab
	datum := doc.Encode(&st)
	assertSortedWithType(t, fieldLabels(t, datum))
}

func TestCanonicalFormAggDocument(t *testing.T) {
	e := newEntity()
	obs := []NamedStat{
		{Name: "zebra", Stat: Stat{Kind: KindInt, I64: 1}},
		{Name: "apple", Stat: Stat{Kind: KindStr, Str: "x"}},
		{Name: "mango", Stat: Stat{Kind: KindBool, Bool: true}},
		{Name: "count_of_items", Stat: NatStat(4)},
	}
	for _, o := range obs {
		if err := e.observe(o.Name, o.Stat); err != nil {
			t.Fatal(err)
		}
	}
	doc := e.finalize()
	var st ion.Symtab
	datum := doc.Encode(&st)
	assertSortedWithType(t, fieldLabels(t, datum))

	// every nested aggregate-entry struct must also be canonically
	// ordered, including the numeric variants whose fields() appends
	// "type" last (entries.go) rather than at its sorted position.
	s, _ := datum.Struct()
	err := s.Each(func(f ion.Field) bool {
		if f.Label == "type" {
			return true
		}
		assertSortedWithType(t, fieldLabels(t, f.Value))
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestStatsFromDocumentRoundTrip(t *testing.T) {
	doc := Document{Entries: []NamedStat{
		{Name: "reading", Stat: Stat{Kind: KindInt, I64: 42}},
		{Name: "price", Stat: Stat{Kind: KindDec2, Dec2: scaleDec2(19.99)}},
		{Name: "category", Stat: Stat{Kind: KindStr, Str: "widgets"}},
		{Name: "active", Stat: Stat{Kind: KindBool, Bool: true}},
		{Name: "signup_date", Stat: Stat{Kind: KindDate, Date: "2024-03-01"}},
		{Name: "tags", Stat: Stat{Kind: KindArr, Arr: []Stat{
			{Kind: KindInt, I64: 1}, {Kind: KindInt, I64: 2},
		}}},
	}}
	var st ion.Symtab
	datum := doc.Encode(&st)

	got, err := StatsFromDocument(datum)
	if err != nil {
		t.Fatal(err)
	}
	byName := map[string]Stat{}
	for _, ns := range got.Entries {
		byName[ns.Name] = ns.Stat
	}
	if len(byName) != len(doc.Entries) {
		t.Fatalf("got %d entries, want %d", len(byName), len(doc.Entries))
	}
	if byName["reading"].I64 != 42 {
		t.Errorf("reading = %d, want 42", byName["reading"].I64)
	}
	if byName["price"].Dec2 != scaleDec2(19.99) {
		t.Errorf("price = %d, want %d", byName["price"].Dec2, scaleDec2(19.99))
	}
	if byName["category"].Str != "widgets" {
		t.Errorf("category = %q, want widgets", byName["category"].Str)
	}
	if !byName["active"].Bool {
		t.Error("active = false, want true")
	}
	if byName["signup_date"].Date != "2024-03-01" {
		t.Errorf("signup_date = %q, want 2024-03-01", byName["signup_date"].Date)
	}
	tags := byName["tags"].Arr
	if len(tags) != 2 || tags[0].I64 != 1 || tags[1].I64 != 2 {
		t.Errorf("tags = %v, want [1 2]", tags)
	}
}

func TestStatsFromDocumentRejectsRecursiveArray(t *testing.T) {
	var st ion.Symtab
	inner := ion.NewStruct(&st, []ion.Field{
		{Label: "type", Value: ion.String("arr")},
		{Label: "value", Value: ion.NewList(&st, nil).Datum()},
	}).Datum()
	outer := ion.NewStruct(&st, []ion.Field{
		{Label: "x", Value: ion.NewStruct(&st, []ion.Field{
			{Label: "type", Value: ion.String("arr")},
			{Label: "value", Value: ion.NewList(&st, []ion.Datum{inner}).Datum()},
		}).Datum()},
	}).Datum()
	if _, err := StatsFromDocument(outer); err == nil {
		t.Fatal("expected error decoding recursive array")
	}
}
