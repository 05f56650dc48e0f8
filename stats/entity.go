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

import "sort"

// entity is the per-aggregation mapping of variable name to
// accumulator (component C). Accumulator insertion is lazy: the
// first observation of a name selects the accumulator variant, and
// every subsequent observation for that name must carry a compatible
// kind, per §4.C's monomorphic-binding contract.
type entity struct {
	vars map[string]Accumulator
}

func newEntity() *entity {
	return &entity{vars: map[string]Accumulator{}}
}

// observe folds one (name, stat) pair into the entity, creating an
// accumulator of the stat's kind on first use.
func (e *entity) observe(name string, s Stat) error {
	acc, ok := e.vars[name]
	if !ok {
		var err error
		acc, err = newAccumulator(s.Kind)
		if err != nil {
			return err
		}
		e.vars[name] = acc
	}
	return acc.Update(name, s)
}

// mergeFrom merges another entity's accumulators into e, variable by
// variable. Keys present in only one side are copied verbatim.
func (e *entity) mergeFrom(other *entity) error {
	for name, acc := range other.vars {
		existing, ok := e.vars[name]
		if !ok {
			e.vars[name] = acc
			continue
		}
		merged, err := existing.Merge(name, acc)
		if err != nil {
			return err
		}
		e.vars[name] = merged
	}
	return nil
}

// sortedNames returns the entity's variable names in lexicographic
// order, the order every emitted document must honor (§3, §8
// "canonical form").
func (e *entity) sortedNames() []string {
	names := make([]string, 0, len(e.vars))
	for name := range e.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// finalize emits the canonically-ordered stats_agg document for the
// entity's current state (§4.D.1).
func (e *entity) finalize() *AggDocument {
	names := e.sortedNames()
	doc := &AggDocument{Entries: make([]NamedAggEntry, 0, len(names))}
	for _, name := range names {
		doc.Entries = append(doc.Entries, NamedAggEntry{Name: name, Entry: e.vars[name].Finalize()})
	}
	return doc
}

// rawEntry is implemented by the numeric kernels that carry a separate
// unrounded snapshot for state transport (spec.md §9); kernels without
// rounding (count-map, date, arr) need no such override.
type rawEntry interface {
	rawFinalize() AggEntry
}

// finalizeRaw emits the unrounded, canonically-ordered form used for
// Serialize (spec.md §4.D, §9): "the finalized-but-unrounded form
// emitted as a document". Numeric entries carry mean and sum_sq_diff
// unrounded and leave variance/stddev/cv_pct out; dec2 entries also
// keep sum/min/max in their scaled (x100) integer form. Count-map/
// date/arr kernels carry no rounding at all and finalize identically
// either way.
func (e *entity) finalizeRaw() *AggDocument {
	names := e.sortedNames()
	doc := &AggDocument{Entries: make([]NamedAggEntry, 0, len(names))}
	for _, name := range names {
		acc := e.vars[name]
		var entry AggEntry
		if r, ok := acc.(rawEntry); ok {
			entry = r.rawFinalize()
		} else {
			entry = acc.Finalize()
		}
		doc.Entries = append(doc.Entries, NamedAggEntry{Name: name, Entry: entry})
	}
	return doc
}
