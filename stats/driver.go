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

	"github.com/veridit/jsonbstats/compr"
	"github.com/veridit/jsonbstats/internal/statlog"
	"github.com/veridit/jsonbstats/ion"
)

// Option configures driver diagnostics (logging only; never changes a
// result), mirroring tenant.Manager's functional-option convention.
type Option = statlog.Option

// WithLogger attaches a *log.Logger to a driver state for lifecycle
// diagnostics: state created, combine invoked, finalize invoked.
var WithLogger = statlog.WithLogger

// StatsToAgg promotes a single stats document straight to a finalized
// stats_agg document by running accumulation once and finalizing
// (spec.md §6's `stats_to_agg` scalar function).
func StatsToAgg(d Document) (AggDocument, error) {
	e := newEntity()
	for _, ns := range d.Entries {
		if err := e.observe(ns.Name, ns.Stat); err != nil {
			return AggDocument{}, err
		}
	}
	return *e.finalize(), nil
}

// Merge merges two already-finalized stats_agg documents into one,
// per spec.md §6's `merge(a, b) -> stats_agg` scalar function. It
// decodes both sides back into accumulator state via the document
// materializer (component E) and merges variable-by-variable
// (component B), exactly like the aggregation driver's Combine path.
func Merge(a, b AggDocument) (AggDocument, error) {
	ea, err := aggDocumentToEntity(a)
	if err != nil {
		return AggDocument{}, err
	}
	eb, err := aggDocumentToEntity(b)
	if err != nil {
		return AggDocument{}, err
	}
	if err := ea.mergeFrom(eb); err != nil {
		return AggDocument{}, err
	}
	return *ea.finalize(), nil
}

// aggDocumentToEntity reconstructs per-variable accumulators from an
// already-finalized AggDocument by round-tripping it through the
// canonical ion encoding, reusing the same decode path a host would
// use when reading a previously-stored stats_agg value off disk.
func aggDocumentToEntity(doc AggDocument) (*entity, error) {
	var st ion.Symtab
	datum := doc.Encode(&st)
	return decodeAggDocumentToEntity(datum)
}

// PairCollectorState implements the stats-from-pairs aggregate
// (spec.md §4.D case 1): a pure collector with no statistics computed,
// just a growing stats document. Corresponds to the `agg(name, stat)
// -> stats` aggregate surface of spec.md §6.
type PairCollectorState struct {
	doc Document
	log *statlog.Logger
}

// NewPairCollectorState creates an empty pair-collector state.
func NewPairCollectorState(opts ...Option) *PairCollectorState {
	log := statlog.New(opts...)
	log.Logf("pair collector state created")
	return &PairCollectorState{log: log}
}

// Transition appends one (name, stat) pair to the stats document
// under construction. It never fails: any name/stat combination is
// accepted by the collector, since no accumulator binding happens
// until agg-from-stats consumes the resulting document.
func (p *PairCollectorState) Transition(name string, s Stat) error {
	p.doc.Entries = append(p.doc.Entries, NamedStat{Name: name, Stat: s})
	return nil
}

// Final returns the collected stats document.
func (p *PairCollectorState) Final() Document {
	p.log.Logf("pair collector final: %d entries", len(p.doc.Entries))
	return p.doc
}

// AggState implements the agg-from-stats aggregate (spec.md §4.D case
// 2): decodes each incoming stats document and folds it into the
// per-entity accumulator state, then finalizes to stats_agg. This is
// the `agg(stats) -> stats_agg` aggregate surface of spec.md §6.
type AggState struct {
	ent *entity
	log *statlog.Logger
}

// NewAggState creates an empty agg-from-stats state.
func NewAggState(opts ...Option) *AggState {
	log := statlog.New(opts...)
	log.Logf("agg state created")
	return &AggState{ent: newEntity(), log: log}
}

// Transition decodes d and applies §4.B init/update to each named
// variable in the per-entity state.
func (a *AggState) Transition(d Document) error {
	for _, ns := range d.Entries {
		if err := a.ent.observe(ns.Name, ns.Stat); err != nil {
			return err
		}
	}
	return nil
}

// Combine merges another partially-aggregated AggState into a, per
// §5's "host partitions input rows across workers ... calls combine
// pairwise to merge partial states into a leader" model.
func (a *AggState) Combine(other *AggState) error {
	a.log.Logf("combine invoked")
	return a.ent.mergeFrom(other.ent)
}

// Serialize round-trips a's internal state for worker-to-leader
// transport: the canonical-but-unrounded document form (spec.md §9),
// zstd-compressed via compr, matching the teacher's own
// CompressionWriter convention for opaque wire payloads.
func (a *AggState) Serialize() ([]byte, error) {
	var st ion.Symtab
	datum := a.ent.finalizeRaw().Encode(&st)
	var buf ion.Buffer
	buf.StartChunk(&st)
	datum.Encode(&buf, &st)
	return compr.Compression("zstd").Compress(buf.Bytes(), nil), nil
}

// DeserializeAggState reconstructs an AggState from bytes produced by
// Serialize.
func DeserializeAggState(b []byte, opts ...Option) (*AggState, error) {
	ent, err := deserializeEntity(b)
	if err != nil {
		return nil, err
	}
	log := statlog.New(opts...)
	log.Logf("agg state deserialized")
	return &AggState{ent: ent, log: log}, nil
}

// Final emits the canonically key-sorted stats_agg document for a's
// current state (spec.md §4.D.1).
func (a *AggState) Final() (AggDocument, error) {
	a.log.Logf("finalize invoked")
	return *a.ent.finalize(), nil
}

// MergeState implements the merge-of-aggs aggregate (spec.md §4.D
// case 3): decodes each incoming stats_agg document into per-variable
// accumulators and merges them pairwise into state. This is the
// `merge_agg(stats_agg) -> stats_agg` aggregate surface of spec.md §6.
type MergeState struct {
	ent *entity
	log *statlog.Logger
}

// NewMergeState creates an empty merge-of-aggs state.
func NewMergeState(opts ...Option) *MergeState {
	log := statlog.New(opts...)
	log.Logf("merge state created")
	return &MergeState{ent: newEntity(), log: log}
}

// Transition decodes d into accumulators and merges them into m's
// state, variable by variable.
func (m *MergeState) Transition(d AggDocument) error {
	var st ion.Symtab
	datum := d.Encode(&st)
	other, err := decodeAggDocumentToEntity(datum)
	if err != nil {
		return err
	}
	return m.ent.mergeFrom(other)
}

// Combine merges another partially-merged MergeState into m.
func (m *MergeState) Combine(other *MergeState) error {
	m.log.Logf("combine invoked")
	return m.ent.mergeFrom(other.ent)
}

// Serialize round-trips m's internal state, identically to
// AggState.Serialize.
func (m *MergeState) Serialize() ([]byte, error) {
	var st ion.Symtab
	datum := m.ent.finalizeRaw().Encode(&st)
	var buf ion.Buffer
	buf.StartChunk(&st)
	datum.Encode(&buf, &st)
	return compr.Compression("zstd").Compress(buf.Bytes(), nil), nil
}

// DeserializeMergeState reconstructs a MergeState from bytes produced
// by Serialize.
func DeserializeMergeState(b []byte, opts ...Option) (*MergeState, error) {
	ent, err := deserializeEntity(b)
	if err != nil {
		return nil, err
	}
	log := statlog.New(opts...)
	log.Logf("merge state deserialized")
	return &MergeState{ent: ent, log: log}, nil
}

// Final emits the canonically key-sorted stats_agg document for m's
// current state.
func (m *MergeState) Final() (AggDocument, error) {
	m.log.Logf("finalize invoked")
	return *m.ent.finalize(), nil
}

// deserializeEntity reverses AggState.Serialize/MergeState.Serialize:
// decompress, decode the ion struct, and rebuild each accumulator from
// its raw (unrounded) snapshot.
func deserializeEntity(b []byte) (*entity, error) {
	raw, err := compr.DecodeZstd(b, nil)
	if err != nil {
		return nil, fmt.Errorf("stats: decompressing serialized state: %w", err)
	}
	var st ion.Symtab
	rest, err := st.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("stats: decoding serialized symbol table: %w", err)
	}
	datum, _, err := ion.ReadDatum(&st, rest)
	if err != nil {
		return nil, fmt.Errorf("stats: decoding serialized state: %w", err)
	}
	return decodeAggDocumentToEntityRaw(datum)
}
