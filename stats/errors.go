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

// Package stats implements the hierarchical statistical aggregation core:
// per-variable accumulators over dynamically-typed observations, their
// associative merge, and derivation of Welford-stable descriptive
// statistics, all addressed through a canonical, key-sorted document
// encoding suitable for a host aggregate-function protocol.
package stats

import "fmt"

// UnknownStatTypeError is raised when a stat document carries a type
// tag outside the closed set of recognized kinds.
type UnknownStatTypeError struct {
	Type string
}

func (e *UnknownStatTypeError) Error() string {
	return fmt.Sprintf("stats: unknown stat type %q", e.Type)
}

// UnknownAggTypeError is raised when a stats_agg entry carries a type
// tag outside the closed set of recognized aggregate variants.
type UnknownAggTypeError struct {
	Type string
}

func (e *UnknownAggTypeError) Error() string {
	return fmt.Sprintf("stats: unknown aggregate type %q", e.Type)
}

// MalformedDocumentError is raised on structural corruption: a missing
// value, a shape that does not match its type tag, or a missing
// required field of an aggregate entry.
type MalformedDocumentError struct {
	Field string
	Msg   string
}

func (e *MalformedDocumentError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("stats: malformed document: %s", e.Msg)
	}
	return fmt.Sprintf("stats: malformed document: field %q: %s", e.Field, e.Msg)
}

// TypeMismatchError is raised when an observation's kind is incompatible
// with an existing accumulator bound to the same variable name, or when
// a stats_agg merge sees mismatched variants on the same key.
type TypeMismatchError struct {
	Name  string
	Have  string
	Want  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("stats: type mismatch for %q: have %s, want %s", e.Name, e.Have, e.Want)
}

// InvalidScalarError is raised when the value codec cannot represent a
// host scalar: a non-finite float, an unparseable date, or an
// unrecognized host type.
type InvalidScalarError struct {
	Msg string
}

func (e *InvalidScalarError) Error() string {
	return fmt.Sprintf("stats: invalid scalar: %s", e.Msg)
}

// NegativeNatError is raised when a nat observation is negative.
type NegativeNatError struct {
	Name  string
	Value int64
}

func (e *NegativeNatError) Error() string {
	return fmt.Sprintf("stats: negative value %d not allowed for nat variable %q", e.Value, e.Name)
}
