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

import "math"

// round2 rounds f to two fractional digits, half away from zero.
func round2(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	scaled := f * 100
	if scaled >= 0 {
		return math.Floor(scaled+0.5) / 100
	}
	return math.Ceil(scaled-0.5) / 100
}

// scaleDec2 scales a decimal float by 100 and rounds half away from
// zero to the nearest integer, producing the exact-integer
// representation used internally by the dec2 kernel.
func scaleDec2(f float64) int64 {
	scaled := f * 100
	if scaled >= 0 {
		return int64(math.Floor(scaled + 0.5))
	}
	return int64(math.Ceil(scaled - 0.5))
}
