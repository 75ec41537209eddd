/*
	Timelinize
	Copyright (c) 2013 Matthew Holt

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package catalog

import "fmt"

// FormatBytes renders a byte count for progress display.
func FormatBytes(n uint64) string {
	switch {
	case n < 4*1024:
		return fmt.Sprintf("%d bytes", n)
	case n < 1500*1024:
		return fmt.Sprintf("%.1f kB", float64(n)/1024)
	case n < 1500*1024*1024:
		return fmt.Sprintf("%.1f MB", float64(n)/1024/1024)
	default:
		return fmt.Sprintf("%.1f GB", float64(n/1024/1024)/1024)
	}
}
