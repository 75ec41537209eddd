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

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ImportOptions are applied during metadata fusion as fallbacks or
// overrides. They do not change for the duration of a run.
type ImportOptions struct {
	// Used to interpret naive local timestamps when nothing better is known.
	AssumedTimezone *ExplicitTimezone `json:"assumed_timezone,omitempty"`

	// Rewrites every resolved timestamp into this timezone.
	ForcedTimezone *ExplicitTimezone `json:"forced_timezone,omitempty"`

	// Fill in notes and location when the file does not provide them.
	AssumedNotes    string    `json:"assumed_notes,omitempty"`
	AssumedLocation *Location `json:"assumed_location,omitempty"`
}

// ErrInvalidTimezone is returned when an explicit timezone cannot be parsed.
var ErrInvalidTimezone = errors.New("invalid explicit timezone")

// ExplicitTimezone is a fixed UTC offset chosen by the user.
type ExplicitTimezone struct {
	seconds int
}

// NewExplicitTimezone returns a timezone for the given offset east of UTC.
func NewExplicitTimezone(offsetSeconds int) (ExplicitTimezone, error) {
	if offsetSeconds <= -86400 || offsetSeconds >= 86400 {
		return ExplicitTimezone{}, fmt.Errorf("%w: offset %ds out of range", ErrInvalidTimezone, offsetSeconds)
	}
	return ExplicitTimezone{seconds: offsetSeconds}, nil
}

// ParseExplicitTimezone parses offsets of the form "+HH:MM" or "-HH:MM".
// Hours must be within -23..23 and minutes within 0..59.
func ParseExplicitTimezone(s string) (ExplicitTimezone, error) {
	hoursStr, minsStr, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return ExplicitTimezone{}, fmt.Errorf("%w: %q", ErrInvalidTimezone, s)
	}
	hours, err := strconv.Atoi(hoursStr)
	if err != nil || hours < -23 || hours > 23 {
		return ExplicitTimezone{}, fmt.Errorf("%w: %q", ErrInvalidTimezone, s)
	}
	mins, err := strconv.Atoi(minsStr)
	if err != nil || mins < 0 || mins > 59 {
		return ExplicitTimezone{}, fmt.Errorf("%w: %q", ErrInvalidTimezone, s)
	}
	total := hours*3600 + mins*60
	if strings.HasPrefix(hoursStr, "-") {
		total = hours*3600 - mins*60
	}
	return NewExplicitTimezone(total)
}

// Offset returns the offset east of UTC in seconds.
func (tz ExplicitTimezone) Offset() int { return tz.seconds }

// Location returns tz as a fixed *time.Location.
func (tz ExplicitTimezone) Location() *time.Location {
	return time.FixedZone(tz.String(), tz.seconds)
}

func (tz ExplicitTimezone) String() string {
	sign := '+'
	secs := tz.seconds
	if secs < 0 {
		sign = '-'
		secs = -secs
	}
	return fmt.Sprintf("%c%02d:%02d", sign, secs/3600, (secs/60)%60)
}

// Adjust returns the same instant as t expressed in tz.
func (tz ExplicitTimezone) Adjust(t time.Time) time.Time {
	return t.In(tz.Location())
}

// FromLocal interprets the wall clock reading of local (its location is
// ignored) as a time in tz.
func (tz ExplicitTimezone) FromLocal(local time.Time) time.Time {
	return time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), tz.Location())
}

// MarshalText implements encoding.TextMarshaler.
func (tz ExplicitTimezone) MarshalText() ([]byte, error) { return []byte(tz.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (tz *ExplicitTimezone) UnmarshalText(text []byte) error {
	parsed, err := ParseExplicitTimezone(string(text))
	if err != nil {
		return err
	}
	*tz = parsed
	return nil
}
