// Package civil provides wall-clock time in the pipeline's fixed civil
// time zone. Frame timestamps are human-readable and never used for
// ordering; the civil day is the archive partition key.
package civil

import (
	"fmt"
	"time"
)

// DefaultZoneName is the deployment's civil time zone.
const DefaultZoneName = "America/New_York"

// timestampLayout renders MM/DD/YYYY with a 12-hour clock, matching the
// format operators already grep for in the frame logs.
const timestampLayout = "01/02/2006 03:04:05 PM MST"

// dayLayout is the calendar date used as the archive partition key.
const dayLayout = "2006-01-02"

// Clock abstracts time.Now so stages can be tested with a fixed instant.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant. Test helper.
type FixedClock struct {
	Instant time.Time
}

func (c FixedClock) Now() time.Time { return c.Instant }

// Zone is a loaded civil time zone.
type Zone struct {
	loc *time.Location
}

// LoadZone loads a named time zone from the platform database.
func LoadZone(name string) (Zone, error) {
	if name == "" {
		name = DefaultZoneName
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Zone{}, fmt.Errorf("load time zone %s: %w", name, err)
	}
	return Zone{loc: loc}, nil
}

// MustLoadZone is LoadZone for zones known at compile time.
func MustLoadZone(name string) Zone {
	z, err := LoadZone(name)
	if err != nil {
		panic(err)
	}
	return z
}

// Timestamp renders t as a human-readable timestamp in the zone.
func (z Zone) Timestamp(t time.Time) string {
	return t.In(z.loc).Format(timestampLayout)
}

// Day returns the calendar date of t in the zone.
func (z Zone) Day(t time.Time) string {
	return t.In(z.loc).Format(dayLayout)
}

// Location exposes the underlying *time.Location.
func (z Zone) Location() *time.Location { return z.loc }
