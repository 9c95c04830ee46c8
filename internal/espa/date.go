package espa

import (
	"fmt"
	"strings"
	"time"
)

// AcquisitionTime combines the catalog's acquisition_date and
// scene_center_time into one UTC timestamp. The center time is optional;
// without it the date alone is returned at midnight UTC. Fractional
// seconds in the center time are accepted and kept.
func (g *GlobalMetadata) AcquisitionTime() (time.Time, error) {
	date, err := time.Parse("2006-01-02", g.AcquisitionDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing acquisition_date %q: %w",
			g.AcquisitionDate, err)
	}
	if g.SceneCenterTime == "" {
		return date, nil
	}
	center := strings.TrimSuffix(g.SceneCenterTime, "Z")
	clock, err := time.Parse("15:04:05.9999999", center)
	if err != nil {
		if clock, err = time.Parse("15:04:05", center); err != nil {
			return time.Time{}, fmt.Errorf("parsing scene_center_time %q: %w",
				g.SceneCenterTime, err)
		}
	}
	return date.Add(time.Duration(clock.Hour())*time.Hour +
		time.Duration(clock.Minute())*time.Minute +
		time.Duration(clock.Second())*time.Second +
		time.Duration(clock.Nanosecond())), nil
}

// ProductionDate formats a timestamp the way band metadata records it.
func ProductionDate(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
