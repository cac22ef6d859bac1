package gtfs

import (
	"fmt"
	"io/fs"
	"time"
)

const gtfsDateLayout = "20060102"

var weekdayColumns = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// calendarDay returns the day of date after start, both taken as local dates.
func calendarDay(start, date time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	d := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return int(d.Sub(s).Hours() / 24)
}

// serviceMasks reads calendar.txt and calendar_dates.txt into one bitmask per service id, bit i is set
// when the service runs on day i after start. at least one of the two files must exist.
func serviceMasks(fsys fs.FS, start time.Time, nDays int) (map[string]uint32, error) {
	masks := make(map[string]uint32)
	loc := start.Location()
	found := false

	if _, err := fs.Stat(fsys, "calendar.txt"); err == nil {
		found = true
	}
	err := parseCSV(fsys, "calendar.txt", false, func(r record) error {
		id := r.get("service_id")
		from, err := time.ParseInLocation(gtfsDateLayout, r.get("start_date"), loc)
		if err != nil {
			return fmt.Errorf("start_date: %w", err)
		}
		to, err := time.ParseInLocation(gtfsDateLayout, r.get("end_date"), loc)
		if err != nil {
			return fmt.Errorf("end_date: %w", err)
		}
		var runs [7]bool
		for wd, col := range weekdayColumns {
			runs[wd] = r.get(col) == "1"
		}

		var mask uint32
		for d := 0; d < nDays; d++ {
			date := start.AddDate(0, 0, d)
			if calendarDay(from, date) < 0 || calendarDay(to, date) > 0 {
				continue
			}
			if runs[date.Weekday()] {
				mask |= 1 << d
			}
		}
		masks[id] |= mask
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := fs.Stat(fsys, "calendar_dates.txt"); err == nil {
		found = true
	}
	err = parseCSV(fsys, "calendar_dates.txt", false, func(r record) error {
		id := r.get("service_id")
		date, err := time.ParseInLocation(gtfsDateLayout, r.get("date"), loc)
		if err != nil {
			return fmt.Errorf("date: %w", err)
		}
		exception, err := r.int("exception_type", 0)
		if err != nil {
			return err
		}
		d := calendarDay(start, date)
		if d < 0 || d >= nDays {
			if _, ok := masks[id]; !ok {
				masks[id] = 0
			}
			return nil
		}
		switch exception {
		case 1:
			masks[id] |= 1 << d
		case 2:
			masks[id] &^= 1 << d
		default:
			return fmt.Errorf("unknown exception_type %d", exception)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, fmt.Errorf("feed has neither calendar.txt nor calendar_dates.txt")
	}
	return masks, nil
}
