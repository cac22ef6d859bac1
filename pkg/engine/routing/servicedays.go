package routing

import (
	da "github.com/lintang-b-s/transitx/pkg/datastructure"
)

// serviceDay is one of the calendar days (yesterday, today, tomorrow) a search looks at.
// midnight is where that day starts on the search's time axis.
type serviceDay struct {
	midnight      da.Rtime
	mask          uint32
	applyRealtime bool
}

func (r *Router) realtimeMask() uint32 {
	days := (r.clock().Unix() - r.tt.GetCalendarStartTime()) / 86400
	if days < 0 || days >= 32 {
		return 0
	}
	return uint32(1) << uint(days)
}

// initServicedays keeps the days that can contribute to a search between req.Time and its cutoff,
// in search order. r.dayMask becomes the union of their masks.
func (r *Router) initServicedays(req *Request) {
	realtime := r.realtimeMask()
	cutoff := req.effectiveCutoff()
	maxTime := r.tt.GetMaxTime()

	yesterday := serviceDay{midnight: 0, mask: req.DayMask >> 1}
	today := serviceDay{midnight: da.RTIME_ONE_DAY, mask: req.DayMask}
	tomorrow := serviceDay{midnight: da.RTIME_TWO_DAYS, mask: req.DayMask << 1}
	yesterday.applyRealtime = yesterday.mask&realtime != 0
	today.applyRealtime = today.mask&realtime != 0
	tomorrow.applyRealtime = tomorrow.mask&realtime != 0

	r.dayMask = today.mask
	r.nServicedays = 0
	add := func(sd serviceDay) {
		r.servicedays[r.nServicedays] = sd
		r.nServicedays++
		r.dayMask |= sd.mask
	}

	if req.ArriveBy {
		if req.Time > tomorrow.midnight {
			add(tomorrow)
		}
		if uint32(cutoff) < uint32(today.midnight)+uint32(maxTime) && req.Time > today.midnight {
			add(today)
		}
		if cutoff < maxTime {
			add(yesterday)
		}
		return
	}

	if req.Time < maxTime {
		add(yesterday)
	}
	if cutoff >= today.midnight && uint32(req.Time) < uint32(today.midnight)+uint32(maxTime) {
		add(today)
	}
	if cutoff > tomorrow.midnight {
		add(tomorrow)
	}
}
