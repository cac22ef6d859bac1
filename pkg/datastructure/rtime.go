package datastructure

import (
	"fmt"
	"math"
)

// Rtime is a time of day with 4 second resolution. zero is midnight of yesterday so a search
// can see trips of yesterday, today and tomorrow in one 16 bit window.
type Rtime uint16

const (
	RTIME_SHIFT = 2 // 1 rtime tick = 4 seconds

	RTIME_ONE_DAY    Rtime = 86400 >> RTIME_SHIFT
	RTIME_TWO_DAYS   Rtime = 2 * RTIME_ONE_DAY
	RTIME_THREE_DAYS Rtime = 3 * RTIME_ONE_DAY

	UNREACHED Rtime = math.MaxUint16
)

func SecToRtime(sec uint32) Rtime {
	return Rtime(sec >> RTIME_SHIFT)
}

// SignedSecToRtime converts a signed amount of seconds (a delay) into ticks, rounding toward zero.
func SignedSecToRtime(sec int32) int32 {
	if sec < 0 {
		return -((-sec) >> RTIME_SHIFT)
	}
	return sec >> RTIME_SHIFT
}

func RtimeToSec(t Rtime) uint32 {
	return uint32(t) << RTIME_SHIFT
}

func RtimeTicksToSec(ticks int32) int32 {
	return ticks * (1 << RTIME_SHIFT)
}

// AddRtime returns t+d, or UNREACHED when the result leaves the representable window.
func AddRtime(t Rtime, d int32) Rtime {
	if t == UNREACHED {
		return UNREACHED
	}
	v := int32(t) + d
	if v < 0 || v >= int32(UNREACHED) {
		return UNREACHED
	}
	return Rtime(v)
}

// String renders the time as HH:MM:SS relative to midnight of today, with a +1/-1 day suffix.
func (t Rtime) String() string {
	if t == UNREACHED {
		return "   --   "
	}
	day := ""
	if t < RTIME_ONE_DAY {
		day = " -1D"
	} else if t >= RTIME_TWO_DAYS {
		day = " +1D"
	}
	sec := RtimeToSec(t) % 86400
	return fmt.Sprintf("%02d:%02d:%02d%s", sec/3600, (sec/60)%60, sec%60, day)
}
