package routing

import (
	"fmt"
	"math/bits"
	"strings"
	"time"

	"github.com/lintang-b-s/transitx/pkg"
	da "github.com/lintang-b-s/transitx/pkg/datastructure"
	"github.com/lintang-b-s/transitx/pkg/util"
	"golang.org/x/exp/rand"
)

// WeightedStop is a stop point reachable from a coordinate or stop area, with the walk needed to get there.
type WeightedStop struct {
	Stop da.Index
	Walk da.Rtime
}

func NewWeightedStop(stop da.Index, walk da.Rtime) WeightedStop {
	return WeightedStop{Stop: stop, Walk: walk}
}

// Request describes one search. it is a value type, the reversal strategies rewrite it in place.
type Request struct {
	From da.Index
	To   da.Index
	Via  da.Index

	// entry sets are used when From/To is STOP_NONE (coordinate or stop area origins).
	FromEntries []WeightedStop
	ToEntries   []WeightedStop

	OnboardJourneyPattern da.Index
	OnboardVJOffset       da.Index

	BannedJourneyPatterns  [pkg.MAX_BANNED_JOURNEY_PATTERNS]da.Index
	NBannedJourneyPatterns uint8
	BannedStopPoints       [pkg.MAX_BANNED_STOP_POINTS]da.Index
	NBannedStopPoints      uint8
	BannedStopPointsHard   [pkg.MAX_BANNED_STOP_POINTS_HARD]da.Index
	NBannedStopPointsHard  uint8
	BannedVehicleJourneys  [pkg.MAX_BANNED_VEHICLE_JOURNEYS]da.VJRef
	NBannedVehicleJourneys uint8

	DayMask         uint32
	WalkSpeed       float64 // m/s
	WalkSlack       uint16  // seconds added to every walk
	WalkMaxDistance uint16  // meter

	Time         da.Rtime
	TimeCutoff   da.Rtime
	MaxTransfers uint8

	Mode         pkg.TransportMode
	VJAttributes pkg.VJAttribute
	Optimise     pkg.Optimise

	ArriveBy          bool
	CalendarWrapped   bool
	TimeRounded       bool
	IntermediateStops bool
}

// NewRequest returns a request with every optional field at its default. origin, destination and time
// still have to be set by the caller.
func NewRequest() Request {
	req := Request{
		From:                  da.STOP_NONE,
		To:                    da.STOP_NONE,
		Via:                   da.STOP_NONE,
		OnboardJourneyPattern: da.NONE,
		OnboardVJOffset:       da.NONE,
		WalkSpeed:             pkg.DEFAULT_WALK_SPEED,
		WalkSlack:             pkg.DEFAULT_WALK_SLACK,
		WalkMaxDistance:       pkg.DEFAULT_WALK_MAX_DISTANCE,
		Time:                  da.UNREACHED,
		TimeCutoff:            da.UNREACHED,
		MaxTransfers:          pkg.DEFAULT_MAX_TRANSFERS,
		Mode:                  pkg.MODE_ALL,
		VJAttributes:          pkg.VJA_NONE,
		Optimise:              pkg.OPTIMISE_ALL,
	}
	req.clearBans()
	return req
}

func (req *Request) clearBans() {
	for i := range req.BannedJourneyPatterns {
		req.BannedJourneyPatterns[i] = da.NONE
	}
	for i := range req.BannedStopPoints {
		req.BannedStopPoints[i] = da.STOP_NONE
	}
	for i := range req.BannedStopPointsHard {
		req.BannedStopPointsHard[i] = da.STOP_NONE
	}
	for i := range req.BannedVehicleJourneys {
		req.BannedVehicleJourneys[i] = da.VJRef{JourneyPattern: da.NONE, Offset: 0}
	}
	req.NBannedJourneyPatterns = 0
	req.NBannedStopPoints = 0
	req.NBannedStopPointsHard = 0
	req.NBannedVehicleJourneys = 0
}

func localDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewRequestFromEpoch returns a default request departing (or arriving) at t. the time of day is taken in
// the timetable's timezone, the day mask selects the calendar day of t. dates outside of the calendar are
// wrapped by a multiple of 7 days so the weekday is preserved.
func NewRequestFromEpoch(tt *da.Timetable, t time.Time) Request {
	req := NewRequest()
	loc, err := tt.Location()
	if err != nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	midnight := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	sec := uint32(lt.Sub(midnight) / time.Second)

	req.Time = da.SecToRtime(sec) + da.RTIME_ONE_DAY
	req.TimeRounded = sec%4 > 0

	start := time.Unix(tt.GetCalendarStartTime(), 0).In(loc)
	calDay := int(localDate(lt).Sub(localDate(start)).Hours() / 24)
	if calDay < 0 || calDay > 31 {
		calDay = ((calDay % 28) + 28) % 28
		req.CalendarWrapped = true
	}
	req.DayMask = uint32(1) << calDay
	return req
}

func (req *Request) calendarDay() int {
	if req.DayMask == 0 {
		return 0
	}
	return 31 - bits.LeadingZeros32(req.DayMask)
}

// Date returns midnight of the request's calendar day in the timetable's timezone.
func (req *Request) Date(tt *da.Timetable) time.Time {
	loc, err := tt.Location()
	if err != nil {
		loc = time.UTC
	}
	start := time.Unix(tt.GetCalendarStartTime(), 0).In(loc)
	return time.Date(start.Year(), start.Month(), start.Day()+req.calendarDay(), 0, 0, 0, 0, loc)
}

// Epoch converts the request time back into wall-clock time.
func (req *Request) Epoch(tt *da.Timetable) time.Time {
	return RtimeToEpoch(tt, req, req.Time)
}

// RtimeToEpoch converts a time of this request's search window into wall-clock time.
func RtimeToEpoch(tt *da.Timetable, req *Request, t da.Rtime) time.Time {
	sec := int64(da.RtimeToSec(t)) - int64(da.RtimeToSec(da.RTIME_ONE_DAY))
	return req.Date(tt).Add(time.Duration(sec) * time.Second)
}

// RangeCheck validates the request against the timetable before it is handed to a router.
func (req *Request) RangeCheck(tt *da.Timetable) error {
	nStops := da.Index(tt.NumberOfStopPoints())
	switch {
	case req.WalkSpeed < pkg.MIN_WALK_SPEED:
		return util.WrapErrorf(nil, util.ErrBadParamInput, "walk speed %.2f m/s is below %.1f m/s", req.WalkSpeed,
			pkg.MIN_WALK_SPEED)
	case req.From != da.STOP_NONE && req.From >= nStops:
		return util.WrapErrorf(nil, util.ErrBadParamInput, "origin stop point %d out of range", req.From)
	case req.To != da.STOP_NONE && req.To >= nStops:
		return util.WrapErrorf(nil, util.ErrBadParamInput, "destination stop point %d out of range", req.To)
	case req.Via != da.STOP_NONE && req.Via >= nStops:
		return util.WrapErrorf(nil, util.ErrBadParamInput, "via stop point %d out of range", req.Via)
	case int(req.MaxTransfers) >= pkg.MAX_ROUNDS:
		return util.WrapErrorf(nil, util.ErrBadParamInput, "at most %d transfers are supported", pkg.MAX_ROUNDS-1)
	case req.Time == da.UNREACHED:
		return util.WrapErrorf(nil, util.ErrBadParamInput, "request time is not set")
	}
	for _, e := range req.FromEntries {
		if e.Stop >= nStops {
			return util.WrapErrorf(nil, util.ErrBadParamInput, "origin entry stop point %d out of range", e.Stop)
		}
	}
	for _, e := range req.ToEntries {
		if e.Stop >= nStops {
			return util.WrapErrorf(nil, util.ErrBadParamInput, "destination entry stop point %d out of range", e.Stop)
		}
	}
	if req.OnboardJourneyPattern != da.NONE {
		if req.ArriveBy {
			return util.WrapErrorf(ErrOnboardArriveBy, util.ErrBadParamInput, "onboard request")
		}
		if int(req.OnboardJourneyPattern) >= tt.NumberOfJourneyPatterns() ||
			req.OnboardVJOffset >= da.Index(tt.GetJourneyPattern(req.OnboardJourneyPattern).GetNumberOfVehicleJourneys()) {
			return util.WrapErrorf(nil, util.ErrBadParamInput, "onboard vehicle journey out of range")
		}
	}
	return nil
}

var errBanCapacity = fmt.Errorf("ban list is full")

func (req *Request) BanJourneyPattern(jp da.Index) error {
	if int(req.NBannedJourneyPatterns) >= len(req.BannedJourneyPatterns) {
		return util.WrapErrorf(errBanCapacity, util.ErrBadParamInput, "cannot ban journey pattern %d", jp)
	}
	req.BannedJourneyPatterns[req.NBannedJourneyPatterns] = jp
	req.NBannedJourneyPatterns++
	return nil
}

// BanStopPoint forbids transferring at sp. vehicles may still pass through it.
func (req *Request) BanStopPoint(sp da.Index) error {
	if int(req.NBannedStopPoints) >= len(req.BannedStopPoints) {
		return util.WrapErrorf(errBanCapacity, util.ErrBadParamInput, "cannot ban stop point %d", sp)
	}
	req.BannedStopPoints[req.NBannedStopPoints] = sp
	req.NBannedStopPoints++
	return nil
}

// BanStopPointHard forbids passing through sp at all.
func (req *Request) BanStopPointHard(sp da.Index) error {
	if int(req.NBannedStopPointsHard) >= len(req.BannedStopPointsHard) {
		return util.WrapErrorf(errBanCapacity, util.ErrBadParamInput, "cannot hard ban stop point %d", sp)
	}
	req.BannedStopPointsHard[req.NBannedStopPointsHard] = sp
	req.NBannedStopPointsHard++
	return nil
}

func (req *Request) BanVehicleJourney(ref da.VJRef) error {
	if int(req.NBannedVehicleJourneys) >= len(req.BannedVehicleJourneys) {
		return util.WrapErrorf(errBanCapacity, util.ErrBadParamInput, "cannot ban vehicle journey %d/%d",
			ref.JourneyPattern, ref.Offset)
	}
	req.BannedVehicleJourneys[req.NBannedVehicleJourneys] = ref
	req.NBannedVehicleJourneys++
	return nil
}

func (req *Request) isBannedJourneyPattern(jp da.Index) bool {
	for i := uint8(0); i < req.NBannedJourneyPatterns; i++ {
		if req.BannedJourneyPatterns[i] == jp {
			return true
		}
	}
	return false
}

func (req *Request) isBannedStopPoint(sp da.Index) bool {
	for i := uint8(0); i < req.NBannedStopPoints; i++ {
		if req.BannedStopPoints[i] == sp {
			return true
		}
	}
	return false
}

func (req *Request) isHardBannedStopPoint(sp da.Index) bool {
	for i := uint8(0); i < req.NBannedStopPointsHard; i++ {
		if req.BannedStopPointsHard[i] == sp {
			return true
		}
	}
	return false
}

// StopPointBanned reports whether sp is banned in any way, banned stops are left out of entry sets.
func (req *Request) StopPointBanned(sp da.Index) bool {
	return req.isBannedStopPoint(sp) || req.isHardBannedStopPoint(sp)
}

func (req *Request) isBannedVehicleJourney(jp, vjOffset da.Index) bool {
	for i := uint8(0); i < req.NBannedVehicleJourneys; i++ {
		if req.BannedVehicleJourneys[i].JourneyPattern == jp && req.BannedVehicleJourneys[i].Offset == vjOffset {
			return true
		}
	}
	return false
}

// effectiveCutoff is the cutoff the search compares against. an arrive-by search without a cutoff
// accepts anything after the start of the window.
func (req *Request) effectiveCutoff() da.Rtime {
	if req.ArriveBy && req.TimeCutoff == da.UNREACHED {
		return 0
	}
	return req.TimeCutoff
}

// Next advances the request by inc ticks, rolling over into the next calendar day.
func (req *Request) Next(inc da.Rtime) {
	t := uint32(req.Time) + uint32(inc)
	if t >= uint32(da.RTIME_TWO_DAYS) {
		t -= uint32(da.RTIME_ONE_DAY)
		req.DayMask <<= 1
		if req.DayMask == 0 {
			req.DayMask = 1
		}
	}
	req.Time = da.Rtime(t)
	req.TimeCutoff = da.UNREACHED
	req.TimeRounded = false
	req.MaxTransfers = pkg.DEFAULT_MAX_TRANSFERS
}

// Randomize fills the request with a random, valid query between two stop points of tt.
func (req *Request) Randomize(tt *da.Timetable, rng *rand.Rand) {
	*req = NewRequest()
	req.Time = da.RTIME_ONE_DAY + da.SecToRtime(uint32(3600*9+rng.Intn(3600*12)))
	req.ArriveBy = rng.Intn(2) == 1
	nDays := int(tt.GetNumberOfDays())
	if nDays <= 0 || nDays > 32 {
		nDays = 32
	}
	req.DayMask = uint32(1) << rng.Intn(nDays)
	n := tt.NumberOfStopPoints()
	req.From = da.Index(rng.Intn(n))
	req.To = da.Index(rng.Intn(n))
}

func (req *Request) originStop() da.Index {
	if req.ArriveBy {
		return req.To
	}
	return req.From
}

func (req *Request) targetStop() da.Index {
	if req.ArriveBy {
		return req.From
	}
	return req.To
}

func (req *Request) originEntries() []WeightedStop {
	if req.ArriveBy {
		return req.ToEntries
	}
	return req.FromEntries
}

func (req *Request) targetEntries() []WeightedStop {
	if req.ArriveBy {
		return req.FromEntries
	}
	return req.ToEntries
}

func (req *Request) setTargetStop(sp da.Index) {
	if req.ArriveBy {
		req.From = sp
	} else {
		req.To = sp
	}
}

func stopName(tt *da.Timetable, sp da.Index) string {
	switch {
	case sp == da.STOP_NONE:
		return "-"
	case sp == da.ONBOARD:
		return "onboard"
	case int(sp) < tt.NumberOfStopPoints():
		return tt.GetStopPoint(sp).GetName()
	default:
		return "?"
	}
}

// Dump renders the request for logs and the command line tools.
func (req *Request) Dump(tt *da.Timetable) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "-- Router Request --\n")
	fmt.Fprintf(&sb, "from:      %s [%d] (%d entries)\n", stopName(tt, req.From), req.From, len(req.FromEntries))
	fmt.Fprintf(&sb, "to:        %s [%d] (%d entries)\n", stopName(tt, req.To), req.To, len(req.ToEntries))
	fmt.Fprintf(&sb, "date:      %s\n", req.Date(tt).Format("2006-01-02"))
	fmt.Fprintf(&sb, "time:      %s [%d]\n", req.Time, req.Time)
	fmt.Fprintf(&sb, "speed:     %.2f m/sec\n", req.WalkSpeed)
	fmt.Fprintf(&sb, "arrive-by: %t\n", req.ArriveBy)
	fmt.Fprintf(&sb, "max xfers: %d\n", req.MaxTransfers)
	fmt.Fprintf(&sb, "max time:  %s\n", req.TimeCutoff)
	fmt.Fprintf(&sb, "mode:      %s\n", req.Mode)
	return sb.String()
}
