package datastructure

import (
	"fmt"
	"time"

	"github.com/lintang-b-s/transitx/pkg"
)

type StopPoint struct {
	id       string
	name     string
	lat      float64
	lon      float64
	waitTime Rtime // minimum time needed to change vehicles at this stop
	stopArea Index
}

func NewStopPoint(id, name string, lat, lon float64, waitTime Rtime) StopPoint {
	return StopPoint{
		id:       id,
		name:     name,
		lat:      lat,
		lon:      lon,
		waitTime: waitTime,
		stopArea: NONE,
	}
}

func (sp *StopPoint) GetID() string {
	return sp.id
}

func (sp *StopPoint) GetName() string {
	return sp.name
}

func (sp *StopPoint) GetLat() float64 {
	return sp.lat
}

func (sp *StopPoint) GetLon() float64 {
	return sp.lon
}

func (sp *StopPoint) GetStopArea() Index {
	return sp.stopArea
}

type StopArea struct {
	id         string
	name       string
	stopPoints []Index
}

func (sa *StopArea) GetID() string {
	return sa.id
}

func (sa *StopArea) GetName() string {
	return sa.name
}

func (sa *StopArea) GetStopPoints() []Index {
	return sa.stopPoints
}

type Transfer struct {
	target   Index
	duration Rtime   // walking duration at the default walk speed
	distance float64 // meter, zero when unknown
}

func NewTransfer(target Index, duration Rtime, distance float64) Transfer {
	return Transfer{target: target, duration: duration, distance: distance}
}

func (t Transfer) GetTarget() Index {
	return t.target
}

func (t Transfer) GetDuration() Rtime {
	return t.duration
}

func (t Transfer) GetDistance() float64 {
	return t.distance
}

// WalkDuration is the time needed to walk this transfer at walkSpeed (m/s).
func (t Transfer) WalkDuration(walkSpeed float64) Rtime {
	if t.distance <= 0 || walkSpeed <= 0 {
		return t.duration
	}
	sec := t.distance / walkSpeed
	if sec >= float64(RtimeToSec(UNREACHED)) {
		return UNREACHED
	}
	return SecToRtime(uint32(sec))
}

// JourneyPattern is an ordered list of stop points served by vehicle journeys that never overtake each other.
type JourneyPattern struct {
	jppOffset  Index
	vjOffset   Index
	nStops     uint16
	nVJs       uint16
	attributes pkg.TransportMode
	minTime    Rtime // earliest departure of any of its vehicle journeys, relative to the service day
	maxTime    Rtime // latest arrival of any of its vehicle journeys, relative to the service day
	lineCode   string
	headsign   string
	lineID     string
}

func (jp *JourneyPattern) GetNumberOfVehicleJourneys() uint16 {
	return jp.nVJs
}

func (jp *JourneyPattern) GetMode() pkg.TransportMode {
	return jp.attributes
}

func (jp *JourneyPattern) GetMinTime() Rtime {
	return jp.minTime
}

func (jp *JourneyPattern) GetMaxTime() Rtime {
	return jp.maxTime
}

func (jp *JourneyPattern) GetLineCode() string {
	return jp.lineCode
}

func (jp *JourneyPattern) GetHeadsign() string {
	return jp.headsign
}

func (jp *JourneyPattern) GetLineID() string {
	return jp.lineID
}

// Overlaps is true when trips of yesterday's service day are still running when today's first trip departs.
func (jp *JourneyPattern) Overlaps() bool {
	return jp.maxTime > RTIME_ONE_DAY && jp.minTime < jp.maxTime-RTIME_ONE_DAY
}

type VehicleJourney struct {
	stopTimesOffset Index
	beginTime       Rtime
	attributes      pkg.VJAttribute
	id              string
	delay           int32 // realtime delay in rtime ticks, only applied on the current calendar day
}

func (vj *VehicleJourney) GetID() string {
	return vj.id
}

func (vj *VehicleJourney) GetBeginTime() Rtime {
	return vj.beginTime
}

func (vj *VehicleJourney) GetAttributes() pkg.VJAttribute {
	return vj.attributes
}

func (vj *VehicleJourney) GetDelay() int32 {
	return vj.delay
}

func (vj *VehicleJourney) IsCanceled() bool {
	return vj.attributes&pkg.VJA_CANCELED != 0
}

// StopTime holds arrival and departure offsets from the vehicle journey begin time.
type StopTime struct {
	arrival   Rtime
	departure Rtime
}

func NewStopTime(arrival, departure Rtime) StopTime {
	return StopTime{arrival: arrival, departure: departure}
}

func (st StopTime) GetArrival() Rtime {
	return st.arrival
}

func (st StopTime) GetDeparture() Rtime {
	return st.departure
}

// VJRef locates a vehicle journey inside its journey pattern.
type VJRef struct {
	JourneyPattern Index
	Offset         Index
}

// Timetable is the read-only transit network a search runs on. all per-stop and per-pattern lists are
// stored as compressed sparse rows: list i is items[offsets[i]:offsets[i+1]].
// only the realtime fields of vehicle journeys are mutated after loading, callers serialize that.
type Timetable struct {
	stopPoints []StopPoint
	stopAreas  []StopArea

	transferOffsets []Index
	transfers       []Transfer

	journeyPatternsAtStopOffsets []Index
	journeyPatternsAtStop        []Index

	journeyPatterns               []JourneyPattern
	journeyPatternPoints          []Index
	journeyPatternPointAttributes []pkg.JPPAttribute

	vehicleJourneys []VehicleJourney
	vjActive        []uint32 // calendar mask per vehicle journey, bit i = day i after calendar start
	jpActive        []uint32 // OR of the masks of the journey pattern's vehicle journeys
	stopTimes       []StopTime

	calendarStartTime int64 // unix seconds of midnight of day 0
	nDays             uint8
	timezone          string
	maxTime           Rtime

	stopPointByID map[string]Index
	stopAreaByID  map[string]Index
	vjByID        map[string]VJRef
}

func (tt *Timetable) NumberOfStopPoints() int {
	return len(tt.stopPoints)
}

func (tt *Timetable) NumberOfStopAreas() int {
	return len(tt.stopAreas)
}

func (tt *Timetable) NumberOfJourneyPatterns() int {
	return len(tt.journeyPatterns)
}

func (tt *Timetable) NumberOfVehicleJourneys() int {
	return len(tt.vehicleJourneys)
}

func (tt *Timetable) GetStopPoint(sp Index) *StopPoint {
	return &tt.stopPoints[sp]
}

func (tt *Timetable) GetStopArea(sa Index) *StopArea {
	return &tt.stopAreas[sa]
}

func (tt *Timetable) GetJourneyPattern(jp Index) *JourneyPattern {
	return &tt.journeyPatterns[jp]
}

func (tt *Timetable) PointsForJourneyPattern(jp Index) []Index {
	j := &tt.journeyPatterns[jp]
	return tt.journeyPatternPoints[j.jppOffset : j.jppOffset+Index(j.nStops)]
}

func (tt *Timetable) PointAttributesForJourneyPattern(jp Index) []pkg.JPPAttribute {
	j := &tt.journeyPatterns[jp]
	return tt.journeyPatternPointAttributes[j.jppOffset : j.jppOffset+Index(j.nStops)]
}

func (tt *Timetable) JourneyPatternsForStopPoint(sp Index) []Index {
	return tt.journeyPatternsAtStop[tt.journeyPatternsAtStopOffsets[sp]:tt.journeyPatternsAtStopOffsets[sp+1]]
}

func (tt *Timetable) VehicleJourneysInJourneyPattern(jp Index) []VehicleJourney {
	j := &tt.journeyPatterns[jp]
	return tt.vehicleJourneys[j.vjOffset : j.vjOffset+Index(j.nVJs)]
}

func (tt *Timetable) VJMasksForJourneyPattern(jp Index) []uint32 {
	j := &tt.journeyPatterns[jp]
	return tt.vjActive[j.vjOffset : j.vjOffset+Index(j.nVJs)]
}

func (tt *Timetable) GetVehicleJourney(jp, vjOffset Index) *VehicleJourney {
	return &tt.vehicleJourneys[tt.journeyPatterns[jp].vjOffset+vjOffset]
}

// TimeDemandType returns the stop times of vj, one per point of its journey pattern.
func (tt *Timetable) TimeDemandType(jp, vjOffset Index) []StopTime {
	j := &tt.journeyPatterns[jp]
	vj := &tt.vehicleJourneys[j.vjOffset+vjOffset]
	return tt.stopTimes[vj.stopTimesOffset : vj.stopTimesOffset+Index(j.nStops)]
}

func (tt *Timetable) TransfersForStopPoint(sp Index) []Transfer {
	return tt.transfers[tt.transferOffsets[sp]:tt.transferOffsets[sp+1]]
}

func (tt *Timetable) StopPointWaitTime(sp Index) Rtime {
	return tt.stopPoints[sp].waitTime
}

func (tt *Timetable) JourneyPatternActive(jp Index) uint32 {
	return tt.jpActive[jp]
}

// TransferDuration returns the walking time from one stop to another using the transfer table,
// zero for the same stop and UNREACHED when no transfer connects them.
func (tt *Timetable) TransferDuration(from, to Index, walkSpeed float64, walkSlack Rtime) Rtime {
	if from == to {
		return 0
	}
	for _, tr := range tt.TransfersForStopPoint(from) {
		if tr.target == to {
			return AddRtime(tr.WalkDuration(walkSpeed), int32(walkSlack))
		}
	}
	return UNREACHED
}

func (tt *Timetable) TransferDistance(from, to Index) float64 {
	for _, tr := range tt.TransfersForStopPoint(from) {
		if tr.target == to {
			return tr.distance
		}
	}
	return 0
}

func (tt *Timetable) GetCalendarStartTime() int64 {
	return tt.calendarStartTime
}

func (tt *Timetable) GetNumberOfDays() uint8 {
	return tt.nDays
}

func (tt *Timetable) GetTimezone() string {
	return tt.timezone
}

func (tt *Timetable) Location() (*time.Location, error) {
	return time.LoadLocation(tt.timezone)
}

func (tt *Timetable) GetMaxTime() Rtime {
	return tt.maxTime
}

func (tt *Timetable) StopPointIndex(id string) (Index, bool) {
	sp, ok := tt.stopPointByID[id]
	return sp, ok
}

func (tt *Timetable) StopAreaIndex(id string) (Index, bool) {
	sa, ok := tt.stopAreaByID[id]
	return sa, ok
}

func (tt *Timetable) VehicleJourneyRef(id string) (VJRef, bool) {
	ref, ok := tt.vjByID[id]
	return ref, ok
}

// SetVehicleJourneyDelay sets the realtime delay (in seconds) of a vehicle journey.
func (tt *Timetable) SetVehicleJourneyDelay(ref VJRef, delaySeconds int32) {
	tt.GetVehicleJourney(ref.JourneyPattern, ref.Offset).delay = SignedSecToRtime(delaySeconds)
}

func (tt *Timetable) SetVehicleJourneyCanceled(ref VJRef, canceled bool) {
	vj := tt.GetVehicleJourney(ref.JourneyPattern, ref.Offset)
	if canceled {
		vj.attributes |= pkg.VJA_CANCELED
	} else {
		vj.attributes &^= pkg.VJA_CANCELED
	}
}

// ResetRealtime drops every realtime delay and cancellation.
func (tt *Timetable) ResetRealtime() {
	for i := range tt.vehicleJourneys {
		tt.vehicleJourneys[i].delay = 0
		tt.vehicleJourneys[i].attributes &^= pkg.VJA_CANCELED
	}
}

// Validate checks the structural invariants the router relies on.
func (tt *Timetable) Validate() error {
	nStops := Index(len(tt.stopPoints))
	if len(tt.transferOffsets) != int(nStops)+1 || len(tt.journeyPatternsAtStopOffsets) != int(nStops)+1 {
		return fmt.Errorf("timetable: stop offsets do not match %d stop points", nStops)
	}
	if nStops >= STOP_NONE-3 {
		return fmt.Errorf("timetable: too many stop points: %d", nStops)
	}
	if tt.nDays > 32 {
		return fmt.Errorf("timetable: calendar spans %d days, at most 32 are supported", tt.nDays)
	}
	for _, tr := range tt.transfers {
		if tr.target >= nStops {
			return fmt.Errorf("timetable: transfer to unknown stop point %d", tr.target)
		}
	}
	for jpIdx := range tt.journeyPatterns {
		jp := &tt.journeyPatterns[jpIdx]
		if jp.nStops < 2 {
			return fmt.Errorf("timetable: journey pattern %d has %d stops", jpIdx, jp.nStops)
		}
		for _, sp := range tt.PointsForJourneyPattern(Index(jpIdx)) {
			if sp >= nStops {
				return fmt.Errorf("timetable: journey pattern %d visits unknown stop point %d", jpIdx, sp)
			}
		}
		for vjOffset := Index(0); vjOffset < Index(jp.nVJs); vjOffset++ {
			sts := tt.TimeDemandType(Index(jpIdx), vjOffset)
			for i := range sts {
				if sts[i].departure < sts[i].arrival || (i > 0 && sts[i].arrival < sts[i-1].departure) {
					return fmt.Errorf("timetable: vehicle journey %s of journey pattern %d goes back in time at point %d",
						tt.GetVehicleJourney(Index(jpIdx), vjOffset).id, jpIdx, i)
				}
			}
		}
	}
	return nil
}
