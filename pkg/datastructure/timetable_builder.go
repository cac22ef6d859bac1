package datastructure

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lintang-b-s/transitx/pkg"
	"github.com/lintang-b-s/transitx/pkg/geo"
	"github.com/lintang-b-s/transitx/pkg/util"
)

type vehicleJourneyInput struct {
	id         string
	beginTime  Rtime
	stopTimes  []StopTime
	activeMask uint32
	attributes pkg.VJAttribute
}

type journeyPatternInput struct {
	stops      []Index
	attributes []pkg.JPPAttribute
	mode       pkg.TransportMode
	lineCode   string
	headsign   string
	lineID     string
	vjs        []vehicleJourneyInput
}

// TimetableBuilder collects stops, patterns and trips and lays them out into the compressed Timetable.
type TimetableBuilder struct {
	stopPoints []StopPoint
	stopAreas  []StopArea
	transfers  [][]Transfer
	patterns   []*journeyPatternInput

	calendarStartTime int64
	nDays             uint8
	timezone          string
}

func NewTimetableBuilder(calendarStart time.Time, nDays uint8) *TimetableBuilder {
	return &TimetableBuilder{
		calendarStartTime: calendarStart.Unix(),
		nDays:             nDays,
		timezone:          calendarStart.Location().String(),
	}
}

func (b *TimetableBuilder) SetTimezone(tz string) {
	b.timezone = tz
}

func (b *TimetableBuilder) AddStopPoint(id, name string, lat, lon float64, waitTime Rtime) Index {
	b.stopPoints = append(b.stopPoints, NewStopPoint(id, name, lat, lon, waitTime))
	b.transfers = append(b.transfers, nil)
	return Index(len(b.stopPoints) - 1)
}

func (b *TimetableBuilder) AddStopArea(id, name string, members []Index) Index {
	sa := Index(len(b.stopAreas))
	for _, sp := range members {
		util.AssertPanic(int(sp) < len(b.stopPoints), "stop area member out of range")
		b.stopPoints[sp].stopArea = sa
	}
	b.stopAreas = append(b.stopAreas, StopArea{id: id, name: name, stopPoints: append([]Index(nil), members...)})
	return sa
}

// AddTransfer adds a directed footpath. a later transfer between the same stops replaces the earlier one.
func (b *TimetableBuilder) AddTransfer(from, to Index, duration Rtime, distance float64) {
	util.AssertPanic(int(from) < len(b.stopPoints) && int(to) < len(b.stopPoints), "transfer stop out of range")
	for i := range b.transfers[from] {
		if b.transfers[from][i].target == to {
			b.transfers[from][i] = NewTransfer(to, duration, distance)
			return
		}
	}
	b.transfers[from] = append(b.transfers[from], NewTransfer(to, duration, distance))
}

// GenerateTransfers connects every pair of distinct stop points closer than maxDistance meters with a
// footpath in both directions. the duration is the great-circle distance times WALK_COMP at walkSpeed.
func (b *TimetableBuilder) GenerateTransfers(maxDistance, walkSpeed float64) int {
	n := 0
	for i := range b.stopPoints {
		for j := i + 1; j < len(b.stopPoints); j++ {
			a, c := &b.stopPoints[i], &b.stopPoints[j]
			dist := geo.GreatCircleDistance(geo.NewCoordinate(a.lat, a.lon), geo.NewCoordinate(c.lat, c.lon)) *
				pkg.WALK_COMP
			if dist > maxDistance {
				continue
			}
			duration := SecToRtime(uint32(dist / walkSpeed))
			b.AddTransfer(Index(i), Index(j), duration, dist)
			b.AddTransfer(Index(j), Index(i), duration, dist)
			n += 2
		}
	}
	return n
}

// AddJourneyPattern registers a route. attributes may be nil, every point then allows boarding and alighting.
func (b *TimetableBuilder) AddJourneyPattern(stops []Index, attributes []pkg.JPPAttribute, mode pkg.TransportMode,
	lineCode, headsign, lineID string) Index {
	util.AssertPanic(len(stops) >= 2, "journey pattern needs at least two stops")
	if attributes == nil {
		attributes = make([]pkg.JPPAttribute, len(stops))
		for i := range attributes {
			attributes[i] = pkg.JPP_BOARDING | pkg.JPP_ALIGHTING
		}
	}
	util.AssertPanic(len(attributes) == len(stops), "journey pattern attributes do not match its stops")
	for _, sp := range stops {
		util.AssertPanic(int(sp) < len(b.stopPoints), "journey pattern stop out of range")
	}
	b.patterns = append(b.patterns, &journeyPatternInput{
		stops:      append([]Index(nil), stops...),
		attributes: append([]pkg.JPPAttribute(nil), attributes...),
		mode:       mode,
		lineCode:   lineCode,
		headsign:   headsign,
		lineID:     lineID,
	})
	return Index(len(b.patterns) - 1)
}

// AddVehicleJourney adds a trip to journey pattern jp. stopTimes are offsets from beginTime, one per stop.
// activeMask has bit i set when the trip runs on day i after the calendar start.
func (b *TimetableBuilder) AddVehicleJourney(jp Index, id string, beginTime Rtime, stopTimes []StopTime,
	activeMask uint32, attributes pkg.VJAttribute) {
	util.AssertPanic(int(jp) < len(b.patterns), "journey pattern out of range")
	p := b.patterns[jp]
	util.AssertPanic(len(stopTimes) == len(p.stops), "stop times do not match journey pattern")
	p.vjs = append(p.vjs, vehicleJourneyInput{
		id:         id,
		beginTime:  beginTime,
		stopTimes:  append([]StopTime(nil), stopTimes...),
		activeMask: activeMask,
		attributes: attributes,
	})
}

func timeDemandKey(sts []StopTime) string {
	var sb strings.Builder
	for _, st := range sts {
		fmt.Fprintf(&sb, "%d,%d;", st.arrival, st.departure)
	}
	return sb.String()
}

// Build lays the collected data out. trips of a pattern are sorted by departure at the first stop,
// identical time-demand profiles are stored once.
func (b *TimetableBuilder) Build() (*Timetable, error) {
	nStops := len(b.stopPoints)
	tt := &Timetable{
		stopPoints:                   append([]StopPoint(nil), b.stopPoints...),
		stopAreas:                    append([]StopArea(nil), b.stopAreas...),
		transferOffsets:              make([]Index, nStops+1),
		journeyPatternsAtStopOffsets: make([]Index, nStops+1),
		journeyPatterns:              make([]JourneyPattern, 0, len(b.patterns)),
		jpActive:                     make([]uint32, 0, len(b.patterns)),
		calendarStartTime:            b.calendarStartTime,
		nDays:                        b.nDays,
		timezone:                     b.timezone,
		stopPointByID:                make(map[string]Index, nStops),
		stopAreaByID:                 make(map[string]Index, len(b.stopAreas)),
		vjByID:                       make(map[string]VJRef),
	}

	for i := range tt.stopPoints {
		if _, dup := tt.stopPointByID[tt.stopPoints[i].id]; dup {
			return nil, fmt.Errorf("timetable: duplicate stop point id %q", tt.stopPoints[i].id)
		}
		tt.stopPointByID[tt.stopPoints[i].id] = Index(i)
	}
	for i := range tt.stopAreas {
		tt.stopAreaByID[tt.stopAreas[i].id] = Index(i)
	}

	for sp := 0; sp < nStops; sp++ {
		trs := append([]Transfer(nil), b.transfers[sp]...)
		sort.Slice(trs, func(i, j int) bool { return trs[i].target < trs[j].target })
		tt.transferOffsets[sp] = Index(len(tt.transfers))
		tt.transfers = append(tt.transfers, trs...)
	}
	tt.transferOffsets[nStops] = Index(len(tt.transfers))

	profiles := make(map[string]Index)
	patternsAtStop := make([][]Index, nStops)

	for jpIdx, p := range b.patterns {
		if len(p.vjs) > int(^uint16(0)) {
			return nil, fmt.Errorf("timetable: journey pattern %d has too many vehicle journeys", jpIdx)
		}
		vjs := append([]vehicleJourneyInput(nil), p.vjs...)
		sort.SliceStable(vjs, func(i, j int) bool {
			return int(vjs[i].beginTime)+int(vjs[i].stopTimes[0].departure) <
				int(vjs[j].beginTime)+int(vjs[j].stopTimes[0].departure)
		})

		jp := JourneyPattern{
			jppOffset:  Index(len(tt.journeyPatternPoints)),
			vjOffset:   Index(len(tt.vehicleJourneys)),
			nStops:     uint16(len(p.stops)),
			nVJs:       uint16(len(vjs)),
			attributes: p.mode,
			minTime:    UNREACHED,
			maxTime:    0,
			lineCode:   p.lineCode,
			headsign:   p.headsign,
			lineID:     p.lineID,
		}
		tt.journeyPatternPoints = append(tt.journeyPatternPoints, p.stops...)
		tt.journeyPatternPointAttributes = append(tt.journeyPatternPointAttributes, p.attributes...)

		var active uint32
		for vjOffset, vj := range vjs {
			key := timeDemandKey(vj.stopTimes)
			offset, ok := profiles[key]
			if !ok {
				offset = Index(len(tt.stopTimes))
				tt.stopTimes = append(tt.stopTimes, vj.stopTimes...)
				profiles[key] = offset
			}

			first := AddRtime(vj.beginTime, int32(vj.stopTimes[0].departure))
			last := AddRtime(vj.beginTime, int32(vj.stopTimes[len(vj.stopTimes)-1].arrival))
			if first == UNREACHED || last == UNREACHED || last >= RTIME_TWO_DAYS {
				return nil, fmt.Errorf("timetable: vehicle journey %q runs outside of the two day service window", vj.id)
			}
			if first < jp.minTime {
				jp.minTime = first
			}
			if last > jp.maxTime {
				jp.maxTime = last
			}
			if last > tt.maxTime {
				tt.maxTime = last
			}

			if _, dup := tt.vjByID[vj.id]; dup {
				return nil, fmt.Errorf("timetable: duplicate vehicle journey id %q", vj.id)
			}
			tt.vjByID[vj.id] = VJRef{JourneyPattern: Index(jpIdx), Offset: Index(vjOffset)}

			tt.vehicleJourneys = append(tt.vehicleJourneys, VehicleJourney{
				stopTimesOffset: offset,
				beginTime:       vj.beginTime,
				attributes:      vj.attributes,
				id:              vj.id,
			})
			tt.vjActive = append(tt.vjActive, vj.activeMask)
			active |= vj.activeMask
		}
		if len(vjs) == 0 {
			jp.minTime = 0
		}
		tt.journeyPatterns = append(tt.journeyPatterns, jp)
		tt.jpActive = append(tt.jpActive, active)

		for _, sp := range p.stops {
			list := patternsAtStop[sp]
			if len(list) > 0 && list[len(list)-1] == Index(jpIdx) {
				continue
			}
			patternsAtStop[sp] = append(list, Index(jpIdx))
		}
	}

	for sp := 0; sp < nStops; sp++ {
		tt.journeyPatternsAtStopOffsets[sp] = Index(len(tt.journeyPatternsAtStop))
		tt.journeyPatternsAtStop = append(tt.journeyPatternsAtStop, patternsAtStop[sp]...)
	}
	tt.journeyPatternsAtStopOffsets[nStops] = Index(len(tt.journeyPatternsAtStop))

	if err := tt.Validate(); err != nil {
		return nil, err
	}
	return tt, nil
}
