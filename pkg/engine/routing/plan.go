package routing

import (
	"fmt"
	"strings"

	"github.com/lintang-b-s/transitx/pkg"
	da "github.com/lintang-b-s/transitx/pkg/datastructure"
)

// Leg is one ride or one walk of an itinerary. walk legs have JourneyPattern == WALK.
type Leg struct {
	JourneyPattern da.Index
	VehicleJourney da.Index
	From           da.Index
	To             da.Index
	T0             da.Rtime
	T1             da.Rtime
	D0             int32 // realtime delay at departure, seconds
	D1             int32 // realtime delay at arrival, seconds
	JPP0           uint16
	JPP1           uint16
}

func newWalkLeg(from, to da.Index, t0, t1 da.Rtime) Leg {
	return Leg{
		JourneyPattern: da.WALK,
		VehicleJourney: da.WALK,
		From:           from,
		To:             to,
		T0:             t0,
		T1:             t1,
	}
}

func (l *Leg) IsWalk() bool {
	return l.JourneyPattern == da.WALK
}

// swap reverses a leg built backward in time by an arrive-by search.
func (l *Leg) swap() {
	l.From, l.To = l.To, l.From
	l.T0, l.T1 = l.T1, l.T0
	l.D0, l.D1 = l.D1, l.D0
	l.JPP0, l.JPP1 = l.JPP1, l.JPP0
}

// Itinerary is a chain of legs, a walk followed by ride-walk pairs.
type Itinerary struct {
	NRides int
	Legs   []Leg
}

func (it *Itinerary) Departure() da.Rtime {
	return it.Legs[0].T0
}

func (it *Itinerary) Arrival() da.Rtime {
	return it.Legs[len(it.Legs)-1].T1
}

// Plan holds the itineraries found for a request, ordered by increasing number of rides.
type Plan struct {
	Req         Request
	Itineraries []Itinerary
}

func NewPlan(req Request) *Plan {
	return &Plan{Req: req, Itineraries: make([]Itinerary, 0, pkg.MAX_ROUNDS)}
}

// Filter returns the itineraries selected by optimise: all of them, the one with the fewest
// transfers, the fastest one, or both.
func (p *Plan) Filter(optimise pkg.Optimise) []Itinerary {
	if optimise&pkg.OPTIMISE_ALL == pkg.OPTIMISE_ALL || len(p.Itineraries) == 0 {
		return p.Itineraries
	}
	out := make([]Itinerary, 0, 2)
	if optimise&pkg.OPTIMISE_TRANSFERS != 0 {
		out = append(out, p.Itineraries[0])
	}
	if optimise&pkg.OPTIMISE_SHORTEST != 0 {
		last := len(p.Itineraries) - 1
		if last > 0 || optimise&pkg.OPTIMISE_TRANSFERS == 0 {
			out = append(out, p.Itineraries[last])
		}
	}
	return out
}

// RenderText writes the plan in the tabular text format of the command line tools.
func (p *Plan) RenderText(tt *da.Timetable) string {
	var sb strings.Builder
	for _, it := range p.Filter(p.Req.Optimise) {
		fmt.Fprintf(&sb, "\nITIN %d rides \n", it.NRides)
		for i := range it.Legs {
			leg := &it.Legs[i]
			if leg.IsWalk() && leg.From == da.ONBOARD {
				continue
			}
			mode, line, headsign := "WALK", "walk", "walk"
			if leg.IsWalk() && leg.From == leg.To {
				mode = "WAIT"
			}
			if !leg.IsWalk() {
				jp := tt.GetJourneyPattern(leg.JourneyPattern)
				mode, line, headsign = jp.GetMode().String(), jp.GetLineCode(), jp.GetHeadsign()
			}
			fmt.Fprintf(&sb, "%s %5d %3d %5d %5d %s %+3.1f %s %+3.1f ;%s;%s;%s;%s\n",
				mode, legIndex(leg.JourneyPattern), legIndex(leg.VehicleJourney), legIndex(leg.From), legIndex(leg.To),
				leg.T0, float64(leg.D0)/60.0, leg.T1, float64(leg.D1)/60.0,
				line, headsign, stopName(tt, leg.From), stopName(tt, leg.To))
		}
	}
	return sb.String()
}

// legIndex renders sentinels as -1.
func legIndex(i da.Index) int64 {
	if i >= da.WALK {
		return -1
	}
	return int64(i)
}
