package routing

import (
	"fmt"

	da "github.com/lintang-b-s/transitx/pkg/datastructure"
)

// CheckPlanInvariants checks the itineraries of plan starting at index first. itineraries of one search
// must chain stop to stop with non-decreasing times, alternate walk and ride legs, and trade every extra
// ride for a strictly better time at the target. it returns one line per violation, nil when there is none.
func CheckPlanInvariants(plan *Plan, first int) []string {
	var out []string
	fail := func(format string, a ...any) {
		out = append(out, fmt.Sprintf(format, a...))
	}

	var prev *Itinerary
	prevTarget := da.UNREACHED
	for i := first; i < len(plan.Itineraries); i++ {
		it := &plan.Itineraries[i]
		if len(it.Legs) == 0 {
			fail("itinerary %d contains no legs", i)
			continue
		}
		leg0, legN := &it.Legs[0], &it.Legs[len(it.Legs)-1]

		target := legN.T1
		if plan.Req.ArriveBy {
			target = leg0.T0
		}
		if prev != nil {
			if len(it.Legs) <= len(prev.Legs) {
				fail("itineraries do not have strictly increasing numbers of legs: %d, %d", len(prev.Legs),
					len(it.Legs))
			}
			if (plan.Req.ArriveBy && target <= prevTarget) || (!plan.Req.ArriveBy && target >= prevTarget) {
				fail("itineraries do not have strictly improving target times: %s, %s", prevTarget, target)
			}
		}
		prev, prevTarget = it, target

		if plan.Req.From != da.STOP_NONE && leg0.From != plan.Req.From && leg0.From != da.ONBOARD {
			fail("itinerary %d does not begin at the origin: %d", i, leg0.From)
		}
		if plan.Req.To != da.STOP_NONE && legN.To != plan.Req.To {
			fail("itinerary %d does not end at the destination: %d", i, legN.To)
		}
		if len(it.Legs)%2 != 1 {
			fail("itinerary %d has an even number of legs: %d", i, len(it.Legs))
		}

		for k := range it.Legs {
			leg := &it.Legs[k]
			if k%2 == 0 && !leg.IsWalk() {
				fail("itinerary %d: even numbered leg %d has journey pattern %d, not a walk", i, k, leg.JourneyPattern)
			}
			if k%2 == 1 && leg.IsWalk() {
				fail("itinerary %d: odd numbered leg %d is a walk", i, k)
			}
			if leg.T1 < leg.T0 {
				fail("itinerary %d: non-increasing times within leg %d: %s, %s", i, k, leg.T0, leg.T1)
			}
			if k == 0 {
				continue
			}
			prevLeg := &it.Legs[k-1]
			if leg.From != prevLeg.To {
				fail("itinerary %d: leg %d begins at stop point %d, previous leg ends at %d", i, k, leg.From,
					prevLeg.To)
			}
			if leg.T0 < prevLeg.T1 {
				fail("itinerary %d: non-increasing times between legs %d and %d: %s, %s", i, k-1, k,
					prevLeg.T1, leg.T0)
			}
		}
	}
	return out
}
