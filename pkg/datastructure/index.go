package datastructure

import (
	"fmt"
	"math"
	"strconv"
)

type Index uint32

const (
	// stop point sentinel, used for unset origin/destination/via
	STOP_NONE Index = math.MaxUint32 - 1
	// stop point sentinel for an itinerary that starts while sitting in a vehicle
	ONBOARD Index = math.MaxUint32 - 2
	// journey pattern / vehicle journey sentinel, "not riding anything"
	NONE Index = math.MaxUint32
	// journey pattern of a walk leg
	WALK Index = math.MaxUint32 - 3
)

func ParseIndex(s string) (Index, error) {
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if u > math.MaxUint32 {
		return 0, fmt.Errorf("value %s overflows uint32", s)
	}
	return Index(u), nil
}
