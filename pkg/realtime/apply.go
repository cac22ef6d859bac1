package realtime

import (
	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	da "github.com/lintang-b-s/transitx/pkg/datastructure"
)

type ApplyStats struct {
	Delayed  int
	Canceled int
	Unknown  int // trip updates naming a vehicle journey that is not in the timetable
}

// ApplyFeed replaces the realtime state of tt with the TripUpdates of feed. a feed is always treated as a
// full dataset, trips it does not mention run on schedule.
// the caller must hold exclusive access to tt.
func ApplyFeed(tt *da.Timetable, feed *gtfs.FeedMessage) ApplyStats {
	var stats ApplyStats
	tt.ResetRealtime()

	for _, entity := range feed.GetEntity() {
		tu := entity.GetTripUpdate()
		if tu == nil || tu.GetTrip().GetTripId() == "" {
			continue
		}

		ref, ok := tt.VehicleJourneyRef(tu.GetTrip().GetTripId())
		if !ok {
			stats.Unknown++
			continue
		}

		if tu.GetTrip().GetScheduleRelationship() == gtfs.TripDescriptor_CANCELED {
			tt.SetVehicleJourneyCanceled(ref, true)
			stats.Canceled++
			continue
		}

		if delay, ok := tripDelay(tu); ok && delay != 0 {
			tt.SetVehicleJourneyDelay(ref, delay)
			stats.Delayed++
		}
	}
	return stats
}

// tripDelay is the delay of the whole trip. the trip level delay wins, otherwise the first stop time update
// that carries one. the timetable keeps one delay per vehicle journey.
func tripDelay(tu *gtfs.TripUpdate) (int32, bool) {
	if tu.Delay != nil {
		return tu.GetDelay(), true
	}
	for _, stu := range tu.GetStopTimeUpdate() {
		if stu.GetScheduleRelationship() != gtfs.TripUpdate_StopTimeUpdate_SCHEDULED {
			continue
		}
		if stu.GetArrival() != nil && stu.GetArrival().Delay != nil {
			return stu.GetArrival().GetDelay(), true
		}
		if stu.GetDeparture() != nil && stu.GetDeparture().Delay != nil {
			return stu.GetDeparture().GetDelay(), true
		}
	}
	return 0, false
}
