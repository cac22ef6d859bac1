package controllers

import (
	"time"

	da "github.com/lintang-b-s/transitx/pkg/datastructure"
	"github.com/lintang-b-s/transitx/pkg/engine/routing"
	"github.com/lintang-b-s/transitx/pkg/geo"
	"github.com/lintang-b-s/transitx/pkg/spatialindex"
)

type planRequest struct {
	FromStop     string   `json:"from_stop"`
	FromLat      *float64 `json:"from_lat" validate:"required_without=FromStop,omitempty,latitude"`
	FromLon      *float64 `json:"from_lon" validate:"required_without=FromStop,omitempty,longitude"`
	ToStop       string   `json:"to_stop"`
	ToLat        *float64 `json:"to_lat" validate:"required_without=ToStop,omitempty,latitude"`
	ToLon        *float64 `json:"to_lon" validate:"required_without=ToStop,omitempty,longitude"`
	ViaStop      string   `json:"via_stop"`
	Time         time.Time
	ArriveBy     bool    `json:"arrive_by"`
	MaxTransfers int     `json:"max_transfers" validate:"min=0,max=5"`
	WalkSpeed    float64 `json:"walk_speed" validate:"min=0.1,max=5"`
	Mode         string  `json:"mode" validate:"oneof=all tram subway rail bus ferry cablecar gondola funicular"`
	Optimise     string  `json:"optimise" validate:"oneof=all transfers shortest"`
	Strategy     string  `json:"strategy" validate:"oneof=first naive full"`
	Wheelchair   bool    `json:"wheelchair"`
}

type nearbyStopsRequest struct {
	Lat    float64 `json:"lat" validate:"latitude"`
	Lon    float64 `json:"lon" validate:"longitude"`
	Radius float64 `json:"radius" validate:"gt=0,max=5"`
}

type placeResponse struct {
	StopID string  `json:"stop_id,omitempty"`
	Name   string  `json:"name,omitempty"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}

type legResponse struct {
	Mode           string        `json:"mode"`
	Line           string        `json:"line,omitempty"`
	LineID         string        `json:"line_id,omitempty"`
	Headsign       string        `json:"headsign,omitempty"`
	TripID         string        `json:"trip_id,omitempty"`
	From           placeResponse `json:"from"`
	To             placeResponse `json:"to"`
	Departure      time.Time     `json:"departure"`
	Arrival        time.Time     `json:"arrival"`
	DepartureDelay int32         `json:"departure_delay"` // seconds
	ArrivalDelay   int32         `json:"arrival_delay"`
	Polyline       string        `json:"polyline"`
}

type itineraryResponse struct {
	Departure time.Time     `json:"departure"`
	Arrival   time.Time     `json:"arrival"`
	Duration  float64       `json:"duration"` // minutes
	Transfers int           `json:"transfers"`
	Legs      []legResponse `json:"legs"`
}

type planResponse struct {
	RequestID   string              `json:"request_id,omitempty"`
	Itineraries []itineraryResponse `json:"itineraries"`
}

// NewPlanResponse renders the itineraries of plan. walk legs that start or end at STOP_NONE start or end
// at the query coordinates.
func NewPlanResponse(tt *da.Timetable, plan *routing.Plan, itineraries []routing.Itinerary,
	origin, destination geo.Coordinate, requestID string) planResponse {
	resp := planResponse{
		RequestID:   requestID,
		Itineraries: make([]itineraryResponse, 0, len(itineraries)),
	}
	epoch := func(t da.Rtime) time.Time {
		return routing.RtimeToEpoch(tt, &plan.Req, t)
	}

	for i := range itineraries {
		it := &itineraries[i]
		itResp := itineraryResponse{
			Departure: epoch(it.Departure()),
			Arrival:   epoch(it.Arrival()),
			Transfers: max(it.NRides-1, 0),
			Legs:      make([]legResponse, 0, len(it.Legs)),
		}
		itResp.Duration = itResp.Arrival.Sub(itResp.Departure).Minutes()

		for j := range it.Legs {
			leg := &it.Legs[j]
			if leg.From == da.ONBOARD || (leg.IsWalk() && leg.From == leg.To && leg.T0 == leg.T1) {
				continue
			}
			from := newPlaceResponse(tt, leg.From, origin)
			to := newPlaceResponse(tt, leg.To, destination)
			legResp := legResponse{
				Mode:           "walk",
				From:           from,
				To:             to,
				Departure:      epoch(leg.T0),
				Arrival:        epoch(leg.T1),
				DepartureDelay: leg.D0,
				ArrivalDelay:   leg.D1,
			}
			if leg.IsWalk() {
				if leg.From == leg.To {
					legResp.Mode = "wait"
				}
				legResp.Polyline = geo.PolylineFromCoords([]geo.Coordinate{
					geo.NewCoordinate(from.Lat, from.Lon), geo.NewCoordinate(to.Lat, to.Lon),
				})
			} else {
				jp := tt.GetJourneyPattern(leg.JourneyPattern)
				legResp.Mode = jp.GetMode().String()
				legResp.Line = jp.GetLineCode()
				legResp.LineID = jp.GetLineID()
				legResp.Headsign = jp.GetHeadsign()
				legResp.TripID = tt.GetVehicleJourney(leg.JourneyPattern, leg.VehicleJourney).GetID()
				legResp.Polyline = geo.PolylineFromCoords(rideCoordinates(tt, leg))
			}
			itResp.Legs = append(itResp.Legs, legResp)
		}
		resp.Itineraries = append(resp.Itineraries, itResp)
	}
	return resp
}

func newPlaceResponse(tt *da.Timetable, sp da.Index, fallback geo.Coordinate) placeResponse {
	if sp >= da.Index(tt.NumberOfStopPoints()) {
		return placeResponse{Lat: fallback.GetLat(), Lon: fallback.GetLon()}
	}
	stop := tt.GetStopPoint(sp)
	return placeResponse{
		StopID: stop.GetID(),
		Name:   stop.GetName(),
		Lat:    stop.GetLat(),
		Lon:    stop.GetLon(),
	}
}

// rideCoordinates are the stop points the vehicle passes between boarding and alighting.
func rideCoordinates(tt *da.Timetable, leg *routing.Leg) []geo.Coordinate {
	points := tt.PointsForJourneyPattern(leg.JourneyPattern)
	jpp0, jpp1 := int(leg.JPP0), int(leg.JPP1)
	if jpp0 > jpp1 || jpp1 >= len(points) {
		from, to := tt.GetStopPoint(leg.From), tt.GetStopPoint(leg.To)
		return []geo.Coordinate{
			geo.NewCoordinate(from.GetLat(), from.GetLon()), geo.NewCoordinate(to.GetLat(), to.GetLon()),
		}
	}
	coords := make([]geo.Coordinate, 0, jpp1-jpp0+1)
	for _, sp := range points[jpp0 : jpp1+1] {
		stop := tt.GetStopPoint(sp)
		coords = append(coords, geo.NewCoordinate(stop.GetLat(), stop.GetLon()))
	}
	return coords
}

type nearbyStopResponse struct {
	StopID   string  `json:"stop_id"`
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Distance float64 `json:"distance"` // meter
}

func NewNearbyStopsResponse(tt *da.Timetable, cands []spatialindex.StopCandidate) []nearbyStopResponse {
	resp := make([]nearbyStopResponse, 0, len(cands))
	for _, c := range cands {
		stop := tt.GetStopPoint(c.GetStopPoint())
		resp = append(resp, nearbyStopResponse{
			StopID:   stop.GetID(),
			Name:     stop.GetName(),
			Lat:      stop.GetLat(),
			Lon:      stop.GetLon(),
			Distance: c.GetDistance(),
		})
	}
	return resp
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
