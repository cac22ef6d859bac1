package gtfs

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/lintang-b-s/transitx/pkg"
	da "github.com/lintang-b-s/transitx/pkg/datastructure"
	"github.com/lintang-b-s/transitx/pkg/geo"
	"go.uber.org/zap"
)

// Options control how a feed is laid out into a timetable.
type Options struct {
	// first day of the calendar, only its date is used
	Start time.Time
	NDays uint8
	// used when agency.txt names no timezone
	Timezone string
	// footpaths are generated between stop points closer than this many meters, 0 disables them
	TransferDistance float64
	WalkSpeed        float64
}

type route struct {
	lineCode string
	mode     pkg.TransportMode
}

type trip struct {
	routeID    string
	serviceID  string
	headsign   string
	attributes pkg.VJAttribute
}

type stopTimeRow struct {
	seq       int
	stopID    string
	arrival   int64 // seconds, -1 when the feed leaves it empty
	departure int64
	attribute pkg.JPPAttribute
}

type stopRow struct {
	id, name, parent string
	lat, lon         float64
}

// LoadFile reads the GTFS feed at path, a zip archive or a directory.
func LoadFile(path string, opts Options, log *zap.Logger) (*da.Timetable, error) {
	fsys, closer, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return Load(fsys, opts, log)
}

// Load builds a timetable out of the feed files in fsys. trips not running on any day of the calendar
// are left out. trips sharing route, headsign, stop sequence and pickup/drop-off rules share a journey
// pattern.
func Load(fsys fs.FS, opts Options, log *zap.Logger) (*da.Timetable, error) {
	if opts.NDays == 0 || opts.NDays > 32 {
		return nil, fmt.Errorf("gtfs: calendar must span 1 to 32 days, got %d", opts.NDays)
	}
	if opts.WalkSpeed <= 0 {
		opts.WalkSpeed = pkg.DEFAULT_WALK_SPEED
	}

	tz, err := agencyTimezone(fsys, opts.Timezone)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("gtfs: timezone %q: %w", tz, err)
	}
	start := time.Date(opts.Start.Year(), opts.Start.Month(), opts.Start.Day(), 0, 0, 0, 0, loc)

	masks, err := serviceMasks(fsys, start, int(opts.NDays))
	if err != nil {
		return nil, fmt.Errorf("gtfs: %w", err)
	}

	b := da.NewTimetableBuilder(start, opts.NDays)
	b.SetTimezone(tz)

	stops, err := readStops(fsys)
	if err != nil {
		return nil, fmt.Errorf("gtfs: %w", err)
	}
	transfers, waitTimes, err := readTransfers(fsys)
	if err != nil {
		return nil, fmt.Errorf("gtfs: %w", err)
	}

	// stop points are numbered in file order, stops[sp] describes stop point sp
	stopIdx := make(map[string]da.Index, len(stops))
	stationMembers := make(map[string][]da.Index)
	for _, s := range stops {
		stopIdx[s.id] = b.AddStopPoint(s.id, s.name, s.lat, s.lon, da.SecToRtime(waitTimes[s.id]))
		if s.parent != "" {
			stationMembers[s.parent] = append(stationMembers[s.parent], stopIdx[s.id])
		}
	}

	nGenerated := 0
	if opts.TransferDistance > 0 {
		nGenerated = b.GenerateTransfers(opts.TransferDistance, opts.WalkSpeed)
	}
	for _, tr := range transfers {
		from, ok1 := stopIdx[tr.from]
		to, ok2 := stopIdx[tr.to]
		if !ok1 || !ok2 {
			continue
		}
		a, c := stops[from], stops[to]
		dist := geo.GreatCircleDistance(geo.NewCoordinate(a.lat, a.lon), geo.NewCoordinate(c.lat, c.lon)) *
			pkg.WALK_COMP
		sec := tr.minTime
		if sec < 0 {
			sec = int64(dist / opts.WalkSpeed)
		}
		b.AddTransfer(from, to, da.SecToRtime(uint32(sec)), dist)
	}

	if err := addStations(fsys, b, stationMembers); err != nil {
		return nil, fmt.Errorf("gtfs: %w", err)
	}

	routes, err := readRoutes(fsys)
	if err != nil {
		return nil, fmt.Errorf("gtfs: %w", err)
	}
	trips, err := readTrips(fsys, routes)
	if err != nil {
		return nil, fmt.Errorf("gtfs: %w", err)
	}
	stopTimes, err := readStopTimes(fsys, trips)
	if err != nil {
		return nil, fmt.Errorf("gtfs: %w", err)
	}

	tripIDs := make([]string, 0, len(stopTimes))
	for id := range stopTimes {
		tripIDs = append(tripIDs, id)
	}
	sort.Strings(tripIDs)

	patterns := make(map[string]da.Index)
	nTrips, nInactive, nShort := 0, 0, 0
	for _, id := range tripIDs {
		tr := trips[id]
		mask := masks[tr.serviceID]
		if mask == 0 {
			nInactive++
			continue
		}
		rows := stopTimes[id]
		if len(rows) < 2 {
			nShort++
			continue
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
		if err := interpolate(rows); err != nil {
			return nil, fmt.Errorf("gtfs: trip %s: %w", id, err)
		}

		points := make([]da.Index, len(rows))
		attrs := make([]pkg.JPPAttribute, len(rows))
		var key strings.Builder
		fmt.Fprintf(&key, "%s|%s|", tr.routeID, tr.headsign)
		for i, row := range rows {
			sp, ok := stopIdx[row.stopID]
			if !ok {
				return nil, fmt.Errorf("gtfs: trip %s visits unknown stop %q", id, row.stopID)
			}
			points[i] = sp
			attrs[i] = row.attribute
			fmt.Fprintf(&key, "%d:%d,", sp, row.attribute)
		}

		jp, ok := patterns[key.String()]
		if !ok {
			r := routes[tr.routeID]
			jp = b.AddJourneyPattern(points, attrs, r.mode, r.lineCode, tr.headsign, tr.routeID)
			patterns[key.String()] = jp
		}
		begin, sts := relativeStopTimes(rows)
		b.AddVehicleJourney(jp, id, begin, sts, mask, tr.attributes)
		nTrips++
	}

	tt, err := b.Build()
	if err != nil {
		return nil, err
	}
	if err := tt.Validate(); err != nil {
		return nil, err
	}
	log.Info("gtfs feed loaded",
		zap.String("timezone", tz),
		zap.Time("calendar_start", start),
		zap.Int("stop_points", tt.NumberOfStopPoints()),
		zap.Int("stop_areas", tt.NumberOfStopAreas()),
		zap.Int("journey_patterns", tt.NumberOfJourneyPatterns()),
		zap.Int("vehicle_journeys", nTrips),
		zap.Int("inactive_trips", nInactive),
		zap.Int("short_trips", nShort),
		zap.Int("generated_transfers", nGenerated),
		zap.Int("feed_transfers", len(transfers)))
	return tt, nil
}

func agencyTimezone(fsys fs.FS, fallback string) (string, error) {
	tz := ""
	err := parseCSV(fsys, "agency.txt", false, func(r record) error {
		if tz == "" {
			tz = r.get("agency_timezone")
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("gtfs: %w", err)
	}
	if tz == "" {
		tz = fallback
	}
	if tz == "" {
		tz = "UTC"
	}
	return tz, nil
}

// readStops returns the boarding locations of stops.txt. stations become stop areas later, entrances and
// nodes are dropped.
func readStops(fsys fs.FS) ([]stopRow, error) {
	var stops []stopRow
	err := parseCSV(fsys, "stops.txt", true, func(r record) error {
		locationType, err := r.int("location_type", 0)
		if err != nil {
			return err
		}
		if locationType != 0 {
			return nil
		}
		lat, err := r.float("stop_lat")
		if err != nil {
			return err
		}
		lon, err := r.float("stop_lon")
		if err != nil {
			return err
		}
		stops = append(stops, stopRow{
			id:     r.get("stop_id"),
			name:   r.get("stop_name"),
			parent: r.get("parent_station"),
			lat:    lat,
			lon:    lon,
		})
		return nil
	})
	return stops, err
}

func addStations(fsys fs.FS, b *da.TimetableBuilder, members map[string][]da.Index) error {
	return parseCSV(fsys, "stops.txt", true, func(r record) error {
		if r.get("location_type") != "1" {
			return nil
		}
		id := r.get("stop_id")
		if len(members[id]) == 0 {
			return nil
		}
		b.AddStopArea(id, r.get("stop_name"), members[id])
		return nil
	})
}

type feedTransfer struct {
	from, to string
	minTime  int64 // seconds, -1 when walking time has to be estimated
}

// readTransfers splits transfers.txt into footpaths between distinct stops and the minimum transfer time
// at a single stop. forbidden transfers are skipped.
func readTransfers(fsys fs.FS) ([]feedTransfer, map[string]uint32, error) {
	var transfers []feedTransfer
	waitTimes := make(map[string]uint32)
	err := parseCSV(fsys, "transfers.txt", false, func(r record) error {
		transferType, err := r.int("transfer_type", 0)
		if err != nil {
			return err
		}
		if transferType == 3 {
			return nil
		}
		minTime, err := r.int("min_transfer_time", -1)
		if err != nil {
			return err
		}
		from, to := r.get("from_stop_id"), r.get("to_stop_id")
		if from == to {
			if minTime > 0 {
				waitTimes[from] = uint32(minTime)
			}
			return nil
		}
		transfers = append(transfers, feedTransfer{from: from, to: to, minTime: int64(minTime)})
		return nil
	})
	return transfers, waitTimes, err
}

func readRoutes(fsys fs.FS) (map[string]route, error) {
	routes := make(map[string]route)
	err := parseCSV(fsys, "routes.txt", true, func(r record) error {
		routeType, err := r.int("route_type", 3)
		if err != nil {
			return err
		}
		lineCode := r.get("route_short_name")
		if lineCode == "" {
			lineCode = r.get("route_long_name")
		}
		routes[r.get("route_id")] = route{lineCode: lineCode, mode: RouteMode(routeType)}
		return nil
	})
	return routes, err
}

func readTrips(fsys fs.FS, routes map[string]route) (map[string]trip, error) {
	trips := make(map[string]trip)
	err := parseCSV(fsys, "trips.txt", true, func(r record) error {
		routeID := r.get("route_id")
		if _, ok := routes[routeID]; !ok {
			return fmt.Errorf("unknown route %q", routeID)
		}
		attrs := pkg.VJA_NONE
		if r.get("wheelchair_accessible") == "1" {
			attrs |= pkg.VJA_ACCESSIBLE
		}
		trips[r.get("trip_id")] = trip{
			routeID:    routeID,
			serviceID:  r.get("service_id"),
			headsign:   r.get("trip_headsign"),
			attributes: attrs,
		}
		return nil
	})
	return trips, err
}

func readStopTimes(fsys fs.FS, trips map[string]trip) (map[string][]stopTimeRow, error) {
	stopTimes := make(map[string][]stopTimeRow, len(trips))
	err := parseCSV(fsys, "stop_times.txt", true, func(r record) error {
		tripID := r.get("trip_id")
		if _, ok := trips[tripID]; !ok {
			return fmt.Errorf("unknown trip %q", tripID)
		}
		seq, err := r.int("stop_sequence", -1)
		if err != nil {
			return err
		}
		row := stopTimeRow{seq: seq, stopID: r.get("stop_id"), arrival: -1, departure: -1}
		if s := r.get("arrival_time"); s != "" {
			sec, err := parseTime(s)
			if err != nil {
				return err
			}
			row.arrival = int64(sec)
		}
		if s := r.get("departure_time"); s != "" {
			sec, err := parseTime(s)
			if err != nil {
				return err
			}
			row.departure = int64(sec)
		}
		if row.arrival < 0 {
			row.arrival = row.departure
		}
		if row.departure < 0 {
			row.departure = row.arrival
		}

		row.attribute = pkg.JPP_BOARDING | pkg.JPP_ALIGHTING
		if pickup, _ := r.int("pickup_type", 0); pickup == 1 {
			row.attribute &^= pkg.JPP_BOARDING
		}
		if dropOff, _ := r.int("drop_off_type", 0); dropOff == 1 {
			row.attribute &^= pkg.JPP_ALIGHTING
		}
		if r.get("timepoint") == "1" {
			row.attribute |= pkg.JPP_WAITINGPOINT
		}
		stopTimes[tripID] = append(stopTimes[tripID], row)
		return nil
	})
	return stopTimes, err
}

// interpolate fills stops without times linearly by position between the surrounding timed stops and
// makes the times non-decreasing along the trip.
func interpolate(rows []stopTimeRow) error {
	if rows[0].arrival < 0 || rows[len(rows)-1].arrival < 0 {
		return fmt.Errorf("first and last stop need times")
	}
	prev := 0
	for i := 1; i < len(rows); i++ {
		if rows[i].arrival < 0 {
			continue
		}
		for j := prev + 1; j < i; j++ {
			span := rows[i].arrival - rows[prev].departure
			t := rows[prev].departure + span*int64(j-prev)/int64(i-prev)
			rows[j].arrival, rows[j].departure = t, t
		}
		prev = i
	}

	for i := range rows {
		if i > 0 && rows[i].arrival < rows[i-1].departure {
			rows[i].arrival = rows[i-1].departure
		}
		if rows[i].departure < rows[i].arrival {
			rows[i].departure = rows[i].arrival
		}
	}
	return nil
}

// relativeStopTimes returns the arrival at the first stop and the times of every stop as offsets of it.
func relativeStopTimes(rows []stopTimeRow) (da.Rtime, []da.StopTime) {
	begin := da.SecToRtime(uint32(rows[0].arrival))
	sts := make([]da.StopTime, len(rows))
	for i, row := range rows {
		sts[i] = da.NewStopTime(
			da.SecToRtime(uint32(row.arrival))-begin,
			da.SecToRtime(uint32(row.departure))-begin)
	}
	return begin, sts
}

// RouteMode maps a GTFS route_type, basic or extended, to a transport mode. unknown types are buses.
func RouteMode(routeType int) pkg.TransportMode {
	switch {
	case routeType == 0, routeType >= 900 && routeType < 1000:
		return pkg.MODE_TRAM
	case routeType == 1, routeType >= 400 && routeType < 500:
		return pkg.MODE_SUBWAY
	case routeType == 2, routeType == 12, routeType >= 100 && routeType < 200:
		return pkg.MODE_RAIL
	case routeType == 4, routeType >= 1000 && routeType < 1100, routeType == 1200:
		return pkg.MODE_FERRY
	case routeType == 5:
		return pkg.MODE_CABLECAR
	case routeType == 6, routeType >= 1300 && routeType < 1400:
		return pkg.MODE_GONDOLA
	case routeType == 7, routeType == 1400:
		return pkg.MODE_FUNICULAR
	default:
		return pkg.MODE_BUS
	}
}
