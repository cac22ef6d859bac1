package datastructure

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dsnet/compress/bzip2"
	"github.com/lintang-b-s/transitx/pkg"
	"github.com/lintang-b-s/transitx/pkg/util"
)

// timetable file layout, one record per line, string fields separated by tabs:
//
//	calendarStart nDays timezone
//	nStops nAreas nPatterns
//	id name lat lon waitTime                     (nStops lines)
//	id name member member ...                    (nAreas lines)
//	nTransfers target:duration:distance ...      (nStops lines)
//	nStops mode nVJs lineCode headsign lineID    (per pattern, followed by)
//	stop stop ...
//	attr attr ...
//	id beginTime mask attrs arr:dep arr:dep ...  (nVJs lines)

func cleanField(s string) string {
	return strings.NewReplacer("\t", " ", "\n", " ").Replace(s)
}

// WriteTimetable writes the timetable as bzip2 compressed text.
func (tt *Timetable) WriteTimetable(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	bz, err := bzip2.NewWriter(f, &bzip2.WriterConfig{})
	if err != nil {
		return err
	}
	defer bz.Close()

	return tt.Encode(bz)
}

func (tt *Timetable) Encode(out io.Writer) error {
	w := bufio.NewWriter(out)

	fmt.Fprintf(w, "%d\t%d\t%s\n", tt.calendarStartTime, tt.nDays, cleanField(tt.timezone))
	fmt.Fprintf(w, "%d\t%d\t%d\n", len(tt.stopPoints), len(tt.stopAreas), len(tt.journeyPatterns))

	for i := range tt.stopPoints {
		sp := &tt.stopPoints[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", cleanField(sp.id), cleanField(sp.name),
			strconv.FormatFloat(sp.lat, 'f', -1, 64), strconv.FormatFloat(sp.lon, 'f', -1, 64), sp.waitTime)
	}

	for i := range tt.stopAreas {
		sa := &tt.stopAreas[i]
		fmt.Fprintf(w, "%s\t%s", cleanField(sa.id), cleanField(sa.name))
		for _, sp := range sa.stopPoints {
			fmt.Fprintf(w, "\t%d", sp)
		}
		fmt.Fprintf(w, "\n")
	}

	for sp := range tt.stopPoints {
		trs := tt.TransfersForStopPoint(Index(sp))
		fmt.Fprintf(w, "%d", len(trs))
		for _, tr := range trs {
			fmt.Fprintf(w, "\t%d:%d:%s", tr.target, tr.duration, strconv.FormatFloat(tr.distance, 'f', -1, 64))
		}
		fmt.Fprintf(w, "\n")
	}

	for jpIdx := range tt.journeyPatterns {
		jp := &tt.journeyPatterns[jpIdx]
		fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\t%s\n", jp.nStops, jp.attributes, jp.nVJs,
			cleanField(jp.lineCode), cleanField(jp.headsign), cleanField(jp.lineID))

		points := tt.PointsForJourneyPattern(Index(jpIdx))
		for i, sp := range points {
			if i > 0 {
				fmt.Fprintf(w, "\t")
			}
			fmt.Fprintf(w, "%d", sp)
		}
		fmt.Fprintf(w, "\n")

		attrs := tt.PointAttributesForJourneyPattern(Index(jpIdx))
		for i, a := range attrs {
			if i > 0 {
				fmt.Fprintf(w, "\t")
			}
			fmt.Fprintf(w, "%d", a)
		}
		fmt.Fprintf(w, "\n")

		masks := tt.VJMasksForJourneyPattern(Index(jpIdx))
		for vjOffset, vj := range tt.VehicleJourneysInJourneyPattern(Index(jpIdx)) {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d", cleanField(vj.id), vj.beginTime, masks[vjOffset],
				vj.attributes&^pkg.VJA_CANCELED)
			for _, st := range tt.TimeDemandType(Index(jpIdx), Index(vjOffset)) {
				fmt.Fprintf(w, "\t%d:%d", st.arrival, st.departure)
			}
			fmt.Fprintf(w, "\n")
		}
	}

	return w.Flush()
}

// ReadTimetable reads a timetable written by WriteTimetable.
func ReadTimetable(filename string) (*Timetable, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bz, err := bzip2.NewReader(f, &bzip2.ReaderConfig{})
	if err != nil {
		return nil, err
	}
	defer bz.Close()

	return DecodeTimetable(bz)
}

func parseUint(s string, bitSize int) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(s), 10, bitSize)
}

func DecodeTimetable(in io.Reader) (*Timetable, error) {
	r := bufio.NewReader(in)
	lineNo := 0
	next := func(minFields int) ([]string, error) {
		line, err := util.ReadLine(r)
		lineNo++
		if err != nil {
			return nil, fmt.Errorf("timetable line %d: %w", lineNo, err)
		}
		parts := strings.Split(line, "\t")
		if len(parts) < minFields {
			return nil, fmt.Errorf("timetable line %d: invalid format, want at least %d fields got %d",
				lineNo, minFields, len(parts))
		}
		return parts, nil
	}
	invalid := func(err error) error {
		return fmt.Errorf("timetable line %d: %w", lineNo, err)
	}

	parts, err := next(3)
	if err != nil {
		return nil, err
	}
	calendarStart, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, invalid(err)
	}
	nDays, err := parseUint(parts[1], 8)
	if err != nil {
		return nil, invalid(err)
	}
	tz := parts[2]

	parts, err = next(3)
	if err != nil {
		return nil, err
	}
	counts := make([]int, 3)
	for i := range counts {
		c, err := parseUint(parts[i], 32)
		if err != nil {
			return nil, invalid(err)
		}
		counts[i] = int(c)
	}
	nStops, nAreas, nPatterns := counts[0], counts[1], counts[2]

	b := NewTimetableBuilder(time.Unix(calendarStart, 0).UTC(), uint8(nDays))
	b.SetTimezone(tz)

	for i := 0; i < nStops; i++ {
		parts, err = next(5)
		if err != nil {
			return nil, err
		}
		lat, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return nil, invalid(err)
		}
		lon, err := strconv.ParseFloat(parts[3], 64)
		if err != nil {
			return nil, invalid(err)
		}
		wait, err := parseUint(parts[4], 16)
		if err != nil {
			return nil, invalid(err)
		}
		b.AddStopPoint(parts[0], parts[1], lat, lon, Rtime(wait))
	}

	for i := 0; i < nAreas; i++ {
		parts, err = next(2)
		if err != nil {
			return nil, err
		}
		members := make([]Index, 0, len(parts)-2)
		for _, p := range parts[2:] {
			sp, err := ParseIndex(p)
			if err != nil {
				return nil, invalid(err)
			}
			if int(sp) >= nStops {
				return nil, invalid(fmt.Errorf("stop area member %d out of range", sp))
			}
			members = append(members, sp)
		}
		b.AddStopArea(parts[0], parts[1], members)
	}

	for sp := 0; sp < nStops; sp++ {
		parts, err = next(1)
		if err != nil {
			return nil, err
		}
		n, err := parseUint(parts[0], 32)
		if err != nil {
			return nil, invalid(err)
		}
		if len(parts)-1 != int(n) {
			return nil, invalid(fmt.Errorf("want %d transfers got %d", n, len(parts)-1))
		}
		for _, p := range parts[1:] {
			f := strings.Split(p, ":")
			if len(f) != 3 {
				return nil, invalid(fmt.Errorf("invalid transfer %q", p))
			}
			target, err := ParseIndex(f[0])
			if err != nil {
				return nil, invalid(err)
			}
			duration, err := parseUint(f[1], 16)
			if err != nil {
				return nil, invalid(err)
			}
			distance, err := strconv.ParseFloat(f[2], 64)
			if err != nil {
				return nil, invalid(err)
			}
			if int(target) >= nStops {
				return nil, invalid(fmt.Errorf("transfer target %d out of range", target))
			}
			b.AddTransfer(Index(sp), target, Rtime(duration), distance)
		}
	}

	for jpIdx := 0; jpIdx < nPatterns; jpIdx++ {
		parts, err = next(6)
		if err != nil {
			return nil, err
		}
		n, err := parseUint(parts[0], 16)
		if err != nil {
			return nil, invalid(err)
		}
		if n < 2 {
			return nil, invalid(fmt.Errorf("journey pattern %d has %d stops", jpIdx, n))
		}
		mode, err := parseUint(parts[1], 8)
		if err != nil {
			return nil, invalid(err)
		}
		nVJs, err := parseUint(parts[2], 16)
		if err != nil {
			return nil, invalid(err)
		}
		lineCode, headsign, lineID := parts[3], parts[4], parts[5]

		parts, err = next(int(n))
		if err != nil {
			return nil, err
		}
		stops := make([]Index, n)
		for i := range stops {
			stops[i], err = ParseIndex(parts[i])
			if err != nil {
				return nil, invalid(err)
			}
			if int(stops[i]) >= nStops {
				return nil, invalid(fmt.Errorf("invalid journey pattern stop %d", stops[i]))
			}
		}

		parts, err = next(int(n))
		if err != nil {
			return nil, err
		}
		attrs := make([]pkg.JPPAttribute, n)
		for i := range attrs {
			a, err := parseUint(parts[i], 8)
			if err != nil {
				return nil, invalid(err)
			}
			attrs[i] = pkg.JPPAttribute(a)
		}

		jp := b.AddJourneyPattern(stops, attrs, pkg.TransportMode(mode), lineCode, headsign, lineID)

		for v := 0; v < int(nVJs); v++ {
			parts, err = next(4 + int(n))
			if err != nil {
				return nil, err
			}
			begin, err := parseUint(parts[1], 16)
			if err != nil {
				return nil, invalid(err)
			}
			mask, err := parseUint(parts[2], 32)
			if err != nil {
				return nil, invalid(err)
			}
			vjAttrs, err := parseUint(parts[3], 8)
			if err != nil {
				return nil, invalid(err)
			}
			sts := make([]StopTime, n)
			for i := range sts {
				f := strings.Split(parts[4+i], ":")
				if len(f) != 2 {
					return nil, invalid(fmt.Errorf("invalid stop time %q", parts[4+i]))
				}
				arr, err := parseUint(f[0], 16)
				if err != nil {
					return nil, invalid(err)
				}
				dep, err := parseUint(f[1], 16)
				if err != nil {
					return nil, invalid(err)
				}
				sts[i] = NewStopTime(Rtime(arr), Rtime(dep))
			}
			b.AddVehicleJourney(jp, parts[0], Rtime(begin), sts, uint32(mask), pkg.VJAttribute(vjAttrs))
		}
	}

	return b.Build()
}
