package datastructure

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/lintang-b-s/transitx/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hm(h, m int) Rtime {
	return SecToRtime(uint32(h*3600 + m*60))
}

func buildSmallTimetable(t *testing.T) *Timetable {
	t.Helper()
	b := NewTimetableBuilder(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), 7)
	a := b.AddStopPoint("a", "Alpha", -7.78, 110.36, 0)
	c := b.AddStopPoint("b", "Bravo", -7.781, 110.37, hm(0, 1))
	d := b.AddStopPoint("c", "Charlie", -7.79, 110.38, 0)
	b.AddStopArea("area-ab", "Alpha Bravo", []Index{a, c})
	b.AddTransfer(c, a, hm(0, 3), 250)
	b.AddTransfer(c, d, hm(0, 5), 0)

	sts := []StopTime{NewStopTime(0, 0), NewStopTime(hm(0, 10), hm(0, 11)), NewStopTime(hm(0, 20), hm(0, 20))}
	jp := b.AddJourneyPattern([]Index{a, c, d}, nil, pkg.MODE_BUS, "1", "Charlie", "line-1")
	// added out of order, Build sorts them
	b.AddVehicleJourney(jp, "late", hm(9, 0), sts, 0x7f, pkg.VJA_NONE)
	b.AddVehicleJourney(jp, "early", hm(8, 0), sts, 0x1f, pkg.VJA_ACCESSIBLE)
	b.AddVehicleJourney(jp, "night", hm(23, 50), sts, 0x60, pkg.VJA_NONE)

	jp2 := b.AddJourneyPattern([]Index{d, a}, []pkg.JPPAttribute{pkg.JPP_BOARDING, pkg.JPP_ALIGHTING}, pkg.MODE_TRAM,
		"T", "Alpha", "line-t")
	b.AddVehicleJourney(jp2, "tram", hm(7, 0), []StopTime{NewStopTime(0, 0), NewStopTime(hm(0, 7), hm(0, 7))}, 0x3,
		pkg.VJA_NONE)

	tt, err := b.Build()
	require.NoError(t, err)
	return tt
}

func TestTimetableBuilder(t *testing.T) {
	tt := buildSmallTimetable(t)

	assert.Equal(t, 3, tt.NumberOfStopPoints())
	assert.Equal(t, 2, tt.NumberOfJourneyPatterns())
	assert.Equal(t, 4, tt.NumberOfVehicleJourneys())

	vjs := tt.VehicleJourneysInJourneyPattern(0)
	require.Len(t, vjs, 3)
	assert.Equal(t, "early", vjs[0].GetID())
	assert.Equal(t, "late", vjs[1].GetID())
	assert.Equal(t, "night", vjs[2].GetID())
	assert.Equal(t, []uint32{0x1f, 0x7f, 0x60}, tt.VJMasksForJourneyPattern(0))
	assert.Equal(t, uint32(0x7f), tt.JourneyPatternActive(0))

	// identical profiles share storage
	assert.Equal(t, &tt.TimeDemandType(0, 0)[0], &tt.TimeDemandType(0, 2)[0])

	jp := tt.GetJourneyPattern(0)
	assert.Equal(t, hm(8, 0), jp.GetMinTime())
	assert.Equal(t, hm(24, 10), jp.GetMaxTime())
	assert.False(t, jp.Overlaps())
	assert.Equal(t, hm(24, 10), tt.GetMaxTime())

	assert.Equal(t, []Index{0}, tt.JourneyPatternsForStopPoint(1))
	assert.Equal(t, []Index{0, 1}, tt.JourneyPatternsForStopPoint(0))
	assert.Equal(t, []pkg.JPPAttribute{pkg.JPP_BOARDING, pkg.JPP_ALIGHTING}, tt.PointAttributesForJourneyPattern(1))

	sp, ok := tt.StopPointIndex("b")
	require.True(t, ok)
	assert.Equal(t, Index(1), sp)
	assert.Equal(t, hm(0, 1), tt.StopPointWaitTime(sp))
	assert.Equal(t, Index(0), tt.GetStopPoint(sp).GetStopArea())

	ref, ok := tt.VehicleJourneyRef("late")
	require.True(t, ok)
	assert.Equal(t, VJRef{JourneyPattern: 0, Offset: 1}, ref)
}

func TestTransferDuration(t *testing.T) {
	tt := buildSmallTimetable(t)

	testCases := []struct {
		name      string
		from, to  Index
		walkSpeed float64
		slack     Rtime
		want      Rtime
	}{
		{"same stop", 1, 1, 1.5, 10, 0},
		{"distance known", 1, 0, 1.0, 0, SecToRtime(250)},
		{"distance known with slack", 1, 0, 1.0, 5, SecToRtime(250) + 5},
		{"distance unknown uses stored duration", 1, 2, 1.0, 0, hm(0, 5)},
		{"no transfer", 0, 2, 1.5, 0, UNREACHED},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tt.TransferDuration(tc.from, tc.to, tc.walkSpeed, tc.slack))
		})
	}
}

func TestRealtimeFields(t *testing.T) {
	tt := buildSmallTimetable(t)
	ref, _ := tt.VehicleJourneyRef("early")

	tt.SetVehicleJourneyDelay(ref, 120)
	tt.SetVehicleJourneyCanceled(ref, true)
	vj := tt.GetVehicleJourney(ref.JourneyPattern, ref.Offset)
	assert.Equal(t, int32(30), vj.GetDelay())
	assert.True(t, vj.IsCanceled())
	assert.Equal(t, pkg.VJA_ACCESSIBLE, vj.GetAttributes()&pkg.VJA_ACCESSIBLE)

	tt.ResetRealtime()
	assert.Equal(t, int32(0), vj.GetDelay())
	assert.False(t, vj.IsCanceled())
}

func TestBuildRejectsInvalidTimetables(t *testing.T) {
	testCases := []struct {
		name  string
		build func(b *TimetableBuilder)
	}{
		{
			name: "duplicate stop id",
			build: func(b *TimetableBuilder) {
				b.AddStopPoint("x", "", 0, 0, 0)
				b.AddStopPoint("x", "", 0, 0, 0)
			},
		},
		{
			name: "trip going back in time",
			build: func(b *TimetableBuilder) {
				a := b.AddStopPoint("a", "", 0, 0, 0)
				c := b.AddStopPoint("b", "", 0, 0, 0)
				jp := b.AddJourneyPattern([]Index{a, c}, nil, pkg.MODE_BUS, "", "", "")
				b.AddVehicleJourney(jp, "v", hm(8, 0), []StopTime{NewStopTime(10, 10), NewStopTime(5, 5)}, 1, 0)
			},
		},
		{
			name: "duplicate trip id",
			build: func(b *TimetableBuilder) {
				a := b.AddStopPoint("a", "", 0, 0, 0)
				c := b.AddStopPoint("b", "", 0, 0, 0)
				jp := b.AddJourneyPattern([]Index{a, c}, nil, pkg.MODE_BUS, "", "", "")
				sts := []StopTime{NewStopTime(0, 0), NewStopTime(5, 5)}
				b.AddVehicleJourney(jp, "v", hm(8, 0), sts, 1, 0)
				b.AddVehicleJourney(jp, "v", hm(9, 0), sts, 1, 0)
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewTimetableBuilder(time.Unix(0, 0).UTC(), 1)
			tc.build(b)
			_, err := b.Build()
			assert.Error(t, err)
		})
	}
}

func TestGenerateTransfers(t *testing.T) {
	b := NewTimetableBuilder(time.Unix(0, 0).UTC(), 1)
	a := b.AddStopPoint("a", "", 52.3702, 4.8952, 0)
	c := b.AddStopPoint("b", "", 52.3711, 4.8952, 0) // ~100m north
	b.AddStopPoint("far", "", 52.40, 4.90, 0)
	n := b.GenerateTransfers(500, 1.5)
	assert.Equal(t, 2, n)

	tt, err := b.Build()
	require.NoError(t, err)
	trs := tt.TransfersForStopPoint(a)
	require.Len(t, trs, 1)
	assert.Equal(t, c, trs[0].GetTarget())
	assert.InDelta(t, 100*pkg.WALK_COMP, trs[0].GetDistance(), 2)
	assert.Empty(t, tt.TransfersForStopPoint(2))
}

func TestTimetableIO(t *testing.T) {
	tt := buildSmallTimetable(t)

	var buf bytes.Buffer
	require.NoError(t, tt.Encode(&buf))
	decoded, err := DecodeTimetable(&buf)
	require.NoError(t, err)
	assert.Equal(t, tt, decoded)

	path := filepath.Join(t.TempDir(), "timetable.txt.bz2")
	require.NoError(t, tt.WriteTimetable(path))
	fromFile, err := ReadTimetable(path)
	require.NoError(t, err)
	assert.Equal(t, tt, fromFile)
}
