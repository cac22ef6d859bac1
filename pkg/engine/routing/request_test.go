package routing

import (
	"testing"
	"time"

	"github.com/lintang-b-s/transitx/pkg"
	da "github.com/lintang-b-s/transitx/pkg/datastructure"
	"github.com/lintang-b-s/transitx/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestNewRequestDefaults(t *testing.T) {
	req := NewRequest()

	assert.Equal(t, da.STOP_NONE, req.From)
	assert.Equal(t, da.STOP_NONE, req.To)
	assert.Equal(t, da.STOP_NONE, req.Via)
	assert.Equal(t, da.NONE, req.OnboardJourneyPattern)
	assert.Equal(t, da.UNREACHED, req.Time)
	assert.Equal(t, da.UNREACHED, req.TimeCutoff)
	assert.Equal(t, uint8(pkg.DEFAULT_MAX_TRANSFERS), req.MaxTransfers)
	assert.Equal(t, pkg.MODE_ALL, req.Mode)
	assert.Equal(t, pkg.OPTIMISE_ALL, req.Optimise)
	assert.InDelta(t, pkg.DEFAULT_WALK_SPEED, req.WalkSpeed, 1e-9)
	assert.False(t, req.ArriveBy)
	assert.Zero(t, req.NBannedStopPoints)
}

func TestNewRequestFromEpoch(t *testing.T) {
	tt := buildNetwork(t)

	testCases := []struct {
		name    string
		epoch   time.Time
		time    da.Rtime
		dayMask uint32
		rounded bool
		wrapped bool
	}{
		{
			name:    "third day of the calendar",
			epoch:   time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC),
			time:    at(8, 0),
			dayMask: 1 << 2,
		},
		{
			name:    "seconds are rounded down",
			epoch:   time.Date(2026, 3, 2, 8, 0, 2, 0, time.UTC),
			time:    at(8, 0),
			dayMask: 1,
			rounded: true,
		},
		{
			name:    "dates after the calendar keep their weekday",
			epoch:   time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
			time:    at(12, 0),
			dayMask: 1 << (60 % 28),
			wrapped: true,
		},
		{
			name:    "dates before the calendar keep their weekday",
			epoch:   time.Date(2026, 2, 27, 12, 0, 0, 0, time.UTC),
			time:    at(12, 0),
			dayMask: 1 << 25,
			wrapped: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := NewRequestFromEpoch(tt, tc.epoch)
			assert.Equal(t, tc.time, req.Time)
			assert.Equal(t, tc.dayMask, req.DayMask)
			assert.Equal(t, tc.rounded, req.TimeRounded)
			assert.Equal(t, tc.wrapped, req.CalendarWrapped)
		})
	}
}

func TestRequestEpochRoundTrip(t *testing.T) {
	tt := buildNetwork(t)
	epoch := time.Date(2026, 3, 5, 17, 45, 0, 0, time.UTC)
	req := NewRequestFromEpoch(tt, epoch)

	assert.True(t, epoch.Equal(req.Epoch(tt)))
	assert.True(t, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC).Equal(req.Date(tt)))
	assert.True(t, epoch.Add(-24*time.Hour).Equal(RtimeToEpoch(tt, &req, req.Time-da.RTIME_ONE_DAY)))
}

func TestRequestRangeCheck(t *testing.T) {
	tt := buildNetwork(t)

	testCases := []struct {
		name    string
		mutate  func(req *Request)
		wantErr bool
	}{
		{"valid", func(req *Request) {}, false},
		{"walk speed too low", func(req *Request) { req.WalkSpeed = 0.01 }, true},
		{"origin out of range", func(req *Request) { req.From = 10 }, true},
		{"destination out of range", func(req *Request) { req.To = 10 }, true},
		{"via out of range", func(req *Request) { req.Via = 10 }, true},
		{"too many transfers", func(req *Request) { req.MaxTransfers = pkg.MAX_ROUNDS }, true},
		{"time not set", func(req *Request) { req.Time = da.UNREACHED }, true},
		{"entry out of range", func(req *Request) {
			req.FromEntries = []WeightedStop{NewWeightedStop(99, 0)}
		}, true},
		{"onboard trip out of range", func(req *Request) {
			req.OnboardJourneyPattern = jpAB
			req.OnboardVJOffset = 3
		}, true},
		{"onboard arrive-by", func(req *Request) {
			req.OnboardJourneyPattern = jpAB
			req.OnboardVJOffset = 0
			req.ArriveBy = true
		}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := newTestRequest(stopA, stopC, at(8, 0))
			tc.mutate(&req)
			err := req.RangeCheck(tt)
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, util.ErrBadParamInput, util.ErrorCode(err))
		})
	}
}

func TestRequestBans(t *testing.T) {
	req := NewRequest()

	require.NoError(t, req.BanJourneyPattern(2))
	assert.Error(t, req.BanJourneyPattern(3))
	assert.True(t, req.isBannedJourneyPattern(2))
	assert.False(t, req.isBannedJourneyPattern(3))

	require.NoError(t, req.BanStopPoint(1))
	assert.Error(t, req.BanStopPoint(2))
	assert.True(t, req.isBannedStopPoint(1))

	require.NoError(t, req.BanStopPointHard(1))
	assert.True(t, req.isHardBannedStopPoint(1))
	assert.False(t, req.isHardBannedStopPoint(0))

	require.NoError(t, req.BanVehicleJourney(da.VJRef{JourneyPattern: 1, Offset: 4}))
	assert.True(t, req.isBannedVehicleJourney(1, 4))
	assert.False(t, req.isBannedVehicleJourney(1, 3))

	req.clearBans()
	assert.False(t, req.isBannedJourneyPattern(2))
	assert.False(t, req.isBannedStopPoint(1))
}

func TestRequestNext(t *testing.T) {
	testCases := []struct {
		name    string
		time    da.Rtime
		inc     da.Rtime
		want    da.Rtime
		dayMask uint32
	}{
		{"same day", at(8, 0), hm(0, 1), at(8, 1), 1 << 3},
		{"rolls over into the next day", at(23, 59), hm(0, 2), at(0, 1), 1 << 4},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := NewRequest()
			req.Time = tc.time
			req.DayMask = 1 << 3
			req.TimeCutoff = at(23, 0)
			req.MaxTransfers = 1

			req.Next(tc.inc)
			assert.Equal(t, tc.want, req.Time)
			assert.Equal(t, tc.dayMask, req.DayMask)
			assert.Equal(t, da.UNREACHED, req.TimeCutoff)
			assert.Equal(t, uint8(pkg.DEFAULT_MAX_TRANSFERS), req.MaxTransfers)
		})
	}
}

func TestRequestRandomize(t *testing.T) {
	tt := buildNetwork(t)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 50; i++ {
		var req Request
		req.Randomize(tt, rng)
		require.NoError(t, req.RangeCheck(tt))
		assert.NotZero(t, req.DayMask)
		assert.GreaterOrEqual(t, req.Time, at(9, 0))
	}
}

func TestRequestTargetSide(t *testing.T) {
	req := newTestRequest(stopA, stopC, at(8, 0))
	assert.Equal(t, stopA, req.originStop())
	assert.Equal(t, stopC, req.targetStop())

	req.ArriveBy = true
	assert.Equal(t, stopC, req.originStop())
	assert.Equal(t, stopA, req.targetStop())
	req.setTargetStop(stopB)
	assert.Equal(t, stopB, req.From)
}

func TestRequestDump(t *testing.T) {
	tt := buildNetwork(t)
	req := newTestRequest(stopA, stopC, at(8, 0))
	out := req.Dump(tt)
	assert.Contains(t, out, "Alpha")
	assert.Contains(t, out, "Charlie")
}
