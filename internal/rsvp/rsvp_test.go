package rsvp

import (
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/strata/internal/reference"
	"github.com/matthewbaird/strata/internal/validate"
)

func ptr[T any](v T) *T { return &v }

func seed(id string, capacity, current int) reference.EventSeed {
	return reference.EventSeed{
		ID:           id,
		Name:         "Test " + id,
		DateTime:     "2025-06-21T16:00:00Z",
		Location:     "Pool Deck",
		MaxCapacity:  capacity,
		CurrentRSVPs: current,
		Type:         "social",
		RequiresRSVP: true,
	}
}

func newAllocator(t *testing.T, seeds ...reference.EventSeed) *Allocator {
	t.Helper()
	reg, err := NewRegistry(seeds)
	require.NoError(t, err)
	return NewAllocator(reg, func() time.Time { return time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC) })
}

func request(eventID string, attendees int) Request {
	return Request{
		EventID:       eventID,
		ResidentID:    "12A",
		ResidentName:  "Sam Resident",
		Email:         "sam@example.com",
		AttendeeCount: &attendees,
	}
}

func TestSubmit_WaitlistThenConfirm(t *testing.T) {
	a := newAllocator(t, seed("BBQ", 80, 78))

	first, err := a.Submit(request("BBQ", 3))
	require.NoError(t, err)
	assert.Equal(t, StatusWaitlisted, first.Status)
	require.NotNil(t, first.QueuePosition)
	assert.Equal(t, 1, *first.QueuePosition)
	assert.Equal(t, "You are #1 on the waitlist. We'll notify you if spots become available.", first.WaitlistMessage)
	assert.Equal(t, 78, first.CapacityInfo.CurrentRSVPs)
	assert.Equal(t, 1, first.CapacityInfo.Waitlisted)

	ev, err := a.Registry().Get("BBQ")
	require.NoError(t, err)
	assert.Equal(t, 78, ev.CurrentRSVPs)
	assert.Equal(t, 1, ev.Waitlisted)

	second, err := a.Submit(request("BBQ", 2))
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, second.Status)
	assert.Nil(t, second.QueuePosition)
	assert.Empty(t, second.WaitlistMessage)
	assert.Equal(t, 80, second.CapacityInfo.CurrentRSVPs)
	assert.Equal(t, 0, second.CapacityInfo.RemainingSpots)
	assert.Equal(t, 2, second.CapacityInfo.YourSpots)
	assert.Equal(t, 1, second.CapacityInfo.Waitlisted)
}

func TestSubmit_DefaultsAndEcho(t *testing.T) {
	a := newAllocator(t, seed("AGM", 50, 23))
	req := request("AGM", 1)
	req.AttendeeCount = nil

	c, err := a.Submit(req)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, c.Status)
	assert.Equal(t, 1, c.RSVPDetails.AttendeeCount)
	assert.Equal(t, "None specified", c.RSVPDetails.DietaryRequirements)
	assert.Equal(t, 24, c.CapacityInfo.CurrentRSVPs)
	assert.Equal(t, 26, c.CapacityInfo.RemainingSpots)
	assert.Contains(t, c.ConfirmationNumber, "EVT-AGM-")
	assert.Equal(t, "Test AGM", c.EventDetails.EventName)
}

func TestSubmit_SequenceProperty(t *testing.T) {
	const capacity = 40
	rng := rand.New(rand.NewPCG(7, 11))
	a := newAllocator(t, seed("E", capacity, 5))

	current := 5
	for i := 0; i < 500; i++ {
		n := 1 + rng.IntN(8)
		remaining := capacity - current

		c, err := a.Submit(request("E", n))
		require.NoError(t, err)

		ev, _ := a.Registry().Get("E")
		if n <= remaining {
			assert.Equal(t, StatusConfirmed, c.Status)
			current += n
		} else {
			assert.Equal(t, StatusWaitlisted, c.Status)
			require.NotNil(t, c.QueuePosition)
			assert.Equal(t, n-remaining, *c.QueuePosition)
		}
		assert.Equal(t, current, ev.CurrentRSVPs)
		assert.LessOrEqual(t, ev.CurrentRSVPs, capacity)
	}
}

func TestReserve_ConcurrentNeverOversells(t *testing.T) {
	const capacity = 100
	a := newAllocator(t, seed("GALA", capacity, 0), seed("OTHER", 10, 0))

	var confirmedSpots atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 400; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n := 1 + i%3
			c, err := a.Submit(request("GALA", n))
			if !assert.NoError(t, err) {
				return
			}
			if c.Status == StatusConfirmed {
				confirmedSpots.Add(int64(n))
			}
			_, _ = a.Submit(request("OTHER", 1))
		}(i)
	}
	wg.Wait()

	ev, err := a.Registry().Get("GALA")
	require.NoError(t, err)
	assert.LessOrEqual(t, ev.CurrentRSVPs, capacity)
	assert.Equal(t, int64(ev.CurrentRSVPs), confirmedSpots.Load())

	other, _ := a.Registry().Get("OTHER")
	assert.Equal(t, 10, other.CurrentRSVPs)
}

func TestSubmit_ValidationBeforeState(t *testing.T) {
	a := newAllocator(t, seed("AGM", 50, 23))
	cases := []struct {
		name  string
		req   Request
		field string
	}{
		{"missing email", Request{EventID: "AGM", ResidentID: "1", ResidentName: "A"}, "email"},
		{"missing all", Request{}, "event_id, resident_id, resident_name, email"},
		{"bad email", Request{EventID: "AGM", ResidentID: "1", ResidentName: "A", Email: "nope"}, "email"},
		{"zero attendees", Request{EventID: "AGM", ResidentID: "1", ResidentName: "A", Email: "a@b.co", AttendeeCount: ptr(0)}, "attendee_count"},
		{"negative attendees", Request{EventID: "AGM", ResidentID: "1", ResidentName: "A", Email: "a@b.co", AttendeeCount: ptr(-2)}, "attendee_count"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := a.Submit(tc.req)
			assert.Nil(t, c)
			var verr *validate.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
	ev, _ := a.Registry().Get("AGM")
	assert.Equal(t, 23, ev.CurrentRSVPs)
	assert.Equal(t, 0, ev.Waitlisted)
}

func TestSubmit_UnknownEvent(t *testing.T) {
	a := newAllocator(t, seed("AGM", 50, 23))
	_, err := a.Submit(request("NOPE", 1))
	var nf *validate.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, []string{"AGM"}, nf.Available)

	_, err = a.Lookup("NOPE")
	assert.True(t, errors.As(err, &nf))
}

func TestLookupAndEvents(t *testing.T) {
	a := newAllocator(t, seed("A", 10, 10), seed("B", 5, 1))
	v, err := a.Lookup("A")
	require.NoError(t, err)
	assert.Equal(t, 0, v.AvailableSpots)
	assert.True(t, v.RSVPRequired)

	all := a.Events()
	require.Len(t, all, 2)
	assert.Equal(t, "A", all[0].Event.ID)
	assert.Equal(t, 4, all[1].AvailableSpots)

	doc := a.Describe("/v1/events/rsvp")
	assert.Equal(t, "A", doc.Example.EventID)
	require.NotNil(t, doc.Example.AttendeeCount)
	assert.Equal(t, 2, *doc.Example.AttendeeCount)
	assert.Len(t, doc.AvailableEvents, 2)
}

func TestWaitlistOrder(t *testing.T) {
	a := newAllocator(t, seed("FULL", 4, 4))
	for _, n := range []int{1, 3, 2} {
		_, err := a.Submit(request("FULL", n))
		require.NoError(t, err)
	}
	wl, err := a.Registry().Waitlist("FULL")
	require.NoError(t, err)
	require.Len(t, wl, 3)
	assert.Equal(t, []int{1, 3, 2}, []int{wl[0].Position, wl[1].Position, wl[2].Position})
}

func TestNewRegistry_RejectsBadSeeds(t *testing.T) {
	_, err := NewRegistry([]reference.EventSeed{seed("X", 5, 6)})
	assert.Error(t, err)

	_, err = NewRegistry([]reference.EventSeed{seed("X", 5, 1), seed("X", 5, 1)})
	assert.Error(t, err)

	bad := seed("Y", 5, 1)
	bad.DateTime = "next tuesday"
	_, err = NewRegistry([]reference.EventSeed{bad})
	assert.Error(t, err)

	reg, err := NewRegistry(reference.MustLoad().Events())
	require.NoError(t, err)
	assert.Equal(t, []string{"AGM-2025-03", "BBQ-2025-06", "COMM-2025-07"}, reg.IDs())
}
