package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/strata/internal/activity"
	"github.com/matthewbaird/strata/internal/types"
)

type capturePublisher struct {
	events []DomainEvent
}

func (p *capturePublisher) Publish(_ context.Context, evt DomainEvent) {
	p.events = append(p.events, evt)
}

type failingStore struct{ activity.Store }

func (failingStore) WriteEntries(context.Context, []types.ActivityEntry) error {
	return errors.New("disk full")
}

var at = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func TestNewTicketIssued_Weight(t *testing.T) {
	cases := []struct {
		urgency   string
		escalated bool
		weight    string
	}{
		{"emergency", true, "critical"},
		{"emergency", false, "critical"},
		{"urgent", false, "major"},
		{"low", false, "minor"},
	}
	for _, tc := range cases {
		evt := NewTicketIssued(TicketIssuedPayload{
			TicketNumber: "MNT-1", RequestType: "plumbing", Urgency: tc.urgency,
			RequestedUrgency: "normal", AutoEscalated: tc.escalated, UnitNumber: "15B", SubmittedAt: at,
		})
		assert.Equal(t, tc.weight, evt.Weight, tc.urgency)
		assert.Equal(t, at, evt.OccurredAt)
	}

	evt := NewTicketIssued(TicketIssuedPayload{Urgency: "emergency", RequestedUrgency: "low", AutoEscalated: true})
	assert.Contains(t, evt.Summary, "escalated from low")
}

func TestRecord_FansOutAndPublishes(t *testing.T) {
	ctx := context.Background()
	store := activity.NewMemoryStore()
	pub := &capturePublisher{}
	rec := NewActivityRecorder(store, pub)

	evt := NewRSVPConfirmed(RSVPPayload{
		ConfirmationNumber: "EVT-AGM-1", EventID: "AGM", EventName: "AGM", ResidentID: "12A",
		Attendees: 2, MaxCapacity: 50, CurrentRSVPs: 25, SubmittedAt: at,
	})
	require.NoError(t, rec.Record(ctx, evt))

	byEvent, _, total, err := store.QueryByEntity(ctx, "event", "AGM", activity.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "subject", byEvent[0].EntityRole)
	assert.Equal(t, TypeRSVPConfirmed, byEvent[0].EventType)

	byResident, _, _, err := store.QueryByEntity(ctx, "resident", "12A", activity.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, byResident, 1)
	assert.Equal(t, evt.ID, byResident[0].EventID)

	require.Len(t, pub.events, 1)
	assert.Equal(t, evt.ID, pub.events[0].ID)
}

func TestRecord_StoreFailureSkipsPublish(t *testing.T) {
	pub := &capturePublisher{}
	rec := NewActivityRecorder(failingStore{}, pub)

	err := rec.Record(context.Background(), NewDocumentStored(DocumentStoredPayload{SubmissionID: "PET-1", UnitNumber: "4D"}))
	assert.Error(t, err)
	assert.Empty(t, pub.events)
}

func TestEntries_SkipsEmptyIDs(t *testing.T) {
	evt := NewLevyCalculated(LevyCalculatedPayload{CalculationID: "LEVY-1", UnitType: ""})
	entries := Entries(evt)
	require.Len(t, entries, 1)
	assert.Equal(t, "calculation", entries[0].IndexedEntityType)
}

func TestRecord_RejectsUnindexableEvents(t *testing.T) {
	store := activity.NewMemoryStore()
	pub := &capturePublisher{}
	rec := NewActivityRecorder(store, pub)
	ctx := context.Background()

	anonymous := NewDocumentStored(DocumentStoredPayload{})
	assert.ErrorContains(t, rec.Record(ctx, anonymous), "names no entity")

	stray := NewLevyCalculated(LevyCalculatedPayload{CalculationID: "LEV-1"})
	stray.AffectedEntities = append(stray.AffectedEntities, types.SourceRef{EntityType: "lease", EntityID: "L-9", Role: "related"})
	assert.Error(t, rec.Record(ctx, stray))

	_, _, total, err := store.QueryByEntity(ctx, types.EntityCalculation, "LEV-1", activity.QueryOptions{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, pub.events)
}

func TestRecord_NilPublisher(t *testing.T) {
	rec := NewActivityRecorder(activity.NewMemoryStore(), nil)
	evt := NewTicketIssued(TicketIssuedPayload{TicketNumber: "MNT-1", UnitNumber: "15B", Urgency: "low", SubmittedAt: at})
	assert.NoError(t, rec.Record(context.Background(), evt))
}
