package shared

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type testEvent struct {
	BaseDomainEvent
}

func TestBaseAggregateRoot_VersionAndEvents(t *testing.T) {
	a := NewBaseAggregateRoot()
	assert.Equal(t, 1, a.GetVersion())
	assert.NotEqual(t, uuid.Nil, a.ID)
	created := a.UpdatedAt

	a.IncrementVersion()
	assert.Equal(t, 2, a.GetVersion())
	assert.False(t, a.UpdatedAt.Before(created))

	a.AddDomainEvent(&testEvent{NewBaseDomainEvent("StockChanged", "StockLevel", a.ID)})
	a.AddDomainEvent(&testEvent{NewBaseDomainEvent("StockChanged", "StockLevel", a.ID)})
	assert.Len(t, a.GetDomainEvents(), 2)

	events := a.PullDomainEvents()
	assert.Len(t, events, 2)
	assert.Empty(t, a.GetDomainEvents())
	assert.Equal(t, a.ID, events[0].AggregateID())
	assert.Equal(t, "StockLevel", events[0].AggregateType())
	assert.NotEqual(t, events[0].EventID(), events[1].EventID())
}

func TestNewBaseDomainEvent_IsUTC(t *testing.T) {
	e := NewBaseDomainEvent("EntryPosted", "JournalEntry", uuid.New())
	assert.Equal(t, "UTC", e.OccurredAt().Location().String())
	assert.Equal(t, "EntryPosted", e.EventType())
}
