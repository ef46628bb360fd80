package history_test

import (
	"time"

	"github.com/coursehistory/coursehistory-go/changelog"
	"github.com/coursehistory/coursehistory-go/history"
)

var baseTime = time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC)

func at(offset time.Duration) time.Time {
	return baseTime.Add(offset)
}

func ptr(s string) *string {
	return &s
}

func record(
	id int64,
	kind changelog.EntityKind,
	entityID string,
	action changelog.Action,
	actorID *string,
	occurredAt time.Time,
	changes string,
) changelog.ChangeRecord {

	r := changelog.ChangeRecord{
		ID:         id,
		EntityKind: kind,
		Action:     action,
		ActorID:    actorID,
		OccurredAt: occurredAt,
	}

	if entityID != "" {
		r.EntityID = ptr(entityID)
	}

	if changes != "" {
		r.ChangesJSON = []byte(changes)
	}

	return r
}

func fieldsOf(entries []history.DiffEntry) []string {
	fields := make([]string, 0, len(entries))
	for _, entry := range entries {
		fields = append(fields, entry.Field)
	}

	return fields
}
