package shared

import "fmt"

// NATS Subject patterns
const (
	// Base subject prefix
	SubjectPrefix = "directory"

	// Event subjects
	SubjectEvents      = "directory.events"
	SubjectEventsAll   = "directory.events.>"
	SubjectEntityEvent = "directory.events.%s.%s" // entity kind, event type
)

// Stream names
const (
	StreamEvents = "DIRECTORY_EVENTS"
)

// Consumer names
const (
	ConsumerAuditWriter = "audit-writer"
)

// EntityEventSubject builds the subject for a mutation event, e.g.
// directory.events.organization.created.
func EntityEventSubject(entity, eventType string) string {
	return fmt.Sprintf(SubjectEntityEvent, entity, eventType)
}
