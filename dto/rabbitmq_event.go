package dto

import "github.com/pawpal/petmail/internal/enum"

// Event is the envelope published to the notifications exchange.
type Event struct {
	Event    EventDetails  `json:"event"`
	Metadata EventMetadata `json:"metadata"`
}

type EventDetails struct {
	Id        string                `json:"id"`
	UserId    string                `json:"userId"`
	PetId     string                `json:"petId"`
	EventType enum.NotificationKind `json:"eventType"`
	Data      interface{}           `json:"data"`
}

type EventMetadata struct {
	UberTraceId string `json:"uber-trace-id"`
	AppSource   string `json:"appSource"`
	Timestamp   string `json:"timestamp"`
}
