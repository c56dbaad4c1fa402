package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/bookstore/pkg/messaging"
)

// BookEvent is the payload shared by all catalog book events.
type BookEvent struct {
	ISBN       string    `json:"isbn"`
	Kind       string    `json:"kind"`
	Stock      int32     `json:"stock"`
	OccurredAt time.Time `json:"occurred_at"`
}

type BookAddedEvent struct{ BookEvent }

func (e BookAddedEvent) Subject() string { return messaging.BooksAddedSubject }

func (e BookAddedEvent) Payload() ([]byte, error) { return json.Marshal(e.BookEvent) }

type BookUpdatedEvent struct{ BookEvent }

func (e BookUpdatedEvent) Subject() string { return messaging.BooksUpdatedSubject }

func (e BookUpdatedEvent) Payload() ([]byte, error) { return json.Marshal(e.BookEvent) }

type BookRemovedEvent struct{ BookEvent }

func (e BookRemovedEvent) Subject() string { return messaging.BooksRemovedSubject }

func (e BookRemovedEvent) Payload() ([]byte, error) { return json.Marshal(e.BookEvent) }
