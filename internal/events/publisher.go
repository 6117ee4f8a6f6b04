// Package events publishes user lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"users-service/internal/models"
)

const (
	EventUserCreated = "user_created"
	EventUserChanged = "user_changed"
)

// SystemEvent is the envelope consumed by other services. Data holds the
// JSON encoded EventUser.
type SystemEvent struct {
	ID            string  `json:"id"`
	IncludedUsers []int64 `json:"included_users"`
	EventType     string  `json:"event_type"`
	Data          string  `json:"data"`
	OccurredAt    int64   `json:"occurred_at"`
}

type EventSavedFile struct {
	OriginalURL       string  `json:"original_url"`
	OriginalFilename  string  `json:"original_filename"`
	ConvertedURL      *string `json:"converted_url"`
	ConvertedFilename *string `json:"converted_filename"`
}

type EventPermissionCategory struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type EventPermission struct {
	Code     string                   `json:"code"`
	Name     string                   `json:"name"`
	Category *EventPermissionCategory `json:"category"`
}

type EventUser struct {
	ID             int64             `json:"id"`
	Username       string            `json:"username"`
	FirstName      string            `json:"first_name"`
	LastName       string            `json:"last_name"`
	MiddleName     *string           `json:"middle_name"`
	EmailConfirmed bool              `json:"email_confirmed"`
	PhoneConfirmed bool              `json:"phone_confirmed"`
	LastSeen       *time.Time        `json:"last_seen"`
	Avatar         *EventSavedFile   `json:"avatar"`
	Phone          *string           `json:"phone"`
	Email          *string           `json:"email"`
	Status         *string           `json:"status"`
	Permissions    []EventPermission `json:"permissions"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// NewEventUser flattens user into its event form.
func NewEventUser(user models.User) EventUser {
	event := EventUser{
		ID:             user.ID,
		Username:       user.Username,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		MiddleName:     optional(user.MiddleName),
		EmailConfirmed: user.EmailConfirmed,
		PhoneConfirmed: user.PhoneConfirmed,
		Phone:          optional(user.Phone),
		Email:          optional(user.Email),
		Status:         optional(user.Status),
		Permissions:    make([]EventPermission, 0, len(user.Permissions)),
	}
	if !user.LastSeen.IsZero() {
		lastSeen := user.LastSeen.UTC()
		event.LastSeen = &lastSeen
	}
	if user.Avatar != nil {
		event.Avatar = &EventSavedFile{
			OriginalURL:       user.Avatar.OriginalURL,
			OriginalFilename:  user.Avatar.OriginalFilename,
			ConvertedURL:      optional(user.Avatar.ConvertedURL),
			ConvertedFilename: optional(user.Avatar.ConvertedFilename),
		}
	}
	for _, p := range user.Permissions {
		perm := EventPermission{Code: p.Code, Name: p.Name}
		if p.Category != nil {
			perm.Category = &EventPermissionCategory{Code: p.Category.Code, Name: p.Category.Name}
		}
		event.Permissions = append(event.Permissions, perm)
	}
	return event
}

// MessageWriter is the part of a Kafka writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher writes one message per user event to the users topic, keyed
// by user id.
type KafkaPublisher struct {
	writer MessageWriter
	topic  string
	now    func() time.Time
}

func NewKafkaPublisher(writer MessageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic, now: time.Now}
}

func (p *KafkaPublisher) SendUserCreated(ctx context.Context, user models.User) error {
	return p.publish(ctx, EventUserCreated, user)
}

func (p *KafkaPublisher) SendUserChanged(ctx context.Context, user models.User) error {
	return p.publish(ctx, EventUserChanged, user)
}

func (p *KafkaPublisher) publish(ctx context.Context, eventType string, user models.User) error {
	data, err := json.Marshal(NewEventUser(user))
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	event := SystemEvent{
		ID:            uuid.NewString(),
		IncludedUsers: []int64{},
		EventType:     eventType,
		Data:          string(data),
		OccurredAt:    p.now().UTC().Unix(),
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(strconv.FormatInt(user.ID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "event_id", Value: []byte(event.ID)},
			{Key: "content_type", Value: []byte("application/json")},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}
	return nil
}

// NopPublisher drops every event. It stands in when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) SendUserCreated(context.Context, models.User) error { return nil }

func (NopPublisher) SendUserChanged(context.Context, models.User) error { return nil }
