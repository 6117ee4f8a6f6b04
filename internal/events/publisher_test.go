package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"users-service/internal/models"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestPublishUserCreated(t *testing.T) {
	writer := &recordingWriter{}
	publisher := NewKafkaPublisher(writer, "users")
	publisher.now = func() time.Time { return time.Unix(1700000000, 0) }

	user := models.User{
		ID:             42,
		Username:       "ivan",
		FirstName:      "Ivan",
		LastName:       "Petrov",
		Email:          "ivan@example.com",
		EmailConfirmed: true,
		Avatar:         &models.SavedFile{ID: 3, OriginalURL: "https://f/a.png", OriginalFilename: "a.png"},
		Permissions: []models.Permission{{
			Code: "chat.write", Name: "Write", Category: &models.PermissionCategory{Code: "chat", Name: "Chat"},
		}},
	}
	if err := publisher.SendUserCreated(context.Background(), user); err != nil {
		t.Fatalf("SendUserCreated: %v", err)
	}

	if len(writer.msgs) != 1 {
		t.Fatalf("wrote %d messages", len(writer.msgs))
	}
	msg := writer.msgs[0]
	if msg.Topic != "users" || string(msg.Key) != "42" {
		t.Errorf("topic %q key %q", msg.Topic, msg.Key)
	}
	if header(msg, "event_type") != EventUserCreated || header(msg, "event_id") == "" {
		t.Errorf("headers = %+v", msg.Headers)
	}

	var event SystemEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if event.EventType != EventUserCreated || event.OccurredAt != 1700000000 || event.ID != header(msg, "event_id") {
		t.Errorf("envelope = %+v", event)
	}

	var payload EventUser
	if err := json.Unmarshal([]byte(event.Data), &payload); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if payload.ID != 42 || payload.Email == nil || *payload.Email != "ivan@example.com" {
		t.Errorf("payload = %+v", payload)
	}
	if payload.Phone != nil || payload.LastSeen != nil {
		t.Errorf("empty fields not null: phone=%v last_seen=%v", payload.Phone, payload.LastSeen)
	}
	if payload.Avatar == nil || payload.Avatar.ConvertedURL != nil {
		t.Errorf("avatar = %+v", payload.Avatar)
	}
	if len(payload.Permissions) != 1 || payload.Permissions[0].Category.Code != "chat" {
		t.Errorf("permissions = %+v", payload.Permissions)
	}
}

func TestPublishUserChangedUsesSameKey(t *testing.T) {
	writer := &recordingWriter{}
	publisher := NewKafkaPublisher(writer, "users")

	user := models.User{ID: 7, Username: "anna"}
	_ = publisher.SendUserCreated(context.Background(), user)
	_ = publisher.SendUserChanged(context.Background(), user)

	if len(writer.msgs) != 2 {
		t.Fatalf("wrote %d messages", len(writer.msgs))
	}
	if string(writer.msgs[0].Key) != string(writer.msgs[1].Key) {
		t.Error("events of one user have different keys")
	}
	if header(writer.msgs[1], "event_type") != EventUserChanged {
		t.Errorf("second event type = %q", header(writer.msgs[1], "event_type"))
	}
	if header(writer.msgs[0], "event_id") == header(writer.msgs[1], "event_id") {
		t.Error("event ids repeat")
	}
}

func TestPublishWriteError(t *testing.T) {
	boom := errors.New("broker down")
	publisher := NewKafkaPublisher(&recordingWriter{err: boom}, "users")

	if err := publisher.SendUserChanged(context.Background(), models.User{ID: 1}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped broker error", err)
	}
}
