package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chatbuddy/chatbot-backend/internal/model"
	"github.com/chatbuddy/chatbot-backend/internal/store"
)

// Run exercises a minimal compliance suite against a store.Store implementation.
// Implementations should provide a clean, isolated store and return it from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	// Unique test identifiers
	email := "u-" + uuid.New().String() + "@example.test"

	// Users
	if _, err := s.Users().GetByEmail(ctx, email); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetByEmail on unseen email: want ErrNotFound, got %v", err)
	}
	u, err := s.Users().Create(ctx, &model.User{Email: email, Name: "Alice"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.UserID == "" || u.CreationTime.IsZero() {
		t.Fatalf("CreateUser: incomplete record %+v", u)
	}
	got, err := s.Users().GetByEmail(ctx, email)
	if err != nil || got.UserID != u.UserID || got.Name != "Alice" {
		t.Fatalf("GetByEmail: got=%+v err=%v", got, err)
	}

	// Email uniqueness holds
	if _, err := s.Users().Create(ctx, &model.User{Email: email, Name: "Bob"}); err == nil {
		t.Fatalf("CreateUser with duplicate email should fail")
	}

	// Messages: append-only, replayed in write order
	texts := []string{"hi", "hello there", "how are you"}
	senders := []model.Sender{model.SenderUser, model.SenderBot, model.SenderUser}
	for i, txt := range texts {
		m, err := s.Messages().Append(ctx, &model.ChatMessage{UserID: u.UserID, Sender: senders[i], Message: txt})
		if err != nil {
			t.Fatalf("Append %q: %v", txt, err)
		}
		if m.MessageID == "" || m.Timestamp.IsZero() {
			t.Fatalf("Append %q: incomplete record %+v", txt, m)
		}
		time.Sleep(2 * time.Millisecond) // keep timestamps monotonic across drivers
	}
	msgs, err := s.Messages().ListByUser(ctx, u.UserID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(msgs) != len(texts) {
		t.Fatalf("ListByUser: n=%d want %d", len(msgs), len(texts))
	}
	for i, m := range msgs {
		if m.Message != texts[i] || m.Sender != senders[i] {
			t.Fatalf("ListByUser order: idx=%d got=%+v", i, m)
		}
	}
	if other, err := s.Messages().ListByUser(ctx, uuid.New().String()); err != nil || len(other) != 0 {
		t.Fatalf("ListByUser foreign user: n=%d err=%v", len(other), err)
	}

	// Canned responses
	if _, err := s.Responses().Lookup(ctx, "does not exist"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Lookup miss: want ErrNotFound, got %v", err)
	}
	if err := s.Responses().Put(ctx, &model.CannedResponse{Query: "hours", Response: "We are open 9-5."}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if r, err := s.Responses().Lookup(ctx, "hours"); err != nil || r != "We are open 9-5." {
		t.Fatalf("Lookup: got=%q err=%v", r, err)
	}
	// Put is an upsert
	if err := s.Responses().Put(ctx, &model.CannedResponse{Query: "hours", Response: "We are open 24/7."}); err != nil {
		t.Fatalf("Put upsert: %v", err)
	}
	if r, err := s.Responses().Lookup(ctx, "hours"); err != nil || r != "We are open 24/7." {
		t.Fatalf("Lookup after upsert: got=%q err=%v", r, err)
	}
}
