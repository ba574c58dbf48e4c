package service

import (
	"context"
	"errors"
	"testing"

	"chat-presence/internal/domain"
	"chat-presence/internal/realtime"
	"chat-presence/internal/realtime/realtimetest"
)

func newConversationFixture() (*ConversationService, *fakeChatStore, *realtime.Registry) {
	store := newFakeChatStore(activeConversation(convAB, alice, bob))
	users := newFakeUserRepo(
		domain.User{ID: alice, DisplayName: "Alice"},
		domain.User{ID: bob, DisplayName: "Bob"},
		domain.User{ID: carol, DisplayName: "Carol"},
	)
	registry := realtime.NewRegistry()
	return NewConversationService(store, store, users, registry), store, registry
}

func TestConversationProvision(t *testing.T) {
	svc, _, _ := newConversationFixture()
	ctx := context.Background()

	existing, created, err := svc.Provision(ctx, bob, alice)
	if err != nil || created || existing.ID != convAB {
		t.Fatalf("expected existing conversation, got %+v created=%v err=%v", existing, created, err)
	}

	fresh, created, err := svc.Provision(ctx, alice, carol)
	if err != nil || !created || !fresh.HasParticipant(carol) {
		t.Fatalf("expected new conversation, got %+v created=%v err=%v", fresh, created, err)
	}

	if _, _, err := svc.Provision(ctx, alice, alice); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for self conversation, got %v", err)
	}
	if _, _, err := svc.Provision(ctx, alice, 77); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown user, got %v", err)
	}
}

func TestConversationDeactivate(t *testing.T) {
	svc, store, _ := newConversationFixture()
	ctx := context.Background()

	if err := svc.Deactivate(ctx, convAB, carol); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
	if err := svc.Deactivate(ctx, convAB, alice); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if store.conversation(convAB).IsActive {
		t.Fatalf("expected conversation disabled")
	}
	if err := svc.Deactivate(ctx, 404, alice); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConversationList_UsesCallerSide(t *testing.T) {
	svc, store, registry := newConversationFixture()
	ctx := context.Background()
	_, _ = store.CreateInConversation(ctx, domain.Message{ConversationID: convAB, SenderID: alice, Body: "hola"}, bob, "hola")
	registry.Admit(realtimetest.NewSession(alice, "Alice"))

	views, err := svc.List(ctx, bob)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected one conversation, got %d", len(views))
	}
	v := views[0]
	if v.OtherParticipantID != alice || !v.OtherIsOnline || v.Unread != 1 || v.LastMessage != "hola" {
		t.Fatalf("unexpected view: %+v", v)
	}
}

func TestConversationHistory(t *testing.T) {
	svc, store, _ := newConversationFixture()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _ = store.CreateInConversation(ctx, domain.Message{ConversationID: convAB, SenderID: alice, Body: "m"}, bob, "m")
	}

	msgs, err := svc.History(ctx, convAB, bob, 0, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != 5 || msgs[1].ID != 4 {
		t.Fatalf("expected newest first page, got %+v", msgs)
	}

	older, err := svc.History(ctx, convAB, bob, msgs[1].ID, 1000)
	if err != nil {
		t.Fatalf("history page: %v", err)
	}
	if len(older) != 3 || older[0].ID != 3 {
		t.Fatalf("expected remaining messages, got %+v", older)
	}

	if _, err := svc.History(ctx, convAB, carol, 0, 10); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
	if _, err := svc.History(ctx, 404, bob, 0, 10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
