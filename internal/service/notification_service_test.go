package service

import (
	"context"
	"errors"
	"testing"

	"chat-presence/internal/domain"
)

func TestNotificationService_MarkReadOwnOnly(t *testing.T) {
	repo := &fakeNotificationRepo{}
	ctx := context.Background()
	n, _ := repo.Create(ctx, domain.Notification{RecipientID: bob, Heading: "h"})
	svc := NewNotificationService(repo)

	if err := svc.MarkRead(ctx, n.ID, alice); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for another user's notification, got %v", err)
	}
	if err := svc.MarkRead(ctx, n.ID, bob); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	list, err := svc.List(ctx, bob, 0)
	if err != nil || len(list) != 1 || !list[0].IsRead {
		t.Fatalf("expected read notification, got %+v err=%v", list, err)
	}
	if err := svc.MarkRead(ctx, 0, bob); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestNotificationService_ErrorsAreTransient(t *testing.T) {
	repo := &fakeNotificationRepo{markErr: errStoreDown}
	svc := NewNotificationService(repo)

	if _, err := svc.MarkAllRead(context.Background(), bob); !errors.Is(err, ErrTransientStore) {
		t.Fatalf("expected transient store error, got %v", err)
	}
	list, err := svc.List(context.Background(), alice, 10)
	if err != nil || list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %v err=%v", list, err)
	}
}
