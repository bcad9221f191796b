package history

import (
	"context"
	"errors"
	"testing"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/logger"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:", logger.CreateTestLogger())
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndGetThread(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateThread(ctx, &CreateThreadRequest{
		Title:     "my-agent-thread",
		AgentName: "PersistentAgent",
		Variant:   "published",
	})
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}
	if created.ID == "" {
		t.Fatal("CreateThread() assigned no ID")
	}

	got, err := store.GetThread(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetThread() error = %v", err)
	}
	if got.Title != "my-agent-thread" {
		t.Errorf("Title = %q, want %q", got.Title, "my-agent-thread")
	}
	if got.AgentName != "PersistentAgent" {
		t.Errorf("AgentName = %q, want %q", got.AgentName, "PersistentAgent")
	}
	if got.Variant != "published" {
		t.Errorf("Variant = %q, want %q", got.Variant, "published")
	}
	if got.MessageCount != 0 {
		t.Errorf("MessageCount = %d, want 0", got.MessageCount)
	}
}

func TestCreateThreadKeepsCallerID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateThread(ctx, &CreateThreadRequest{ID: "thread-42", Title: "t"})
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}
	if created.ID != "thread-42" {
		t.Errorf("ID = %q, want %q", created.ID, "thread-42")
	}
}

func TestGetThreadNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetThread(context.Background(), "missing")
	if !errors.Is(err, ErrThreadNotFound) {
		t.Errorf("GetThread() error = %v, want ErrThreadNotFound", err)
	}
}

func TestFindThreadByTitle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateThread(ctx, &CreateThreadRequest{Title: "alpha"}); err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}
	want, err := store.CreateThread(ctx, &CreateThreadRequest{Title: "beta"})
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}

	got, err := store.FindThreadByTitle(ctx, "beta")
	if err != nil {
		t.Fatalf("FindThreadByTitle() error = %v", err)
	}
	if got.ID != want.ID {
		t.Errorf("ID = %q, want %q", got.ID, want.ID)
	}

	if _, err := store.FindThreadByTitle(ctx, "gamma"); !errors.Is(err, ErrThreadNotFound) {
		t.Errorf("FindThreadByTitle() error = %v, want ErrThreadNotFound", err)
	}
}

func TestAppendMessageAssignsSequence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	thread, err := store.CreateThread(ctx, &CreateThreadRequest{Title: "seq"})
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}

	for i, content := range []string{"first", "second", "third"} {
		msg, err := store.AppendMessage(ctx, &AppendMessageRequest{
			ThreadID: thread.ID,
			Role:     RoleUser,
			Content:  content,
		})
		if err != nil {
			t.Fatalf("AppendMessage(%q) error = %v", content, err)
		}
		if msg.Seq != int64(i+1) {
			t.Errorf("Seq = %d, want %d", msg.Seq, i+1)
		}
	}

	messages, err := store.ListMessages(ctx, thread.ID)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("len(messages) = %d, want 3", len(messages))
	}
	if messages[0].Content != "first" || messages[2].Content != "third" {
		t.Errorf("messages out of order: %q ... %q", messages[0].Content, messages[2].Content)
	}

	got, err := store.GetThread(ctx, thread.ID)
	if err != nil {
		t.Fatalf("GetThread() error = %v", err)
	}
	if got.MessageCount != 3 {
		t.Errorf("MessageCount = %d, want 3", got.MessageCount)
	}
	if !got.UpdatedAt.After(thread.UpdatedAt) && !got.UpdatedAt.Equal(thread.UpdatedAt) {
		t.Errorf("UpdatedAt went backwards: %v -> %v", thread.UpdatedAt, got.UpdatedAt)
	}
}

func TestAppendMessageRejectsBadRole(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	thread, err := store.CreateThread(ctx, &CreateThreadRequest{Title: "roles"})
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}

	_, err = store.AppendMessage(ctx, &AppendMessageRequest{
		ThreadID: thread.ID,
		Role:     "oracle",
		Content:  "nope",
	})
	if !errors.Is(err, ErrInvalidRole) {
		t.Errorf("AppendMessage() error = %v, want ErrInvalidRole", err)
	}
}

func TestAppendMessageMissingThread(t *testing.T) {
	store := newTestStore(t)

	_, err := store.AppendMessage(context.Background(), &AppendMessageRequest{
		ThreadID: "missing",
		Role:     RoleUser,
		Content:  "hello",
	})
	if !errors.Is(err, ErrThreadNotFound) {
		t.Errorf("AppendMessage() error = %v, want ErrThreadNotFound", err)
	}
}

func TestListThreadsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.CreateThread(ctx, &CreateThreadRequest{Title: "older"})
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}
	second, err := store.CreateThread(ctx, &CreateThreadRequest{Title: "newer"})
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}

	// Appending bumps updated_at, so the older thread moves to the front.
	if _, err := store.AppendMessage(ctx, &AppendMessageRequest{
		ThreadID: first.ID, Role: RoleUser, Content: "bump",
	}); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	threads, err := store.ListThreads(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListThreads() error = %v", err)
	}
	if len(threads) != 2 {
		t.Fatalf("len(threads) = %d, want 2", len(threads))
	}
	if threads[0].ID != first.ID {
		t.Errorf("threads[0].ID = %q, want bumped thread %q", threads[0].ID, first.ID)
	}
	if threads[1].ID != second.ID {
		t.Errorf("threads[1].ID = %q, want %q", threads[1].ID, second.ID)
	}
}

func TestTouchAndDeleteThread(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	thread, err := store.CreateThread(ctx, &CreateThreadRequest{Title: "doomed"})
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}

	if err := store.TouchThread(ctx, thread.ID); err != nil {
		t.Errorf("TouchThread() error = %v", err)
	}
	if err := store.TouchThread(ctx, "missing"); !errors.Is(err, ErrThreadNotFound) {
		t.Errorf("TouchThread(missing) error = %v, want ErrThreadNotFound", err)
	}

	if _, err := store.AppendMessage(ctx, &AppendMessageRequest{
		ThreadID: thread.ID, Role: RoleUser, Content: "to be cascaded",
	}); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	if err := store.DeleteThread(ctx, thread.ID); err != nil {
		t.Fatalf("DeleteThread() error = %v", err)
	}
	if _, err := store.GetThread(ctx, thread.ID); !errors.Is(err, ErrThreadNotFound) {
		t.Errorf("GetThread() after delete error = %v, want ErrThreadNotFound", err)
	}

	// Cascade removed the messages too.
	messages, err := store.ListMessages(ctx, thread.ID)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("len(messages) after delete = %d, want 0", len(messages))
	}

	if err := store.DeleteThread(ctx, thread.ID); !errors.Is(err, ErrThreadNotFound) {
		t.Errorf("DeleteThread() twice error = %v, want ErrThreadNotFound", err)
	}
}

func TestRunEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	thread, err := store.CreateThread(ctx, &CreateThreadRequest{Title: "events"})
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}

	for _, typ := range []string{"run_start", "tool_call_start", "run_end"} {
		if err := store.StoreRunEvent(ctx, &RunEvent{
			ThreadID:  thread.ID,
			SessionID: "session-1",
			Type:      typ,
			Payload:   `{"ok":true}`,
		}); err != nil {
			t.Fatalf("StoreRunEvent(%q) error = %v", typ, err)
		}
	}

	events, err := store.ListRunEvents(ctx, thread.ID, 0)
	if err != nil {
		t.Fatalf("ListRunEvents() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	for _, ev := range events {
		if ev.ID == "" {
			t.Error("run event stored without an ID")
		}
		if ev.SessionID != "session-1" {
			t.Errorf("SessionID = %q, want %q", ev.SessionID, "session-1")
		}
	}

	limited, err := store.ListRunEvents(ctx, thread.ID, 2)
	if err != nil {
		t.Fatalf("ListRunEvents(limit=2) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("len(limited) = %d, want 2", len(limited))
	}
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
