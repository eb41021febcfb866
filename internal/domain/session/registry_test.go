package session

import (
	"errors"
	"sync"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRegistry_CreateAndGet(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	sess := reg.Create()

	if sess.ID == "" {
		t.Fatal("Create() returned session with empty ID")
	}
	if sess.State() != Establishing {
		t.Errorf("State() = %v, want %v", sess.State(), Establishing)
	}

	got, err := reg.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got != sess {
		t.Error("Get() returned a different session instance")
	}
}

func TestRegistry_GetNonExistent(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	_, err := reg.Get("nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestRegistry_UniqueIDs(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		sess := reg.Create()
		if seen[sess.ID] {
			t.Fatalf("duplicate session ID: %s", sess.ID)
		}
		seen[sess.ID] = true
	}
	if reg.Len() != 100 {
		t.Errorf("Len() = %d, want 100", reg.Len())
	}
	reg.CloseAll()
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	sess := reg.Create()

	reg.Remove(sess.ID)
	if _, err := reg.Get(sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Remove error = %v, want ErrNotFound", err)
	}
	if sess.State() != Closed {
		t.Errorf("State() after Remove = %v, want %v", sess.State(), Closed)
	}

	// Second removal of the same ID is a no-op.
	reg.Remove(sess.ID)
	reg.Remove("never-existed")
}

func TestRegistry_CloseAll(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	sessions := make([]*Session, 5)
	for i := range sessions {
		sessions[i] = reg.Create()
	}

	reg.CloseAll()

	if reg.Len() != 0 {
		t.Errorf("Len() after CloseAll = %d, want 0", reg.Len())
	}
	for _, sess := range sessions {
		if sess.State() != Closed {
			t.Errorf("session %s state = %v, want %v", sess.ID, sess.State(), Closed)
		}
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess := reg.Create()
			if _, err := reg.Get(sess.ID); err != nil {
				t.Errorf("Get() error: %v", err)
			}
			reg.Remove(sess.ID)
		}()
	}
	wg.Wait()

	if reg.Len() != 0 {
		t.Errorf("Len() = %d, want 0", reg.Len())
	}
}

func TestSession_SendAndReceive(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	sess := reg.Create()
	sess.MarkOpen()

	if err := sess.Send([]byte(`{"jsonrpc":"2.0"}`)); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	select {
	case frame := <-sess.Frames():
		if string(frame) != `{"jsonrpc":"2.0"}` {
			t.Errorf("frame = %s, want the sent bytes", frame)
		}
	default:
		t.Fatal("no frame buffered after Send()")
	}
	reg.CloseAll()
}

func TestSession_SendAfterClose(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	sess := reg.Create()
	reg.Remove(sess.ID)

	if err := sess.Send([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() after close error = %v, want ErrClosed", err)
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	sess := reg.Create()

	// Close twice; the second must not panic on the closed channel.
	sess.Close()
	sess.Close()

	if _, ok := <-sess.Frames(); ok {
		t.Error("Frames() channel still open after Close()")
	}
	reg.Remove(sess.ID)
}

func TestSession_SendFullBuffer(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	sess := reg.Create()
	sess.MarkOpen()

	// Fill the buffer; the overflow send must fail rather than block.
	var err error
	for i := 0; i < frameBuffer+1; i++ {
		err = sess.Send([]byte("frame"))
	}
	if err == nil {
		t.Error("Send() on full buffer returned nil, want error")
	}
	reg.CloseAll()
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state State
		want  string
	}{
		{Establishing, "establishing"},
		{Open, "open"},
		{Closed, "closed"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
