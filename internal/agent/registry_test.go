package agent

import (
	"strconv"
	"sync"
	"testing"

	"github.com/coder/websocket"
)

type fakeConn struct {
	mu     sync.Mutex
	closed int
	code   websocket.StatusCode
}

func (c *fakeConn) Close(code websocket.StatusCode, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	c.code = code
	return nil
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()
	reg.Register(1, "tok-a", &fakeConn{})
	reg.Register(1, "tok-a", &fakeConn{})

	if got := reg.Count(1); got != 2 {
		t.Errorf("Expected 2 connections, got %d", got)
	}
	if got := reg.Count(2); got != 0 {
		t.Errorf("Expected 0 connections for another user, got %d", got)
	}
}

func TestRegistry_Unregister(t *testing.T) {
	reg := NewRegistry()
	conn := &fakeConn{}
	reg.Register(1, "tok-a", conn)

	reg.Unregister(1, &fakeConn{})
	if got := reg.Count(1); got != 1 {
		t.Errorf("Expected unknown connection to be ignored, got %d", got)
	}

	reg.Unregister(1, conn)
	if got := reg.Count(1); got != 0 {
		t.Errorf("Expected 0 connections, got %d", got)
	}
	if conn.closeCount() != 0 {
		t.Error("Unregister must not close the connection")
	}
}

func TestRegistry_CloseToken(t *testing.T) {
	reg := NewRegistry()
	a1, a2 := &fakeConn{}, &fakeConn{}
	other := &fakeConn{}
	reg.Register(1, "tok-a", a1)
	reg.Register(1, "tok-a", a2)
	reg.Register(1, "tok-b", other)

	reg.CloseToken("tok-a")

	for _, c := range []*fakeConn{a1, a2} {
		if c.closeCount() != 1 {
			t.Errorf("Expected connection to be closed once, got %d", c.closeCount())
		}
		if c.code != websocket.StatusPolicyViolation {
			t.Errorf("Expected policy violation close code, got %v", c.code)
		}
	}
	if other.closeCount() != 0 {
		t.Error("Connection with another token must stay open")
	}
	if got := reg.Count(1); got != 1 {
		t.Errorf("Expected 1 remaining connection, got %d", got)
	}

	// Closing again is a no-op.
	reg.CloseToken("tok-a")
	reg.CloseToken("")
	if a1.closeCount() != 1 {
		t.Errorf("Expected no second close, got %d", a1.closeCount())
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			reg.Register(int64(i%5), "tok-"+strconv.Itoa(i%3), &fakeConn{})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			reg.Count(int64(i % 5))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			reg.CloseToken("tok-" + strconv.Itoa(i%3))
		}
	}()
	wg.Wait()
}
