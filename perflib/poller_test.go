package perflib

import (
	"testing"

	"golang.org/x/sys/unix"
)

func testSocketpair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		t.Fatal("socketpair: ", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestPollerReadiness(t *testing.T) {
	p, err := NewPoller()
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	local, remote := testSocketpair(t)
	if err := p.Add(local, 7); err != nil {
		t.Fatal(err)
	}

	if _, err := unix.Write(remote, []byte("x")); err != nil {
		t.Fatal("write: ", err)
	}

	if err := p.Wait(); err != nil {
		t.Fatal(err)
	}
	idx, ok := p.NextReady()
	if !ok {
		t.Fatal("no readiness for a readable socket")
	}
	if idx != 7 {
		t.Error("readiness carried wrong peer index: ", idx)
	}
	if _, ok := p.NextReady(); ok {
		t.Error("more ready peers than registered sockets")
	}

	if err := p.Del(local); err != nil {
		t.Fatal(err)
	}
	if err := p.Wait(); err != nil {
		t.Fatal(err)
	}
	if _, ok := p.NextReady(); ok {
		t.Error("readiness after deregistration")
	}
}

func TestPollerWaitIdle(t *testing.T) {
	p, err := NewPoller()
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	// Nothing registered: Wait returns after its short timeout, not never.
	if err := p.Wait(); err != nil {
		t.Fatal(err)
	}
	if _, ok := p.NextReady(); ok {
		t.Error("phantom readiness")
	}
}

func TestPollerBacklogSwap(t *testing.T) {
	p, err := NewPoller()
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	p.QueueReconnect(1)
	p.QueueReconnect(2)
	p.SwapBacklog()

	idx, ok := p.NextBacklog()
	if !ok || idx != 1 {
		t.Error("first backlog entry: ", idx, ok)
	}

	// A peer queued while the backlog drains must wait for the next swap,
	// so it cannot be redriven in the same iteration.
	p.QueueReconnect(3)

	idx, ok = p.NextBacklog()
	if !ok || idx != 2 {
		t.Error("second backlog entry: ", idx, ok)
	}
	if _, ok = p.NextBacklog(); ok {
		t.Error("entry queued during drain leaked into current backlog")
	}

	p.SwapBacklog()
	idx, ok = p.NextBacklog()
	if !ok || idx != 3 {
		t.Error("queued entry lost across swap: ", idx, ok)
	}
	if _, ok = p.NextBacklog(); ok {
		t.Error("backlog yielded a stale entry")
	}
}

func TestPollerAddBadSocket(t *testing.T) {
	p, err := NewPoller()
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if err := p.Add(-1, 0); err == nil {
		t.Error("adding a closed socket should fail")
	}
}
