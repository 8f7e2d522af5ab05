package perflib

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const (
	pollerEvents = 128
	// Wait returns after a few milliseconds even when idle so the loop can
	// notice shutdown and drain the reconnect backlog.
	pollerTimeoutMsec = 5
)

// Poller multiplexes one worker's sockets with epoll(7). Registered entries
// carry the owning peer's index into the worker's peer table, not a pointer,
// so readiness events stay valid however the table is stored.
//
// The reconnect queue is written while events are dispatched; draining
// happens off a swapped-out backlog so a peer finishing a handshake during
// the drain is not redriven in the same iteration.
type Poller struct {
	epfd    int
	events  [pollerEvents]unix.EpollEvent
	nready  int
	rqueue  []int32
	backlog []int32
	bpos    int
}

func NewPoller() (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fatalf("cannot create poller: %v", err)
	}
	return &Poller{epfd: epfd}, nil
}

func (p *Poller) Close() error {
	if p.epfd < 0 {
		return nil
	}
	err := unix.Close(p.epfd)
	p.epfd = -1
	return err
}

// Add registers fd for readable, writable and error readiness on behalf of
// the peer at index idx.
func (p *Poller) Add(fd int, idx int) error {
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLERR,
		Fd:     int32(idx),
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("cannot add socket to poller: %w", err)
	}
	return nil
}

func (p *Poller) Del(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("cannot delete socket from poller: %w", err)
	}
	return nil
}

// QueueReconnect appends a peer awaiting a fresh TCP connect. Never fails.
func (p *Poller) QueueReconnect(idx int) {
	p.rqueue = append(p.rqueue, int32(idx))
}

// Wait blocks for readiness up to the poll timeout. Interruption by a signal
// is retried transparently.
func (p *Poller) Wait() error {
	for {
		n, err := unix.EpollWait(p.epfd, p.events[:], pollerTimeoutMsec)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fatalf("poller wait error: %v", err)
		}
		p.nready = n
		return nil
	}
}

// NextReady pops one ready peer index from the last Wait.
func (p *Poller) NextReady() (int, bool) {
	if p.nready == 0 {
		return 0, false
	}
	p.nready--
	return int(p.events[p.nready].Fd), true
}

// SwapBacklog atomically moves the reconnect queue into the drain backlog.
// Peers queued while the backlog is drained land in the next swap.
func (p *Poller) SwapBacklog() {
	p.rqueue, p.backlog = p.backlog[:0], p.rqueue
	p.bpos = 0
}

// NextBacklog yields peers from the swapped-out backlog one at a time.
func (p *Poller) NextBacklog() (int, bool) {
	if p.bpos >= len(p.backlog) {
		return 0, false
	}
	idx := p.backlog[p.bpos]
	p.bpos++
	return int(idx), true
}
