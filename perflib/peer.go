package perflib

import (
	"net/netip"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"
)

type peerState int

const (
	stateTCPConnect peerState = iota
	stateTCPConnecting
	stateTLSHandshaking
)

// Peer is one logical client cycling through TCP connect, TLS handshake and
// aggressive teardown. A peer owns at most one socket and one TLS session at
// a time and is only ever touched by its worker's loop.
type Peer struct {
	id     int
	fd     int
	sess   *Session
	state  peerState
	family int
	addr   unix.Sockaddr
	polled bool

	io *Poller
	tf *TLSFactory
	ct *Counters
	ls *LatencySampler
}

func NewPeer(id int, ap netip.AddrPort, io *Poller, tf *TLSFactory, ct *Counters, ls *LatencySampler) *Peer {
	family, sa := sockaddr(ap)
	p := &Peer{
		id:     id,
		fd:     -1,
		state:  stateTCPConnect,
		family: family,
		addr:   sa,
		io:     io,
		tf:     tf,
		ct:     ct,
		ls:     ls,
	}
	p.dbg("created")
	return p
}

func sockaddr(ap netip.AddrPort) (int, unix.Sockaddr) {
	addr := ap.Addr().Unmap()
	if addr.Is4() {
		sa := &unix.SockaddrInet4{Port: int(ap.Port())}
		sa.Addr = addr.As4()
		return unix.AF_INET, sa
	}
	sa := &unix.SockaddrInet6{Port: int(ap.Port())}
	sa.Addr = addr.As16()
	return unix.AF_INET6, sa
}

// Advance drives the peer one step. The boolean reports that a TLS handshake
// completed within this call, which feeds the worker's slow-start budget.
// A returned error is always a FatalError.
func (p *Peer) Advance() (bool, error) {
	switch p.state {
	case stateTCPConnect:
		return p.tcpConnect()
	case stateTCPConnecting:
		return p.tcpConnectTryFinish()
	case stateTLSHandshaking:
		return p.tlsHandshake()
	}
	return false, fatalf("peer %d: bad state %d", p.id, p.state)
}

func (p *Peer) tcpConnect() (bool, error) {
	fd, err := unix.Socket(p.family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return false, fatalf("cannot create a socket: %v", err)
	}
	p.fd = fd

	err = unix.Connect(fd, p.addr)

	p.ct.TCPHandshakes.Add(1)
	p.state = stateTCPConnecting

	// Connects to a local endpoint can complete instantly even on a
	// non-blocking socket.
	if err == nil {
		return p.handleEstablishedTCPConn()
	}
	return false, p.handleConnectError(err)
}

func (p *Peer) tcpConnectTryFinish() (bool, error) {
	soerr, err := unix.GetsockoptInt(p.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return false, fatalf("cannot get a socket connect() status: %v", err)
	}
	if soerr == 0 {
		return p.handleEstablishedTCPConn()
	}
	return false, p.handleConnectError(unix.Errno(soerr))
}

func (p *Peer) handleEstablishedTCPConn() (bool, error) {
	p.dbg("has established TCP connection")
	p.ct.TCPHandshakes.Add(-1)
	p.ct.TCPConnections.Add(1)
	p.ct.TotTCPConnections.Add(1)
	return p.tlsHandshake()
}

func (p *Peer) handleConnectError(err error) error {
	if err == unix.EINPROGRESS || err == unix.EAGAIN {
		// The TCP handshake is still in flight; wait for readiness.
		return p.addToPoll()
	}

	if p.ct.TotTCPConnections.Load() == 0 {
		return fatalf("cannot establish even one TCP connection: %v", err)
	}

	p.ct.TCPHandshakes.Add(-1)
	p.ct.ErrorCount.Add(1)
	p.disconnect()
	// A failed attempt re-queues the peer for a fresh connect; every live
	// peer stays either polled, queued or in flight.
	p.io.QueueReconnect(p.id)
	return nil
}

func (p *Peer) tlsHandshake() (bool, error) {
	p.state = stateTLSHandshaking

	if p.sess == nil {
		p.sess = p.tf.NewSession(p.fd)
		p.ct.TLSHandshakes.Add(1)
	}

	t0 := time.Now()

	prog, err := p.sess.Connect()
	if err != nil {
		if p.ct.TotTLSHandshakes.Load() == 0 {
			return false, fatalf("cannot establish even one TLS connection: %v", err)
		}
		p.ct.TLSHandshakes.Add(-1)
		p.ct.ErrorCount.Add(1)
		p.disconnect()
		p.ct.TCPConnections.Add(-1)
		p.io.QueueReconnect(p.id)
		return false, nil
	}

	switch prog {
	case HandshakeDone:
		// Only the completing attempt is measured; time the handshake spent
		// suspended on earlier attempts never enters the sample.
		p.ls.Update(time.Since(t0))

		p.dbg("has completed TLS handshake")
		p.ct.TLSHandshakes.Add(-1)
		p.ct.TLSConnections.Add(1)
		p.ct.TotTLSHandshakes.Add(1)
		p.disconnect()
		p.ct.TCPConnections.Add(-1)
		p.io.QueueReconnect(p.id)
		return true, nil

	default:
		// WantRead or WantWrite: the poller watches both directions.
		return false, p.addToPoll()
	}
}

func (p *Peer) addToPoll() error {
	if p.polled {
		return nil
	}
	if err := p.io.Add(p.fd, p.id); err != nil {
		return fatalf("peer %d: %v", p.id, err)
	}
	p.polled = true
	return nil
}

func (p *Peer) delFromPoll() {
	if !p.polled {
		return
	}
	if err := p.io.Del(p.fd); err != nil {
		glog.Errorf("disconnect: %v", err)
	}
	p.polled = false
}

// disconnect tears the connection down aggressively: the TLS session is
// dropped without a close exchange so nothing is cached for reuse, and the
// socket is closed with zero linger so it does not sit in TIME-WAIT.
func (p *Peer) disconnect() {
	if p.sess != nil {
		p.sess.Close()
		p.sess = nil
	}
	if p.fd >= 0 {
		p.delFromPoll()

		unix.SetsockoptLinger(p.fd, unix.SOL_SOCKET, unix.SO_LINGER,
			&unix.Linger{Onoff: 1, Linger: 0})
		unix.Close(p.fd)
		p.fd = -1
	}
	p.state = stateTCPConnect
}

func (p *Peer) dbg(msg string) {
	if glog.V(1) {
		glog.Infof("peer %d %s", p.id, msg)
	}
}
