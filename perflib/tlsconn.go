package perflib

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"

	"github.com/aagor/tls-perf/common"
)

// Progress is the outcome of one Connect step.
type Progress int

const (
	// HandshakeDone: the handshake completed during this step.
	HandshakeDone Progress = iota
	// WantRead: the handshake is suspended until the socket is readable.
	WantRead
	// WantWrite: the handshake is suspended until the socket is writable.
	WantWrite
)

func (p Progress) String() string {
	switch p {
	case HandshakeDone:
		return "done"
	case WantRead:
		return "want-read"
	case WantWrite:
		return "want-write"
	}
	return "unknown"
}

// TLSFactory is the reusable client context: version pin, cipher
// restriction and the session-ticket cache, shared by every session of one
// worker.
type TLSFactory struct {
	cfg *tls.Config
}

func NewTLSFactory(c common.Config) (*TLSFactory, error) {
	cfg := &tls.Config{
		// Targets are arbitrary, usually self-signed endpoints; no trust
		// decision is made about the peer certificate.
		InsecureSkipVerify: true,
	}

	switch c.Version {
	case common.TLS12:
		cfg.MinVersion, cfg.MaxVersion = tls.VersionTLS12, tls.VersionTLS12
	case common.TLS13:
		cfg.MinVersion, cfg.MaxVersion = tls.VersionTLS13, tls.VersionTLS13
	default:
		cfg.MinVersion, cfg.MaxVersion = tls.VersionTLS12, tls.VersionTLS13
	}

	// Resumption is off unless asked for: no cache, no ticket reuse, every
	// handshake does the full key exchange.
	if c.UseTickets {
		cfg.ClientSessionCache = tls.NewLRUClientSessionCache(c.Peers)
	}

	if c.Cipher != "" {
		id, only13, ok := cipherSuiteID(c.Cipher)
		if !ok {
			return nil, fatalf("unknown cipher %q", c.Cipher)
		}
		if only13 {
			// The engine negotiates TLS 1.3 suites from its own fixed set;
			// the name is accepted for compatibility.
			glog.Warningf("cipher %s: TLS 1.3 suite selection is engine-determined", c.Cipher)
		} else {
			cfg.CipherSuites = []uint16{id}
		}
	}

	return &TLSFactory{cfg: cfg}, nil
}

// opensslNames maps the OpenSSL spellings accepted on the command line to
// the IANA names the engine knows.
var opensslNames = map[string]string{
	"ECDHE-ECDSA-AES128-GCM-SHA256": "TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256",
	"ECDHE-ECDSA-AES256-GCM-SHA384": "TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384",
	"ECDHE-ECDSA-CHACHA20-POLY1305": "TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256",
	"ECDHE-RSA-AES128-GCM-SHA256":   "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256",
	"ECDHE-RSA-AES256-GCM-SHA384":   "TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384",
	"ECDHE-RSA-CHACHA20-POLY1305":   "TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256",
	"AES128-GCM-SHA256":             "TLS_RSA_WITH_AES_128_GCM_SHA256",
	"AES256-GCM-SHA384":             "TLS_RSA_WITH_AES_256_GCM_SHA384",
}

func cipherSuiteID(name string) (id uint16, only13 bool, ok bool) {
	if iana, found := opensslNames[name]; found {
		name = iana
	}
	for _, cs := range tls.CipherSuites() {
		if cs.Name == name {
			return cs.ID, isTLS13Suite(cs), true
		}
	}
	for _, cs := range tls.InsecureCipherSuites() {
		if cs.Name == name {
			return cs.ID, isTLS13Suite(cs), true
		}
	}
	return 0, false, false
}

func isTLS13Suite(cs *tls.CipherSuite) bool {
	return len(cs.SupportedVersions) == 1 && cs.SupportedVersions[0] == tls.VersionTLS13
}

var errSessionClosed = errors.New("tls session closed")

// Session drives one connection's handshake against a raw non-blocking
// socket. The engine itself cannot suspend mid-handshake, so the handshake
// runs on its own goroutine whose socket reads and writes park on EAGAIN and
// rendezvous with Connect; every Connect call therefore steps the handshake
// exactly until it completes or hits the next would-block point, and the
// event loop sees the familiar done / want-read / want-write trichotomy.
type Session struct {
	conn    *tls.Conn
	wire    *wire
	resCh   chan error
	started bool
	done    bool
}

// NewSession binds a session to the socket fd. The fd's lifetime stays with
// the caller.
func (f *TLSFactory) NewSession(fd int) *Session {
	w := &wire{
		fd:       fd,
		wantCh:   make(chan Progress),
		resumeCh: make(chan struct{}),
		closeCh:  make(chan struct{}),
	}
	return &Session{
		conn:  tls.Client(w, f.cfg),
		wire:  w,
		resCh: make(chan error, 1),
	}
}

// Connect advances the handshake. It returns HandshakeDone when the
// handshake completed within this call, WantRead/WantWrite when it suspended
// on socket readiness, or the handshake error.
func (s *Session) Connect() (Progress, error) {
	if s.done {
		return HandshakeDone, nil
	}
	select {
	case <-s.wire.closeCh:
		return 0, errSessionClosed
	default:
	}
	if !s.started {
		s.started = true
		go func() {
			s.resCh <- s.conn.Handshake()
		}()
	} else {
		select {
		case s.wire.resumeCh <- struct{}{}:
		case <-s.wire.closeCh:
			return 0, errSessionClosed
		}
	}

	select {
	case want := <-s.wire.wantCh:
		return want, nil
	case err := <-s.resCh:
		if err != nil {
			return 0, err
		}
		s.done = true
		return HandshakeDone, nil
	}
}

// Version reports the negotiated protocol version, 0 before completion.
func (s *Session) Version() uint16 {
	if !s.done {
		return 0
	}
	return s.conn.ConnectionState().Version
}

// Close aborts the session without a TLS close exchange, so nothing about
// the connection is retained for reuse. Idempotent.
func (s *Session) Close() {
	select {
	case <-s.wire.closeCh:
	default:
		close(s.wire.closeCh)
	}
}

// wire adapts the raw non-blocking socket to the engine's net.Conn. EAGAIN
// parks the calling handshake goroutine until the owning Session resumes or
// closes it.
type wire struct {
	fd       int
	wantCh   chan Progress
	resumeCh chan struct{}
	closeCh  chan struct{}
}

// park announces the suspension reason and waits to be resumed. Returns
// false when the session was closed instead.
func (w *wire) park(p Progress) bool {
	select {
	case w.wantCh <- p:
	case <-w.closeCh:
		return false
	}
	select {
	case <-w.resumeCh:
		return true
	case <-w.closeCh:
		return false
	}
}

func (w *wire) Read(b []byte) (int, error) {
	for {
		n, err := unix.Read(w.fd, b)
		switch {
		case err == unix.EINTR:
		case err == unix.EAGAIN:
			if !w.park(WantRead) {
				return 0, errSessionClosed
			}
		case err != nil:
			return 0, err
		case n == 0:
			return 0, io.EOF
		default:
			return n, nil
		}
	}
}

func (w *wire) Write(b []byte) (int, error) {
	total := 0
	for total < len(b) {
		n, err := unix.Write(w.fd, b[total:])
		switch {
		case err == unix.EINTR:
		case err == unix.EAGAIN:
			if !w.park(WantWrite) {
				return total, errSessionClosed
			}
		case err != nil:
			return total, err
		default:
			total += n
		}
	}
	return total, nil
}

// The socket is owned by the peer; closing the wire is a no-op.
func (w *wire) Close() error { return nil }

func (w *wire) LocalAddr() net.Addr                { return wireAddr{} }
func (w *wire) RemoteAddr() net.Addr               { return wireAddr{} }
func (w *wire) SetDeadline(t time.Time) error      { return nil }
func (w *wire) SetReadDeadline(t time.Time) error  { return nil }
func (w *wire) SetWriteDeadline(t time.Time) error { return nil }

type wireAddr struct{}

func (wireAddr) Network() string { return "tcp" }
func (wireAddr) String() string  { return "tcp" }
