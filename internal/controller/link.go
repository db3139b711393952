// Package controller implements the link to one LED controller: opening its
// byte stream, the identity handshake, and framed command traffic.
package controller

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/banshee-data/display1593/internal/led"
	"github.com/banshee-data/display1593/internal/monitoring"
	"github.com/banshee-data/display1593/internal/protocol"
	"github.com/banshee-data/display1593/internal/serialmux"
)

// State is the connection state of a Link.
type State int

const (
	// Disconnected: no byte stream is open.
	Disconnected State = iota
	// Identifying: the stream is open and an identity request is in flight.
	Identifying
	// Verified: the controller answered with an accepted identity.
	Verified
	// Failed: the identity exchange failed. The link must be recreated.
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Identifying:
		return "identifying"
	case Verified:
		return "verified"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// maxLineLen bounds an identity reply. Longer input is treated as garbage.
const maxLineLen = 64

// pollInterval is the per-read timeout set on the port so deadline checks
// stay responsive.
const pollInterval = 100 * time.Millisecond

// Config describes how to reach one controller.
type Config struct {
	Path        string
	Options     serialmux.PortOptions
	ReadTimeout time.Duration
	// Open defaults to serialmux.Open.
	Open serialmux.Opener
}

// Link owns the byte stream to one controller. All traffic is serialised by
// an internal mutex, so a Link may be shared between goroutines.
type Link struct {
	mu sync.Mutex

	cfg      Config
	port     serialmux.TimeoutSerialPorter
	state    State
	identity string
	pending  []byte
	// stale counts reply bytes still owed by a query that timed out. They
	// are skipped before the next reply is read.
	stale int
	// resync is set when stale could not be accounted for; the port is
	// drained before the next request.
	resync bool
}

// New returns a Disconnected link for cfg.
func New(cfg Config) *Link {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = serialmux.DefaultReadTimeout
	}
	if cfg.Open == nil {
		cfg.Open = serialmux.Open
	}
	return &Link{cfg: cfg}
}

// Attach returns a Disconnected link over an already open port. Connect will
// use port instead of opening path.
func Attach(path string, port serialmux.TimeoutSerialPorter, readTimeout time.Duration) *Link {
	l := New(Config{Path: path, ReadTimeout: readTimeout})
	l.port = port
	return l
}

// Path returns the device path of the link.
func (l *Link) Path() string { return l.cfg.Path }

// State returns the current connection state.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Identity returns the identity the controller reported, or "" before the
// first successful handshake.
func (l *Link) Identity() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.identity
}

func (l *Link) opError(op string, err error) error {
	return &led.OpError{Op: op, Controller: -1, Identity: l.identity, Led: -1, Err: err}
}

// Connect opens the byte stream if needed and performs the identity
// handshake. It is a no-op on a Verified link and an error on a Failed one.
func (l *Link) Connect() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case Verified:
		return nil
	case Failed:
		return l.opError("connect", fmt.Errorf("%s: %w", l.cfg.Path, led.ErrNotVerified))
	}

	if l.port == nil {
		port, err := l.cfg.Open(l.cfg.Path, l.cfg.Options)
		if err != nil {
			return l.opError("connect", err)
		}
		l.port = port
	}
	if err := l.port.SetReadTimeout(min(l.cfg.ReadTimeout, pollInterval)); err != nil {
		return l.opError("connect", fmt.Errorf("failed to set read timeout: %w", err))
	}

	l.state = Identifying
	id, err := l.identify()
	if err != nil {
		l.state = Failed
		monitoring.Logf("controller %s: identity handshake failed: %v", l.cfg.Path, err)
		return l.opError("identify", err)
	}
	l.identity = id
	l.state = Verified
	monitoring.Logf("controller %s: identified as %s", l.cfg.Path, id)
	return nil
}

// Verify repeats the identity exchange on a Verified link. A timeout or a
// changed identity moves the link to Failed. The byte stream stays open.
func (l *Link) Verify() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Verified {
		return l.opError("verify", fmt.Errorf("%s is %s: %w", l.cfg.Path, l.state, led.ErrNotVerified))
	}
	id, err := l.identify()
	if err == nil && id != l.identity {
		err = fmt.Errorf("identity changed from %q to %q", l.identity, id)
	}
	if err != nil {
		l.state = Failed
		monitoring.Logf("controller %s (%s): liveness check failed: %v", l.cfg.Path, l.identity, err)
		return l.opError("verify", err)
	}
	return nil
}

// identify sends the identity request and reads one reply line. Callers hold
// l.mu.
func (l *Link) identify() (string, error) {
	if err := l.dropPending(); err != nil {
		return "", err
	}
	if err := l.write(protocol.IdentifyRequest()); err != nil {
		return "", err
	}
	deadline := time.Now().Add(l.cfg.ReadTimeout)
	if err := l.skipStale(deadline); err != nil {
		return "", err
	}
	line, err := l.readLine(deadline)
	if err != nil {
		return "", err
	}
	return protocol.ParseIdentity(line)
}

// Send writes one command frame. op names the command in errors and logs.
func (l *Link) Send(op string, frame []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Verified {
		return l.opError(op, led.ErrNotVerified)
	}
	if err := l.write(frame); err != nil {
		monitoring.Logf("controller %s (%s): %s failed: %v", l.cfg.Path, l.identity, op, err)
		return l.opError(op, err)
	}
	return nil
}

// Query writes frame and waits up to the read timeout for exactly n reply
// bytes.
func (l *Link) Query(op string, frame []byte, n int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Verified {
		return nil, l.opError(op, led.ErrNotVerified)
	}
	if err := l.dropPending(); err != nil {
		return nil, l.opError(op, err)
	}
	if err := l.write(frame); err != nil {
		monitoring.Logf("controller %s (%s): %s failed: %v", l.cfg.Path, l.identity, op, err)
		return nil, l.opError(op, err)
	}
	deadline := time.Now().Add(l.cfg.ReadTimeout)
	owed := l.stale
	err := l.skipStale(deadline)
	if err == nil {
		_, err = l.readFull(n, deadline)
	}
	switch {
	case err != nil && owed > 0:
		// The earlier reply may never come, or this one was taken for it.
		l.stale, l.resync = 0, true
		l.pending = l.pending[:0]
	case err != nil:
		l.stale = n - len(l.pending)
		l.pending = l.pending[:0]
	}
	if err != nil {
		monitoring.Logf("controller %s (%s): %s reply: %v", l.cfg.Path, l.identity, op, err)
		return nil, l.opError(op, err)
	}
	reply := bytes.Clone(l.pending[:n])
	l.pending = append(l.pending[:0], l.pending[n:]...)
	return reply, nil
}

// Close closes the byte stream and returns the link to Disconnected.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state = Disconnected
	l.identity = ""
	l.pending = nil
	l.stale, l.resync = 0, false
	if l.port == nil {
		return nil
	}
	err := l.port.Close()
	l.port = nil
	return err
}

func (l *Link) write(frame []byte) error {
	n, err := l.port.Write(frame)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if n != len(frame) {
		return fmt.Errorf("%w: wrote %d of %d bytes", led.ErrShortWrite, n, len(frame))
	}
	return nil
}

// fill reads once from the port into pending. A read that returns nothing
// (the port timed out, or a test port ran dry) is not an error.
func (l *Link) fill() error {
	var buf [256]byte
	n, err := l.port.Read(buf[:])
	l.pending = append(l.pending, buf[:n]...)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read: %w", err)
	}
	if n == 0 && errors.Is(err, io.EOF) {
		// Ports that report EOF instead of blocking would otherwise spin.
		time.Sleep(time.Millisecond)
	}
	return nil
}

func (l *Link) readLine(deadline time.Time) (string, error) {
	for {
		if i := bytes.IndexByte(l.pending, '\n'); i >= 0 {
			line := string(l.pending[:i+1])
			l.pending = append(l.pending[:0], l.pending[i+1:]...)
			return line, nil
		}
		if len(l.pending) > maxLineLen {
			return "", fmt.Errorf("reply exceeds %d bytes without newline", maxLineLen)
		}
		if time.Now().After(deadline) {
			return "", led.ErrTimeout
		}
		if err := l.fill(); err != nil {
			return "", err
		}
	}
}

// readFull reads until at least n bytes are pending.
func (l *Link) readFull(n int, deadline time.Time) ([]byte, error) {
	for len(l.pending) < n {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: got %d of %d bytes", led.ErrTimeout, len(l.pending), n)
		}
		if err := l.fill(); err != nil {
			return nil, err
		}
	}
	return l.pending[:n], nil
}

// dropPending discards unsolicited bytes before a request. Bytes owed to a
// timed out query are kept so skipStale can account for them. After resync
// is set, it reads the port until a read returns nothing.
func (l *Link) dropPending() error {
	if l.stale > 0 {
		return nil
	}
	l.pending = l.pending[:0]
	if !l.resync {
		return nil
	}
	deadline := time.Now().Add(l.cfg.ReadTimeout)
	for time.Now().Before(deadline) {
		if err := l.fill(); err != nil {
			return err
		}
		if len(l.pending) == 0 {
			break
		}
		l.pending = l.pending[:0]
	}
	l.pending = l.pending[:0]
	l.resync = false
	return nil
}

// skipStale discards the late replies of earlier timed out queries.
func (l *Link) skipStale(deadline time.Time) error {
	if l.stale == 0 {
		return nil
	}
	if _, err := l.readFull(l.stale, deadline); err != nil {
		l.stale -= len(l.pending)
		l.pending = l.pending[:0]
		return err
	}
	l.pending = append(l.pending[:0], l.pending[l.stale:]...)
	l.stale, l.resync = 0, false
	return nil
}
