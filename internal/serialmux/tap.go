package serialmux

import (
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"tailscale.com/tsweb"
)

// Tap wraps a port and copies every read and write to subscribers as one
// line of hex per transfer. Subscribers that fall behind miss lines rather
// than stall the wire.
type Tap struct {
	TimeoutSerialPorter

	name string

	txBytes atomic.Int64
	rxBytes atomic.Int64

	subscriberMu sync.Mutex
	subscribers  map[string]chan string
	closing      bool
}

// NewTap wraps port. name labels the tap on the debug routes.
func NewTap(name string, port TimeoutSerialPorter) *Tap {
	return &Tap{
		TimeoutSerialPorter: port,
		name:                name,
		subscribers:         make(map[string]chan string),
	}
}

// Name returns the tap label.
func (t *Tap) Name() string { return t.name }

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe returns a channel receiving traffic lines and the id to pass to
// Unsubscribe.
func (t *Tap) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string, 64)
	t.subscriberMu.Lock()
	defer t.subscriberMu.Unlock()
	if t.closing {
		close(ch)
		return id, ch
	}
	t.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (t *Tap) Unsubscribe(id string) {
	t.subscriberMu.Lock()
	defer t.subscriberMu.Unlock()
	if ch, ok := t.subscribers[id]; ok {
		close(ch)
		delete(t.subscribers, id)
	}
}

func (t *Tap) publish(dir string, p []byte) {
	t.subscriberMu.Lock()
	defer t.subscriberMu.Unlock()
	if len(t.subscribers) == 0 {
		return
	}
	line := fmt.Sprintf("%s %s %s", time.Now().Format("15:04:05.000"), dir, hex.EncodeToString(p))
	for _, ch := range t.subscribers {
		select {
		case ch <- line:
		default:
		}
	}
}

// Read implements io.Reader.
func (t *Tap) Read(p []byte) (int, error) {
	n, err := t.TimeoutSerialPorter.Read(p)
	if n > 0 {
		t.rxBytes.Add(int64(n))
		t.publish("rx", p[:n])
	}
	return n, err
}

// Write implements io.Writer.
func (t *Tap) Write(p []byte) (int, error) {
	n, err := t.TimeoutSerialPorter.Write(p)
	if n > 0 {
		t.txBytes.Add(int64(n))
		t.publish("tx", p[:n])
	}
	return n, err
}

// Counters returns the bytes sent and received through the tap.
func (t *Tap) Counters() (tx, rx int64) {
	return t.txBytes.Load(), t.rxBytes.Load()
}

// Close closes all subscriber channels and then the port.
func (t *Tap) Close() error {
	t.subscriberMu.Lock()
	t.closing = true
	for id, ch := range t.subscribers {
		close(ch)
		delete(t.subscribers, id)
	}
	t.subscriberMu.Unlock()
	return t.TimeoutSerialPorter.Close()
}

// AttachAdminRoutes registers a server-sent event stream of the tap traffic
// at /debug/tail-<name> and byte counters on the debug index.
func (t *Tap) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.KVFunc(t.name+" tx bytes", func() any { return t.txBytes.Load() })
	debug.KVFunc(t.name+" rx bytes", func() any { return t.rxBytes.Load() })

	debug.HandleSilentFunc("tail-"+t.name, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := t.Subscribe()
		defer t.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case line, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", line); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
