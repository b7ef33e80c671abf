package chathub_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"strangerchat/backend/internal/chathub"
	"strangerchat/backend/internal/models"
	"strangerchat/backend/internal/storage"

	"go.uber.org/zap"
)

type delivery struct {
	Recipient int64
	Payload   models.Payload
}

type notification struct {
	Recipient int64
	Text      string
}

// recordingTransport is a Transport test double that records everything it is
// asked to send. Recipients in failFor get an error instead.
type recordingTransport struct {
	mu         sync.Mutex
	deliveries []delivery
	notices    []notification
	failFor    map[int64]bool
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{failFor: map[int64]bool{}}
}

func (t *recordingTransport) Deliver(_ context.Context, recipient int64, payload models.Payload) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failFor[recipient] {
		return errors.New("recipient unreachable")
	}
	t.deliveries = append(t.deliveries, delivery{recipient, payload})
	return nil
}

func (t *recordingTransport) Notify(_ context.Context, recipient int64, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failFor[recipient] {
		return errors.New("recipient unreachable")
	}
	t.notices = append(t.notices, notification{recipient, text})
	return nil
}

func (t *recordingTransport) fail(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failFor[id] = true
}

// noticesFor returns the notice texts sent to id, in order.
func (t *recordingTransport) noticesFor(id int64) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, n := range t.notices {
		if n.Recipient == id {
			out = append(out, n.Text)
		}
	}
	return out
}

func (t *recordingTransport) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deliveries = nil
	t.notices = nil
}

// keyRenderer renders "key" or "key:arg1,arg2" so tests can assert on keys.
type keyRenderer struct{}

func (keyRenderer) Render(_ string, key string, args ...any) string {
	if len(args) == 0 {
		return key
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return key + ":" + strings.Join(parts, ",")
}

const testOwner int64 = 1000

func newTestManager() (*chathub.ManagerService, *recordingTransport, *storage.MemoryStorage) {
	transport := newRecordingTransport()
	store := storage.NewMemoryStorage()
	m := chathub.NewManagerService(chathub.Options{
		Storage:   store,
		Transport: transport,
		Renderer:  keyRenderer{},
		Language:  "en",
		OwnerID:   testOwner,
		Logger:    zap.NewNop(),
	})
	return m, transport, store
}

// fakeClient is a live client whose frames stay in its buffered channel.
type fakeClient struct {
	id     int64
	send   chan chathub.Frame
	closed bool
	mu     sync.Mutex
}

func newFakeClient(id int64, buffer int) *fakeClient {
	return &fakeClient{id: id, send: make(chan chathub.Frame, buffer)}
}

func (c *fakeClient) GetUserID() int64                     { return c.id }
func (c *fakeClient) GetSendChannel() chan<- chathub.Frame { return c.send }
func (c *fakeClient) Run()                                 {}

func (c *fakeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
