// Package push keeps this device registered with the server's background
// delivery channel and feeds delivered reminders into the coordinator's
// dedup path. Registration state lives for one session only and is rebuilt
// on every login.
package push

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"karas-agent/internal/api"
	"karas-agent/internal/messages"
	"karas-agent/internal/models"
)

// Registrar is the server side of the subscription handshake.
type Registrar interface {
	VapidPublicKey(ctx context.Context) (string, error)
	SubscribePush(ctx context.Context, sub models.PushSubscription) error
}

// Availability reports whether a delivered reminder could actually be
// rendered; subscribing without it is the moral equivalent of asking for
// notification permission and being denied.
type Availability interface {
	Available() bool
}

type Manager struct {
	mu       sync.Mutex
	endpoint string
	token    string
	deviceID string
	reg      Registrar
	sink     Availability
	handle   func(models.PushPayload)

	status models.SubscriptionStatus
	reason string
	conn   *websocket.Conn
}

func NewManager(endpoint, token string, reg Registrar, sink Availability, handle func(models.PushPayload)) *Manager {
	return &Manager{
		endpoint: endpoint,
		token:    token,
		deviceID: uuid.NewString(),
		reg:      reg,
		sink:     sink,
		handle:   handle,
		status:   models.SubscriptionUnset,
	}
}

// Status returns the current state and, when failed, an actionable reason.
func (m *Manager) Status() (models.SubscriptionStatus, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.reason
}

// Subscribe runs the registration sequence once:
// unset -> pending -> {active | failed(reason)}. No internal retries; a
// failure stands until Retry.
func (m *Manager) Subscribe(ctx context.Context) error {
	m.mu.Lock()
	if m.status == models.SubscriptionPending {
		m.mu.Unlock()
		return nil
	}
	m.status = models.SubscriptionPending
	m.reason = ""
	m.mu.Unlock()

	if m.endpoint == "" {
		return m.fail(messages.PushUnsupported)
	}
	if m.sink != nil && !m.sink.Available() {
		return m.fail(messages.PushPermission)
	}

	key, err := m.reg.VapidPublicKey(ctx)
	if err != nil {
		return m.fail(classify(err))
	}

	sub := models.PushSubscription{
		Endpoint: m.endpoint,
		DeviceID: m.deviceID,
		Keys:     models.SubscriptionKeys{Auth: uuid.NewString()},
	}
	if err := m.reg.SubscribePush(ctx, sub); err != nil {
		return m.fail(classify(err))
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+m.token)
	header.Set("X-Karas-Device", m.deviceID)
	header.Set("X-Karas-Key", key)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, m.endpoint, header)
	if err != nil {
		return m.fail(messages.PushNetwork)
	}

	m.mu.Lock()
	m.status = models.SubscriptionActive
	m.conn = conn
	m.mu.Unlock()

	go m.listen(conn)
	return nil
}

// Retry re-enters pending and repeats the whole sequence.
func (m *Manager) Retry(ctx context.Context) error {
	m.mu.Lock()
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.status = models.SubscriptionUnset
	m.mu.Unlock()
	return m.Subscribe(ctx)
}

func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.status = models.SubscriptionUnset
}

// listen delivers payloads until the socket dies. The read loop does not
// reconnect on its own: the next session (or a manual retry) re-registers.
func (m *Manager) listen(conn *websocket.Conn) {
	for {
		var p models.PushPayload
		if err := conn.ReadJSON(&p); err != nil {
			log.Println("push: listener stopped:", err)
			m.mu.Lock()
			if m.conn == conn {
				m.conn = nil
				m.status = models.SubscriptionFailed
				m.reason = messages.PushNetwork
			}
			m.mu.Unlock()
			return
		}
		if p.ID == 0 {
			log.Println("push: dropping payload without id")
			continue
		}
		m.handle(p)
	}
}

func (m *Manager) fail(reason string) error {
	m.mu.Lock()
	m.status = models.SubscriptionFailed
	m.reason = reason
	m.mu.Unlock()
	return errors.New(reason)
}

func classify(err error) string {
	var netErr *api.NetworkError
	switch {
	case errors.Is(err, api.ErrSessionExpired):
		return messages.PushSession
	case errors.As(err, &netErr):
		return messages.PushNetwork
	default:
		return messages.PushServer
	}
}
