package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shimizu-Technology/docvault-api/internal/models"
)

type memStore struct {
	mu         sync.Mutex
	hooks      []models.Webhook
	deliveries map[string]models.WebhookDelivery
	nextID     int
}

func newMemStore(hooks ...models.Webhook) *memStore {
	return &memStore{hooks: hooks, deliveries: map[string]models.WebhookDelivery{}}
}

func (m *memStore) GetActiveWebhooksForEvent(_ context.Context, ownerID, event string) ([]models.Webhook, error) {
	var out []models.Webhook
	for _, h := range m.hooks {
		if h.OwnerID == ownerID && h.Active && h.Subscribes(event) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *memStore) CreateWebhookDelivery(_ context.Context, d *models.WebhookDelivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	d.ID = string(rune('a' + m.nextID))
	m.deliveries[d.ID] = *d
	return nil
}

func (m *memStore) UpdateWebhookDelivery(_ context.Context, d *models.WebhookDelivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries[d.ID] = *d
	return nil
}

func (m *memStore) all() []models.WebhookDelivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.WebhookDelivery
	for _, d := range m.deliveries {
		out = append(out, d)
	}
	return out
}

func TestSignPayload(t *testing.T) {
	sig := SignPayload([]byte(`{"a":1}`), "secret")
	assert.Len(t, sig, 64)
	assert.Equal(t, sig, SignPayload([]byte(`{"a":1}`), "secret"))
	assert.NotEqual(t, sig, SignPayload([]byte(`{"a":2}`), "secret"))
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	require.NoError(t, err)
	b, err := GenerateSecret()
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestNotifyEventDeliversSignedPayload(t *testing.T) {
	var (
		mu      sync.Mutex
		gotBody []byte
		gotSig  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Webhook-Signature")
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store := newMemStore(models.Webhook{
		ID: "w1", OwnerID: "alice", URL: srv.URL, Secret: "s3cret", Active: true,
		Events: models.StringList{models.EventExtractionSucceeded},
	})
	s := New(store, nil)

	s.NotifyEvent(context.Background(), "alice", models.EventExtractionSucceeded, map[string]string{"job_id": "j1"})
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, SignPayload(gotBody, "s3cret"), gotSig)
	var payload struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, models.EventExtractionSucceeded, payload.Event)
	assert.Equal(t, "j1", payload.Data["job_id"])

	deliveries := store.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, StatusSuccess, deliveries[0].Status)
	assert.Equal(t, 1, deliveries[0].Attempts)
	assert.Equal(t, http.StatusNoContent, deliveries[0].ResponseCode)
	assert.NotNil(t, deliveries[0].DeliveredAt)
}

func TestNotifyEventIsOwnerScoped(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	store := newMemStore(models.Webhook{
		ID: "w1", OwnerID: "bob", URL: srv.URL, Active: true,
		Events: models.StringList{models.EventExtractionFailed},
	})
	s := New(store, nil)
	s.NotifyEvent(context.Background(), "alice", models.EventExtractionFailed, nil)
	s.Wait()

	assert.Zero(t, hits.Load())
	assert.Empty(t, store.all())
}

func TestDeliveryRetriesThenFails(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := newMemStore(models.Webhook{
		ID: "w1", OwnerID: "alice", URL: srv.URL, Active: true,
		Events: models.StringList{models.EventExtractionFailed},
	})
	s := New(store, nil)
	s.SetRetryDelays([]time.Duration{0, time.Millisecond, time.Millisecond})

	s.NotifyEvent(context.Background(), "alice", models.EventExtractionFailed, nil)
	s.Wait()

	assert.Equal(t, int32(3), hits.Load())
	deliveries := store.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, StatusFailed, deliveries[0].Status)
	assert.Equal(t, 3, deliveries[0].Attempts)
	assert.Equal(t, "HTTP 500", deliveries[0].LastError)
}

func TestShutdownAbortsPendingRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	store := newMemStore(models.Webhook{
		ID: "w1", OwnerID: "alice", URL: srv.URL, Active: true,
		Events: models.StringList{models.EventExtractionFailed},
	})
	s := New(store, nil)
	s.SetRetryDelays([]time.Duration{0, time.Hour})

	s.NotifyEvent(context.Background(), "alice", models.EventExtractionFailed, nil)
	time.Sleep(50 * time.Millisecond)
	s.Shutdown()
	s.Shutdown() // safe to call twice
	s.Wait()

	deliveries := store.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, StatusFailed, deliveries[0].Status)
	assert.Equal(t, "shutdown during delivery", deliveries[0].LastError)
}
