package events

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"nft_marketplace/internal/marketplace"
)

var (
	seller     = common.HexToAddress("0xf39Fd6e51aad88F6F4Ce6aB8827279cffFb92266")
	collection = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
)

func listed(id string) marketplace.Envelope {
	return marketplace.Envelope{
		ID:        id,
		EmittedAt: time.Now().UTC(),
		Event: marketplace.ItemListed{
			Seller: seller,
			Key:    marketplace.NewAssetKey(collection, big.NewInt(0)),
			Price:  big.NewInt(100),
		},
	}
}

type failingSink struct{ err error }

func (f failingSink) Emit(context.Context, marketplace.Envelope) error { return f.err }

func TestRecorder(t *testing.T) {
	r := NewRecorder(2)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.Emit(ctx, listed(id)))
	}

	got := r.Recent(0)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "c", got[1].ID)

	got = r.Recent(1)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)
}

func TestFanout(t *testing.T) {
	r := NewRecorder(0)
	boom := errors.New("boom")
	sink := Fanout{failingSink{err: boom}, r, NewLogSink(zaptest.NewLogger(t))}

	err := sink.Emit(context.Background(), listed("a"))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, r.Recent(0), 1, "later sinks still receive the event")
}

func TestWebhook(t *testing.T) {
	var (
		mu       sync.Mutex
		received []map[string]any
		keys     []string
		done     = make(chan struct{}, 2)
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		received = append(received, body)
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
		done <- struct{}{}
	}))
	defer server.Close()

	hook := NewWebhook(WebhookConfig{URL: server.URL, Timeout: time.Second}, zaptest.NewLogger(t))
	hook.Start(context.Background())

	require.NoError(t, hook.Emit(context.Background(), listed("evt-1")))
	require.NoError(t, hook.Emit(context.Background(), listed("evt-2")))
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("webhook did not deliver")
		}
	}
	require.NoError(t, hook.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, "evt-1", received[0]["id"])
	assert.Equal(t, "ItemListed", received[0]["event"])
	assert.Equal(t, "100", received[0]["price"])
	assert.Equal(t, []string{"evt-1", "evt-2"}, keys)

	assert.ErrorIs(t, hook.Emit(context.Background(), listed("late")), ErrWebhookClosed)
}

func TestWebhookQueueFull(t *testing.T) {
	hook := NewWebhook(WebhookConfig{URL: "http://127.0.0.1:1", QueueSize: 1}, zaptest.NewLogger(t))
	require.NoError(t, hook.Emit(context.Background(), listed("a")))
	assert.ErrorIs(t, hook.Emit(context.Background(), listed("b")), ErrQueueFull)
	require.NoError(t, hook.Close())
}

func TestHub(t *testing.T) {
	hub := NewHub(4, zaptest.NewLogger(t))
	server := httptest.NewServer(hub)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Emit(context.Background(), listed("evt-ws")))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "evt-ws", got["id"])
	assert.Equal(t, seller.Hex(), got["seller"])

	conn.Close()
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
