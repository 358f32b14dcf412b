package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type wsTestServer struct {
	server     *httptest.Server
	subscribes chan subscribeFrame
	send       chan []byte
	done       chan struct{}
}

func newWSTestServer(t *testing.T) *wsTestServer {
	t.Helper()

	s := &wsTestServer{
		subscribes: make(chan subscribeFrame, 10),
		send:       make(chan []byte, 10),
		done:       make(chan struct{}),
	}

	upgrader := websocket.Upgrader{}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		go func() {
			for {
				_, payload, err := conn.ReadMessage()
				if err != nil {
					return
				}
				var frame subscribeFrame
				if json.Unmarshal(payload, &frame) == nil && frame.Op == "subscribe" {
					s.subscribes <- frame
				}
			}
		}()

		for {
			select {
			case payload := <-s.send:
				if conn.WriteMessage(websocket.TextMessage, payload) != nil {
					return
				}
			case <-s.done:
				return
			}
		}
	}))

	t.Cleanup(func() {
		close(s.done)
		s.server.Close()
	})
	return s
}

func (s *wsTestServer) url() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func newStreamClient(t *testing.T, url string) *Client {
	t.Helper()

	client, err := New(&Config{
		URL:          url,
		DialTimeout:  time.Second,
		PingInterval: 50 * time.Millisecond,
		PongTimeout:  2 * time.Second,
		Backoff: BackoffConfig{
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     100 * time.Millisecond,
			Multiplier:   2,
		},
		BufferSize: 16,
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)
	return client
}

func TestClient_SubscribeAndReceive(t *testing.T) {
	server := newWSTestServer(t)
	client := newStreamClient(t, server.url())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, client.Start(ctx))
	defer client.Close()

	require.NoError(t, client.Subscribe([]string{"csgo/AK-47 Redline"}))

	select {
	case frame := <-server.subscribes:
		assert.Equal(t, []string{"csgo/AK-47 Redline"}, frame.Queries)
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe frame never reached the server")
	}

	server.send <- []byte(`{"query":"csgo/AK-47 Redline","bestBid":9500,"bidders":2,"timestamp":1700000000000}`)

	select {
	case update := <-client.Updates():
		assert.Equal(t, "csgo/AK-47 Redline", update.QueryKey)
		assert.Equal(t, int64(9500), update.BestBid)
		assert.Equal(t, 2, update.Bidders)
	case <-time.After(2 * time.Second):
		t.Fatal("bid update never arrived")
	}
}

func TestClient_MalformedMessagesDropped(t *testing.T) {
	server := newWSTestServer(t)
	client := newStreamClient(t, server.url())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, client.Start(ctx))
	defer client.Close()

	server.send <- []byte("not-json")
	server.send <- []byte(`{"bestBid": 1}`) // missing query key
	server.send <- []byte(`{"query":"csgo/AWP Asiimov","bestBid":20000}`)

	select {
	case update := <-client.Updates():
		assert.Equal(t, "csgo/AWP Asiimov", update.QueryKey)
	case <-time.After(2 * time.Second):
		t.Fatal("valid update never arrived")
	}

	select {
	case update := <-client.Updates():
		t.Fatalf("unexpected extra update: %+v", update)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClient_SubscriptionDeduplicated(t *testing.T) {
	server := newWSTestServer(t)
	client := newStreamClient(t, server.url())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, client.Start(ctx))
	defer client.Close()

	require.NoError(t, client.Subscribe([]string{"csgo/AK-47 Redline"}))
	require.NoError(t, client.Subscribe([]string{"csgo/AK-47 Redline"}))

	select {
	case <-server.subscribes:
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe frame never reached the server")
	}

	select {
	case frame := <-server.subscribes:
		t.Fatalf("duplicate subscription sent: %+v", frame)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClient_CloseStopsUpdates(t *testing.T) {
	server := newWSTestServer(t)
	client := newStreamClient(t, server.url())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, client.Start(ctx))

	require.NoError(t, client.Close())

	_, open := <-client.Updates()
	assert.False(t, open, "updates channel must be closed after Close")
}

func TestClient_CloseWhileReceiving(t *testing.T) {
	server := newWSTestServer(t)
	client := newStreamClient(t, server.url())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, client.Start(ctx))

	// Keep messages in flight so a reader can be mid-delivery when Close
	// tears the connection down and closes the updates channel.
	go func() {
		payload := []byte(`{"query":"csgo/AK-47 Redline","bestBid":9500,"bidders":2,"timestamp":1700000000000}`)
		for i := 0; i < 50; i++ {
			select {
			case server.send <- payload:
			case <-server.done:
				return
			}
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, client.Close())

	// A reader still running past Close would panic sending on the closed
	// channel; draining proves the channel closed cleanly instead.
	for range client.Updates() {
	}
}

func TestClient_InitialConnectFailure(t *testing.T) {
	client := newStreamClient(t, "ws://127.0.0.1:1/nope")

	err := client.Start(context.Background())
	require.Error(t, err)
}
