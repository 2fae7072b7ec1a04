package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshkanYarmoradi/go-herald"
)

type received struct {
	path    string
	body    string
	headers http.Header
}

// recorder returns a test server answering status and the requests it saw.
func recorder(t *testing.T, status int) (*httptest.Server, func() []received) {
	t.Helper()
	var (
		mu  sync.Mutex
		got []received
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, received{path: r.URL.Path, body: string(body), headers: r.Header.Clone()})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []received {
		mu.Lock()
		defer mu.Unlock()
		return append([]received(nil), got...)
	}
}

func notification(destination string) *herald.Notification {
	return &herald.Notification{
		ID:          "n-1",
		EventName:   "-send-email",
		Destination: destination,
		Payload:     []byte(`{"to":"a@example.com"}`),
		Headers: map[string]string{
			herald.HeaderEventName:     "-send-email",
			herald.HeaderCorrelationID: "corr-1",
		},
	}
}

func TestPublisher_Destination(t *testing.T) {
	assert.Equal(t, "webhook", New().Destination())
}

func TestNew_Options(t *testing.T) {
	client := &http.Client{}
	p := New(
		WithHTTPClient(client),
		WithTimeout(5*time.Second),
		WithDefaultHeaders(map[string]string{"Authorization": "Bearer token"}),
	)

	assert.Same(t, client, p.client)
	assert.Equal(t, 5*time.Second, client.Timeout)
	assert.Equal(t, "Bearer token", p.defaultHeaders["Authorization"])
	assert.Equal(t, "application/json", p.defaultHeaders["Content-Type"])
}

func TestPublisher_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("posts payload and headers", func(t *testing.T) {
		srv, requests := recorder(t, http.StatusAccepted)
		p := New(WithDefaultHeaders(map[string]string{"Authorization": "Bearer token"}))

		require.NoError(t, p.Publish(ctx, []*herald.Notification{notification("webhook:" + srv.URL + "/hooks")}))

		got := requests()
		require.Len(t, got, 1)
		assert.Equal(t, "/hooks", got[0].path)
		assert.Equal(t, `{"to":"a@example.com"}`, got[0].body)
		assert.Equal(t, "application/json", got[0].headers.Get("Content-Type"))
		assert.Equal(t, "Bearer token", got[0].headers.Get("Authorization"))
		assert.Equal(t, "n-1", got[0].headers.Get("X-Herald-Notification-Id"))
		assert.Equal(t, "-send-email", got[0].headers.Get("X-Herald-Event-Name"))
		assert.Equal(t, "corr-1", got[0].headers.Get("X-Herald-Correlation-Id"))
	})

	t.Run("client error", func(t *testing.T) {
		srv, _ := recorder(t, http.StatusBadRequest)
		err := New().Publish(ctx, []*herald.Notification{notification("webhook:" + srv.URL)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "client error 400")
	})

	t.Run("server error", func(t *testing.T) {
		srv, _ := recorder(t, http.StatusBadGateway)
		err := New().Publish(ctx, []*herald.Notification{notification("webhook:" + srv.URL)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server error 502")
	})

	t.Run("missing URL", func(t *testing.T) {
		err := New().Publish(ctx, []*herald.Notification{notification("webhook:")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing URL")
	})

	t.Run("failure does not stop the rest", func(t *testing.T) {
		bad, _ := recorder(t, http.StatusInternalServerError)
		good, requests := recorder(t, http.StatusOK)

		err := New().Publish(ctx, []*herald.Notification{
			notification("webhook:" + bad.URL),
			notification("webhook:" + good.URL),
		})
		require.Error(t, err)
		assert.Len(t, requests(), 1)
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv, requests := recorder(t, http.StatusOK)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		err := New().Publish(cctx, []*herald.Notification{notification("webhook:" + srv.URL)})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, requests())
	})
}

func TestPublisher_WithForwarder(t *testing.T) {
	srv, requests := recorder(t, http.StatusOK)

	f := herald.NewForwarder([]herald.ForwardRoute{{Destination: "webhook:" + srv.URL}})
	f.Register(New())

	agg := &newsletter{Recipients: []string{"a@example.com", "b@example.com"}}
	agg.EventManager().Attach(herald.WildcardEvent, f.Listener())

	_, err := agg.Execute(context.Background())
	require.NoError(t, err)

	got := requests()
	require.Len(t, got, 2)
	assert.Equal(t, "-deliver", got[0].headers.Get("X-Herald-Event-Name"))
	assert.Contains(t, got[1].body, "b@example.com")
}

type Deliver struct {
	herald.CommandBase
	To string `json:"to"`
}

func (c *Deliver) Execute(ctx context.Context) (interface{}, error) { return c.To, nil }

type newsletter struct {
	herald.AggregateCommandBase
	Recipients []string
}

func (c *newsletter) Execute(ctx context.Context) (interface{}, error) {
	for _, to := range c.Recipients {
		if _, err := c.ExecuteChild(ctx, &Deliver{To: to}, ""); err != nil {
			return nil, err
		}
	}
	return nil, nil
}
