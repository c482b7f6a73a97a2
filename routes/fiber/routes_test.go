package fiber

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	misprint "github.com/Moriyan1307/misprint-demo"
	merr "github.com/Moriyan1307/misprint-demo/errors"
	eventsmem "github.com/Moriyan1307/misprint-demo/events/memory"
	"github.com/Moriyan1307/misprint-demo/models"
	"github.com/Moriyan1307/misprint-demo/service/embedded"
	storemem "github.com/Moriyan1307/misprint-demo/store/memory"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	st := storemem.NewStore()
	require.NoError(t, st.SeedItem(context.Background(), &models.Item{
		ID:              "charizard-1st-ed",
		Name:            "1st Edition Charizard",
		Quantity:        1,
		InitialQuantity: 1,
	}))

	coordinator, err := misprint.New(misprint.Config{
		Store:     st,
		Publisher: eventsmem.NewBroker(64, nil),
	})
	require.NoError(t, err)

	svc, err := embedded.New(coordinator)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = svc.Close()
	})

	app := fiber.New()
	routes := NewRoutes(Config{Service: svc})
	routes.Register(app)
	app.Get("/health", routes.HandleGetHealth)

	return app
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, v))
}

func TestRoutes_GetStatus(t *testing.T) {
	app := newTestApp(t)

	req, _ := http.NewRequest(http.MethodGet, "/status/charizard-1st-ed", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var item models.Item
	decode(t, resp, &item)
	assert.Equal(t, "charizard-1st-ed", item.ID)
	assert.Equal(t, int64(1), item.Quantity)
}

func TestRoutes_GetStatusNotFound(t *testing.T) {
	app := newTestApp(t)

	req, _ := http.NewRequest(http.MethodGet, "/status/no-such-item", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var fields merr.ErrorFields
	decode(t, resp, &fields)
	assert.Equal(t, "Not found", fields.Title)
	assert.Equal(t, http.StatusNotFound, fields.Status)
}

func TestRoutes_GetItems(t *testing.T) {
	app := newTestApp(t)

	req, _ := http.NewRequest(http.MethodGet, "/items", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var items []*models.Item
	decode(t, resp, &items)
	require.Len(t, items, 1)
}

func TestRoutes_PostBuy(t *testing.T) {
	app := newTestApp(t)

	req, _ := http.NewRequest(http.MethodPost, "/buy/charizard-1st-ed", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var buy BuyResponse
	decode(t, resp, &buy)
	assert.Equal(t, "Purchase successful!", buy.Message)
	assert.Equal(t, "charizard-1st-ed", buy.ItemID)
	assert.NotEmpty(t, buy.OrderID)
}

func TestRoutes_PostBuySoldOut(t *testing.T) {
	app := newTestApp(t)

	req, _ := http.NewRequest(http.MethodPost, "/buy/charizard-1st-ed", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodPost, "/buy/charizard-1st-ed", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var fields merr.ErrorFields
	decode(t, resp, &fields)
	assert.Equal(t, "Out of stock", fields.Title)
	assert.Equal(t, "Item is sold out", fields.Detail)
}

func TestRoutes_PostBuyUnknownItem(t *testing.T) {
	app := newTestApp(t)

	req, _ := http.NewRequest(http.MethodPost, "/buy/no-such-item", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoutes_PostReset(t *testing.T) {
	app := newTestApp(t)

	req, _ := http.NewRequest(http.MethodPost, "/buy/charizard-1st-ed", nil)
	_, err := app.Test(req)
	require.NoError(t, err)

	req, _ = http.NewRequest(http.MethodPost, "/reset", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var reset ResetResponse
	decode(t, resp, &reset)
	assert.Equal(t, "Demo has been reset successfully.", reset.Message)
	require.Len(t, reset.Items, 1)
	assert.Equal(t, int64(1), reset.Items[0].Quantity)

	// The item is buyable again after the reset.
	req, _ = http.NewRequest(http.MethodPost, "/buy/charizard-1st-ed", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// newSSETestServer serves the routes on a real listener so the event stream
// can be read incrementally.
func newSSETestServer(t *testing.T, quantity int64) (*misprint.Coordinator, *eventsmem.Broker, string) {
	t.Helper()

	st := storemem.NewStore()
	require.NoError(t, st.SeedItem(context.Background(), &models.Item{
		ID:              "charizard-1st-ed",
		Name:            "1st Edition Charizard",
		Quantity:        quantity,
		InitialQuantity: quantity,
	}))

	broker := eventsmem.NewBroker(64, nil)
	coordinator, err := misprint.New(misprint.Config{Store: st, Publisher: broker})
	require.NoError(t, err)

	svc, err := embedded.New(coordinator)
	require.NoError(t, err)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	routes := NewRoutes(Config{Service: svc, KeepAlive: 50 * time.Millisecond})
	routes.Register(app)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = app.Listener(ln)
	}()
	t.Cleanup(func() {
		_ = app.Shutdown()
		_ = svc.Close()
	})

	return coordinator, broker, "http://" + ln.Addr().String()
}

func openEventStream(t *testing.T, baseURL string) *bufio.Reader {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	return bufio.NewReader(resp.Body)
}

// readFrame reads the next event/data frame, skipping keep-alive comments.
func readFrame(t *testing.T, r *bufio.Reader) (string, models.StateUpdate) {
	t.Helper()

	var event, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")

		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "" && data != "":
			var update models.StateUpdate
			require.NoError(t, json.Unmarshal([]byte(data), &update))
			return event, update
		}
	}
}

func TestRoutes_EventsSSE(t *testing.T) {
	coordinator, broker, baseURL := newSSETestServer(t, 3)
	ctx := context.Background()

	// A mutation committed before the connect shows up in the snapshot.
	_, err := coordinator.Purchase(ctx, "charizard-1st-ed")
	require.NoError(t, err)

	reader := openEventStream(t, baseURL)

	event, update := readFrame(t, reader)
	assert.Equal(t, "snapshot", event)
	assert.Equal(t, uint64(1), update.Item.Seq)
	assert.Equal(t, int64(2), update.Item.Quantity)

	// An event no newer than the snapshot must not reach the stream.
	require.NoError(t, broker.Publish(ctx, &models.StateUpdate{
		Item:      models.Item{ID: "charizard-1st-ed", Quantity: 2, Seq: 1},
		Timestamp: time.Now().UTC(),
	}))

	_, err = coordinator.Purchase(ctx, "charizard-1st-ed")
	require.NoError(t, err)

	event, update = readFrame(t, reader)
	assert.Equal(t, "update", event)
	assert.Equal(t, uint64(2), update.Item.Seq)
	assert.Equal(t, int64(1), update.Item.Quantity)
}

func TestRoutes_EventsSSEKeepAlive(t *testing.T) {
	_, _, baseURL := newSSETestServer(t, 1)

	reader := openEventStream(t, baseURL)

	event, _ := readFrame(t, reader)
	require.Equal(t, "snapshot", event)

	// With no mutations the stream still emits comment frames.
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, ":") {
			return
		}
	}
}

func TestRoutes_Health(t *testing.T) {
	app := newTestApp(t)

	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))
}
