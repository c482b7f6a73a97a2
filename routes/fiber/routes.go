// Package fiber provides Fiber route registration for the shop API.
package fiber

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	merr "github.com/Moriyan1307/misprint-demo/errors"
	"github.com/Moriyan1307/misprint-demo/models"
	"github.com/Moriyan1307/misprint-demo/service"
)

// BuyResponse is the body returned by POST /buy/{id} on success.
type BuyResponse struct {
	Message   string    `json:"message"`
	ItemID    string    `json:"item_id"`
	OrderID   string    `json:"order_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ResetResponse is the body returned by POST /reset.
type ResetResponse struct {
	Message string         `json:"message"`
	Items   []*models.Item `json:"items"`
}

// defaultKeepAlive is the interval between SSE comment frames. Keep-alives
// make a dead connection fail the next flush even when no mutations are
// being committed, so the stream goroutine and its subscription are
// released promptly.
const defaultKeepAlive = 15 * time.Second

// Config holds configuration for the routes.
type Config struct {
	Service service.ShopService
	Logger  *slog.Logger

	// KeepAlive overrides the SSE keep-alive interval. Zero means the
	// default of 15 seconds.
	KeepAlive time.Duration
}

// Routes handles HTTP routes for the shop.
type Routes struct {
	service   service.ShopService
	logger    *slog.Logger
	keepAlive time.Duration
}

// NewRoutes creates a new Routes instance.
func NewRoutes(cfg Config) *Routes {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	keepAlive := cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	return &Routes{
		service:   cfg.Service,
		logger:    logger,
		keepAlive: keepAlive,
	}
}

// Register registers all shop routes on the given router.
func (r *Routes) Register(router fiber.Router) {
	router.Get("/status/:id", r.handleGetStatus)
	router.Get("/items", r.handleGetItems)
	router.Post("/buy/:id", r.handlePostBuy)
	router.Post("/reset", r.handlePostReset)
	router.Get("/events", r.handleEventsSSE)
}

// handleGetStatus returns the current state of an item
// @Summary Get item status
// @Description Returns the current quantity and sequence number of an item
// @Tags shop
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} models.Item
// @Failure 404 {object} errors.ErrorFields
// @Router /status/{id} [get]
func (r *Routes) handleGetStatus(c *fiber.Ctx) error {
	item, err := r.service.Status(c.UserContext(), c.Params("id"))
	if err != nil {
		return r.writeError(c, err)
	}
	return c.JSON(item)
}

// handleGetItems returns all items
// @Summary List items
// @Description Returns the current state of every item
// @Tags shop
// @Produce json
// @Success 200 {array} models.Item
// @Router /items [get]
func (r *Routes) handleGetItems(c *fiber.Ctx) error {
	items, err := r.service.Items(c.UserContext())
	if err != nil {
		return r.writeError(c, err)
	}
	if items == nil {
		items = []*models.Item{}
	}
	return c.JSON(items)
}

// handlePostBuy attempts to purchase one unit of an item
// @Summary Buy an item
// @Description Attempts to buy one unit. Returns 409 when the item is sold out.
// @Tags shop
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} BuyResponse
// @Failure 404 {object} errors.ErrorFields
// @Failure 409 {object} errors.ErrorFields
// @Router /buy/{id} [post]
func (r *Routes) handlePostBuy(c *fiber.Ctx) error {
	order, err := r.service.Purchase(c.UserContext(), c.Params("id"))
	if err != nil {
		return r.writeError(c, err)
	}

	return c.JSON(BuyResponse{
		Message:   "Purchase successful!",
		ItemID:    order.ItemID,
		OrderID:   order.OrderID,
		CreatedAt: order.CreatedAt,
	})
}

// handlePostReset restores all items to their initial quantity
// @Summary Reset the demo
// @Description Restores every item to its initial quantity and clears orders
// @Tags shop
// @Produce json
// @Success 200 {object} ResetResponse
// @Router /reset [post]
func (r *Routes) handlePostReset(c *fiber.Ctx) error {
	items, err := r.service.Reset(c.UserContext())
	if err != nil {
		return r.writeError(c, err)
	}

	return c.JSON(ResetResponse{
		Message: "Demo has been reset successfully.",
		Items:   items,
	})
}

// handleEventsSSE streams item state updates via SSE
// @Summary Stream state updates
// @Description Server-Sent Events stream. Opens with one snapshot frame per
// item, then an update frame for every committed mutation.
// @Tags shop
// @Produce text/event-stream
// @Success 200 {string} string "SSE stream of state updates"
// @Router /events [get]
func (r *Routes) handleEventsSSE(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	ctx := c.UserContext()

	// Subscribe before reading the snapshot so no committed update can fall
	// between the two. Updates older than the snapshot are filtered by seq.
	sub, snapshot, err := r.service.Subscribe(ctx)
	if err != nil {
		return r.writeError(c, err)
	}

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer r.service.Unsubscribe(sub)

		lastSeq := make(map[string]uint64, len(snapshot))
		for _, item := range snapshot {
			lastSeq[item.ID] = item.Seq
			if err := writeSSE(w, "snapshot", &models.StateUpdate{Item: *item, Timestamp: time.Now().UTC()}); err != nil {
				return
			}
		}
		// A failed write or flush is the disconnect signal; keep-alive
		// frames below guarantee one happens even on an idle stream.
		if err := w.Flush(); err != nil {
			return
		}

		keepAlive := time.NewTicker(r.keepAlive)
		defer keepAlive.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-keepAlive.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			case update, ok := <-sub.C:
				if !ok {
					return
				}
				if update.Item.Seq <= lastSeq[update.Item.ID] {
					continue
				}
				lastSeq[update.Item.ID] = update.Item.Seq

				if err := writeSSE(w, "update", update); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}

// HandleGetHealth returns the health status
// @Summary Health check
// @Description Returns the health status of the service
// @Tags shop
// @Produce text/plain
// @Success 200 {string} string "OK"
// @Failure 503 {string} string "Service Unavailable"
// @Router /health [get]
func (r *Routes) HandleGetHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if _, err := r.service.Items(ctx); err != nil {
		return c.Status(int(merr.StatusUnavailable)).SendString("Store connection failed")
	}

	return c.SendString("OK")
}

// writeError maps a service error onto the shared ErrorFields shape.
func (r *Routes) writeError(c *fiber.Ctx, err error) error {
	shopErr := merr.GetShopError(err)
	if shopErr == nil {
		r.logger.Error("unhandled error", slog.String("error", err.Error()))
		fields := merr.NewErrorFields(merr.StatusInternal, "")
		return c.Status(fields.Status).JSON(fields)
	}

	fields := shopErr.ToErrorFields()
	return c.Status(fields.Status).JSON(fields)
}

// writeSSE writes a single SSE frame.
func writeSSE(w *bufio.Writer, event string, update *models.StateUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return nil
}
