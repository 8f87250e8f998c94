package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/tickethub/internal/model"
)

// QueuedMessage is the body returned when a purchase was enqueued.
const QueuedMessage = "Ticket purchase queued successfully."

// Publisher enqueues one raw purchase payload.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// PurchaseHandler is the intake side of the pipeline.  It holds no
// per-request state and may serve any number of concurrent requests.
type PurchaseHandler struct {
	Publisher Publisher
}

// NewPurchaseHandler constructs a PurchaseHandler.  The publisher must be
// non-nil.
func NewPurchaseHandler(p Publisher) *PurchaseHandler {
	if p == nil {
		panic("nil publisher passed to NewPurchaseHandler")
	}
	return &PurchaseHandler{Publisher: p}
}

// Purchase handles POST /purchase.  The body is parsed only to reject
// malformed JSON; business rules such as quantity >= 1 are left to the
// consumer.  The original bytes, not a re-encoding, are published.  Parse
// and publish failures both answer 400 with the error text.
func (h *PurchaseHandler) Purchase(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		c.Logger().Warnj(log.JSON{"event": "purchase_rejected", "error": err.Error()})
		return c.String(http.StatusBadRequest, "Error: "+err.Error())
	}

	req, err := model.Decode(body)
	if err != nil {
		c.Logger().Warnj(log.JSON{"event": "purchase_rejected", "error": err.Error(), "bytes": len(body)})
		return c.String(http.StatusBadRequest, "Error: "+err.Error())
	}

	fields := req.LogFields()
	fields["remote_ip"] = c.RealIP()

	// TODO: answer 503 and retry the publish with backoff once callers can
	// distinguish a queue outage from a bad request.
	if err := h.Publisher.Publish(c.Request().Context(), body); err != nil {
		fields["event"] = "purchase_enqueue_failed"
		fields["error"] = err.Error()
		c.Logger().Errorj(fields)
		return c.String(http.StatusBadRequest, "Error: "+err.Error())
	}

	fields["event"] = "purchase_queued"
	c.Logger().Infoj(fields)
	return c.String(http.StatusOK, QueuedMessage)
}
