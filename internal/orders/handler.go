package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/xmbakery/bakeshop/internal/events"
	"github.com/xmbakery/bakeshop/pkg/models"
)

type EventPublisher interface {
	PublishOrderPlaced(event events.OrderPlacedEvent) error
}

type Broadcaster interface {
	Broadcast(messageType string, data interface{}, source string)
}

type SalesRanking interface {
	RecordSale(ctx context.Context, productID int64, quantity int) error
}

type Handler struct {
	service   *Service
	logger    *logrus.Logger
	publisher EventPublisher
	hub       Broadcaster
	ranking   SalesRanking
}

func NewHandler(service *Service, logger *logrus.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) SetPublisher(publisher EventPublisher) {
	h.publisher = publisher
}

func (h *Handler) SetBroadcaster(hub Broadcaster) {
	h.hub = hub
}

func (h *Handler) SetRanking(ranking SalesRanking) {
	h.ranking = ranking
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req models.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WithError(err).Error("Failed to decode order request")
		h.respondWithError(w, http.StatusBadRequest, "Invalid order")
		return
	}

	orderID, err := h.service.PlaceOrder(r.Context(), req)
	if err != nil {
		h.respondPlacementError(w, err)
		return
	}

	// Post-commit side effects are best effort and never fail the request.
	h.afterPlacement(r.Context(), orderID, req)

	h.respondWithJSON(w, http.StatusOK, models.PlaceOrderResponse{OrderID: orderID})
}

func (h *Handler) respondPlacementError(w http.ResponseWriter, err error) {
	var stockErr *InsufficientStockError
	switch {
	case errors.Is(err, ErrInvalidOrder):
		h.logger.WithError(err).Warn("Rejected order request")
		h.respondWithError(w, http.StatusBadRequest, "Invalid order")
	case errors.As(err, &stockErr):
		h.logger.WithField("product_id", stockErr.ProductID).Warn("Insufficient stock")
		h.respondWithError(w, http.StatusBadRequest,
			"Insufficient stock for product "+strconv.FormatInt(stockErr.ProductID, 10))
	default:
		h.logger.WithError(err).Error("Failed to place order")
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) afterPlacement(ctx context.Context, orderID int64, req models.PlaceOrderRequest) {
	if h.publisher != nil {
		event := events.OrderPlacedEvent{
			OrderID:       orderID,
			CustomerEmail: req.Customer.Email,
			Items:         req.Items,
			PlacedAt:      time.Now().UTC(),
		}
		if err := h.publisher.PublishOrderPlaced(event); err != nil {
			h.logger.WithError(err).Error("Failed to publish order placed event")
		}
	}

	if h.ranking != nil {
		for _, item := range req.Items {
			if err := h.ranking.RecordSale(ctx, item.ProductID, item.Quantity); err != nil {
				h.logger.WithError(err).Warn("Failed to record sale for ranking")
				break
			}
		}
	}

	if h.hub != nil {
		h.hub.Broadcast("order_placed", map[string]interface{}{
			"order_id":    orderID,
			"items_count": len(req.Items),
		}, "orders")
	}
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.GetOrders(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list orders")
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"count":  len(orders),
	})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	order, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.respondWithError(w, http.StatusNotFound, "Order not found")
			return
		}
		h.logger.WithError(err).Error("Failed to get order")
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, order)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.UpdateStatus(r.Context(), orderID, body.Status); err != nil {
		switch {
		case errors.Is(err, ErrInvalidOrder):
			h.respondWithError(w, http.StatusBadRequest, "Invalid status")
		case errors.Is(err, sql.ErrNoRows):
			h.respondWithError(w, http.StatusNotFound, "Order not found")
		default:
			h.logger.WithError(err).Error("Failed to update order status")
			h.respondWithError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"status": body.Status,
	})
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, models.ErrorResponse{Error: message})
}
