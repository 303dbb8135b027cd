package deliveries

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/xmbakery/bakeshop/pkg/models"
)

const (
	StatusPending        = "pending"
	StatusOutForDelivery = "out-for-delivery"
	StatusDelivered      = "delivered"
)

var validStatuses = map[string]bool{
	StatusPending:        true,
	StatusOutForDelivery: true,
	StatusDelivered:      true,
}

type Broadcaster interface {
	Broadcast(messageType string, data interface{}, source string)
}

type Handler struct {
	db     *sql.DB
	logger *logrus.Logger
	hub    Broadcaster
}

func NewHandler(db *sql.DB, logger *logrus.Logger) *Handler {
	return &Handler{
		db:     db,
		logger: logger,
	}
}

func (h *Handler) SetBroadcaster(hub Broadcaster) {
	h.hub = hub
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(mux.Vars(r)["orderId"], 10, 64)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	var delivery models.Delivery
	err = h.db.QueryRowContext(r.Context(), `
		SELECT order_id, status, location
		FROM deliveries WHERE order_id = $1`, orderID,
	).Scan(&delivery.OrderID, &delivery.Status, &delivery.Location)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.respondWithError(w, http.StatusNotFound, "Delivery not found")
			return
		}
		h.logger.WithError(err).Error("Failed to get delivery")
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, delivery)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(mux.Vars(r)["orderId"], 10, 64)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	var body struct {
		Status   string  `json:"status"`
		Location *string `json:"location,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !validStatuses[body.Status] {
		h.respondWithError(w, http.StatusBadRequest, "Invalid delivery status")
		return
	}

	res, err := h.db.ExecContext(r.Context(), `
		UPDATE deliveries
		SET status = $1, location = COALESCE($2, location)
		WHERE order_id = $3`,
		body.Status, body.Location, orderID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to update delivery")
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	affected, err := res.RowsAffected()
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if affected == 0 {
		h.respondWithError(w, http.StatusNotFound, "Delivery not found")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   body.Status,
	}).Info("Delivery updated")

	if h.hub != nil {
		h.hub.Broadcast("delivery_updated", map[string]interface{}{
			"order_id": orderID,
			"status":   body.Status,
		}, "deliveries")
	}

	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": body.Status})
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
