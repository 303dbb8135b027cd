package products

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

type Handler struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewHandler(db *sql.DB, logger *logrus.Logger) *Handler {
	return &Handler{
		db:     db,
		logger: logger,
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var product models.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if product.Name == "" || product.Price <= 0 || product.Quantity < 0 {
		h.respondWithError(w, http.StatusBadRequest, "Invalid product")
		return
	}

	err := h.db.QueryRowContext(r.Context(), `
		INSERT INTO products (name, price, category, quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		product.Name, product.Price, product.Category, product.Quantity,
	).Scan(&product.ID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create product")
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.WithFields(logrus.Fields{
		"product_id": product.ID,
		"name":       product.Name,
	}).Info("Product created")

	h.respondWithJSON(w, http.StatusCreated, product)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.QueryContext(r.Context(), `
		SELECT id, name, price, category, quantity
		FROM products ORDER BY id`)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list products")
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var product models.Product
		if err := rows.Scan(&product.ID, &product.Name, &product.Price, &product.Category, &product.Quantity); err != nil {
			h.logger.WithError(err).Error("Failed to scan product")
			h.respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, products)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	var product models.Product
	err = h.db.QueryRowContext(r.Context(), `
		SELECT id, name, price, category, quantity
		FROM products WHERE id = $1`, productID,
	).Scan(&product.ID, &product.Name, &product.Price, &product.Category, &product.Quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.respondWithError(w, http.StatusNotFound, "Product not found")
			return
		}
		h.logger.WithError(err).Error("Failed to get product")
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, product)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	var product models.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if product.Name == "" || product.Price <= 0 || product.Quantity < 0 {
		h.respondWithError(w, http.StatusBadRequest, "Invalid product")
		return
	}

	res, err := h.db.ExecContext(r.Context(), `
		UPDATE products
		SET name = $1, price = $2, category = $3, quantity = $4
		WHERE id = $5`,
		product.Name, product.Price, product.Category, product.Quantity, productID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to update product")
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	affected, err := res.RowsAffected()
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if affected == 0 {
		h.respondWithError(w, http.StatusNotFound, "Product not found")
		return
	}

	product.ID = productID
	h.respondWithJSON(w, http.StatusOK, product)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	res, err := h.db.ExecContext(r.Context(), `DELETE FROM products WHERE id = $1`, productID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to delete product")
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	affected, err := res.RowsAffected()
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if affected == 0 {
		h.respondWithError(w, http.StatusNotFound, "Product not found")
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
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
