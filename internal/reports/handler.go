package reports

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/xmbakery/bakeshop/pkg/models"
)

const defaultTopN = 10

type Handler struct {
	service *Service
	ranking Ranking
	logger  *logrus.Logger
}

func NewHandler(service *Service, logger *logrus.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) SetRanking(ranking Ranking) {
	h.ranking = ranking
}

func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Sales(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to build sales report")
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, report)
}

func (h *Handler) Bestsellers(w http.ResponseWriter, r *http.Request) {
	if h.ranking == nil {
		h.respondWithError(w, http.StatusServiceUnavailable, "Ranking not configured")
		return
	}

	n := int64(defaultTopN)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			h.respondWithError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		n = parsed
	}

	ranks, err := h.ranking.Top(r.Context(), n)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get bestsellers")
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"bestsellers": ranks,
		"count":       len(ranks),
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
