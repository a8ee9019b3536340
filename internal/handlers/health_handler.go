package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

// PendingCounter reports how many OTPs are awaiting verification.
type PendingCounter interface {
	PendingOTPs() int
}

type HealthResponse struct {
	Status      string `json:"status"`
	PendingOTPs int    `json:"pendingOtps"`
	SMSMode     string `json:"smsMode"`
}

type HealthHandler struct {
	pending PendingCounter
	smsLive bool
	logger  *logrus.Logger
}

func NewHealthHandler(pending PendingCounter, smsLive bool, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		pending: pending,
		smsLive: smsLive,
		logger:  logger,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	mode := "simulated"
	if h.smsLive {
		mode = "live"
	}

	respondWithJSON(w, h.logger, http.StatusOK, HealthResponse{
		Status:      "ok",
		PendingOTPs: h.pending.PendingOTPs(),
		SMSMode:     mode,
	})
}
