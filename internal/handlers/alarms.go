package handlers

import (
	"net/http"
	"time"

	"adbudget/internal/websocket"
)

// parseDate resolves the optional ?date=YYYY-MM-DD query parameter,
// defaulting to yesterday, the newest fully attributed day.
func parseDate(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1), nil
	}
	return time.Parse("2006-01-02", raw)
}

func (h *Handler) PacingAlarms(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}
	alarms, err := h.monitor.AuditSpendPatterns(r.Context(), date,
		h.cfg.FirstInMonthThresholdDecimal(), h.cfg.PacingThresholdDecimal(), h.cfg.PacingDayRange)
	if err != nil {
		h.logger.Error("pacing audit failed", "error", err)
		respondError(w, http.StatusInternalServerError, "pacing audit failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"date":   date.Format("2006-01-02"),
		"alarms": alarms,
	})
}

func (h *Handler) IntegrityAlarms(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}
	alarms, err := h.monitor.AuditSpendIntegrity(r.Context(), date)
	if err != nil {
		h.logger.Error("integrity audit failed", "error", err)
		respondError(w, http.StatusInternalServerError, "integrity audit failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"date":   date.Format("2006-01-02"),
		"alarms": alarms,
	})
}

func (h *Handler) WSAlarms(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	switch topic {
	case "":
		topic = websocket.TopicPacing
	case websocket.TopicPacing, websocket.TopicIntegrity:
	default:
		respondError(w, http.StatusBadRequest, "unknown topic")
		return
	}
	websocket.ServeWS(w, r, h.hub, topic)
}
