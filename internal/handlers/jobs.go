package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type reprocessRequest struct {
	CampaignID string `json:"campaign_id"`
	From       string `json:"from"`
	To         string `json:"to"`
}

// Reprocess re-runs spend attribution for a campaign over a date range,
// or kicks off a full pipeline pass when no campaign is given. The full
// pass runs in the background; the per-campaign path is synchronous so
// the caller sees its outcome.
func (h *Handler) Reprocess(w http.ResponseWriter, r *http.Request) {
	var req reprocessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.CampaignID == "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
			defer cancel()
			if err := h.jobs.Run(ctx); err != nil {
				h.logger.Error("background pipeline run failed", "error", err)
			}
		}()
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "pipeline run started"})
		return
	}

	from, err := time.Parse("2006-01-02", req.From)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid from date, want YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", req.To)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid to date, want YYYY-MM-DD")
		return
	}
	if from.After(to) {
		respondError(w, http.StatusBadRequest, "from after to")
		return
	}

	campaign, err := h.campaigns.GetByID(r.Context(), req.CampaignID)
	if err != nil {
		respondError(w, http.StatusNotFound, "campaign not found")
		return
	}
	if err := h.attribution.ProcessCampaign(r.Context(), campaign, from, to); err != nil {
		h.logger.Error("reprocess failed",
			"campaign_id", campaign.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "reprocess failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":      "reprocessed",
		"campaign_id": campaign.ID,
	})
}
