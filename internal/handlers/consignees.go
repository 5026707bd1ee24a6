package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"tendertrack/db"
	"tendertrack/internal/tracking"
)

// GetConsigneesHandler обрабатывает GET /api/consignees, фильтр по районам
// через запятую в query-параметре districts.
func (h *Handler) GetConsigneesHandler(w http.ResponseWriter, r *http.Request) {
	var districts []string
	if raw := r.URL.Query().Get("districts"); raw != "" {
		for _, d := range strings.Split(raw, ",") {
			if d = strings.TrimSpace(d); d != "" {
				districts = append(districts, d)
			}
		}
	}

	consignees, err := h.Store.GetConsignees(r.Context(), districts)
	if err != nil {
		h.Log.Error("get consignees", zap.Error(err))
		http.Error(w, "Failed to get consignees", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, consignees)
}

// GetConsigneeDetailsHandler обрабатывает GET /api/consignees/{id}/details:
// грузополучатель вместе с записями документов по этапам.
func (h *Handler) GetConsigneeDetailsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		http.Error(w, "Invalid consignee id", http.StatusBadRequest)
		return
	}

	consignee, err := h.Store.GetConsignee(r.Context(), id)
	if err != nil {
		http.Error(w, "Consignee not found", http.StatusNotFound)
		return
	}
	artifacts, err := h.Store.ArtifactsForConsignee(r.Context(), id)
	if err != nil {
		h.Log.Error("get consignee artifacts", zap.Error(err))
		http.Error(w, "Failed to get artifacts", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		*db.Consignee
		Artifacts []db.StageArtifact `json:"artifacts"`
	}{consignee, artifacts})
}

// GetConsigneeFilesHandler обрабатывает GET /api/consignees/{id}/files/{type}.
// Без записи по этапу список файлов пустой.
func (h *Handler) GetConsigneeFilesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		http.Error(w, "Invalid consignee id", http.StatusBadRequest)
		return
	}
	stage := tracking.Stage(chi.URLParam(r, "type"))
	if !stage.Valid() {
		http.Error(w, "Invalid file type", http.StatusBadRequest)
		return
	}

	files := []string{}
	artifact, err := h.Store.GetStageArtifact(r.Context(), id, string(stage))
	switch {
	case err == nil:
		files = []string(artifact.Locators)
	case errors.Is(err, sql.ErrNoRows):
		// записи ещё нет — пустой список
	default:
		h.Log.Error("get stage files", zap.Error(err))
		http.Error(w, "Failed to get files", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{"files": files})
}

// UpdateConsigneeHandler обрабатывает PATCH /api/consignees/{id}. Здесь
// меняются только описательные поля объекта; статус груза и чеклист
// аксессуаров пишет трекер.
func (h *Handler) UpdateConsigneeHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		http.Error(w, "Invalid consignee id", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Cannot read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var input struct {
		SrNo         *string `json:"srNo"`
		DistrictName *string `json:"districtName"`
		BlockName    *string `json:"blockName"`
		FacilityName *string `json:"facilityName"`
		SerialNumber *string `json:"serialNumber"`
	}
	if err := json.Unmarshal(body, &input); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	consignee, err := h.Store.GetConsignee(r.Context(), id)
	if err != nil {
		http.Error(w, "Consignee not found", http.StatusNotFound)
		return
	}

	if input.SrNo != nil {
		consignee.SrNo = *input.SrNo
	}
	if input.DistrictName != nil {
		consignee.DistrictName = *input.DistrictName
	}
	if input.BlockName != nil {
		consignee.BlockName = *input.BlockName
	}
	if input.FacilityName != nil {
		consignee.FacilityName = *input.FacilityName
	}
	if input.SerialNumber != nil {
		consignee.SerialNumber = input.SerialNumber
	}

	if err := h.Store.UpdateConsigneeSite(r.Context(), consignee); err != nil {
		h.Log.Error("update consignee", zap.Error(err))
		http.Error(w, "Failed to update consignee", http.StatusInternalServerError)
		return
	}

	h.Log.Info("consignee updated", zap.Int("consignee", id))
	writeJSON(w, http.StatusOK, consignee)
}

// UpdateAccessoriesHandler обрабатывает PATCH /api/consignees/{id}/accessories:
// закрывает одну позицию из чеклиста аксессуаров.
func (h *Handler) UpdateAccessoriesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		http.Error(w, "Invalid consignee id", http.StatusBadRequest)
		return
	}

	var input struct {
		AccessoryName string `json:"accessoryName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	state, err := h.Tracker.ResolveAccessory(r.Context(), id, input.AccessoryName)
	if err != nil {
		h.writeError(w, err, "Failed to update accessories")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":            "Accessories status updated successfully",
		"accessoriesPending": state,
	})
}
