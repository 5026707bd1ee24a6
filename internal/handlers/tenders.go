package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"tendertrack/db"
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// parsePaginationParams читает limit и offset из query, с дефолтами и
// верхней границей.
func parsePaginationParams(r *http.Request) PaginationParams {
	params := PaginationParams{Limit: 20, Offset: 0}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			params.Limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			params.Offset = o
		}
	}
	return params
}

// SearchTendersHandler обрабатывает GET /api/tenders/search.
func (h *Handler) SearchTendersHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	fragment := r.URL.Query().Get("q")

	status := r.URL.Query().Get("status")
	allowedStatuses := map[string]bool{"Pending": true, "Partially Completed": true, "Completed": true}
	if status != "" && !allowedStatuses[status] {
		http.Error(w, "Invalid status filter", http.StatusBadRequest)
		return
	}

	tenders, err := h.Store.SearchTenders(r.Context(), fragment, status, params.Limit, params.Offset)
	if err != nil {
		h.Log.Error("search tenders", zap.Error(err))
		http.Error(w, "Failed to search tenders", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, tenders)
}

// GetDistrictsHandler обрабатывает GET /api/tenders/districts.
func (h *Handler) GetDistrictsHandler(w http.ResponseWriter, r *http.Request) {
	districts, err := h.Store.GetDistricts(r.Context())
	if err != nil {
		h.Log.Error("get districts", zap.Error(err))
		http.Error(w, "Failed to get districts", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"districts": districts})
}

// GetBlocksHandler обрабатывает GET /api/tenders/blocks, с необязательным
// фильтром по району.
func (h *Handler) GetBlocksHandler(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.Store.GetBlocks(r.Context(), r.URL.Query().Get("district"))
	if err != nil {
		h.Log.Error("get blocks", zap.Error(err))
		http.Error(w, "Failed to get blocks", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"blocks": blocks})
}

// GetTenderHandler обрабатывает GET /api/tenders/{tenderId}: тендер со
// всеми его грузополучателями.
func (h *Handler) GetTenderHandler(w http.ResponseWriter, r *http.Request) {
	tenderID, err := strconv.Atoi(chi.URLParam(r, "tenderId"))
	if err != nil || tenderID <= 0 {
		http.Error(w, "Invalid tenderId", http.StatusBadRequest)
		return
	}

	tender, err := h.Store.GetTender(r.Context(), tenderID)
	if err != nil {
		http.Error(w, "Tender not found", http.StatusNotFound)
		return
	}
	consignees, err := h.Store.ConsigneesByTender(r.Context(), tenderID)
	if err != nil {
		h.Log.Error("get tender consignees", zap.Error(err))
		http.Error(w, "Failed to get consignees", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		*db.Tender
		Consignees []db.Consignee `json:"consignees"`
	}{tender, consignees})
}

var exportHeader = []string{
	"Sr No", "District", "Block", "Facility", "Consignment Status",
	"Accessories Pending", "Pending Items", "Serial Number",
}

// ExportTenderHandler обрабатывает GET /api/tenders/{tenderId}/export и
// отдаёт лист грузополучателей тендера как xlsx.
func (h *Handler) ExportTenderHandler(w http.ResponseWriter, r *http.Request) {
	tenderID, err := strconv.Atoi(chi.URLParam(r, "tenderId"))
	if err != nil || tenderID <= 0 {
		http.Error(w, "Invalid tenderId", http.StatusBadRequest)
		return
	}

	tender, err := h.Store.GetTender(r.Context(), tenderID)
	if err != nil {
		http.Error(w, "Tender not found", http.StatusNotFound)
		return
	}
	consignees, err := h.Store.ConsigneesByTender(r.Context(), tenderID)
	if err != nil {
		h.Log.Error("export tender", zap.Error(err))
		http.Error(w, "Failed to get consignees", http.StatusInternalServerError)
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for col, title := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, title)
	}
	for row, c := range consignees {
		serial := ""
		if c.SerialNumber != nil {
			serial = *c.SerialNumber
		}
		values := []interface{}{
			c.SrNo, c.DistrictName, c.BlockName, c.FacilityName,
			c.ConsignmentStatus, c.AccessoriesPending.Count,
			strings.Join(c.AccessoriesPending.Items, ", "), serial,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", tender.TenderNumber))
	if err := f.Write(w); err != nil {
		h.Log.Error("write export", zap.Error(err))
	}
}
