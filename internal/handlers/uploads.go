package handlers

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"tendertrack/internal/auth"
	"tendertrack/internal/tracking"
)

const (
	maxFileSize       = 5 << 20 // 5МБ на документ
	maxLogisticsFiles = 5
)

var allowedContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
}

// parseEventDate читает поле date из формы, по умолчанию сегодня.
func parseEventDate(r *http.Request) (time.Time, error) {
	raw := r.FormValue("date")
	if raw == "" {
		return time.Now(), nil
	}
	return time.Parse("2006-01-02", raw)
}

func validateUploadFile(header *multipart.FileHeader) string {
	if header.Size > maxFileSize {
		return "File exceeds the 5MB limit"
	}
	if !allowedContentTypes[header.Header.Get("Content-Type")] {
		return "Invalid file type. Only JPEG, PNG and PDF are allowed."
	}
	return ""
}

// storeUploadedFile кладёт один файл из формы в хранилище и возвращает
// локатор.
func (h *Handler) storeUploadedFile(r *http.Request, stage tracking.Stage, header *multipart.FileHeader) (string, error) {
	file, err := header.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()
	return h.Blobs.Put(r.Context(), string(stage), header.Filename,
		header.Header.Get("Content-Type"), file, header.Size)
}

// UploadLogisticsHandler обрабатывает POST /api/upload/logistics. Логистика
// принимает набор документов; каждая загрузка добавляется к подтверждениям
// отправки. Файлы можно не прикладывать: курьер и номер накладной
// фиксируются и без них.
func (h *Handler) UploadLogisticsHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFileSize * maxLogisticsFiles); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	consigneeID, err := strconv.Atoi(r.FormValue("consigneeId"))
	if err != nil || consigneeID <= 0 {
		http.Error(w, "Invalid consigneeId", http.StatusBadRequest)
		return
	}
	eventDate, err := parseEventDate(r)
	if err != nil {
		http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	headers := r.MultipartForm.File["documents"]
	if len(headers) > maxLogisticsFiles {
		http.Error(w, "Too many documents, max 5", http.StatusBadRequest)
		return
	}

	locators := make([]string, 0, len(headers))
	for _, header := range headers {
		if msg := validateUploadFile(header); msg != "" {
			http.Error(w, msg, http.StatusBadRequest)
			return
		}
		locator, err := h.storeUploadedFile(r, tracking.StageLogistics, header)
		if err != nil {
			h.Log.Error("store logistics document", zap.Error(err))
			http.Error(w, "Failed to store document", http.StatusInternalServerError)
			return
		}
		locators = append(locators, locator)
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Missing authorization token", http.StatusUnauthorized)
		return
	}
	artifact, err := h.Tracker.RecordStageArtifact(r.Context(), consigneeID, tracking.StageLogistics, tracking.ArtifactInput{
		EventDate:    eventDate,
		Locators:     locators,
		CourierName:  r.FormValue("courierName"),
		DocketNumber: r.FormValue("docketNumber"),
		CreatedBy:    claims.UserID,
	})
	if err != nil {
		h.writeError(w, err, "Failed to record logistics details")
		return
	}

	writeJSON(w, http.StatusCreated, artifact)
}

// UploadChallanHandler обрабатывает POST /api/upload/challan.
func (h *Handler) UploadChallanHandler(w http.ResponseWriter, r *http.Request) {
	h.uploadSingleDocument(w, r, tracking.StageChallan)
}

// UploadInstallationHandler обрабатывает POST /api/upload/installation.
func (h *Handler) UploadInstallationHandler(w http.ResponseWriter, r *http.Request) {
	h.uploadSingleDocument(w, r, tracking.StageInstallation)
}

// UploadInvoiceHandler обрабатывает POST /api/upload/invoice.
func (h *Handler) UploadInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	h.uploadSingleDocument(w, r, tracking.StageInvoice)
}

// uploadSingleDocument — общий путь для этапов с одним файлом. Новый
// документ заменяет прежний локатор этапа.
func (h *Handler) uploadSingleDocument(w http.ResponseWriter, r *http.Request, stage tracking.Stage) {
	if err := r.ParseMultipartForm(maxFileSize); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	consigneeID, err := strconv.Atoi(r.FormValue("consigneeId"))
	if err != nil || consigneeID <= 0 {
		http.Error(w, "Invalid consigneeId", http.StatusBadRequest)
		return
	}
	eventDate, err := parseEventDate(r)
	if err != nil {
		http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "File is required", http.StatusBadRequest)
		return
	}
	defer file.Close()
	if msg := validateUploadFile(header); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	locator, err := h.storeUploadedFile(r, stage, header)
	if err != nil {
		h.Log.Error("store document", zap.String("stage", string(stage)), zap.Error(err))
		http.Error(w, "Failed to store document", http.StatusInternalServerError)
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Missing authorization token", http.StatusUnauthorized)
		return
	}
	artifact, err := h.Tracker.RecordStageArtifact(r.Context(), consigneeID, stage, tracking.ArtifactInput{
		EventDate: eventDate,
		Locators:  []string{locator},
		CreatedBy: claims.UserID,
	})
	if err != nil {
		h.writeError(w, err, "Failed to record stage document")
		return
	}

	writeJSON(w, http.StatusCreated, artifact)
}

// DeleteFileHandler обрабатывает DELETE /api/upload/{type}/file. Объект
// удаляется, локатор убирается из записи этапа; статус груза не меняется.
func (h *Handler) DeleteFileHandler(w http.ResponseWriter, r *http.Request) {
	stage := tracking.Stage(chi.URLParam(r, "type"))
	if !stage.Valid() {
		http.Error(w, "Invalid file type", http.StatusBadRequest)
		return
	}

	var input struct {
		ConsigneeID int    `json:"consigneeId"`
		Locator     string `json:"locator"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if input.Locator == "" {
		http.Error(w, "Locator is required", http.StatusBadRequest)
		return
	}

	if err := h.Tracker.RemoveStageLocator(r.Context(), input.ConsigneeID, stage, input.Locator); err != nil {
		h.writeError(w, err, "Failed to delete file")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "File deleted successfully"})
}

// DownloadFileHandler обрабатывает GET /api/files?locator=... и отдаёт
// сохранённый документ оператору.
func (h *Handler) DownloadFileHandler(w http.ResponseWriter, r *http.Request) {
	locator := r.URL.Query().Get("locator")
	if locator == "" {
		http.Error(w, "Locator is required", http.StatusBadRequest)
		return
	}

	obj, err := h.Blobs.Get(r.Context(), locator)
	if err != nil {
		h.Log.Error("download file", zap.Error(err))
		http.Error(w, "Failed to read file", http.StatusInternalServerError)
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, obj); err != nil {
		h.Log.Error("stream file", zap.Error(err))
	}
}
