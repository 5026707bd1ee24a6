package handlers

import (
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tendertrack/db"
	"tendertrack/internal/tracking"
)

var seedRoles = []string{"admin", "logistics", "challan", "installation", "invoice"}

// SeedDatabaseHandler обрабатывает POST /api/database/seed: создаёт по
// пользователю на роль плюс демо-тендеры и грузополучателей, чтобы свежая
// установка была сразу рабочей. Только для админа; повторный запуск упадёт
// на уникальности username.
func (h *Handler) SeedDatabaseHandler(w http.ResponseWriter, r *http.Request) {
	password := os.Getenv("DEFAULT_PASSWORD")
	if password == "" {
		password = "admin123"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}

	users := make([]db.User, 0, len(seedRoles))
	for _, role := range seedRoles {
		u := db.User{
			Username:     role,
			Email:        role + "@example.com",
			PasswordHash: string(hash),
			Role:         role,
			IsActive:     true,
		}
		if err := h.Store.CreateUser(r.Context(), &u); err != nil {
			h.Log.Error("seed user", zap.String("role", role), zap.Error(err))
			http.Error(w, "Failed to seed users", http.StatusInternalServerError)
			return
		}
		users = append(users, u)
	}

	tenders := []db.Tender{
		{
			TenderNumber:        "TENDER/2024/001",
			AuthorityType:       "State Health Department",
			ContractDate:        time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
			PODate:              time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			LeadTimeToDeliver:   15,
			LeadTimeToInstall:   30,
			EquipmentName:       "X-Ray Machine",
			Status:              tracking.TenderPending,
			InstallationPending: true,
			InvoicePending:      true,
		},
		{
			TenderNumber:        "TENDER/2024/002",
			AuthorityType:       "Central Medical Supplies",
			ContractDate:        time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC),
			PODate:              time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
			LeadTimeToDeliver:   20,
			LeadTimeToInstall:   45,
			EquipmentName:       "MRI Scanner",
			Status:              tracking.TenderPartiallyCompleted,
			AccessoriesPending:  true,
			InstallationPending: true,
			InvoicePending:      true,
		},
	}
	for i := range tenders {
		if err := h.Store.CreateTender(r.Context(), &tenders[i]); err != nil {
			h.Log.Error("seed tender", zap.Error(err))
			http.Error(w, "Failed to seed tenders", http.StatusInternalServerError)
			return
		}
	}

	serial := "XR2024001"
	consignees := []db.Consignee{
		{
			TenderID:           tenders[0].ID,
			SrNo:               "SR001",
			DistrictName:       "North District",
			BlockName:          "Block A",
			FacilityName:       "City Hospital",
			ConsignmentStatus:  tracking.StatusProcessing,
			AccessoriesPending: db.AccessoryState{Items: []string{}},
		},
		{
			TenderID:          tenders[0].ID,
			SrNo:              "SR002",
			DistrictName:      "South District",
			BlockName:         "Block B",
			FacilityName:      "Rural Health Center",
			ConsignmentStatus: tracking.StatusDispatched,
			AccessoriesPending: db.AccessoryState{
				Status: true,
				Count:  2,
				Items:  []string{"Cable", "Battery"},
			},
			SerialNumber: &serial,
		},
	}
	for i := range consignees {
		if err := h.Store.CreateConsignee(r.Context(), &consignees[i]); err != nil {
			h.Log.Error("seed consignee", zap.Error(err))
			http.Error(w, "Failed to seed consignees", http.StatusInternalServerError)
			return
		}
	}

	h.Log.Info("database seeded",
		zap.Int("users", len(users)),
		zap.Int("tenders", len(tenders)),
		zap.Int("consignees", len(consignees)))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Database seeded successfully",
		"users":      users,
		"tenders":    tenders,
		"consignees": consignees,
	})
}
