package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tendertrack/db"
	"tendertrack/internal/auth"
)

const tokenTTL = 24 * time.Hour

var allowedRoles = map[string]bool{
	"admin":        true,
	"logistics":    true,
	"challan":      true,
	"installation": true,
	"invoice":      true,
}

// LoginHandler обрабатывает POST /api/auth/login.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	user, err := h.Store.GetUserByUsername(r.Context(), input.Username)
	if err != nil || !user.IsActive {
		h.Log.Warn("failed login", zap.String("username", input.Username))
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		h.Log.Warn("failed login", zap.String("username", input.Username))
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.IssueToken(h.Secret, user.ID, user.Username, user.Role, tokenTTL)
	if err != nil {
		h.Log.Error("issue token", zap.Error(err))
		http.Error(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// RegisterHandler обрабатывает POST /api/auth/register.
func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var input struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.Unmarshal(body, &input); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if err := validateRegisterRequest(input.Username, input.Password, input.Role); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}

	user := &db.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: string(hash),
		Role:         input.Role,
		IsActive:     true,
	}
	if err := h.Store.CreateUser(r.Context(), user); err != nil {
		h.Log.Error("create user", zap.Error(err))
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	h.Log.Info("user registered", zap.String("username", user.Username), zap.String("role", user.Role))
	writeJSON(w, http.StatusCreated, user)
}

func validateRegisterRequest(username, password, role string) error {
	if username == "" || len(username) > 100 {
		return errors.New("username is required and max length 100")
	}
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	if !allowedRoles[role] {
		return errors.New("invalid role")
	}
	return nil
}
