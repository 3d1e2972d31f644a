package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService    *auth.Service
	userCollection db.UserCollection
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, userCollection db.UserCollection) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		userCollection: userCollection,
	}
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var loginReq models.LoginRequest
	if err := json.Unmarshal(body, &loginReq); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if loginReq.Username == "" || loginReq.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.userCollection.FindUserByUsername(r.Context(), loginReq.Username)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if !user.IsActive {
		http.Error(w, "Account is deactivated", http.StatusUnauthorized)
		return
	}

	if !h.authService.CheckPassword(loginReq.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	h.writeTokens(w, http.StatusOK, user)

	if err := h.userCollection.UpdateLastLogin(r.Context(), user.ID.Hex()); err != nil {
		log.WithError(err).WithField("user_id", user.ID.Hex()).Warn("Failed to update last login")
	}
}

// Register opens a new shop: the tenant id is generated here and the caller
// becomes its owner. Joining an existing shop goes through InviteUser.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	registerReq, ok := decodeRegisterRequest(w, r)
	if !ok {
		return
	}
	if registerReq.TenantID != "" {
		http.Error(w, "Joining an existing shop requires an invitation", http.StatusForbidden)
		return
	}
	if registerReq.Role != "" && registerReq.Role != models.RoleOwner {
		http.Error(w, "The first user of a shop is its owner", http.StatusBadRequest)
		return
	}

	registerReq.TenantID = primitive.NewObjectID().Hex()
	registerReq.Role = models.RoleOwner

	user, ok := h.createUser(w, r, registerReq)
	if !ok {
		return
	}
	log.WithFields(log.Fields{"tenant_id": user.TenantID, "username": user.Username}).Info("Shop registered")
	h.writeTokens(w, http.StatusCreated, user)
}

// InviteUser adds a member to the caller's shop. The tenant always comes from
// the caller's token.
func (h *AuthHandler) InviteUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}
	if !claims.Role.CanPerform(models.ActionManageUsers) {
		http.Error(w, "Insufficient permissions", http.StatusForbidden)
		return
	}

	inviteReq, ok := decodeRegisterRequest(w, r)
	if !ok {
		return
	}
	if inviteReq.TenantID != "" && inviteReq.TenantID != claims.TenantID {
		http.Error(w, "Cannot add users to another shop", http.StatusForbidden)
		return
	}
	if !models.IsValidRole(inviteReq.Role) {
		http.Error(w, "Invalid role", http.StatusBadRequest)
		return
	}
	inviteReq.TenantID = claims.TenantID

	user, ok := h.createUser(w, r, inviteReq)
	if !ok {
		return
	}
	log.WithFields(log.Fields{
		"tenant_id":  user.TenantID,
		"username":   user.Username,
		"role":       user.Role,
		"invited_by": claims.Username,
	}).Info("User invited")
	writeJSON(w, http.StatusCreated, user)
}

func decodeRegisterRequest(w http.ResponseWriter, r *http.Request) (models.RegisterRequest, bool) {
	var req models.RegisterRequest

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return req, false
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// createUser validates and stores a user whose tenant and role are already
// settled. It writes the error response itself and reports whether to go on.
func (h *AuthHandler) createUser(w http.ResponseWriter, r *http.Request, req models.RegisterRequest) (*models.User, bool) {
	if err := h.authService.ValidateUsername(req.Username); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	if err := h.authService.ValidateEmail(req.Email); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	if err := h.authService.ValidatePassword(req.Password); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	if _, err := h.userCollection.FindUserByUsername(r.Context(), req.Username); err == nil {
		http.Error(w, "Username already exists", http.StatusConflict)
		return nil, false
	} else if !errors.Is(err, db.ErrNotFound) {
		log.WithError(err).Error("Failed to look up username")
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return nil, false
	}

	if _, err := h.userCollection.FindUserByEmail(r.Context(), req.Email); err == nil {
		http.Error(w, "Email already exists", http.StatusConflict)
		return nil, false
	} else if !errors.Is(err, db.ErrNotFound) {
		log.WithError(err).Error("Failed to look up email")
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return nil, false
	}

	passwordHash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		http.Error(w, "Failed to hash password", http.StatusInternalServerError)
		return nil, false
	}

	now := time.Now()
	user := models.User{
		ID:           primitive.NewObjectID(),
		TenantID:     req.TenantID,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         req.Role,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.userCollection.InsertUser(r.Context(), user); err != nil {
		log.WithError(err).WithField("tenant_id", user.TenantID).Error("Failed to insert user")
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return nil, false
	}
	return &user, true
}

// GetProfile returns the current user's profile
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	user, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// ListUsers returns the members of the caller's shop
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	users, err := h.userCollection.FindUsersByTenant(r.Context(), claims.TenantID)
	if err != nil {
		log.WithError(err).WithField("tenant_id", claims.TenantID).Error("Failed to list users")
		http.Error(w, "Failed to list users", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

func (h *AuthHandler) writeTokens(w http.ResponseWriter, status int, user *models.User) {
	token, err := h.authService.GenerateToken(user)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		http.Error(w, "Failed to generate refresh token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, status, models.LoginResponse{
		Token:        token,
		RefreshToken: refreshToken,
		User:         *user,
	})
}
