package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hongminglow/wallet-auth/internal/auth"
	"github.com/hongminglow/wallet-auth/internal/http/respond"
	"github.com/hongminglow/wallet-auth/internal/middleware"
	"github.com/hongminglow/wallet-auth/internal/models"
	"github.com/hongminglow/wallet-auth/internal/models/dto"
	"github.com/hongminglow/wallet-auth/internal/storage"
)

// UsersHandler exposes profile lookups and login analytics to signed-in callers.
type UsersHandler struct {
	store  storage.UserStore
	tokens *auth.TokenManager
	logger *slog.Logger
}

// NewUsersHandler constructs the handler.
func NewUsersHandler(store storage.UserStore, tokens *auth.TokenManager, logger *slog.Logger) *UsersHandler {
	return &UsersHandler{store: store, tokens: tokens, logger: logger}
}

// Register attaches user routes to the mux, all behind RequireSession.
func (h *UsersHandler) Register(mux *http.ServeMux) {
	mux.Handle("/api/users/me", middleware.RequireSession(h.tokens, http.HandlerFunc(h.handleMe)))
	mux.Handle("/api/users/wallet/{address}", middleware.RequireSession(h.tokens, http.HandlerFunc(h.handleByWallet)))
	mux.Handle("/api/users/active", middleware.RequireSession(h.tokens, http.HandlerFunc(h.handleActive)))
}

func (h *UsersHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	session, _ := auth.SessionFromContext(r.Context())
	id, err := strconv.ParseInt(session.User.ID, 10, 64)
	if err != nil {
		respond.Error(w, http.StatusUnauthorized, "invalid session")
		return
	}
	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		h.lookupFailed(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "user found", user)
}

func (h *UsersHandler) handleByWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, err := h.store.GetUserByWallet(r.Context(), r.PathValue("address"))
	if err != nil {
		h.lookupFailed(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "user found", user)
}

// handleActive serves ?since=<RFC3339> or ?days=<n>, defaulting to the last week.
func (h *UsersHandler) handleActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	query := r.URL.Query()

	var (
		users []models.User
		err   error
	)
	if raw := query.Get("since"); raw != "" {
		since, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			respond.Error(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
			return
		}
		users, err = h.store.GetUsersByLastLogin(r.Context(), since)
	} else {
		days := storage.DefaultActiveDays
		if raw := query.Get("days"); raw != "" {
			days, err = strconv.Atoi(raw)
			if err != nil || days < 0 {
				respond.Error(w, http.StatusBadRequest, "days must be a non-negative integer")
				return
			}
		}
		users, err = h.store.GetRecentlyActiveUsers(r.Context(), days)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list active users failed", slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	respond.JSON(w, http.StatusOK, "active users", dto.ActiveUsersResponse{Count: len(users), Users: users})
}

func (h *UsersHandler) lookupFailed(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		respond.Error(w, http.StatusNotFound, "user not found")
		return
	}
	h.logger.ErrorContext(r.Context(), "user lookup failed", slog.Any("error", err))
	respond.Error(w, http.StatusInternalServerError, "failed to fetch user")
}
