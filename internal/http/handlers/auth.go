package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hongminglow/wallet-auth/internal/auth"
	"github.com/hongminglow/wallet-auth/internal/http/respond"
	"github.com/hongminglow/wallet-auth/internal/middleware"
	"github.com/hongminglow/wallet-auth/internal/models"
	"github.com/hongminglow/wallet-auth/internal/models/dto"
)

const maxCredentialsBody = 64 << 10

// AuthHandler owns the wallet sign-in, session and sign-out endpoints.
type AuthHandler struct {
	provider      *auth.Provider
	tokens        *auth.TokenManager
	validate      *validator.Validate
	logger        *slog.Logger
	secureCookies bool
}

// NewAuthHandler constructs the handler. secureCookies marks the session
// cookie Secure and should be on everywhere except local development.
func NewAuthHandler(provider *auth.Provider, tokens *auth.TokenManager, logger *slog.Logger, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		provider:      provider,
		tokens:        tokens,
		validate:      newValidator(),
		logger:        logger,
		secureCookies: secureCookies,
	}
}

// Register attaches auth routes to the mux.
func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/callback/credentials", h.handleSignIn)
	mux.HandleFunc("/api/auth/session", h.handleSession)
	mux.HandleFunc("/api/auth/signout", h.handleSignOut)
}

func (h *AuthHandler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, err := decodeCredentials(w, r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid credentials payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respond.Error(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	identity, err := h.provider.Authorize(r.Context(), req.Credentials())
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingCredential):
			respond.Error(w, http.StatusUnauthorized, "wallet address is required")
		case errors.Is(err, auth.ErrVerificationFailed):
			respond.Error(w, http.StatusUnauthorized, "wallet credential rejected")
		default:
			h.logger.ErrorContext(r.Context(), "authorize wallet failed",
				slog.String("wallet_address", req.WalletAddress), slog.Any("error", err))
			respond.Error(w, http.StatusInternalServerError, "failed to sign in")
		}
		return
	}

	token, expires, err := h.tokens.Issue(identity)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "issue session token failed", slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "failed to generate session")
		return
	}

	h.setSessionCookie(w, token, expires)
	respond.JSON(w, http.StatusOK, "signed in", dto.SignInResponse{
		Token:   token,
		Session: models.NewSession(identity, expires),
	})
}

func (h *AuthHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := middleware.TokenFromRequest(r)
	if token == "" {
		respond.JSON(w, http.StatusOK, "no active session", nil)
		return
	}
	session, err := h.tokens.Parse(token)
	if err != nil {
		h.logger.DebugContext(r.Context(), "session token rejected", slog.Any("error", err))
		respond.JSON(w, http.StatusOK, "no active session", nil)
		return
	}
	respond.JSON(w, http.StatusOK, "active session", session)
}

func (h *AuthHandler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	respond.JSON(w, http.StatusOK, "signed out", nil)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// decodeCredentials accepts either a JSON body or a urlencoded form.
func decodeCredentials(w http.ResponseWriter, r *http.Request) (dto.CredentialsRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCredentialsBody)

	var req dto.CredentialsRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		parse := r.ParseForm
		if mediaType == "multipart/form-data" {
			parse = func() error { return r.ParseMultipartForm(maxCredentialsBody) }
		}
		if err := parse(); err != nil {
			return req, err
		}
		req.WalletAddress = r.PostForm.Get("walletAddress")
		req.Username = r.PostForm.Get("username")
		req.ProfilePictureURL = r.PostForm.Get("profilePictureUrl")
	default:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, err
		}
	}
	return req, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid credentials"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
	}
	return strings.Join(parts, "; ")
}
