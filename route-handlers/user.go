package routehandlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stickerbin/server/auth"
	"github.com/stickerbin/server/datastore"
	"github.com/stickerbin/server/models"
	"github.com/stickerbin/server/processing"
	"github.com/stickerbin/server/webutil"
)

// tokenTTL bounds the session. Logout only clears the cookie; the token
// itself stays valid until this expiry.
const tokenTTL = 30 * 24 * time.Hour

// UserStore is the slice of the user repository the auth endpoints need.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// ResetFlow is implemented by processing.PasswordResetProcessor.
type ResetFlow interface {
	RequestPasscode(ctx context.Context, email string) error
	SubmitReset(ctx context.Context, email, passcode, newPassword string) error
}

type UserHandler struct {
	users  UserStore
	reset  ResetFlow
	secret []byte
}

func NewUserHandler(users UserStore, reset ResetFlow, secret []byte) *UserHandler {
	return &UserHandler{users: users, reset: reset, secret: secret}
}

func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) error {
	var requestData struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSONBody(r, &requestData); err != nil {
		return err
	}
	if !looksLikeEmail(requestData.Email) {
		return webutil.ErrUnprocessableEntity("A valid email is required")
	}
	if requestData.Password == "" {
		return webutil.ErrUnprocessableEntity("Password is required")
	}

	digest, err := auth.HashPassword(requestData.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password for registration: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
		Email:        requestData.Email,
		PasswordHash: digest,
	}
	if err := h.users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, datastore.ErrDuplicateEmail) {
			return webutil.ErrConflict("This email is already in use")
		}
		return fmt.Errorf("failed to create user %s: %w", user.Email, err)
	}

	webutil.RespondWithMsg(w, "Registered successfully")
	return nil
}

func (h *UserHandler) HandleLogin(w http.ResponseWriter, r *http.Request) error {
	var requestData struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSONBody(r, &requestData); err != nil {
		return err
	}

	// Unknown email and wrong password produce the same response.
	user, err := h.users.GetUserByEmail(r.Context(), requestData.Email)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return webutil.ErrUnauthorized("Incorrect email or password")
		}
		return fmt.Errorf("failed to look up user for login: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, requestData.Password) {
		return webutil.ErrUnauthorized("Incorrect email or password")
	}

	token, err := auth.GenerateToken(user.ID, h.secret, tokenTTL)
	if err != nil {
		return fmt.Errorf("failed to issue session token: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(tokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	webutil.RespondWithMsg(w, "Logged in successfully")
	return nil
}

// HandleLogout clears the token cookie. The token itself is not revoked;
// statelessness means it remains cryptographically valid until expiry.
func (h *UserHandler) HandleLogout(w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	webutil.RespondWithMsg(w, "Logged out successfully")
	return nil
}

func (h *UserHandler) HandleSendPasscode(w http.ResponseWriter, r *http.Request) error {
	var requestData struct {
		Email string `json:"email"`
	}
	if err := decodeJSONBody(r, &requestData); err != nil {
		return err
	}
	if !looksLikeEmail(requestData.Email) {
		return webutil.ErrUnprocessableEntity("A valid email is required")
	}

	err := h.reset.RequestPasscode(r.Context(), requestData.Email)
	switch {
	case err == nil:
		// Reached for both known and unknown emails; the bodies must be
		// identical so the endpoint can't confirm registrations.
		webutil.RespondWithMsg(w, "The passcode has been sent to your email")
		return nil
	case errors.Is(err, processing.ErrRateLimited):
		return webutil.ErrForbidden(err.Error())
	case errors.Is(err, processing.ErrEmailDelivery):
		return webutil.ErrInternalServerWrap("Failed to send the passcode email", err)
	default:
		return fmt.Errorf("passcode request failed: %w", err)
	}
}

func (h *UserHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) error {
	var requestData struct {
		Email    string `json:"email"`
		Passcode string `json:"passcode"`
		Password string `json:"password"`
	}
	if err := decodeJSONBody(r, &requestData); err != nil {
		return err
	}
	if requestData.Password == "" {
		return webutil.ErrUnprocessableEntity("Password is required")
	}

	err := h.reset.SubmitReset(r.Context(), requestData.Email, requestData.Passcode, requestData.Password)
	switch {
	case err == nil:
		webutil.RespondWithMsg(w, "Password has been reset")
		return nil
	case errors.Is(err, processing.ErrUserNotFound):
		return webutil.ErrNotFound(err.Error())
	case errors.Is(err, processing.ErrRateLimited):
		return webutil.ErrForbidden(err.Error())
	case errors.Is(err, processing.ErrInvalidPasscode):
		return webutil.ErrForbidden(err.Error())
	default:
		return fmt.Errorf("password reset failed: %w", err)
	}
}

// decodeJSONBody strictly decodes the request body into dst. Validation
// failures surface as 422, a kind of their own, distinct from the domain
// errors the flows return.
func decodeJSONBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return webutil.ErrUnprocessableEntity("Invalid request payload: " + err.Error())
	}
	defer r.Body.Close()
	return nil
}

func looksLikeEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1
}
