package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dco5/users-service/internal/handler/dto"
	"github.com/dco5/users-service/internal/service"
)

// Response messages shared by the JSON API and the HTML page.
const (
	msgInvalidPayload = "Invalid payload."
	msgEmailExists    = "Sorry. That email already exists."
	msgUserNotFound   = "User does not exist"
	msgInternalError  = "Something went wrong."
)

// UserHandler handles HTTP requests for user operations.
type UserHandler struct {
	svc    *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Fail(msgInvalidPayload))
		return
	}

	input, err := service.ValidateCreateUser(req.Username, req.Email)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	user, err := h.svc.CreateUser(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("user_created",
		"user_id", user.ID,
		"source", "api",
	)

	writeJSON(w, http.StatusCreated, dto.Success(user.Email+" was added!", nil))
}

var (
	errNotJSON      = errors.New("content type is not JSON")
	errTrailingData = errors.New("unexpected data after JSON value")
)

// decodeJSONBody decodes a single JSON value from a request declared as
// application/json (or a +json subtype).
func decodeJSONBody(r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return errNotJSON
	}
	if mediaType != "application/json" &&
		!(strings.HasPrefix(mediaType, "application/") && strings.HasSuffix(mediaType, "+json")) {
		return errNotJSON
	}

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	return nil
}

// Get handles GET /users/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.Success("", dto.ToUserResponse(user)))
}

// List handles GET /users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.Success("", dto.ToUserListData(users)))
}

// handleServiceError maps service errors to HTTP responses.
func (h *UserHandler) handleServiceError(w http.ResponseWriter, err error) {
	status, message := userErrorResponse(h.logger, err)
	writeJSON(w, status, dto.Fail(message))
}

// userErrorResponse maps a service error to a status code and message.
// A duplicate username surfaces as an invalid payload; only the email has a
// dedicated message.
func userErrorResponse(logger *slog.Logger, err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidPayload):
		return http.StatusBadRequest, msgInvalidPayload
	case errors.Is(err, service.ErrDuplicateEmail):
		return http.StatusBadRequest, msgEmailExists
	case errors.Is(err, service.ErrDuplicateUsername):
		return http.StatusBadRequest, msgInvalidPayload
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, msgUserNotFound
	default:
		logger.Error("internal_error", "error", err)
		return http.StatusInternalServerError, msgInternalError
	}
}
