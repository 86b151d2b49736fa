package handler

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/dco5/users-service/internal/model"
	"github.com/dco5/users-service/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

// flashCookie carries a one-shot error message across the POST / redirect.
const flashCookie = "flash"

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// indexPage is the data rendered by templates/index.html.
type indexPage struct {
	Users []*model.User
	Flash string
}

// PageHandler serves the server-rendered user listing.
type PageHandler struct {
	svc    *service.UserService
	logger *slog.Logger
}

// NewPageHandler creates a new PageHandler.
func NewPageHandler(svc *service.UserService, logger *slog.Logger) *PageHandler {
	return &PageHandler{
		svc:    svc,
		logger: logger,
	}
}

// Index handles GET /.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("internal_error", "error", err)
		http.Error(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	page := indexPage{Users: users, Flash: popFlash(w, r)}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, page); err != nil {
		h.logger.Error("template_render_failed", "error", err)
		http.Error(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// Create handles POST / from the HTML form.
// Success and failure both redirect to the listing; failures leave a flash
// message that the next GET / renders inline.
func (h *PageHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		setFlash(w, msgInvalidPayload)
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	input, err := service.ValidateCreateUser(formValue(r.PostForm, "username"), formValue(r.PostForm, "email"))
	if err == nil {
		var user *model.User
		user, err = h.svc.CreateUser(r.Context(), input)
		if err == nil {
			h.logger.Info("user_created",
				"user_id", user.ID,
				"source", "form",
			)
		}
	}

	if err != nil {
		_, message := userErrorResponse(h.logger, err)
		setFlash(w, message)
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// formValue returns nil when key was not submitted at all.
func formValue(form url.Values, key string) *string {
	values, ok := form[key]
	if !ok || len(values) == 0 {
		return nil
	}
	return &values[0]
}

func setFlash(w http.ResponseWriter, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(message),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads the flash message, if any, and expires the cookie.
func popFlash(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(flashCookie)
	if err != nil {
		return ""
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	message, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return ""
	}
	return message
}
