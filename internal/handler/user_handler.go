package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/luma-identity/internal/auth"
	"github.com/prn-tf/luma-identity/internal/service"
)

// UserHandler serves the /user API.
type UserHandler struct {
	auth    *service.AuthService
	profile *service.ProfileService
	users   *service.UserService
	cookies *auth.CookieHelper
	logger  zerolog.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(
	authService *service.AuthService,
	profileService *service.ProfileService,
	userService *service.UserService,
	cookies *auth.CookieHelper,
	logger zerolog.Logger,
) *UserHandler {
	return &UserHandler{
		auth:    authService,
		profile: profileService,
		users:   userService,
		cookies: cookies,
		logger:  logger.With().Str("handler", "user").Logger(),
	}
}

// RegisterRoutes registers the user routes on the router.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Route("/user", func(r chi.Router) {
		r.Get("/", h.List)
		r.Put("/", h.List)
		r.Post("/", h.Register)

		r.Get("/verify", h.Verify)
		r.Get("/permission", h.Permission)
		r.Put("/login", h.Login)
		r.Get("/logout", h.Logout)
		r.Post("/password", h.ChangePassword)
		r.Post("/email", h.ChangeEmail)
		r.Get("/avatar/{hash}", h.Avatar)

		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Put("/{id}/avatar", h.UploadAvatar)
	})
}

// listRequest is the optional body of a list request.
type listRequest struct {
	Page   int             `json:"page"`
	Count  int             `json:"count"`
	Column string          `json:"column"`
	Dsc    bool            `json:"dsc"`
	Filter json.RawMessage `json:"filter"`
}

// List handles GET and PUT /user/.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	var req listRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	filters, err := parseFilter(req.Filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out, err := h.users.List(r.Context(), service.ListUsersInput{
		Page:       req.Page,
		Count:      req.Count,
		Column:     req.Column,
		Descending: req.Dsc,
		Filters:    filters,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Get handles GET /user/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	profile, err := h.users.Get(r.Context(), uid)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Verify handles GET /user/verify.
func (h *UserHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, r, h.logger, service.ErrNotAuthenticated)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"uid":      claims.UserID,
		"username": claims.Username,
	})
}

// Permission handles GET /user/permission.
func (h *UserHandler) Permission(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	if actor == nil {
		writeError(w, r, h.logger, service.ErrNotAuthenticated)
		return
	}
	writeJSON(w, http.StatusOK, actor)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles PUT /user/login.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	ctx := r.Context()
	subject, err := h.auth.Login(ctx, service.LoginInput{
		Username: req.Username,
		Password: req.Password,
		IP:       clientIP(r),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	session, err := h.auth.StartSession(ctx, subject)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.cookies.SetSession(w, session)
	writeJSON(w, http.StatusOK, subject)
}

// Logout handles GET /user/logout. The cookie is cleared even when the
// request carried no valid session.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), auth.ClaimsFromContext(r.Context())); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.cookies.SetLogout(w)
	w.WriteHeader(http.StatusNoContent)
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// Register handles POST /user/.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	uid, err := h.auth.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		IP:       clientIP(r),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"uid": uid})
}

type updateRequest struct {
	Data []map[string]any `json:"data"`
}

// Update handles PATCH /user/{id}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req updateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	fields := make([]service.FieldUpdate, 0, len(req.Data))
	for _, entry := range req.Data {
		for _, column := range sortedKeys(entry) {
			value, err := stringify(column, entry[column])
			if err != nil {
				writeError(w, r, h.logger, err)
				return
			}
			fields = append(fields, service.FieldUpdate{Field: column, Value: value})
		}
	}

	rows, err := h.profile.UpdateProfile(r.Context(), service.UpdateProfileInput{
		Actor:     auth.ActorFromContext(r.Context()),
		TargetUID: uid,
		Fields:    fields,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"rows": rows})
}

type passwordRequest struct {
	OldPassword string `json:"oldpassword"`
	NewPassword string `json:"newpassword"`
}

// ChangePassword handles POST /user/password.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	err := h.profile.ChangePassword(r.Context(), service.ChangePasswordInput{
		Actor:       auth.ActorFromContext(r.Context()),
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type emailRequest struct {
	Password string `json:"password"`
	Email    string `json:"email"`
}

// ChangeEmail handles POST /user/email.
func (h *UserHandler) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	err := h.profile.ChangeEmail(r.Context(), service.ChangeEmailInput{
		Actor:    auth.ActorFromContext(r.Context()),
		Password: req.Password,
		Email:    req.Email,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /user/{id}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.users.Delete(r.Context(), auth.ActorFromContext(r.Context()), uid); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadAvatar handles PUT /user/{id}/avatar. The body is the raw image.
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	limit := h.profile.MaxAvatarSize()
	if r.ContentLength > limit {
		writeError(w, r, h.logger, fmt.Errorf("%w: avatar exceeds %d bytes", service.ErrInvalidInput, limit))
		return
	}
	body := http.MaxBytesReader(w, r.Body, limit)
	defer body.Close()

	hash, err := h.profile.UploadAvatar(r.Context(), service.UploadAvatarInput{
		Actor:     auth.ActorFromContext(r.Context()),
		TargetUID: uid,
		Content:   body,
		Size:      r.ContentLength,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"avatar": hash})
}

// Avatar handles GET /user/avatar/{hash}.
func (h *UserHandler) Avatar(w http.ResponseWriter, r *http.Request) {
	rc, err := h.profile.Avatar(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	defer rc.Close()

	// Sniff the stored bytes; avatars are only accepted as images.
	head := make([]byte, 512)
	n, err := io.ReadFull(rc, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		writeError(w, r, h.logger, err)
		return
	}
	head = head[:n]

	w.Header().Set("Content-Type", http.DetectContentType(head))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(head); err != nil {
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Debug().Err(err).Msg("avatar stream interrupted")
	}
}

// =============================================================================
// Helper functions
// =============================================================================

func userID(r *http.Request) (int64, error) {
	uid, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || uid <= 0 {
		return 0, fmt.Errorf("%w: invalid user id", service.ErrInvalidInput)
	}
	return uid, nil
}

const maxBodySize = 1 << 16

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body", service.ErrInvalidInput)
	}
	return nil
}

// decodeOptional decodes a body that may be absent.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: unreadable request body", service.ErrInvalidInput)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body", service.ErrInvalidInput)
	}
	return nil
}

// parseFilter accepts either an array of {column: value} objects or that
// array encoded as a JSON string.
func parseFilter(raw json.RawMessage) (map[string]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, fmt.Errorf("%w: malformed filter", service.ErrInvalidInput)
		}
		if encoded == "" {
			return nil, nil
		}
		raw = json.RawMessage(encoded)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var entries []map[string]any
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: malformed filter", service.ErrInvalidInput)
	}

	filters := make(map[string]string)
	for _, entry := range entries {
		for _, column := range sortedKeys(entry) {
			value, err := stringify(column, entry[column])
			if err != nil {
				return nil, err
			}
			filters[column] = value
		}
	}
	return filters, nil
}

// sortedKeys returns the columns of one entry in name order, so a batch is
// evaluated the same way on every request.
func sortedKeys(entry map[string]any) []string {
	keys := make([]string, 0, len(entry))
	for k := range entry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stringify converts a decoded JSON scalar to its textual form. Typing is
// left to the service, which knows each column's kind.
func stringify(column string, v any) (string, error) {
	switch value := v.(type) {
	case string:
		return value, nil
	case json.Number:
		return value.String(), nil
	case bool:
		return strconv.FormatBool(value), nil
	case nil:
		return "", nil
	}
	return "", fmt.Errorf("%w: %s must be a scalar", service.ErrInvalidInput, column)
}

// clientIP returns the remote host. chi's RealIP middleware has already
// applied any forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
