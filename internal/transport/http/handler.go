package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/TommyBez/v0-hub/internal/domain"
	"github.com/TommyBez/v0-hub/internal/service"
	"github.com/TommyBez/v0-hub/pkg/logger"
)

type Handler struct {
	service *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		service: svc,
	}
}

func (h *Handler) LoggingMiddleware(log logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set("X-Request-ID", requestID)
			ctx := logger.WithRequestID(r.Context(), requestID)
			ctx = logger.WithLogger(ctx, log)
			log.Info(ctx, "request received",
				zap.String("method", r.Method),
				zap.String("uri", r.RequestURI))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router, log logger.Logger) {
	router.Use(h.LoggingMiddleware(log))

	// Health
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	// API
	router.HandleFunc("/api/validate", h.ValidateRepository).Methods("GET")
	router.HandleFunc("/api/branches", h.ListBranches).Methods("GET")
	router.HandleFunc("/api/chats", h.CreateChat).Methods("POST")
	router.HandleFunc("/api/token", h.SaveToken).Methods("PUT")
	router.HandleFunc("/api/token", h.GetTokenStatus).Methods("GET")
	router.HandleFunc("/api/token", h.DeleteToken).Methods("DELETE")

	// Redirect surfaces; registered last so /health and /api keep priority.
	router.HandleFunc("/{owner}/{repo}", h.RepositoryPage).Methods("GET")
	router.HandleFunc("/{owner}/{repo}/tree/{branch:.*}", h.TreePage).Methods("GET")
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// ValidateRepository GET /api/validate?url=...
func (h *Handler) ValidateRepository(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		h.respondError(w, r, http.StatusBadRequest, domain.ErrCodeInvalidRequest, "url query parameter required")
		return
	}

	valid, err := h.service.ValidateRepository(ctx, rawURL)
	if err != nil {
		log.Error(ctx, "failed to validate repository", zap.Error(err))
		h.respondDomainError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, map[string]bool{"isValid": valid})
}

// ListBranches GET /api/branches?url=...
func (h *Handler) ListBranches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		h.respondError(w, r, http.StatusBadRequest, domain.ErrCodeInvalidRequest, "url query parameter required")
		return
	}

	list, err := h.service.ListBranches(ctx, rawURL)
	if err != nil {
		log.Error(ctx, "failed to list branches", zap.Error(err))
		h.respondDomainError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, list)
}

// CreateChat POST /api/chats.
func (h *Handler) CreateChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req struct {
		URL     string `json:"url"`
		Branch  string `json:"branch"`
		Commit  string `json:"commit"`
		Privacy bool   `json:"privacy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error(ctx, "failed to decode request", zap.Error(err))
		h.respondError(w, r, http.StatusBadRequest, domain.ErrCodeInvalidRequest, "invalid request body")
		return
	}
	if req.URL == "" || req.Branch == "" {
		h.respondError(w, r, http.StatusBadRequest, domain.ErrCodeInvalidRequest, "url and branch are required")
		return
	}

	resolution, err := h.service.ResolveChat(ctx, domain.ChatRequest{
		RepositoryURL: req.URL,
		BranchPath:    []string{req.Branch},
		Commit:        req.Commit,
		Privacy:       req.Privacy,
		UserID:        r.Header.Get("X-User-ID"),
	})
	if err != nil {
		log.Error(ctx, "failed to resolve chat", zap.Error(err))
		h.respondDomainError(w, r, err)
		return
	}

	if resolution.Kind == domain.ResolutionBranchSelection {
		h.respondDomainError(w, r, domain.ErrBranchNotFound)
		return
	}

	response := map[string]string{"url": resolution.RedirectURL}
	if resolution.DemoURL != "" {
		response["demo_url"] = resolution.DemoURL
	}
	h.respondJSON(w, r, http.StatusOK, response)
}

// SaveToken PUT /api/token.
func (h *Handler) SaveToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error(ctx, "failed to decode request", zap.Error(err))
		h.respondError(w, r, http.StatusBadRequest, domain.ErrCodeInvalidRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		h.respondError(w, r, http.StatusBadRequest, domain.ErrCodeInvalidRequest, "token is required")
		return
	}

	if err := h.service.SaveToken(ctx, userID, req.Token); err != nil {
		log.Error(ctx, "failed to save token", zap.Error(err))
		h.respondDomainError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, map[string]bool{"configured": true})
}

// GetTokenStatus GET /api/token. The token itself is never returned.
func (h *Handler) GetTokenStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	configured, err := h.service.HasToken(ctx, userID)
	if err != nil {
		log.Error(ctx, "failed to check token", zap.Error(err))
		h.respondDomainError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, map[string]bool{"configured": configured})
}

// DeleteToken DELETE /api/token.
func (h *Handler) DeleteToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteToken(ctx, userID); err != nil {
		log.Error(ctx, "failed to delete token", zap.Error(err))
		h.respondDomainError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, map[string]bool{"configured": false})
}

// RepositoryPage GET /{owner}/{repo}: resolve the default branch and
// redirect to its tree URL, or answer with the branch list when the default
// branch cannot be resolved.
func (h *Handler) RepositoryPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	vars := mux.Vars(r)

	repo := domain.RepositoryRef{Owner: vars["owner"], Name: vars["repo"]}

	resolution, err := h.service.ResolveRepository(ctx, repo)
	if err != nil {
		log.Error(ctx, "failed to resolve repository", zap.Error(err))
		h.respondDomainError(w, r, err)
		return
	}

	if resolution.Kind == domain.ResolutionBranchSelection {
		list, err := h.service.ListBranches(ctx, repo.URL())
		if err != nil {
			log.Error(ctx, "failed to list branches", zap.Error(err))
			h.respondDomainError(w, r, err)
			return
		}
		h.respondJSON(w, r, http.StatusOK, list)
		return
	}

	http.Redirect(w, r, resolution.RedirectURL, http.StatusTemporaryRedirect)
}

// TreePage GET /{owner}/{repo}/tree/{branch}: resolve or create the chat for
// this branch and redirect to it. Branch names containing "/" arrive as
// extra path segments and are joined back by the orchestrator.
func (h *Handler) TreePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	vars := mux.Vars(r)

	repo := domain.RepositoryRef{Owner: vars["owner"], Name: vars["repo"]}
	query := r.URL.Query()

	resolution, err := h.service.ResolveChat(ctx, domain.ChatRequest{
		RepositoryURL: repo.URL(),
		BranchPath:    splitBranchPath(vars["branch"]),
		Commit:        query.Get("commit"),
		Privacy:       query.Get("privacy") == "private",
		UserID:        r.Header.Get("X-User-ID"),
	})
	if err != nil {
		log.Error(ctx, "failed to resolve chat", zap.Error(err))
		h.respondDomainError(w, r, err)
		return
	}

	http.Redirect(w, r, resolution.RedirectURL, http.StatusTemporaryRedirect)
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		h.respondError(w, r, http.StatusUnauthorized, domain.ErrCodeInvalidRequest, "X-User-ID header required")
		return "", false
	}
	return userID, true
}

func (h *Handler) respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		ctx := r.Context()
		log := logger.FromContext(ctx)
		log.Error(ctx, "failed to encode response", zap.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.respondJSON(w, r, status, domain.NewErrorResponse(code, message))
}

// respondDomainError renders the error card for a failed flow: every
// directory/chat-service failure surfaces here, never as a silent redirect.
func (h *Handler) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	h.respondError(w, r, httpStatusFor(err), domain.MapErrorToCode(err), err.Error())
}

func httpStatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRepositoryURL), errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRepositoryNotFound), errors.Is(err, domain.ErrBranchNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoTokenConfigured):
		return http.StatusPreconditionFailed
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUpstream), errors.Is(err, domain.ErrNoSystemKey):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func splitBranchPath(branch string) []string {
	var segments []string
	for _, segment := range strings.Split(branch, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}
