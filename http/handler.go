package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sagarc03/hubstore"
)

// MaxListBodySize bounds the JSON body of a list-files request.
const MaxListBodySize = 4096

// Hub is the request pipeline the handler exposes over HTTP.
type Hub interface {
	HandleRequest(ctx context.Context, address, path string, headers http.Header, body io.Reader) (string, error)
	HandleListFiles(ctx context.Context, address string, page *string, headers http.Header) (hubstore.ListFilesResult, error)
	HubInfo() (hubstore.HubInfo, error)
	Read(ctx context.Context, address, path string) (hubstore.ReadResult, error)
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	// MaxUploadSize limits store bodies in bytes. Zero means unlimited.
	MaxUploadSize int64
	CORS          CORSConfig
	// Logger receives access logs. Nil disables them.
	Logger *slog.Logger
}

// Handler serves the hub HTTP API.
type Handler struct {
	config HandlerConfig
	hub    Hub
}

// NewHandler creates a new Handler with the given configuration and hub.
func NewHandler(config *HandlerConfig, hub Hub) *Handler {
	return &Handler{
		config: *config,
		hub:    hub,
	}
}

type storeResponse struct {
	PublicURL string `json:"publicURL"`
}

type listFilesRequest struct {
	Page *string `json:"page"`
}

// Router returns an http.Handler with every hub route mounted.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	if h.config.Logger != nil {
		r.Use(RequestLogger(h.config.Logger))
	}

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Post("/store/{address:[a-zA-Z0-9]+}/*", h.handleStore)
	r.Post("/list-files/{address:[a-zA-Z0-9]+}", h.handleListFiles)
	r.Post("/list-files/{address:[a-zA-Z0-9]+}/", h.handleListFiles)
	r.Get("/hub_info", h.handleHubInfo)
	r.Get("/hub_info/", h.handleHubInfo)
	r.Get("/read/{address:[a-zA-Z0-9]+}/*", h.handleRead)

	return r
}

func (h *Handler) handleStore(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	path := wildcardPath(r)

	if path == "" {
		WriteError(w, http.StatusNotFound, "Not Found")
		return
	}

	body := r.Body
	if limit := h.config.MaxUploadSize; limit > 0 {
		if r.ContentLength > limit {
			HandleError(w, fmt.Errorf("store %s: %w: declared %d bytes, limit %d", address, hubstore.ErrPayloadTooLarge, r.ContentLength, limit))
			return
		}
		body = http.MaxBytesReader(w, r.Body, limit)
	}

	publicURL, err := h.hub.HandleRequest(r.Context(), address, path, r.Header, body)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusAccepted, storeResponse{PublicURL: publicURL})
}

func (h *Handler) handleListFiles(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > MaxListBodySize {
		WriteError(w, http.StatusBadRequest, "Invalid JSON: too long")
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, MaxListBodySize+1))
	if err != nil {
		HandleError(w, fmt.Errorf("list files: read body: %w", err))
		return
	}
	if len(raw) > MaxListBodySize {
		WriteError(w, http.StatusBadRequest, "Invalid JSON: too long")
		return
	}

	var req listFilesRequest
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
	}

	page := req.Page
	if page != nil && *page == "" {
		page = nil
	}

	result, err := h.hub.HandleListFiles(r.Context(), chi.URLParam(r, "address"), page, r.Header)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusAccepted, result)
}

func (h *Handler) handleHubInfo(w http.ResponseWriter, _ *http.Request) {
	info, err := h.hub.HubInfo()
	if err != nil {
		if errors.Is(err, hubstore.ErrConfig) {
			slog.Error("hub info", "error", err)
			WriteError(w, http.StatusInternalServerError, "Server challenge text misconfigured")
			return
		}
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, info)
}

func (h *Handler) handleRead(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)

	obj, err := h.hub.Read(r.Context(), chi.URLParam(r, "address"), path)
	if err != nil {
		if errors.Is(err, hubstore.ErrBadPath) {
			WriteError(w, http.StatusNotFound, "Not Found")
			return
		}
		HandleError(w, err)
		return
	}
	defer func() { _ = obj.Body.Close() }()

	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	if obj.ETag != "" {
		w.Header().Set("ETag", `"`+obj.ETag+`"`)
	}

	if rs, ok := obj.Body.(io.ReadSeeker); ok {
		http.ServeContent(w, r, path, obj.ModTime, rs)
		return
	}

	if !obj.ModTime.IsZero() {
		w.Header().Set("Last-Modified", obj.ModTime.UTC().Format(http.TimeFormat))
	}
	if obj.Size >= 0 {
		w.Header().Set("Content-Length", fmt.Sprint(obj.Size))
	}
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		if _, err := io.Copy(w, obj.Body); err != nil {
			slog.Warn("read: copy body", "path", path, "error", err)
		}
	}
}

// wildcardPath returns the decoded remainder of the URL after the address.
func wildcardPath(r *http.Request) string {
	p := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(p); err == nil {
			p = unescaped
		}
	}
	return p
}

// NewServer wraps net/http.Server with the timeouts the hub uses.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}
}
