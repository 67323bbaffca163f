package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ttseval/internal/i18n"
	"ttseval/internal/items"
)

// AudioFiles resolves audio file names inside a sheet directory.
type AudioFiles interface {
	Path(sheet, name string) (string, error)
}

// Server wires HTTP routing for the annotation UI.
type Server struct {
	logger       *slog.Logger
	items        *items.Service
	audio        AudioFiles
	templates    *template.Template
	staticFS     http.FileSystem
	metrics      *Metrics
	defaultSheet string
}

// NewServer constructs a chi router implementing http.Handler.
func NewServer(logger *slog.Logger, service *items.Service, audio AudioFiles, templates *template.Template, staticFS http.FileSystem, metrics *Metrics, defaultSheet string) http.Handler {
	if metrics == nil {
		metrics = NewMetrics()
	}
	srv := &Server{
		logger:       logger,
		items:        service,
		audio:        audio,
		templates:    templates,
		staticFS:     staticFS,
		metrics:      metrics,
		defaultSheet: defaultSheet,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(srv.staticFS)))
	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", srv.handleHealth)

	r.Get("/", srv.handleIndex)
	r.Get("/sheet/{sheet}", srv.handleSheet)
	r.Get("/annotate/{sheet}/{itemID}", srv.handleAnnotate)
	r.Get("/audio/{sheet}/*", srv.handleAudio)
	r.Get("/help", srv.handleHelp)
	r.Get("/lang/{lang}", srv.handleSetLanguage)

	r.Post("/api/save", srv.handleSave)
	r.Post("/api/save_multiple", srv.handleSaveMultiple)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sheet, err := s.items.DefaultSheet(ctx, s.defaultSheet)
	if err != nil {
		s.pageError(w, err)
		return
	}
	item, err := s.items.FirstPending(ctx, sheet)
	if err != nil {
		s.pageError(w, err)
		return
	}
	http.Redirect(w, r, annotatePath(sheet, item.ID), http.StatusFound)
}

func (s *Server) handleSheet(w http.ResponseWriter, r *http.Request) {
	lang := s.getLanguage(r)
	sheet := urlParam(r, "sheet")

	list, err := s.items.ListItems(r.Context(), sheet)
	if err != nil {
		s.pageError(w, err)
		return
	}

	s.renderPage(w, r, lang, sheet, "list.html", map[string]any{
		"Sheet": sheet,
		"Items": list,
		"Lang":  lang,
	})
}

func (s *Server) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	lang := s.getLanguage(r)
	sheet := urlParam(r, "sheet")
	itemID := urlParam(r, "itemID")

	view, err := s.items.AnnotateView(r.Context(), sheet, itemID)
	if err != nil {
		s.pageError(w, err)
		return
	}

	s.renderPage(w, r, lang, sheet+" / "+itemID, "annotate.html", map[string]any{
		"View": view,
		"Lang": lang,
	})
}

func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	lang := s.getLanguage(r)
	s.renderPage(w, r, lang, i18n.Get(lang, "help"), "help.html", map[string]any{
		"Lang": lang,
	})
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	sheet := urlParam(r, "sheet")
	name := urlParam(r, "*")

	path, err := s.audio.Path(sheet, name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	const endpoint = "single"

	var req items.SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.saveFailed(endpoint, "validation")
		writeJSON(w, http.StatusBadRequest, errorBody("Missing data"))
		return
	}

	if err := s.items.Save(r.Context(), req); err != nil {
		if errors.Is(err, items.ErrInvalidInput) {
			s.metrics.saveFailed(endpoint, "validation")
			writeJSON(w, http.StatusBadRequest, errorBody("Missing data"))
			return
		}
		s.metrics.saveFailed(endpoint, "store")
		s.logger.Error("save annotation failed",
			slog.String("sheet", req.SheetName),
			slog.String("item_id", req.ItemID),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}

	s.metrics.saved(endpoint, 1)
	writeJSON(w, http.StatusOK, successBody())
}

func (s *Server) handleSaveMultiple(w http.ResponseWriter, r *http.Request) {
	const endpoint = "multiple"

	var entries []json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil || entries == nil {
		s.metrics.saveFailed(endpoint, "validation")
		writeJSON(w, http.StatusBadRequest, errorBody("Expected list of annotations"))
		return
	}

	reqs := make([]items.SaveRequest, 0, len(entries))
	for i, entry := range entries {
		var req items.SaveRequest
		if err := json.Unmarshal(entry, &req); err != nil {
			s.logger.Warn("skipping malformed annotation entry",
				slog.Int("position", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		reqs = append(reqs, req)
	}

	saved, err := s.items.SaveMany(r.Context(), reqs)
	s.metrics.saved(endpoint, saved)
	if err != nil {
		s.metrics.saveFailed(endpoint, "store")
		s.logger.Error("save multiple annotations failed",
			slog.Int("saved", saved),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, successBody())
}

type pageView struct {
	Title       string
	Body        template.HTML
	Lang        string
	UILanguages []UILanguage
	SheetNames  []string
}

type UILanguage struct {
	Code string
	Name string
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, lang, title, contentTemplate string, payload any) {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, contentTemplate, payload); err != nil {
		s.logger.Error("render template failed", slog.String("template", contentTemplate), slog.String("error", err.Error()))
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	names, err := s.items.SheetNames(r.Context())
	if err != nil {
		s.logger.Warn("list sheets for navigation failed", slog.String("error", err.Error()))
	}

	data := pageView{
		Title:       title + " · " + i18n.Get(lang, "app_name"),
		Body:        template.HTML(body.String()),
		Lang:        lang,
		UILanguages: s.getUILanguages(),
		SheetNames:  names,
	}
	s.executeTemplate(w, "base.html", data)
}

func (s *Server) executeTemplate(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("render template failed", slog.String("template", name), slog.String("error", err.Error()))
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

// pageError degrades page handlers to a plain-text message.
func (s *Server) pageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, items.ErrSheetNotFound):
		s.clientError(w, http.StatusNotFound, "sheet not found")
	case errors.Is(err, items.ErrItemNotFound):
		s.clientError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, items.ErrNoItems):
		s.clientError(w, http.StatusNotFound, "sheet has no items")
	default:
		s.serverError(w, err)
	}
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	s.logger.Error("request error", slog.String("error", err.Error()))
	http.Error(w, "error loading workbook, check the server log", http.StatusInternalServerError)
}

func (s *Server) clientError(w http.ResponseWriter, status int, msg string) {
	http.Error(w, msg, status)
}

func (s *Server) getLanguage(r *http.Request) string {
	// Check cookie first
	if cookie, err := r.Cookie("lang"); err == nil && cookie.Value != "" {
		if isValidLanguage(cookie.Value) {
			return cookie.Value
		}
	}
	// Check query param
	if lang := r.URL.Query().Get("lang"); lang != "" && isValidLanguage(lang) {
		return lang
	}
	// Check Accept-Language header
	if acceptLang := r.Header.Get("Accept-Language"); acceptLang != "" {
		parts := strings.Split(acceptLang, ",")
		langCode := strings.TrimSpace(strings.Split(parts[0], ";")[0])
		if len(langCode) >= 2 && isValidLanguage(langCode[:2]) {
			return langCode[:2]
		}
	}
	return i18n.DefaultLanguage
}

func isValidLanguage(lang string) bool {
	_, ok := i18n.LanguageNames[lang]
	return ok
}

func (s *Server) getUILanguages() []UILanguage {
	result := make([]UILanguage, 0, len(i18n.Supported))
	for _, code := range i18n.Supported {
		result = append(result, UILanguage{
			Code: code,
			Name: i18n.LanguageNames[code],
		})
	}
	return result
}

func (s *Server) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	lang := chi.URLParam(r, "lang")
	if !isValidLanguage(lang) {
		lang = i18n.DefaultLanguage
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "lang",
		Value:    lang,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60, // 1 year
		SameSite: http.SameSiteLaxMode,
	})

	// Redirect back to referer or home
	redirect := r.Header.Get("Referer")
	if redirect == "" {
		redirect = "/"
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

// urlParam returns a decoded route parameter. chi matches on RawPath when
// the request carried escapes that differ from the default encoding.
func urlParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v
	}
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}

func annotatePath(sheet, itemID string) string {
	return "/annotate/" + url.PathEscape(sheet) + "/" + url.PathEscape(itemID)
}

type apiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func successBody() apiResponse {
	return apiResponse{Status: "success"}
}

func errorBody(msg string) apiResponse {
	return apiResponse{Status: "error", Message: msg}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
