package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"newsdash/internal/domain"
)

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if _, err := s.sessions.Validate(cookie.Value); err == nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
	}
	s.render(w, http.StatusOK, "login.html", pageData{Title: "Login"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	if !verifyCredentials(r.Context(), s.users, username, password) {
		if s.logger != nil {
			s.logger.Warn("login failed", "username", username)
		}
		s.render(w, http.StatusUnauthorized, "login.html", pageData{
			Title: "Login",
			Error: "Invalid username or password.",
		})
		return
	}

	token, err := s.sessions.Issue(username)
	if err != nil {
		http.Error(w, "failed to start session", http.StatusInternalServerError)
		return
	}

	s.sessions.SetCookie(w, token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.ClearCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/news/"+domain.Sources[0].Key, http.StatusSeeOther)
}

func (s *Server) handleNewsPage(w http.ResponseWriter, r *http.Request) {
	source, err := domain.SourceByKey(chi.URLParam(r, "source"))
	if err != nil || source.Kind != domain.KindNews {
		http.NotFound(w, r)
		return
	}

	articles, err := s.articles.Articles(r.Context(), source.Key)
	if err != nil {
		http.Error(w, "failed to load articles", http.StatusInternalServerError)
		return
	}

	s.render(w, http.StatusOK, "news.html", pageData{
		Title:    source.Name,
		Active:   source.Key,
		Articles: articles,
	})
}

func (s *Server) handleBestsellersPage(w http.ResponseWriter, r *http.Request) {
	source, err := domain.SourceByKey(chi.URLParam(r, "source"))
	if err != nil || source.Kind != domain.KindBestseller {
		http.NotFound(w, r)
		return
	}

	articles, err := s.articles.Articles(r.Context(), source.Key)
	if err != nil {
		http.Error(w, "failed to load articles", http.StatusInternalServerError)
		return
	}

	s.render(w, http.StatusOK, "bestsellers.html", pageData{
		Title:    source.Name,
		Active:   source.Key,
		Articles: articles,
	})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "source")

	result, err := s.ingestor.Scrape(r.Context(), key)
	if err != nil {
		var fetchErr *domain.FetchError
		switch {
		case errors.Is(err, domain.ErrUnknownSource):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown source"})
		case errors.As(err, &fetchErr):
			if s.logger != nil {
				s.logger.Error("manual scrape fetch failed", "source", key, "error", err)
			}
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "fetch failed"})
		default:
			if s.logger != nil {
				s.logger.Error("manual scrape failed", "source", key, "error", err)
			}
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ingest failed"})
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type dismissRequest struct {
	URL    string `json:"url"`
	Source string `json:"source,omitempty"`
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	var req dismissRequest
	if err := decodeJSON(r, &req); err != nil || req.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url is required"})
		return
	}

	if err := s.articles.Dismiss(r.Context(), req.URL); err != nil {
		if s.logger != nil {
			s.logger.Error("dismiss failed", "url", req.URL, "error", err)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "dismiss failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDismissAll(w http.ResponseWriter, r *http.Request) {
	source, err := domain.SourceByKey(chi.URLParam(r, "source"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown source"})
		return
	}

	cleared, err := s.articles.DismissSource(r.Context(), source.Key)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("dismiss-all failed", "source", source.Key, "error", err)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "dismiss failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "cleared": cleared})
}

func (s *Server) handleClearRead(w http.ResponseWriter, r *http.Request) {
	keyword := chi.URLParam(r, "keyword")
	if keyword == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "keyword is required"})
		return
	}

	cleared, err := s.articles.ClearDismissed(r.Context(), keyword)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("clear-read failed", "keyword", keyword, "error", err)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "clear failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "cleared": cleared, "keyword": keyword})
}

// articleView is the JSON shape served to the dashboard front-end.
type articleView struct {
	ID        int64     `json:"id"`
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Section   string    `json:"section,omitempty"`
	Rank      int       `json:"rank,omitempty"`
	Author    string    `json:"author,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	source, err := domain.SourceByKey(chi.URLParam(r, "source"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown source"})
		return
	}

	articles, err := s.articles.Articles(r.Context(), source.Key)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load articles"})
		return
	}

	views := make([]articleView, 0, len(articles))
	for _, a := range articles {
		views = append(views, articleView{
			ID:        a.ID,
			Source:    a.Source,
			Title:     a.Title,
			URL:       a.URL,
			Section:   a.Section,
			Rank:      a.Rank,
			Author:    a.Author,
			ImageURL:  a.ImageURL,
			CreatedAt: a.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"source": source.Key, "articles": views})
}

// subscribeRequest mirrors the browser's PushSubscription.toJSON() shape.
type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256DH string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(r, &req); err != nil || req.Endpoint == "" || req.Keys.P256DH == "" || req.Keys.Auth == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid subscription"})
		return
	}

	sub := domain.PushSubscription{
		ID:       uuid.NewString(),
		Endpoint: req.Endpoint,
		P256DH:   req.Keys.P256DH,
		Auth:     req.Keys.Auth,
	}

	if err := s.subs.SaveSubscription(r.Context(), sub); err != nil {
		if s.logger != nil {
			s.logger.Error("save subscription failed", "error", err)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save subscription"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "subscribed"})
}

func (s *Server) handlePushKey(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"key": s.pushKey})
}

func (s *Server) handleServiceWorker(w http.ResponseWriter, r *http.Request) {
	body, err := assets.ReadFile("static/sw.js")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(body)
}
