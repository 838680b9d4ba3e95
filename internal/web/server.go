package web

import (
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"newsdash/internal/domain"
	"newsdash/internal/ports"
	"newsdash/internal/usecase"
)

//go:embed templates static
var assets embed.FS

// Deps wires the web layer's collaborators. The web layer contains no
// ingestion logic; it only calls into the engine.
type Deps struct {
	Articles      ports.ArticleStore
	Books         ports.BookStore
	Users         ports.UserStore
	Subscriptions ports.SubscriptionStore
	Ingestor      *usecase.Ingestor
	Recommender   *usecase.Recommender
	Sessions      *SessionManager
	PushPublicKey string
	Logger        *slog.Logger
}

// Server renders persisted state and exposes the trigger/dismiss API.
type Server struct {
	articles    ports.ArticleStore
	books       ports.BookStore
	users       ports.UserStore
	subs        ports.SubscriptionStore
	ingestor    *usecase.Ingestor
	recommender *usecase.Recommender
	sessions    *SessionManager
	pushKey     string
	logger      *slog.Logger

	router chi.Router
	pages  map[string]*template.Template
}

// New builds the router and parses the embedded templates.
func New(deps Deps) *Server {
	s := &Server{
		articles:    deps.Articles,
		books:       deps.Books,
		users:       deps.Users,
		subs:        deps.Subscriptions,
		ingestor:    deps.Ingestor,
		recommender: deps.Recommender,
		sessions:    deps.Sessions,
		pushKey:     deps.PushPublicKey,
		logger:      deps.Logger,
	}

	s.pages = map[string]*template.Template{}
	for _, page := range []string{"login.html", "news.html", "bestsellers.html", "books.html", "book_library.html", "book_recommendations.html"} {
		s.pages[page] = template.Must(
			template.ParseFS(assets, "templates/layout.html", "templates/"+page),
		)
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/login", s.handleLoginPage)
	r.Post("/login", s.handleLogin)
	r.Get("/logout", s.handleLogout)
	// The worker must be served from the root scope to control all pages.
	r.Get("/sw.js", s.handleServiceWorker)
	r.Handle("/static/*", http.FileServer(http.FS(assets)))

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/", s.handleIndex)
		r.Get("/news/{source}", s.handleNewsPage)
		r.Get("/bestsellers/{source}", s.handleBestsellersPage)

		r.Get("/books", s.handleBooksPage)
		r.Get("/books/library", s.handleBookLibraryPage)
		r.Post("/books/library/import", s.handleBookImport)
		r.Post("/books/library/add", s.handleBookAdd)
		r.Get("/books/recommendations", s.handleRecommendationsPage)

		r.Post("/api/scrape/{source}", s.handleScrape)
		r.Post("/api/dismiss", s.handleDismiss)
		r.Post("/api/dismiss-all/{source}", s.handleDismissAll)
		r.Post("/api/admin/clear-read/{keyword}", s.handleClearRead)
		r.Get("/api/articles/{source}", s.handleArticles)
		r.Post("/api/push/subscribe", s.handleSubscribe)
		r.Get("/api/push/key", s.handlePushKey)

		r.Post("/api/books/{id}/rate", s.handleBookRate)
		r.Post("/api/books/{id}/delete", s.handleBookDelete)
		r.Post("/api/books/recommendations/generate", s.handleGenerateRecommendations)
	})

	s.router = r
	return s
}

// ServeHTTP dispatches to the chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// pageData is the payload shared by all page templates.
type pageData struct {
	Title           string
	Active          string
	Sources         []domain.Source
	Articles        []domain.Article
	Books           []domain.Book
	Stats           domain.LibraryStats
	Recommendations []domain.Recommendation
	Error           string
	PushKey         string
}

func (s *Server) render(w http.ResponseWriter, status int, page string, data pageData) {
	tmpl, ok := s.pages[page]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	data.Sources = domain.Sources
	data.PushKey = s.pushKey

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout.html", data); err != nil && s.logger != nil {
		s.logger.Error("render page", "page", page, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
