package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"newsdash/internal/domain"
	"newsdash/internal/usecase"
)

func (s *Server) handleBooksPage(w http.ResponseWriter, r *http.Request) {
	stats, err := s.books.LibraryStats(r.Context())
	if err != nil {
		http.Error(w, "failed to load library stats", http.StatusInternalServerError)
		return
	}

	s.render(w, http.StatusOK, "books.html", pageData{
		Title:  "My Books",
		Active: "books",
		Stats:  stats,
	})
}

func (s *Server) handleBookLibraryPage(w http.ResponseWriter, r *http.Request) {
	books, err := s.books.ReadBooks(r.Context())
	if err != nil {
		http.Error(w, "failed to load library", http.StatusInternalServerError)
		return
	}

	s.render(w, http.StatusOK, "book_library.html", pageData{
		Title:  "Library",
		Active: "books",
		Books:  books,
	})
}

func (s *Server) handleBookImport(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("csv")
	if err != nil {
		s.renderLibraryError(w, r, "A Goodreads CSV export is required.")
		return
	}
	defer file.Close()

	if _, err := s.recommender.ImportCSV(r.Context(), file); err != nil {
		if s.logger != nil {
			s.logger.Error("library import failed", "error", err)
		}
		s.renderLibraryError(w, r, "Import failed: "+err.Error())
		return
	}

	http.Redirect(w, r, "/books/library", http.StatusSeeOther)
}

func (s *Server) handleBookAdd(w http.ResponseWriter, r *http.Request) {
	title := r.PostFormValue("title")
	author := r.PostFormValue("author")
	shelf := r.PostFormValue("shelf")

	if err := s.recommender.AddBook(r.Context(), title, author, shelf); err != nil {
		s.renderLibraryError(w, r, err.Error())
		return
	}

	http.Redirect(w, r, "/books/library", http.StatusSeeOther)
}

func (s *Server) renderLibraryError(w http.ResponseWriter, r *http.Request, msg string) {
	books, err := s.books.ReadBooks(r.Context())
	if err != nil {
		http.Error(w, "failed to load library", http.StatusInternalServerError)
		return
	}

	s.render(w, http.StatusBadRequest, "book_library.html", pageData{
		Title:  "Library",
		Active: "books",
		Books:  books,
		Error:  msg,
	})
}

func (s *Server) handleRecommendationsPage(w http.ResponseWriter, r *http.Request) {
	recs, err := s.books.Recommendations(r.Context())
	if err != nil {
		http.Error(w, "failed to load recommendations", http.StatusInternalServerError)
		return
	}

	s.render(w, http.StatusOK, "book_recommendations.html", pageData{
		Title:           "Recommendations",
		Active:          "books",
		Recommendations: recs,
	})
}

type rateRequest struct {
	Rating *int `json:"rating"`
}

func (s *Server) handleBookRate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid book id"})
		return
	}

	var req rateRequest
	if err := decodeJSON(r, &req); err != nil || req.Rating == nil || *req.Rating < 0 || *req.Rating > 5 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "rating must be an integer between 0 and 5"})
		return
	}

	if err := s.books.RateBook(r.Context(), id, *req.Rating); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "book not found"})
			return
		}
		if s.logger != nil {
			s.logger.Error("rate book failed", "id", id, "error", err)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "rate failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "rating": *req.Rating})
}

func (s *Server) handleBookDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid book id"})
		return
	}

	if err := s.books.DeleteBook(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "book not found"})
			return
		}
		if s.logger != nil {
			s.logger.Error("delete book failed", "id", id, "error", err)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "delete failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGenerateRecommendations(w http.ResponseWriter, r *http.Request) {
	count, err := s.recommender.Generate(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrNoBooks):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "add some books to your library first"})
		case errors.Is(err, usecase.ErrRecommenderDisabled):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "recommendation generation is not configured"})
		default:
			if s.logger != nil {
				s.logger.Error("recommendation generation failed", "error", err)
			}
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "generation failed"})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "count": count})
}
