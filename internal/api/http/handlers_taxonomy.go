package apihttp

import (
	"net/http"

	"torrentsession/internal/domain"
)

type categoryRequest struct {
	Name     string `json:"name"`
	SavePath string `json:"savePath,omitempty"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		names := s.session.Categories()
		categories := make([]categoryRequest, 0, len(names))
		for _, name := range names {
			options, _ := s.session.CategoryOptionsOf(name)
			categories = append(categories, categoryRequest{Name: name, SavePath: options.SavePath})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
	case http.MethodPost:
		var req categoryRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		if err := s.session.AddCategory(req.Name, domain.CategoryOptions{SavePath: req.SavePath}); err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, req)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) handleCategoryByName(w http.ResponseWriter, r *http.Request) {
	name := pathTail(r.URL.Path, "/categories/")
	if name == "" {
		writeError(w, http.StatusNotFound, "not_found", "category name required")
		return
	}
	switch r.Method {
	case http.MethodGet:
		options, ok := s.session.CategoryOptionsOf(name)
		if !ok {
			writeError(w, http.StatusNotFound, "not_found", "category not found")
			return
		}
		writeJSON(w, http.StatusOK, categoryRequest{Name: name, SavePath: options.SavePath})
	case http.MethodPatch:
		var req categoryRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		if err := s.session.EditCategory(name, domain.CategoryOptions{SavePath: req.SavePath}); err != nil {
			writeSessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := s.session.RemoveCategory(name); err != nil {
			writeSessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

type tagRequest struct {
	Tag string `json:"tag"`
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]interface{}{"tags": s.session.TagsList()})
	case http.MethodPost:
		var req tagRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		if !s.session.AddTag(domain.Tag(req.Tag)) {
			writeError(w, http.StatusConflict, "already_exists", "tag invalid or already exists")
			return
		}
		writeJSON(w, http.StatusCreated, req)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) handleTagByName(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	tag := pathTail(r.URL.Path, "/tags/")
	if tag == "" {
		writeError(w, http.StatusNotFound, "not_found", "tag required")
		return
	}
	if !s.session.RemoveTag(domain.Tag(tag)) {
		writeError(w, http.StatusNotFound, "not_found", "tag not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
