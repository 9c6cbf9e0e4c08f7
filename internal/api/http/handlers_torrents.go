package apihttp

import (
	"encoding/base64"
	"net/http"
	"strings"

	"torrentsession/internal/domain"
)

type addTorrentRequest struct {
	Magnet        string   `json:"magnet,omitempty"`
	Metainfo      string   `json:"metainfo,omitempty"` // base64-encoded .torrent
	InfoHash      string   `json:"infoHash,omitempty"`
	Name          string   `json:"name,omitempty"`
	Category      string   `json:"category,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	SavePath      string   `json:"savePath,omitempty"`
	UseAutoTMM    *bool    `json:"useAutoTMM,omitempty"`
	Stopped       *bool    `json:"stopped,omitempty"`
	StopCondition *string  `json:"stopCondition,omitempty"`
	AddToQueueTop *bool    `json:"addToQueueTop,omitempty"`
	Trackers      []string `json:"trackers,omitempty"`
}

func (req addTorrentRequest) descriptor() (domain.TorrentDescriptor, error) {
	desc := domain.TorrentDescriptor{
		Magnet: strings.TrimSpace(req.Magnet),
		Hash:   domain.InfoHash(strings.ToLower(strings.TrimSpace(req.InfoHash))),
	}
	if req.Metainfo != "" {
		data, err := base64.StdEncoding.DecodeString(req.Metainfo)
		if err != nil {
			return domain.TorrentDescriptor{}, err
		}
		desc.Metainfo = data
	}
	return desc, nil
}

func (req addTorrentRequest) params() domain.AddTorrentParams {
	params := domain.AddTorrentParams{
		Name:          req.Name,
		Category:      req.Category,
		Tags:          req.Tags,
		SavePath:      req.SavePath,
		UseAutoTMM:    req.UseAutoTMM,
		Stopped:       req.Stopped,
		AddToQueueTop: req.AddToQueueTop,
		Trackers:      req.Trackers,
	}
	if req.StopCondition != nil {
		cond := domain.StopCondition(*req.StopCondition)
		params.StopCondition = &cond
	}
	return params
}

func (s *Server) handleTorrents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"torrents": s.session.All(),
			"count":    s.session.Count(),
		})
	case http.MethodPost:
		var req addTorrentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		desc, err := req.descriptor()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid metainfo encoding")
			return
		}
		if err := s.session.AddTorrent(desc, req.params()); err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"id": string(desc.InfoHash().ToTorrentID()),
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) handleTorrentByID(w http.ResponseWriter, r *http.Request) {
	tail := pathTail(r.URL.Path, "/torrents/")
	if tail == "" {
		writeError(w, http.StatusNotFound, "not_found", "torrent id required")
		return
	}
	parts := strings.SplitN(tail, "/", 2)
	id := domain.TorrentID(strings.ToLower(parts[0]))
	if len(parts) == 2 {
		s.handleTorrentSubresource(w, r, id, parts[1])
		return
	}

	switch r.Method {
	case http.MethodGet:
		info, ok := s.session.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "not_found", "torrent not found")
			return
		}
		writeJSON(w, http.StatusOK, info)
	case http.MethodDelete:
		opt := domain.KeepContent
		if r.URL.Query().Get("deleteFiles") == "true" {
			opt = domain.RemoveContent
		}
		if err := s.session.RemoveTorrent(id, opt); err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"id": string(id)})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

type setCategoryRequest struct {
	Category string `json:"category"`
}

type torrentTagsRequest struct {
	Tags []string `json:"tags"`
}

type moveStorageRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"` // "overwrite" (default) or "failIfExist"
}

func (s *Server) handleTorrentSubresource(w http.ResponseWriter, r *http.Request, id domain.TorrentID, sub string) {
	switch sub {
	case "category":
		if r.Method != http.MethodPut {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		var req setCategoryRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		if err := s.session.SetTorrentCategory(id, req.Category); err != nil {
			writeSessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "tags":
		var req torrentTagsRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		var err error
		switch r.Method {
		case http.MethodPost:
			err = s.session.AddTorrentTags(id, parseTags(req.Tags))
		case http.MethodDelete:
			err = s.session.RemoveTorrentTags(id, parseTags(req.Tags))
		default:
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if err != nil {
			writeSessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "move":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		var req moveStorageRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		mode := domain.MoveStorageOverwrite
		if req.Mode == "failIfExist" {
			mode = domain.MoveStorageFailIfExist
		}
		if err := s.session.MoveTorrentStorage(id, req.Path, mode); err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"id": string(id)})
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown subresource")
	}
}

type queueRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req queueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	ids := parseTorrentIDs(req.IDs)

	switch pathTail(r.URL.Path, "/torrents/queue/") {
	case "increase":
		s.session.IncreaseTorrentsQueuePos(ids)
	case "decrease":
		s.session.DecreaseTorrentsQueuePos(ids)
	case "top":
		s.session.TopTorrentsQueuePos(ids)
	case "bottom":
		s.session.BottomTorrentsQueuePos(ids)
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown queue operation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req addTorrentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	desc, err := req.descriptor()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid metainfo encoding")
		return
	}
	if err := s.session.DownloadMetadata(desc); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"id": string(desc.InfoHash().ToTorrentID()),
	})
}

func (s *Server) handleMetadataByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	id := domain.TorrentID(strings.ToLower(pathTail(r.URL.Path, "/metadata/")))
	if id == "" {
		writeError(w, http.StatusNotFound, "not_found", "torrent id required")
		return
	}
	if err := s.session.CancelDownloadMetadata(id); err != nil {
		writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
