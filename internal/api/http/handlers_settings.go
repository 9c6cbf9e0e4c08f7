package apihttp

import (
	"net/http"
	"time"

	"torrentsession/internal/domain"
)

// settingsPatchRequest mirrors domain.SettingsPatch with JSON-friendly
// durations (milliseconds).
type settingsPatchRequest struct {
	SavePath                     *string  `json:"savePath,omitempty"`
	DownloadPathEnabled          *bool    `json:"downloadPathEnabled,omitempty"`
	DownloadPath                 *string  `json:"downloadPath,omitempty"`
	SubcategoriesEnabled         *bool    `json:"subcategoriesEnabled,omitempty"`
	UseCategoryPathsInManualMode *bool    `json:"useCategoryPathsInManualMode,omitempty"`
	AutoTMMDisabledByDefault     *bool    `json:"autoTMMDisabledByDefault,omitempty"`
	QueueingEnabled              *bool    `json:"queueingEnabled,omitempty"`
	MaxActiveDownloads           *int     `json:"maxActiveDownloads,omitempty"`
	MaxActiveUploads             *int     `json:"maxActiveUploads,omitempty"`
	MaxActiveTorrents            *int     `json:"maxActiveTorrents,omitempty"`
	MaxActiveCheckingTorrents    *int     `json:"maxActiveCheckingTorrents,omitempty"`
	AddTorrentToQueueTop         *bool    `json:"addTorrentToQueueTop,omitempty"`
	AddTorrentStopped            *bool    `json:"addTorrentStopped,omitempty"`
	TorrentStopCondition         *string  `json:"torrentStopCondition,omitempty"`
	RefreshIntervalMs            *int64   `json:"refreshIntervalMs,omitempty"`
	SaveResumeDataIntervalMs     *int64   `json:"saveResumeDataIntervalMs,omitempty"`
	ShutdownTimeoutMs            *int64   `json:"shutdownTimeoutMs,omitempty"`
	PerformanceWarningEnabled    *bool    `json:"performanceWarningEnabled,omitempty"`
	ReannounceWhenAddressChanged *bool    `json:"reannounceWhenAddressChanged,omitempty"`
	TorrentExportDirectory       *string  `json:"torrentExportDirectory,omitempty"`
	BannedIPs                    []string `json:"bannedIPs,omitempty"`
	ListenPort                   *int     `json:"listenPort,omitempty"`
}

func (req settingsPatchRequest) toPatch() domain.SettingsPatch {
	patch := domain.SettingsPatch{
		SavePath:                     req.SavePath,
		DownloadPathEnabled:          req.DownloadPathEnabled,
		DownloadPath:                 req.DownloadPath,
		SubcategoriesEnabled:         req.SubcategoriesEnabled,
		UseCategoryPathsInManualMode: req.UseCategoryPathsInManualMode,
		AutoTMMDisabledByDefault:     req.AutoTMMDisabledByDefault,
		QueueingEnabled:              req.QueueingEnabled,
		MaxActiveDownloads:           req.MaxActiveDownloads,
		MaxActiveUploads:             req.MaxActiveUploads,
		MaxActiveTorrents:            req.MaxActiveTorrents,
		MaxActiveCheckingTorrents:    req.MaxActiveCheckingTorrents,
		AddTorrentToQueueTop:         req.AddTorrentToQueueTop,
		AddTorrentStopped:            req.AddTorrentStopped,
		PerformanceWarningEnabled:    req.PerformanceWarningEnabled,
		ReannounceWhenAddressChanged: req.ReannounceWhenAddressChanged,
		TorrentExportDirectory:       req.TorrentExportDirectory,
		BannedIPs:                    req.BannedIPs,
		ListenPort:                   req.ListenPort,
	}
	if req.TorrentStopCondition != nil {
		cond := domain.StopCondition(*req.TorrentStopCondition)
		patch.TorrentStopCondition = &cond
	}
	if req.RefreshIntervalMs != nil {
		d := time.Duration(*req.RefreshIntervalMs) * time.Millisecond
		patch.RefreshInterval = &d
	}
	if req.SaveResumeDataIntervalMs != nil {
		d := time.Duration(*req.SaveResumeDataIntervalMs) * time.Millisecond
		patch.SaveResumeDataInterval = &d
	}
	if req.ShutdownTimeoutMs != nil {
		d := time.Duration(*req.ShutdownTimeoutMs) * time.Millisecond
		patch.ShutdownTimeout = &d
	}
	return patch
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.session.Settings())
	case http.MethodPatch:
		var req settingsPatchRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		s.session.ApplySettings(req.toPatch())
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	s.session.Pause()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	s.session.Resume()
	w.WriteHeader(http.StatusNoContent)
}

type banIPRequest struct {
	IP string `json:"ip"`
}

func (s *Server) handleBanIP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req banIPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := s.session.BanIP(req.IP); err != nil {
		writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
