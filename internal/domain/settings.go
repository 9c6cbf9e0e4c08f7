package domain

import "time"

// SessionSettings is the current settings snapshot consumed by the
// orchestrator. One accessor per setting; mutation goes through a
// SettingsPatch applied as a single batch.
type SessionSettings struct {
	SavePath                       string
	DownloadPathEnabled            bool
	DownloadPath                   string
	SubcategoriesEnabled           bool
	UseCategoryPathsInManualMode   bool
	AutoTMMDisabledByDefault       bool
	QueueingEnabled                bool
	MaxActiveDownloads             int
	MaxActiveUploads               int
	MaxActiveTorrents              int
	MaxActiveCheckingTorrents      int
	AddTorrentToQueueTop           bool
	AddTorrentStopped              bool
	TorrentStopCondition           StopCondition
	RefreshInterval                time.Duration
	SaveResumeDataInterval         time.Duration
	ShutdownTimeout                time.Duration
	PerformanceWarningEnabled      bool
	ReannounceWhenAddressChanged   bool
	TorrentExportDirectory         string
	FinishedTorrentExportDirectory string
	BannedIPs                      []string
	ListenPort                     int
	Paused                         bool
}

// DefaultSettings returns the session defaults applied before any persisted
// or caller-supplied overrides.
func DefaultSettings() SessionSettings {
	return SessionSettings{
		SavePath:                  "downloads",
		QueueingEnabled:           true,
		MaxActiveDownloads:        3,
		MaxActiveUploads:          3,
		MaxActiveTorrents:         5,
		MaxActiveCheckingTorrents: 1,
		TorrentStopCondition:      StopNever,
		RefreshInterval:           1500 * time.Millisecond,
		SaveResumeDataInterval:    15 * time.Minute,
		ShutdownTimeout:           30 * time.Second,
		ListenPort:                6881,
	}
}

// SettingsPatch carries the settings changed by one caller write. Nil fields
// are untouched. Bursts of patches are coalesced by the configuration
// debouncer into a single engine reconfiguration pass.
type SettingsPatch struct {
	SavePath                     *string
	DownloadPathEnabled          *bool
	DownloadPath                 *string
	SubcategoriesEnabled         *bool
	UseCategoryPathsInManualMode *bool
	AutoTMMDisabledByDefault     *bool
	QueueingEnabled              *bool
	MaxActiveDownloads           *int
	MaxActiveUploads             *int
	MaxActiveTorrents            *int
	MaxActiveCheckingTorrents    *int
	AddTorrentToQueueTop         *bool
	AddTorrentStopped            *bool
	TorrentStopCondition         *StopCondition
	RefreshInterval              *time.Duration
	SaveResumeDataInterval       *time.Duration
	ShutdownTimeout              *time.Duration
	PerformanceWarningEnabled    *bool
	ReannounceWhenAddressChanged *bool
	TorrentExportDirectory       *string
	BannedIPs                    []string
	ListenPort                   *int
	Paused                       *bool
}

// Merge folds another patch into this one; later writes win per field.
func (p *SettingsPatch) Merge(other SettingsPatch) {
	if other.SavePath != nil {
		p.SavePath = other.SavePath
	}
	if other.DownloadPathEnabled != nil {
		p.DownloadPathEnabled = other.DownloadPathEnabled
	}
	if other.DownloadPath != nil {
		p.DownloadPath = other.DownloadPath
	}
	if other.SubcategoriesEnabled != nil {
		p.SubcategoriesEnabled = other.SubcategoriesEnabled
	}
	if other.UseCategoryPathsInManualMode != nil {
		p.UseCategoryPathsInManualMode = other.UseCategoryPathsInManualMode
	}
	if other.AutoTMMDisabledByDefault != nil {
		p.AutoTMMDisabledByDefault = other.AutoTMMDisabledByDefault
	}
	if other.QueueingEnabled != nil {
		p.QueueingEnabled = other.QueueingEnabled
	}
	if other.MaxActiveDownloads != nil {
		p.MaxActiveDownloads = other.MaxActiveDownloads
	}
	if other.MaxActiveUploads != nil {
		p.MaxActiveUploads = other.MaxActiveUploads
	}
	if other.MaxActiveTorrents != nil {
		p.MaxActiveTorrents = other.MaxActiveTorrents
	}
	if other.MaxActiveCheckingTorrents != nil {
		p.MaxActiveCheckingTorrents = other.MaxActiveCheckingTorrents
	}
	if other.AddTorrentToQueueTop != nil {
		p.AddTorrentToQueueTop = other.AddTorrentToQueueTop
	}
	if other.AddTorrentStopped != nil {
		p.AddTorrentStopped = other.AddTorrentStopped
	}
	if other.TorrentStopCondition != nil {
		p.TorrentStopCondition = other.TorrentStopCondition
	}
	if other.RefreshInterval != nil {
		p.RefreshInterval = other.RefreshInterval
	}
	if other.SaveResumeDataInterval != nil {
		p.SaveResumeDataInterval = other.SaveResumeDataInterval
	}
	if other.ShutdownTimeout != nil {
		p.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.PerformanceWarningEnabled != nil {
		p.PerformanceWarningEnabled = other.PerformanceWarningEnabled
	}
	if other.ReannounceWhenAddressChanged != nil {
		p.ReannounceWhenAddressChanged = other.ReannounceWhenAddressChanged
	}
	if other.TorrentExportDirectory != nil {
		p.TorrentExportDirectory = other.TorrentExportDirectory
	}
	if other.BannedIPs != nil {
		p.BannedIPs = other.BannedIPs
	}
	if other.ListenPort != nil {
		p.ListenPort = other.ListenPort
	}
	if other.Paused != nil {
		p.Paused = other.Paused
	}
}

// Apply resolves the patch against a settings snapshot.
func (p SettingsPatch) Apply(s SessionSettings) SessionSettings {
	if p.SavePath != nil {
		s.SavePath = *p.SavePath
	}
	if p.DownloadPathEnabled != nil {
		s.DownloadPathEnabled = *p.DownloadPathEnabled
	}
	if p.DownloadPath != nil {
		s.DownloadPath = *p.DownloadPath
	}
	if p.SubcategoriesEnabled != nil {
		s.SubcategoriesEnabled = *p.SubcategoriesEnabled
	}
	if p.UseCategoryPathsInManualMode != nil {
		s.UseCategoryPathsInManualMode = *p.UseCategoryPathsInManualMode
	}
	if p.AutoTMMDisabledByDefault != nil {
		s.AutoTMMDisabledByDefault = *p.AutoTMMDisabledByDefault
	}
	if p.QueueingEnabled != nil {
		s.QueueingEnabled = *p.QueueingEnabled
	}
	if p.MaxActiveDownloads != nil {
		s.MaxActiveDownloads = *p.MaxActiveDownloads
	}
	if p.MaxActiveUploads != nil {
		s.MaxActiveUploads = *p.MaxActiveUploads
	}
	if p.MaxActiveTorrents != nil {
		s.MaxActiveTorrents = *p.MaxActiveTorrents
	}
	if p.MaxActiveCheckingTorrents != nil {
		s.MaxActiveCheckingTorrents = *p.MaxActiveCheckingTorrents
	}
	if p.AddTorrentToQueueTop != nil {
		s.AddTorrentToQueueTop = *p.AddTorrentToQueueTop
	}
	if p.AddTorrentStopped != nil {
		s.AddTorrentStopped = *p.AddTorrentStopped
	}
	if p.TorrentStopCondition != nil {
		s.TorrentStopCondition = *p.TorrentStopCondition
	}
	if p.RefreshInterval != nil {
		s.RefreshInterval = *p.RefreshInterval
	}
	if p.SaveResumeDataInterval != nil {
		s.SaveResumeDataInterval = *p.SaveResumeDataInterval
	}
	if p.ShutdownTimeout != nil {
		s.ShutdownTimeout = *p.ShutdownTimeout
	}
	if p.PerformanceWarningEnabled != nil {
		s.PerformanceWarningEnabled = *p.PerformanceWarningEnabled
	}
	if p.ReannounceWhenAddressChanged != nil {
		s.ReannounceWhenAddressChanged = *p.ReannounceWhenAddressChanged
	}
	if p.TorrentExportDirectory != nil {
		s.TorrentExportDirectory = *p.TorrentExportDirectory
	}
	if p.BannedIPs != nil {
		s.BannedIPs = p.BannedIPs
	}
	if p.ListenPort != nil {
		s.ListenPort = *p.ListenPort
	}
	if p.Paused != nil {
		s.Paused = *p.Paused
	}
	return s
}
