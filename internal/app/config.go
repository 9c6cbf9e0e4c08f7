package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"torrentsession/internal/domain"
)

type Config struct {
	HTTPAddr                string
	MongoURI                string
	MongoDatabase           string
	ResumeCollection        string
	TaxonomyCollection      string
	LogLevel                string
	LogFormat               string
	SavePath                string
	TorrentExportDir        string
	FinishedExportDir       string
	ListenPort              int
	Seed                    bool
	QueueingEnabled         bool
	MaxActiveDownloads      int
	MaxActiveUploads        int
	MaxActiveTorrents       int
	MaxActiveChecking       int
	RefreshIntervalMs       int64
	SaveResumeIntervalMin   int64
	ShutdownTimeoutSec      int64
	SubcategoriesEnabled    bool
	AddTorrentToQueueTop    bool
	AddTorrentStopped       bool
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		MongoURI:              getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:         getEnv("MONGO_DB", "torrentsession"),
		ResumeCollection:      getEnv("MONGO_RESUME_COLLECTION", "resume"),
		TaxonomyCollection:    getEnv("MONGO_TAXONOMY_COLLECTION", "taxonomy"),
		LogLevel:              strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:             strings.ToLower(getEnv("LOG_FORMAT", "text")),
		SavePath:              getEnv("SAVE_PATH", "downloads"),
		TorrentExportDir:      getEnv("TORRENT_EXPORT_DIR", ""),
		FinishedExportDir:     getEnv("FINISHED_TORRENT_EXPORT_DIR", ""),
		ListenPort:            int(getEnvInt64("LISTEN_PORT", 6881)),
		Seed:                  getEnvBool("SEED", true),
		QueueingEnabled:       getEnvBool("QUEUEING_ENABLED", true),
		MaxActiveDownloads:    int(getEnvInt64("MAX_ACTIVE_DOWNLOADS", 3)),
		MaxActiveUploads:      int(getEnvInt64("MAX_ACTIVE_UPLOADS", 3)),
		MaxActiveTorrents:     int(getEnvInt64("MAX_ACTIVE_TORRENTS", 5)),
		MaxActiveChecking:     int(getEnvInt64("MAX_ACTIVE_CHECKING_TORRENTS", 1)),
		RefreshIntervalMs:     getEnvInt64("REFRESH_INTERVAL_MS", 1500),
		SaveResumeIntervalMin: getEnvInt64("SAVE_RESUME_DATA_INTERVAL_MIN", 15),
		ShutdownTimeoutSec:    getEnvInt64("SHUTDOWN_TIMEOUT_SEC", 30),
		SubcategoriesEnabled:  getEnvBool("SUBCATEGORIES_ENABLED", false),
		AddTorrentToQueueTop:  getEnvBool("ADD_TORRENT_TO_QUEUE_TOP", false),
		AddTorrentStopped:     getEnvBool("ADD_TORRENT_STOPPED", false),
	}
}

// SessionSettings derives the orchestrator's initial settings snapshot.
func (c Config) SessionSettings() domain.SessionSettings {
	settings := domain.DefaultSettings()
	settings.SavePath = c.SavePath
	settings.TorrentExportDirectory = c.TorrentExportDir
	settings.FinishedTorrentExportDirectory = c.FinishedExportDir
	settings.ListenPort = c.ListenPort
	settings.QueueingEnabled = c.QueueingEnabled
	settings.MaxActiveDownloads = c.MaxActiveDownloads
	settings.MaxActiveUploads = c.MaxActiveUploads
	settings.MaxActiveTorrents = c.MaxActiveTorrents
	settings.MaxActiveCheckingTorrents = c.MaxActiveChecking
	settings.RefreshInterval = time.Duration(c.RefreshIntervalMs) * time.Millisecond
	settings.SaveResumeDataInterval = time.Duration(c.SaveResumeIntervalMin) * time.Minute
	settings.ShutdownTimeout = time.Duration(c.ShutdownTimeoutSec) * time.Second
	settings.SubcategoriesEnabled = c.SubcategoriesEnabled
	settings.AddTorrentToQueueTop = c.AddTorrentToQueueTop
	settings.AddTorrentStopped = c.AddTorrentStopped
	return settings
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return fallback
	}
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
