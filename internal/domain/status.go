package domain

// SessionStatus aggregates session-level counters refreshed from
// session-stats alerts and listen/external-IP alerts.
type SessionStatus struct {
	Listening      bool         `json:"listening"`
	ListenAddress  string       `json:"listenAddress,omitempty"`
	ExternalIP     string       `json:"externalIP,omitempty"`
	Stats          SessionStats `json:"stats"`
	AlertsDropped  int          `json:"alertsDropped"`
	PeersBlocked   int          `json:"peersBlocked"`
	PeersBanned    int          `json:"peersBanned"`
	TorrentsCount  int          `json:"torrentsCount"`
	AbandonedSaves int          `json:"abandonedSaves"`
}
