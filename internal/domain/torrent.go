package domain

import "strings"

// TorrentID is the stable torrent identifier, derived from the content
// info-hash (hex). It is immutable for the lifetime of a torrent.
type TorrentID string

// InfoHash is the raw content hash in hex form. For v1 torrents it equals
// the TorrentID.
type InfoHash string

func (h InfoHash) ToTorrentID() TorrentID {
	return TorrentID(strings.ToLower(string(h)))
}

// TorrentState is the externally visible lifecycle state of a torrent.
// A torrent is in exactly one state at any instant.
type TorrentState string

const (
	StateQueued       TorrentState = "queued"
	StateChecking     TorrentState = "checking"
	StateDownloading  TorrentState = "downloading"
	StateSeeding      TorrentState = "seeding"
	StatePaused       TorrentState = "paused"
	StateStopped      TorrentState = "stopped"
	StateMissingFiles TorrentState = "missingFiles"
	StateError        TorrentState = "error"
)

// IsSeeding reports whether the torrent has left the download queue class.
// Seeding torrents carry no queue position.
func (s TorrentState) IsSeeding() bool {
	return s == StateSeeding
}

// TorrentDescriptor identifies the content to add: either a magnet link or
// raw .torrent metainfo bytes. Exactly one of the two should be set.
type TorrentDescriptor struct {
	Magnet   string
	Metainfo []byte
	Hash     InfoHash
}

func (d TorrentDescriptor) InfoHash() InfoHash {
	if d.Hash != "" {
		return InfoHash(strings.ToLower(string(d.Hash)))
	}
	if d.Magnet != "" {
		return ParseMagnetInfoHash(d.Magnet)
	}
	return ""
}

// ParseMagnetInfoHash extracts the hex info-hash from a magnet link's
// "xt=urn:btih:" parameter. Returns "" when the link carries none.
func ParseMagnetInfoHash(magnet string) InfoHash {
	const marker = "urn:btih:"
	idx := strings.Index(strings.ToLower(magnet), marker)
	if idx < 0 {
		return ""
	}
	rest := magnet[idx+len(marker):]
	if amp := strings.IndexByte(rest, '&'); amp >= 0 {
		rest = rest[:amp]
	}
	if len(rest) != 40 {
		return ""
	}
	return InfoHash(strings.ToLower(rest))
}
