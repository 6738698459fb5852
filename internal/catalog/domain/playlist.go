package domain

import "time"

// Playlist is a named, ordered sequence of entries.
type Playlist struct {
	Header      EntityHeader
	CollectedAt time.Time
	Title       string
	Kind        string
	Notes       string
	Color       Color
	Entries     []PlaylistEntry
}

// PlaylistItemKind distinguishes a track reference from a separator.
type PlaylistItemKind int

const (
	PlaylistItemSeparator PlaylistItemKind = iota
	PlaylistItemTrack
)

// PlaylistItem is either a Separator or a weak reference to a Track by uid.
type PlaylistItem struct {
	Kind     PlaylistItemKind
	TrackUid EntityUid // valid when Kind == PlaylistItemTrack
}

// PlaylistEntry is one row in a playlist's ordered entry list.
type PlaylistEntry struct {
	AddedAt time.Time
	Title   string
	Notes   string
	Item    PlaylistItem
}
