package queue

import (
	"sort"

	"github.com/unisonmedia/unison-backend/internal/models"
)

// RankedSong is a queue entry with its assigned position in the ranked view.
type RankedSong struct {
	Sequence int `json:"sequence"`
	models.Song
}

// Rank orders entries by descending votes, breaking ties by ascending
// addedAt (earlier additions win), then by video id so the comparator is a
// strict total order for any input. The result is always rebuilt wholesale;
// nothing is patched incrementally.
func Rank(songs []models.Song) []RankedSong {
	sorted := make([]models.Song, len(songs))
	copy(sorted, songs)

	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Votes != b.Votes {
			return a.Votes > b.Votes
		}
		if a.AddedAt != b.AddedAt {
			return a.AddedAt < b.AddedAt
		}
		return a.VideoID < b.VideoID
	})

	ranked := make([]RankedSong, len(sorted))
	for i, song := range sorted {
		ranked[i] = RankedSong{Sequence: i, Song: song}
	}
	return ranked
}
