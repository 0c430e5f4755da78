package app

import (
	"sort"

	"live-quiz-service/internal/domain"
)

// Standing is one player's cumulative state fed to the leaderboard calculator.
// JoinSeq is the player's join order and breaks score ties deterministically.
type Standing struct {
	UserID      string
	DisplayName string
	Score       int
	Connected   bool
	JoinSeq     int
}

// Rankings orders standings by cumulative score (descending, join order on
// ties) and annotates each entry with standard competition ranking, the points
// added this question, and the rank movement against prevRanks. Players with
// no previous rank are classified as new. Equal scores share a rank; the next
// distinct score's rank is the count of strictly higher players plus one.
func Rankings(standings []Standing, prevRanks map[string]int, added map[string]int) []domain.LeaderboardEntry {
	sorted := append([]Standing(nil), standings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].JoinSeq < sorted[j].JoinSeq
	})

	entries := make([]domain.LeaderboardEntry, 0, len(sorted))
	for i, s := range sorted {
		rank := i + 1
		if i > 0 && s.Score == sorted[i-1].Score {
			rank = entries[i-1].Rank
		}
		entry := domain.LeaderboardEntry{
			Rank:        rank,
			UserID:      s.UserID,
			DisplayName: s.DisplayName,
			Score:       s.Score,
			Connected:   s.Connected,
			PointsAdded: added[s.UserID],
		}
		if prev, ok := prevRanks[s.UserID]; ok {
			p := prev
			entry.PreviousRank = &p
			switch {
			case rank < prev:
				entry.Change = domain.ChangeUp
				entry.PositionChange = prev - rank
			case rank > prev:
				entry.Change = domain.ChangeDown
				entry.PositionChange = rank - prev
			default:
				entry.Change = domain.ChangeSame
			}
		} else {
			entry.Change = domain.ChangeNew
		}
		entries = append(entries, entry)
	}
	return entries
}
