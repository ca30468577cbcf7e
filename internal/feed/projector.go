// Package feed derives display-ready collections from an in-memory snapshot
// of posts and users. Every function is deterministic, side-effect-free, and
// never mutates its inputs, so projections are safe to recompute on every
// refresh over a shared snapshot.
package feed

import (
	"sort"
	"strings"

	"example.com/contextfeed/internal/models"
)

// Global returns all posts most-recent-first, with a stable tie-break on
// post ID.
func Global(posts []models.Post) []models.Post {
	out := append([]models.Post{}, posts...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.After(out[j].Created)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Following returns the posts authored by members of followingIDs, ordered
// like Global. An empty following set yields an empty feed, not all posts.
func Following(posts []models.Post, followingIDs map[string]struct{}) []models.Post {
	filtered := []models.Post{}
	for _, p := range posts {
		if _, ok := followingIDs[p.AuthorID]; ok {
			filtered = append(filtered, p)
		}
	}
	return Global(filtered)
}

// User returns the posts authored by userID, ordered like Global.
func User(posts []models.Post, userID string) []models.Post {
	filtered := []models.Post{}
	for _, p := range posts {
		if p.AuthorID == userID {
			filtered = append(filtered, p)
		}
	}
	return Global(filtered)
}

// SearchUsers matches display names by case-insensitive prefix. A blank
// prefix yields no results.
func SearchUsers(users []models.User, namePrefix string) []models.User {
	prefix := strings.ToLower(strings.TrimSpace(namePrefix))
	out := []models.User{}
	if prefix == "" {
		return out
	}
	for _, u := range users {
		if strings.HasPrefix(strings.ToLower(u.Name), prefix) {
			out = append(out, u)
		}
	}
	return out
}

// FollowingSet builds the membership set the Following projection consumes
// from a list of followee IDs.
func FollowingSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
