package feed

import (
	"testing"
	"time"

	"example.com/contextfeed/internal/models"
)

func makePosts() []models.Post {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []models.Post{
		{ID: "p1", AuthorID: "alice", Created: base},
		{ID: "p2", AuthorID: "bob", Created: base.Add(time.Minute)},
		{ID: "p3", AuthorID: "alice", Created: base.Add(2 * time.Minute)},
		{ID: "p4", AuthorID: "carol", Created: base.Add(time.Minute)}, // same instant as p2
	}
}

// ---------- Global feed ----------

func TestGlobal_NewestFirstWithStableTieBreak(t *testing.T) {
	posts := makePosts()
	got := Global(posts)

	want := []string{"p3", "p2", "p4", "p1"}
	if len(got) != len(want) {
		t.Fatalf("expected %d posts, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestGlobal_DoesNotMutateInput(t *testing.T) {
	posts := makePosts()
	firstBefore := posts[0].ID

	Global(posts)

	if posts[0].ID != firstBefore {
		t.Fatalf("input slice was reordered")
	}
}

// ---------- Following feed ----------

func TestFollowing_EmptySetYieldsEmptyFeed(t *testing.T) {
	got := Following(makePosts(), map[string]struct{}{})
	if len(got) != 0 {
		t.Fatalf("empty following set must yield empty feed, got %d posts", len(got))
	}
}

func TestFollowing_SubsetOfGlobal(t *testing.T) {
	posts := makePosts()
	global := Global(posts)
	globalIDs := map[string]bool{}
	for _, p := range global {
		globalIDs[p.ID] = true
	}

	got := Following(posts, FollowingSet([]string{"alice", "bob"}))
	if len(got) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(got))
	}
	for _, p := range got {
		if !globalIDs[p.ID] {
			t.Fatalf("post %s not in global feed", p.ID)
		}
		if p.AuthorID != "alice" && p.AuthorID != "bob" {
			t.Fatalf("unexpected author %s in following feed", p.AuthorID)
		}
	}
}

// ---------- User feed ----------

func TestUser_OnlyAuthor(t *testing.T) {
	got := User(makePosts(), "alice")
	if len(got) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(got))
	}
	if got[0].ID != "p3" || got[1].ID != "p1" {
		t.Fatalf("user feed wrong order: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestUser_UnknownAuthorYieldsEmpty(t *testing.T) {
	if got := User(makePosts(), "nobody"); len(got) != 0 {
		t.Fatalf("expected empty feed, got %d posts", len(got))
	}
}

// ---------- User search ----------

func TestSearchUsers_BlankPrefixYieldsEmpty(t *testing.T) {
	users := []models.User{{ID: "u1", Name: "Alice"}}

	if got := SearchUsers(users, ""); len(got) != 0 {
		t.Fatalf("blank prefix must yield no results, got %d", len(got))
	}
	if got := SearchUsers(users, "   "); len(got) != 0 {
		t.Fatalf("whitespace prefix must yield no results, got %d", len(got))
	}
}

func TestSearchUsers_CaseInsensitivePrefix(t *testing.T) {
	users := []models.User{
		{ID: "u1", Name: "Alice"},
		{ID: "u2", Name: "alfred"},
		{ID: "u3", Name: "Bob"},
		{ID: "u4", Name: "Salma"}, // contains but does not start with "al"
	}

	got := SearchUsers(users, "al")
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	for _, u := range got {
		if u.ID != "u1" && u.ID != "u2" {
			t.Fatalf("unexpected match %s", u.Name)
		}
	}
}
