// Package coordinator serializes user-triggered mutations against the social
// store. It guarantees at most one in-flight mutation per (kind, target)
// pair: a second request for a busy target is rejected, not queued, because
// a queued toggle would apply an intent that may already be stale by the
// time it runs.
package coordinator

import (
	"errors"

	"example.com/contextfeed/internal/apperr"
	"example.com/contextfeed/internal/inflight"
	"example.com/contextfeed/internal/logger"
	"example.com/contextfeed/internal/models"
)

var logg = logger.New()

// ErrBusy is returned when a mutation for the same target is still in
// flight. The caller must retry explicitly after the first resolves.
var ErrBusy = errors.New("mutation already in flight for this target")

const maxPostContentLen = 1000

// Store is the slice of the social store the coordinator mutates through.
// The acting user rides on the store's session, so DeletePost takes only
// the target.
type Store interface {
	LikePost(postID, userID string) error
	UnlikePost(postID, userID string) error
	FollowUser(followerID, followeeID string) error
	UnfollowUser(followerID, followeeID string) error
	CreatePost(authorID, content, imageURL string) (models.Post, error)
	DeletePost(postID string) error
}

type mutationKind string

const (
	kindLike   mutationKind = "like"
	kindFollow mutationKind = "follow"
	kindCreate mutationKind = "create_post"
	kindDelete mutationKind = "delete_post"
)

type Coordinator struct {
	store Store
	guard *inflight.Guard
}

func New(store Store) *Coordinator {
	return &Coordinator{
		store: store,
		guard: inflight.NewGuard(),
	}
}

// ToggleLike flips userID's membership in the post's like set.
// currentlyLiked is the membership state the caller last confirmed; the
// returned state is the membership after the operation. On ErrBusy or a
// store failure the returned state equals currentlyLiked: local state never
// reflects a toggle the store has not confirmed.
func (c *Coordinator) ToggleLike(postID, userID string, currentlyLiked bool) (bool, error) {
	key := inflight.Key(string(kindLike), postID)
	if !c.guard.Acquire(key) {
		logg.Debug("coordinator", "Like toggle rejected, target busy")
		return currentlyLiked, ErrBusy
	}
	defer c.guard.Release(key)

	var err error
	if currentlyLiked {
		err = c.store.UnlikePost(postID, userID)
	} else {
		err = c.store.LikePost(postID, userID)
	}
	if err != nil {
		logg.Error("coordinator", "Like toggle failed, reverting", err)
		return currentlyLiked, err
	}
	return !currentlyLiked, nil
}

// ToggleFollow flips the (follower, followee) follow edge. Self-follow is
// rejected before any store call.
func (c *Coordinator) ToggleFollow(followerID, followeeID string, currentlyFollowing bool) (bool, error) {
	if followerID == followeeID {
		return currentlyFollowing, apperr.New(apperr.InvalidInput,
			"coordinator.ToggleFollow", "a user cannot follow itself")
	}

	key := inflight.Key(string(kindFollow), followerID+"/"+followeeID)
	if !c.guard.Acquire(key) {
		logg.Debug("coordinator", "Follow toggle rejected, target busy")
		return currentlyFollowing, ErrBusy
	}
	defer c.guard.Release(key)

	var err error
	if currentlyFollowing {
		err = c.store.UnfollowUser(followerID, followeeID)
	} else {
		err = c.store.FollowUser(followerID, followeeID)
	}
	if err != nil {
		logg.Error("coordinator", "Follow toggle failed, reverting", err)
		return currentlyFollowing, err
	}
	return !currentlyFollowing, nil
}

// CreatePost validates content locally, then creates the post. There is no
// optimistic insert: the post appears on the next refresh once the store
// confirms, which keeps duplicate creation impossible.
func (c *Coordinator) CreatePost(authorID, content, imageURL string) (models.Post, error) {
	const op = "coordinator.CreatePost"

	if len(content) == 0 || len(content) > maxPostContentLen {
		return models.Post{}, apperr.New(apperr.InvalidInput, op, "post content must be 1-1000 characters")
	}

	key := inflight.Key(string(kindCreate), authorID)
	if !c.guard.Acquire(key) {
		return models.Post{}, ErrBusy
	}
	defer c.guard.Release(key)

	post, err := c.store.CreatePost(authorID, content, imageURL)
	if err != nil {
		logg.Error("coordinator", "Post creation failed", err)
		return models.Post{}, err
	}
	return post, nil
}

// DeletePost checks ownership against the post the caller already holds,
// so an unauthorized delete costs no round trip.
func (c *Coordinator) DeletePost(post models.Post, actorID string) error {
	const op = "coordinator.DeletePost"

	if post.AuthorID != actorID {
		return apperr.New(apperr.Unauthorized, op, "only the author can delete a post")
	}

	key := inflight.Key(string(kindDelete), post.ID)
	if !c.guard.Acquire(key) {
		return ErrBusy
	}
	defer c.guard.Release(key)

	if err := c.store.DeletePost(post.ID); err != nil {
		logg.Error("coordinator", "Post deletion failed", err)
		return err
	}
	return nil
}
