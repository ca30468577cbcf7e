package store

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"example.com/contextfeed/internal/apperr"
	"example.com/contextfeed/internal/models"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// --- User operations ---

func scanUser(q *gocql.Query) (models.User, error) {
	var u models.User
	err := q.Scan(&u.ID, &u.Name, &u.Avatar, &u.Bio, &u.WalletAddress, &u.PublicKey)
	return u, err
}

func (s *Store) GetUser(id string) (models.User, error) {
	const op = "store.GetUser"
	u, err := scanUser(s.Session.Query(
		`SELECT user_id, name, avatar, bio, wallet_address, public_key
		 FROM users WHERE user_id = ?`, id,
	))
	if err != nil {
		if err == gocql.ErrNotFound {
			return models.User{}, apperr.New(apperr.NotFound, op, "user not found")
		}
		logg.Error("store", "Failed to query user", err)
		return models.User{}, apperr.Wrap(apperr.Unavailable, op, err)
	}
	return u, nil
}

func (s *Store) GetUserByPublicKey(publicKey string) (models.User, error) {
	const op = "store.GetUserByPublicKey"
	var id string
	err := s.Session.Query(
		`SELECT user_id FROM users_by_public_key WHERE public_key = ?`,
		publicKey,
	).Scan(&id)
	if err != nil {
		if err == gocql.ErrNotFound {
			return models.User{}, apperr.New(apperr.NotFound, op, "public key not registered")
		}
		logg.Error("store", "Failed to query user by public key", err)
		return models.User{}, apperr.Wrap(apperr.Unavailable, op, err)
	}
	return s.GetUser(id)
}

// CreateUser registers a new user owned by publicKey. A public key maps to
// at most one user; registering the same key again returns the existing
// record.
func (s *Store) CreateUser(name, avatar, bio, publicKey string) (models.User, error) {
	const op = "store.CreateUser"

	id := uuid.NewString()

	// Claim the public key first using CAS so two concurrent registrations
	// cannot produce two users for the same key.
	result := make(map[string]interface{})
	applied, err := s.Session.Query(`
		INSERT INTO users_by_public_key (public_key, user_id)
		VALUES (?, ?) IF NOT EXISTS`,
		publicKey, id,
	).MapScanCAS(result)
	if err != nil {
		logg.Error("store", "Failed to claim public key", err)
		return models.User{}, apperr.Wrap(apperr.Unavailable, op, err)
	}

	if !applied {
		// Another request already registered this key
		return s.GetUserByPublicKey(publicKey)
	}

	err = s.Session.Query(`
		INSERT INTO users (user_id, name, avatar, bio, wallet_address, public_key)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, avatar, bio, "", publicKey,
	).Exec()
	if err != nil {
		logg.Error("store", "Failed to create user in main table", err)
		return models.User{}, apperr.Wrap(apperr.Unavailable, op, err)
	}

	logg.Info("store", "User created successfully (name anonymized)")
	return models.User{ID: id, Name: name, Avatar: avatar, Bio: bio, PublicKey: publicKey}, nil
}

// UpdateUser rewrites the mutable profile fields. The owning public key and
// the avatar derived at registration are immutable.
func (s *Store) UpdateUser(id, name, bio, walletAddress string) (models.User, error) {
	const op = "store.UpdateUser"

	existing, err := s.GetUser(id)
	if err != nil {
		return models.User{}, err
	}

	err = s.Session.Query(`
		UPDATE users SET name = ?, bio = ?, wallet_address = ?
		WHERE user_id = ?`,
		name, bio, walletAddress, id,
	).Exec()
	if err != nil {
		logg.Error("store", "Failed to update user", err)
		return models.User{}, apperr.Wrap(apperr.Unavailable, op, err)
	}

	existing.Name = name
	existing.Bio = bio
	existing.WalletAddress = walletAddress
	return existing, nil
}

// SearchUsersByName matches display names by case-insensitive prefix.
// A blank prefix yields no results: search is not a synonym for listing.
func (s *Store) SearchUsersByName(prefix string) ([]models.User, error) {
	const op = "store.SearchUsersByName"

	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return []models.User{}, nil
	}

	iter := s.Session.Query(
		`SELECT user_id, name, avatar, bio, wallet_address, public_key FROM users`,
	).Iter()

	res := []models.User{}
	var u models.User
	for iter.Scan(&u.ID, &u.Name, &u.Avatar, &u.Bio, &u.WalletAddress, &u.PublicKey) {
		if strings.HasPrefix(strings.ToLower(u.Name), prefix) {
			res = append(res, u)
		}
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to search users", err)
		return nil, apperr.Wrap(apperr.Unavailable, op, err)
	}
	return res, nil
}

// --- Post operations ---

func (s *Store) CreatePost(authorID, content, imageURL string) (models.Post, error) {
	const op = "store.CreatePost"

	post := models.Post{
		ID:       uuid.NewString(),
		AuthorID: authorID,
		Content:  content,
		ImageURL: imageURL,
		Created:  time.Now().UTC(),
		Likes:    []models.Like{},
		Tips:     []models.Tip{},
	}

	if err := s.Session.Query(`
		INSERT INTO posts (post_id, author_id, content, image_url, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		post.ID, post.AuthorID, post.Content, post.ImageURL, post.Created,
	).Exec(); err != nil {
		logg.Error("store", "Failed to add post", err)
		return models.Post{}, apperr.Wrap(apperr.Unavailable, op, err)
	}

	logg.Info("store", "Post added to posts table (post content anonymized)")
	return post, nil
}

func (s *Store) GetPost(id string) (models.Post, error) {
	const op = "store.GetPost"

	var p models.Post
	err := s.Session.Query(`
		SELECT post_id, author_id, content, image_url, created_at
		FROM posts WHERE post_id = ?`, id,
	).Scan(&p.ID, &p.AuthorID, &p.Content, &p.ImageURL, &p.Created)
	if err != nil {
		if err == gocql.ErrNotFound {
			return models.Post{}, apperr.New(apperr.NotFound, op, "post not found")
		}
		logg.Error("store", "Failed to query post", err)
		return models.Post{}, apperr.Wrap(apperr.Unavailable, op, err)
	}

	if err := s.loadPostSets(&p); err != nil {
		return models.Post{}, apperr.Wrap(apperr.Unavailable, op, err)
	}
	return p, nil
}

// loadPostSets attaches the post's like set (ordered by like time) and its
// tip collection.
func (s *Store) loadPostSets(p *models.Post) error {
	iter := s.Session.Query(
		`SELECT user_id, liked_at FROM likes_by_post WHERE post_id = ?`, p.ID,
	).Iter()

	p.Likes = []models.Like{}
	var l models.Like
	l.PostID = p.ID
	for iter.Scan(&l.UserID, &l.LikedAt) {
		p.Likes = append(p.Likes, l)
	}
	if err := iter.Close(); err != nil {
		return fmt.Errorf("load likes: %w", err)
	}
	sort.Slice(p.Likes, func(i, j int) bool {
		return p.Likes[i].LikedAt.Before(p.Likes[j].LikedAt)
	})

	iter = s.Session.Query(
		`SELECT user_id, amount, tx_hash, created_at FROM tips_by_post WHERE post_id = ?`, p.ID,
	).Iter()

	p.Tips = []models.Tip{}
	var t models.Tip
	t.PostID = p.ID
	for iter.Scan(&t.UserID, &t.Amount, &t.TxHash, &t.Created) {
		p.Tips = append(p.Tips, t)
	}
	if err := iter.Close(); err != nil {
		return fmt.Errorf("load tips: %w", err)
	}
	return nil
}

func (s *Store) GetAllPosts() ([]models.Post, error) {
	const op = "store.GetAllPosts"

	iter := s.Session.Query(`
		SELECT post_id, author_id, content, image_url, created_at FROM posts`,
	).Iter()

	res := []models.Post{}
	var p models.Post
	for iter.Scan(&p.ID, &p.AuthorID, &p.Content, &p.ImageURL, &p.Created) {
		res = append(res, p)
	}
	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to retrieve posts", err)
		return nil, apperr.Wrap(apperr.Unavailable, op, err)
	}

	for i := range res {
		if err := s.loadPostSets(&res[i]); err != nil {
			logg.Error("store", "Failed to load post sets", err)
			return nil, apperr.Wrap(apperr.Unavailable, op, err)
		}
	}

	logg.Info("store", "All posts retrieved successfully")
	return res, nil
}

func (s *Store) GetPostCount() (int64, error) {
	const op = "store.GetPostCount"
	var count int64
	if err := s.Session.Query(`SELECT COUNT(*) FROM posts`).Scan(&count); err != nil {
		logg.Error("store", "Failed to count posts", err)
		return 0, apperr.Wrap(apperr.Unavailable, op, err)
	}
	return count, nil
}

// DeletePost removes a post, its like set, and its fan-out rows in every
// feed that received it. Only the author may delete. Tip records are
// append-only and survive the post they reference.
func (s *Store) DeletePost(postID, requestingUserID string) error {
	const op = "store.DeletePost"

	post, err := s.GetPost(postID)
	if err != nil {
		return err
	}
	if post.AuthorID != requestingUserID {
		return apperr.New(apperr.Unauthorized, op, "only the author can delete a post")
	}

	// Fan-out rows live under the author and the followers the worker
	// delivered to.
	followers, err := s.GetFollowers(post.AuthorID)
	if err != nil {
		return err
	}

	batch := s.Session.NewBatch(gocql.LoggedBatch)
	batch.Query(`DELETE FROM posts WHERE post_id = ?`, postID)
	batch.Query(`DELETE FROM likes_by_post WHERE post_id = ?`, postID)
	for _, uid := range append([]string{post.AuthorID}, followers...) {
		batch.Query(
			`DELETE FROM feed_by_user WHERE user_id = ? AND created_at = ? AND post_id = ?`,
			uid, post.Created, postID,
		)
	}

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to delete post", err)
		return apperr.Wrap(apperr.Unavailable, op, err)
	}

	logg.Info("store", "Post deleted (post ID anonymized)")
	return nil
}

// --- Like operations ---

// LikePost adds userID to the post's like set. The insert is CAS so a
// duplicate like is a no-op, keeping the set property: at most one Like
// per (post, user).
func (s *Store) LikePost(postID, userID string) error {
	const op = "store.LikePost"

	if _, err := s.GetPost(postID); err != nil {
		return err
	}

	result := make(map[string]interface{})
	_, err := s.Session.Query(`
		INSERT INTO likes_by_post (post_id, user_id, liked_at)
		VALUES (?, ?, ?) IF NOT EXISTS`,
		postID, userID, time.Now().UTC(),
	).MapScanCAS(result)
	if err != nil {
		logg.Error("store", "Failed to like post", err)
		return apperr.Wrap(apperr.Unavailable, op, err)
	}
	return nil
}

func (s *Store) UnlikePost(postID, userID string) error {
	const op = "store.UnlikePost"

	if err := s.Session.Query(
		`DELETE FROM likes_by_post WHERE post_id = ? AND user_id = ?`,
		postID, userID,
	).Exec(); err != nil {
		logg.Error("store", "Failed to unlike post", err)
		return apperr.Wrap(apperr.Unavailable, op, err)
	}
	return nil
}

// --- Follow operations ---

func (s *Store) FollowUser(followerID, followeeID string) error {
	const op = "store.FollowUser"

	if followerID == followeeID {
		return apperr.New(apperr.InvalidInput, op, "a user cannot follow itself")
	}

	batch := s.Session.NewBatch(gocql.LoggedBatch)
	batch.Query(`INSERT INTO follows (follower_id, followee_id) VALUES (?, ?)`, followerID, followeeID)
	batch.Query(`INSERT INTO followers_by_followee (followee_id, follower_id) VALUES (?, ?)`, followeeID, followerID)

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to create follow relationship", err)
		return apperr.Wrap(apperr.Unavailable, op, err)
	}

	logg.Info("store", "Follow relationship created (user IDs anonymized)")
	return nil
}

func (s *Store) UnfollowUser(followerID, followeeID string) error {
	const op = "store.UnfollowUser"

	batch := s.Session.NewBatch(gocql.LoggedBatch)
	batch.Query(`DELETE FROM follows WHERE follower_id = ? AND followee_id = ?`, followerID, followeeID)
	batch.Query(`DELETE FROM followers_by_followee WHERE followee_id = ? AND follower_id = ?`, followeeID, followerID)

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to remove follow relationship", err)
		return apperr.Wrap(apperr.Unavailable, op, err)
	}
	return nil
}

func (s *Store) IsFollowing(followerID, followeeID string) (bool, error) {
	const op = "store.IsFollowing"

	var found string
	err := s.Session.Query(
		`SELECT followee_id FROM follows WHERE follower_id = ? AND followee_id = ?`,
		followerID, followeeID,
	).Scan(&found)
	if err != nil {
		if err == gocql.ErrNotFound {
			return false, nil
		}
		logg.Error("store", "Failed to query follow edge", err)
		return false, apperr.Wrap(apperr.Unavailable, op, err)
	}
	return true, nil
}

func (s *Store) GetFollowers(userID string) ([]string, error) {
	const op = "store.GetFollowers"

	iter := s.Session.Query(
		`SELECT follower_id FROM followers_by_followee WHERE followee_id = ?`,
		userID,
	).Iter()

	var id string
	res := []string{}
	for iter.Scan(&id) {
		res = append(res, id)
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to get followers", err)
		return nil, apperr.Wrap(apperr.Unavailable, op, err)
	}
	return res, nil
}

func (s *Store) GetFollowing(userID string) ([]string, error) {
	const op = "store.GetFollowing"

	iter := s.Session.Query(
		`SELECT followee_id FROM follows WHERE follower_id = ?`,
		userID,
	).Iter()

	var id string
	res := []string{}
	for iter.Scan(&id) {
		res = append(res, id)
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to get following", err)
		return nil, apperr.Wrap(apperr.Unavailable, op, err)
	}
	return res, nil
}

func (s *Store) GetFollowerCount(userID string) (int, error) {
	followers, err := s.GetFollowers(userID)
	if err != nil {
		return 0, err
	}
	return len(followers), nil
}

func (s *Store) GetFollowingCount(userID string) (int, error) {
	following, err := s.GetFollowing(userID)
	if err != nil {
		return 0, err
	}
	return len(following), nil
}

// --- Tip operations ---

// RecordTip appends a tip record keyed by its chain transaction hash.
// The write is CAS on tx_hash, so recording the same confirmed transfer
// twice is a safe no-op: this is what makes manual re-recording after a
// partial failure possible without double-counting.
func (s *Store) RecordTip(postID, userID, amount, txHash string) error {
	const op = "store.RecordTip"

	if _, err := s.GetPost(postID); err != nil {
		return err
	}

	now := time.Now().UTC()
	result := make(map[string]interface{})
	applied, err := s.Session.Query(`
		INSERT INTO tips_by_hash (tx_hash, post_id, user_id, amount, created_at)
		VALUES (?, ?, ?, ?, ?) IF NOT EXISTS`,
		txHash, postID, userID, amount, now,
	).MapScanCAS(result)
	if err != nil {
		logg.Error("store", "Failed to record tip", err)
		return apperr.Wrap(apperr.Unavailable, op, err)
	}

	if !applied {
		// Already recorded: idempotent success.
		logg.Info("store", "Tip already recorded for transaction (hash anonymized)")
		return nil
	}

	if err := s.Session.Query(`
		INSERT INTO tips_by_post (post_id, tx_hash, user_id, amount, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		postID, txHash, userID, amount, now,
	).Exec(); err != nil {
		logg.Error("store", "Failed to index tip by post", err)
		return apperr.Wrap(apperr.Unavailable, op, err)
	}

	logg.Info("store", "Tip recorded (hash and amount anonymized)")
	return nil
}

// --- Materialized feed operations ---

func (s *Store) AddToFeed(userID string, post models.Post) error {
	const op = "store.AddToFeed"

	if err := s.Session.Query(`
		INSERT INTO feed_by_user (user_id, created_at, post_id, author_id, content, image_url)
		VALUES (?, ?, ?, ?, ?, ?)`,
		userID, post.Created, post.ID, post.AuthorID, post.Content, post.ImageURL,
	).Exec(); err != nil {
		logg.Error("store", "Failed to add post to feed", err)
		return apperr.Wrap(apperr.Unavailable, op, err)
	}

	logg.Info("store", "Post added to user's feed (IDs and content anonymized)")
	return nil
}

func (s *Store) GetFeed(userID string, limit int) ([]models.Post, error) {
	const op = "store.GetFeed"

	iter := s.Session.Query(`
		SELECT post_id, author_id, content, image_url, created_at
		FROM feed_by_user WHERE user_id = ? LIMIT ?`,
		userID, limit,
	).Iter()

	res := []models.Post{}
	var p models.Post
	for iter.Scan(&p.ID, &p.AuthorID, &p.Content, &p.ImageURL, &p.Created) {
		res = append(res, p)
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to retrieve user feed", err)
		return nil, apperr.Wrap(apperr.Unavailable, op, err)
	}

	logg.Info("store", "User feed retrieved successfully (IDs and content anonymized)")
	return res, nil
}
