package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"example.com/contextfeed/internal/apperr"
	"example.com/contextfeed/internal/models"
)

// MockSocialStore simulates the Cassandra store in memory for testing.
// Call counters let tests assert how many network calls an operation cost.
type MockSocialStore struct {
	mu sync.Mutex

	Users     map[string]models.User   // user_id -> user
	ByKey     map[string]string        // public_key -> user_id
	Posts     map[string]models.Post   // post_id -> post (Likes/Tips inline)
	Follows   map[string][]string      // follower_id -> followee_ids
	Followers map[string][]string      // followee_id -> follower_ids
	TipsByTx  map[string]models.Tip    // tx_hash -> tip
	Feed      map[string][]models.Post // user_id -> fanned-out posts

	ShouldFail bool // simulate backend failures

	LikeCalls   int
	UnlikeCalls int
	FollowCalls int
	DeleteCalls int
	TipCalls    int

	userCounter int
}

// NewMock initializes a new mock store
func NewMock() *MockSocialStore {
	return &MockSocialStore{
		Users:     make(map[string]models.User),
		ByKey:     make(map[string]string),
		Posts:     make(map[string]models.Post),
		Follows:   make(map[string][]string),
		Followers: make(map[string][]string),
		TipsByTx:  make(map[string]models.Tip),
		Feed:      make(map[string][]models.Post),
	}
}

func (m *MockSocialStore) Close() {}

func (m *MockSocialStore) fail(op string) error {
	return apperr.New(apperr.Unavailable, op, "mock: backend failure")
}

// --- User operations ---

func (m *MockSocialStore) CreateUser(name, avatar, bio, publicKey string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.User{}, m.fail("store.CreateUser")
	}
	if id, ok := m.ByKey[publicKey]; ok {
		return m.Users[id], nil
	}
	m.userCounter++
	u := models.User{
		ID:        fmt.Sprintf("user_%d", m.userCounter),
		Name:      name,
		Avatar:    avatar,
		Bio:       bio,
		PublicKey: publicKey,
	}
	m.Users[u.ID] = u
	m.ByKey[publicKey] = u.ID
	return u, nil
}

func (m *MockSocialStore) GetUser(id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.User{}, m.fail("store.GetUser")
	}
	u, ok := m.Users[id]
	if !ok {
		return models.User{}, apperr.New(apperr.NotFound, "store.GetUser", "user not found")
	}
	return u, nil
}

func (m *MockSocialStore) GetUserByPublicKey(publicKey string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.User{}, m.fail("store.GetUserByPublicKey")
	}
	id, ok := m.ByKey[publicKey]
	if !ok {
		return models.User{}, apperr.New(apperr.NotFound, "store.GetUserByPublicKey", "public key not registered")
	}
	return m.Users[id], nil
}

func (m *MockSocialStore) UpdateUser(id, name, bio, walletAddress string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.User{}, m.fail("store.UpdateUser")
	}
	u, ok := m.Users[id]
	if !ok {
		return models.User{}, apperr.New(apperr.NotFound, "store.UpdateUser", "user not found")
	}
	u.Name = name
	u.Bio = bio
	u.WalletAddress = walletAddress
	m.Users[id] = u
	return u, nil
}

func (m *MockSocialStore) SearchUsersByName(prefix string) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, m.fail("store.SearchUsersByName")
	}
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	res := []models.User{}
	if prefix == "" {
		return res, nil
	}
	for _, u := range m.Users {
		if strings.HasPrefix(strings.ToLower(u.Name), prefix) {
			res = append(res, u)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// --- Post operations ---

func (m *MockSocialStore) CreatePost(authorID, content, imageURL string) (models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Post{}, m.fail("store.CreatePost")
	}
	p := models.Post{
		ID:       fmt.Sprintf("post_%d", len(m.Posts)+1),
		AuthorID: authorID,
		Content:  content,
		ImageURL: imageURL,
		Created:  time.Now().UTC(),
		Likes:    []models.Like{},
		Tips:     []models.Tip{},
	}
	m.Posts[p.ID] = p
	return p, nil
}

func (m *MockSocialStore) GetPost(id string) (models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Post{}, m.fail("store.GetPost")
	}
	p, ok := m.Posts[id]
	if !ok {
		return models.Post{}, apperr.New(apperr.NotFound, "store.GetPost", "post not found")
	}
	return p, nil
}

func (m *MockSocialStore) GetAllPosts() ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, m.fail("store.GetAllPosts")
	}
	res := make([]models.Post, 0, len(m.Posts))
	for _, p := range m.Posts {
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (m *MockSocialStore) GetPostCount() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return 0, m.fail("store.GetPostCount")
	}
	return int64(len(m.Posts)), nil
}

func (m *MockSocialStore) DeletePost(postID, requestingUserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if m.ShouldFail {
		return m.fail("store.DeletePost")
	}
	p, ok := m.Posts[postID]
	if !ok {
		return apperr.New(apperr.NotFound, "store.DeletePost", "post not found")
	}
	if p.AuthorID != requestingUserID {
		return apperr.New(apperr.Unauthorized, "store.DeletePost", "only the author can delete a post")
	}
	delete(m.Posts, postID)
	for uid, posts := range m.Feed {
		kept := posts[:0]
		for _, fp := range posts {
			if fp.ID != postID {
				kept = append(kept, fp)
			}
		}
		m.Feed[uid] = kept
	}
	return nil
}

// --- Like operations ---

func (m *MockSocialStore) LikePost(postID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LikeCalls++
	if m.ShouldFail {
		return m.fail("store.LikePost")
	}
	p, ok := m.Posts[postID]
	if !ok {
		return apperr.New(apperr.NotFound, "store.LikePost", "post not found")
	}
	if p.LikedBy(userID) {
		return nil
	}
	p.Likes = append(p.Likes, models.Like{PostID: postID, UserID: userID, LikedAt: time.Now().UTC()})
	m.Posts[postID] = p
	return nil
}

func (m *MockSocialStore) UnlikePost(postID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UnlikeCalls++
	if m.ShouldFail {
		return m.fail("store.UnlikePost")
	}
	p, ok := m.Posts[postID]
	if !ok {
		return apperr.New(apperr.NotFound, "store.UnlikePost", "post not found")
	}
	likes := p.Likes[:0]
	for _, l := range p.Likes {
		if l.UserID != userID {
			likes = append(likes, l)
		}
	}
	p.Likes = likes
	m.Posts[postID] = p
	return nil
}

// --- Follow operations ---

func (m *MockSocialStore) FollowUser(followerID, followeeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FollowCalls++
	if m.ShouldFail {
		return m.fail("store.FollowUser")
	}
	if followerID == followeeID {
		return apperr.New(apperr.InvalidInput, "store.FollowUser", "a user cannot follow itself")
	}
	for _, id := range m.Follows[followerID] {
		if id == followeeID {
			return nil
		}
	}
	m.Follows[followerID] = append(m.Follows[followerID], followeeID)
	m.Followers[followeeID] = append(m.Followers[followeeID], followerID)
	return nil
}

func (m *MockSocialStore) UnfollowUser(followerID, followeeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FollowCalls++
	if m.ShouldFail {
		return m.fail("store.UnfollowUser")
	}
	m.Follows[followerID] = remove(m.Follows[followerID], followeeID)
	m.Followers[followeeID] = remove(m.Followers[followeeID], followerID)
	return nil
}

func remove(ids []string, target string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func (m *MockSocialStore) IsFollowing(followerID, followeeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return false, m.fail("store.IsFollowing")
	}
	for _, id := range m.Follows[followerID] {
		if id == followeeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockSocialStore) GetFollowers(userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, m.fail("store.GetFollowers")
	}
	return append([]string{}, m.Followers[userID]...), nil
}

func (m *MockSocialStore) GetFollowing(userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, m.fail("store.GetFollowing")
	}
	return append([]string{}, m.Follows[userID]...), nil
}

func (m *MockSocialStore) GetFollowerCount(userID string) (int, error) {
	followers, err := m.GetFollowers(userID)
	if err != nil {
		return 0, err
	}
	return len(followers), nil
}

func (m *MockSocialStore) GetFollowingCount(userID string) (int, error) {
	following, err := m.GetFollowing(userID)
	if err != nil {
		return 0, err
	}
	return len(following), nil
}

// --- Tip operations ---

// RecordTip mirrors the real store's idempotency: keyed by tx_hash, a
// duplicate record is a no-op success.
func (m *MockSocialStore) RecordTip(postID, userID, amount, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TipCalls++
	if m.ShouldFail {
		return m.fail("store.RecordTip")
	}
	p, ok := m.Posts[postID]
	if !ok {
		return apperr.New(apperr.NotFound, "store.RecordTip", "post not found")
	}
	if _, ok := m.TipsByTx[txHash]; ok {
		return nil
	}
	tip := models.Tip{
		PostID:  postID,
		UserID:  userID,
		Amount:  amount,
		TxHash:  txHash,
		Created: time.Now().UTC(),
	}
	m.TipsByTx[txHash] = tip
	p.Tips = append(p.Tips, tip)
	m.Posts[postID] = p
	return nil
}

// --- Materialized feed operations ---

func (m *MockSocialStore) AddToFeed(userID string, post models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return m.fail("store.AddToFeed")
	}
	m.Feed[userID] = append(m.Feed[userID], post)
	return nil
}

func (m *MockSocialStore) GetFeed(userID string, limit int) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, m.fail("store.GetFeed")
	}
	posts := m.Feed[userID]
	if len(posts) > limit {
		return posts[:limit], nil
	}
	return posts, nil
}

// ---------------------------------------------
// MockSocialStoreFail always returns errors for negative tests

type MockSocialStoreFail struct{}

func failErr(op string) error {
	return apperr.New(apperr.Unavailable, op, "mock store failure")
}

func (m *MockSocialStoreFail) Close() {}

func (m *MockSocialStoreFail) CreateUser(name, avatar, bio, publicKey string) (models.User, error) {
	return models.User{}, failErr("store.CreateUser")
}

func (m *MockSocialStoreFail) GetUser(id string) (models.User, error) {
	return models.User{}, failErr("store.GetUser")
}

func (m *MockSocialStoreFail) GetUserByPublicKey(publicKey string) (models.User, error) {
	return models.User{}, failErr("store.GetUserByPublicKey")
}

func (m *MockSocialStoreFail) UpdateUser(id, name, bio, walletAddress string) (models.User, error) {
	return models.User{}, failErr("store.UpdateUser")
}

func (m *MockSocialStoreFail) SearchUsersByName(prefix string) ([]models.User, error) {
	return nil, failErr("store.SearchUsersByName")
}

func (m *MockSocialStoreFail) CreatePost(authorID, content, imageURL string) (models.Post, error) {
	return models.Post{}, failErr("store.CreatePost")
}

func (m *MockSocialStoreFail) GetPost(id string) (models.Post, error) {
	return models.Post{}, failErr("store.GetPost")
}

func (m *MockSocialStoreFail) GetAllPosts() ([]models.Post, error) {
	return nil, failErr("store.GetAllPosts")
}

func (m *MockSocialStoreFail) GetPostCount() (int64, error) {
	return 0, failErr("store.GetPostCount")
}

func (m *MockSocialStoreFail) DeletePost(postID, requestingUserID string) error {
	return failErr("store.DeletePost")
}

func (m *MockSocialStoreFail) LikePost(postID, userID string) error {
	return failErr("store.LikePost")
}

func (m *MockSocialStoreFail) UnlikePost(postID, userID string) error {
	return failErr("store.UnlikePost")
}

func (m *MockSocialStoreFail) FollowUser(followerID, followeeID string) error {
	return failErr("store.FollowUser")
}

func (m *MockSocialStoreFail) UnfollowUser(followerID, followeeID string) error {
	return failErr("store.UnfollowUser")
}

func (m *MockSocialStoreFail) IsFollowing(followerID, followeeID string) (bool, error) {
	return false, failErr("store.IsFollowing")
}

func (m *MockSocialStoreFail) GetFollowers(userID string) ([]string, error) {
	return nil, failErr("store.GetFollowers")
}

func (m *MockSocialStoreFail) GetFollowing(userID string) ([]string, error) {
	return nil, failErr("store.GetFollowing")
}

func (m *MockSocialStoreFail) GetFollowerCount(userID string) (int, error) {
	return 0, failErr("store.GetFollowerCount")
}

func (m *MockSocialStoreFail) GetFollowingCount(userID string) (int, error) {
	return 0, failErr("store.GetFollowingCount")
}

func (m *MockSocialStoreFail) RecordTip(postID, userID, amount, txHash string) error {
	return failErr("store.RecordTip")
}

func (m *MockSocialStoreFail) AddToFeed(userID string, post models.Post) error {
	return failErr("store.AddToFeed")
}

func (m *MockSocialStoreFail) GetFeed(userID string, limit int) ([]models.Post, error) {
	return nil, failErr("store.GetFeed")
}
