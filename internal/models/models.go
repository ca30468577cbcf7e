package models

import "time"

type User struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Avatar        string `json:"avatar"`
	Bio           string `json:"bio"`
	WalletAddress string `json:"wallet_address,omitempty"`
	PublicKey     string `json:"public_key"`
}

// Like records one user's like on one post. At most one Like exists per
// (post, user) pair.
type Like struct {
	PostID  string    `json:"post_id"`
	UserID  string    `json:"user_id"`
	LikedAt time.Time `json:"liked_at"`
}

// Tip is an off-chain record of a confirmed on-chain token transfer.
// Append-only: once written it is never mutated or removed.
type Tip struct {
	PostID  string    `json:"post_id"`
	UserID  string    `json:"user_id"`
	Amount  string    `json:"amount"`
	TxHash  string    `json:"tx_hash"`
	Created time.Time `json:"created"`
}

type Post struct {
	ID       string    `json:"id"`
	AuthorID string    `json:"author_id"`
	Content  string    `json:"content"`
	ImageURL string    `json:"image_url,omitempty"`
	Created  time.Time `json:"created"`
	Likes    []Like    `json:"likes"`
	Tips     []Tip     `json:"tips"`
}

// LikeCount is the cardinality of the post's Like set. The displayed count
// is always derived from the set, never tracked separately.
func (p Post) LikeCount() int {
	return len(p.Likes)
}

// LikedBy reports whether userID is a member of the post's Like set.
func (p Post) LikedBy(userID string) bool {
	for _, l := range p.Likes {
		if l.UserID == userID {
			return true
		}
	}
	return false
}

type Follow struct {
	FollowerID string `json:"follower_id"`
	FolloweeID string `json:"followee_id"`
}
