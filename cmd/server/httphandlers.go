package server

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"example.com/contextfeed/internal/apperr"
	"example.com/contextfeed/internal/chain"
	"example.com/contextfeed/internal/images"
	"example.com/contextfeed/internal/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/segmentio/kafka-go"
)

// writeError maps an error's category to the HTTP status the gateway
// translates back into the same category on the client side.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.CategoryOf(err) {
	case apperr.InvalidInput:
		status = http.StatusBadRequest
	case apperr.Unauthenticated:
		status = http.StatusUnauthorized
	case apperr.Unauthorized:
		status = http.StatusForbidden
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.Unavailable:
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// --- User handlers ---

// usersHandler dispatches on method: POST registers (public), GET reads
// (public), PUT updates the caller's own profile (JWT).
func (s *Server) usersHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.registerHandler(w, r)
	case http.MethodGet:
		s.getUsersHandler(w, r)
	case http.MethodPut:
		middleware.JWTAuth(http.HandlerFunc(s.updateUserHandler)).ServeHTTP(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// registerHandler creates a user owned by a public key and issues the
// session token bound to it.
// Expects JSON body: {"name": ..., "avatar": ..., "bio": ..., "public_key": ...}
func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	type req struct {
		Name      string `json:"name"`
		Avatar    string `json:"avatar"`
		Bio       string `json:"bio"`
		PublicKey string `json:"public_key"`
	}
	var body req

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logg.Error("http/users", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if len(body.Name) == 0 || len(body.Name) > 50 {
		logg.Info("http/users", "Invalid display name length")
		http.Error(w, "name must be 1-50 characters", http.StatusBadRequest)
		return
	}
	if body.PublicKey == "" {
		http.Error(w, "public_key is required", http.StatusBadRequest)
		return
	}

	// Avatar is derived from the name at registration and immutable after.
	if body.Avatar == "" {
		body.Avatar = images.AvatarURL(body.Name)
	}

	user, err := s.store.CreateUser(body.Name, body.Avatar, body.Bio, body.PublicKey)
	if err != nil {
		logg.Error("http/users", "Failed to create user", err)
		writeError(w, err)
		return
	}
	logg.Info("http/users", "User registered with user_id="+user.ID)

	secret := []byte(os.Getenv("JWT_SECRET"))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":    user.ID,
		"context_id": s.contextID,
		"public_key": user.PublicKey,
		"exp":        time.Now().Add(time.Hour * 24).Unix(),
	})
	tokenStr, err := token.SignedString(secret)
	if err != nil {
		http.Error(w, "failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"user":  user,
		"token": tokenStr,
	})
}

// getUsersHandler answers lookups by id, by public key, or by name prefix.
// Query parameters: ?id= | ?public_key= | ?search=
func (s *Server) getUsersHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	switch {
	case q.Get("id") != "":
		user, err := s.store.GetUser(q.Get("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, user)

	case q.Get("public_key") != "":
		user, err := s.store.GetUserByPublicKey(q.Get("public_key"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, user)

	case q.Has("search"):
		users, err := s.store.SearchUsersByName(q.Get("search"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"users": users})

	default:
		http.Error(w, "id, public_key or search parameter required", http.StatusBadRequest)
	}
}

// updateUserHandler rewrites the caller's own profile.
// Expects JSON body: {"id": ..., "name": ..., "bio": ..., "wallet_address": ...}
func (s *Server) updateUserHandler(w http.ResponseWriter, r *http.Request) {
	type req struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Bio           string `json:"bio"`
		WalletAddress string `json:"wallet_address"`
	}
	var body req

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if body.ID != "" && body.ID != userID {
		logg.Info("http/users", "Profile update rejected for foreign user_id")
		http.Error(w, "cannot update another user's profile", http.StatusForbidden)
		return
	}

	if len(body.Name) == 0 || len(body.Name) > 50 {
		http.Error(w, "name must be 1-50 characters", http.StatusBadRequest)
		return
	}
	if body.WalletAddress != "" && !chain.ValidAddress(body.WalletAddress) {
		http.Error(w, "malformed wallet address", http.StatusBadRequest)
		return
	}

	user, err := s.store.UpdateUser(userID, body.Name, body.Bio, body.WalletAddress)
	if err != nil {
		logg.Error("http/users", "Failed to update user", err)
		writeError(w, err)
		return
	}

	writeJSON(w, user)
}

// --- Post handlers ---

func (s *Server) postsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getAllPostsHandler(w, r)
	case http.MethodPost:
		middleware.JWTAuth(http.HandlerFunc(s.createPostHandler)).ServeHTTP(w, r)
	case http.MethodDelete:
		middleware.JWTAuth(http.HandlerFunc(s.deletePostHandler)).ServeHTTP(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) getAllPostsHandler(w http.ResponseWriter, r *http.Request) {
	posts, err := s.store.GetAllPosts()
	if err != nil {
		logg.Error("http/posts", "Failed to get posts", err)
		writeError(w, err)
		return
	}
	writeJSON(w, posts)
}

func (s *Server) postCountHandler(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.GetPostCount()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]int64{"count": count})
}

// createPostHandler stores a post and publishes a post-created event for
// feed fan-out.
// Expects JSON body: {"content": ..., "image_url": ...}
func (s *Server) createPostHandler(w http.ResponseWriter, r *http.Request) {
	type req struct {
		Content  string `json:"content"`
		ImageURL string `json:"image_url"`
	}
	var body req

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logg.Error("http/posts", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		logg.Info("http/posts", "Unauthorized post creation attempt")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if len(body.Content) == 0 || len(body.Content) > 1000 {
		logg.Info("http/posts", "Post content length invalid for user_id="+userID)
		http.Error(w, "post content must be 1-1000 characters", http.StatusBadRequest)
		return
	}

	post, err := s.store.CreatePost(userID, body.Content, body.ImageURL)
	if err != nil {
		logg.Error("http/posts", "Failed to save post", err)
		writeError(w, err)
		return
	}

	data, err := json.Marshal(post)
	if err != nil {
		logg.Error("http/posts", "Failed to marshal post", err)
		http.Error(w, "failed to marshal post", http.StatusInternalServerError)
		return
	}

	// Fan-out is best effort: the post is already in the global set, so a
	// failed event only delays materialized feeds until the next refresh.
	msg := kafka.Message{
		Key:   []byte("post_created"),
		Value: data,
	}
	if err := s.kafkaWriter.WriteMessages(msg); err != nil {
		logg.Error("http/posts", "Failed to write post-created event", err)
	}

	logg.Info("http/posts", "Post created successfully by user_id="+userID)
	writeJSON(w, post)
}

// deletePostHandler removes the caller's own post.
// Query parameters: ?id=
func (s *Server) deletePostHandler(w http.ResponseWriter, r *http.Request) {
	postID := r.URL.Query().Get("id")
	if postID == "" {
		http.Error(w, "id parameter required", http.StatusBadRequest)
		return
	}

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := s.store.DeletePost(postID, userID); err != nil {
		logg.Error("http/posts", "Failed to delete post", err)
		writeError(w, err)
		return
	}

	logg.Info("http/posts", "Post deleted by user_id="+userID)
	w.WriteHeader(http.StatusOK)
}

// --- Like handlers ---

// likesHandler toggles like membership: POST likes, DELETE unlikes.
// Expects JSON body: {"post_id": ..., "user_id": ...}
// user_id, when present, must match the token's user.
func (s *Server) likesHandler(w http.ResponseWriter, r *http.Request) {
	type req struct {
		PostID string `json:"post_id"`
		UserID string `json:"user_id"`
	}
	var body req

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if body.UserID != "" && body.UserID != userID {
		http.Error(w, "cannot like on behalf of another user", http.StatusForbidden)
		return
	}
	if body.PostID == "" {
		http.Error(w, "post_id is required", http.StatusBadRequest)
		return
	}

	var err error
	switch r.Method {
	case http.MethodPost:
		err = s.store.LikePost(body.PostID, userID)
	case http.MethodDelete:
		err = s.store.UnlikePost(body.PostID, userID)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err != nil {
		logg.Error("http/likes", "Like toggle failed", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// --- Follow handlers ---

// followsHandler creates or removes a follow edge, or answers membership.
// POST/DELETE body: {"follower_id": ..., "followee_id": ...}
// GET query: ?follower_id=&followee_id= -> {"following": bool}
func (s *Server) followsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		following, err := s.store.IsFollowing(q.Get("follower_id"), q.Get("followee_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"following": following})
		return
	}

	middleware.JWTAuth(http.HandlerFunc(s.mutateFollowHandler)).ServeHTTP(w, r)
}

func (s *Server) mutateFollowHandler(w http.ResponseWriter, r *http.Request) {
	type req struct {
		FollowerID string `json:"follower_id"`
		FolloweeID string `json:"followee_id"`
	}
	var body req

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logg.Error("http/follows", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		logg.Info("http/follows", "Unauthorized follow attempt")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if body.FollowerID != "" && body.FollowerID != userID {
		http.Error(w, "cannot follow on behalf of another user", http.StatusForbidden)
		return
	}
	if body.FolloweeID == "" {
		http.Error(w, "followee_id is required", http.StatusBadRequest)
		return
	}

	var err error
	switch r.Method {
	case http.MethodPost:
		err = s.store.FollowUser(userID, body.FolloweeID)
	case http.MethodDelete:
		err = s.store.UnfollowUser(userID, body.FolloweeID)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err != nil {
		logg.Error("http/follows", "Follow mutation failed", err)
		writeError(w, err)
		return
	}

	logg.Info("http/follows", "Follow edge updated for user "+userID)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) followersHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id parameter required", http.StatusBadRequest)
		return
	}

	followers, err := s.store.GetFollowers(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"user_ids": followers, "count": len(followers)})
}

func (s *Server) followingHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id parameter required", http.StatusBadRequest)
		return
	}

	following, err := s.store.GetFollowing(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"user_ids": following, "count": len(following)})
}

// --- Tip handlers ---

// tipsHandler appends a tip record for a confirmed transfer. The write is
// keyed by transaction hash, so re-recording after a partial failure is
// safe.
// Expects JSON body: {"post_id": ..., "user_id": ..., "amount": ..., "tx_hash": ...}
func (s *Server) tipsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	type req struct {
		PostID string `json:"post_id"`
		UserID string `json:"user_id"`
		Amount string `json:"amount"`
		TxHash string `json:"tx_hash"`
	}
	var body req

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if body.UserID != "" && body.UserID != userID {
		http.Error(w, "cannot record a tip for another user", http.StatusForbidden)
		return
	}

	if _, err := chain.ParseAmount(body.Amount, s.tokenDecimals); err != nil {
		http.Error(w, "invalid tip amount: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.PostID == "" || body.TxHash == "" {
		http.Error(w, "post_id and tx_hash are required", http.StatusBadRequest)
		return
	}

	if err := s.store.RecordTip(body.PostID, userID, body.Amount, body.TxHash); err != nil {
		logg.Error("http/tips", "Failed to record tip", err)
		writeError(w, err)
		return
	}

	logg.Info("http/tips", "Tip recorded for user_id="+userID)
	w.WriteHeader(http.StatusOK)
}

// --- Feed handler ---

// getFeedHandler retrieves the caller's materialized feed.
// Query parameters: ?limit=50
func (s *Server) getFeedHandler(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		logg.Info("http/feed", "Unauthorized feed access attempt")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	limit := 50
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	feed, err := s.store.GetFeed(userID, limit)
	if err != nil {
		logg.Error("http/feed", "Failed to get feed for user_id="+userID, err)
		writeError(w, err)
		return
	}

	logg.Info("http/feed", "Feed retrieved for user_id="+userID+" with limit="+strconv.Itoa(limit))
	writeJSON(w, feed)
}
