// Package gateway is the client side of the social store boundary: a typed
// HTTP wrapper bound to a context handle and a session token. Every method
// resolves to a typed result or an apperr-categorized error, and never
// retries: only callers know whether a retry is safe for their operation.
package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"example.com/contextfeed/internal/apperr"
	"example.com/contextfeed/internal/models"
)

// Client talks to one store node within one authorized context.
type Client struct {
	baseURL   string
	contextID string
	token     string
	http      *http.Client
}

// NewClient binds a client to a node, a context handle, and a session
// token. An empty token limits the client to public operations.
func NewClient(baseURL, contextID, token string) *Client {
	return &Client{
		baseURL:   baseURL,
		contextID: contextID,
		token:     token,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// WithToken returns a copy of the client bound to a new session token.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

// ContextID returns the context handle the client is scoped to.
func (c *Client) ContextID() string { return c.contextID }

// do issues one request and decodes the response into out (if non-nil).
// Transport failures and 5xx map to Unavailable; 4xx map to their
// categories so callers can distinguish "you may not" from "we could not".
func (c *Client) do(op, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperr.Wrap(apperr.InvalidInput, op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return apperr.Wrap(apperr.InvalidInput, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Context-Id", c.contextID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.Unavailable, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.New(categoryForStatus(resp.StatusCode), op,
			fmt.Sprintf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperr.Wrap(apperr.Unavailable, op, err)
		}
	}
	return nil
}

func categoryForStatus(status int) apperr.Category {
	switch status {
	case http.StatusBadRequest:
		return apperr.InvalidInput
	case http.StatusUnauthorized:
		return apperr.Unauthenticated
	case http.StatusForbidden:
		return apperr.Unauthorized
	case http.StatusNotFound:
		return apperr.NotFound
	default:
		return apperr.Unavailable
	}
}

// --- User operations ---

// RegisterResult is what registration returns: the created user plus the
// session token bound to its public key.
type RegisterResult struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

func (c *Client) CreateUser(name, avatar, bio, publicKey string) (RegisterResult, error) {
	var res RegisterResult
	err := c.do("gateway.CreateUser", http.MethodPost, "/users", map[string]string{
		"name":       name,
		"avatar":     avatar,
		"bio":        bio,
		"public_key": publicKey,
	}, &res)
	return res, err
}

func (c *Client) GetUser(id string) (models.User, error) {
	var u models.User
	err := c.do("gateway.GetUser", http.MethodGet, "/users?id="+url.QueryEscape(id), nil, &u)
	return u, err
}

func (c *Client) GetUserByPublicKey(publicKey string) (models.User, error) {
	var u models.User
	err := c.do("gateway.GetUserByPublicKey", http.MethodGet,
		"/users?public_key="+url.QueryEscape(publicKey), nil, &u)
	return u, err
}

func (c *Client) UpdateUser(id, name, bio, walletAddress string) (models.User, error) {
	var u models.User
	err := c.do("gateway.UpdateUser", http.MethodPut, "/users", map[string]string{
		"id":             id,
		"name":           name,
		"bio":            bio,
		"wallet_address": walletAddress,
	}, &u)
	return u, err
}

func (c *Client) SearchUsersByName(prefix string) ([]models.User, error) {
	var res struct {
		Users []models.User `json:"users"`
	}
	err := c.do("gateway.SearchUsersByName", http.MethodGet,
		"/users?search="+url.QueryEscape(prefix), nil, &res)
	if err != nil {
		return nil, err
	}
	return res.Users, nil
}

// --- Post operations ---

func (c *Client) GetAllPosts() ([]models.Post, error) {
	var posts []models.Post
	err := c.do("gateway.GetAllPosts", http.MethodGet, "/posts", nil, &posts)
	return posts, err
}

func (c *Client) GetPostCount() (int64, error) {
	var res struct {
		Count int64 `json:"count"`
	}
	err := c.do("gateway.GetPostCount", http.MethodGet, "/posts/count", nil, &res)
	return res.Count, err
}

func (c *Client) CreatePost(authorID, content, imageURL string) (models.Post, error) {
	var p models.Post
	err := c.do("gateway.CreatePost", http.MethodPost, "/posts", map[string]string{
		"author_id": authorID,
		"content":   content,
		"image_url": imageURL,
	}, &p)
	return p, err
}

// DeletePost removes the caller's own post. The acting user is the session
// token's user; the server enforces ownership.
func (c *Client) DeletePost(postID string) error {
	return c.do("gateway.DeletePost", http.MethodDelete,
		"/posts?id="+url.QueryEscape(postID), nil, nil)
}

// --- Like operations ---

func (c *Client) LikePost(postID, userID string) error {
	return c.do("gateway.LikePost", http.MethodPost, "/likes", map[string]string{
		"post_id": postID,
		"user_id": userID,
	}, nil)
}

func (c *Client) UnlikePost(postID, userID string) error {
	return c.do("gateway.UnlikePost", http.MethodDelete, "/likes", map[string]string{
		"post_id": postID,
		"user_id": userID,
	}, nil)
}

// --- Follow operations ---

func (c *Client) FollowUser(followerID, followeeID string) error {
	return c.do("gateway.FollowUser", http.MethodPost, "/follows", map[string]string{
		"follower_id": followerID,
		"followee_id": followeeID,
	}, nil)
}

func (c *Client) UnfollowUser(followerID, followeeID string) error {
	return c.do("gateway.UnfollowUser", http.MethodDelete, "/follows", map[string]string{
		"follower_id": followerID,
		"followee_id": followeeID,
	}, nil)
}

func (c *Client) IsFollowing(followerID, followeeID string) (bool, error) {
	var res struct {
		Following bool `json:"following"`
	}
	err := c.do("gateway.IsFollowing", http.MethodGet,
		"/follows?follower_id="+url.QueryEscape(followerID)+
			"&followee_id="+url.QueryEscape(followeeID), nil, &res)
	return res.Following, err
}

type followList struct {
	UserIDs []string `json:"user_ids"`
	Count   int      `json:"count"`
}

func (c *Client) GetFollowers(userID string) ([]string, error) {
	var res followList
	err := c.do("gateway.GetFollowers", http.MethodGet,
		"/followers?user_id="+url.QueryEscape(userID), nil, &res)
	return res.UserIDs, err
}

func (c *Client) GetFollowing(userID string) ([]string, error) {
	var res followList
	err := c.do("gateway.GetFollowing", http.MethodGet,
		"/following?user_id="+url.QueryEscape(userID), nil, &res)
	return res.UserIDs, err
}

func (c *Client) GetFollowerCount(userID string) (int, error) {
	var res followList
	err := c.do("gateway.GetFollowerCount", http.MethodGet,
		"/followers?user_id="+url.QueryEscape(userID), nil, &res)
	return res.Count, err
}

func (c *Client) GetFollowingCount(userID string) (int, error) {
	var res followList
	err := c.do("gateway.GetFollowingCount", http.MethodGet,
		"/following?user_id="+url.QueryEscape(userID), nil, &res)
	return res.Count, err
}

// --- Tip operations ---

func (c *Client) RecordTip(postID, userID, amount, txHash string) error {
	return c.do("gateway.RecordTip", http.MethodPost, "/tips", map[string]string{
		"post_id": postID,
		"user_id": userID,
		"amount":  amount,
		"tx_hash": txHash,
	}, nil)
}

// --- Materialized feed ---

func (c *Client) GetFeed(limit int) ([]models.Post, error) {
	var posts []models.Post
	err := c.do("gateway.GetFeed", http.MethodGet,
		fmt.Sprintf("/feed?limit=%d", limit), nil, &posts)
	return posts, err
}
