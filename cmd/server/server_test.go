package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	appkafka "example.com/contextfeed/internal/broker"
	"example.com/contextfeed/internal/middleware"
	"example.com/contextfeed/internal/models"
	"example.com/contextfeed/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/segmentio/kafka-go"
)

//
// --- Helpers ---
//

// generate JWT token for test user
func makeTestJWT(userID string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":    userID,
		"context_id": "test-context",
		"public_key": "pk-" + userID,
		"exp":        time.Now().Add(time.Hour).Unix(),
	})
	tokenStr, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		panic(err)
	}
	return tokenStr
}

// create HTTP request with JWT token
func sendJSONRequest(t *testing.T, method, url string, body any, token string, expectedStatus int) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}

	req, err := http.NewRequest(method, url, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != expectedStatus {
		b, _ := io.ReadAll(resp.Body)
		defer resp.Body.Close()
		t.Fatalf("expected %d, got %d: %s", expectedStatus, resp.StatusCode, string(b))
	}
	return resp
}

//
// --- Setup test server ---
//

func setupTestServer(t *testing.T) (*Server, *store.MockSocialStore, *httptest.Server) {
	t.Helper()
	mockStore := store.NewMock()
	s := &Server{
		store:         mockStore,
		kafkaWriter:   &appkafka.MockKafka{Store: mockStore},
		contextID:     "test-context",
		tokenDecimals: 6,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/users", s.usersHandler)
	mux.HandleFunc("/posts", s.postsHandler)
	mux.HandleFunc("/posts/count", s.postCountHandler)
	mux.HandleFunc("/follows", s.followsHandler)
	mux.HandleFunc("/followers", s.followersHandler)
	mux.HandleFunc("/following", s.followingHandler)
	mux.Handle("/likes", middleware.JWTAuth(http.HandlerFunc(s.likesHandler)))
	mux.Handle("/tips", middleware.JWTAuth(http.HandlerFunc(s.tipsHandler)))
	mux.Handle("/feed", middleware.JWTAuth(http.HandlerFunc(s.getFeedHandler)))

	return s, mockStore, httptest.NewServer(s.contextGuard(mux))
}

//
// --- Tests ---
//

// register a new user
func TestRegisterUser(t *testing.T) {
	_, _, ts := setupTestServer(t)
	defer ts.Close()

	user, token := registerUserHelper(t, ts, "almaz", "pk-almaz")
	if user.ID == "" {
		t.Fatalf("expected non-zero user ID")
	}
	if token == "" {
		t.Fatalf("expected a session token")
	}
	if user.Avatar == "" {
		t.Fatalf("expected a derived avatar")
	}
}

// full flow: follow -> post -> feed
func TestFollowAndFeedFlow(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret")

	_, mockStore, ts := setupTestServer(t)
	defer ts.Close()

	almaz, _ := mockStore.CreateUser("almaz", "", "", "pk-almaz")
	nur, _ := mockStore.CreateUser("nur", "", "", "pk-nur")

	almazToken := makeTestJWT(almaz.ID)
	nurToken := makeTestJWT(nur.ID)

	// Almaz -> follow Nur
	followReq := map[string]any{"followee_id": nur.ID}
	sendJSONRequest(t, http.MethodPost, ts.URL+"/follows", followReq, almazToken, http.StatusOK)

	// Nur -> create post
	postContent := "Hello from Nur!"
	postReq := map[string]any{"content": postContent}
	sendJSONRequest(t, http.MethodPost, ts.URL+"/posts", postReq, nurToken, http.StatusOK)

	// Almaz -> check feed (polling)
	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		feed := getFeedHelper(t, ts, almazToken)
		for _, p := range feed {
			if p.Content == postContent {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}

	t.Fatalf("expected post in feed")
}

// like flow: the displayed count equals the like set cardinality
func TestLikeAndUnlikeFlow(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret")

	_, mockStore, ts := setupTestServer(t)
	defer ts.Close()

	author, _ := mockStore.CreateUser("author", "", "", "pk-author")
	liker, _ := mockStore.CreateUser("liker", "", "", "pk-liker")
	post, _ := mockStore.CreatePost(author.ID, "like me", "")

	likerToken := makeTestJWT(liker.ID)

	likeReq := map[string]any{"post_id": post.ID}
	sendJSONRequest(t, http.MethodPost, ts.URL+"/likes", likeReq, likerToken, http.StatusOK)

	got, _ := mockStore.GetPost(post.ID)
	if got.LikeCount() != 1 || !got.LikedBy(liker.ID) {
		t.Fatalf("expected one like by %s, got %+v", liker.ID, got.Likes)
	}

	// Liking again is a set insert: still exactly one element.
	sendJSONRequest(t, http.MethodPost, ts.URL+"/likes", likeReq, likerToken, http.StatusOK)
	got, _ = mockStore.GetPost(post.ID)
	if got.LikeCount() != 1 {
		t.Fatalf("duplicate like must not grow the set, got %d", got.LikeCount())
	}

	sendJSONRequest(t, http.MethodDelete, ts.URL+"/likes", likeReq, likerToken, http.StatusOK)
	got, _ = mockStore.GetPost(post.ID)
	if got.LikeCount() != 0 {
		t.Fatalf("expected empty like set after unlike, got %d", got.LikeCount())
	}
}

// deleting someone else's post is forbidden
func TestDeletePost_Unauthorized(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret")

	_, mockStore, ts := setupTestServer(t)
	defer ts.Close()

	userA, _ := mockStore.CreateUser("userA", "", "", "pk-a")
	userB, _ := mockStore.CreateUser("userB", "", "", "pk-b")
	post, _ := mockStore.CreatePost(userA.ID, "mine", "")

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/posts?id="+post.ID, nil)
	req.Header.Set("Authorization", "Bearer "+makeTestJWT(userB.ID))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	if _, err := mockStore.GetPost(post.ID); err != nil {
		t.Fatalf("post must survive an unauthorized delete")
	}
}

// a deleted post must leave every materialized feed it was fanned out to
func TestDeletePost_RemovedFromFollowerFeeds(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret")

	_, mockStore, ts := setupTestServer(t)
	defer ts.Close()

	author, _ := mockStore.CreateUser("author", "", "", "pk-author")
	follower, _ := mockStore.CreateUser("follower", "", "", "pk-follower")
	mockStore.FollowUser(follower.ID, author.ID)

	authorToken := makeTestJWT(author.ID)
	followerToken := makeTestJWT(follower.ID)

	// Create through the handler so the post fans out to follower feeds.
	postReq := map[string]any{"content": "soon gone"}
	resp := sendJSONRequest(t, http.MethodPost, ts.URL+"/posts", postReq, authorToken, http.StatusOK)
	var post models.Post
	if err := json.NewDecoder(resp.Body).Decode(&post); err != nil {
		t.Fatalf("decode post failed: %v", err)
	}
	resp.Body.Close()

	if feed := getFeedHelper(t, ts, followerToken); len(feed) != 1 {
		t.Fatalf("post not fanned out, feed: %+v", feed)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/posts?id="+post.ID, nil)
	req.Header.Set("Authorization", "Bearer "+authorToken)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", delResp.StatusCode)
	}

	if feed := getFeedHelper(t, ts, followerToken); len(feed) != 0 {
		t.Fatalf("deleted post still served from follower feed: %+v", feed)
	}
	if feed := getFeedHelper(t, ts, authorToken); len(feed) != 0 {
		t.Fatalf("deleted post still served from author feed: %+v", feed)
	}
}

// self-follow is invalid input
func TestFollow_SelfRejected(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret")

	_, mockStore, ts := setupTestServer(t)
	defer ts.Close()

	user, _ := mockStore.CreateUser("loner", "", "", "pk-loner")
	token := makeTestJWT(user.ID)

	followReq := map[string]any{"followee_id": user.ID}
	sendJSONRequest(t, http.MethodPost, ts.URL+"/follows", followReq, token, http.StatusBadRequest)
}

// user search: blank prefix yields nothing, prefix match is case-insensitive
func TestSearchUsers(t *testing.T) {
	_, mockStore, ts := setupTestServer(t)
	defer ts.Close()

	mockStore.CreateUser("Alice", "", "", "pk-1")
	mockStore.CreateUser("alfred", "", "", "pk-2")
	mockStore.CreateUser("Bob", "", "", "pk-3")

	if got := searchUsersHelper(t, ts, ""); len(got) != 0 {
		t.Fatalf("blank search must be empty, got %d", len(got))
	}
	got := searchUsersHelper(t, ts, "al")
	if len(got) != 2 {
		t.Fatalf("expected 2 matches for 'al', got %d", len(got))
	}
}

// tip recording is idempotent by transaction hash
func TestRecordTip_IdempotentByTxHash(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret")

	_, mockStore, ts := setupTestServer(t)
	defer ts.Close()

	author, _ := mockStore.CreateUser("author", "", "", "pk-author")
	tipper, _ := mockStore.CreateUser("tipper", "", "", "pk-tipper")
	post, _ := mockStore.CreatePost(author.ID, "tip me", "")

	token := makeTestJWT(tipper.ID)
	tipReq := map[string]any{"post_id": post.ID, "amount": "10.00", "tx_hash": "0xabc"}

	sendJSONRequest(t, http.MethodPost, ts.URL+"/tips", tipReq, token, http.StatusOK)
	sendJSONRequest(t, http.MethodPost, ts.URL+"/tips", tipReq, token, http.StatusOK)

	got, _ := mockStore.GetPost(post.ID)
	if len(got.Tips) != 1 {
		t.Fatalf("expected exactly one tip record, got %d", len(got.Tips))
	}
}

// non-positive tip amounts are rejected
func TestRecordTip_InvalidAmount(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret")

	_, mockStore, ts := setupTestServer(t)
	defer ts.Close()

	tipper, _ := mockStore.CreateUser("tipper", "", "", "pk-tipper")
	token := makeTestJWT(tipper.ID)

	tipReq := map[string]any{"post_id": "post_1", "amount": "0", "tx_hash": "0xabc"}
	sendJSONRequest(t, http.MethodPost, ts.URL+"/tips", tipReq, token, http.StatusBadRequest)
}

// requests bound to a foreign context are rejected
func TestContextGuard_RejectsForeignContext(t *testing.T) {
	_, _, ts := setupTestServer(t)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/posts", nil)
	req.Header.Set("X-Context-Id", "other-context")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

// invalid JSON for registration
func TestRegisterUser_InvalidJSON(t *testing.T) {
	_, _, ts := setupTestServer(t)
	defer ts.Close()

	body := []byte(`{"name":123}`)
	resp, err := http.Post(ts.URL+"/users", "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("http.Post failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// Kafka write error
func TestKafkaWriteError(t *testing.T) {
	s, _, ts := setupTestServer(t)
	defer ts.Close()
	s.kafkaWriter = &appkafka.MockKafkaFail{}

	if err := s.kafkaWriter.WriteMessages(kafka.Message{Key: []byte("k"), Value: []byte("v")}); err == nil {
		t.Fatalf("expected error from MockKafkaFail")
	}
}

// Store create user failure
func TestStoreCreateUserFail(t *testing.T) {
	s, _, ts := setupTestServer(t)
	defer ts.Close()
	s.store = &store.MockSocialStoreFail{}

	if _, err := s.store.CreateUser("almaz", "", "", "pk-almaz"); err == nil {
		t.Fatalf("expected error from MockSocialStoreFail")
	}
}

//
// --- Helpers for test logic ---
//

// helper: register a new user, returning the user and its session token
func registerUserHelper(t *testing.T, ts *httptest.Server, name, publicKey string) (models.User, string) {
	t.Helper()
	body := []byte(`{"name":"` + name + `","public_key":"` + publicKey + `"}`)
	resp, err := http.Post(ts.URL+"/users", "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	defer resp.Body.Close()

	var res struct {
		User  models.User `json:"user"`
		Token string      `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return res.User, res.Token
}

// helper: get user feed using JWT token
func getFeedHelper(t *testing.T, ts *httptest.Server, token string) []models.Post {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/feed", nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("getFeed failed: %v", err)
	}
	defer resp.Body.Close()

	var posts []models.Post
	_ = json.NewDecoder(resp.Body).Decode(&posts)
	return posts
}

// helper: search users by name prefix
func searchUsersHelper(t *testing.T, ts *httptest.Server, prefix string) []models.User {
	t.Helper()

	resp, err := http.Get(ts.URL + "/users?search=" + prefix)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	defer resp.Body.Close()

	var res struct {
		Users []models.User `json:"users"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&res)
	return res.Users
}
