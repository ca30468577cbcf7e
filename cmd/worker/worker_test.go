package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	appkafka "example.com/contextfeed/internal/broker"
	"example.com/contextfeed/internal/models"
	"example.com/contextfeed/internal/store"
	"github.com/segmentio/kafka-go"
)

// runWorkerOnce processes a single Kafka message for testing.
func runWorkerOnce(ctx context.Context, st store.SocialStore, kafkaReader appkafka.KafkaReader) error {
	msg, err := kafkaReader.ReadMessage(ctx)
	if err != nil {
		return err
	}
	if len(msg.Value) == 0 {
		return nil
	}

	var post models.Post
	if err := json.Unmarshal(msg.Value, &post); err != nil {
		return err
	}

	followers, err := st.GetFollowers(post.AuthorID)
	if err != nil {
		return err
	}

	targets := append([]string{post.AuthorID}, followers...)
	for _, uid := range targets {
		if err := st.AddToFeed(uid, post); err != nil {
			return err
		}
	}

	return nil
}

// ---------- Positive test ----------

func TestWorker_DistributePost(t *testing.T) {
	mockStore := store.NewMock()

	author, _ := mockStore.CreateUser("author", "", "", "pk-author")
	follower, _ := mockStore.CreateUser("follower", "", "", "pk-follower")
	mockStore.FollowUser(follower.ID, author.ID)

	post := models.Post{
		ID:       "100",
		AuthorID: author.ID,
		Content:  "Hello followers!",
		Created:  time.Now(),
	}
	data, _ := json.Marshal(post)

	mockKafka := &appkafka.MockKafka{
		Store:        mockStore,
		ReadMessages: []kafka.Message{{Value: data}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := runWorkerOnce(ctx, mockStore, mockKafka)

	if err != nil {
		t.Fatalf("worker failed: %v", err)
	}

	// The post lands in the follower's feed and the author's own feed.
	feed, _ := mockStore.GetFeed(follower.ID, 10)
	if len(feed) != 1 || feed[0].Content != post.Content {
		t.Fatalf("follower feed not updated correctly, got: %+v", feed)
	}
	ownFeed, _ := mockStore.GetFeed(author.ID, 10)
	if len(ownFeed) != 1 {
		t.Fatalf("author feed not updated, got: %+v", ownFeed)
	}
}

// ---------- Negative tests ----------

// Simulate Kafka read error
func TestWorker_KafkaReadError(t *testing.T) {
	mockStore := store.NewMock()
	mockKafka := &appkafka.MockKafkaFail{}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := runWorkerOnce(ctx, mockStore, mockKafka)
	if err == nil {
		t.Fatalf("expected error from Kafka read")
	}
}

// Simulate invalid post JSON
func TestWorker_InvalidPostJSON(t *testing.T) {
	mockStore := store.NewMock()

	mockKafka := &appkafka.MockKafka{
		Store: mockStore,
		ReadMessages: []kafka.Message{
			{Value: []byte("{invalid-json}")},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := runWorkerOnce(ctx, mockStore, mockKafka)
	if err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
}

// Simulate store failure when adding post to feed
func TestWorker_StoreAddToFeedFail(t *testing.T) {
	mockStore := &store.MockSocialStoreFail{}

	// Post by a dummy author (ID doesn't matter; store always fails)
	post := models.Post{
		ID:       "",
		AuthorID: "",
		Content:  "test",
		Created:  time.Now(),
	}
	data, _ := json.Marshal(post)

	mockKafka := &appkafka.MockKafka{
		Store:        store.NewMock(),
		ReadMessages: []kafka.Message{{Value: data}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := runWorkerOnce(ctx, mockStore, mockKafka)
	if err == nil {
		t.Fatalf("expected error from store AddToFeed")
	}
}

func TestWorker_EmptyKafkaMessage(t *testing.T) {
	mockStore := store.NewMock()
	mockKafka := &appkafka.MockKafka{
		Store:        mockStore,
		ReadMessages: []kafka.Message{{Value: nil}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := runWorkerOnce(ctx, mockStore, mockKafka)
	if err != nil {
		t.Fatalf("expected no error for empty Kafka message, got: %v", err)
	}
}

func TestWorker_StoreGetFollowersFail(t *testing.T) {
	mockStore := &store.MockSocialStoreFail{}

	post := models.Post{
		ID:       "200",
		AuthorID: "author123",
		Content:  "Post that triggers GetFollowers error",
		Created:  time.Now(),
	}
	data, _ := json.Marshal(post)

	mockKafka := &appkafka.MockKafka{
		Store:        store.NewMock(),
		ReadMessages: []kafka.Message{{Value: data}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := runWorkerOnce(ctx, mockStore, mockKafka)
	if err == nil {
		t.Fatalf("expected error from store GetFollowers, got nil")
	}
}
