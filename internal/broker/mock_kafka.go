package appkafka

import (
	"context"
	"encoding/json"
	"errors"

	"example.com/contextfeed/internal/models"
	"example.com/contextfeed/internal/store"
	"github.com/segmentio/kafka-go"
)

// MockKafka immediately fans posts out to follower feeds in the store.
type MockKafka struct {
	Store           *store.MockSocialStore
	WrittenMessages []kafka.Message // stores messages written via WriteMessages
	ReadMessages    []kafka.Message // queue of messages to be read via ReadMessage
	ShouldFail      bool            // flag to simulate failures during write or read operations
}

// WriteMessages simulates publishing a post-created event, immediately
// delivering the post to the author's and followers' materialized feeds.
func (m *MockKafka) WriteMessages(messages ...kafka.Message) error {
	if m.ShouldFail {
		return errors.New("mock kafka write failed")
	}
	if m.Store == nil {
		return errors.New("store is nil")
	}

	for _, msg := range messages {
		m.WrittenMessages = append(m.WrittenMessages, msg)

		var post models.Post
		if err := json.Unmarshal(msg.Value, &post); err != nil {
			return err
		}

		// Add post to author's own feed
		_ = m.Store.AddToFeed(post.AuthorID, post)

		// Add post to followers' feeds
		followers, _ := m.Store.GetFollowers(post.AuthorID)
		for _, followerID := range followers {
			_ = m.Store.AddToFeed(followerID, post)
		}
	}

	return nil
}

// ReadMessage pops the next queued message.
func (m *MockKafka) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if m.ShouldFail {
		return kafka.Message{}, errors.New("mock kafka read failed")
	}
	if len(m.ReadMessages) == 0 {
		return kafka.Message{}, errors.New("no messages")
	}
	// Take the first message from the queue and remove it
	msg := m.ReadMessages[0]
	m.ReadMessages = m.ReadMessages[1:]
	return msg, nil
}

// Close is a no-op.
func (m *MockKafka) Close() error { return nil }

// MockKafkaFail always fails.
type MockKafkaFail struct{}

func (m *MockKafkaFail) WriteMessages(messages ...kafka.Message) error {
	return errors.New("mock kafka write failed")
}

func (m *MockKafkaFail) ReadMessage(ctx context.Context) (kafka.Message, error) {
	return kafka.Message{}, errors.New("mock kafka read failed")
}

func (m *MockKafkaFail) Close() error { return nil }
