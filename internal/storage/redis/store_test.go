package redis

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/julianstephens/habitsync/internal/storage/storagetest"
)

func TestNewStore_InvalidURL(t *testing.T) {
	if _, err := NewStore("http://localhost:6379"); err == nil {
		t.Error("NewStore() should reject a non-redis URL")
	}
}

func TestNewStore_Prefix(t *testing.T) {
	s, err := NewStore("redis://localhost:6379/2")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer s.Close()

	if got := s.key("habitsync:queue:u1"); got != DefaultPrefix+"habitsync:queue:u1" {
		t.Errorf("key() = %q", got)
	}
	if s.client.Options().DB != 2 {
		t.Errorf("DB = %d, want 2", s.client.Options().DB)
	}

	custom := NewWithClient(s.client, "test:")
	if got := custom.key("a"); got != "test:a" {
		t.Errorf("key() with custom prefix = %q", got)
	}
}

// Set HABITSYNC_TEST_REDIS_URL to run against a live server
func TestStore_Integration(t *testing.T) {
	url := os.Getenv("HABITSYNC_TEST_REDIS_URL")
	if url == "" {
		t.Skip("HABITSYNC_TEST_REDIS_URL not set")
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("invalid HABITSYNC_TEST_REDIS_URL: %v", err)
	}
	s := NewWithClient(redis.NewClient(opts), "habitsync-test:"+t.Name()+":")
	defer s.Close()

	ctx := context.Background()
	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	storagetest.Run(t, s)
}
