package sink

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRedisSink_Key(t *testing.T) {
	s := NewRedisSink("127.0.0.1:6379", "")
	defer s.Close()
	if got := s.Key("https://example.com/sitemap.xml"); got != "sitemap:https://example.com/sitemap.xml" {
		t.Errorf("Key() = %q", got)
	}

	custom := NewRedisSink("127.0.0.1:6379", "run-1:")
	defer custom.Close()
	if got := custom.Key("a"); got != "run-1:a" {
		t.Errorf("Key() = %q", got)
	}
}

func TestRedisSink_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: time.Second,
	})
	s := NewRedisSinkWithClient(client, "")
	defer s.Close()

	n, err := s.Persist(context.Background(), "https://example.com/sitemap.xml", []string{"https://example.com/a"})
	if err == nil {
		t.Fatal("无法连接时应返回错误")
	}
	if n != 0 {
		t.Errorf("失败时写入数应为0, got %d", n)
	}
}
