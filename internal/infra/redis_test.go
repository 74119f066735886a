package infra

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestNewRedisClientConnects(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	opt := client.Options()
	if opt.DialTimeout != connectTimeout || opt.ReadTimeout != cacheReadTimeout {
		t.Fatalf("unexpected timeouts: dial %s read %s", opt.DialTimeout, opt.ReadTimeout)
	}
}

func TestNewRedisClientRejectsBadConfig(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), ""); !errors.Is(err, ErrMissingURL) {
		t.Fatalf("expected ErrMissingURL, got %v", err)
	}
	if _, err := NewRedisClient(context.Background(), "http://localhost:6379"); err == nil {
		t.Fatal("expected a non-redis scheme to be rejected")
	}
}
