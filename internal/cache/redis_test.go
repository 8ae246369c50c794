package cache

import (
	"context"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
)

func TestRedis_Get(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisWithClient(db)
	ctx := context.Background()

	t.Run("hit returns value", func(t *testing.T) {
		mock.ExpectGet("core:v1:2026-10-19:fp").SetVal("payload")

		val, ok, err := c.Get(ctx, "core:v1:2026-10-19:fp")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !ok {
			t.Error("expected hit")
		}
		if string(val) != "payload" {
			t.Errorf("expected payload, got %s", val)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("redis expectations not met: %v", err)
		}
	})

	t.Run("redis nil is a miss", func(t *testing.T) {
		mock.ExpectGet("missing").RedisNil()

		val, ok, err := c.Get(ctx, "missing")
		if err != nil {
			t.Fatalf("miss must not be an error: %v", err)
		}
		if ok || val != nil {
			t.Errorf("expected miss, got %v %v", ok, val)
		}
	})

	t.Run("backend error is surfaced", func(t *testing.T) {
		mock.ExpectGet("broken").SetErr(redis.TxFailedErr)

		_, ok, err := c.Get(ctx, "broken")
		if err == nil {
			t.Error("expected error when redis fails")
		}
		if ok {
			t.Error("error must not report a hit")
		}
	})
}

func TestRedis_SetWithoutExpiry(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisWithClient(db)

	value := []byte(`{"brief":"x"}`)
	mock.ExpectSet("core:v1:2026-10-19:fp", value, 0).SetVal("OK")

	if err := c.Set(context.Background(), "core:v1:2026-10-19:fp", value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("redis expectations not met: %v", err)
	}
}
