package devotp

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_PutAndGet(t *testing.T) {
	store := NewMemoryStore(5 * time.Minute)
	ctx := context.Background()

	store.Put(ctx, "user@example.com", "123456")

	otp, ok := store.Get(ctx, "user@example.com")
	if !ok {
		t.Fatal("Get should return OTP after Put")
	}
	if otp != "123456" {
		t.Errorf("otp = %q, want %q", otp, "123456")
	}
}

func TestMemoryStore_PutReplacesPriorCode(t *testing.T) {
	store := NewMemoryStore(5 * time.Minute)
	ctx := context.Background()

	store.Put(ctx, "user@example.com", "111111")
	store.Put(ctx, "user@example.com", "222222")

	otp, ok := store.Get(ctx, "user@example.com")
	if !ok || otp != "222222" {
		t.Errorf("Get = %q, %v; want latest code", otp, ok)
	}
}

func TestMemoryStore_Get_ReturnsFalseWhenMissing(t *testing.T) {
	store := NewMemoryStore(5 * time.Minute)

	otp, ok := store.Get(context.Background(), "nobody@example.com")
	if ok {
		t.Error("Get should return false when OTP is missing")
	}
	if otp != "" {
		t.Errorf("otp = %q, want empty string", otp)
	}
}

func TestMemoryStore_Get_ReturnsFalseWhenExpired(t *testing.T) {
	store := NewMemoryStore(5 * time.Minute)
	ctx := context.Background()

	store.Put(ctx, "user@example.com", "123456")
	store.nowF = func() time.Time { return time.Now().UTC().Add(6 * time.Minute) }

	otp, ok := store.Get(ctx, "user@example.com")
	if ok {
		t.Error("Get should return false when OTP is expired")
	}
	if otp != "" {
		t.Errorf("otp = %q, want empty string", otp)
	}

	// Second Get should also return false (entry cleaned up)
	if _, ok := store.Get(ctx, "user@example.com"); ok {
		t.Error("Get should return false after cleanup")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore(5 * time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			store.Put(ctx, fmt.Sprintf("user-%d@example.com", id), "123456")
		}(i)
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			store.Get(ctx, fmt.Sprintf("user-%d@example.com", id))
		}(i)
	}
	wg.Wait()
}
