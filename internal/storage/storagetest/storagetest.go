// Package storagetest holds the behaviour every storage.KV implementation
// must share. Backends call Run from their own tests.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/julianstephens/habitsync/internal/storage"
)

// Run exercises kv. The store must be empty when Run starts.
func Run(t *testing.T, kv storage.KV) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing key", func(t *testing.T) {
		v, ok, err := kv.Get(ctx, "missing")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if ok || v != "" {
			t.Errorf("Get() = %q, %v; want empty, false", v, ok)
		}
	})

	t.Run("set get remove", func(t *testing.T) {
		if err := kv.Set(ctx, "a", `{"x":1}`); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		v, ok, err := kv.Get(ctx, "a")
		if err != nil || !ok || v != `{"x":1}` {
			t.Fatalf("Get() = %q, %v, %v", v, ok, err)
		}
		if err := kv.Set(ctx, "a", "second"); err != nil {
			t.Fatalf("Set() overwrite error = %v", err)
		}
		if v, _, _ := kv.Get(ctx, "a"); v != "second" {
			t.Errorf("Get() after overwrite = %q", v)
		}
		if err := kv.Remove(ctx, "a"); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}
		if _, ok, _ := kv.Get(ctx, "a"); ok {
			t.Error("key still present after Remove()")
		}
		if err := kv.Remove(ctx, "a"); err != nil {
			t.Errorf("Remove() of missing key error = %v", err)
		}
	})

	t.Run("update", func(t *testing.T) {
		err := kv.Update(ctx, "u", func(cur string, ok bool) (string, error) {
			if ok {
				t.Errorf("Update() saw value %q for a new key", cur)
			}
			return "1", nil
		})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if v, _, _ := kv.Get(ctx, "u"); v != "1" {
			t.Errorf("Get() = %q, want 1", v)
		}

		boom := errors.New("boom")
		err = kv.Update(ctx, "u", func(cur string, ok bool) (string, error) {
			return "ignored", boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("Update() error = %v, want %v", err, boom)
		}
		if v, _, _ := kv.Get(ctx, "u"); v != "1" {
			t.Errorf("aborted Update() changed the value to %q", v)
		}

		if err := kv.Update(ctx, "u", func(string, bool) (string, error) { return "", nil }); err != nil {
			t.Fatalf("Update() removing error = %v", err)
		}
		if _, ok, _ := kv.Get(ctx, "u"); ok {
			t.Error("empty Update() result should remove the key")
		}
	})

	t.Run("concurrent updates are serialized", func(t *testing.T) {
		const workers = 8
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := kv.Update(ctx, "counter", func(cur string, ok bool) (string, error) {
					n := 0
					if ok {
						if _, err := fmt.Sscanf(cur, "%d", &n); err != nil {
							return "", err
						}
					}
					return fmt.Sprintf("%d", n+1), nil
				})
				if err != nil {
					t.Errorf("Update() error = %v", err)
				}
			}()
		}
		wg.Wait()
		if v, _, _ := kv.Get(ctx, "counter"); v != fmt.Sprintf("%d", workers) {
			t.Errorf("counter = %s, want %d", v, workers)
		}
	})

	t.Run("clear", func(t *testing.T) {
		_ = kv.Set(ctx, "k1", "v1")
		_ = kv.Set(ctx, "k2", "v2")
		if err := kv.Clear(ctx); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		for _, k := range []string{"k1", "k2", "counter"} {
			if _, ok, _ := kv.Get(ctx, k); ok {
				t.Errorf("key %s survived Clear()", k)
			}
		}
	})
}
