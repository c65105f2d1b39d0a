package kv

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ziadkadry99/draw2ui/internal/db"
)

func setupSQLite(t *testing.T) Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	s := NewSQLiteStore(database)
	t.Cleanup(func() { s.Close() })
	return s
}

func setupRedis(t *testing.T) Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client, "")
	t.Cleanup(func() { s.Close() })
	return s
}

var backends = []struct {
	name  string
	setup func(t *testing.T) Store
}{
	{"sqlite", setupSQLite},
	{"redis", setupRedis},
}

func TestGetMissingKey(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.setup(t)
			_, err := s.Get(context.Background(), "nope")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestSetGetDelete(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.setup(t)
			ctx := context.Background()

			if err := s.Set(ctx, "settings", []byte(`{"theme":"dark"}`)); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, err := s.Get(ctx, "settings")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(got) != `{"theme":"dark"}` {
				t.Errorf("Get = %s", got)
			}

			if err := s.Set(ctx, "settings", []byte(`{"theme":"light"}`)); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			got, _ = s.Get(ctx, "settings")
			if string(got) != `{"theme":"light"}` {
				t.Errorf("after overwrite Get = %s", got)
			}

			if err := s.Delete(ctx, "settings"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := s.Get(ctx, "settings"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound after delete, got %v", err)
			}
			if err := s.Delete(ctx, "settings"); err != nil {
				t.Errorf("second Delete should be a no-op, got %v", err)
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.setup(t)
			ctx := context.Background()

			err := s.Update(ctx, "counter", func(old []byte, found bool) ([]byte, error) {
				if found {
					t.Errorf("expected missing key, got %s", old)
				}
				return []byte("1"), nil
			})
			if err != nil {
				t.Fatalf("Update: %v", err)
			}

			err = s.Update(ctx, "counter", func(old []byte, found bool) ([]byte, error) {
				if !found || string(old) != "1" {
					t.Errorf("old = %q found = %v", old, found)
				}
				return []byte("2"), nil
			})
			if err != nil {
				t.Fatalf("Update: %v", err)
			}

			got, _ := s.Get(ctx, "counter")
			if string(got) != "2" {
				t.Errorf("counter = %s, want 2", got)
			}
		})
	}
}

func TestUpdateAbortKeepsValue(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.setup(t)
			ctx := context.Background()
			s.Set(ctx, "k", []byte("keep"))

			boom := errors.New("boom")
			err := s.Update(ctx, "k", func(old []byte, found bool) ([]byte, error) {
				return nil, boom
			})
			if !errors.Is(err, boom) {
				t.Fatalf("expected boom, got %v", err)
			}

			got, _ := s.Get(ctx, "k")
			if string(got) != "keep" {
				t.Errorf("value changed to %s", got)
			}
		})
	}
}

func TestUpdateConcurrentIncrements(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.setup(t)
			ctx := context.Background()

			var wg sync.WaitGroup
			for i := 0; i < 5; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := s.Update(ctx, "n", func(old []byte, found bool) ([]byte, error) {
						return append(old, 'x'), nil
					})
					if err != nil {
						t.Errorf("Update: %v", err)
					}
				}()
			}
			wg.Wait()

			got, _ := s.Get(ctx, "n")
			if string(got) != "xxxxx" {
				t.Errorf("n = %q, want 5 increments", got)
			}
		})
	}
}

func TestKeys(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.setup(t)
			ctx := context.Background()

			for _, k := range []string{"usage-2026-01-02", "usage-2026-01-01", "project-a", "usage_x"} {
				if err := s.Set(ctx, k, []byte("1")); err != nil {
					t.Fatalf("Set %s: %v", k, err)
				}
			}

			keys, err := s.Keys(ctx, "usage-")
			if err != nil {
				t.Fatalf("Keys: %v", err)
			}
			want := []string{"usage-2026-01-01", "usage-2026-01-02"}
			if len(keys) != len(want) {
				t.Fatalf("Keys = %v, want %v", keys, want)
			}
			for i := range want {
				if keys[i] != want[i] {
					t.Errorf("Keys[%d] = %q, want %q", i, keys[i], want[i])
				}
			}
		})
	}
}

func TestRedisPrefix(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client, "")
	defer s.Close()

	if err := s.Set(context.Background(), "settings", []byte("{}")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !mr.Exists("draw2ui:settings") {
		t.Error("expected key to be namespaced with default prefix")
	}
}

func TestPing(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.setup(t)
			if err := s.Ping(context.Background()); err != nil {
				t.Errorf("Ping: %v", err)
			}
		})
	}
}
