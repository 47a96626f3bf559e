package scoring

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/fennr/scoring-api/internal/app/domain/scoring"
	"github.com/fennr/scoring-api/internal/app/storage"
)

// brokenStore simulates an unreachable backend: every operation fails the
// way the resilient store reports exhausted retries.
type brokenStore struct {
	mu    sync.Mutex
	calls int
}

var errBackendDown = errors.New("backend unreachable")

func (b *brokenStore) bump() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
}

func (b *brokenStore) Get(context.Context, string) (string, error) {
	b.bump()
	return "", errBackendDown
}

func (b *brokenStore) Set(context.Context, string, string) error {
	b.bump()
	return errBackendDown
}

func (b *brokenStore) CacheGet(context.Context, string) (string, bool) {
	b.bump()
	return "", false
}

func (b *brokenStore) CacheSet(context.Context, string, string, time.Duration) bool {
	b.bump()
	return false
}

func scoreRequest(phone, email, firstName, lastName string, gender *int, birthday *time.Time) domain.OnlineScoreRequest {
	return domain.OnlineScoreRequest{
		Phone:     phone,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Gender:    gender,
		Birthday:  birthday,
	}
}

func intPtr(n int) *int { return &n }

func datePtr(s string) *time.Time {
	parsed, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return &parsed
}

func TestGetScoreWeights(t *testing.T) {
	svc := New(nil, nil)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.OnlineScoreRequest
		want float64
	}{
		{"nothing", scoreRequest("", "", "", "", nil, nil), 0},
		{"names-only", scoreRequest("", "", "Ivan", "Petrov", nil, nil), 0.5},
		{"phone-only", scoreRequest("79175002040", "", "", "", nil, nil), 1.5},
		{"phone-email", scoreRequest("79175002040", "a@b", "", "", nil, nil), 3.0},
		{"gender-birthday", scoreRequest("", "", "", "", intPtr(domain.GenderMale), datePtr("01.01.2000")), 1.5},
		{"gender-unknown-counts", scoreRequest("", "", "", "", intPtr(domain.GenderUnknown), datePtr("01.01.2000")), 1.5},
		{"everything", scoreRequest("79175002040", "a@b", "Ivan", "Petrov", intPtr(1), datePtr("01.01.2000")), 5.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := svc.GetScore(ctx, tc.req); got != tc.want {
				t.Fatalf("score = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestGetScoreCaching(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	svc := New(store, nil)

	req := scoreRequest("79175002040", "a@b", "", "", nil, nil)
	first := svc.GetScore(ctx, req)
	if first != 3.0 {
		t.Fatalf("score = %v, want 3.0", first)
	}

	// The second call must be a cache hit: poison the cached value to
	// prove recomputation does not happen.
	key := CacheKey(req)
	if !store.CacheSet(ctx, key, "4.5", time.Hour) {
		t.Fatal("cache set failed")
	}
	if got := svc.GetScore(ctx, req); got != 4.5 {
		t.Fatalf("expected cached 4.5, got %v", got)
	}
}

func TestGetScoreMalformedCacheEntryRecomputes(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	svc := New(store, nil)

	req := scoreRequest("79175002040", "", "", "", nil, nil)
	if !store.CacheSet(ctx, CacheKey(req), "not-a-number", time.Hour) {
		t.Fatal("cache set failed")
	}
	if got := svc.GetScore(ctx, req); got != 1.5 {
		t.Fatalf("score = %v, want recomputed 1.5", got)
	}
}

func TestGetScoreDegradesWhenBackendDown(t *testing.T) {
	svc := New(&brokenStore{}, nil)
	req := scoreRequest("79175002040", "a@b", "", "", nil, nil)
	if got := svc.GetScore(context.Background(), req); got != 3.0 {
		t.Fatalf("score = %v, want 3.0 despite broken backend", got)
	}
}

func TestCacheKeyDeterministic(t *testing.T) {
	req := scoreRequest("79175002040", "a@b", "Ivan", "Petrov", intPtr(2), datePtr("05.03.1990"))
	want := "uid:79175002040:a@b:19900305:2:Ivan:Petrov"
	if got := CacheKey(req); got != want {
		t.Fatalf("key = %q, want %q", got, want)
	}

	empty := domain.OnlineScoreRequest{}
	if got := CacheKey(empty); got != "uid::::::" {
		t.Fatalf("empty key = %q", got)
	}
}

func TestGetInterests(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	svc := New(store, nil)

	vocab := make(map[string]bool)
	for _, tag := range Vocabulary() {
		vocab[tag] = true
	}

	first, err := svc.GetInterests(ctx, 1)
	if err != nil {
		t.Fatalf("get interests: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 tags, got %v", first)
	}
	if first[0] == first[1] {
		t.Fatalf("tags not distinct: %v", first)
	}
	for _, tag := range first {
		if !vocab[tag] {
			t.Fatalf("tag %q not in vocabulary", tag)
		}
	}

	// Later calls return the exact persisted pair.
	for i := 0; i < 5; i++ {
		again, err := svc.GetInterests(ctx, 1)
		if err != nil {
			t.Fatalf("repeat get interests: %v", err)
		}
		if len(again) != 2 || again[0] != first[0] || again[1] != first[1] {
			t.Fatalf("interests changed: first %v, then %v", first, again)
		}
	}

	// Different clients get independent entries.
	if _, err := svc.GetInterests(ctx, 2); err != nil {
		t.Fatalf("second client: %v", err)
	}
	stored, err := store.Get(ctx, "i:2")
	if err != nil || stored == "" {
		t.Fatalf("interests not persisted: value=%q err=%v", stored, err)
	}
}

func TestGetInterestsRequiresStore(t *testing.T) {
	svc := New(nil, nil)
	if _, err := svc.GetInterests(context.Background(), 1); err == nil {
		t.Fatal("nil store accepted")
	}
}

func TestGetInterestsBackendFailureIsFatal(t *testing.T) {
	svc := New(&brokenStore{}, nil)
	if _, err := svc.GetInterests(context.Background(), 1); err == nil {
		t.Fatal("expected error from broken backend")
	}
}

func TestGetScoreConcurrentIdenticalInputs(t *testing.T) {
	ctx := context.Background()
	svc := New(storage.NewMemory(), nil)
	req := scoreRequest("79175002040", "a@b", "", "", nil, nil)

	var wg sync.WaitGroup
	results := make([]float64, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.GetScore(ctx, req)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		if got != 3.0 {
			t.Fatalf("goroutine %d got %v, want 3.0", i, got)
		}
	}
}
