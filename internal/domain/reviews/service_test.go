package reviews

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"crave/internal/domain/venues"
	"crave/internal/venuelock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memReviewStore is an in-memory Store used to exercise the service without
// a database. Single-record operations are atomic, like the real store's.
type memReviewStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*Review
}

func newMemReviewStore() *memReviewStore {
	return &memReviewStore{byID: make(map[int64]*Review)}
}

func cloneReview(r *Review) *Review {
	c := *r
	c.LikedBy = append([]int64(nil), r.LikedBy...)
	return &c
}

func (m *memReviewStore) Create(_ context.Context, review *Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	review.ID = m.nextID
	if review.LikedBy == nil {
		review.LikedBy = []int64{}
	}
	m.byID[review.ID] = cloneReview(review)
	return nil
}

func (m *memReviewStore) GetByID(_ context.Context, reviewID int64) (*Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.byID[reviewID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneReview(r), nil
}

func (m *memReviewStore) ListByVenue(_ context.Context, venueID int64) ([]Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Review
	for _, r := range m.byID {
		if r.VenueID == venueID {
			out = append(out, *cloneReview(r))
		}
	}
	// newest first
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memReviewStore) GetByVenueAndAuthor(_ context.Context, venueID, authorID int64) (*Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.byID {
		if r.VenueID == venueID && r.AuthorID == authorID {
			return cloneReview(r), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memReviewStore) Update(_ context.Context, review *Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[review.ID]; !ok {
		return ErrNotFound
	}
	m.byID[review.ID] = cloneReview(review)
	return nil
}

func (m *memReviewStore) Delete(_ context.Context, reviewID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.byID, reviewID)
	return nil
}

func (m *memReviewStore) ToggleLike(_ context.Context, reviewID, userID int64) (*Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.byID[reviewID]
	if !ok {
		return nil, ErrNotFound
	}
	found := false
	for i, id := range r.LikedBy {
		if id == userID {
			r.LikedBy = append(r.LikedBy[:i], r.LikedBy[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		r.LikedBy = append(r.LikedBy, userID)
	}
	return cloneReview(r), nil
}

// memVenueStore implements venues.Store over a map; only the methods the
// review service touches have real behavior.
type memVenueStore struct {
	mu   sync.Mutex
	byID map[int64]*venues.Venue
}

func newMemVenueStore(ids ...int64) *memVenueStore {
	m := &memVenueStore{byID: make(map[int64]*venues.Venue)}
	for _, id := range ids {
		m.byID[id] = &venues.Venue{ID: id}
	}
	return m
}

func (m *memVenueStore) Create(_ context.Context, v *venues.Venue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[v.ID] = v
	return nil
}

func (m *memVenueStore) GetByID(_ context.Context, venueID int64) (*venues.Venue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.byID[venueID]
	if !ok {
		return nil, venues.ErrNotFound
	}
	c := *v
	return &c, nil
}

func (m *memVenueStore) List(_ context.Context) ([]venues.Venue, error) { return nil, nil }

func (m *memVenueStore) Update(_ context.Context, _ int64, _ map[string]interface{}) error {
	return nil
}

func (m *memVenueStore) Delete(_ context.Context, venueID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, venueID)
	return nil
}

func (m *memVenueStore) Exists(_ context.Context, venueID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byID[venueID]
	return ok, nil
}

func (m *memVenueStore) SetRating(_ context.Context, venueID int64, rating float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.byID[venueID]
	if !ok {
		return venues.ErrNotFound
	}
	v.Rating = rating
	return nil
}

func (m *memVenueStore) IsCreator(_ context.Context, _, _ int64) (bool, error) { return false, nil }

func (m *memVenueStore) AddPhotoURL(_ context.Context, _ int64, _ string) error { return nil }

func (m *memVenueStore) RemovePhotoURL(_ context.Context, _ int64, _ string) error { return nil }

func (m *memVenueStore) rating(venueID int64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[venueID].Rating
}

func newTestService(venueIDs ...int64) (*Service, *memReviewStore, *memVenueStore) {
	rs := newMemReviewStore()
	vs := newMemVenueStore(venueIDs...)
	svc := NewService(rs, vs, venuelock.New(), zap.NewNop().Sugar())
	return svc, rs, vs
}

func TestSubmitValidation(t *testing.T) {
	svc, _, _ := newTestService(1)
	ctx := context.Background()

	_, err := svc.Submit(ctx, 1, Actor{ID: 10}, 0, "fine")
	assert.ErrorIs(t, err, ErrRatingOutOfRange)

	_, err = svc.Submit(ctx, 1, Actor{ID: 10}, 6, "fine")
	assert.ErrorIs(t, err, ErrRatingOutOfRange)

	_, err = svc.Submit(ctx, 1, Actor{ID: 10}, 3, "   ")
	assert.ErrorIs(t, err, ErrCommentRequired)
}

func TestSubmitUnknownVenue(t *testing.T) {
	svc, _, _ := newTestService(1)

	_, err := svc.Submit(context.Background(), 99, Actor{ID: 10}, 4, "good")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitDuplicate(t *testing.T) {
	svc, _, _ := newTestService(1)
	ctx := context.Background()

	_, err := svc.Submit(ctx, 1, Actor{ID: 10}, 4, "good")
	require.NoError(t, err)

	_, err = svc.Submit(ctx, 1, Actor{ID: 10}, 5, "even better")
	assert.ErrorIs(t, err, ErrDuplicateReview)
}

// The walkthrough scenario: ratings 5, 3, edit to 1, delete — the mean must
// track every step, and deleting the last review resets it to zero.
func TestRatingFollowsMutations(t *testing.T) {
	svc, _, vs := newTestService(1)
	ctx := context.Background()

	a := Actor{ID: 10}
	b := Actor{ID: 20}

	ra, err := svc.Submit(ctx, 1, a, 5, "amazing")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, vs.rating(1), 1e-9)

	rb, err := svc.Submit(ctx, 1, b, 3, "okay")
	require.NoError(t, err)
	assert.InDelta(t, 4.0, vs.rating(1), 1e-9)

	one := 1
	_, err = svc.Edit(ctx, ra.ID, a, EditPayload{Rating: &one})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, vs.rating(1), 1e-9)

	require.NoError(t, svc.Delete(ctx, rb.ID, b))
	assert.InDelta(t, 1.0, vs.rating(1), 1e-9)

	require.NoError(t, svc.Delete(ctx, ra.ID, a))
	assert.InDelta(t, 0.0, vs.rating(1), 1e-9)
}

func TestEditReflectsOnlyLatestRating(t *testing.T) {
	svc, _, vs := newTestService(1)
	ctx := context.Background()

	r, err := svc.Submit(ctx, 1, Actor{ID: 10}, 2, "meh")
	require.NoError(t, err)

	five := 5
	comment := "came back, changed my mind"
	updated, err := svc.Edit(ctx, r.ID, Actor{ID: 10}, EditPayload{Rating: &five, Comment: &comment})
	require.NoError(t, err)

	assert.Equal(t, 5, updated.Rating)
	assert.Equal(t, comment, updated.Comment)
	assert.InDelta(t, 5.0, vs.rating(1), 1e-9)
}

func TestEditAuthorization(t *testing.T) {
	svc, _, _ := newTestService(1)
	ctx := context.Background()

	r, err := svc.Submit(ctx, 1, Actor{ID: 10}, 4, "good")
	require.NoError(t, err)

	two := 2
	_, err = svc.Edit(ctx, r.ID, Actor{ID: 20}, EditPayload{Rating: &two})
	assert.ErrorIs(t, err, ErrForbidden)

	// Elevated actors may edit anyone's review.
	_, err = svc.Edit(ctx, r.ID, Actor{ID: 20, Elevated: true}, EditPayload{Rating: &two})
	assert.NoError(t, err)
}

func TestDeleteAuthorization(t *testing.T) {
	svc, rs, _ := newTestService(1)
	ctx := context.Background()

	r, err := svc.Submit(ctx, 1, Actor{ID: 10}, 4, "good")
	require.NoError(t, err)

	err = svc.Delete(ctx, r.ID, Actor{ID: 20})
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.Delete(ctx, r.ID, Actor{ID: 20, Elevated: true}))

	_, err = rs.GetByID(ctx, r.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEditMissingReview(t *testing.T) {
	svc, _, _ := newTestService(1)

	three := 3
	_, err := svc.Edit(context.Background(), 404, Actor{ID: 10}, EditPayload{Rating: &three})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToggleLikeIsIdempotentPair(t *testing.T) {
	svc, _, _ := newTestService(1)
	ctx := context.Background()

	r, err := svc.Submit(ctx, 1, Actor{ID: 10}, 4, "good")
	require.NoError(t, err)

	liked, err := svc.ToggleLike(ctx, r.ID, 20)
	require.NoError(t, err)
	assert.True(t, liked.LikedByUser(20))
	assert.Equal(t, 1, liked.Likes())

	unliked, err := svc.ToggleLike(ctx, r.ID, 20)
	require.NoError(t, err)
	assert.False(t, unliked.LikedByUser(20))
	assert.Equal(t, 0, unliked.Likes())
}

func TestToggleLikeMissingReview(t *testing.T) {
	svc, _, _ := newTestService(1)

	_, err := svc.ToggleLike(context.Background(), 404, 20)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToggleLikeDoesNotTouchRating(t *testing.T) {
	svc, _, vs := newTestService(1)
	ctx := context.Background()

	r, err := svc.Submit(ctx, 1, Actor{ID: 10}, 4, "good")
	require.NoError(t, err)

	before := vs.rating(1)
	_, err = svc.ToggleLike(ctx, r.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, before, vs.rating(1))
}

func TestConcurrentToggleLikesKeepSetWellFormed(t *testing.T) {
	svc, rs, _ := newTestService(1)
	ctx := context.Background()

	r, err := svc.Submit(ctx, 1, Actor{ID: 10}, 4, "good")
	require.NoError(t, err)

	const users = 20
	var wg sync.WaitGroup
	for u := int64(1); u <= users; u++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := svc.ToggleLike(ctx, r.ID, userID)
			assert.NoError(t, err)
		}(100 + u)
	}
	wg.Wait()

	got, err := rs.GetByID(ctx, r.ID)
	require.NoError(t, err)

	// Every distinct user toggled exactly once, so all must be members and
	// none may appear twice.
	assert.Equal(t, users, got.Likes())
	seen := map[int64]bool{}
	for _, id := range got.LikedBy {
		assert.False(t, seen[id], "duplicate entry %d in liked_by", id)
		seen[id] = true
	}
}

// N racing submissions for the same (venue, author): exactly one wins, the
// rest fail with ErrDuplicateReview, and the venue's rating equals the
// winner's rating.
func TestConcurrentSubmitsSamePair(t *testing.T) {
	svc, rs, vs := newTestService(1)
	ctx := context.Background()

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(ctx, 1, Actor{ID: 10}, 4, "racing")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicateReview):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dup)

	list, err := rs.ListByVenue(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.InDelta(t, float64(list[0].Rating), vs.rating(1), 1e-9)
}

// Many users hammer the same venue with submits, edits and deletes; when the
// dust settles the stored rating must equal the mean of whatever reviews
// remain.
func TestRatingInvariantUnderConcurrentLoad(t *testing.T) {
	svc, rs, vs := newTestService(1, 2)
	ctx := context.Background()

	var wg sync.WaitGroup
	for u := int64(1); u <= 10; u++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			actor := Actor{ID: userID}
			venueID := int64(1 + userID%2)

			r, err := svc.Submit(ctx, venueID, actor, int(userID%5)+1, "initial")
			if err != nil {
				return
			}
			newRating := int((userID+2)%5) + 1
			_, _ = svc.Edit(ctx, r.ID, actor, EditPayload{Rating: &newRating})
			if userID%3 == 0 {
				_ = svc.Delete(ctx, r.ID, actor)
			}
		}(u)
	}
	wg.Wait()

	for _, venueID := range []int64{1, 2} {
		list, err := rs.ListByVenue(ctx, venueID)
		require.NoError(t, err)

		var want float64
		if len(list) > 0 {
			sum := 0
			for _, r := range list {
				sum += r.Rating
			}
			want = float64(sum) / float64(len(list))
		}
		assert.InDelta(t, want, vs.rating(venueID), 1e-9, "venue %d drifted", venueID)
	}
}

func TestSubmitCancelledContextIsNoop(t *testing.T) {
	svc, rs, _ := newTestService(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Submit(ctx, 1, Actor{ID: 10}, 4, "never lands")
	assert.ErrorIs(t, err, context.Canceled)

	list, err := rs.ListByVenue(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListByVenueUnknownVenue(t *testing.T) {
	svc, _, _ := newTestService(1)

	_, err := svc.ListByVenue(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListByVenueNewestFirst(t *testing.T) {
	svc, _, _ := newTestService(1)
	ctx := context.Background()

	_, err := svc.Submit(ctx, 1, Actor{ID: 10}, 4, "first")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, 1, Actor{ID: 20}, 2, "second")
	require.NoError(t, err)

	list, err := svc.ListByVenue(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Comment)
	assert.Equal(t, "first", list[1].Comment)
}
