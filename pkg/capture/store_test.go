package capture_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mockbus/pubsub-capture/pkg/capture"
	"github.com/mockbus/pubsub-capture/pkg/capture/cerr"
	apperrors "github.com/mockbus/pubsub-capture/pkg/errors"
)

func mustStore(t *testing.T, capacity int) *capture.Store {
	t.Helper()
	s, err := capture.New(capacity)
	require.NoError(t, err)
	return s
}

func rec(id, topic, body string) capture.Record {
	return capture.Record{ID: id, Topic: topic, Body: body, Timestamp: time.Now()}
}

func TestNew_RejectsNonPositiveCapacity(t *testing.T) {
	_, err := capture.New(0)
	assert.Error(t, err)
	_, err = capture.New(-1)
	assert.Error(t, err)
}

func TestAdd_NullMessage(t *testing.T) {
	s := mustStore(t, 10)
	err := s.Add(capture.Record{})
	require.Error(t, err)
	assert.Equal(t, cerr.CodeNullMessage, errAppCode(t, err))
}

func TestAdd_GetByID_RoundTrip(t *testing.T) {
	s := mustStore(t, 10)
	r := rec("m1", "t1", "hello")
	require.NoError(t, s.Add(r))

	got, err := s.GetByID("m1")
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestAdd_IDCollision_ReplacesAndKeepsCount(t *testing.T) {
	s := mustStore(t, 10)
	require.NoError(t, s.Add(rec("m1", "t1", "v1")))
	require.NoError(t, s.Add(rec("m1", "t1", "v2")))

	assert.Equal(t, 1, s.Count())
	got, err := s.GetByID("m1")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Body)
}

func TestAdd_CapacityOneEvictsOldest(t *testing.T) {
	s := mustStore(t, 1)
	require.NoError(t, s.Add(rec("a", "t", "1")))
	require.NoError(t, s.Add(rec("b", "t", "2")))

	assert.Equal(t, 1, s.Count())
	_, err := s.GetByID("a")
	assert.Error(t, err)
	got, err := s.GetByID("b")
	require.NoError(t, err)
	assert.Equal(t, "2", got.Body)
}

func TestAdd_CapacityNKeepsMostRecentN(t *testing.T) {
	s := mustStore(t, 3)
	for _, body := range []string{"m1", "m2", "m3", "m4", "m5"} {
		require.NoError(t, s.Add(rec(body, "t", body)))
	}

	got, err := s.GetByTopic("t")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"m3", "m4", "m5"}, bodiesOf(got))
}

func TestGetByTopic_EmptyTopicIsError(t *testing.T) {
	s := mustStore(t, 10)
	_, err := s.GetByTopic("")
	require.Error(t, err)
	assert.Equal(t, cerr.CodeNullTopic, errAppCode(t, err))
}

func TestGetByTopic_UnknownTopicIsEmptyNotError(t *testing.T) {
	s := mustStore(t, 10)
	got, err := s.GetByTopic("never-seen")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetByID_EmptyIDIsError(t *testing.T) {
	s := mustStore(t, 10)
	_, err := s.GetByID("")
	require.Error(t, err)
	assert.Equal(t, cerr.CodeNullMessageID, errAppCode(t, err))
}

func TestGetByID_UnknownIDIsNotFound(t *testing.T) {
	s := mustStore(t, 10)
	_, err := s.GetByID("never-added")
	require.Error(t, err)
	assert.Equal(t, cerr.CodeNotFound, errAppCode(t, err))
}

func TestGetByTimeRange_DegenerateRangeIsEmpty(t *testing.T) {
	s := mustStore(t, 10)
	require.NoError(t, s.Add(rec("a", "t", "1")))

	now := time.Now()
	got := s.GetByTimeRange(now.Add(time.Hour), now.Add(-time.Hour))
	assert.Empty(t, got)
}

func TestGetByTimeRange_InclusiveBounds(t *testing.T) {
	s := mustStore(t, 10)
	base := time.Now()

	r1 := rec("a", "t", "1")
	r1.Timestamp = base
	r2 := rec("b", "t", "2")
	r2.Timestamp = base.Add(time.Second)
	r3 := rec("c", "t", "3")
	r3.Timestamp = base.Add(2 * time.Second)

	require.NoError(t, s.Add(r1))
	require.NoError(t, s.Add(r2))
	require.NoError(t, s.Add(r3))

	got := s.GetByTimeRange(base, base.Add(time.Second))
	assert.Equal(t, []string{"1", "2"}, bodiesOf(got))
}

func TestClear_EmptiesAllIndices(t *testing.T) {
	s := mustStore(t, 10)
	require.NoError(t, s.Add(rec("a", "t", "1")))
	require.NoError(t, s.Add(rec("b", "t2", "2")))

	s.Clear()

	assert.Equal(t, 0, s.Count())
	assert.Empty(t, s.GetAll())
	got, err := s.GetByTopic("t")
	require.NoError(t, err)
	assert.Empty(t, got)
	_, err = s.GetByID("a")
	assert.Error(t, err)
}

func TestGetAll_IsSnapshotNotAlias(t *testing.T) {
	s := mustStore(t, 10)
	require.NoError(t, s.Add(rec("a", "t", "1")))

	snap := s.GetAll()
	require.NoError(t, s.Add(rec("b", "t", "2")))

	assert.Len(t, snap, 1, "snapshot must not see a later Add")
}

func TestGetByTopic_MatchesGetByTimeRangeIntersection(t *testing.T) {
	s := mustStore(t, 10)
	base := time.Now()

	for i, topic := range []string{"t1", "t2", "t1", "t2"} {
		r := rec(topic+string(rune('a'+i)), topic, topic)
		r.Timestamp = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.Add(r))
	}

	byTopic, err := s.GetByTopic("t1")
	require.NoError(t, err)

	all := s.GetByTimeRange(base, base.Add(10*time.Second))
	var wantIDs []string
	for _, r := range all {
		if r.Topic == "t1" {
			wantIDs = append(wantIDs, r.ID)
		}
	}

	var gotIDs []string
	for _, r := range byTopic {
		gotIDs = append(gotIDs, r.ID)
	}

	assert.Equal(t, wantIDs, gotIDs)
}

func TestConcurrentWritersAndReaders(t *testing.T) {
	const writers = 8
	const perWriter = 200
	capacity := writers * perWriter

	s := mustStore(t, capacity)

	var g errgroup.Group
	for w := 0; w < writers; w++ {
		w := w
		g.Go(func() error {
			for k := 0; k < perWriter; k++ {
				id := idFor(w, k)
				if err := s.Add(rec(id, "t", id)); err != nil {
					return err
				}
			}
			return nil
		})
	}

	// Concurrent readers must never observe a torn state: every id
	// returned by GetAll must also resolve via GetByID.
	stop := make(chan struct{})
	var readerWG sync.WaitGroup
	readerWG.Add(1)
	go func() {
		defer readerWG.Done()
		for {
			select {
			case <-stop:
				return
			default:
				for _, r := range s.GetAll() {
					_, err := s.GetByID(r.ID)
					assert.NoError(t, err)
				}
			}
		}
	}()

	require.NoError(t, g.Wait())
	close(stop)
	readerWG.Wait()

	assert.Equal(t, writers*perWriter, s.Count())
	for w := 0; w < writers; w++ {
		for k := 0; k < perWriter; k++ {
			id := idFor(w, k)
			_, err := s.GetByID(id)
			assert.NoError(t, err, "every committed record must be retrievable by id")
		}
	}
}

func idFor(w, k int) string {
	return string(rune('A'+w)) + "-" + string(rune('a'+k%26)) + "-" + itoa(k)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func bodiesOf(rs []capture.Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Body
	}
	return out
}

func errAppCode(t *testing.T, err error) string {
	t.Helper()
	code := apperrors.CodeOf(err)
	require.NotEmpty(t, code, "expected an *errors.AppError, got %T: %v", err, err)
	return code
}
