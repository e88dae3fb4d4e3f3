// ABOUTME: Conformance tests run against both Ledger implementations.
// ABOUTME: Covers id monotonicity, the state machine, ordering, and transition races.

package ledger

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eachLedger runs fn against every Ledger implementation.
func eachLedger(t *testing.T, fn func(t *testing.T, l Ledger)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		l := NewMemoryLedger(nil)
		t.Cleanup(func() { l.Close() })
		fn(t, l)
	})

	t.Run("sqlite", func(t *testing.T) {
		l, err := NewSQLiteLedger(filepath.Join(t.TempDir(), "ledger.db"), nil)
		require.NoError(t, err)
		t.Cleanup(func() { l.Close() })
		fn(t, l)
	})
}

func enqueueN(t *testing.T, l Ledger, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		id, err := l.Enqueue(context.Background(), EnqueueParams{
			RequesterID:       fmt.Sprintf("user-%d", i),
			InputMessage:      fmt.Sprintf("question %d", i),
			GeneratedResponse: fmt.Sprintf("answer %d", i),
			Confidence:        0.5,
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestLedger_IDsStrictlyIncreasing(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		ids := enqueueN(t, l, 10)
		for i := 1; i < len(ids); i++ {
			assert.Greater(t, ids[i], ids[i-1], "ids must be strictly increasing")
		}
	})
}

func TestLedger_EnqueueThenGetRoundTrip(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		ctx := t.Context()

		id, err := l.Enqueue(ctx, EnqueueParams{
			RequesterID:       "user-1",
			ConversationID:    "conv-42",
			InputMessage:      "what is the airspeed of an unladen swallow?",
			GeneratedResponse: "african or european?",
			Confidence:        0.42,
		})
		require.NoError(t, err)

		rec, err := l.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, rec.ID)
		assert.Equal(t, "user-1", rec.RequesterID)
		assert.Equal(t, "conv-42", rec.ConversationID)
		assert.Equal(t, StatePending, rec.State)
		assert.Empty(t, rec.FinalResponse, "finalResponse must be unset while pending")
		assert.Nil(t, rec.ResolvedAt)
		assert.False(t, rec.CreatedAt.IsZero())
	})
}

func TestLedger_GetUnknown(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		_, err := l.Get(t.Context(), 999)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestLedger_ListPendingOldestFirst(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		ctx := t.Context()
		ids := enqueueN(t, l, 5)

		// Resolve the middle record; it must disappear from the pending list.
		_, err := l.Transition(ctx, ids[2], true, "")
		require.NoError(t, err)

		pending, err := l.ListPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 4)

		for i := 1; i < len(pending); i++ {
			prev, cur := pending[i-1], pending[i]
			assert.False(t, cur.CreatedAt.Before(prev.CreatedAt), "pending list must be createdAt ascending")
		}
		for _, rec := range pending {
			assert.NotEqual(t, ids[2], rec.ID)
			assert.Equal(t, StatePending, rec.State)
		}
	})
}

func TestLedger_ListPendingLimit(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		ids := enqueueN(t, l, 8)

		pending, err := l.ListPending(t.Context(), 3)
		require.NoError(t, err)
		require.Len(t, pending, 3)
		// Oldest three.
		assert.Equal(t, ids[0], pending[0].ID)
		assert.Equal(t, ids[1], pending[1].ID)
		assert.Equal(t, ids[2], pending[2].ID)
	})
}

func TestLedger_ApproveWithEdit(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		ctx := t.Context()
		id, err := l.Enqueue(ctx, EnqueueParams{
			RequesterID:       "user-1",
			InputMessage:      "q",
			GeneratedResponse: "X",
			Confidence:        0.5,
		})
		require.NoError(t, err)

		rec, err := l.Transition(ctx, id, true, "Y")
		require.NoError(t, err)
		assert.Equal(t, StateApproved, rec.State)
		assert.Equal(t, "Y", rec.FinalResponse)
		require.NotNil(t, rec.ResolvedAt)
	})
}

func TestLedger_ApproveWithoutEditDefaultsToGenerated(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		ctx := t.Context()
		id, err := l.Enqueue(ctx, EnqueueParams{
			RequesterID:       "user-1",
			InputMessage:      "q",
			GeneratedResponse: "the generated answer",
			Confidence:        0.5,
		})
		require.NoError(t, err)

		rec, err := l.Transition(ctx, id, true, "")
		require.NoError(t, err)
		assert.Equal(t, StateApproved, rec.State)
		assert.Equal(t, "the generated answer", rec.FinalResponse)
	})
}

func TestLedger_Reject(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		ctx := t.Context()
		id, err := l.Enqueue(ctx, EnqueueParams{
			RequesterID:       "user-1",
			InputMessage:      "q",
			GeneratedResponse: "a",
			Confidence:        0.5,
		})
		require.NoError(t, err)

		rec, err := l.Transition(ctx, id, false, "")
		require.NoError(t, err)
		assert.Equal(t, StateRejected, rec.State)
		assert.Empty(t, rec.FinalResponse, "finalResponse must stay unset on rejection")
		require.NotNil(t, rec.ResolvedAt)
	})
}

func TestLedger_DoubleTransitionRejected(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		ctx := t.Context()
		id, err := l.Enqueue(ctx, EnqueueParams{
			RequesterID:       "user-1",
			InputMessage:      "q",
			GeneratedResponse: "a",
			Confidence:        0.5,
		})
		require.NoError(t, err)

		_, err = l.Transition(ctx, id, true, "")
		require.NoError(t, err)

		// A second decision must conflict, regardless of direction.
		_, err = l.Transition(ctx, id, false, "")
		assert.ErrorIs(t, err, ErrAlreadyResolved)
		_, err = l.Transition(ctx, id, true, "other")
		assert.ErrorIs(t, err, ErrAlreadyResolved)

		// The original decision stands.
		rec, err := l.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StateApproved, rec.State)
	})
}

func TestLedger_TransitionUnknown(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		_, err := l.Transition(t.Context(), 12345, true, "")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestLedger_ConcurrentEnqueueUniqueIDs(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		const workers = 8
		const perWorker = 20

		var mu sync.Mutex
		var ids []int64
		var wg sync.WaitGroup

		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					id, err := l.Enqueue(context.Background(), EnqueueParams{
						RequesterID:       fmt.Sprintf("worker-%d", w),
						InputMessage:      "q",
						GeneratedResponse: "a",
						Confidence:        0.5,
					})
					assert.NoError(t, err)
					mu.Lock()
					ids = append(ids, id)
					mu.Unlock()
				}
			}(w)
		}
		wg.Wait()

		require.Len(t, ids, workers*perWorker)
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for i := 1; i < len(ids); i++ {
			assert.NotEqual(t, ids[i-1], ids[i], "ids must be unique under concurrency")
		}
	})
}

func TestSQLiteLedger_CreatedAtOrderingWithinSameSecond(t *testing.T) {
	l, err := NewSQLiteLedger(filepath.Join(t.TempDir(), "ledger.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	insert := func(requester string, at time.Time) {
		t.Helper()
		_, err := l.db.Exec(`
			INSERT INTO review_records (
				requester_id, conversation_id, input_message,
				generated_response, confidence, state, created_at
			) VALUES (?, '', 'q', 'a', 0.5, 'pending', ?)`,
			requester, at.Format(sqliteTimeFormat))
		require.NoError(t, err)
	}

	// A whole-second timestamp and a fractional one in the same second,
	// inserted newest-first so id order disagrees with time order. The
	// pending list must still come back oldest-first.
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	insert("late", base.Add(500*time.Millisecond))
	insert("early", base)

	pending, err := l.ListPending(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "early", pending[0].RequesterID)
	assert.Equal(t, "late", pending[1].RequesterID)
	assert.True(t, pending[0].CreatedAt.Before(pending[1].CreatedAt))
}

func TestLedger_ConcurrentTransitionOneWinner(t *testing.T) {
	eachLedger(t, func(t *testing.T, l Ledger) {
		ctx := context.Background()
		id, err := l.Enqueue(ctx, EnqueueParams{
			RequesterID:       "user-1",
			InputMessage:      "q",
			GeneratedResponse: "a",
			Confidence:        0.5,
		})
		require.NoError(t, err)

		const reviewers = 10
		results := make(chan error, reviewers)
		start := make(chan struct{})

		var wg sync.WaitGroup
		for r := 0; r < reviewers; r++ {
			wg.Add(1)
			go func(approve bool) {
				defer wg.Done()
				<-start
				_, err := l.Transition(ctx, id, approve, "")
				results <- err
			}(r%2 == 0)
		}
		close(start)
		wg.Wait()
		close(results)

		var wins, conflicts int
		for err := range results {
			switch {
			case err == nil:
				wins++
			default:
				assert.ErrorIs(t, err, ErrAlreadyResolved)
				conflicts++
			}
		}
		assert.Equal(t, 1, wins, "exactly one transition must win")
		assert.Equal(t, reviewers-1, conflicts)
	})
}
