package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// steadyInvoker is safe for concurrent use and always succeeds.
type steadyInvoker struct {
	calls atomic.Int64
}

func (s *steadyInvoker) Invoke(ctx context.Context, secret string, req *Request) (*Result, error) {
	s.calls.Add(1)
	return &Result{Source: "upstream", Model: "m", Analysis: `{"ok":true}`}, nil
}

func TestGateConcurrentAdmitRecord(t *testing.T) {
	gate := NewGate(10000, 100000)

	var wg sync.WaitGroup
	var issued atomic.Int64
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if gate.Admit() {
					gate.Record()
					issued.Add(1)
				}
				gate.Counts()
			}
		}()
	}
	wg.Wait()

	// Every recorded call is within the trailing minute, so both window
	// counts must equal the number of issued calls exactly.
	minute, hour := gate.Counts()
	require.Equal(t, int(issued.Load()), minute)
	require.Equal(t, int(issued.Load()), hour)
}

func TestRingConcurrentRotateAndMark(t *testing.T) {
	ring, err := NewRing([]string{"sk-a-1111", "sk-b-2222", "sk-c-3333"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				switch i % 4 {
				case 0:
					cred := ring.Rotate()
					if cred.Index < 0 || cred.Index >= 3 {
						t.Errorf("rotation produced out-of-range index %d", cred.Index)
					}
				case 1:
					ring.MarkExhausted(i % 3)
				case 2:
					cred := ring.Current()
					if cred.Index < 0 || cred.Index >= 3 {
						t.Errorf("current produced out-of-range index %d", cred.Index)
					}
				default:
					if report := ring.StatusReport(); len(report) != 3 {
						t.Errorf("status report has %d entries, want 3", len(report))
					}
				}
			}
		}()
	}
	wg.Wait()

	// Every index was marked at some point, and the selection stayed valid.
	require.True(t, ring.AllExhausted())
	cred := ring.Current()
	require.GreaterOrEqual(t, cred.Index, 0)
	require.Less(t, cred.Index, 3)
}

func TestExecuteConcurrentRequests(t *testing.T) {
	invoker := &steadyInvoker{}

	ring, err := NewRing([]string{"sk-a-1111", "sk-b-2222"})
	require.NoError(t, err)

	d, err := New(ring, NewGate(10000, 100000), NewArbiter(ModePrefs{AllowFallback: true}), invoker, &stubFallback{})
	require.NoError(t, err)

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for g := 0; g < workers; g++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				outcome, err := d.Execute(context.Background(), &Request{ID: "req", Description: "photo"})
				if err != nil {
					errs <- err
					continue
				}
				if outcome.ServedBy != ServedByReal {
					t.Errorf("outcome served by %q, want real", outcome.ServedBy)
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	// One gate record per issued upstream call, no more.
	require.Equal(t, int64(workers*perWorker), invoker.calls.Load())
	_, hour := d.Gate().Counts()
	require.Equal(t, workers*perWorker, hour)
}
