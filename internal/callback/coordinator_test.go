package callback

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"
)

type waitOutcome struct {
	values url.Values
	err    error
}

func startWait(c *Coordinator) chan waitOutcome {
	ch := make(chan waitOutcome, 1)
	go func() {
		values, err := c.Wait()
		ch <- waitOutcome{values: values, err: err}
	}()
	return ch
}

func TestWaitDeliversCallbackParameters(t *testing.T) {
	t.Parallel()

	c, err := NewCoordinator(0, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewCoordinator returned error: %v", err)
	}
	defer func() { _ = c.Close() }()

	outcome := startWait(c)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/monzo_callback?code=ABC&state=XYZ", c.Port()))
	if err != nil {
		t.Fatalf("callback request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("callback status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if string(body) != ackBody {
		t.Fatalf("callback body = %q, want %q", string(body), ackBody)
	}

	select {
	case got := <-outcome:
		if got.err != nil {
			t.Fatalf("Wait returned error: %v", got.err)
		}
		if code := got.values["code"]; len(code) != 1 || code[0] != "ABC" {
			t.Fatalf("code values = %v, want [ABC]", code)
		}
		if state := got.values["state"]; len(state) != 1 || state[0] != "XYZ" {
			t.Fatalf("state values = %v, want [XYZ]", state)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not finish after the callback")
	}
}

func TestCancelBeforeWaitReturnsImmediately(t *testing.T) {
	t.Parallel()

	c, err := NewCoordinator(0, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("NewCoordinator returned error: %v", err)
	}
	defer func() { _ = c.Close() }()

	c.Cancel()

	start := time.Now()
	values, err := c.Wait()
	elapsed := time.Since(start)

	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Wait error = %v, want ErrCancelled", err)
	}
	if values != nil {
		t.Fatalf("Wait values = %v, want nil", values)
	}
	if elapsed >= 100*time.Millisecond {
		t.Fatalf("cancelled Wait took %v, want under one poll interval", elapsed)
	}
}

func TestConcurrentCancelUnblocksWait(t *testing.T) {
	t.Parallel()

	const pollTimeout = 50 * time.Millisecond

	c, err := NewCoordinator(0, pollTimeout)
	if err != nil {
		t.Fatalf("NewCoordinator returned error: %v", err)
	}
	defer func() { _ = c.Close() }()

	outcome := startWait(c)

	time.Sleep(20 * time.Millisecond)
	start := time.Now()
	c.Cancel()

	select {
	case got := <-outcome:
		if !errors.Is(got.err, ErrCancelled) {
			t.Fatalf("Wait error = %v, want ErrCancelled", got.err)
		}
		if elapsed := time.Since(start); elapsed > 2*pollTimeout+150*time.Millisecond {
			t.Fatalf("Wait unblocked after %v, want within two poll intervals", elapsed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not observe cancellation")
	}
}

func TestDuplicateCaptureKeepsFirst(t *testing.T) {
	t.Parallel()

	c, err := NewCoordinator(0, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewCoordinator returned error: %v", err)
	}
	defer func() { _ = c.Close() }()

	c.Capture("/monzo_callback?code=first")
	c.Capture("/monzo_callback?code=second")

	values, err := c.Wait()
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if code := values.Get("code"); code != "first" {
		t.Fatalf("code = %q, want %q", code, "first")
	}
}

func TestCancelAfterCompletionIsNoOp(t *testing.T) {
	t.Parallel()

	c, err := NewCoordinator(0, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewCoordinator returned error: %v", err)
	}
	defer func() { _ = c.Close() }()

	c.Capture("/monzo_callback?code=kept")
	c.Cancel()

	values, err := c.Wait()
	if err != nil {
		t.Fatalf("Wait returned error: %v, want completed result", err)
	}
	if code := values.Get("code"); code != "kept" {
		t.Fatalf("code = %q, want %q", code, "kept")
	}
}

func TestCaptureAfterCancelIsDiscarded(t *testing.T) {
	t.Parallel()

	c, err := NewCoordinator(0, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewCoordinator returned error: %v", err)
	}
	defer func() { _ = c.Close() }()

	c.Cancel()
	c.Capture("/monzo_callback?code=late")

	_, err = c.Wait()
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Wait error = %v, want ErrCancelled", err)
	}
}

func TestMalformedQueryReturnsBadCallback(t *testing.T) {
	t.Parallel()

	c, err := NewCoordinator(0, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewCoordinator returned error: %v", err)
	}
	defer func() { _ = c.Close() }()

	c.Capture("/monzo_callback?%zz=bad")

	_, err = c.Wait()
	if !errors.Is(err, ErrBadCallback) {
		t.Fatalf("Wait error = %v, want ErrBadCallback", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	c, err := NewCoordinator(0, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewCoordinator returned error: %v", err)
	}
	if errClose := c.Close(); errClose != nil {
		t.Fatalf("first Close returned error: %v", errClose)
	}
	if errClose := c.Close(); errClose != nil {
		t.Fatalf("second Close returned error: %v", errClose)
	}
}
