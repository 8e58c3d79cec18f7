package monzo

import (
	"context"
	"net/http"
	"strings"
	"testing"
)

func TestPotsDecodesEnvelope(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pots" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"pots": [
			{"id": "pot_1", "name": "Savings", "style": "beach_ball", "balance": 13300,
			 "currency": "GBP", "round_up": true,
			 "created": "2018-01-02T08:00:00.000Z", "updated": "2019-01-02T08:00:00.000Z",
			 "deleted": false}
		]}`))
	}))

	pots, err := c.Pots(context.Background())
	if err != nil {
		t.Fatalf("Pots failed: %v", err)
	}
	if len(pots) != 1 {
		t.Fatalf("got %d pots, want 1", len(pots))
	}
	pot := pots[0]
	if pot.Name != "Savings" || pot.Balance != 13300 || !pot.RoundUp {
		t.Errorf("pot = %+v", pot)
	}
}

func TestDepositIntoPotSendsForm(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %q", r.Method)
		}
		if r.URL.Path != "/pots/pot_1/deposit" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm failed: %v", err)
		}
		if got := r.PostForm.Get("source_account_id"); got != "acc_1" {
			t.Errorf("source_account_id = %q", got)
		}
		if got := r.PostForm.Get("amount"); got != "1500" {
			t.Errorf("amount = %q", got)
		}
		if got := r.PostForm.Get("dedupe_id"); got != "dedupe_1" {
			t.Errorf("dedupe_id = %q", got)
		}
		_, _ = w.Write([]byte(`{"id": "pot_1", "name": "Savings", "balance": 14800, "currency": "GBP"}`))
	}))

	pot, err := c.DepositIntoPot(context.Background(), "pot_1", "acc_1", 1500, "dedupe_1")
	if err != nil {
		t.Fatalf("DepositIntoPot failed: %v", err)
	}
	if pot.Balance != 14800 {
		t.Errorf("Balance = %d", pot.Balance)
	}
}

func TestDepositGeneratesDedupeIDWhenEmpty(t *testing.T) {
	t.Parallel()

	var gotDedupe string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotDedupe = r.PostForm.Get("dedupe_id")
		_, _ = w.Write([]byte(`{"id": "pot_1", "balance": 100, "currency": "GBP"}`))
	}))

	if _, err := c.DepositIntoPot(context.Background(), "pot_1", "acc_1", 100, ""); err != nil {
		t.Fatalf("DepositIntoPot failed: %v", err)
	}
	if len(gotDedupe) != 20 {
		t.Errorf("generated dedupe ID %q, want 20 characters", gotDedupe)
	}
	if strings.ContainsAny(gotDedupe, "Oilo01") {
		t.Errorf("dedupe ID %q contains ambiguous characters", gotDedupe)
	}
}

func TestWithdrawFromPotSendsForm(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %q", r.Method)
		}
		if r.URL.Path != "/pots/pot_1/withdraw" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = r.ParseForm()
		if got := r.PostForm.Get("destination_account_id"); got != "acc_1" {
			t.Errorf("destination_account_id = %q", got)
		}
		if got := r.PostForm.Get("amount"); got != "2000" {
			t.Errorf("amount = %q", got)
		}
		_, _ = w.Write([]byte(`{"id": "pot_1", "balance": 11300, "currency": "GBP"}`))
	}))

	pot, err := c.WithdrawFromPot(context.Background(), "pot_1", "acc_1", 2000, "dedupe_2")
	if err != nil {
		t.Fatalf("WithdrawFromPot failed: %v", err)
	}
	if pot.Balance != 11300 {
		t.Errorf("Balance = %d", pot.Balance)
	}
}
