package monzo

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestampParsesBothFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"fractional seconds", `"2019-03-01T10:15:30.543Z"`, time.Date(2019, 3, 1, 10, 15, 30, 543000000, time.UTC)},
		{"whole seconds", `"2019-03-01T10:15:30Z"`, time.Date(2019, 3, 1, 10, 15, 30, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var ts Timestamp
			if err := json.Unmarshal([]byte(tt.input), &ts); err != nil {
				t.Fatalf("Unmarshal(%s) failed: %v", tt.input, err)
			}
			if !ts.Equal(tt.want) {
				t.Errorf("parsed %v, want %v", ts.Time, tt.want)
			}
		})
	}
}

func TestTimestampEmptyAndNullAreZero(t *testing.T) {
	t.Parallel()

	for _, input := range []string{`""`, `null`} {
		var ts Timestamp
		if err := json.Unmarshal([]byte(input), &ts); err != nil {
			t.Fatalf("Unmarshal(%s) failed: %v", input, err)
		}
		if !ts.IsZero() {
			t.Errorf("Unmarshal(%s) produced non-zero time %v", input, ts.Time)
		}
	}
}

func TestTimestampRejectsGarbage(t *testing.T) {
	t.Parallel()

	var ts Timestamp
	if err := json.Unmarshal([]byte(`"last tuesday"`), &ts); err == nil {
		t.Error("expected an error for an unparseable timestamp")
	}
}

func TestTransactionKeepsRawPayload(t *testing.T) {
	t.Parallel()

	payload := `{
		"id": "tx_1",
		"account_id": "acc_1",
		"amount": -250,
		"currency": "GBP",
		"created": "2019-03-01T10:15:30.543Z",
		"settled": "",
		"metadata": {"notes": "coffee"},
		"merchant": {"id": "merch_1", "name": "Beans & Co"}
	}`
	var tx Transaction
	if err := json.Unmarshal([]byte(payload), &tx); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if tx.ID != "tx_1" || tx.Amount != -250 {
		t.Errorf("unexpected fields: %+v", tx)
	}
	if !tx.Settled.IsZero() {
		t.Error("empty settled should decode as zero time")
	}
	if got := tx.Metadata("notes"); got != "coffee" {
		t.Errorf("Metadata(notes) = %q, want coffee", got)
	}
	if got := tx.Metadata("missing"); got != "" {
		t.Errorf("Metadata(missing) = %q, want empty", got)
	}
	if got := tx.Merchant(); got != "Beans & Co" {
		t.Errorf("Merchant() = %q", got)
	}
	if len(tx.Raw()) == 0 {
		t.Error("Raw() returned nothing")
	}
}

func TestNewColor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"with hash", "#0A1B2C", "#0A1B2C", false},
		{"without hash", "0A1B2C", "#0A1B2C", false},
		{"too short", "FFF", "", true},
		{"too long", "#AABBCCDD", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, err := NewColor(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewColor(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewColor(%q) failed: %v", tt.input, err)
			}
			if c.Hex() != tt.want {
				t.Errorf("Hex() = %q, want %q", c.Hex(), tt.want)
			}
		})
	}

	var zero Color
	if !zero.IsZero() {
		t.Error("zero Color should report IsZero")
	}
}

func TestDecodeListHandlesEnvelopes(t *testing.T) {
	t.Parallel()

	t.Run("enveloped list", func(t *testing.T) {
		t.Parallel()
		data := []byte(`{"accounts": [{"id": "acc_1"}, {"id": "acc_2"}]}`)
		accounts, err := decodeList[Account](data, "accounts")
		if err != nil {
			t.Fatalf("decodeList failed: %v", err)
		}
		if len(accounts) != 2 || accounts[0].ID != "acc_1" {
			t.Errorf("unexpected accounts: %+v", accounts)
		}
	})

	t.Run("enveloped single object", func(t *testing.T) {
		t.Parallel()
		data := []byte(`{"transaction": {"id": "tx_1"}}`)
		txs, err := decodeList[Transaction](data, "transactions", "transaction")
		if err != nil {
			t.Fatalf("decodeList failed: %v", err)
		}
		if len(txs) != 1 || txs[0].ID != "tx_1" {
			t.Errorf("unexpected transactions: %+v", txs)
		}
	})

	t.Run("bare object", func(t *testing.T) {
		t.Parallel()
		data := []byte(`{"balance": 5000, "currency": "GBP"}`)
		balance, err := decodeFirst[Balance](data)
		if err != nil {
			t.Fatalf("decodeFirst failed: %v", err)
		}
		if balance.Balance != 5000 || balance.Currency != "GBP" {
			t.Errorf("unexpected balance: %+v", balance)
		}
	})

	t.Run("empty enveloped list", func(t *testing.T) {
		t.Parallel()
		data := []byte(`{"pots": []}`)
		pots, err := decodeList[Pot](data, "pots")
		if err != nil {
			t.Fatalf("decodeList failed: %v", err)
		}
		if len(pots) != 0 {
			t.Errorf("expected no pots, got %+v", pots)
		}
	})
}
