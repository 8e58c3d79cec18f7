package monzo

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Timestamp wraps time.Time to accept the two formats the API produces,
// with and without fractional seconds, and to treat an empty string or
// null as the zero time.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to decode timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// WhoAmI describes the identity behind an access token.
type WhoAmI struct {
	Authenticated bool   `json:"authenticated"`
	ClientID      string `json:"client_id"`
	UserID        string `json:"user_id"`
}

// Owner is a holder of an account.
type Owner struct {
	UserID             string `json:"user_id"`
	PreferredName      string `json:"preferred_name"`
	PreferredFirstName string `json:"preferred_first_name"`
}

// AccountType enumerates the kinds of account the API reports.
type AccountType string

const (
	AccountTypeRetail      AccountType = "uk_retail"
	AccountTypeRetailJoint AccountType = "uk_retail_joint"
	AccountTypePrepaid     AccountType = "uk_prepaid"
)

// Account is a bank account, either retail or prepaid.
type Account struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Created     Timestamp   `json:"created"`
	Closed      bool        `json:"closed"`
	Type        AccountType `json:"type"`
	Owners      []Owner     `json:"owners"`

	// AccountNumber and SortCode are only present on retail accounts.
	AccountNumber string `json:"account_number,omitempty"`
	SortCode      string `json:"sort_code,omitempty"`
}

// Balance reports the funds available on an account. Amounts are in the
// minor unit of the currency, pence for GBP.
type Balance struct {
	Balance      int64  `json:"balance"`
	TotalBalance int64  `json:"total_balance"`
	SpendToday   int64  `json:"spend_today"`
	Currency     string `json:"currency"`
}

// Pot is a savings pot attached to an account.
type Pot struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Style    string    `json:"style"`
	Balance  int64     `json:"balance"`
	Currency string    `json:"currency"`
	RoundUp  bool      `json:"round_up"`
	Created  Timestamp `json:"created"`
	Updated  Timestamp `json:"updated"`
	Deleted  bool      `json:"deleted"`
}

// Attachment is an image attached to a transaction.
type Attachment struct {
	ID         string `json:"id,omitempty"`
	ExternalID string `json:"external_id"`
	FileType   string `json:"file_type"`
	FileURL    string `json:"file_url"`
	UserID     string `json:"user_id"`
}

// Transaction is a single movement of money on an account.
type Transaction struct {
	ID             string       `json:"id"`
	AccountID      string       `json:"account_id"`
	UserID         string       `json:"user_id"`
	Description    string       `json:"description"`
	Amount         int64        `json:"amount"`
	Currency       string       `json:"currency"`
	LocalAmount    int64        `json:"local_amount"`
	LocalCurrency  string       `json:"local_currency"`
	AccountBalance int64        `json:"account_balance"`
	Created        Timestamp    `json:"created"`
	Updated        Timestamp    `json:"updated"`
	Settled        Timestamp    `json:"settled"`
	Attachments    []Attachment `json:"attachments"`

	raw []byte
}

// UnmarshalJSON implements json.Unmarshaler, retaining the raw payload so
// fields this struct does not model stay reachable.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type alias Transaction
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*t = Transaction(a)
	t.raw = append([]byte(nil), data...)
	return nil
}

// Raw returns the transaction exactly as the API sent it.
func (t *Transaction) Raw() json.RawMessage {
	return t.raw
}

// Metadata returns the annotation stored under key, or the empty string
// when the transaction carries no such annotation.
func (t *Transaction) Metadata(key string) string {
	return gjson.GetBytes(t.raw, "metadata."+key).String()
}

// Merchant returns the expanded merchant name when the transaction was
// fetched with merchant expansion, or the empty string otherwise.
func (t *Transaction) Merchant() string {
	return gjson.GetBytes(t.raw, "merchant.name").String()
}

// Webhook is a registered event delivery target for an account.
type Webhook struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	URL       string `json:"url"`
}

// Color is a hex color code of the form #RRGGBB, accepted by feed items.
type Color struct {
	hex string
}

// NewColor builds a Color from a hex code, prepending the leading # when
// missing. The code must be exactly six hex digits.
func NewColor(hexCode string) (Color, error) {
	if !strings.HasPrefix(hexCode, "#") {
		hexCode = "#" + hexCode
	}
	if len(hexCode) != 7 {
		return Color{}, fmt.Errorf("invalid hex color %q: expected #RRGGBB", hexCode)
	}
	return Color{hex: hexCode}, nil
}

// Hex returns the #RRGGBB representation.
func (c Color) Hex() string {
	return c.hex
}

// IsZero reports whether the color is unset.
func (c Color) IsZero() bool {
	return c.hex == ""
}

// FeedItem describes a basic feed entry to show in the app.
type FeedItem struct {
	// AccountID is the account whose feed receives the item. Required.
	AccountID string
	// Title is the headline of the item. Required.
	Title string
	// ImageURL is the icon shown beside the item. Required.
	ImageURL string
	// Body is optional secondary text.
	Body string
	// URL is an optional link opened when the item is tapped.
	URL string
	// BackgroundColor, TitleColor and BodyColor optionally restyle the item.
	BackgroundColor Color
	TitleColor      Color
	BodyColor       Color
}

// decodeList unmarshals a response that may arrive wrapped in one of the
// named envelopes, as a bare object, or as an array, always yielding a
// list. The API wraps collection responses and some single objects.
func decodeList[T any](data []byte, envelopes ...string) ([]T, error) {
	payload := data
	for _, key := range envelopes {
		if value := gjson.GetBytes(data, key); value.Exists() {
			payload = []byte(value.Raw)
			break
		}
	}
	if gjson.ParseBytes(payload).IsArray() {
		var out []T
		if err := json.Unmarshal(payload, &out); err != nil {
			return nil, fmt.Errorf("failed to decode response list: %w", err)
		}
		return out, nil
	}
	var single T
	if err := json.Unmarshal(payload, &single); err != nil {
		return nil, fmt.Errorf("failed to decode response object: %w", err)
	}
	return []T{single}, nil
}

// decodeFirst unmarshals a response expected to hold exactly one object,
// possibly wrapped in one of the named envelopes.
func decodeFirst[T any](data []byte, envelopes ...string) (*T, error) {
	list, err := decodeList[T](data, envelopes...)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("empty response payload")
	}
	return &list[0], nil
}
