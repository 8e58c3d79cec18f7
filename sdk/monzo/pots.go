package monzo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/monzokit/monzokit/internal/misc"
)

// Pots lists the savings pots of the authenticated user, including
// deleted ones.
func (c *Client) Pots(ctx context.Context) ([]Pot, error) {
	data, err := c.get(ctx, "pots")
	if err != nil {
		return nil, err
	}
	return decodeList[Pot](data, "pots")
}

// DepositIntoPot moves money from an account into a pot and returns the
// updated pot.
//
// The amount is in the minor unit of the currency, pence for GBP. The
// dedupe ID guards against double deposits when a call is retried; pass
// the empty string to generate a fresh one.
func (c *Client) DepositIntoPot(ctx context.Context, potID, sourceAccountID string, amount int64, dedupeID string) (*Pot, error) {
	if dedupeID == "" {
		var err error
		dedupeID, err = misc.RandomToken(secretLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate dedupe ID: %w", err)
		}
	}
	form := url.Values{
		"source_account_id": {sourceAccountID},
		"amount":            {strconv.FormatInt(amount, 10)},
		"dedupe_id":         {dedupeID},
	}
	data, err := c.putForm(ctx, "pots/"+potID+"/deposit", form)
	if err != nil {
		return nil, err
	}
	return decodeFirst[Pot](data)
}

// WithdrawFromPot moves money from a pot back into an account and returns
// the updated pot. Amount and dedupe ID behave as in DepositIntoPot.
func (c *Client) WithdrawFromPot(ctx context.Context, potID, destinationAccountID string, amount int64, dedupeID string) (*Pot, error) {
	if dedupeID == "" {
		var err error
		dedupeID, err = misc.RandomToken(secretLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate dedupe ID: %w", err)
		}
	}
	form := url.Values{
		"destination_account_id": {destinationAccountID},
		"amount":                 {strconv.FormatInt(amount, 10)},
		"dedupe_id":              {dedupeID},
	}
	data, err := c.putForm(ctx, "pots/"+potID+"/withdraw", form)
	if err != nil {
		return nil, err
	}
	return decodeFirst[Pot](data)
}
