package monzo

import (
	"context"
	"net/url"
)

// WhoAmI reports the identity behind the current access token, useful for
// checking that authentication worked.
func (c *Client) WhoAmI(ctx context.Context) (*WhoAmI, error) {
	data, err := c.get(ctx, "ping/whoami")
	if err != nil {
		return nil, err
	}
	return decodeFirst[WhoAmI](data)
}

// Accounts lists the accounts the authenticated user can see.
func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	data, err := c.get(ctx, "accounts")
	if err != nil {
		return nil, err
	}
	return decodeList[Account](data, "accounts")
}

// Balance fetches the balance of one account.
func (c *Client) Balance(ctx context.Context, accountID string) (*Balance, error) {
	query := url.Values{"account_id": {accountID}}
	data, err := c.get(ctx, "balance?"+query.Encode())
	if err != nil {
		return nil, err
	}
	return decodeFirst[Balance](data)
}
