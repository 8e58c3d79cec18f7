package monzo

import (
	"context"
	"fmt"
	"net/url"
)

// Transactions lists the transactions of one account, oldest first.
func (c *Client) Transactions(ctx context.Context, accountID string) ([]Transaction, error) {
	query := url.Values{"account_id": {accountID}}
	data, err := c.get(ctx, "transactions?"+query.Encode())
	if err != nil {
		return nil, err
	}
	return decodeList[Transaction](data, "transactions")
}

// Transaction fetches one transaction by ID with its merchant expanded.
func (c *Client) Transaction(ctx context.Context, transactionID string) (*Transaction, error) {
	data, err := c.get(ctx, "transactions/"+transactionID+"?expand[]=merchant")
	if err != nil {
		return nil, err
	}
	return decodeFirst[Transaction](data, "transaction")
}

// AnnotateTransaction stores a metadata value under key on a transaction
// and returns the updated transaction. An empty value removes the key.
func (c *Client) AnnotateTransaction(ctx context.Context, transactionID, key, value string) (*Transaction, error) {
	form := url.Values{
		fmt.Sprintf("metadata[%s]", key): {value},
	}
	data, err := c.patchForm(ctx, "transactions/"+transactionID, form)
	if err != nil {
		return nil, err
	}
	return decodeFirst[Transaction](data, "transaction")
}

// RemoveTransactionAnnotation deletes the metadata value under key from a
// transaction and returns the updated transaction.
func (c *Client) RemoveTransactionAnnotation(ctx context.Context, transactionID, key string) (*Transaction, error) {
	return c.AnnotateTransaction(ctx, transactionID, key, "")
}
