package monzo

import (
	"context"
	"net/url"
)

// Webhooks lists the webhooks registered on an account.
func (c *Client) Webhooks(ctx context.Context, accountID string) ([]Webhook, error) {
	query := url.Values{"account_id": {accountID}}
	data, err := c.get(ctx, "webhooks?"+query.Encode())
	if err != nil {
		return nil, err
	}
	return decodeList[Webhook](data, "webhooks")
}

// RegisterWebhook subscribes a URL to the events of an account and returns
// the created webhook.
func (c *Client) RegisterWebhook(ctx context.Context, accountID, targetURL string) (*Webhook, error) {
	form := url.Values{
		"account_id": {accountID},
		"url":        {targetURL},
	}
	data, err := c.postForm(ctx, "webhooks", form)
	if err != nil {
		return nil, err
	}
	return decodeFirst[Webhook](data, "webhook")
}

// DeleteWebhook removes a webhook registration.
func (c *Client) DeleteWebhook(ctx context.Context, webhookID string) error {
	_, err := c.del(ctx, "webhooks/"+webhookID)
	return err
}
