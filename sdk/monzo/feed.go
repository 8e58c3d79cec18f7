package monzo

import (
	"context"
	"fmt"
	"net/url"
)

// CreateFeedItem publishes a basic feed item into the app feed of an
// account. AccountID, Title and ImageURL are required, everything else is
// optional.
func (c *Client) CreateFeedItem(ctx context.Context, item FeedItem) error {
	if item.AccountID == "" || item.Title == "" || item.ImageURL == "" {
		return fmt.Errorf("feed item requires an account ID, a title and an image URL")
	}
	form := url.Values{
		"type":              {"basic"},
		"account_id":        {item.AccountID},
		"params[title]":     {item.Title},
		"params[image_url]": {item.ImageURL},
	}
	if item.Body != "" {
		form.Set("params[body]", item.Body)
	}
	if !item.BackgroundColor.IsZero() {
		form.Set("params[background_color]", item.BackgroundColor.Hex())
	}
	if !item.TitleColor.IsZero() {
		form.Set("params[title_color]", item.TitleColor.Hex())
	}
	if !item.BodyColor.IsZero() {
		form.Set("params[body_color]", item.BodyColor.Hex())
	}
	if item.URL != "" {
		form.Set("url", item.URL)
	}
	_, err := c.postForm(ctx, "feed", form)
	return err
}
