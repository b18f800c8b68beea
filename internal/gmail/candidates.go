package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"tablemail/internal/model"
	"tablemail/internal/tables"
)

// ErrNoMessages is returned when the sender query matches nothing.
var ErrNoMessages = errors.New("no messages from sender")

// ListCandidates searches the mailbox for messages from sender, either an
// email address (exact from: match) or a display name (quoted from: match), and
// returns up to max candidates with their From/Subject/Date headers. Gmail's
// from: query is fuzzy for names, so results are filtered against the From
// header again before they become candidates.
func (c *Client) ListCandidates(ctx context.Context, sender string, max int64) ([]model.Candidate, error) {
	isEmail := looksLikeEmail(sender)

	var query string
	if isEmail {
		query = "from:" + sender
	} else {
		query = fmt.Sprintf("from:%q", sender)
	}
	c.logger.Info("searching mailbox", "query", query, "max", max)

	list, err := c.svc.Users.Messages.List("me").
		Q(query).
		MaxResults(max).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if len(list.Messages) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoMessages, sender)
	}

	var candidates []model.Candidate
	for _, m := range list.Messages {
		msg, err := c.svc.Users.Messages.Get("me", m.Id).
			Format("metadata").
			MetadataHeaders("From", "Subject", "Date").
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("get message %s: %w", m.Id, err)
		}

		var from, subject, date string
		for _, h := range msg.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "from":
				from = h.Value
			case "subject":
				subject = h.Value
			case "date":
				date = h.Value
			}
		}

		if !matchesSender(from, sender, isEmail) {
			continue
		}
		c.logger.Debug("candidate", "id", msg.Id, "subject", subject, "date", date)
		candidates = append(candidates, model.Candidate{
			ID:      msg.Id,
			Subject: subject,
			From:    from,
			Date:    date,
		})
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoMessages, sender)
	}
	return candidates, nil
}

// GetEmail fetches the full message and extracts its HTML body, plain text,
// and any <table> markup found in the HTML.
func (c *Client) GetEmail(ctx context.Context, id string) (*model.Email, error) {
	msg, err := c.svc.Users.Messages.Get("me", id).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}

	var from, subject, date string
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "from":
				from = h.Value
			case "subject":
				subject = h.Value
			case "date":
				date = h.Value
			}
		}
	}

	html := extractHTML(msg.Payload)
	email := &model.Email{
		ID:         id,
		From:       from,
		Subject:    subject,
		Date:       date,
		HTML:       html,
		Text:       extractText(msg.Payload),
		TablesHTML: tables.Extract(html),
	}
	c.logger.Info("fetched message", "id", id, "subject", subject, "tables", len(email.TablesHTML))
	return email, nil
}

// looksLikeEmail distinguishes an address from a display name; a dot in the
// domain part is enough for the purposes of query construction.
func looksLikeEmail(sender string) bool {
	at := strings.LastIndexByte(sender, '@')
	return at > 0 && strings.Contains(sender[at+1:], ".")
}

// matchesSender re-checks the From header against the requested sender.
// Addresses compare case-insensitively, preferring the parsed RFC 5322
// address when the header parses; display names match as an exact substring.
func matchesSender(fromHeader, sender string, isEmail bool) bool {
	if !isEmail {
		return strings.Contains(fromHeader, sender)
	}
	if addr, err := mail.ParseAddress(fromHeader); err == nil {
		return strings.EqualFold(addr.Address, sender)
	}
	return strings.Contains(strings.ToLower(fromHeader), strings.ToLower(sender))
}
