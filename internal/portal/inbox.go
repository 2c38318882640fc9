package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/RegistryPortal/internal/core"
)

// ErrNoRecipients is returned for a message without addressees.
var ErrNoRecipients = errors.New("message has no recipients")

// ListNotices returns every notice, newest first.
func (s *Service) ListNotices(ctx context.Context, sess *Session) ([]core.Notice, error) {
	if err := s.checkAuthorized(sess); err != nil {
		return nil, err
	}
	return s.mailbox.ListNotices(ctx)
}

// PublishNotice posts a notice signed by the current user. Admin only.
func (s *Service) PublishNotice(ctx context.Context, sess *Session, title, body, category string) (core.Notice, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.requireAdmin(); err != nil {
		return core.Notice{}, err
	}

	n, err := s.mailbox.PublishNotice(ctx, core.Notice{
		Title:    title,
		Body:     body,
		Category: category,
		Author:   sess.user.Name,
	})
	if err != nil {
		return core.Notice{}, err
	}
	s.audit(ctx, sess, core.AuditLogParams{
		Action:  core.ActionNoticePublish,
		Target:  n.ID,
		Details: map[string]any{"title": n.Title},
	})
	return n, nil
}

// Inbox returns the messages addressed to the current user, broadcast to
// everyone or sent by them.
func (s *Service) Inbox(ctx context.Context, sess *Session) ([]core.Message, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.requireAuthorized(); err != nil {
		return nil, err
	}
	return s.mailbox.ListMessages(ctx, sess.user.ID)
}

// SendMessage sends a message from the current user. Recipients are user
// IDs, or core.BroadcastRecipient for everyone, which only admins may use.
func (s *Service) SendMessage(ctx context.Context, sess *Session, recipients []string, subject, body string) (core.Message, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.requireAuthorized(); err != nil {
		return core.Message{}, err
	}

	to := make([]string, 0, len(recipients))
	seen := make(map[string]bool, len(recipients))
	for _, r := range recipients {
		r = strings.TrimSpace(r)
		if strings.EqualFold(r, core.BroadcastRecipient) {
			r = core.BroadcastRecipient
		}
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		to = append(to, r)
	}
	if len(to) == 0 {
		return core.Message{}, ErrNoRecipients
	}
	if seen[core.BroadcastRecipient] && !sess.user.Role.IsAdmin() {
		return core.Message{}, fmt.Errorf("broadcast message: %w", core.ErrForbidden)
	}

	return s.mailbox.SendMessage(ctx, core.Message{
		SenderID:   sess.user.ID,
		SenderName: sess.user.Name,
		Recipients: to,
		Subject:    strings.TrimSpace(subject),
		Body:       body,
	})
}

// MarkRead flags a message as read by the current user.
func (s *Service) MarkRead(ctx context.Context, sess *Session, id string) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.requireAuthorized(); err != nil {
		return err
	}
	return s.mailbox.MarkRead(ctx, id, sess.user.ID)
}

func (s *Service) checkAuthorized(sess *Session) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.requireAuthorized()
}
