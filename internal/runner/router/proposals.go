package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"signal_bot/internal/models"
	"signal_bot/pkg/logger"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Callback data prefixes of COPILOT buttons.
const (
	ConfirmPrefix = "CONF::"
	RejectPrefix  = "REJ::"
)

// ErrProposalExpired is returned for unknown, expired or already used tokens.
var ErrProposalExpired = errors.New("proposal expired or already handled")

func (r *Router) propose(chatID int64, alert models.Alert) models.Proposal {
	p := models.Proposal{
		Token:     uuid.NewString(),
		ChatID:    chatID,
		Asset:     alert.Asset,
		Action:    alert.Action,
		Side:      alert.Side,
		ATR:       alert.Metrics.ATR,
		Text:      alert.Text,
		CreatedAt: r.now(),
	}
	r.proposals.Set(p.Token, p, cache.DefaultExpiration)
	return p
}

// claim забирает предложение из кэша, чтобы токен исполняется максимум один раз.
func (r *Router) claim(chatID int64, token string) (models.Proposal, error) {
	r.claimMu.Lock()
	defer r.claimMu.Unlock()

	v, ok := r.proposals.Get(token)
	if !ok {
		return models.Proposal{}, ErrProposalExpired
	}
	p := v.(models.Proposal)
	if p.ChatID != chatID {
		return models.Proposal{}, fmt.Errorf("%w: proposal belongs to another chat", models.ErrConfigValidation)
	}
	r.proposals.Delete(token)
	return p, nil
}

// Confirm executes the exact asset, side and action that was proposed to
// this chat.
func (r *Router) Confirm(ctx context.Context, chatID int64, token string) (models.Proposal, string, error) {
	p, err := r.claim(chatID, token)
	if err != nil {
		return models.Proposal{}, "", err
	}
	s, err := r.sessions.Get(chatID)
	if err != nil {
		return p, "", err
	}
	msg, err := s.Execute(ctx, p.Action, p.Asset, p.ATR)
	if err != nil {
		logger.Warn("session %d: confirmed %s %s: %v", chatID, p.Action, p.Asset, err)
		return p, "", err
	}
	return p, msg, nil
}

func (r *Router) Reject(chatID int64, token string) (models.Proposal, error) {
	return r.claim(chatID, token)
}

// Pending is the number of live proposals.
func (r *Router) Pending() int {
	return r.proposals.ItemCount()
}

// ParseCallback splits CONF::/REJ:: data. ok is false for other callbacks.
func ParseCallback(data string) (confirm bool, token string, ok bool) {
	switch {
	case strings.HasPrefix(data, ConfirmPrefix):
		return true, strings.TrimPrefix(data, ConfirmPrefix), true
	case strings.HasPrefix(data, RejectPrefix):
		return false, strings.TrimPrefix(data, RejectPrefix), true
	}
	return false, "", false
}
