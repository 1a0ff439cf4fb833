package models

import "time"

// Alert is a gated signal ready to be dispatched to sessions.
type Alert struct {
	Asset    string        `json:"asset"`
	Action   Action        `json:"action"`
	Side     PositionState `json:"side"`
	Strategy string        `json:"strategy"`
	Reason   string        `json:"reason"`
	Text     string        `json:"text"`
	Metrics  Metrics       `json:"metrics"`
	Plan     *EntryPlan    `json:"plan,omitempty"`
	At       time.Time     `json:"at"`
}

// Choice is one inline button attached to a notification.
type Choice struct {
	Label string
	Data  string
}

// Proposal is a pending COPILOT decision. Confirming it executes exactly this
// asset+side+action triple for exactly this chat.
type Proposal struct {
	Token     string        `json:"token"`
	ChatID    int64         `json:"chat_id"`
	Asset     string        `json:"asset"`
	Action    Action        `json:"action"`
	Side      PositionState `json:"side"`
	ATR       float64       `json:"atr"`
	Text      string        `json:"text"`
	CreatedAt time.Time     `json:"created_at"`
}
