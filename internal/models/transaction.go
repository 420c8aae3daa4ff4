package models

import "time"

type TransactionKind string

const (
	KindLevelUp      TransactionKind = "level_up"
	KindRoleReward   TransactionKind = "role_reward"
	KindPeerTransfer TransactionKind = "peer_transfer"
	KindAdminGrant   TransactionKind = "admin_grant"
	KindAdminRevoke  TransactionKind = "admin_revoke"
	KindAdminSet     TransactionKind = "admin_set"
)

// Transaction is an immutable audit entry. A nil FromUserID means a
// system-originated credit, a nil ToUserID a system-originated debit.
// Amount is the signed delta applied to the receiving side.
type Transaction struct {
	ID          string          `json:"id"`
	FromUserID  *int64          `json:"from_user_id"`
	ToUserID    *int64          `json:"to_user_id"`
	Amount      int64           `json:"amount"`
	Kind        TransactionKind `json:"kind"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}
