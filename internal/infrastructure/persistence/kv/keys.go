package kv

import "github.com/chorenest/chorenest-engine/internal/domain/shared"

// Key namespaces. Every entity's state hangs off its ID suffix so unrelated
// children and users never share a key.
const (
	CredibilityStatePrefix = "credibility_state_"
	XPBalancePrefix        = "xp_balance_"
	XPTransactionsPrefix   = "xp_transactions_"
	XPGrantsPrefix         = "xp_grants_"
	GuardianPINPrefix      = "guardian_pin_"
)

// CredibilityStateKey returns the key holding a child's full profile.
func CredibilityStateKey(childID shared.ChildID) string {
	return CredibilityStatePrefix + childID.String()
}

// XPBalanceKey returns the key holding a user's balance record.
func XPBalanceKey(userID shared.UserID) string {
	return XPBalancePrefix + userID.String()
}

// XPTransactionsKey returns the key holding a user's transaction log.
func XPTransactionsKey(userID shared.UserID) string {
	return XPTransactionsPrefix + userID.String()
}

// XPGrantsKey returns the key holding a user's direct-grant side ledger.
func XPGrantsKey(userID shared.UserID) string {
	return XPGrantsPrefix + userID.String()
}

// GuardianPINKey returns the key holding a guardian's bcrypt PIN hash.
func GuardianPINKey(guardianID string) string {
	return GuardianPINPrefix + guardianID
}
