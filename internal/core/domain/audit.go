package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionIssueRequest   AuditAction = "ISSUE_REQUEST"
	AuditActionAcceptRequest  AuditAction = "ACCEPT_REQUEST"
	AuditActionConfirmReceipt AuditAction = "CONFIRM_RECEIPT"
	AuditActionOfflineLoad    AuditAction = "OFFLINE_LOAD"
	AuditActionOfflineUnload  AuditAction = "OFFLINE_UNLOAD"
	AuditActionDeposit        AuditAction = "DEPOSIT"
	AuditActionRecovery       AuditAction = "RECOVERY"
	AuditActionRejected       AuditAction = "HANDSHAKE_REJECTED"
)

// AuditLog records a single audited action on a local identity.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	IdentityID   string      `json:"identity_id"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

type clientIPKey struct{}

// WithClientIP returns ctx carrying the caller's address for audit records.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFrom returns the address stored by WithClientIP, or "".
func ClientIPFrom(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
