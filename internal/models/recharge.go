package models

import "time"

type RechargeStatus string

const (
	RechargePending  RechargeStatus = "pending"
	RechargeApproved RechargeStatus = "approved"
	RechargeRejected RechargeStatus = "rejected"
)

type RechargeRequest struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Username    string         `json:"username"`
	Amount      float64        `json:"amount"`
	Method      string         `json:"method"`
	Status      RechargeStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
}
