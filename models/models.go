package models

import "time"

type Status string

const (
	StatusPending   Status = "pending"   // platform checks passed, no executable channel yet
	StatusConfirmed Status = "confirmed" // account can run game commands
)

// ExecChannel identifies which candidate channel an account may run commands in.
type ExecChannel string

const (
	ChannelGeneral  ExecChannel = "general"
	ChannelFallback ExecChannel = "fallback"
	ChannelNone     ExecChannel = "none"
)

type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ProfileStats struct {
	Played       int     `json:"played"`
	Wins         int     `json:"wins"`
	WinRate      float64 `json:"winRate"`
	BadgesEarned int     `json:"badgesEarned"`
}

// Account is one chat-platform identity under automation. Accounts are owned
// exclusively by the storage.Store; everything else holds transient copies.
type Account struct {
	ID          string `json:"id"`
	Token       string `json:"token"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`

	Roles []Role       `json:"roles"`
	Stats ProfileStats `json:"stats"`

	Status            Status      `json:"status"`
	ExecutableChannel ExecChannel `json:"executableChannel"`

	FailureCount int    `json:"failureCount,omitempty"`
	LastError    string `json:"lastError,omitempty"`
}

// HasRole reports whether the account holds the given role id.
func (a *Account) HasRole(roleID string) bool {
	for _, r := range a.Roles {
		if r.ID == roleID {
			return true
		}
	}
	return false
}

// SpecialRoles returns the subset of the account's roles whose ids appear in
// the configured special-role set.
func (a *Account) SpecialRoles(specialIDs []string) []Role {
	var out []Role
	for _, r := range a.Roles {
		for _, id := range specialIDs {
			if r.ID == id {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// AccountsStorage is the persisted envelope. Account ids are unique within
// the sequence; storage.Load enforces this.
type AccountsStorage struct {
	Accounts    []Account `json:"accounts"`
	LastUpdated string    `json:"lastUpdated"`
	Version     string    `json:"version"`
}

// GameInfo is parsed from one bot reply and never persisted.
type GameInfo struct {
	GameID     string
	PlayURL    string
	Title      string
	CapturedAt time.Time
}

// GameStats is the submission payload manufactured per game. Moves and
// efficiency are constants; Duration is randomized to vary submissions.
type GameStats struct {
	Moves      int        `json:"moves"`
	Efficiency int        `json:"efficiency"`
	Solution   [8][8]bool `json:"solution"`
	Duration   string     `json:"duration"`
}

type ErrorType string

const (
	ErrorNone           ErrorType = ""
	ErrorRateLimit      ErrorType = "RATE_LIMIT"
	ErrorBotRestriction ErrorType = "BOT_RESTRICTION"
	ErrorInvalidReply   ErrorType = "INVALID_RESPONSE"
)

// Classification is the structured result of inspecting one bot reply.
type Classification struct {
	IsRateLimited      bool
	IsAccessRestricted bool
	HasValidResponse   bool
	ErrorType          ErrorType
	RequiredRole       string // bot-stated role name when restricted
	UserRole           string // caller's own matching special role name
}

// TransactionResult holds the success markers parsed from the wallet CLI output.
type TransactionResult struct {
	Status       string
	Digest       string
	ExplorerLink string
	ProofBlobID  string
}
