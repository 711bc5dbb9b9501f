package models

import "time"

// Account is the record-store row for one user. RefreshToken is never
// serialized so cached snapshots cannot leak or resurrect a session.
type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PassHash     string    `json:"password_hash"`
	Confirmed    bool      `json:"confirmed"`
	TOTPSecret   string    `json:"totp_secret,omitempty"`
	Avatar       string    `json:"avatar,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	RefreshToken *string   `json:"-"`
}

func (a *Account) TwoFactorEnabled() bool {
	return a.TOTPSecret != ""
}

const (
	PurposeEmailConfirm  = "email_confirm"
	PurposePasswordReset = "password_reset"
)

// Message is the payload published to the email queue.
type Message struct {
	ID       string `json:"id"`
	Email    string `json:"to"`
	Username string `json:"username"`
	Link     string `json:"link"`
	Purpose  string `json:"purpose"`
}
