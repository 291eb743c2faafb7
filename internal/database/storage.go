package database

import "time"

// OAuthFlowData is a pending authorization request, keyed by its state.
type OAuthFlowData struct {
	State         string `gorm:"index:idx_oauth_state,unique"`
	PKCEVerifier  string `gorm:"column:pkce_verifier"`
	PKCEChallenge string `gorm:"column:pkce_challenge"`
	PKCEMethod    string `gorm:"column:pkce_method"`
	RedirectURI   string `gorm:"column:redirect_uri"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (OAuthFlowData) TableName() string {
	return "oauth_flow_data"
}
