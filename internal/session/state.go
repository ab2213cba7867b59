package session

import "github.com/angelmondragon/buildmatch-client/pkg/apiclient"

// State is the authenticated/anonymous session. An empty AuthToken or
// ErrorMessage means none is set.
type State struct {
	CurrentUser     *apiclient.User
	AuthToken       string
	IsAuthenticated bool
	IsLoading       bool
	ErrorMessage    string
}

// Persisted is the durable part of State. Loading and error flags are never stored.
type Persisted struct {
	CurrentUser     *apiclient.User `json:"current_user,omitempty"`
	AuthToken       string          `json:"auth_token,omitempty"`
	IsAuthenticated bool            `json:"is_authenticated"`
}

func (s State) clone() State {
	if s.CurrentUser != nil {
		user := *s.CurrentUser
		s.CurrentUser = &user
	}
	return s
}

func authenticated(user *apiclient.User, token string) State {
	return State{
		CurrentUser:     user,
		AuthToken:       token,
		IsAuthenticated: user != nil && token != "",
	}
}
