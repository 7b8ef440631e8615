package git

import (
	gitHttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// BasicAuth creates a go-git BasicAuth credential from an access token, for
// HTTPS clones of private origin repositories where a personal access token
// is used as the password.
// Returns nil if accessToken is empty.
func BasicAuth(accessToken string) *gitHttp.BasicAuth {
	if accessToken == "" {
		return nil
	}
	return &gitHttp.BasicAuth{
		Username: "downstream",
		Password: accessToken,
	}
}
