package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubAPI = "https://api.github.com"

// GitHubUser is the GitHub account that finished the sign-in dance.
//
// GitHub sign-in never creates participants. The account's verified emails
// are matched against the registry, so only people the admin added get in.
type GitHubUser struct {
	ID     int64    `json:"id"`
	Login  string   `json:"login"`
	Email  string   `json:"email"` // public email, often empty
	Emails []string `json:"-"`     // verified addresses, primary first
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// GitHubProvider runs the authorization-code flow against GitHub.
//
// The handler redirects to AuthURL with a random state kept in a cookie.
// GitHub calls back with ?code&state; the handler checks the state and hands
// the code to Exchange, which swaps it for a token server-side and reads the
// account's emails. The token is used for those two calls and then dropped.
type GitHubProvider struct {
	config  *oauth2.Config
	apiBase string
}

// NewGitHubProvider configures sign-in for one registered GitHub OAuth app.
// callbackURL must equal the app's "Authorization callback URL".
//
// Scopes: read:user for the profile, user:email for private addresses.
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiBase: githubAPI,
	}
}

// AuthURL is where the browser goes to approve the app.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the callback code for the GitHub account behind it.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging GitHub code: %w", err)
	}
	client := p.config.Client(ctx, tok)

	var user GitHubUser
	if err := p.getJSON(ctx, client, "/user", &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned a user without an id")
	}

	var all []githubEmail
	if err := p.getJSON(ctx, client, "/user/emails", &all); err != nil {
		return nil, err
	}
	user.Emails = verifiedEmails(all)
	if len(user.Emails) == 0 && user.Email != "" {
		user.Emails = []string{user.Email}
	}
	return &user, nil
}

func (p *GitHubProvider) getJSON(ctx context.Context, client *http.Client, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("auth: building GitHub %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("auth: calling GitHub %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: GitHub %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("auth: decoding GitHub %s: %w", path, err)
	}
	return nil
}

// verifiedEmails keeps verified addresses, primary first.
func verifiedEmails(all []githubEmail) []string {
	var primary, rest []string
	for _, e := range all {
		switch {
		case !e.Verified:
		case e.Primary:
			primary = append(primary, e.Email)
		default:
			rest = append(rest, e.Email)
		}
	}
	return append(primary, rest...)
}
