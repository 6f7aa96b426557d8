package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const gitHubAPI = "https://api.github.com"

// GitHubUser is the portion of the GitHub /user response we use.
type GitHubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type gitHubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// GitHubProvider runs the authorization code flow against GitHub.
type GitHubProvider struct {
	config  *oauth2.Config
	apiBase string
}

func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiBase: gitHubAPI,
	}
}

// Enabled reports whether client credentials are configured.
func (p *GitHubProvider) Enabled() bool {
	return p != nil && p.config.ClientID != "" && p.config.ClientSecret != ""
}

// AuthURL returns the GitHub consent URL carrying state.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades code for the caller's GitHub profile. GitHub omits the
// email when it is private, so the primary verified address is fetched
// separately.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*FederatedIdentity, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging GitHub code: %w", err)
	}
	client := p.config.Client(ctx, tok)

	var gh GitHubUser
	if err := getJSON(ctx, client, p.apiBase+"/user", &gh); err != nil {
		return nil, err
	}
	if gh.ID == 0 {
		return nil, errors.New("auth: GitHub returned an invalid user (ID = 0)")
	}

	verified := false
	if gh.Email == "" {
		var emails []gitHubEmail
		if err := getJSON(ctx, client, p.apiBase+"/user/emails", &emails); err != nil {
			return nil, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				gh.Email, verified = e.Email, true
				break
			}
		}
	}
	if gh.Email == "" {
		return nil, errors.New("auth: GitHub account has no verified email")
	}

	name := gh.Name
	if name == "" {
		name = gh.Login
	}
	return &FederatedIdentity{
		Provider:      ProviderGitHub,
		UID:           strconv.FormatInt(gh.ID, 10),
		Email:         gh.Email,
		EmailVerified: verified,
		Name:          name,
		Picture:       gh.AvatarURL,
	}, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("auth: calling GitHub %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: GitHub %s returned status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("auth: decoding GitHub %s: %w", url, err)
	}
	return nil
}
