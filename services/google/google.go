// Package googlesvc logs users in with their Google account.
package googlesvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/trezcool/minerva/core"
	"github.com/trezcool/minerva/core/user"
)

const userInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

var ErrInvalidCode = errors.New("invalid Google authorization code")

type authenticator struct {
	config      *oauth2.Config
	userInfoURL string
	timeout     time.Duration
}

var _ user.GoogleAuthenticator = (*authenticator)(nil)

func NewAuthenticator(conf *core.Config) *authenticator {
	return &authenticator{
		config: &oauth2.Config{
			ClientID:     conf.Google.ClientID,
			ClientSecret: conf.Google.ClientSecret,
			RedirectURL:  conf.Google.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: userInfoURL,
		timeout:     10 * time.Second,
	}
}

// Exchange trades code for a token, then fetches the OpenID profile of its owner.
// Rejected codes yield ErrInvalidCode.
func (a *authenticator) Exchange(ctx context.Context, code string) (user.GoogleProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) {
			return user.GoogleProfile{}, ErrInvalidCode
		}
		return user.GoogleProfile{}, pkgerrors.Wrap(err, "exchanging code")
	}

	res, err := a.config.Client(ctx, token).Get(a.userInfoURL)
	if err != nil {
		return user.GoogleProfile{}, pkgerrors.Wrap(err, "fetching user info")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return user.GoogleProfile{}, fmt.Errorf("fetching user info - status: %d", res.StatusCode)
	}

	var profile user.GoogleProfile
	if err = json.NewDecoder(res.Body).Decode(&profile); err != nil {
		return user.GoogleProfile{}, pkgerrors.Wrap(err, "decoding user info")
	}
	return profile, nil
}
