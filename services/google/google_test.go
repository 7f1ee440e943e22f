package googlesvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/trezcool/minerva/core"
	"github.com/trezcool/minerva/core/user"
)

func newTestServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm() failed: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": "invalid_grant"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token": "token-123", "token_type": "Bearer", "expires_in": 3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"sub":         "1234567890",
			"email":       "ada@example.com",
			"name":        "Ada Lovelace",
			"given_name":  "Ada",
			"family_name": "Lovelace",
			"picture":     "https://example.com/ada.png",
			"locale":      "en",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAuthenticator_Exchange(t *testing.T) {
	srv := newTestServer(t)

	auth := NewAuthenticator(core.NewTestConfig())
	auth.config.Endpoint = oauth2.Endpoint{TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams}
	auth.userInfoURL = srv.URL + "/userinfo"

	t.Run("valid code", func(t *testing.T) {
		profile, err := auth.Exchange(context.Background(), "good-code")
		require.NoError(t, err)
		assert.Equal(t, user.GoogleProfile{
			Subject:    "1234567890",
			Email:      "ada@example.com",
			Name:       "Ada Lovelace",
			GivenName:  "Ada",
			FamilyName: "Lovelace",
			Picture:    "https://example.com/ada.png",
			Locale:     "en",
		}, profile)
	})

	t.Run("invalid code", func(t *testing.T) {
		_, err := auth.Exchange(context.Background(), "bad-code")
		assert.Equal(t, ErrInvalidCode, err)
	})
}
