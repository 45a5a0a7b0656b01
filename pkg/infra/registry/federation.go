package registry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

const (
	grantTypeTokenExchange = "urn:ietf:params:oauth:grant-type:token-exchange"
	subjectTokenTypeJWT    = "urn:ietf:params:oauth:token-type:jwt"

	// DefaultUsername is the login user paired with an exchanged access token
	DefaultUsername = "oauth2accesstoken"

	assertionLifetime = 5 * time.Minute
)

type federationSource struct {
	httpClient *http.Client
	registry   string
	tokenURL   string
	clientID   string
	audience   string
	username   string
	signKey    jwk.Key
}

// FederationOption is a functional option for the federation source
type FederationOption func(*federationSource)

// WithHTTPClient replaces the HTTP client used for the token exchange
func WithHTTPClient(c *http.Client) FederationOption {
	return func(x *federationSource) {
		x.httpClient = c
	}
}

// WithUsername sets the registry login user paired with exchanged tokens
func WithUsername(username string) FederationOption {
	return func(x *federationSource) {
		x.username = username
	}
}

// NewFederation creates a credential source that signs a client assertion
// with the given private key and exchanges it for a short-lived registry
// access token
func NewFederation(registryHost, tokenURL, clientID, audience string, privateKeyPEM []byte, opts ...FederationOption) (interfaces.CredentialSource, error) {
	key, err := jwk.ParseKey(privateKeyPEM, jwk.WithPEM(true))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse federation private key", goerr.T(types.ErrTagConfig))
	}

	x := &federationSource{
		httpClient: http.DefaultClient,
		registry:   registryHost,
		tokenURL:   tokenURL,
		clientID:   clientID,
		audience:   audience,
		username:   DefaultUsername,
		signKey:    key,
	}
	for _, opt := range opts {
		opt(x)
	}

	return x, nil
}

// Credential performs the token exchange and returns a registry login
func (x *federationSource) Credential(ctx context.Context) (*model.RegistryCredential, error) {
	logger := ctxlog.From(ctx)

	assertion, err := x.signAssertion()
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"grant_type":         {grantTypeTokenExchange},
		"subject_token_type": {subjectTokenTypeJWT},
		"subject_token":      {assertion},
		"audience":           {x.audience},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build token exchange request", goerr.T(types.ErrTagAuth))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "token exchange request failed",
			goerr.V("token_url", x.tokenURL),
			goerr.T(types.ErrTagAuth))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read token exchange response", goerr.T(types.ErrTagAuth))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("token exchange rejected",
			goerr.V("status_code", resp.StatusCode),
			goerr.V("response", string(body)),
			goerr.T(types.ErrTagAuth))
	}

	var token struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, goerr.Wrap(err, "failed to decode token exchange response", goerr.T(types.ErrTagAuth))
	}
	if token.AccessToken == "" {
		return nil, goerr.New("token exchange response has no access token", goerr.T(types.ErrTagAuth))
	}

	logger.Debug("Exchanged federation token",
		"registry", x.registry,
		"expires_in", token.ExpiresIn,
	)

	return &model.RegistryCredential{
		Registry:  x.registry,
		Username:  x.username,
		Secret:    token.AccessToken,
		ExpiresAt: time.Now().Add(time.Duration(token.ExpiresIn) * time.Second),
	}, nil
}

// signAssertion builds and signs the client assertion JWT
func (x *federationSource) signAssertion() (string, error) {
	now := time.Now()

	token, err := jwt.NewBuilder().
		Issuer(x.clientID).
		Subject(x.clientID).
		Audience([]string{x.audience}).
		IssuedAt(now).
		Expiration(now.Add(assertionLifetime)).
		JwtID(uuid.NewString()).
		Build()
	if err != nil {
		return "", goerr.Wrap(err, "failed to build client assertion", goerr.T(types.ErrTagAuth))
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, x.signKey))
	if err != nil {
		return "", goerr.Wrap(err, "failed to sign client assertion", goerr.T(types.ErrTagAuth))
	}

	return string(signed), nil
}
