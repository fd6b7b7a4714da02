package oauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	// Packages
	client "github.com/mutablelogic/go-client"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	oauth2 "golang.org/x/oauth2"
	clientcredentials "golang.org/x/oauth2/clientcredentials"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// AuthURLCallback is invoked with the authorization URL an interactive login
// must visit (typically to open a browser).
type AuthURLCallback func(authURL string)

// DeviceAuthCallback is invoked with the verification URI and user code a
// device-flow login must display.
type DeviceAuthCallback func(verificationURI, userCode string)

// Provider drives the OAuth 2.1 client flows of spec.md §7 against one MCP
// server. Grounded on the teacher's pkg/httpclient/oauth.go Client.Login,
// generalized from a single named provider to any server whose resource URL
// yields discoverable metadata.
type Provider struct {
	hc          *client.Client
	clientName  string
	resourceURL string
	meta        *Metadata
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewProvider discovers resourceURL's OAuth metadata and returns a Provider
// ready to run a login flow. hc is used for discovery and dynamic client
// registration only; token exchanges go through golang.org/x/oauth2, which
// this Provider threads hc's underlying *http.Client into via context.
func NewProvider(ctx context.Context, hc *client.Client, resourceURL string, clientName string) (*Provider, error) {
	meta, err := DiscoverMetadata(ctx, hc, resourceURL)
	if err != nil {
		return nil, err
	}
	return &Provider{hc: hc, clientName: clientName, resourceURL: resourceURL, meta: meta}, nil
}

// Metadata returns the discovered Authorization Server Metadata.
func (p *Provider) Metadata() *Metadata { return p.meta }

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS — authorization code flow

// NewCallbackListener opens a loopback TCP listener for the authorization
// code callback and returns both it and the redirect URI to register, per
// spec.md §7's requirement that interactive redirect URIs be loopback-only.
func NewCallbackListener(addr string) (net.Listener, string, error) {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, "", fmt.Errorf("invalid callback address %q: %w", addr, err)
	}
	if !isLoopback(host) {
		return nil, "", fmt.Errorf("callback address must be loopback, got %q", host)
	}
	if port == "" {
		return nil, "", fmt.Errorf("callback address %q missing port", addr)
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start callback listener on %s: %w", addr, err)
	}
	return listener, fmt.Sprintf("http://%s/callback", listener.Addr().String()), nil
}

// AuthorizationCodeLogin runs the authorization code flow with PKCE: it
// registers a client if clientID is empty, builds the authorization URL and
// hands it to authURL for display, waits for the callback on listener, and
// exchanges the returned code for a token. The server must support S256 PKCE
// (see PKCE's doc comment); a server that only supports "plain" is rejected
// rather than silently downgraded.
func (p *Provider) AuthorizationCodeLogin(ctx context.Context, clientID string, listener net.Listener, authURL AuthURLCallback, scopes ...string) (*Credentials, error) {
	if !p.meta.SupportsS256() {
		return nil, fmt.Errorf("%s does not support S256 PKCE, refusing to downgrade to plain", p.meta.Issuer)
	}

	redirectURI := fmt.Sprintf("http://%s/callback", listener.Addr().String())
	if clientID == "" {
		info, err := p.register(ctx, []string{redirectURI}, []string{"authorization_code", "refresh_token"}, []string{"code"})
		if err != nil {
			return nil, err
		}
		clientID = info.ClientID
	}

	cfg := &oauth2.Config{ClientID: clientID, Endpoint: p.meta.Endpoint(), RedirectURL: redirectURI, Scopes: scopes}
	pkce := NewPKCE()
	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}

	authURL(cfg.AuthCodeURL(state, pkce.ChallengeOption()))

	code, err := waitForCallback(ctx, listener, state)
	if err != nil {
		return nil, err
	}

	token, err := cfg.Exchange(p.oauthContext(ctx), code, pkce.ExchangeOption())
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	return p.credentials(token, clientID), nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS — device flow

// DeviceLogin runs the device authorization flow (RFC 8628): it displays a
// verification URI and user code via callback, then polls the token
// endpoint until the user completes the flow elsewhere.
func (p *Provider) DeviceLogin(ctx context.Context, clientID string, callback DeviceAuthCallback, scopes ...string) (*Credentials, error) {
	if !p.meta.SupportsDeviceFlow() {
		return nil, fmt.Errorf("%s does not support the device authorization flow", p.meta.Issuer)
	}
	if clientID == "" {
		info, err := p.register(ctx, nil, []string{"urn:ietf:params:oauth:grant-type:device_code", "refresh_token"}, nil)
		if err != nil {
			return nil, err
		}
		clientID = info.ClientID
	}

	cfg := &oauth2.Config{ClientID: clientID, Endpoint: p.meta.Endpoint(), Scopes: scopes}
	deviceResp, err := cfg.DeviceAuth(p.oauthContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("device code request failed: %w", err)
	}
	callback(deviceResp.VerificationURI, deviceResp.UserCode)

	token, err := cfg.DeviceAccessToken(p.oauthContext(ctx), deviceResp)
	if err != nil {
		return nil, fmt.Errorf("device token exchange failed: %w", err)
	}
	return p.credentials(token, clientID), nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS — client credentials flow

// ClientCredentialsLogin runs the client credentials grant. Pass assertion
// to authenticate with a signed JWT (RFC 7523) instead of clientSecret; the
// two are mutually exclusive.
func (p *Provider) ClientCredentialsLogin(ctx context.Context, clientID, clientSecret string, assertion *JWTAssertion, scopes ...string) (*Credentials, error) {
	if !p.meta.SupportsGrantType("client_credentials") {
		return nil, fmt.Errorf("%s does not support the client_credentials grant", p.meta.Issuer)
	}
	cfg := &clientcredentials.Config{ClientID: clientID, ClientSecret: clientSecret, TokenURL: p.meta.TokenEndpoint, Scopes: scopes}
	if assertion != nil {
		if err := assertion.Apply(cfg); err != nil {
			return nil, err
		}
	} else if clientSecret == "" {
		return nil, fmt.Errorf("client_credentials flow requires clientSecret or a JWTAssertion")
	}
	token, err := cfg.Token(p.oauthContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("client credentials exchange failed: %w", err)
	}
	return p.credentials(token, clientID), nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS — refresh

// Refresh exchanges creds' refresh token for a new access token. If force is
// false and the current token still has more than 30 seconds of validity,
// creds is returned unchanged.
func (p *Provider) Refresh(ctx context.Context, creds *Credentials, force bool) (*Credentials, error) {
	if creds.RefreshToken == "" {
		return nil, fmt.Errorf("credentials have no refresh token")
	}
	if !force && !creds.Expiry.IsZero() && time.Until(creds.Expiry) > 30*time.Second {
		return creds, nil
	}
	cfg := &oauth2.Config{ClientID: creds.ClientID, Endpoint: oauth2.Endpoint{TokenURL: creds.TokenURL}}
	expired := *creds.Token
	expired.Expiry = time.Now().Add(-time.Minute)
	newToken, err := cfg.TokenSource(p.oauthContext(ctx), &expired).Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	return p.credentials(newToken, creds.ClientID), nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (p *Provider) register(ctx context.Context, redirectURIs, grantTypes, responseTypes []string) (*ClientInfo, error) {
	if p.clientName == "" {
		return nil, fmt.Errorf("dynamic client registration requires a client name")
	}
	info, err := Register(ctx, p.hc, p.meta, ClientRegistration{
		ClientName:              p.clientName,
		RedirectURIs:            redirectURIs,
		GrantTypes:              grantTypes,
		ResponseTypes:           responseTypes,
		TokenEndpointAuthMethod: "none",
	})
	if err != nil {
		return nil, fmt.Errorf("dynamic client registration failed (register manually and pass a client id instead): %w", err)
	}
	return info, nil
}

func (p *Provider) credentials(token *oauth2.Token, clientID string) *Credentials {
	return &Credentials{Token: token, ClientID: clientID, Endpoint: p.resourceURL, TokenURL: p.meta.TokenEndpoint}
}

// oauthContext injects hc's underlying *http.Client so token exchanges ride
// the same transport (proxy, TLS config, timeouts) as discovery requests.
func (p *Provider) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.hc.Client)
}

func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

///////////////////////////////////////////////////////////////////////////////
// CALLBACK SERVER

type callbackResult struct {
	code string
	err  error
}

// waitForCallback starts a one-shot HTTP server on listener, waits for the
// authorization redirect carrying the expected state, and returns the code.
func waitForCallback(ctx context.Context, listener net.Listener, expectedState string) (string, error) {
	resultCh := make(chan callbackResult, 1)
	var once sync.Once
	send := func(r callbackResult) { once.Do(func() { resultCh <- r }) }

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != expectedState {
			send(callbackResult{err: fmt.Errorf("state mismatch")})
			_ = httpresponse.Error(w, httpresponse.ErrBadRequest.With("state mismatch"))
			return
		}
		if errParam := q.Get("error"); errParam != "" {
			send(callbackResult{err: fmt.Errorf("authorization error: %s: %s", errParam, q.Get("error_description"))})
			_ = httpresponse.Error(w, httpresponse.ErrBadRequest.With(q.Get("error_description")))
			return
		}
		code := q.Get("code")
		if code == "" {
			send(callbackResult{err: fmt.Errorf("no authorization code received")})
			_ = httpresponse.Error(w, httpresponse.ErrBadRequest.With("no authorization code received"))
			return
		}
		send(callbackResult{code: code})
		_ = httpresponse.JSON(w, http.StatusOK, 0, map[string]string{"status": "ok", "message": "authorization complete, you can close this window"})
	})

	srv := &http.Server{Handler: mux}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			send(callbackResult{err: fmt.Errorf("callback server failed: %w", err)})
		}
	}()

	var result callbackResult
	select {
	case <-ctx.Done():
		result = callbackResult{err: ctx.Err()}
	case result = <-resultCh:
	}

	_ = srv.Shutdown(context.Background())
	wg.Wait()

	if result.err != nil {
		return "", result.err
	}
	return result.code, nil
}
