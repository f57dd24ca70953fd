package auth

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aapmcp/openapi-mcp/pkg/registry"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	// JWTHeaderName carries gateway-issued JWTs.
	JWTHeaderName = registry.JWTHeaderName
	JWTAudience   = "ansible-services"
	JWTIssuer     = "ansible-issuer"

	jwtKeyPath = "api/gateway/v1/jwt_key/"
)

type userData struct {
	Username string `json:"username"`
}

type aapClaims struct {
	UserData *userData `json:"user_data"`
	jwt.RegisteredClaims
}

// JWTValidator verifies RS256 tokens signed by the AAP gateway.
type JWTValidator struct {
	serverURL  string
	verifyCert bool
	keys       *KeyCache
	client     *http.Client
	logger     *zap.Logger
	observer   Observer
}

// JWTValidatorOption configures a JWTValidator.
type JWTValidatorOption func(*JWTValidator)

// WithKeyCache shares a key cache between validators.
func WithKeyCache(c *KeyCache) JWTValidatorOption {
	return func(v *JWTValidator) { v.keys = c }
}

// WithHTTPClient overrides the client used to fetch keys.
func WithHTTPClient(c *http.Client) JWTValidatorOption {
	return func(v *JWTValidator) { v.client = c }
}

func WithLogger(l *zap.Logger) JWTValidatorOption {
	return func(v *JWTValidator) {
		if l != nil {
			v.logger = l.Named("jwt")
		}
	}
}

func WithObserver(o Observer) JWTValidatorOption {
	return func(v *JWTValidator) { v.observer = o }
}

// NewJWTValidator returns a validator for tokens issued by serverURL.
func NewJWTValidator(serverURL string, verifyCert bool, opts ...JWTValidatorOption) *JWTValidator {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: !verifyCert} //nolint:gosec // configurable for self-signed AAP installs
	v := &JWTValidator{
		serverURL:  serverURL,
		verifyCert: verifyCert,
		client:     &http.Client{Timeout: 30 * time.Second, Transport: transport},
		logger:     zap.NewNop(),
		observer:   nopObserver{},
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.keys == nil {
		v.keys = NewKeyCache(DefaultKeyCacheTTL, DefaultKeyCacheSize)
	}
	return v
}

func (v *JWTValidator) Name() string { return "jwt" }

// KeyURL is the endpoint serving the gateway's PEM encoded public key.
func (v *JWTValidator) KeyURL() (string, error) {
	base, err := url.Parse(v.serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid authentication server url %q: %w", v.serverURL, err)
	}
	ref, _ := url.Parse(jwtKeyPath)
	return base.ResolveReference(ref).String(), nil
}

func (v *JWTValidator) Validate(ctx context.Context, r *http.Request) (*Identity, error) {
	value := r.Header.Get(JWTHeaderName)
	if value == "" {
		return nil, nil
	}

	keyPEM, err := v.decryptionKey(ctx)
	if err != nil {
		v.logger.Error("failed to get the jwt public key", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrKeyFetchFailed, err)
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(keyPEM))
	if err != nil {
		v.logger.Error("failed to parse the jwt public key", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrKeyFetchFailed, err)
	}

	claims := &aapClaims{}
	_, err = jwt.ParseWithClaims(value, claims, func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(JWTAudience),
		jwt.WithIssuer(JWTIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		v.logger.Error("failed to decode jwt token", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserData == nil {
		return nil, fmt.Errorf("%w: token is missing the user_data claim", ErrInvalidToken)
	}

	return &Identity{
		Principal:   claims.UserData.Username,
		HeaderName:  JWTHeaderName,
		HeaderValue: value,
		ServerURL:   v.serverURL,
		VerifyCert:  v.verifyCert,
	}, nil
}

func (v *JWTValidator) decryptionKey(ctx context.Context) (string, error) {
	keyURL, err := v.KeyURL()
	if err != nil {
		return "", err
	}
	return v.keys.GetOrFetch(ctx, keyURL, v.fetchKey)
}

func (v *JWTValidator) fetchKey(ctx context.Context, keyURL string) (string, error) {
	v.logger.Debug("calling authentication server", zap.String("url", keyURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, keyURL, nil)
	if err != nil {
		v.observer.KeyFetch("error")
		return "", err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		v.observer.KeyFetch("error")
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		v.observer.KeyFetch("error")
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		v.observer.KeyFetch("error")
		return "", fmt.Errorf("failed to retrieve decryption key from AAP: %s", resp.Status)
	}
	v.observer.KeyFetch("success")
	return string(body), nil
}
