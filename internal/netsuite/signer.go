package netsuite

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SignatureMethod is the only signature method NetSuite accepts for TBA.
const SignatureMethod = "HMAC-SHA256"

// Credentials are the token-based-authentication secrets for one integration.
type Credentials struct {
	Realm          string
	ConsumerKey    string
	ConsumerSecret string
	TokenID        string
	TokenSecret    string
}

// Signer produces OAuth 1.0a Authorization headers.
type Signer struct {
	creds Credentials
	now   func() time.Time
	nonce func() string
}

// SignerOption customises a Signer.
type SignerOption func(*Signer)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithNonce overrides the nonce source.
func WithNonce(nonce func() string) SignerOption {
	return func(s *Signer) {
		if nonce != nil {
			s.nonce = nonce
		}
	}
}

// NewSigner constructs a Signer for the given credentials.
func NewSigner(creds Credentials, opts ...SignerOption) *Signer {
	s := &Signer{
		creds: creds,
		now:   time.Now,
		nonce: randomNonce,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func randomNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Authorization returns the header value for a single request.
func (s *Signer) Authorization(method, rawURL string) string {
	oauth := map[string]string{
		"oauth_consumer_key":     s.creds.ConsumerKey,
		"oauth_token":            s.creds.TokenID,
		"oauth_signature_method": SignatureMethod,
		"oauth_timestamp":        strconv.FormatInt(s.now().Unix(), 10),
		"oauth_nonce":            s.nonce(),
		"oauth_version":          "1.0",
	}

	params := make(map[string]string, len(oauth))
	for k, v := range oauth {
		params[k] = v
	}
	base := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		for k, vs := range u.Query() {
			if len(vs) > 0 {
				params[k] = vs[0]
			}
		}
		u.RawQuery = ""
		u.Fragment = ""
		base = u.String()
	}

	keys := sortedKeys(params)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, percentEncode(k)+"="+percentEncode(params[k]))
	}
	baseString := strings.ToUpper(method) + "&" + percentEncode(base) + "&" + percentEncode(strings.Join(pairs, "&"))
	signingKey := percentEncode(s.creds.ConsumerSecret) + "&" + percentEncode(s.creds.TokenSecret)

	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write([]byte(baseString))
	oauth["oauth_signature"] = base64.StdEncoding.EncodeToString(mac.Sum(nil))

	var b strings.Builder
	b.WriteString(`OAuth realm="`)
	b.WriteString(s.creds.Realm)
	b.WriteString(`", `)
	for _, k := range sortedKeys(oauth) {
		if k == "oauth_signature" {
			continue
		}
		writeParam(&b, k, oauth[k])
	}
	writeParam(&b, "oauth_signature", oauth["oauth_signature"])
	return strings.TrimSuffix(b.String(), ", ")
}

func writeParam(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteString(`="`)
	b.WriteString(percentEncode(value))
	b.WriteString(`", `)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// percentEncode applies RFC 3986 encoding as OAuth 1.0a requires.
func percentEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
