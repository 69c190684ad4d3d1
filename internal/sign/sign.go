// Package sign implements the HMAC-SHA256 request signing protocol used by
// the Volcengine visual API. It follows the AWS Signature V4 structure:
// a canonical request is hashed into a string to sign, a per-request key is
// derived from the secret key through a fixed HMAC chain, and the resulting
// signature is embedded in an Authorization header.
package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	// Algorithm is the tag written into the string to sign and the
	// Authorization header.
	Algorithm = "HMAC-SHA256"

	// SignedHeaders lists the headers covered by the signature. The list is
	// lexicographically sorted and must match the canonical headers block
	// exactly.
	SignedHeaders = "content-type;host;x-content-sha256;x-date"

	// scopeSuffix terminates the credential scope and the key derivation
	// chain. The upstream protocol uses "request" where AWS uses
	// "aws4_request".
	scopeSuffix = "request"

	contentType = "application/json"
)

// Credentials holds the access key pair for one signing operation. They are
// supplied per call and never persisted.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// Config carries the fixed constants of a deployment. It is injected rather
// than read from globals so the signer can be tested against alternate
// endpoints and regions.
type Config struct {
	Endpoint string // full endpoint URL, e.g. https://visual.volcengineapi.com
	Host     string // host header value
	Region   string
	Service  string
}

// DefaultConfig returns the production visual API deployment constants.
func DefaultConfig() Config {
	return Config{
		Endpoint: "https://visual.volcengineapi.com",
		Host:     "visual.volcengineapi.com",
		Region:   "cn-north-1",
		Service:  "cv",
	}
}

// SignedRequest is the output of one signing operation: the final request
// URL and the header set the HTTP transport must send verbatim.
type SignedRequest struct {
	URL     string
	Headers map[string]string
}

// Signer produces authorization headers for outbound visual API calls.
// It is stateless apart from its immutable configuration; concurrent use
// is safe.
type Signer struct {
	cfg   Config
	creds Credentials
}

func New(cfg Config, creds Credentials) *Signer {
	return &Signer{cfg: cfg, creds: creds}
}

// Sign signs a POST request against the configured endpoint at the current
// instant, as given by time.Now().
func (s *Signer) Sign(query map[string]string, body []byte) *SignedRequest {
	return s.SignAt(time.Now(), query, body)
}

// SignAt signs a POST request for the given time instant. The clock is read
// exactly once per signing operation; every derived value (timestamp, date
// stamp, scope, key chain) comes from the same instant. The result is
// deterministic for fixed inputs and a fixed t.
func (s *Signer) SignAt(t time.Time, query map[string]string, body []byte) *SignedRequest {
	timestamp := longTime(t)
	dateStamp := timestamp[:8]

	payloadHash := HashedPayload(body)
	queryString := CanonicalQuery(query)
	canonicalHeaders := canonicalHeaders(s.cfg.Host, payloadHash, timestamp)
	canonicalRequest := CanonicalRequest("POST", "/", queryString, canonicalHeaders, SignedHeaders, payloadHash)

	scope := dateStamp + "/" + s.cfg.Region + "/" + s.cfg.Service + "/" + scopeSuffix
	stringToSign := strings.Join([]string{
		Algorithm,
		timestamp,
		scope,
		hashHex([]byte(canonicalRequest)),
	}, "\n")

	key := SigningKey(s.creds.SecretKey, dateStamp, s.cfg.Region, s.cfg.Service)
	signature := hex.EncodeToString(hmacSHA256(key, stringToSign))

	authorization := fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		Algorithm, s.creds.AccessKey, scope, SignedHeaders, signature)

	return &SignedRequest{
		URL: s.cfg.Endpoint + "?" + queryString,
		Headers: map[string]string{
			"X-Date":           timestamp,
			"Authorization":    authorization,
			"X-Content-Sha256": payloadHash,
			"Content-Type":     contentType,
		},
	}
}

// CanonicalQuery serializes query parameters with keys in ascending order,
// joined as key=value pairs with "&". Sorting is applied for any parameter
// set, not just the fixed one used in production. Values are taken as
// supplied; the caller is responsible for any percent-encoding.
func CanonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	return strings.Join(pairs, "&")
}

// canonicalHeaders renders the signed headers block, each header as
// name:value terminated by a newline, in SignedHeaders order.
func canonicalHeaders(host, payloadHash, timestamp string) string {
	var sb strings.Builder
	sb.WriteString("content-type:" + contentType + "\n")
	sb.WriteString("host:" + host + "\n")
	sb.WriteString("x-content-sha256:" + payloadHash + "\n")
	sb.WriteString("x-date:" + timestamp + "\n")
	return sb.String()
}

// CanonicalRequest joins the request components with single newlines. The
// headers block carries its own trailing newline, which yields the blank
// line between it and the signed-header names.
func CanonicalRequest(method, path, query, headers, signedHeaders, payloadHash string) string {
	return strings.Join([]string{method, path, query, headers, signedHeaders, payloadHash}, "\n")
}

// HashedPayload returns the lowercase hex SHA-256 of the raw body bytes.
// An empty body hashes to the digest of the empty string; it is never
// omitted.
func HashedPayload(body []byte) string {
	return hashHex(body)
}

// SigningKey derives the per-request signing key. The four HMAC steps are
// written out in order rather than folded in a loop: each output keys the
// next step and the order is mandated by the protocol.
func SigningKey(secretKey, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte(secretKey), dateStamp)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, scopeSuffix)
}

func hmacSHA256(key []byte, msg string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(msg))
	return h.Sum(nil)
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func longTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}
