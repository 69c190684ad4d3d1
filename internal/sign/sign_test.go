package sign

import (
	"encoding/hex"
	"strings"
	"testing"
	"time"
)

var (
	testConfig = Config{
		Endpoint: "https://visual.volcengineapi.com",
		Host:     "visual.volcengineapi.com",
		Region:   "cn-north-1",
		Service:  "cv",
	}
	testCreds = Credentials{AccessKey: "AK", SecretKey: "SK"}
	testQuery = map[string]string{"Action": "CVProcess", "Version": "2022-08-31"}

	// 2024-03-01 12:00:00 UTC
	frozen = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func TestCanonicalQuery_Sorted(t *testing.T) {
	// Insertion order must not matter; keys sort ascending.
	got := CanonicalQuery(map[string]string{"Version": "2022-08-31", "Action": "CVProcess"})
	want := "Action=CVProcess&Version=2022-08-31"
	if got != want {
		t.Errorf("CanonicalQuery = %q, want %q", got, want)
	}
}

func TestCanonicalQuery_Empty(t *testing.T) {
	if got := CanonicalQuery(nil); got != "" {
		t.Errorf("CanonicalQuery(nil) = %q, want empty", got)
	}
}

func TestCanonicalQuery_ArbitraryKeys(t *testing.T) {
	got := CanonicalQuery(map[string]string{"b": "2", "a": "1", "c": "3"})
	if got != "a=1&b=2&c=3" {
		t.Errorf("CanonicalQuery = %q, want a=1&b=2&c=3", got)
	}
}

func TestHashedPayload_EmptyBody(t *testing.T) {
	// SHA-256 of the empty string; an empty body is hashed, not omitted.
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := HashedPayload(nil); got != want {
		t.Errorf("HashedPayload(nil) = %q, want %q", got, want)
	}
	if got := HashedPayload([]byte("")); got != want {
		t.Errorf("HashedPayload(\"\") = %q, want %q", got, want)
	}
}

func TestSigningKey_KnownAnswer(t *testing.T) {
	// Independently computed HMAC-SHA256 chain for (SK, 20240301, cn-north-1, cv).
	want := "7235122f8fd95b8f0d8e464c795ddeaee132139f1f3b27fbc88bd71b9627e01d"
	got := hex.EncodeToString(SigningKey("SK", "20240301", "cn-north-1", "cv"))
	if got != want {
		t.Errorf("SigningKey = %s, want %s", got, want)
	}
}

func TestSigningKey_IntermediateSteps(t *testing.T) {
	// Each step keys the next; verify the chain stepwise against reference
	// values so a reordering is caught at the step that diverges.
	kDate := hmacSHA256([]byte("SK"), "20240301")
	if got := hex.EncodeToString(kDate); got != "837d3af0ab31bc2c4c3b5c3ac606053c21f9ec8cd70bb6d2450a3fed9184bc25" {
		t.Fatalf("kDate = %s", got)
	}
	kRegion := hmacSHA256(kDate, "cn-north-1")
	if got := hex.EncodeToString(kRegion); got != "6ad505c8c78aa09b914c53945c70cef6a842818bcb69b433e61ffbc65c61f362" {
		t.Fatalf("kRegion = %s", got)
	}
	kService := hmacSHA256(kRegion, "cv")
	if got := hex.EncodeToString(kService); got != "f7da0d1ea0c4864fa6e475629c832d599a7f35cb93b67e4a67c89654d39e6e98" {
		t.Fatalf("kService = %s", got)
	}
}

func TestSignAt_GoldenAuthorization(t *testing.T) {
	s := New(testConfig, testCreds)
	signed := s.SignAt(frozen, testQuery, []byte(`{"a":1}`))

	wantAuth := "HMAC-SHA256 Credential=AK/20240301/cn-north-1/cv/request, " +
		"SignedHeaders=content-type;host;x-content-sha256;x-date, " +
		"Signature=fe2579d913b97440c7e7094e0b48ca37ae393b9d46b6892f3eeeb6e2c14a8eac"
	if got := signed.Headers["Authorization"]; got != wantAuth {
		t.Errorf("Authorization =\n%s\nwant\n%s", got, wantAuth)
	}
	if got := signed.Headers["X-Date"]; got != "20240301T120000Z" {
		t.Errorf("X-Date = %q", got)
	}
	wantHash := "015abd7f5cc57a2dd94b7590f04ad8084273905ee33ec5cebeae62276a97f862"
	if got := signed.Headers["X-Content-Sha256"]; got != wantHash {
		t.Errorf("X-Content-Sha256 = %q, want %q", got, wantHash)
	}
	if got := signed.Headers["Content-Type"]; got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	wantURL := "https://visual.volcengineapi.com?Action=CVProcess&Version=2022-08-31"
	if signed.URL != wantURL {
		t.Errorf("URL = %q, want %q", signed.URL, wantURL)
	}
}

func TestSignAt_Deterministic(t *testing.T) {
	s := New(testConfig, testCreds)
	first := s.SignAt(frozen, testQuery, []byte(`{"a":1}`))
	for i := 0; i < 5; i++ {
		again := s.SignAt(frozen, testQuery, []byte(`{"a":1}`))
		if again.Headers["Authorization"] != first.Headers["Authorization"] {
			t.Fatalf("run %d produced a different signature", i)
		}
	}
}

func TestSignAt_Sensitivity(t *testing.T) {
	s := New(testConfig, testCreds)
	base := signatureOf(s.SignAt(frozen, testQuery, []byte(`{"a":1}`)))

	cases := []struct {
		name   string
		signed *SignedRequest
	}{
		{"body", s.SignAt(frozen, testQuery, []byte(`{"a":2}`))},
		{"query", s.SignAt(frozen, map[string]string{"Action": "CVProcess", "Version": "2022-09-01"}, []byte(`{"a":1}`))},
		{"timestamp", s.SignAt(frozen.Add(time.Second), testQuery, []byte(`{"a":1}`))},
		{"secret", New(testConfig, Credentials{AccessKey: "AK", SecretKey: "SK2"}).SignAt(frozen, testQuery, []byte(`{"a":1}`))},
	}
	for _, tc := range cases {
		if signatureOf(tc.signed) == base {
			t.Errorf("changing %s did not change the signature", tc.name)
		}
	}
}

func TestSignAt_BodyVariantKnownAnswer(t *testing.T) {
	s := New(testConfig, testCreds)
	signed := s.SignAt(frozen, testQuery, []byte(`{"a":2}`))
	want := "b0a0bb7688764b223095ba4cce32449a72291b3d4d610753eb44dab749142b0a"
	if got := signatureOf(signed); got != want {
		t.Errorf("signature = %s, want %s", got, want)
	}
}

func TestCanonicalRequest_Shape(t *testing.T) {
	headers := canonicalHeaders("visual.volcengineapi.com", "HASH", "20240301T120000Z")
	creq := CanonicalRequest("POST", "/", "Action=CVProcess", headers, SignedHeaders, "HASH")

	lines := strings.Split(creq, "\n")
	// method, path, query, four header lines, blank, signed headers, hash
	if len(lines) != 10 {
		t.Fatalf("canonical request has %d lines, want 10:\n%s", len(lines), creq)
	}
	if lines[0] != "POST" || lines[1] != "/" {
		t.Errorf("method/path lines = %q, %q", lines[0], lines[1])
	}
	if lines[7] != "" {
		t.Errorf("expected blank line between headers and signed headers, got %q", lines[7])
	}
	if lines[8] != SignedHeaders {
		t.Errorf("signed headers line = %q", lines[8])
	}
	if lines[9] != "HASH" {
		t.Errorf("payload hash line = %q", lines[9])
	}
}

func TestSignAt_AlternateDeployment(t *testing.T) {
	// Config is injected, so a different region/service signs with a
	// different scope and key.
	alt := Config{
		Endpoint: "https://example.test",
		Host:     "example.test",
		Region:   "us-east-1",
		Service:  "demo",
	}
	signed := New(alt, testCreds).SignAt(frozen, testQuery, nil)
	if !strings.Contains(signed.Headers["Authorization"], "20240301/us-east-1/demo/request") {
		t.Errorf("scope not derived from injected config: %s", signed.Headers["Authorization"])
	}
	if !strings.HasPrefix(signed.URL, "https://example.test?") {
		t.Errorf("URL not built from injected endpoint: %s", signed.URL)
	}
}

func signatureOf(r *SignedRequest) string {
	auth := r.Headers["Authorization"]
	i := strings.LastIndex(auth, "Signature=")
	if i < 0 {
		return ""
	}
	return auth[i+len("Signature="):]
}
