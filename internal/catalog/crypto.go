// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"os"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/sha3"

	"github.com/aleopantest/aleopantest/internal/tools"
)

// =============================================================================
// HASH GENERATOR
// =============================================================================

// HashResult is one digest.
type HashResult struct {
	Algorithm string `json:"algorithm"`
	Hash      string `json:"hash"`
	Input     string `json:"input"`
}

func (HashResult) Kind() string { return "hash" }

// HashAlgorithms lists the digests hash-gen can compute, in display order.
var HashAlgorithms = []string{"md5", "sha1", "sha256", "sha512", "sha3-256", "sha3-512", "bcrypt"}

var hashers = map[string]func() hash.Hash{
	"md5":      md5.New,
	"sha1":     sha1.New,
	"sha256":   sha256.New,
	"sha512":   sha512.New,
	"sha3-256": sha3.New256,
	"sha3-512": sha3.New512,
}

type hashGenTool struct {
	*tools.Base
}

func newHashGen() *hashGenTool {
	return &hashGenTool{Base: tools.NewBase(tools.Metadata{
		Name:        "Hash Generator",
		Version:     "1.1",
		Author:      Author,
		Description: "Compute MD5, SHA-1, SHA-2, SHA-3 and bcrypt digests of text or a file",
		Usage:       "run hash-gen --text <value> [--algorithm all|sha256|bcrypt ...] [--file-path path]",
		Example:     "run hash-gen --text secret --algorithm sha3-256",
		Category:    tools.CategoryCrypto,
		Tags:        []string{"hash", "crypto", "offline"},
		RiskLevel:   tools.RiskLow,
		Parameters: map[string]string{
			"text":        "Input text",
			"file_path":   "Hash this file instead of text",
			"algorithm":   "Digest to compute (default all)",
			"bcrypt_cost": "bcrypt work factor",
		},
		FormSchema: []tools.Field{
			{Name: "text", Label: "Text", Type: tools.FieldTextarea},
			{Name: "file_path", Label: "File", Type: tools.FieldText},
			{Name: "algorithm", Label: "Algorithm", Type: tools.FieldSelect, Default: "all",
				Options: append([]string{"all"}, HashAlgorithms...)},
			{Name: "bcrypt_cost", Label: "bcrypt cost", Type: tools.FieldNumber, Default: bcrypt.DefaultCost,
				Min: tools.Bound(float64(bcrypt.MinCost)), Max: tools.Bound(16), Group: "advanced"},
		},
	})}
}

func (t *hashGenTool) Validate(p tools.Params) error {
	if !p.Has("text") && !p.Has("file_path") {
		return &tools.ValidationError{Param: "text", Message: "provide text or file_path"}
	}
	return nil
}

func (t *hashGenTool) Run(_ context.Context, p tools.Params) error {
	data := []byte(p.String("text"))
	label := p.String("text")
	if path := p.String("file_path"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return tools.NewValidation("file_path: %v", err)
		}
		data, label = raw, path
	}

	algos := HashAlgorithms
	if a := strings.ToLower(p.String("algorithm")); a != "" && a != "all" {
		algos = []string{a}
	}
	for _, algo := range algos {
		digest, err := Digest(algo, data, p.Int("bcrypt_cost", bcrypt.DefaultCost))
		if err != nil {
			t.AddError(err.Error())
			continue
		}
		t.AddResult(HashResult{Algorithm: algo, Hash: digest, Input: label})
	}
	if algos[0] == "md5" || algos[0] == "sha1" {
		t.AddWarning("MD5 and SHA-1 are broken for collision resistance; use them for fingerprinting only")
	}
	return nil
}

// Digest computes one named digest. bcrypt inputs longer than 72 bytes are
// rejected by bcrypt itself.
func Digest(algo string, data []byte, bcryptCost int) (string, error) {
	if algo == "bcrypt" {
		out, err := bcrypt.GenerateFromPassword(data, bcryptCost)
		if err != nil {
			return "", fmt.Errorf("bcrypt: %w", err)
		}
		return string(out), nil
	}
	newHash, ok := hashers[algo]
	if !ok {
		return "", fmt.Errorf("unknown algorithm %q", algo)
	}
	h := newHash()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// =============================================================================
// JWT DECODER
// =============================================================================

// JWTInfo is the jwt-decode finding.
type JWTInfo struct {
	Header    map[string]any `json:"header"`
	Payload   map[string]any `json:"payload"`
	Algorithm string         `json:"algorithm"`
	ExpiresAt string         `json:"expires_at,omitempty"`
	Expired   bool           `json:"expired"`
	Signed    bool           `json:"signed"`
	Verified  *bool          `json:"signature_valid,omitempty"`
}

func (JWTInfo) Kind() string { return "jwt" }

type jwtDecodeTool struct {
	*tools.Base
}

func newJWTDecode() *jwtDecodeTool {
	return &jwtDecodeTool{Base: tools.NewBase(tools.Metadata{
		Name:        "JWT Decoder",
		Version:     "1.0",
		Author:      Author,
		Description: "Decode a JSON Web Token, flag weak settings and optionally verify an HMAC signature",
		Usage:       "run jwt-decode --token <jwt> [--secret key]",
		Example:     "run jwt-decode --token eyJhbGciOi...",
		Category:    tools.CategoryCrypto,
		Tags:        []string{"jwt", "token", "offline"},
		RiskLevel:   tools.RiskLow,
		Parameters: map[string]string{
			"token":  "Encoded JWT",
			"secret": "HMAC secret for HS256/HS384/HS512 verification",
		},
		FormSchema: []tools.Field{
			{Name: "token", Label: "Token", Type: tools.FieldTextarea, Required: true},
			{Name: "secret", Label: "Secret", Type: tools.FieldPassword},
		},
	})}
}

func (t *jwtDecodeTool) Validate(p tools.Params) error {
	if strings.Count(p.String("token"), ".") != 2 {
		return &tools.ValidationError{Param: "token", Message: "expected three dot-separated segments"}
	}
	return nil
}

func (t *jwtDecodeTool) Run(_ context.Context, p tools.Params) error {
	info, err := DecodeJWT(p.String("token"), time.Now())
	if err != nil {
		return tools.NewValidation("token: %v", err)
	}
	if secret := p.String("secret"); secret != "" {
		ok, err := VerifyHMAC(p.String("token"), info.Algorithm, []byte(secret))
		if err != nil {
			t.AddWarning(err.Error())
		} else {
			info.Verified = &ok
		}
	}

	switch {
	case strings.EqualFold(info.Algorithm, "none"):
		t.AddWarning("Token uses alg=none: signature is not checked")
	case !info.Signed:
		t.AddWarning("Token carries no signature")
	}
	if info.Expired {
		t.AddWarning("Token expired at " + info.ExpiresAt)
	}
	if info.ExpiresAt == "" {
		t.AddWarning("Token has no exp claim")
	}
	t.AddResult(info)
	return nil
}

// DecodeJWT decodes the header and payload without verifying.
func DecodeJWT(token string, now time.Time) (JWTInfo, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 {
		return JWTInfo{}, fmt.Errorf("expected 3 segments, got %d", len(parts))
	}
	var info JWTInfo
	if err := decodeSegment(parts[0], &info.Header); err != nil {
		return JWTInfo{}, fmt.Errorf("header: %w", err)
	}
	if err := decodeSegment(parts[1], &info.Payload); err != nil {
		return JWTInfo{}, fmt.Errorf("payload: %w", err)
	}
	info.Algorithm, _ = info.Header["alg"].(string)
	info.Signed = parts[2] != ""

	if exp, ok := info.Payload["exp"].(float64); ok {
		at := time.Unix(int64(exp), 0).UTC()
		info.ExpiresAt = at.Format(time.RFC3339)
		info.Expired = now.After(at)
	}
	return info, nil
}

func decodeSegment(seg string, out *map[string]any) error {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(seg, "="))
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// VerifyHMAC checks an HS256/HS384/HS512 signature.
func VerifyHMAC(token, alg string, secret []byte) (bool, error) {
	var newHash func() hash.Hash
	switch strings.ToUpper(alg) {
	case "HS256":
		newHash = sha256.New
	case "HS384":
		newHash = sha512.New384
	case "HS512":
		newHash = sha512.New
	default:
		return false, fmt.Errorf("cannot verify %s signatures with a shared secret", alg)
	}
	token = strings.TrimSpace(token)
	i := strings.LastIndex(token, ".")
	sig, err := base64.RawURLEncoding.DecodeString(token[i+1:])
	if err != nil {
		return false, fmt.Errorf("signature: %w", err)
	}
	mac := hmac.New(newHash, secret)
	mac.Write([]byte(token[:i]))
	return hmac.Equal(sig, mac.Sum(nil)), nil
}

// =============================================================================
// TOTP GENERATOR
// =============================================================================

// TOTPResult is the totp-gen finding.
type TOTPResult struct {
	Issuer      string `json:"issuer"`
	Account     string `json:"account"`
	Secret      string `json:"secret"`
	OTPAuthURL  string `json:"otpauth_url,omitempty"`
	CurrentCode string `json:"current_code"`
	ValidFor    int    `json:"valid_for_seconds"`
	CodeValid   *bool  `json:"code_valid,omitempty"`
}

func (TOTPResult) Kind() string { return "totp" }

type totpGenTool struct {
	*tools.Base
}

func newTOTPGen() *totpGenTool {
	return &totpGenTool{Base: tools.NewBase(tools.Metadata{
		Name:        "TOTP Generator",
		Version:     "1.0",
		Author:      Author,
		Description: "Create a TOTP secret with its otpauth:// URI, or compute and check codes for an existing secret",
		Usage:       "run totp-gen --account alice@example.com [--secret BASE32] [--code 123456]",
		Example:     "run totp-gen --account alice@example.com --issuer ACME",
		Category:    tools.CategoryCrypto,
		Tags:        []string{"totp", "mfa", "offline"},
		RiskLevel:   tools.RiskLow,
		Parameters: map[string]string{
			"account": "Account name embedded in the URI",
			"issuer":  "Issuer name",
			"secret":  "Existing base32 secret",
			"code":    "Code to check against the secret",
		},
		FormSchema: []tools.Field{
			{Name: "account", Label: "Account", Type: tools.FieldText, Default: "operator"},
			{Name: "issuer", Label: "Issuer", Type: tools.FieldText, Default: "aleopantest"},
			{Name: "secret", Label: "Secret", Type: tools.FieldPassword},
			{Name: "code", Label: "Code to verify", Type: tools.FieldText},
		},
	})}
}

func (t *totpGenTool) Run(_ context.Context, p tools.Params) error {
	now := time.Now()
	res := TOTPResult{Issuer: p.String("issuer"), Account: p.String("account")}

	secret := strings.ToUpper(strings.ReplaceAll(p.String("secret"), " ", ""))
	if secret == "" {
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      res.Issuer,
			AccountName: res.Account,
			Algorithm:   otp.AlgorithmSHA1,
		})
		if err != nil {
			return tools.NewValidation("generate key: %v", err)
		}
		secret = key.Secret()
		res.OTPAuthURL = key.URL()
		t.AddWarning("New secret generated: store it securely, it is shown only once")
	}
	res.Secret = secret

	code, err := totp.GenerateCode(secret, now)
	if err != nil {
		return tools.NewValidation("secret: %v", err)
	}
	res.CurrentCode = code
	res.ValidFor = 30 - int(now.Unix()%30)

	if c := p.String("code"); c != "" {
		ok := totp.Validate(c, secret)
		res.CodeValid = &ok
	}
	t.AddResult(res)
	return nil
}
