package httpsig

import (
	"fmt"
	"net/http"
	"slices"
	"time"
)

// ResponseVerification is the outcome of checking a signed response.
type ResponseVerification struct {
	// Header is the decoded Signature header of the response.
	Header SignatureHeader

	// SigningString is the string rebuilt from the response headers.
	SigningString string

	// SignatureValid reports whether the signature matched.
	SignatureValid bool

	// Digest is the Digest header value sent by the server, if any.
	Digest string

	// ComputedDigest is the digest of the received body.
	ComputedDigest Digest

	// DigestValid reports whether Digest matched ComputedDigest.
	DigestValid bool
}

// Err returns ErrSignatureInvalid when the signature did not match and
// nil otherwise.
func (v ResponseVerification) Err() error {
	if !v.SignatureValid {
		return ErrSignatureInvalid
	}

	return nil
}

// VerifyResponse checks the Signature header of a response against the
// server verifier. The covered headers are read from the response in the
// order the Signature header lists them.
//
// A signature that does not match is reported through SignatureValid, not
// as an error. Returned errors mean the response could not be checked at
// all: no Signature header, a malformed one, a covered header absent from
// the response, or an undecodable signature value.
func VerifyResponse(h http.Header, body []byte, v Verifier) (ResponseVerification, error) {
	res := ResponseVerification{
		Digest:         h.Get(HeaderNameDigest),
		ComputedDigest: ComputeDigest(body),
	}
	res.DigestValid = VerifyDigest(res.Digest, body) == nil

	raw := h.Get(HeaderNameSignature)
	if raw == "" {
		return res, ErrSignatureNotFound
	}

	sig, err := ParseSignatureHeader(raw)
	if err != nil {
		return res, err
	}

	res.Header = sig

	res.SigningString, err = BuildSigningString(sig.Headers, FromHeader(h))
	if err != nil {
		return res, err
	}

	res.SignatureValid, err = VerifyString(v, res.SigningString, sig.Signature)
	if err != nil {
		return res, err
	}

	return res, nil
}

// KeyResolver returns a Verifier for the given key ID and algorithm.
// It is called during request verification to look up the client key.
type KeyResolver func(r *http.Request, keyID string, alg Algorithm) (Verifier, error)

// VerifyConfig configures request signature verification.
type VerifyConfig struct {
	// Resolver looks up a Verifier for a given key ID and algorithm.
	// Required.
	Resolver KeyResolver

	// Placement selects the header the signature is read from. Defaults
	// to PlacementAuthorization.
	Placement Placement

	// RequiredHeaders lists header names that must be covered by the
	// signature. Defaults to RequestHeaders.
	RequiredHeaders []string

	// MaxClockSkew bounds the distance between the Date header and now.
	// Zero disables the check.
	MaxClockSkew time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// VerifyRequest verifies an incoming request signed with SignRequest.
// It checks the covered header list, the Digest header against the body,
// and the Date header against MaxClockSkew before the signature itself.
func VerifyRequest(r *http.Request, cfg VerifyConfig) error {
	if cfg.Resolver == nil {
		return ErrNoResolver
	}

	raw := r.Header.Get(cfg.Placement.String())
	if raw == "" {
		return ErrSignatureNotFound
	}

	sig, err := ParseSignatureHeader(raw)
	if err != nil {
		return err
	}

	required := cfg.RequiredHeaders
	if required == nil {
		required = RequestHeaders
	}

	for _, name := range required {
		if !slices.Contains(sig.Headers, name) {
			return fmt.Errorf("%w: %s not covered", ErrMissingHeader, name)
		}
	}

	if slices.Contains(sig.Headers, HeaderDigest) {
		body, err := readAndRestoreBody(r)
		if err != nil {
			return err
		}

		if err := VerifyDigest(r.Header.Get(HeaderNameDigest), body); err != nil {
			return err
		}
	}

	if cfg.MaxClockSkew > 0 {
		if err := checkDate(r.Header.Get(HeaderNameDate), cfg); err != nil {
			return err
		}
	}

	verifier, err := cfg.Resolver(r, sig.KeyID, sig.Algorithm)
	if err != nil {
		return err
	}

	if verifier == nil {
		return fmt.Errorf("%w: no verifier for %q", ErrInvalidKey, sig.KeyID)
	}

	if sig.Algorithm != "" && sig.Algorithm != verifier.Algorithm() {
		return fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, sig.Algorithm)
	}

	signingString, err := BuildSigningString(sig.Headers, FromRequest(r))
	if err != nil {
		return err
	}

	ok, err := VerifyString(verifier, signingString, sig.Signature)
	if err != nil {
		return err
	}

	if !ok {
		return ErrSignatureInvalid
	}

	return nil
}

func checkDate(value string, cfg VerifyConfig) error {
	if value == "" {
		return fmt.Errorf("%w: date", ErrMissingHeader)
	}

	date, err := http.ParseTime(value)
	if err != nil {
		return fmt.Errorf("%w: invalid date %q", ErrMalformedHeader, value)
	}

	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}

	skew := now().Sub(date)
	if skew < 0 {
		skew = -skew
	}

	if skew > cfg.MaxClockSkew {
		return ErrSignatureExpired
	}

	return nil
}
