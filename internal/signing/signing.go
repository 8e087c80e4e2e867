// Package signing issues and checks short-lived HMAC links for downloading a
// stored invoice PDF.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

var (
	// ErrExpired means the link's expiry is in the past.
	ErrExpired = errors.New("link expired")
	// ErrInvalid means the signature or expiry does not verify.
	ErrInvalid = errors.New("invalid signature")
)

// Signer generates and validates HMAC based signatures.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner creates a Signer whose links live for ttl.
func NewSigner(secret []byte, ttl time.Duration) *Signer {
	return &Signer{secret: secret, ttl: ttl, now: time.Now}
}

// Sign returns the hex signature for an invoice id and expiry.
func (s *Signer) Sign(invoiceID string, expiresUnix int64) string {
	mac := hmac.New(sha256.New, s.secret)
	// The canonical payload keeps the id and expiry in a fixed order.
	mac.Write([]byte(fmt.Sprintf("%s:%d", invoiceID, expiresUnix)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Link is a signed download location.
type Link struct {
	URL     string `json:"url"`
	Expires int64  `json:"expires"`
}

// Issue signs a link to base (e.g. /api/invoices/{id}/file) that expires
// after the signer's TTL.
func (s *Signer) Issue(base, invoiceID string) Link {
	expiry := s.now().Add(s.ttl).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expiry, 10))
	q.Set("signature", s.Sign(invoiceID, expiry))
	return Link{URL: base + "?" + q.Encode(), Expires: expiry}
}

// Verify checks a presented expiry and signature for invoiceID.
func (s *Signer) Verify(invoiceID, expires, signature string) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrInvalid
	}
	// hmac.Equal performs constant-time comparison.
	if !hmac.Equal([]byte(s.Sign(invoiceID, exp)), []byte(signature)) {
		return ErrInvalid
	}
	if time.Unix(exp, 0).Before(s.now()) {
		return ErrExpired
	}
	return nil
}
