// Package signing computes and checks keyed MAC signatures over report
// digests. Keys are supplied by an injected KeyResolver so rotation is a
// resolver change, not a process restart; historical key ids stay
// resolvable for verifying old artifacts.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"sort"
	"strings"

	"github.com/evidentry/evidentry/internal/domain"
)

// Key is one signing key in the ring.
type Key struct {
	ID     string
	Secret []byte
}

// KeyResolver supplies signing keys. Active returns the key used for new
// signatures (ok=false when signing is disabled); Resolve looks up a key by
// id for verification and never trusts caller-supplied key material.
type KeyResolver interface {
	Active() (*Key, bool)
	Resolve(keyID string) (*Key, error)
}

// Sign computes the base64 HMAC-SHA256 of the digest under the key.
func Sign(key *Key, digest string) string {
	mac := hmac.New(sha256.New, key.Secret)
	mac.Write([]byte(digest))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the MAC for digest under the key identified by keyID and
// compares in constant time. The resolver, not the caller, supplies the key.
func Verify(resolver KeyResolver, keyID, digest, signature string) (bool, error) {
	key, err := resolver.Resolve(keyID)
	if err != nil {
		return false, err
	}
	expected := Sign(key, digest)
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}

// Ring is an in-memory key ring parsed from configuration. It retains every
// configured key for verification and marks one id active for signing.
type Ring struct {
	keys     map[string][]byte
	activeID string
}

// ParseRing builds a Ring from a "kid=secret,kid2=secret2" spec and the id
// of the active signing key. An empty spec yields a ring that signs nothing.
// An active id absent from the spec is a configuration error.
func ParseRing(spec, activeID string) (*Ring, error) {
	ring := &Ring{keys: map[string][]byte{}, activeID: activeID}
	if strings.TrimSpace(spec) == "" {
		if activeID != "" {
			return nil, domain.NewDomainError(domain.ErrCodeInternalError, "active signing key set but no keys configured")
		}
		return ring, nil
	}
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		kid, secret, ok := strings.Cut(entry, "=")
		kid = strings.TrimSpace(kid)
		if !ok || kid == "" || secret == "" {
			return nil, domain.NewDomainError(domain.ErrCodeInternalError, "malformed signing key entry: expected kid=secret")
		}
		if _, dup := ring.keys[kid]; dup {
			return nil, domain.NewDomainError(domain.ErrCodeInternalError, "duplicate signing key id: "+kid)
		}
		ring.keys[kid] = []byte(secret)
	}
	if activeID == "" && len(ring.keys) > 0 {
		// Default to the lexically last key id so newly appended keys win.
		ids := ring.KeyIDs()
		ring.activeID = ids[len(ids)-1]
	}
	if ring.activeID != "" {
		if _, ok := ring.keys[ring.activeID]; !ok {
			return nil, domain.NewDomainError(domain.ErrCodeInternalError, "active signing key id not present in key ring: "+ring.activeID)
		}
	}
	return ring, nil
}

// Active implements KeyResolver.
func (r *Ring) Active() (*Key, bool) {
	if r.activeID == "" {
		return nil, false
	}
	secret, ok := r.keys[r.activeID]
	if !ok {
		return nil, false
	}
	return &Key{ID: r.activeID, Secret: secret}, true
}

// Resolve implements KeyResolver.
func (r *Ring) Resolve(keyID string) (*Key, error) {
	secret, ok := r.keys[keyID]
	if !ok {
		return nil, domain.ErrSigningKeyNotFound
	}
	return &Key{ID: keyID, Secret: secret}, nil
}

// KeyIDs lists the configured key ids, sorted.
func (r *Ring) KeyIDs() []string {
	ids := make([]string, 0, len(r.keys))
	for id := range r.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
