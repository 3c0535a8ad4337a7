package dispatch

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// Credential is one upstream access token tracked by the ring.
type Credential struct {
	Index           int
	Secret          string
	QuotaExhausted  bool
	LastExhaustedAt *time.Time
}

// CredentialStatus is the read-only diagnostic view of one ring slot.
//
// SecretSuffix carries only the tail of the secret so status output can be
// logged and shipped without exposing keys.
type CredentialStatus struct {
	Index           int        `json:"index"`
	SecretSuffix    string     `json:"secret_suffix"`
	Current         bool       `json:"current"`
	Available       bool       `json:"available"`
	LastExhaustedAt *time.Time `json:"last_exhausted_at,omitempty"`
}

// Ring is an ordered, wrap-around collection of credentials with a single
// current selection. Credentials are loaded once at startup and never removed;
// a quota-exhausted credential is only cycled past.
//
// The mutex guards in-memory bookkeeping only and is never held across an
// upstream call.
type Ring struct {
	mu      sync.Mutex
	creds   []Credential
	current int
	clock   func() time.Time
}

// NewRing builds a ring from the configured secrets, preserving order.
func NewRing(secrets []string) (*Ring, error) {
	clean := make([]Credential, 0, len(secrets))
	for _, secret := range secrets {
		secret = strings.TrimSpace(secret)
		if secret == "" {
			continue
		}
		clean = append(clean, Credential{Index: len(clean), Secret: secret})
	}
	if len(clean) == 0 {
		return nil, errors.New("at least one credential is required")
	}

	return &Ring{
		creds: clean,
		clock: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Size returns the number of credentials in the ring.
func (r *Ring) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.creds)
}

// Current returns a copy of the credential at the current position. The ring
// always reports a current credential, even when every slot is exhausted.
func (r *Ring) Current() Credential {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creds[r.current]
}

// Rotate advances the current position by one, wrapping at the end, and
// returns the new current credential. A ring of size 1 rotates back onto
// itself; callers detect that case via AllExhausted rather than expecting
// rotation to change the selection.
func (r *Ring) Rotate() Credential {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = (r.current + 1) % len(r.creds)
	return r.creds[r.current]
}

// MarkExhausted flags the credential at index as quota-exhausted and stamps
// the event time. It does not rotate; rotation is a separate decision owned
// by the dispatcher so diagnostic callers can mark without moving selection.
//
// The flag is not cleared for the remainder of the process lifetime.
func (r *Ring) MarkExhausted(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.creds) {
		return
	}
	now := r.clock()
	r.creds[index].QuotaExhausted = true
	r.creds[index].LastExhaustedAt = &now
}

// AllExhausted reports whether every credential has been marked exhausted.
func (r *Ring) AllExhausted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cred := range r.creds {
		if !cred.QuotaExhausted {
			return false
		}
	}
	return true
}

// StatusReport returns the per-credential diagnostic view in ring order.
func (r *Ring) StatusReport() []CredentialStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := make([]CredentialStatus, 0, len(r.creds))
	for i, cred := range r.creds {
		report = append(report, CredentialStatus{
			Index:           cred.Index,
			SecretSuffix:    secretSuffix(cred.Secret),
			Current:         i == r.current,
			Available:       !cred.QuotaExhausted,
			LastExhaustedAt: cred.LastExhaustedAt,
		})
	}
	return report
}

func secretSuffix(secret string) string {
	const keep = 4
	if len(secret) <= keep {
		return secret
	}
	return "..." + secret[len(secret)-keep:]
}
