// Package models defines the core data structures for authenticator
// secrets and backup payloads.
package models

import (
	"strings"

	"github.com/mkarpov/otpvault/internal/vaulterr"
)

// SecretType identifies the one-time-code family a record belongs to.
type SecretType string

const (
	// TOTP represents a time-based one-time code secret.
	TOTP SecretType = "totp"
	// HOTP represents a counter-based one-time code secret.
	HOTP SecretType = "hotp"
)

// Default parameters applied when a record omits them.
const (
	DefaultDigits    = 6
	DefaultPeriod    = 30
	DefaultAlgorithm = "SHA1"
)

// SecretRecord holds the seed material and display metadata for one
// authenticator entry.
type SecretRecord struct {
	// ID is the unique identifier for the record.
	ID string `json:"id"`
	// Name is the display name, usually the issuing service.
	Name string `json:"name"`
	// Account is an optional account label shown next to the name.
	Account string `json:"account,omitempty"`
	// Secret is the base32-encoded shared secret.
	Secret string `json:"secret"`
	// Type is the code family, "totp" or "hotp".
	Type SecretType `json:"type"`
	// Digits is the number of digits in a generated code.
	Digits int `json:"digits,omitempty"`
	// Period is the time step in seconds for time-based records.
	Period int `json:"period,omitempty"`
	// Counter is the moving counter for counter-based records.
	// Present if and only if Type is HOTP.
	Counter *int64 `json:"counter,omitempty"`
	// Algorithm is the HMAC hash, one of SHA1, SHA256, SHA512.
	Algorithm string `json:"algorithm,omitempty"`
	// CreatedAt is the creation time as a unix timestamp in seconds.
	CreatedAt int64 `json:"createdAt,omitempty"`
}

// Normalized returns a copy with defaults applied to digits, period
// and algorithm. The receiver is not modified.
func (r SecretRecord) Normalized() SecretRecord {
	if r.Digits == 0 {
		r.Digits = DefaultDigits
	}
	if r.Period == 0 && r.Type != HOTP {
		r.Period = DefaultPeriod
	}
	if r.Algorithm == "" {
		r.Algorithm = DefaultAlgorithm
	}
	return r
}

// Validate checks the structural invariants of a record.
func (r SecretRecord) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return vaulterr.New(vaulterr.KindValidation, "secret name is required")
	}
	if strings.TrimSpace(r.Secret) == "" {
		return vaulterr.New(vaulterr.KindValidation, "secret material is required")
	}
	switch r.Type {
	case TOTP:
		if r.Counter != nil {
			return vaulterr.New(vaulterr.KindValidation, "counter is only valid for hotp records")
		}
	case HOTP:
		if r.Counter == nil {
			return vaulterr.New(vaulterr.KindValidation, "hotp records require a counter")
		}
	default:
		return vaulterr.Newf(vaulterr.KindValidation, "unknown secret type %q", r.Type)
	}
	return nil
}

// ConflictsWith reports whether two records describe the same entry:
// equal name and account (case-insensitively) and equal secret material.
func (r SecretRecord) ConflictsWith(other SecretRecord) bool {
	return strings.EqualFold(r.Name, other.Name) &&
		strings.EqualFold(r.Account, other.Account) &&
		r.Secret == other.Secret
}

// BackupFormatVersion is the current payload format written to backups.
const BackupFormatVersion = 1

// BackupPayload is the content of one backup artifact.
type BackupPayload struct {
	// Timestamp is the creation time as a unix timestamp in seconds.
	Timestamp int64 `json:"timestamp"`
	// Version is the backup payload format version.
	Version int `json:"version"`
	// Count is the number of records in Secrets.
	Count int `json:"count"`
	// Reason records what triggered the backup ("added", "deleted", ...).
	Reason string `json:"reason"`
	// Secrets is the full collection at the time of the backup.
	Secrets []SecretRecord `json:"secrets"`
}
