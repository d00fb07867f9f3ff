// Package otp bridges secret records to one-time-code generation. The
// algorithm itself is delegated to github.com/pquerna/otp.
package otp

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	"github.com/pquerna/otp/totp"

	"github.com/mkarpov/otpvault/internal/models"
	"github.com/mkarpov/otpvault/internal/vaulterr"
)

// Code is one generated one-time code.
type Code struct {
	// Code is the rendered digit string.
	Code string `json:"code"`
	// ExpiresIn is the remaining validity in seconds. Zero for
	// counter-based codes, which do not expire with time.
	ExpiresIn int `json:"expiresIn,omitempty"`
}

// Generate produces the current code for rec at the given time.
func Generate(rec models.SecretRecord, at time.Time) (Code, error) {
	rec = rec.Normalized()
	alg, err := algorithm(rec.Algorithm)
	if err != nil {
		return Code{}, err
	}

	switch rec.Type {
	case models.HOTP:
		if rec.Counter == nil {
			return Code{}, vaulterr.New(vaulterr.KindValidation, "hotp record has no counter")
		}
		code, err := hotp.GenerateCodeCustom(rec.Secret, uint64(*rec.Counter), hotp.ValidateOpts{
			Digits:    otp.Digits(rec.Digits),
			Algorithm: alg,
		})
		if err != nil {
			return Code{}, vaulterr.Wrap(vaulterr.KindValidation, "generate hotp code", err)
		}
		return Code{Code: code}, nil
	default:
		code, err := totp.GenerateCodeCustom(rec.Secret, at, totp.ValidateOpts{
			Period:    uint(rec.Period),
			Digits:    otp.Digits(rec.Digits),
			Algorithm: alg,
		})
		if err != nil {
			return Code{}, vaulterr.Wrap(vaulterr.KindValidation, "generate totp code", err)
		}
		remaining := rec.Period - int(at.Unix()%int64(rec.Period))
		return Code{Code: code, ExpiresIn: remaining}, nil
	}
}

func algorithm(name string) (otp.Algorithm, error) {
	switch name {
	case "", "SHA1":
		return otp.AlgorithmSHA1, nil
	case "SHA256":
		return otp.AlgorithmSHA256, nil
	case "SHA512":
		return otp.AlgorithmSHA512, nil
	default:
		return 0, vaulterr.Newf(vaulterr.KindValidation, "unsupported algorithm %q", name)
	}
}
