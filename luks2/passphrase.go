// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2025 Boothut Authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package luks2

import (
	"fmt"
	"unicode"

	passwordvalidator "github.com/canonical/go-password-validator"
)

const (
	minPassphraseLength = 12
	// minPassphraseEntropy is the floor in bits for the estimated
	// passphrase entropy. 60 bits rules out the common dictionary and
	// keyboard-walk passphrases that pass the character class checks.
	minPassphraseEntropy = 60
)

// WeakPassphraseError rejects a passphrase before any destructive
// encryption call is made.
type WeakPassphraseError struct {
	Reason string
}

func (e *WeakPassphraseError) Error() string {
	return fmt.Sprintf("passphrase is too weak: %s", e.Reason)
}

// ValidatePassphrase enforces the passphrase strength floor: minimum
// length, minimum character class diversity and an entropy estimate that
// rejects common passphrases.
func ValidatePassphrase(passphrase string) error {
	if len(passphrase) < minPassphraseLength {
		return &WeakPassphraseError{
			Reason: fmt.Sprintf("must be at least %d characters long", minPassphraseLength),
		}
	}
	var hasUpper, hasLower, hasDigit, hasOther bool
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasOther = true
		}
	}
	if !hasUpper || !hasLower || !(hasDigit || hasOther) {
		return &WeakPassphraseError{
			Reason: "must contain upper and lower case letters plus a digit or symbol",
		}
	}
	if passwordvalidator.GetEntropy(passphrase) < minPassphraseEntropy {
		return &WeakPassphraseError{
			Reason: "too predictable, use a longer or less regular passphrase",
		}
	}
	return nil
}
