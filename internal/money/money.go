/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package money converts between human decimal strings and integer minor
// currency units. Conversion is string-based decimal arithmetic throughout;
// binary floats never touch a monetary value, so "1.15" is 115 cents, not 114.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"

	"ledger-sync-go/internal/store"
)

// ToMinorUnits parses a decimal string into integer minor units for a
// currency with the given number of decimal digits. Input with more precision
// than the currency carries is rejected rather than rounded.
func ToMinorUnits(value string, decimalDigits int) (int64, error) {
	if decimalDigits < 0 || decimalDigits > 8 {
		return 0, &store.ValidationError{Field: "decimalDigits", Reason: fmt.Sprintf("unsupported precision %d", decimalDigits)}
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, &store.ValidationError{Field: "amount", Reason: fmt.Sprintf("not a decimal number: %q", value)}
	}

	shifted := d.Shift(int32(decimalDigits))
	if !shifted.IsInteger() {
		return 0, &store.ValidationError{Field: "amount", Reason: fmt.Sprintf("%q has more than %d decimal places", value, decimalDigits)}
	}
	if !shifted.BigInt().IsInt64() {
		return 0, &store.ValidationError{Field: "amount", Reason: fmt.Sprintf("%q overflows minor units", value)}
	}
	return shifted.IntPart(), nil
}

// FromMinorUnits formats integer minor units as a decimal string with exactly
// decimalDigits fractional digits.
func FromMinorUnits(minor int64, decimalDigits int) string {
	return decimal.New(minor, int32(-decimalDigits)).StringFixed(int32(decimalDigits))
}
