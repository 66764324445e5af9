// Package sanitizer provides input normalization for customer and payment data.
//
// All normalization functions are idempotent - applying them multiple times
// produces the same result. Functions handle invalid input gracefully, typically
// by returning empty strings rather than errors.
//
// Normalization includes:
//   - Phone numbers: convert to E.164 format (+[country][number])
//   - Names: lowercase, collapse whitespace, strip punctuation to tokens
//   - Strings: collapse whitespace, trim leading/trailing spaces
package sanitizer
