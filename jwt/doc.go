// Package jwt issues and verifies the operator tokens that guard the
// administration endpoints (reset, unblock, statistics).
package jwt
