// Package preflight provides readiness checks for the host resources and
// collaborators meetwatch depends on.
//
// "meetwatch doctor" runs every check and exits non-zero when one fails.
// "meetwatch status" reuses the directory checks to explain why a session
// might not be writing its transcript.
package preflight
