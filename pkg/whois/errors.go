package whois

import "errors"

// ErrLookupFailed is returned when no ownership record could be obtained
// within the attempt limit and time budget. Callers treat it as "absent".
var ErrLookupFailed = errors.New("whois: lookup failed")

// ErrInvalidIP is returned, wrapped in ErrLookupFailed, for addresses that
// do not parse. It is never retried.
var ErrInvalidIP = errors.New("invalid ip address")
