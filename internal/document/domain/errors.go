package domain

import "errors"

// ErrNotFound covers lookups for documents or emails the user does not own;
// foreign rows are reported as missing, not forbidden.
var ErrNotFound = errors.New("document not found")
