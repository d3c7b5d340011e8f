package bank

import "errors"

var ErrEntryNotFound = errors.New("content bank entry not found")
