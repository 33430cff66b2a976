package catalog

import "errors"

// ErrConfiguration marks misuse of the catalog at a call site or in stored
// permission data. It signals a programming or data defect, not a denial.
var ErrConfiguration = errors.New("catalog: configuration error")
