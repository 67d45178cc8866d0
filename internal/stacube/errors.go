package stacube

import (
	"errors"
	"fmt"
)

type ErrorCode int

const (
	// ConfigurationError: the request or the store configuration is invalid
	ConfigurationError ErrorCode = iota
	// CatalogDataError: the remote catalog returned corrupted or inconsistent metadata
	CatalogDataError
	// DataConsistencyError: the retrieved tiles cannot be assembled into a consistent cube
	DataConsistencyError
	// ShouldNeverHappen: internal invariant broken
	ShouldNeverHappen
)

// Access details
const (
	DetailCatalogDataHref    = 0
	DetailCatalogDataItemID  = 1
	DetailConsistencyItemID  = 0
	DetailConsistencyItemID2 = 1
	DetailConfigurationParam = 0
)

// StacubeError is a coded domain error. The code discriminates between a
// caller mistake, a defect in the remote catalog and an assembly invariant violation.
type StacubeError struct {
	code    ErrorCode
	desc    string
	details []string
}

// NewConfigurationError creates a new error stating that a request parameter is invalid
func NewConfigurationError(param, desc string, a ...interface{}) error {
	return StacubeError{code: ConfigurationError, desc: fmt.Sprintf(desc, a...), details: []string{param}}
}

// NewCatalogDataError creates a new error stating that the catalog returned invalid metadata
func NewCatalogDataError(href, itemID, desc string, a ...interface{}) error {
	if desc == "" {
		desc = "invalid catalog entry " + itemID + " (" + href + ")"
	}
	return StacubeError{code: CatalogDataError, desc: fmt.Sprintf(desc, a...), details: []string{href, itemID}}
}

// NewDataConsistencyError creates a new error stating that tiles cannot be assembled
func NewDataConsistencyError(itemID, itemID2, desc string, a ...interface{}) error {
	return StacubeError{code: DataConsistencyError, desc: fmt.Sprintf(desc, a...), details: []string{itemID, itemID2}}
}

// NewShouldNeverHappen creates a new error that should never happen...
func NewShouldNeverHappen(desc string, a ...interface{}) error {
	return StacubeError{code: ShouldNeverHappen, desc: fmt.Sprintf(desc, a...)}
}

// Error implements error
func (e StacubeError) Error() string {
	var s string
	switch e.code {
	case ConfigurationError:
		s = "ConfigurationError"
	case CatalogDataError:
		s = "CatalogDataError"
	case DataConsistencyError:
		s = "DataConsistencyError"
	case ShouldNeverHappen:
		s = "ShouldNeverHappen"
	}
	return s + ": " + e.desc
}

// Desc returns a description of the error
func (e StacubeError) Desc() string {
	return e.desc
}

// Code returns the code of the error
func (e StacubeError) Code() ErrorCode {
	return e.code
}

// Detail returns a detail of the error (see const above)
func (e StacubeError) Detail(i int) string {
	if i >= len(e.details) {
		return ""
	}
	return e.details[i]
}

// IsError tests whether error is a StacubeError
func IsError(err error, code ErrorCode) bool {
	var serr StacubeError
	return errors.As(err, &serr) && serr.Code() == code
}

// AsError tests whether error is a StacubeError and returns it
func AsError(err error, code ErrorCode) (StacubeError, bool) {
	var serr StacubeError
	return serr, errors.As(err, &serr) && serr.Code() == code
}
