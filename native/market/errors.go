package market

import (
	nativecommon "bazaarchain/native/common"
)

// Error kinds are shared across the native engines; aliases keep call sites
// within this package short.
type ErrorKind = nativecommon.ErrorKind

const (
	KindValidation    = nativecommon.KindValidation
	KindAuthorization = nativecommon.KindAuthorization
	KindState         = nativecommon.KindState
	KindEconomic      = nativecommon.KindEconomic
	KindTransfer      = nativecommon.KindTransfer
)

// Error is the kinded rejection type shared across the native engines.
type Error = nativecommon.Error

// KindOf extracts the error kind from err, or zero when err is not a
// marketplace rejection.
func KindOf(err error) ErrorKind {
	return nativecommon.KindOf(err)
}

func errValidationf(format string, args ...any) error {
	return nativecommon.Reject(nativecommon.KindValidation, "market", format, args...)
}

func errAuthorizationf(format string, args ...any) error {
	return nativecommon.Reject(nativecommon.KindAuthorization, "market", format, args...)
}

func errStatef(format string, args ...any) error {
	return nativecommon.Reject(nativecommon.KindState, "market", format, args...)
}

func errEconomicf(format string, args ...any) error {
	return nativecommon.Reject(nativecommon.KindEconomic, "market", format, args...)
}

func errTransfer(err error) error {
	return nativecommon.Reject(nativecommon.KindTransfer, "market", "transfer failed: %v", err)
}
