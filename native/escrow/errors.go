package escrow

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

// KindOf extracts the error kind from err, or zero when err is not a kinded
// rejection.
func KindOf(err error) ErrorKind {
	return nativecommon.KindOf(err)
}

func errValidationf(format string, args ...any) error {
	return nativecommon.Reject(nativecommon.KindValidation, "escrow", format, args...)
}

func errAuthorizationf(format string, args ...any) error {
	return nativecommon.Reject(nativecommon.KindAuthorization, "escrow", format, args...)
}

func errStatef(format string, args ...any) error {
	return nativecommon.Reject(nativecommon.KindState, "escrow", format, args...)
}

func errTransfer(err error) error {
	return nativecommon.Reject(nativecommon.KindTransfer, "escrow", "transfer failed: %v", err)
}
