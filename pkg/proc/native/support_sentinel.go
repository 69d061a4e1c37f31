package native

import "errors"

// ErrNativeBackendDisabled is returned by New on platforms without a native
// backend.
var ErrNativeBackendDisabled = errors.New("native backend not available on this platform")

// ErrUnsupportedArch is returned by register accessors on architectures
// whose register layout is not supported.
var ErrUnsupportedArch = errors.New("register access is only supported on arm64")
