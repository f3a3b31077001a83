// Package errors provides typed errors for ink.
//
// # Error Types
//
// InkError is the base error type. It carries a Kind used by the HTTP layer
// and an exit code used by ink-ctl:
//
//	type InkError struct {
//	    Kind    Kind   // Classification
//	    Code    int    // Exit code
//	    Message string // User-facing message
//	    Cause   error  // Wrapped error
//	}
//
// # Kinds
//
//	KindConfiguration        // missing or ambiguous image, bad word lists
//	KindCapacity             // owner already has an instance, platform full
//	KindRuntimeUnavailable   // runtime daemon unreachable or failing
//	KindPortDiscoveryTimeout // started container never published its port
//	KindProxyUpstream        // forwarding to an instance failed
//	KindHandshake            // WebSocket upgrade failed
//	KindDialTimeout          // backend dial did not complete in time
//	KindNotFound             // no such instance
//	KindUnauthenticated      // request carries no identity
//
// # Extracting Exit Codes
//
//	if err != nil {
//	    os.Exit(errors.GetExitCode(err))
//	}
//
// HTTP handlers use HTTPStatus instead: capacity rejections map to 400 and
// everything unclassified maps to 500.
package errors
