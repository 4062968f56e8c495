package errs

import "github.com/m-mizutani/goerr/v2"

var (
	// Client errors (4xx)
	TagNotFound        = goerr.NewTag("not_found")       // 404
	TagValidation      = goerr.NewTag("validation")      // 400
	TagUnauthenticated = goerr.NewTag("unauthenticated") // 401
	TagConflict        = goerr.NewTag("conflict")        // 409

	// Server errors (5xx)
	TagInternal = goerr.NewTag("internal") // 500
	TagExternal = goerr.NewTag("external") // 502/503
	TagTimeout  = goerr.NewTag("timeout")  // 504
	TagDatabase = goerr.NewTag("database") // 500

	// Business logic errors
	TagInvalidState = goerr.NewTag("invalid_state")
)
