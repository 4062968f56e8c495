package http

var (
	PanicRecoveryMiddleware = panicRecoveryMiddleware
	HandleError             = handleError
)
