package common

// AuthorizationHeaderName is the HTTP header (and gRPC metadata key) that
// carries the bearer token.
const AuthorizationHeaderName = "Authorization"

// RequestIDHeaderName is echoed back on every HTTP response.
const RequestIDHeaderName = "X-Request-Id"
