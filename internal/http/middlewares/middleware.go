package middlewares

import "net/http"

// Middleware decora un handler; se aplica con chi r.Use / r.With.
type Middleware func(http.Handler) http.Handler
