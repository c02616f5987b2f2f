package authz

import "github.com/carebridge/authz/logger"

// Logger is re-exported so integrators can implement it without importing the
// logger subpackage.
type Logger = logger.Logger

// TraceIDFunc generates a correlation/trace ID string per decision.
type TraceIDFunc = logger.TraceIDFunc
