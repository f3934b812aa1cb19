package domain

// Passport carries the caller's authorization capabilities. The persistence
// layer never inspects it; repositories and converters only thread it through
// into every aggregate they construct so domain code can run its own checks.
type Passport interface{}
