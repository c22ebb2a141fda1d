package auth

// Scopes understood by the plan API. Write implies read.
const (
	ScopePlansRead  = "plans:read"
	ScopePlansWrite = "plans:write"
)
