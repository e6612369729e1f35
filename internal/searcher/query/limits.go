package query

// Limits bounds the work the compiler does for a single query. A zero field
// disables that limit.
type Limits struct {
	// MaxLength is the maximum query length in characters.
	MaxLength int
	// MaxDepth is the maximum parenthesis nesting depth.
	MaxDepth int
}

// DefaultLimits is used by the package-level Tokenize, ParseTokens, Parse and
// Validate functions.
var DefaultLimits = Limits{
	MaxLength: 2048,
	MaxDepth:  32,
}
