// Package proto defines the messages exchanged with the query service over
// the platform's JSON-over-TCP RPC layer (see pkg/rpc). Other services
// import these types instead of the service's internal packages; the JSON
// shapes match the HTTP API.
package proto

// RPC method names served by the query service.
const (
	MethodParse    = "AdvancedSearch.Parse"
	MethodValidate = "AdvancedSearch.Validate"
)

// QueryRequest is the parameter of both methods.
type QueryRequest struct {
	Query string `json:"query"`
}

// QueryAnalysis is the result of MethodParse.
type QueryAnalysis struct {
	Query             string              `json:"query"`
	IsValid           bool                `json:"isValid"`
	ValidationError   *string             `json:"validationError"`
	ErrorCode         string              `json:"errorCode,omitempty"`
	ErrorPosition     *int                `json:"errorPosition,omitempty"`
	HasAdvancedSyntax bool                `json:"hasAdvancedSyntax"`
	CompiledQuery     string              `json:"compiledQuery"`
	FieldSearches     map[string][]string `json:"fieldSearches"`
	Phrases           []string            `json:"phrases"`
	Terms             []string            `json:"terms"`
}

// ErrorDetail locates a syntax error. Position is a byte offset into the
// query.
type ErrorDetail struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Position int    `json:"position"`
}

// ValidationResult is the result of MethodValidate.
type ValidationResult struct {
	IsValid bool         `json:"isValid"`
	Error   *ErrorDetail `json:"error,omitempty"`
}
