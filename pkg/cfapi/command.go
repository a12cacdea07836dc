package cfapi

import "net/url"

// CommandType groups commands by the part of the API surface they touch.
type CommandType string

const (
	// CommandCRUD covers key-value reads, writes and deletes.
	CommandCRUD CommandType = "crud"
	// CommandNamespace covers namespace management operations.
	CommandNamespace CommandType = "namespace"
	// CommandOther covers anything outside the two groups above.
	CommandOther CommandType = "other"
)

// CommandInput records the caller-supplied parameters of a command.
type CommandInput struct {
	// PathParams are the dynamic path segments, in order of appearance.
	PathParams []string
	// Query holds the request query parameters.
	Query url.Values
	// Data is the logical request payload before encoding.
	Data any
}

// Command describes the intent of one logical KV operation, independent of
// how the transport round trip turns out. It is constructed once by the
// facade and never mutated afterwards.
type Command struct {
	Type  CommandType
	Name  string
	Input CommandInput
}
