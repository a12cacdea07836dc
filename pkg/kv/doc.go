// Package kv provides a client for the Cloudflare Workers KV REST API.
// Each method builds one command plus HTTP request, hands it to the
// cfapi classification core, and maps the tri-state outcome to a return
// value or a typed error: *OperationError for confirmed failures,
// *UncertainError when status code and response body disagree. Completed
// operations are broadcast on an in-process event bus reachable via
// Subscribe and SubscribeAll.
package kv
