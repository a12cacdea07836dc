// Package cfapi implements the response-classification core of the
// Cloudflare Workers KV driver. It issues a single HTTP request per call,
// validates the response body against the documented `{result, success,
// errors, messages}` envelope, and reduces status code plus body into a
// three-valued Outcome: success, failure, or uncertain when the two signals
// contradict each other. Higher layers (pkg/kv) build commands and decide
// what each outcome means; cfapi only reports the classified fact.
package cfapi
