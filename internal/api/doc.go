// Package api handles incoming HTTP requests, routing, request validation,
// and response formatting. It adapts HTTP concerns to queue operations:
// submissions become queued tasks acknowledged with 202, and clients poll
// task state until it turns terminal. Usage events are recorded here so the
// accounting follows the API surface rather than the workers.
package api
