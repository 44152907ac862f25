// Package backend is the client side of the liquid-handler execution
// service.
//
// Backend abstracts every call the workbench makes: fetching the sample
// list, the status overlay and the method definitions, submitting full
// sample documents, and the sample-level actions (run, resubmit, cancel,
// explode, archive, remove, duplicate). Acknowledgements are opaque
// *structpb.Struct values; the workbench only distinguishes success from
// failure.
//
// HTTPClient speaks to the service's /GUI/ routes through Connect unary
// calls carrying plain JSON. Memory is an in-process implementation with the
// same full-replacement semantics, used by tests and by the CLI's offline
// mode.
//
// Failures are classified as ErrUnavailable (transport, timeout, server
// fault) or ErrRejected (the service refused the request).
package backend
