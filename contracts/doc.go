// Package contracts provides the wire types exchanged with the voice assistant.
//
// This package defines:
//   - Request: the inbound directive envelope, parsed strictly by ParseRequest
//   - Bearer: the account-linking credential carried by a directive
//   - ErrorResponse: the event synthesized when the backend rejects a directive
//
// A directive may carry its credential in endpoint.scope, payload.scope or
// payload.grantee. Directive.Credential checks them in that order.
//
// Payload members the shim does not model are preserved byte for byte so they
// reach the backend unchanged.
package contracts
