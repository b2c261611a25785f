// Package bridge forwards smart home directives to a home automation backend.
//
// A Bridge parses the directive, picks its bearer credential, posts the whole
// envelope to {base}/api/alexa/smart_home and classifies the answer:
//   - 401 and 403 become an INVALID_AUTHORIZATION_CREDENTIAL error event
//   - 5xx becomes an INTERNAL_ERROR error event
//   - any other status is passed through when the body is JSON
//
// Every other failure is returned as an error. ErrorKind names its category so
// runtimes can report it uniformly.
//
// Basic usage:
//
//	b, err := bridge.NewBridge(baseURL, bridge.WithHTTPClient(client))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	resp, err := b.HandleDirective(ctx, raw)
package bridge
