// Package soap is the transport used to talk to the AFIP web services.
//
// A Client keeps a registry of services (name, endpoint and optional
// SOAPAction base) and executes Requests against them. When an
// Authenticator is attached, every call first obtains credentials for the
// target service and injects them into the request, so callers never
// handle tokens directly.
//
// Responses are parsed into a Document. SOAP faults are always returned
// as *ProtocolFault. Service-level error records (Errors/Err with Code
// and Msg) become a *ServiceError unless the call was made with
// FailOnError(false), in which case they stay in the Document for the
// caller to inspect.
package soap
