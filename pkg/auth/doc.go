// Package auth obtains WSAA access tickets.
//
// A Service builds a login ticket request, signs it as CMS signed-data with
// the certificate and key from a secrets.SecretsProvider, and sends it to
// the WSAA loginCms operation. Issued credentials are kept in a
// CredentialsCache backed by any store.ObjectStore, so a ticket is only
// requested again once the stored one has expired.
//
// Service implements soap.Authenticator and is attached to authenticated
// SOAP clients with soap.WithAuthenticator.
package auth
