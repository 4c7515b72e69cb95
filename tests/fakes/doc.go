// Package fakes provides test doubles for the cloud clients used by the
// key store sources in pkg/secrets.
//
// Fakes are manually implemented (not generated) to provide precise control
// over test behavior. Each fake returns the provider's own not-found error
// for unknown names; the AWS fakes also count reads per name.
//
// Usage:
//
//	fake := fakes.NewFakeSSMClient()
//	fake.PutKeyStore("/afip/keystore", base64Blob)
//	src, _ := secrets.NewAWSSSMSource(ctx, "/afip/keystore", secrets.AWSConfig{},
//	    secrets.WithSSMClient(fake))
package fakes
