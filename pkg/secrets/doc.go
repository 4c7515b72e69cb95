// Package secrets supplies the certificate and private key used to sign
// WSAA login tickets.
//
// A KeyStoreProvider reads a PKCS#12 key store from a KeyStoreSource on every
// call and decodes it with the configured password. Sources exist for local
// files, in-memory bytes, object stores, AWS Secrets Manager, AWS SSM
// Parameter Store, GCP Secret Manager, Azure Key Vault and the OS keyring.
//
// Cloud sources accept injected client interfaces so they can be exercised
// with the fakes in tests/fakes:
//
//	fake := fakes.NewFakeSecretsManagerClient()
//	fake.PutKeyStore("afip/keystore", blob)
//	src, _ := secrets.NewAWSSecretsManagerSource(ctx, "afip/keystore",
//	    secrets.AWSConfig{Region: "us-east-1"},
//	    secrets.WithSecretsManagerClient(fake))
//	p, _ := secrets.NewKeyStoreProvider(src, secrets.Options{Password: "changeit"}, nil)
package secrets
