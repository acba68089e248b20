/*
Package security provides cyroid's at-rest encryption and session TLS.

SecretsManager wraps AES-256-GCM around caller-supplied blobs; no other
package in cyroid calls it. The package-level Encrypt/Decrypt use the
installation key and protect the CA root key in the repository.
CertAuthority is a self-signed root CA; cmd/cyroid issues one certificate
from it and serves the pkg/session endpoints over TLS with it. Certs are
cached in memory and can be persisted to files under GetCertDir via
SaveCertToFile.

	sm, _ := security.NewSecretsManager(key)
	blob, _ := sm.CreateSecret("artifact-key", plaintext)

	ca := security.NewCertAuthority(repo)
	ca.Initialize()
	cert, _ := ca.IssueSessionCertificate(vmID, nil, nil)
*/
package security
