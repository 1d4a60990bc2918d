package capability

import (
	"context"
	"crypto/sha256"

	"github.com/cuemby/canic/pkg/canicerr"
	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/runtime"
	"github.com/cuemby/canic/pkg/security"
)

// maxCertifiedDataRetries bounds the retry loop around the
// certified-data-dependent retrieval step (spec.md §9): the issuance flow
// tolerates a small, bounded count of CertifiedDataStale responses while
// the host catches the certified root up to a just-published signature.
const maxCertifiedDataRetries = 5

// Issuer runs at root: it mints DelegationCerts and publishes their
// signature through the host's certified-data flow (spec.md §4.7).
type Issuer struct {
	Signer    *security.Signer
	RootPID   ids.Principal
	Certified runtime.CertifiedDataStore
	Clock     runtime.Clock
}

// Issue generates a DelegationCert for shardPID granting audiences/scopes
// for ttlSeconds, signs it, publishes the signature to certified data, and
// retrieves the certified copy to return as a Proof.
func (i *Issuer) Issue(ctx context.Context, shardPID ids.Principal, audiences, scopes []string, ttlSeconds int64) (*Proof, error) {
	issuedAt := i.Clock.Now().Unix()
	cert, err := NewCert(i.RootPID, shardPID, audiences, scopes, issuedAt, issuedAt+ttlSeconds)
	if err != nil {
		return nil, canicerr.New(canicerr.KindWorkflow, "capability.Issue", "build delegation cert", err)
	}

	certBytes, err := cert.CanonicalBytes()
	if err != nil {
		return nil, canicerr.New(canicerr.KindInfra, "capability.Issue", "encode cert", ErrEncodeFailed)
	}
	message := append(append([]byte{}, SeedDelegationCert...), certBytes...)
	sig, err := i.Signer.Sign(DomainDelegationCert, message)
	if err != nil {
		return nil, canicerr.New(canicerr.KindInfra, "capability.Issue", "sign cert", err)
	}

	hash := sha256.Sum256(certBytes)
	if err := i.Certified.SetSignature(hash[:], sig); err != nil {
		return nil, canicerr.New(canicerr.KindInfra, "capability.Issue", "publish certified signature", err)
	}

	var retrieved []byte
	for attempt := 0; attempt < maxCertifiedDataRetries; attempt++ {
		retrieved, err = i.Certified.Signature(hash[:])
		if err == nil {
			break
		}
		if err == runtime.ErrCertifiedDataStale {
			continue
		}
		return nil, canicerr.New(canicerr.KindInfra, "capability.Issue", "retrieve certified signature", err)
	}
	if retrieved == nil {
		return nil, canicerr.New(canicerr.KindInfra, "capability.Issue", "certified data never caught up", ErrCertSignatureUnavailable)
	}

	return &Proof{Cert: cert, CertSig: retrieved}, nil
}
