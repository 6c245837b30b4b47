package credential

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/masteraxl/flotta/pkg/errcode"
	"github.com/masteraxl/flotta/pkg/job"
)

const (
	// rootValidity mirrors the long-lived root CA conventions used
	// elsewhere in the stack; the credential signer is a controller
	// singleton for the lifetime of the process, not a per-node cert.
	rootValidity = 10 * 365 * 24 * time.Hour
	rootKeySize  = 4096

	// credentialKeySize is smaller: each credential gets a throwaway
	// keypair purely so it can be expressed as a valid X.509 leaf cert,
	// never used for any TLS handshake of its own.
	credentialKeySize = 2048

	organization = "flotta-job-credential"
)

// Claim is the decoded content of a verified credential.
type Claim struct {
	JobID    uint32
	StepID   uint32
	NodeList []string
	Expiry   time.Time
}

type revocationKey struct {
	jobID  uint32
	stepID uint32
}

// Authority is the controller's job-credential CA: a self-signed root
// that signs one short-lived leaf certificate per job (or job step) at
// allocation time, plus the in-memory revocation list checked on verify.
// It does not persist its root across restarts — a restarted controller
// mints a new root and every credential issued under the old one stops
// verifying, which simply forces affected steps to be re-launched with a
// fresh credential the way a node-down requeue already does.
type Authority struct {
	mu       sync.RWMutex
	rootCert *x509.Certificate
	rootKey  *rsa.PrivateKey
	revoked  map[revocationKey]struct{}
}

// NewAuthority generates a fresh root CA and returns a ready-to-use
// Authority.
func NewAuthority() (*Authority, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("credential: generating root serial: %w", err)
	}
	key, err := rsa.GenerateKey(rand.Reader, rootKeySize)
	if err != nil {
		return nil, fmt.Errorf("credential: generating root key: %w", err)
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{organization},
			CommonName:   "flotta job-credential CA",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(rootValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		IsCA:                  true,
		BasicConstraintsValid: true,
		MaxPathLenZero:        true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("credential: self-signing root: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("credential: parsing root: %w", err)
	}
	return &Authority{
		rootCert: cert,
		rootKey:  key,
		revoked:  make(map[revocationKey]struct{}),
	}, nil
}

// subjectCN packs (job_id, step_id) into the leaf's CommonName; it is
// the cheapest place to carry both values through an X.509 template
// without inventing a custom extension OID.
func subjectCN(jobID, stepID uint32) string {
	return fmt.Sprintf("job-%d.step-%d", jobID, stepID)
}

func parseSubjectCN(cn string) (jobID, stepID uint32, err error) {
	parts := strings.SplitN(cn, ".", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("credential: malformed subject %q", cn)
	}
	j, ok1 := strings.CutPrefix(parts[0], "job-")
	s, ok2 := strings.CutPrefix(parts[1], "step-")
	if !ok1 || !ok2 {
		return 0, 0, fmt.Errorf("credential: malformed subject %q", cn)
	}
	jv, err := strconv.ParseUint(j, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("credential: malformed job id in %q: %w", cn, err)
	}
	sv, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("credential: malformed step id in %q: %w", cn, err)
	}
	return uint32(jv), uint32(sv), nil
}

// Sign issues a credential over (jobID, stepID, nodeList, expiry),
// returning the leaf certificate's raw DER bytes as the opaque blob a
// BATCH_JOB_LAUNCH or step-launch message carries.
func (a *Authority) Sign(jobID, stepID uint32, nodeList []string, expiry time.Time) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("credential: generating serial: %w", err)
	}
	leafKey, err := rsa.GenerateKey(rand.Reader, credentialKeySize)
	if err != nil {
		return nil, fmt.Errorf("credential: generating leaf key: %w", err)
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{organization},
			CommonName:   subjectCN(jobID, stepID),
		},
		DNSNames:    nodeList,
		NotBefore:   time.Now(),
		NotAfter:    expiry,
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, a.rootCert, &leafKey.PublicKey, a.rootKey)
	if err != nil {
		return nil, fmt.Errorf("credential: signing leaf: %w", err)
	}
	return der, nil
}

// Verify checks a credential's signature and validity window against
// the authority's root, then consults the revocation list. It never
// contacts the node a step is running on; that a node accepted and is
// still honoring the allocation is a separate, out-of-band concern.
func (a *Authority) Verify(blob []byte, now time.Time) (*Claim, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	cert, err := x509.ParseCertificate(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errcode.InvalidJobCredential, err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(a.rootCert)
	if _, err := cert.Verify(x509.VerifyOptions{
		Roots:       pool,
		CurrentTime: now,
		KeyUsages:   []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", errcode.InvalidJobCredential, err)
	}

	jobID, stepID, err := parseSubjectCN(cert.Subject.CommonName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errcode.InvalidJobCredential, err)
	}
	if _, revoked := a.revoked[revocationKey{jobID, stepID}]; revoked {
		return nil, fmt.Errorf("%w", errcode.CredentialRevoked)
	}

	return &Claim{
		JobID:    jobID,
		StepID:   stepID,
		NodeList: cert.DNSNames,
		Expiry:   cert.NotAfter,
	}, nil
}

// Revoke marks (jobID, stepID) invalid for any credential verified from
// now on, regardless of its expiry. The controller's cancel, requeue and
// node-failure paths do not call it, so a credential minted for a run
// that has ended stays valid until it expires.
func (a *Authority) Revoke(jobID, stepID uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.revoked[revocationKey{jobID, stepID}] = struct{}{}
}

// PurgeJob drops every revocation entry recorded for jobID. The
// controller calls it from recordTerminal, at each terminal transition
// and when a requeue closes out a run, so revocation entries do not
// accumulate for finished runs.
func (a *Authority) PurgeJob(jobID uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k := range a.revoked {
		if k.jobID == jobID {
			delete(a.revoked, k)
		}
	}
}

// ErrNotInitialized is returned by SignJob when called on a zero-value
// Authority obtained some way other than NewAuthority.
var ErrNotInitialized = errors.New("credential: authority has no root certificate")

// SignJob is the convenience entry point pkg/scheduler wires as
// Scheduler.SignCredential: a whole-job allocation credential is a
// step-0 claim over the job's full node list, valid through the job's
// time limit plus a short grace window so a straggling epilog can still
// present it.
func (a *Authority) SignJob(jobID uint32, nodeList []string, expiry time.Time) ([]byte, error) {
	a.mu.RLock()
	initialized := a.rootCert != nil
	a.mu.RUnlock()
	if !initialized {
		return nil, ErrNotInitialized
	}
	return a.Sign(jobID, 0, nodeList, expiry)
}

// SchedulerHook adapts SignJob to pkg/scheduler.Scheduler.SignCredential's
// func(*job.Job) []byte shape: expiry is the job's time limit plus grace,
// or grace alone past now for an unlimited job. A signing failure (only
// possible before the authority is initialized) yields a nil credential
// rather than blocking dispatch; the step simply launches without one,
// which later verification will reject as INVALID_JOB_CREDENTIAL.
func (a *Authority) SchedulerHook(grace time.Duration) func(*job.Job) []byte {
	return func(j *job.Job) []byte {
		expiry := time.Now().Add(grace)
		if j.TimeLimitMin > 0 {
			base := j.StartTime
			if base.IsZero() {
				base = time.Now()
			}
			expiry = base.Add(time.Duration(j.TimeLimitMin)*time.Minute + grace)
		}
		blob, err := a.SignJob(j.ID, j.NodeBitmap.Names(), expiry)
		if err != nil {
			return nil
		}
		return blob
	}
}
