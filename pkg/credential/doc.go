// Package credential mints and checks the job credential every batch
// launch and step RPC carries (§7 INVALID_JOB_CREDENTIAL/CREDENTIAL_REVOKED).
// A credential is an X.509 certificate the controller's own in-memory CA
// signs over a claim (job_id, step_id, node_list, expiry); checking one is
// structural only — signature, validity window, revocation — never a round
// trip to a live node agent.
package credential
