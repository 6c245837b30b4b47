// Package state persists the job table to the flat state file the
// controller periodically checkpoints (C12): version magic, the job-id
// sequence counter, then every live job packed via
// rpcmsg.PackJob/UnpackJob. Save writes through a .new staging file and
// an atomic rename, keeping the previous canonical file as .old; Load
// opens canonical and falls back to .old on a missing or truncated
// file, refusing outright on a version mismatch.
package state
