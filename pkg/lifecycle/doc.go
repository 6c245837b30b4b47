// Package lifecycle drives a job through every transition its state
// machine allows once the scheduler has moved it out of PENDING: the
// periodic time-limit and health check, suspend/resume, requeue, and
// checkpoint/restart, plus the terminal transitions a running job can
// take (normal completion, failure, timeout, node failure, cancel).
//
// Controller, like scheduler.Scheduler, holds no lock of its own —
// RunOnce and every exported transition method assume the caller
// already holds the Job and Node write locks for the duration of the
// call. Nothing here acquires Config, Job, Node, or Partition locks
// internally.
package lifecycle
