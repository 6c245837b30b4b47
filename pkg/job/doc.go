// Package job owns the authoritative in-memory job table (job record,
// job-details sub-record, dependency list, and step records) along with
// the job_list/job_hash indices described for C9. It knows nothing about
// scheduling, RPC, or persistence; pkg/scheduler, pkg/lifecycle, and
// pkg/state build on top of it.
//
// Table is not self-locking beyond the embedded sync.RWMutex it exposes:
// callers state their lock requirement up front (the "Job" slot of the
// four-tuple {Config, Job, Node, Partition}) and hold it for the
// duration of a read or write sequence, matching the rest of the
// controller's locking discipline.
package job
