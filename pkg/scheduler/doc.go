/*
Package scheduler implements the controller's main scheduling loop: the
periodic pass that walks pending jobs in priority order and hands each
one to a selection oracle for placement against the live node pool.

The scheduler itself holds no state beyond its wiring (the job table,
node and partition registries, association cache, and an Oracle); it is
driven externally, once per wake, by calling RunOnce with the current
time. Whoever drives it is also responsible for holding the locks
RunOnce's body requires before calling in — RunOnce acquires nothing.

# Cycle

A single RunOnce call performs, in order:

	┌──────────────────────────────────────────────────────────────┐
	│  1. Fragmentation check: any job COMPLETING? bail out whole.  │
	│  2. Build the candidate queue: PENDING, independent jobs,     │
	│     each resolved to its partition record.                   │
	│  3. Stable sort by (partition priority desc, job priority     │
	│     desc) — partition order wins ties within a job.           │
	│  4. Walk candidates in order:                                 │
	│       - skip if its partition already failed this tick        │
	│       - validate the job's association still exists           │
	│       - ask the Oracle to place it                            │
	│       - apply the outcome's side effects                      │
	│  5. Stamp LastJobUpdate if anything started.                  │
	└──────────────────────────────────────────────────────────────┘

Step 1 exists because starting a new job while another is still
COMPLETING on the same nodes risks immediately refragmenting resources
the completing job is about to release; skipping the whole tick is
cheaper than trying to reason about which candidates are actually
affected.

# Candidate queue

buildCandidateQueue is also where a job's dependency list, named
reservation, and begin_time are reconciled against the current job
table. A job whose dependency list can never be satisfied (an AFTER_OK
entry whose target job failed, for instance) is cancelled inline with
ReasonDependency rather than left to time out in the queue. A job that
clears every one of these gates for the first time has its EligibleTime
stamped and OnEligible fired — this is deliberately a different
timestamp from Details.BeginTime, since the latter is a user-requested
floor and the former is when the scheduler actually started considering
the job, which is the number queue-wait accounting wants.

# Failed partitions

When the top candidate of a partition can't be placed because the
partition is out of capacity right now (Busy, not Unavailable), every
partition sharing at least one node with it is marked failed for the
rest of the tick via Partitions.Overlapping — retrying a lower-priority
job against a partly-overlapping partition would just waste a placement
attempt against nodes the failed job already showed are exhausted.
Config.StaticPartitions turns this off entirely for deployments where
partitions never share nodes and the overlap walk is pure overhead.

# Placement and the Oracle boundary

The scheduler never inspects node or partition internals to decide
whether a job fits — that decision belongs entirely to Oracle.Select,
which this package treats as a pure function of (job, available nodes,
node/partition/reservation constraints) to an Outcome, with the side
effect on success of recording the chosen node set and per-node CPU
counts on the job itself. See oracle.go's doc comment for why this
package's own Oracle (DefaultOracle) is intentionally a minimal,
node-count-only reference rather than a full placement algorithm.

On a Success outcome, place() performs every bookkeeping step a real
placement implies: stamping StartTime, flipping the job to
RUNNING|CONFIGURING, bumping each allocated node's running-job count,
and firing the batch-launch RPC asynchronously through the agent
package so RunOnce's caller is never blocked on a node's reply while
still holding the write locks it took to call in.
*/
package scheduler
