// Package dlq provides the dead letter queue for jobs that have exhausted
// their retry budget. It supports inspection, manual resolution, and purging.
//
// When an execution fails and retry_count has reached max_retries, the
// runner calls [Service.Promote] to move the job into the DLQ. The original
// input params, final error message, and attempt counts are preserved for
// debugging.
//
// Promotion is idempotent per (job_id, execution_id): a duplicate promotion
// refreshes LastFailedAt and is otherwise silently ignored — never an error.
// At most one unresolved entry exists per job while the job is blocked.
//
// A DLQ-promoted job is excluded from runner eligibility until a human
// resolves the entry (POST /v1/dlq/:entryId/resolve on the admin API or
// [Service.Resolve]). There is no automatic unbounded retry.
package dlq
