// Package partition implements the C6 partition registry: named node
// groups with scheduling limits, access control, and a priority used by
// the scheduler's candidate ordering (§4.5 step 3).
package partition
