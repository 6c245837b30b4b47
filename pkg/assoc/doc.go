// Package assoc implements the C8 association/QoS cache: a tree of
// (user, account, partition) tuples bearing usage counters and
// hierarchical limits, with a policy admission check walked both at
// submit time and by the time-limit loop (§4.7 "walk the association
// chain upward").
package assoc
