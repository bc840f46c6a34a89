// Package vault provides type-safe Go definitions and Redis schema patterns
// for the BHIV truth-engine ledger.
//
// # Overview
//
// The vault is the append-only ledger where every piece of content any
// caller produces becomes a permanent, versioned, lineage-linked record.
// Nothing is ever overwritten or physically deleted: all change is additive,
// and "deletion" means committing a tombstone artifact that flips the
// target's visibility.
//
// # Core Concepts
//
// Artifacts are the unit of truth. Each carries a content-derived sha256
// identity, a parent link, a version exactly one greater than its parent's,
// the principal and authority that created it, and the admission firewall's
// verdict. The lineage graph is a forest by construction: a child can only
// be committed under a parent that already exists.
//
// Decisions are the audit records of authority checks. Escalated decisions
// are pending state addressed to a higher authority with a hard deadline;
// everything else is terminal the moment it is written.
//
// # Concurrency
//
// Version-creating commits are a compare-and-swap against the parent's
// version head, run under Redis WATCH. Two racing writers against the same
// parent produce exactly one commit and one VersionConflictError; retry is
// the caller's decision, never the store's.
//
// # Multi-Instance Support
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so
// multiple vault instances can safely coexist on a single Redis server.
//
// # Redis Schema
//
// Artifacts: vault:{instance_name}:artifact:{id}
// Cold archive: vault:{instance_name}:cold:artifact:{id}
// Version heads: vault:{instance_name}:head:{id}
// Lineage edges: vault:{instance_name}:children:{id}
// Decisions: vault:{instance_name}:decision:{id}
// Pending escalations: vault:{instance_name}:pending_decisions (ZSET by deadline)
//
// Pub/Sub channels: vault:{instance_name}:artifact_events and
// vault:{instance_name}:decision_events
package vault
