package vault

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so
// multiple vault instances can safely coexist on a single Redis server.
//
// Key pattern: vault:{instance_name}:{entity}:{id}
// Channel pattern: vault:{instance_name}:{event_type}_events

// ArtifactKey returns the Redis key for a hot artifact.
// Pattern: vault:{instance_name}:artifact:{artifact_id}
func ArtifactKey(instanceName, artifactID string) string {
	return fmt.Sprintf("vault:%s:artifact:%s", instanceName, artifactID)
}

// ColdArtifactKey returns the Redis key for an archived artifact.
// Pattern: vault:{instance_name}:cold:artifact:{artifact_id}
func ColdArtifactKey(instanceName, artifactID string) string {
	return fmt.Sprintf("vault:%s:cold:artifact:%s", instanceName, artifactID)
}

// HeadKey returns the Redis key for an artifact's version head: the highest
// version committed in the chain at that node. Version-creating commits
// compare-and-swap on this value.
// Pattern: vault:{instance_name}:head:{artifact_id}
func HeadKey(instanceName, artifactID string) string {
	return fmt.Sprintf("vault:%s:head:%s", instanceName, artifactID)
}

// ChildrenKey returns the Redis key for the derived parent->children set
// maintained by the lineage index.
// Pattern: vault:{instance_name}:children:{artifact_id}
func ChildrenKey(instanceName, artifactID string) string {
	return fmt.Sprintf("vault:%s:children:%s", instanceName, artifactID)
}

// DecisionKey returns the Redis key for a governance decision.
// Pattern: vault:{instance_name}:decision:{decision_id}
func DecisionKey(instanceName, decisionID string) string {
	return fmt.Sprintf("vault:%s:decision:%s", instanceName, decisionID)
}

// PendingDecisionsKey returns the Redis key for the ZSET of pending
// escalations, scored by their timeout deadline in Unix milliseconds.
// Pattern: vault:{instance_name}:pending_decisions
func PendingDecisionsKey(instanceName string) string {
	return fmt.Sprintf("vault:%s:pending_decisions", instanceName)
}

// ArtifactEventsChannel returns the Pub/Sub channel for commit events.
// Pattern: vault:{instance_name}:artifact_events
func ArtifactEventsChannel(instanceName string) string {
	return fmt.Sprintf("vault:%s:artifact_events", instanceName)
}

// DecisionEventsChannel returns the Pub/Sub channel for governance events.
// Pattern: vault:{instance_name}:decision_events
func DecisionEventsChannel(instanceName string) string {
	return fmt.Sprintf("vault:%s:decision_events", instanceName)
}

// ArtifactScanPattern returns the SCAN pattern matching hot artifact keys
// whose ID starts with the given prefix. An empty prefix matches all.
func ArtifactScanPattern(instanceName, idPrefix string) string {
	return fmt.Sprintf("vault:%s:artifact:%s*", instanceName, idPrefix)
}

// ColdArtifactScanPattern returns the SCAN pattern for archived artifacts.
func ColdArtifactScanPattern(instanceName, idPrefix string) string {
	return fmt.Sprintf("vault:%s:cold:artifact:%s*", instanceName, idPrefix)
}
