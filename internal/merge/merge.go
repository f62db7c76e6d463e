// Package merge implements deterministic three-way conflict resolution for
// record payloads. The resolver is a pure function: client and server can
// independently compute the same merge for the same pair of versions, which
// lets devices resolve optimistically before the coordinator confirms.
package merge

import (
	"reflect"
	"sort"

	"github.com/agrisync/agrisync/internal/models"
)

// Version is one side of a conflict: a record payload plus the ordering
// information of the edit that produced it.
type Version struct {
	Payload  models.Payload
	DeviceID string
	Clock    int64
	Deleted  bool
}

// NewerThan reports whether v's edit ordered after other's. Same rule as
// models.Record.NewerThan: Lamport clock, then device id lexicographically.
func (v Version) NewerThan(other Version) bool {
	if v.Clock != other.Clock {
		return v.Clock > other.Clock
	}
	return v.DeviceID > other.DeviceID
}

// Result is the resolved outcome of a conflict.
type Result struct {
	Payload models.Payload
	Deleted bool

	// DiscardedEdit is true when one side's payload edit was thrown away
	// because the other side deleted the record. Deletion always wins,
	// but the discard must be surfaced to the losing user, never silent.
	DiscardedEdit bool
}

// Resolve merges a local pending version and the server's stored version of
// the same record against their shared base payload.
//
// Rules:
//   - a delete on either side wins; a concurrent payload edit on the other
//     side is discarded and reported via DiscardedEdit
//   - fields changed on only one side relative to base keep that side's value
//   - a field changed on both sides resolves to the newer version's value
//     (Lamport clock, device id tie-break)
//   - list-valued fields changed on both sides are unioned instead of
//     overwritten, newer side's ordering first
func Resolve(base models.Payload, local, server Version) Result {
	if local.Deleted || server.Deleted {
		discarded := false
		if server.Deleted && !local.Deleted && changedAny(base, local.Payload) {
			discarded = true
		}
		if local.Deleted && !server.Deleted && changedAny(base, server.Payload) {
			discarded = true
		}
		return Result{Deleted: true, DiscardedEdit: discarded}
	}

	merged := make(models.Payload)
	for _, field := range fieldUnion(base, local.Payload, server.Payload) {
		baseVal, inBase := base[field]
		localVal, inLocal := local.Payload[field]
		serverVal, inServer := server.Payload[field]

		localChanged := !valueEqual(localVal, inLocal, baseVal, inBase)
		serverChanged := !valueEqual(serverVal, inServer, baseVal, inBase)

		switch {
		case !localChanged && !serverChanged:
			if inBase {
				merged[field] = baseVal
			}
		case localChanged && !serverChanged:
			if inLocal {
				merged[field] = localVal
			}
			// field removed locally: leave it out
		case !localChanged && serverChanged:
			if inServer {
				merged[field] = serverVal
			}
		default:
			// Both sides changed the same field.
			merged[field] = resolveField(localVal, inLocal, serverVal, inServer, local, server)
		}
	}

	return Result{Payload: merged}
}

// resolveField picks the value for a field edited concurrently on both
// sides. Lists union; scalars go to the newer edit.
func resolveField(localVal any, inLocal bool, serverVal any, inServer bool, local, server Version) any {
	localList, localIsList := localVal.([]any)
	serverList, serverIsList := serverVal.([]any)
	if inLocal && inServer && localIsList && serverIsList {
		if local.NewerThan(server) {
			return unionLists(localList, serverList)
		}
		return unionLists(serverList, localList)
	}

	if local.NewerThan(server) {
		if !inLocal {
			return serverVal
		}
		return localVal
	}
	if !inServer {
		return localVal
	}
	return serverVal
}

// unionLists appends elements of second not already present in first.
// Element identity is deep equality; order of the winning side is kept.
func unionLists(first, second []any) []any {
	out := make([]any, 0, len(first)+len(second))
	out = append(out, first...)
	for _, v := range second {
		if !containsValue(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func containsValue(list []any, v any) bool {
	for _, x := range list {
		if reflect.DeepEqual(x, v) {
			return true
		}
	}
	return false
}

// changedAny reports whether payload differs from base in any field.
func changedAny(base, payload models.Payload) bool {
	if len(base) != len(payload) {
		return true
	}
	for k, bv := range base {
		pv, ok := payload[k]
		if !ok || !reflect.DeepEqual(bv, pv) {
			return true
		}
	}
	return false
}

func valueEqual(a any, aOK bool, b any, bOK bool) bool {
	if aOK != bOK {
		return false
	}
	if !aOK {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// fieldUnion returns the sorted union of field names across all inputs.
// Sorted so iteration order never depends on map ordering.
func fieldUnion(payloads ...models.Payload) []string {
	seen := make(map[string]struct{})
	for _, p := range payloads {
		for k := range p {
			seen[k] = struct{}{}
		}
	}
	fields := make([]string, 0, len(seen))
	for k := range seen {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}
