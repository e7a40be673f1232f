// Package capability extracts provider capability tags from resource labels.
//
// A Secret or WorkloadIdentity declares that it can serve a provider type by
// carrying a label of the form
//
//	provider.shoot.gardener.cloud/<type>: "true"
//
// Every such label contributes one capability tag (the <type> part).
package capability

import (
	"sort"
	"strings"
)

// LabelPrefix is the label namespace that marks provider capability labels.
const LabelPrefix = "provider.shoot.gardener.cloud/"

// FromLabels returns the capability tags declared by the given label set.
// Only labels under LabelPrefix whose value is exactly "true" count. A nil
// or empty label set yields no tags. The result is sorted; callers may rely
// on the order for display but not for correctness.
func FromLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}
	var tags []string
	for key, value := range labels {
		name, ok := strings.CutPrefix(key, LabelPrefix)
		if !ok || name == "" || value != "true" {
			continue
		}
		tags = append(tags, name)
	}
	sort.Strings(tags)
	return tags
}
