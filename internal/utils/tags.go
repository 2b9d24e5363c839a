package utils

import (
	"maps"
	"slices"

	"github.com/savaki/sc-packager/internal/template"
)

// MergeTags merges multiple tag maps with later maps having higher precedence
// Returns the merged tags sorted by key, or nil when every map is empty
func MergeTags(tt ...map[string]string) []template.Tag {
	m := map[string]string{}
	for _, t := range tt {
		maps.Copy(m, t)
	}

	var results []template.Tag
	for _, k := range slices.Sorted(maps.Keys(m)) {
		results = append(results, template.Tag{
			Key:   k,
			Value: m[k],
		})
	}

	return results
}
