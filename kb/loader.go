package kb

import (
	"fmt"
	"sort"

	"github.com/goccy/go-json"
)

// Dataset is one bundled definition source. A dataset file may carry tag
// definitions, fixed-field layouts, or both.
type Dataset struct {
	// Name identifies the dataset in error messages.
	Name string
	// Raw is the dataset's JSON content.
	Raw []byte
}

// datasetFile mirrors the on-disk dataset shape.
type datasetFile struct {
	Tags   map[string]TagDefinition                `json:"tags"`
	Fields map[string]map[string]positionFileEntry `json:"fields"`
}

type positionFileEntry struct {
	Start       int               `json:"start"`
	End         int               `json:"end"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Values      map[string]string `json:"values"`
}

// Load builds the knowledge base from datasets in declaration order.
//
// Merge policy: for a tag appearing in multiple datasets, the later
// dataset's top-level fields override the earlier one's, while subfield
// and indicator maps are unioned key-by-key with the later dataset
// winning individual collisions. A holdings dataset and a bibliographic
// dataset can therefore coexist with their subfield sets combined.
//
// A structurally invalid dataset makes Load fail; the knowledge base is
// foundational and a corrupt dataset cannot safely serve any request.
func Load(datasets ...Dataset) (*KnowledgeBase, error) {
	kb := &KnowledgeBase{
		tags:  make(map[string]*TagDefinition),
		fixed: make(map[string]*FixedFieldDefinition),
	}
	for _, ds := range datasets {
		var file datasetFile
		if err := json.Unmarshal(ds.Raw, &file); err != nil {
			return nil, fmt.Errorf("dataset %s: invalid JSON: %w", ds.Name, err)
		}
		if len(file.Tags) == 0 && len(file.Fields) == 0 {
			return nil, fmt.Errorf("dataset %s: no tags or fields declared", ds.Name)
		}
		if err := kb.mergeTags(ds.Name, file.Tags); err != nil {
			return nil, err
		}
		if err := kb.mergeFixed(ds.Name, file.Fields); err != nil {
			return nil, err
		}
	}
	return kb, nil
}

func (kb *KnowledgeBase) mergeTags(source string, tags map[string]TagDefinition) error {
	for tag, def := range tags {
		if def.Tag == "" {
			def.Tag = tag
		}
		if def.Tag != tag {
			return fmt.Errorf("dataset %s: tag %q declares mismatched tag %q", source, tag, def.Tag)
		}
		if def.Name == "" {
			return fmt.Errorf("dataset %s: tag %q is missing required key \"name\"", source, tag)
		}
		for code, sf := range def.Subfields {
			if sf.Code == "" {
				sf.Code = code
				def.Subfields[code] = sf
			}
			if sf.Name == "" {
				return fmt.Errorf("dataset %s: tag %q subfield %q is missing required key \"name\"", source, tag, code)
			}
		}

		existing, ok := kb.tags[tag]
		if !ok {
			merged := def
			merged.Indicators = copyIndicators(def.Indicators)
			merged.Subfields = copySubfields(def.Subfields)
			kb.tags[tag] = &merged
			continue
		}

		// Later dataset overrides the top-level fields.
		existing.Name = def.Name
		if def.Description != "" {
			existing.Description = def.Description
		}
		existing.Repeatable = def.Repeatable

		// Subfield and indicator maps are unioned key-by-key.
		if existing.Subfields == nil {
			existing.Subfields = make(map[string]SubfieldDefinition, len(def.Subfields))
		}
		for code, sf := range def.Subfields {
			existing.Subfields[code] = sf
		}
		if existing.Indicators == nil {
			existing.Indicators = make(map[string]map[string]string, len(def.Indicators))
		}
		for pos, values := range def.Indicators {
			if existing.Indicators[pos] == nil {
				existing.Indicators[pos] = make(map[string]string, len(values))
			}
			for v, desc := range values {
				existing.Indicators[pos][v] = desc
			}
		}
	}
	return nil
}

func (kb *KnowledgeBase) mergeFixed(source string, fields map[string]map[string]positionFileEntry) error {
	for tag, positions := range fields {
		def, ok := kb.fixed[tag]
		if !ok {
			def = &FixedFieldDefinition{Tag: tag}
			kb.fixed[tag] = def
		}
		for key, pos := range positions {
			if pos.Name == "" {
				return fmt.Errorf("dataset %s: fixed field %q position %q is missing required key \"name\"", source, tag, key)
			}
			if pos.Start < 0 || pos.End < -1 || (pos.End >= 0 && pos.End < pos.Start) {
				return fmt.Errorf("dataset %s: fixed field %q position %q has invalid range %d..%d", source, tag, key, pos.Start, pos.End)
			}
			replaced := false
			for i := range def.Positions {
				if def.Positions[i].Key == key {
					def.Positions[i] = newPosition(key, pos)
					replaced = true
					break
				}
			}
			if !replaced {
				def.Positions = append(def.Positions, newPosition(key, pos))
			}
		}
		sort.Slice(def.Positions, func(i, j int) bool {
			return def.Positions[i].Start < def.Positions[j].Start
		})
	}
	return nil
}

func newPosition(key string, e positionFileEntry) FixedFieldPosition {
	return FixedFieldPosition{
		Key:         key,
		Start:       e.Start,
		End:         e.End,
		Name:        e.Name,
		Description: e.Description,
		Values:      e.Values,
	}
}

func copyIndicators(in map[string]map[string]string) map[string]map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]map[string]string, len(in))
	for pos, values := range in {
		m := make(map[string]string, len(values))
		for v, d := range values {
			m[v] = d
		}
		out[pos] = m
	}
	return out
}

func copySubfields(in map[string]SubfieldDefinition) map[string]SubfieldDefinition {
	if in == nil {
		return nil
	}
	out := make(map[string]SubfieldDefinition, len(in))
	for code, sf := range in {
		out[code] = sf
	}
	return out
}
