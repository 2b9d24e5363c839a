// Package template holds the CloudFormation document the packager writes into.
package template

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"
)

const (
	formatVersion = "2010-09-09"

	// ProvisionedProductType is the resource type emitted for each function.
	ProvisionedProductType = "AWS::ServiceCatalog::CloudFormationProvisionedProduct"
)

// Sink is the write-only view of a template used during reconciliation.
type Sink interface {
	SetResource(logicalID string, resource any)
	SetOutput(key string, output Output)
}

// Output is a template output entry.
type Output struct {
	Description string `json:"Description,omitempty"`
	Value       any    `json:"Value"`
}

// Tag is a resource tag
type Tag struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// ProvisionedProduct is the body of an AWS::ServiceCatalog::CloudFormationProvisionedProduct.
type ProvisionedProduct struct {
	Type       string                       `json:"Type"`
	Properties ProvisionedProductProperties `json:"Properties"`
}

type ProvisionedProductProperties struct {
	ProvisioningParameters   ProvisioningParameters `json:"ProvisioningParameters"`
	ProvisioningArtifactName string                 `json:"ProvisioningArtifactName"`
	ProductID                string                 `json:"ProductId"`
	ProvisionedProductName   string                 `json:"ProvisionedProductName"`
	Tags                     []Tag                  `json:"Tags,omitempty"`
}

// Template is a CloudFormation template. Content outside Resources and Outputs
// is preserved untouched. Safe for concurrent use.
type Template struct {
	mu        sync.Mutex
	doc       map[string]any
	resources map[string]any
	outputs   map[string]any
}

// New returns an empty template.
func New(description string) *Template {
	doc := map[string]any{
		"AWSTemplateFormatVersion": formatVersion,
	}
	if description != "" {
		doc["Description"] = description
	}
	return fromDoc(doc)
}

// Parse loads an existing JSON template.
func Parse(data []byte) (*Template, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	for _, section := range []string{"Resources", "Outputs"} {
		if v, ok := doc[section]; ok && v != nil {
			if _, isMap := v.(map[string]any); !isMap {
				return nil, fmt.Errorf("failed to parse template: %s is not an object", section)
			}
		}
	}
	return fromDoc(doc), nil
}

func fromDoc(doc map[string]any) *Template {
	section := func(name string) map[string]any {
		if m, ok := doc[name].(map[string]any); ok {
			return m
		}
		m := map[string]any{}
		doc[name] = m
		return m
	}
	return &Template{
		doc:       doc,
		resources: section("Resources"),
		outputs:   section("Outputs"),
	}
}

// SetResource implements Sink
func (t *Template) SetResource(logicalID string, resource any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resources[logicalID] = resource
}

// SetOutput implements Sink
func (t *Template) SetOutput(key string, output Output) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outputs[key] = output
}

// Resource returns the resource stored under logicalID
func (t *Template) Resource(logicalID string) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.resources[logicalID]
	return v, ok
}

// Output returns the output stored under key
func (t *Template) Output(key string) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.outputs[key]
	return v, ok
}

// OutputKeys returns the sorted output keys
func (t *Template) OutputKeys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Sorted(maps.Keys(t.outputs))
}

// ResourceKeys returns the sorted resource logical ids
func (t *Template) ResourceKeys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Sorted(maps.Keys(t.resources))
}

// MarshalJSON encodes the template with sorted keys.
func (t *Template) MarshalJSON() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return json.Marshal(t.doc)
}

// Encode returns the indented JSON form of the template.
func (t *Template) Encode() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return json.MarshalIndent(t.doc, "", "  ")
}

// Ref returns a CloudFormation Ref intrinsic
func Ref(logicalID string) map[string]any {
	return map[string]any{"Ref": logicalID}
}

// GetAtt returns a CloudFormation Fn::GetAtt intrinsic
func GetAtt(logicalID, attribute string) map[string]any {
	return map[string]any{"Fn::GetAtt": []string{logicalID, attribute}}
}

// ImportValue returns a CloudFormation Fn::ImportValue intrinsic
func ImportValue(name string) map[string]any {
	return map[string]any{"Fn::ImportValue": name}
}
