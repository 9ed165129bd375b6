// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package safe

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Specification node sections. Every other key on a node is scalar metadata
// (name, description, singleton, ...).
const (
	sectionObject  = "object"
	sectionClass   = "class"
	sectionMethods = "methods"
)

// AttributeDef describes one configurable attribute declared in a node's
// "class" section of the specification.
type AttributeDef struct {
	// Name is the wire token of the attribute (for example "sip-ip")
	Name string

	// Type is the declared input type hint (for example "text", "dropdown")
	Type string

	// Label is the display label
	Label string

	// Help is the help text
	Help string

	// Rules is the raw validation rule string (for example
	// "required|in_list[all,eth0]"). Rules are not evaluated locally except
	// for the required flag; value validation is the device's job.
	Rules string

	// Required reports whether the rules mark this attribute mandatory
	Required bool

	// Default is the declared default value as raw JSON, empty if absent
	Default string
}

// MethodNode describes one remote operation declared in a node's "methods"
// section.
type MethodNode struct {
	// Tag is the wire verb (for example "retrieve", "smartapply")
	Tag string

	// Name is the display name
	Name string

	// Request is the HTTP request kind, "GET" or "POST"
	Request string

	// Description is the method description, if declared
	Description string
}

// ObjectNode is one node of the parsed specification tree. It represents a
// schema-declared object type together with its attributes, methods and
// nested children. ObjectNode values are immutable after parse completes and
// are shared read-only by every proxy of one schema version.
type ObjectNode struct {
	// Tag is the schema token naming this node's type (for example "profile")
	Tag string

	// Path is the tag sequence from the specification root to this node
	Path []string

	// Name is the display name declared on the node
	Name string

	// Description is the node description, if declared
	Description string

	// Singleton reports whether exactly one instance of this type exists.
	// Top-level modules are always singletons but, unlike other objects,
	// don't report it.
	Singleton bool

	// Attributes holds the declared attribute definitions, in declaration
	// order
	Attributes []AttributeDef

	// Methods holds the declared operations, in declaration order
	Methods []MethodNode

	// Children holds the nested object types, in declaration order.
	// Ordering is preserved for display purposes only; uniqueness is by tag.
	Children []*ObjectNode
}

// IsObject reports whether the node represents a retrievable, updatable
// entity (its method set covers both "retrieve" and "update").
func (n *ObjectNode) IsObject() bool {
	var hasRetrieve, hasUpdate bool
	for _, method := range n.Methods {
		switch method.Tag {
		case "retrieve":
			hasRetrieve = true
		case "update":
			hasUpdate = true
		}
	}
	return hasRetrieve && hasUpdate
}

// Method returns the declared method with the given wire verb, if any
func (n *ObjectNode) Method(tag string) (MethodNode, bool) {
	for _, method := range n.Methods {
		if method.Tag == tag {
			return method, true
		}
	}
	return MethodNode{}, false
}

// ParseWarning records a specification subtree that was skipped during
// parsing because its shape was not understood. The rest of the tree is
// unaffected; callers can inspect warnings to diagnose coverage gaps.
type ParseWarning struct {
	// Path locates the skipped node within the specification tree
	Path []string

	// Reason describes why the subtree was skipped
	Reason string
}

// String renders the warning as "path: reason"
func (w ParseWarning) String() string {
	return strings.Join(w.Path, "/") + ": " + w.Reason
}

// ParseSpec converts the raw SAFe specification into an abstract syntax tree
// representing its structure.
//
// The specification is a JSON object mapping top-level module tags to node
// descriptions. Each node may carry an "object" section (nested object
// types), a "class" section (attribute definitions) and a "methods" section
// (remote operations); all other keys are scalar metadata.
//
// Every known inconsistency of the historical specification formats is
// absorbed here so the schema builder can assume a clean, uniform tree.
// Subtrees whose shape is not understood are skipped and recorded as
// warnings rather than aborting the parse; only genuinely malformed input
// (not a JSON object tree) fails with *MalformedSpecError.
//
// The returned root is a synthetic node whose children are the top-level
// modules, in declaration order.
func ParseSpec(raw []byte) (*ObjectNode, []ParseWarning, error) {
	if len(raw) == 0 {
		return nil, nil, &MalformedSpecError{Reason: "empty specification"}
	}
	if !gjson.ValidBytes(raw) {
		return nil, nil, &MalformedSpecError{Reason: "invalid JSON"}
	}

	spec := gjson.ParseBytes(raw)
	if !spec.IsObject() {
		return nil, nil, &MalformedSpecError{Reason: "specification root is not a JSON object"}
	}

	parser := &specParser{}
	root := &ObjectNode{Singleton: true}
	spec.ForEach(func(key, value gjson.Result) bool {
		if node := parser.parseObject(key.String(), value, nil); node != nil {
			root.Children = append(root.Children, node)
		}
		return true
	})

	return root, parser.warnings, nil
}

// specParser accumulates warnings across the recursive descent
type specParser struct {
	warnings []ParseWarning
}

// warn records a skipped subtree
func (p *specParser) warn(path []string, reason string) {
	p.warnings = append(p.warnings, ParseWarning{Path: path, Reason: reason})
}

// parseObject parses one object node bottom-up. Returns nil if the node was
// skipped (with a recorded warning).
func (p *specParser) parseObject(tag string, value gjson.Result, path []string) *ObjectNode {
	nodePath := append(append([]string{}, path...), tag)

	if !value.IsObject() {
		p.warn(nodePath, "node is not a JSON object")
		return nil
	}

	node := &ObjectNode{
		Tag:         tag,
		Path:        nodePath,
		Name:        value.Get("name").String(),
		Description: descriptionString(value.Get("description")),
	}

	// Modules are objects except for when they're not: top-level modules
	// are always singletons but don't report it.
	if len(nodePath) == 1 {
		node.Singleton = true
	} else {
		node.Singleton = value.Get("singleton").Bool()
	}

	value.ForEach(func(key, section gjson.Result) bool {
		switch key.String() {
		case sectionObject:
			p.parseChildren(node, section, nodePath)
		case sectionClass:
			p.parseAttributes(node, section, nodePath)
		case sectionMethods:
			p.parseMethods(node, section, nodePath)
		}
		return true
	})

	return node
}

// parseChildren parses a node's "object" section
func (p *specParser) parseChildren(node *ObjectNode, section gjson.Result, path []string) {
	if !section.IsObject() {
		p.warn(append(append([]string{}, path...), sectionObject), "section is not a JSON object")
		return
	}
	section.ForEach(func(key, value gjson.Result) bool {
		if child := p.parseObject(key.String(), value, path); child != nil {
			node.Children = append(node.Children, child)
		}
		return true
	})
}

// parseAttributes parses a node's "class" section
func (p *specParser) parseAttributes(node *ObjectNode, section gjson.Result, path []string) {
	if !section.IsObject() {
		p.warn(append(append([]string{}, path...), sectionClass), "section is not a JSON object")
		return
	}
	section.ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() {
			p.warn(append(append([]string{}, path...), sectionClass, key.String()),
				"attribute definition is not a JSON object")
			return true
		}
		rules := value.Get("rules").String()
		node.Attributes = append(node.Attributes, AttributeDef{
			Name:     key.String(),
			Type:     value.Get("type").String(),
			Label:    value.Get("label").String(),
			Help:     value.Get("help").String(),
			Rules:    rules,
			Required: rulesRequire(rules),
			Default:  value.Get("default").Raw,
		})
		return true
	})
}

// parseMethods parses a node's "methods" section
func (p *specParser) parseMethods(node *ObjectNode, section gjson.Result, path []string) {
	if !section.IsObject() {
		p.warn(append(append([]string{}, path...), sectionMethods), "section is not a JSON object")
		return
	}
	section.ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() {
			p.warn(append(append([]string{}, path...), sectionMethods, key.String()),
				"method definition is not a JSON object")
			return true
		}
		node.Methods = append(node.Methods, MethodNode{
			Tag:         key.String(),
			Name:        value.Get("name").String(),
			Request:     value.Get("request").String(),
			Description: descriptionString(value.Get("description")),
		})
		return true
	})
}

// rulesRequire reports whether a rule string contains the "required" rule
func rulesRequire(rules string) bool {
	for _, rule := range strings.Split(rules, "|") {
		if rule == "required" {
			return true
		}
	}
	return false
}

// descriptionString normalizes a description value. Needs to be handled
// carefully since the specification sometimes returns an array of lines
// instead of a string.
func descriptionString(value gjson.Result) string {
	if value.IsArray() {
		lines := []string{}
		value.ForEach(func(_, line gjson.Result) bool {
			lines = append(lines, line.String())
			return true
		})
		return strings.Join(lines, "\n")
	}
	return value.String()
}
