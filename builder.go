// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package safe

import "fmt"

// Closed set of CRUD verbs the proxy runtime dispatches through dedicated
// methods. Every other declared verb is attached as an extra method callable
// via Object.Call.
const (
	VerbCreate   = "create"
	VerbRetrieve = "retrieve"
	VerbUpdate   = "update"
	VerbDelete   = "delete"
	VerbList     = "list"
	VerbSearch   = "search"
	VerbUpload   = "upload"
	VerbDownload = "download"
)

// crudVerbs are the wire verbs with dedicated proxy methods
var crudVerbs = map[string]bool{
	VerbCreate:   true,
	VerbRetrieve: true,
	VerbUpdate:   true,
	VerbDelete:   true,
	VerbList:     true,
	VerbSearch:   true,
	VerbUpload:   true,
	VerbDownload: true,
}

// Schema is the built object model for one specification version. It holds
// one immutable descriptor per object node, with sanitized member tables
// mapping every exposed name back to its original schema token. A Schema is
// read-only once built and safely shared by all proxies of one client.
type Schema struct {
	root *nodeSchema
}

// nodeSchema is the descriptor determining the shape of every proxy backed
// by one ObjectNode: available attributes, callable methods and nested
// collection accessors. The mapping is fixed at build time and never mutated
// per-instance.
type nodeSchema struct {
	node *ObjectNode

	// attrs maps sanitized attribute names to wire tokens
	attrs map[string]string

	// attrNames holds the sanitized attribute names in declaration order
	attrNames []string

	// required holds the wire tokens of required attributes in declaration
	// order
	required []string

	// verbs maps wire verbs to their method declaration
	verbs map[string]MethodNode

	// extras maps sanitized extra verb names to wire verbs
	extras map[string]string

	// extraNames holds the sanitized extra verb names in declaration order
	extraNames []string

	// children maps sanitized child tags to child descriptors
	children map[string]*nodeSchema

	// childNames holds the sanitized child tags in declaration order
	childNames []string
}

// Build walks the parsed specification depth-first and derives the schema
// descriptor for every object node: the set of sanitized attribute names,
// the set of callable method names and the nested-collection accessors.
//
// Build fails with *BuildError when two distinct schema tokens sanitize to
// the same member name within one node's namespace (a silent overwrite is
// never acceptable) or when a declared extra method references an HTTP
// request kind other than GET or POST. Build performs no network activity.
func Build(root *ObjectNode) (*Schema, error) {
	if root == nil {
		return nil, &BuildError{Reason: "nil specification root"}
	}
	node, err := buildNode(root)
	if err != nil {
		return nil, err
	}
	return &Schema{root: node}, nil
}

// buildNode builds the descriptor for one node and, recursively, its
// children.
func buildNode(node *ObjectNode) (*nodeSchema, error) {
	schema := &nodeSchema{
		node:     node,
		attrs:    map[string]string{},
		verbs:    map[string]MethodNode{},
		extras:   map[string]string{},
		children: map[string]*nodeSchema{},
	}

	for _, attr := range node.Attributes {
		sanitized := Sanitize(attr.Name)
		if previous, taken := schema.attrs[sanitized]; taken {
			return nil, &BuildError{
				Path: node.Path,
				Reason: fmt.Sprintf("attribute %q collides with %q after sanitization (both map to %q)",
					attr.Name, previous, sanitized),
			}
		}
		schema.attrs[sanitized] = attr.Name
		schema.attrNames = append(schema.attrNames, sanitized)
		if attr.Required {
			schema.required = append(schema.required, attr.Name)
		}
	}

	for _, method := range node.Methods {
		schema.verbs[method.Tag] = method
		if crudVerbs[method.Tag] {
			continue
		}

		// Extra product-declared verb: attach as a callable
		if method.Request != "GET" && method.Request != "POST" {
			return nil, &BuildError{
				Path: node.Path,
				Reason: fmt.Sprintf("method %q references undeclared request kind %q",
					method.Tag, method.Request),
			}
		}
		sanitized := Sanitize(method.Tag)
		if previous, taken := schema.extras[sanitized]; taken {
			return nil, &BuildError{
				Path: node.Path,
				Reason: fmt.Sprintf("method %q collides with %q after sanitization (both map to %q)",
					method.Tag, previous, sanitized),
			}
		}
		schema.extras[sanitized] = method.Tag
		schema.extraNames = append(schema.extraNames, sanitized)
	}

	for _, child := range node.Children {
		sanitized := Sanitize(child.Tag)
		if previous, taken := schema.children[sanitized]; taken {
			return nil, &BuildError{
				Path: node.Path,
				Reason: fmt.Sprintf("child %q collides with %q after sanitization (both map to %q)",
					child.Tag, previous.node.Tag, sanitized),
			}
		}
		built, err := buildNode(child)
		if err != nil {
			return nil, err
		}
		schema.children[sanitized] = built
		schema.childNames = append(schema.childNames, sanitized)
	}

	return schema, nil
}

// attrWire resolves a sanitized (or already-wire) attribute name to the
// original schema token. Caller-supplied wire tokens are accepted so create
// payloads can be written either way.
func (s *nodeSchema) attrWire(name string) (string, bool) {
	if wire, ok := s.attrs[name]; ok {
		return wire, true
	}
	// Accept the wire token itself
	for _, wire := range s.attrs {
		if wire == name {
			return wire, true
		}
	}
	return "", false
}

// originalName resolves any sanitized member name (attribute, child or extra
// method) back to the original schema token it was derived from.
func (s *nodeSchema) originalName(sanitized string) (string, bool) {
	if wire, ok := s.attrs[sanitized]; ok {
		return wire, true
	}
	if child, ok := s.children[sanitized]; ok {
		return child.node.Tag, true
	}
	if wire, ok := s.extras[sanitized]; ok {
		return wire, true
	}
	return "", false
}

// hasVerb reports whether the node declares the given wire verb
func (s *nodeSchema) hasVerb(verb string) bool {
	_, ok := s.verbs[verb]
	return ok
}

// tag returns the node's schema token, or "root" for the synthetic root
func (s *nodeSchema) tag() string {
	if s.node.Tag == "" {
		return "root"
	}
	return s.node.Tag
}
