// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package safe

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ProxyState describes the materialization state of an Object proxy
type ProxyState int

const (
	// StateUnmaterialized means no field set has been fetched yet
	StateUnmaterialized ProxyState = iota

	// StateMaterialized means the field set is cached and clean
	StateMaterialized

	// StateDirty means local writes are staged and not yet committed
	StateDirty
)

// String returns the string representation of a ProxyState
func (s ProxyState) String() string {
	switch s {
	case StateUnmaterialized:
		return "unmaterialized"
	case StateMaterialized:
		return "materialized"
	case StateDirty:
		return "dirty"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Object is a live proxy for one remote entity: a module, a singleton
// sub-object or one member of a collection. Its shape (available attributes,
// methods and children) is fully determined by the schema descriptor it was
// built from and never changes per-instance.
//
// Attributes are materialized lazily: the first read fetches the entity's
// full field set in a single retrieve and caches it until the proxy is
// refreshed or invalidated. Writes are staged locally in the client's
// change-set and applied by Commit.
//
// Object is not safe for unsynchronized concurrent use; the object model
// assumes cooperative, single-threaded use per client handle.
type Object struct {
	client *Client
	schema *nodeSchema
	url    URLBuilder
	key    string

	// fields caches the entity's field set as raw JSON
	fields       string
	materialized bool
	dirty        bool

	// children and collections cache navigated sub-proxies
	children    map[string]*Object
	collections map[string]*Collection
}

// newObject constructs a proxy over a schema descriptor. The builder must
// already include the full object path (tags and, for collection members,
// the key).
func newObject(client *Client, schema *nodeSchema, url URLBuilder, key string) *Object {
	return &Object{
		client:      client,
		schema:      schema,
		url:         url,
		key:         key,
		children:    map[string]*Object{},
		collections: map[string]*Collection{},
	}
}

// Tag returns the schema token naming this object's type
func (o *Object) Tag() string {
	return o.schema.tag()
}

// Key returns the collection member key this proxy was navigated with, or an
// empty string for singletons
func (o *Object) Key() string {
	return o.key
}

// State returns the proxy's materialization state
func (o *Object) State() ProxyState {
	switch {
	case o.dirty:
		return StateDirty
	case o.materialized:
		return StateMaterialized
	default:
		return StateUnmaterialized
	}
}

// Attrs returns the sanitized attribute names declared on this object, in
// schema declaration order
func (o *Object) Attrs() []string {
	names := make([]string, len(o.schema.attrNames))
	copy(names, o.schema.attrNames)
	return names
}

// Methods returns the sanitized names of the extra product-declared verbs
// callable via Call, in schema declaration order
func (o *Object) Methods() []string {
	names := make([]string, len(o.schema.extraNames))
	copy(names, o.schema.extraNames)
	return names
}

// Children returns the sanitized tags of the nested object types, in schema
// declaration order
func (o *Object) Children() []string {
	names := make([]string, len(o.schema.childNames))
	copy(names, o.schema.childNames)
	return names
}

// OriginalName resolves a sanitized member name (attribute, child or method)
// back to the exact original schema token it was derived from
//
// Sanitization is not invertible, so this is a table lookup against the
// mapping recorded at build time, never a re-derivation.
func (o *Object) OriginalName(sanitized string) (string, bool) {
	return o.schema.originalName(sanitized)
}

// Child navigates to a singleton child object
//
// Fails with *UnknownAttributeError when the name is not a declared child,
// and with a plain error when the child is a collection (use Collection).
// Child proxies are created lazily and cached.
func (o *Object) Child(name string) (*Object, error) {
	if cached, ok := o.children[name]; ok {
		return cached, nil
	}

	child, ok := o.schema.children[name]
	if !ok {
		return nil, &UnknownAttributeError{Object: o.Tag(), Name: name}
	}
	if !child.node.Singleton {
		return nil, fmt.Errorf("safe: child %q of %q is a collection, use Collection", name, o.Tag())
	}

	proxy := newObject(o.client, child, o.url.Join(child.node.Tag), "")
	o.children[name] = proxy
	return proxy, nil
}

// Collection navigates to a child collection
//
// Fails with *UnknownAttributeError when the name is not a declared child,
// and with a plain error when the child is a singleton (use Child).
// Collection proxies are created lazily and cached.
func (o *Object) Collection(name string) (*Collection, error) {
	if cached, ok := o.collections[name]; ok {
		return cached, nil
	}

	child, ok := o.schema.children[name]
	if !ok {
		return nil, &UnknownAttributeError{Object: o.Tag(), Name: name}
	}
	if child.node.Singleton {
		return nil, fmt.Errorf("safe: child %q of %q is a singleton, use Child", name, o.Tag())
	}

	collection := &Collection{
		client:  o.client,
		schema:  child,
		url:     o.url.Join(child.node.Tag),
		members: map[string]*Object{},
	}
	o.collections[name] = collection
	return collection, nil
}

// GetAttr reads one attribute of the entity
//
// The name may be the sanitized form or the original wire token. Unknown
// names fail with *UnknownAttributeError before any network activity. On an
// unmaterialized proxy the read triggers exactly one retrieve fetching the
// entity's full field set; subsequent reads on a clean proxy are served from
// the cache.
//
// Example:
//
//	ip, err := profile.GetAttr(ctx, "sip_ip")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(ip.String())
func (o *Object) GetAttr(ctx context.Context, name string) (gjson.Result, error) {
	wire, ok := o.schema.attrWire(name)
	if !ok {
		return gjson.Result{}, &UnknownAttributeError{Object: o.Tag(), Name: name}
	}

	if err := o.materialize(ctx); err != nil {
		return gjson.Result{}, err
	}

	return gjson.Get(o.fields, escapeFieldName(wire)), nil
}

// SetAttr stages a new value for one attribute
//
// The change is applied to the local cache and recorded in the client's
// change-set; the device is not contacted until Commit. Repeated writes to
// the same field follow a last-write-wins policy: the latest staged value
// replaces the earlier one.
//
// Unknown names fail with *UnknownAttributeError.
func (o *Object) SetAttr(name string, value any) error {
	wire, ok := o.schema.attrWire(name)
	if !ok {
		return &UnknownAttributeError{Object: o.Tag(), Name: name}
	}

	updated, err := sjson.Set(o.fields, escapeFieldName(wire), value)
	if err != nil {
		return fmt.Errorf("safe: set %q: %w", name, err)
	}
	o.fields = updated
	o.dirty = true

	o.client.changes.stage(o, wire, value)
	return nil
}

// Fields returns the entity's full field set, materializing it if necessary
func (o *Object) Fields(ctx context.Context) (gjson.Result, error) {
	if err := o.materialize(ctx); err != nil {
		return gjson.Result{}, err
	}
	return gjson.Parse(o.fields), nil
}

// Refresh re-fetches the entity's field set from the device. Staged,
// uncommitted writes are re-applied on top of the fresh data and remain
// staged.
func (o *Object) Refresh(ctx context.Context) error {
	o.materialized = false
	return o.materialize(ctx)
}

// Invalidate discards the cached field set, returning the proxy to the
// unmaterialized state. Changes already staged in the client's change-set
// remain staged and are still applied by Commit.
func (o *Object) Invalidate() {
	o.fields = ""
	o.materialized = false
	o.dirty = false
}

// materialize fetches the entity's field set if it is not cached yet, then
// re-applies any staged local writes on top
func (o *Object) materialize(ctx context.Context) error {
	if o.materialized {
		return nil
	}

	res, err := o.client.Get(ctx, o.url, VerbRetrieve, nil)
	if err != nil {
		return err
	}

	o.fields = res.Data().Raw
	if o.fields == "" {
		o.fields = "{}"
	}
	o.materialized = true

	for wire, value := range o.client.changes.staged(o.url.Path()) {
		updated, err := sjson.Set(o.fields, escapeFieldName(wire), value)
		if err != nil {
			return fmt.Errorf("safe: reapply staged %q: %w", wire, err)
		}
		o.fields = updated
	}

	return nil
}

// markClean transitions a dirty proxy back to materialized after its staged
// writes were successfully pushed
func (o *Object) markClean() {
	o.dirty = false
}

// Call dispatches a product-declared extra verb (for example "start",
// "stop", "status", "smartapply")
//
// The name may be the sanitized form or the original wire verb. Undeclared
// verbs fail with *UnknownMethodError before any network activity. For GET
// verbs the arguments become extra path segments; for POST verbs a trailing
// map argument, if present, is sent as the JSON body and any leading
// arguments become path segments.
//
// Example:
//
//	res, err := profile.Call(ctx, "status")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Data().Get("status_text").String())
func (o *Object) Call(ctx context.Context, name string, args ...any) (Res, error) {
	wire, ok := o.schema.extras[name]
	if !ok {
		// Accept the wire verb itself
		for _, verb := range o.schema.extras {
			if verb == name {
				wire = verb
				ok = true
				break
			}
		}
	}
	if !ok {
		return Res{}, &UnknownMethodError{Object: o.Tag(), Name: name}
	}

	method := o.schema.verbs[wire]

	if method.Request == "POST" {
		var body string
		if len(args) > 0 {
			if fields, isMap := args[len(args)-1].(map[string]any); isMap {
				built, err := Body{}.SetAll(fields).String()
				if err != nil {
					return Res{}, fmt.Errorf("safe: call %q: %w", name, err)
				}
				body = built
				args = args[:len(args)-1]
			}
		}
		return o.client.Post(ctx, o.url, wire, callPath(args), body)
	}

	return o.client.Get(ctx, o.url, wire, callPath(args))
}

// callPath renders call arguments as path segments
func callPath(args []any) []string {
	path := make([]string, len(args))
	for i, arg := range args {
		path[i] = fmt.Sprint(arg)
	}
	return path
}

// Upload posts an archive to this object's upload verb
//
// Fails with *UnknownMethodError when the object does not declare upload.
func (o *Object) Upload(ctx context.Context, filename string, payload []byte) (Res, error) {
	if !o.schema.hasVerb(VerbUpload) {
		return Res{}, &UnknownMethodError{Object: o.Tag(), Name: VerbUpload}
	}
	return o.client.Upload(ctx, o.url, filename, payload)
}

// Download fetches binary content from this object's download verb
//
// Fails with *UnknownMethodError when the object does not declare download.
func (o *Object) Download(ctx context.Context, path ...string) (Res, error) {
	if !o.schema.hasVerb(VerbDownload) {
		return Res{}, &UnknownMethodError{Object: o.Tag(), Name: VerbDownload}
	}
	return o.client.Get(ctx, o.url, VerbDownload, path)
}

// Delete removes the entity on the device
//
// The call is forwarded unconditionally: preconditions such as "must be
// stopped first" are the device's to enforce, and its rejection is surfaced
// verbatim as *APIError.
func (o *Object) Delete(ctx context.Context) error {
	_, err := o.client.Post(ctx, o.url, VerbDelete, nil, "")
	if err != nil {
		return err
	}
	o.Invalidate()
	o.client.changes.discard(o.url.Path())
	return nil
}

// Collection is a live proxy for a keyed set of remote entities of one
// object type (for example "all SIP profiles"). It owns, but does not
// eagerly populate, its member proxies: Item creates them lazily and caches
// them by key.
type Collection struct {
	client  *Client
	schema  *nodeSchema
	url     URLBuilder
	members map[string]*Object
}

// Tag returns the schema token naming the collection's member type
func (c *Collection) Tag() string {
	return c.schema.tag()
}

// List returns the member keys as reported by the device
//
// The result is a sequence, not a set: ordering is whatever the device
// returned for this call. Full member objects are resolved lazily via Item.
func (c *Collection) List(ctx context.Context) ([]string, error) {
	res, err := c.client.Get(ctx, c.url, VerbList, nil)
	if err != nil {
		return nil, err
	}

	keys := []string{}
	res.Data().ForEach(func(_, key gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	return keys, nil
}

// Find returns the member keys matching a filter expression
//
// The filter is forwarded opaquely to the device; its syntax is the
// product's. A nil filter degrades to List. Server-side filtering requires
// product version 2.1.13 or newer; older devices fail with an error before
// any search request is sent.
func (c *Collection) Find(ctx context.Context, filter any) ([]string, error) {
	if filter == nil {
		return c.List(ctx)
	}

	version, err := c.client.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	if !version.AtLeast(2, 1, 13) {
		return nil, fmt.Errorf("find: no REST support for searching on %s", version)
	}

	body, err := Body{}.Set("filter", filter).String()
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}

	res, err := c.client.Post(ctx, c.url, VerbList, nil, body)
	if err != nil {
		return nil, err
	}

	keys := []string{}
	res.Data().ForEach(func(_, key gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	return keys, nil
}

// Item returns the member proxy for a key
//
// The proxy is created lazily and cached; no network activity happens until
// one of its attributes is read. The key is not checked for existence
// locally - a retrieve on a missing member surfaces the device's error.
func (c *Collection) Item(key string) *Object {
	if cached, ok := c.members[key]; ok {
		return cached
	}

	member := newObject(c.client, c.schema, c.url.Join(key), key)
	c.members[key] = member
	return member
}

// Contains reports whether the device currently lists the given key
func (c *Collection) Contains(ctx context.Context, key string) (bool, error) {
	keys, err := c.List(ctx)
	if err != nil {
		return false, err
	}
	for _, candidate := range keys {
		if candidate == key {
			return true, nil
		}
	}
	return false, nil
}

// Len returns the number of members the device currently lists
func (c *Collection) Len(ctx context.Context) (int, error) {
	keys, err := c.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Create creates a new member with the given key and fields
//
// Field names may be wire tokens or their sanitized forms. Every attribute
// the schema marks required must be present; missing ones fail with
// *MissingRequiredFieldError naming all of them, before any network call.
// Field values are not validated locally - range and cross-field constraints
// are the device's responsibility and its rejection is surfaced verbatim.
//
// When the schema declares a display-name attribute and none is supplied,
// it defaults to the key.
//
// Example:
//
//	profile, err := profiles.Create(ctx, "branch", map[string]any{
//	    "sip-ip":   "10.0.0.5",
//	    "sip-port": 5080,
//	})
func (c *Collection) Create(ctx context.Context, key string, fields map[string]any) (*Object, error) {
	wireFields := make(map[string]any, len(fields))
	for name, value := range fields {
		if wire, ok := c.schema.attrWire(name); ok {
			wireFields[wire] = value
		} else {
			// Unknown fields pass through; the device validates them
			wireFields[name] = value
		}
	}

	missing := []string{}
	for _, required := range c.schema.required {
		if _, ok := wireFields[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingRequiredFieldError{Object: c.Tag(), Fields: missing}
	}

	if _, declared := c.schema.attrWire("display-name"); declared {
		if _, ok := wireFields["display-name"]; !ok {
			wireFields["display-name"] = key
		}
	}

	body, err := Body{}.SetAll(wireFields).String()
	if err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}

	if _, err := c.client.Post(ctx, c.url, VerbCreate, []string{key}, body); err != nil {
		return nil, err
	}

	return c.Item(key), nil
}

// Update replaces fields of an existing member, forwarding unconditionally
func (c *Collection) Update(ctx context.Context, key string, fields map[string]any) error {
	body, err := Body{}.SetAll(fields).String()
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	if _, err := c.client.Post(ctx, c.url, VerbUpdate, []string{key}, body); err != nil {
		return err
	}

	// Cached member fields are stale now
	if member, ok := c.members[key]; ok {
		member.Invalidate()
	}
	return nil
}

// Delete removes a member on the device, forwarding unconditionally
//
// Precondition violations (for example "entity is in use") are
// device-reported errors, not detected locally.
func (c *Collection) Delete(ctx context.Context, key string) error {
	if _, err := c.client.Post(ctx, c.url, VerbDelete, []string{key}, ""); err != nil {
		return err
	}

	if member, ok := c.members[key]; ok {
		member.Invalidate()
		delete(c.members, key)
	}
	c.client.changes.discard(c.url.Join(key).Path())
	return nil
}
