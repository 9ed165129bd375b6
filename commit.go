// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package safe

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
)

// entityDelta accumulates the staged field writes for one entity
type entityDelta struct {
	url    URLBuilder
	fields map[string]any

	// proxies are the Object handles that staged into this delta; they are
	// marked clean once the delta is pushed
	proxies []*Object
}

// changeSet records staged attribute writes per entity, keyed by the
// entity's URL path. Entities flush in first-staged order; within one
// entity, repeated writes to the same field follow last-write-wins.
type changeSet struct {
	order  []string
	deltas map[string]*entityDelta
}

func newChangeSet() *changeSet {
	return &changeSet{deltas: map[string]*entityDelta{}}
}

// stage records one field write for the entity behind the proxy
func (s *changeSet) stage(proxy *Object, wire string, value any) {
	path := proxy.url.Path()
	delta, ok := s.deltas[path]
	if !ok {
		delta = &entityDelta{url: proxy.url, fields: map[string]any{}}
		s.deltas[path] = delta
		s.order = append(s.order, path)
	}
	delta.fields[wire] = value

	for _, known := range delta.proxies {
		if known == proxy {
			return
		}
	}
	delta.proxies = append(delta.proxies, proxy)
}

// staged returns the pending field writes for an entity path, or nil
func (s *changeSet) staged(path string) map[string]any {
	if delta, ok := s.deltas[path]; ok {
		return delta.fields
	}
	return nil
}

// discard drops any pending writes for an entity path
func (s *changeSet) discard(path string) {
	delta, ok := s.deltas[path]
	if !ok {
		return
	}
	delete(s.deltas, path)
	for i, candidate := range s.order {
		if candidate == path {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	for _, proxy := range delta.proxies {
		proxy.markClean()
	}
}

// empty reports whether no writes are staged
func (s *changeSet) empty() bool {
	return len(s.order) == 0
}

// flush pushes every staged delta as an update request, in first-staged
// order. Entities pushed before an error are cleared from the set; the
// failing entity and everything after it stay staged.
func (s *changeSet) flush(ctx context.Context, client *Client) error {
	for len(s.order) > 0 {
		path := s.order[0]
		delta := s.deltas[path]

		body, err := Body{}.SetAll(delta.fields).String()
		if err != nil {
			return fmt.Errorf("safe: flush %s: %w", path, err)
		}

		if _, err := client.Post(ctx, delta.url, VerbUpdate, nil, body); err != nil {
			return err
		}

		s.order = s.order[1:]
		delete(s.deltas, path)
		for _, proxy := range delta.proxies {
			proxy.markClean()
		}
	}
	return nil
}

// Pending returns the URL paths of entities with staged, uncommitted writes,
// in first-staged order
func (c *Client) Pending() []string {
	paths := make([]string, len(c.changes.order))
	copy(paths, c.changes.order)
	return paths
}

// Commit pushes all staged attribute writes to the device and then applies
// the device's pending configuration.
//
// Staged writes flush one update request per entity, in the order entities
// were first written to. The apply phase prefers the single-step smartapply
// operation when the device declares it; otherwise it reads the
// configuration status and either reloads, or performs the service
// stop/apply/start sequence when a reload cannot cover the pending changes.
//
// The change-set is cleared only as writes are confirmed. A device-side
// apply rejection surfaces as *CommitFailedError; if the workflow completes
// but the device still reports modified configuration, Commit fails with
// *CommitIncompleteError listing what is pending.
//
// Example:
//
//	profile.SetAttr("sip-port", 5080)
//	if err := client.Commit(ctx); err != nil {
//	    log.Fatal(err)
//	}
func (c *Client) Commit(ctx context.Context) error {
	root, err := c.Root(ctx)
	if err != nil {
		return err
	}

	if err := c.changes.flush(ctx, c); err != nil {
		return err
	}

	config, service, err := commitTargets(root)
	if err != nil {
		return err
	}

	if config.schema.hasVerb("smartapply") {
		if _, err := config.Call(ctx, "smartapply"); err != nil {
			return err
		}
	} else {
		if err := c.applyStepwise(ctx, config, service); err != nil {
			return err
		}
	}

	status, err := config.Call(ctx, "status")
	if err != nil {
		return err
	}
	if status.Data().Get("modified").Bool() {
		return &CommitIncompleteError{Messages: parseStatusMessages(status.Data())}
	}

	c.logger.Info(ctx, "commit complete", "host", c.Host)
	return nil
}

// applyStepwise runs the pre-smartapply commit sequence: reload when the
// device says a reload covers the pending changes, otherwise stop the
// service, apply the configuration and start it again.
func (c *Client) applyStepwise(ctx context.Context, config, service *Object) error {
	status, err := config.Call(ctx, "status")
	if err != nil {
		return err
	}
	if !status.Data().Get("modified").Bool() {
		return nil
	}

	if status.Data().Get("can_reload").Bool() {
		_, err := config.Call(ctx, "reload")
		return err
	}

	c.logger.Info(ctx, "pending changes require a service restart", "host", c.Host)
	if _, err := service.Call(ctx, "stop"); err != nil {
		return err
	}
	if _, err := config.Call(ctx, "apply"); err != nil {
		return err
	}
	if _, err := service.Call(ctx, "start"); err != nil {
		return err
	}
	return nil
}

// commitTargets resolves the configuration and service singletons used by
// the commit workflow
func commitTargets(root *Object) (config, service *Object, err error) {
	nsc, err := root.Child("nsc")
	if err != nil {
		return nil, nil, fmt.Errorf("safe: commit: device does not expose nsc: %w", err)
	}
	config, err = nsc.Child("configuration")
	if err != nil {
		return nil, nil, fmt.Errorf("safe: commit: device does not expose nsc configuration: %w", err)
	}
	service, err = nsc.Child("service")
	if err != nil {
		return nil, nil, fmt.Errorf("safe: commit: device does not expose nsc service: %w", err)
	}
	return config, service, nil
}

// Changelog returns the configuration changes the device reports as pending,
// without applying anything
func (c *Client) Changelog(ctx context.Context) ([]StatusMessage, error) {
	root, err := c.Root(ctx)
	if err != nil {
		return nil, err
	}

	config, _, err := commitTargets(root)
	if err != nil {
		return nil, err
	}

	status, err := config.Call(ctx, "status")
	if err != nil {
		return nil, err
	}
	return parseStatusMessages(status.Data()), nil
}

// parseStatusMessages decodes the configuration status payload into pending
// change messages. Newer releases group changes under reload/restart/apply
// sections with item lists; 2.1 releases report a flat reloadable map.
func parseStatusMessages(data gjson.Result) []StatusMessage {
	messages := []StatusMessage{}

	for _, section := range []string{"reload", "restart", "apply"} {
		items := data.Get(section + ".items")
		if !items.Exists() {
			continue
		}
		items.ForEach(func(_, item gjson.Result) bool {
			message := StatusMessage{
				Module:      item.Get("module").String(),
				Status:      item.Get("status").String(),
				Description: item.Get("description").String(),
			}
			if message.Status == "" {
				message.Status = section
			}
			if message.Description == "" {
				message.Description = message.Module
			}
			messages = append(messages, message)
			return true
		})
	}
	if len(messages) > 0 {
		return messages
	}

	// 2.1 format
	data.Get("reloadable").ForEach(func(module, state gjson.Result) bool {
		messages = append(messages, StatusMessage{
			Module:      module.String(),
			Status:      state.Get("configuration").String(),
			Description: module.String(),
		})
		return true
	})
	return messages
}
