// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package controller

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dswarbrick/raidctl/mailbox"
)

// MaxControllers is the number of io_node slots in a registry.
const MaxControllers = 32

// Registry is the table of attached controllers, indexed by io_node.
type Registry struct {
	mu    sync.RWMutex
	slots [MaxControllers]*Controller
	stats tracker
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Attach registers a controller reached through t in the lowest free slot and returns its
// handle. It fails with ErrNoSuchController if the table is full.
func (r *Registry) Attach(id Identity, t mailbox.Transport) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for node, c := range r.slots {
		if c != nil {
			continue
		}

		c = &Controller{node: node, id: id, t: t, stats: &r.stats}
		r.slots[node] = c

		log.WithFields(logrus.Fields{"node": node, "controller": id}).Info("controller attached")
		return c, nil
	}

	return nil, mailbox.Errorf(mailbox.KindNoSuchController, "attach", "all %d slots in use", MaxControllers)
}

// Detach removes the controller at node. Commands already running on it complete normally.
func (r *Registry) Detach(node int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if node < 0 || node >= MaxControllers || r.slots[node] == nil {
		return mailbox.Errorf(mailbox.KindNoSuchController, "detach", "io_node %d", node)
	}

	r.slots[node] = nil
	log.WithField("node", node).Info("controller detached")
	return nil
}

// Lookup returns the controller at node, or ErrNoSuchController.
func (r *Registry) Lookup(node int) (*Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if node < 0 || node >= MaxControllers || r.slots[node] == nil {
		return nil, mailbox.Errorf(mailbox.KindNoSuchController, "lookup", "io_node %d", node)
	}

	return r.slots[node], nil
}

// Count returns the number of attached controllers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, c := range r.slots {
		if c != nil {
			n++
		}
	}
	return n
}

// Controllers returns the attached controllers in io_node order.
func (r *Registry) Controllers() []*Controller {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var cs []*Controller
	for _, c := range r.slots {
		if c != nil {
			cs = append(cs, c)
		}
	}
	return cs
}

// Stats returns a snapshot of the command statistics of all controllers in the registry.
func (r *Registry) Stats() Statistics {
	return r.stats.snapshot()
}
