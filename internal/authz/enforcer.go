// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

// Package authz decides which list operations a caller may perform, using a
// Casbin RBAC model. A caller's role on a list is either owner or member;
// the owner role inherits every member permission.
package authz

import (
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/tomtom215/listsync/internal/logging"
	"github.com/tomtom215/listsync/internal/metrics"
)

// Role is a caller's relationship to a list.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
	// RoleNone has no policy lines, so every check fails.
	RoleNone Role = "none"
)

// Action is a list operation subject to authorization.
type Action string

const (
	ActionRead         Action = "read"
	ActionRename       Action = "rename"
	ActionEditItems    Action = "edit_items"
	ActionLeave        Action = "leave"
	ActionShare        Action = "share"
	ActionDelete       Action = "delete"
	ActionRemoveMember Action = "remove_member"
)

// listObject is the only object type in the policy.
const listObject = "list"

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// defaultPolicy is in Casbin CSV form.
const defaultPolicy = `
p, member, list, read
p, member, list, rename
p, member, list, edit_items
p, member, list, leave

p, owner, list, share
p, owner, list, delete
p, owner, list, remove_member

g, owner, member
`

// Enforcer wraps a synced Casbin enforcer loaded with the list policy.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds an enforcer with the built-in model and policy.
func NewEnforcer() (*Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	if err := loadPolicy(enforcer, defaultPolicy); err != nil {
		return nil, err
	}
	return &Enforcer{enforcer: enforcer}, nil
}

// loadPolicy adds the p and g lines of a CSV policy.
func loadPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch {
		case parts[0] == "p" && len(parts) == 4:
			if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) == 3:
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return fmt.Errorf("malformed policy line %q", line)
		}
	}
	return nil
}

// Allowed reports whether role may perform action on a list. Evaluation
// errors deny.
func (e *Enforcer) Allowed(role Role, action Action) bool {
	allowed, err := e.enforcer.Enforce(string(role), listObject, string(action))
	if err != nil {
		logging.Error().Err(err).
			Str("role", string(role)).
			Str("action", string(action)).
			Msg("Authorization check failed")
		allowed = false
	}
	metrics.RecordAuthzDecision(string(role), string(action), allowed)
	return allowed
}

// RoleOf returns userID's role on a list owned by ownerID. isMember is the
// result of a membership lookup for non-owners.
func RoleOf(ownerID, userID string, isMember bool) Role {
	switch {
	case userID != "" && userID == ownerID:
		return RoleOwner
	case isMember:
		return RoleMember
	default:
		return RoleNone
	}
}
