package query

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapbase/pkg/core"
)

// buildMatchConditions composes the row-visibility predicate for the
// acting user: ownership constraints, per-record permission narrowing,
// hook-derived clauses, and sharing grants.
//
// When the user has no role-level read/select permission and no
// applicable per-record grant, visibility collapses to explicitly shared
// records; with none shared the query fails with a permission error
// before any SQL is built.
func (q *Query) buildMatchConditions() (string, error) {
	q.matchConditions = nil
	onlyIfShared := false

	if len(q.tables) == 0 {
		if err := q.extractTables(); err != nil {
			return "", err
		}
	}

	rolePerms := q.svc.Permissions.RolePermissions(q.doctype, q.user)
	q.shared = q.svc.Permissions.Shared(q.doctype, q.user)

	if !q.svc.Schema.IsChildTable(q.doctype) &&
		!rolePerms.Select && !rolePerms.Read &&
		!q.hasAnyUserPermission() {
		onlyIfShared = true
		if len(q.shared) == 0 {
			return "", &core.PermissionError{DocType: q.doctype, Detail: "no read permission"}
		}
		q.conditions = append(q.conditions, q.shareCondition())
	} else {
		if rolePerms.RequiresOwnerConstraint() {
			q.matchConditions = append(q.matchConditions,
				fmt.Sprintf("%s.`owner` = %s", q.primaryTable(), q.svc.Escaper.Escape(q.user, false)))
		} else if rolePerms.Read || rolePerms.Select {
			q.addUserPermissions(q.svc.Permissions.UserPermissions(q.user))
		}
	}

	conditions := ""
	if len(q.matchConditions) > 0 {
		conditions = "((" + strings.Join(q.matchConditions, ") or (") + "))"
	}

	if hookConditions := q.svc.Hooks.Conditions(q.doctype, q.user); len(hookConditions) > 0 {
		joined := strings.Join(hookConditions, " and ")
		if conditions != "" {
			conditions += " and " + joined
		} else {
			conditions = joined
		}
	}

	// a record visible via direct share is always visible
	if !onlyIfShared && len(q.shared) > 0 && conditions != "" {
		conditions = fmt.Sprintf("(%s) or (%s)", conditions, q.shareCondition())
	}

	return conditions, nil
}

func (q *Query) shareCondition() string {
	escaped := make([]string, len(q.shared))
	for i, s := range q.shared {
		escaped[i] = q.svc.Escaper.Escape(s, false)
	}
	return q.dialect.CastName(q.primaryTable()+".name") +
		fmt.Sprintf(" in (%s)", strings.Join(escaped, ", "))
}

// hasAnyUserPermission reports whether the user holds a per-record grant
// on this doctype applicable in the current reference context.
func (q *Query) hasAnyUserPermission() bool {
	grants := q.svc.Permissions.UserPermissions(q.user)[q.doctype]
	for _, grant := range grants {
		if grant.ApplicableFor == "" || grant.ApplicableFor == q.refDocType {
			return true
		}
	}
	return false
}

// addUserPermissions builds one OR-group per link field the user holds
// grants for: (linkfield is empty OR linkfield in (<allowed>)). Each
// group independently restricts visibility, so groups are AND-ed. The
// empty-value bypass is dropped in strict user-permission mode.
//
// The primary id column participates as a self-link so grants on the
// doctype itself narrow it too.
func (q *Query) addUserPermissions(grants map[string][]core.UserPermission) {
	linkFields := q.svc.Schema.LinkFields(q.doctype)
	linkFields = append(linkFields, core.DocField{
		Fieldname: "name",
		Fieldtype: core.FieldTypeLink,
		Options:   q.doctype,
	})

	strict := q.svc.Permissions.StrictUserPermissions()

	var groups []string
	for _, df := range linkFields {
		if df.IgnoreUserPermissions {
			continue
		}

		fieldGrants := grants[df.Options]
		if len(fieldGrants) == 0 {
			continue
		}

		var docs []string
		for _, grant := range fieldGrants {
			switch {
			case grant.ApplicableFor == "":
				docs = append(docs, grant.Doc)
			case df.Fieldname == "name" && q.refDocType != "":
				// grants scoped to the reference doctype apply when the
				// doctype is reached through one of its link fields
				if grant.ApplicableFor == q.refDocType {
					docs = append(docs, grant.Doc)
				}
			case grant.ApplicableFor == q.doctype:
				docs = append(docs, grant.Doc)
			}
		}
		if len(docs) == 0 {
			continue
		}

		condition := ""
		if !strict {
			condition = q.dialect.CastName(
				fmt.Sprintf("coalesce(%s.`%s`, '')=''", q.primaryTable(), df.Fieldname)) + " or "
		}

		escaped := make([]string, len(docs))
		for i, doc := range docs {
			escaped[i] = q.svc.Escaper.Escape(doc, false)
		}
		condition += q.dialect.CastName(fmt.Sprintf("%s.`%s`", q.primaryTable(), df.Fieldname)) +
			fmt.Sprintf(" in (%s)", strings.Join(escaped, ", "))

		groups = append(groups, "("+condition+")")
	}

	if len(groups) > 0 {
		q.matchConditions = append(q.matchConditions, strings.Join(groups, " and "))
	}
}
