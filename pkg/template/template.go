// Package template resolves {{namespace.key}} expressions against an
// execution context. Rendering is deterministic, side-effect free and
// fail-soft: a single bad expression never aborts the surrounding text.
package template

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/convflow/convflow/pkg/models"
)

// expressionPattern matches {{expr}} occurrences; expr is trimmed before
// resolution and may be namespace.key or a bare key.
var expressionPattern = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// Namespace is the closed set of variable namespaces. Adding one is a
// compile-time change: resolveNamespace switches exhaustively over these.
type Namespace int

const (
	NamespaceUnknown Namespace = iota
	NamespaceSystem
	NamespaceVariable
	NamespaceNode
	NamespaceCustomer
	NamespaceEntity
	NamespaceAgent
	NamespaceEvent
)

// ParseNamespace maps a namespace segment to its enum value,
// case-insensitively. Unknown names map to NamespaceUnknown.
func ParseNamespace(s string) Namespace {
	switch strings.ToLower(s) {
	case "sys", "system":
		return NamespaceSystem
	case "var", "variable":
		return NamespaceVariable
	case "node":
		return NamespaceNode
	case "customer":
		return NamespaceCustomer
	case "entity":
		return NamespaceEntity
	case "agent":
		return NamespaceAgent
	case "event":
		return NamespaceEvent
	default:
		return NamespaceUnknown
	}
}

// Render substitutes every {{expr}} occurrence in a single left-to-right
// pass. An unknown namespace or key yields an empty string for that
// occurrence; an actual resolution failure leaves the literal {{expr}} in
// place so bad templates stay visible for debugging.
func Render(tmpl string, ctx *models.ExecutionContext) string {
	if tmpl == "" || ctx == nil {
		return tmpl
	}

	return expressionPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])

		value, err := resolveExpression(expr, ctx)
		if err != nil {
			slog.Debug("template expression left unresolved", "expression", expr, "error", err)

			return "{{" + expr + "}}"
		}

		return value
	})
}

// HasExpressions reports whether the template contains any {{expr}} token.
func HasExpressions(tmpl string) bool {
	return tmpl != "" && expressionPattern.MatchString(tmpl)
}

// ExtractExpressions returns the trimmed expressions of all tokens in order.
func ExtractExpressions(tmpl string) []string {
	var out []string

	for _, m := range expressionPattern.FindAllStringSubmatch(tmpl, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}

	return out
}

// resolveExpression resolves one trimmed expression. A returned error means
// the occurrence is preserved literally; resolver panics are mapped to
// errors so one bad value cannot abort the whole render.
func resolveExpression(expr string, ctx *models.ExecutionContext) (value string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("resolving %q: %v", expr, r)
		}
	}()

	if expr == "" {
		return "", fmt.Errorf("empty expression")
	}

	if dot := strings.Index(expr, "."); dot > 0 {
		ns := ParseNamespace(expr[:dot])
		key := expr[dot+1:]

		return resolveNamespace(ns, key, ctx), nil
	}

	return resolveBareKey(expr, ctx), nil
}

func resolveNamespace(ns Namespace, key string, ctx *models.ExecutionContext) string {
	switch ns {
	case NamespaceSystem:
		return resolveSystem(key, ctx)
	case NamespaceVariable:
		return toString(ctx.Variable(key))
	case NamespaceNode:
		return toString(ctx.Output(key))
	case NamespaceCustomer:
		return toString(ctx.CustomerInfo[key])
	case NamespaceEntity:
		return toString(ctx.Entities[key])
	case NamespaceAgent:
		return resolveAgent(key, ctx)
	case NamespaceEvent:
		return resolveEvent(key, ctx)
	case NamespaceUnknown:
		return ""
	default:
		return ""
	}
}

func resolveSystem(key string, ctx *models.ExecutionContext) string {
	switch strings.ToLower(key) {
	case "query", "input", "usermessage", "user_message":
		return ctx.Query
	case "lastoutput", "last_output", "previousoutput", "previous_output":
		return ctx.LastOutput()
	case "intent":
		return ctx.Intent
	case "intentconfidence", "intent_confidence":
		if ctx.IntentConfidence == 0 {
			return ""
		}

		return strconv.FormatFloat(ctx.IntentConfidence, 'f', 2, 64)
	case "sessionid", "session_id":
		return ctx.SessionID
	case "customerid", "customer_id":
		return ctx.CustomerID
	case "finalreply", "final_reply":
		return ctx.FinalReply
	case "needhumantransfer", "need_human_transfer":
		return strconv.FormatBool(ctx.NeedHumanTransfer)
	case "humantransferreason", "human_transfer_reason":
		return ctx.HumanTransferReason
	case "now", "date", "currentdate", "current_date":
		return time.Now().Format("2006-01-02")
	default:
		return ""
	}
}

// resolveAgent exposes exactly one key of the embedded agent session.
func resolveAgent(key string, ctx *models.ExecutionContext) string {
	if ctx.AgentSession == nil {
		return ""
	}

	switch strings.ToLower(key) {
	case "sysprompt", "sys_prompt":
		return ctx.AgentSession.SysPrompt
	default:
		return ""
	}
}

// resolveEvent looks up a field inside the eventData variable, which an
// external trigger (webhook, schedule) injects as a map. A missing or
// non-map value yields an empty string.
func resolveEvent(key string, ctx *models.ExecutionContext) string {
	eventData, ok := ctx.Variable("eventData").(map[string]any)
	if !ok {
		return ""
	}

	return toString(eventData[key])
}

// resolveBareKey resolves an expression with no namespace by trying the
// fixed system aliases, then variables, entities, customer info and node
// outputs. First hit wins.
func resolveBareKey(key string, ctx *models.ExecutionContext) string {
	switch strings.ToLower(key) {
	case "query", "input", "usermessage", "user_message":
		return ctx.Query
	case "lastoutput", "last_output":
		return ctx.LastOutput()
	case "intent":
		if ctx.Intent != "" {
			return ctx.Intent
		}
	}

	if v := ctx.Variable(key); v != nil {
		return toString(v)
	}

	if v, ok := ctx.Entities[key]; ok && v != nil {
		return toString(v)
	}

	if v, ok := ctx.CustomerInfo[key]; ok && v != nil {
		return toString(v)
	}

	if v := ctx.Output(key); v != nil {
		return toString(v)
	}

	return ""
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprintf("%v", s)
	}
}
