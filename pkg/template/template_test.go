package template

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/convflow/convflow/pkg/models"
)

func buildContext() *models.ExecutionContext {
	ec := models.NewExecutionContext("wf-1", "session-1", "I want a refund")
	ec.CustomerID = "cust-42"
	ec.Intent = "refund"
	ec.IntentConfidence = 0.91
	ec.Entities["orderId"] = "A-1001"
	ec.CustomerInfo["name"] = "Dana"
	ec.SetVariable("plan", "premium")
	ec.SetOutput("node-api", "api says hi")
	ec.AddExecutionDetail(models.NodeExecutionDetail{NodeID: "node-api", Output: "api says hi"})

	return ec
}

func TestRender_SystemNamespace(t *testing.T) {
	ec := buildContext()

	assert.Equal(t, "I want a refund", Render("{{sys.query}}", ec))
	assert.Equal(t, "session-1", Render("{{sys.sessionId}}", ec))
	assert.Equal(t, "cust-42", Render("{{sys.customer_id}}", ec))
	assert.Equal(t, "refund", Render("{{sys.intent}}", ec))
	assert.Equal(t, "0.91", Render("{{sys.intentConfidence}}", ec))
	assert.Equal(t, "api says hi", Render("{{sys.lastOutput}}", ec))
}

func TestRender_AllNamespaces(t *testing.T) {
	ec := buildContext()

	assert.Equal(t, "premium", Render("{{var.plan}}", ec))
	assert.Equal(t, "premium", Render("{{variable.plan}}", ec))
	assert.Equal(t, "api says hi", Render("{{node.node-api}}", ec))
	assert.Equal(t, "Dana", Render("{{customer.name}}", ec))
	assert.Equal(t, "A-1001", Render("{{entity.orderId}}", ec))
}

func TestRender_MixedText(t *testing.T) {
	ec := buildContext()

	out := Render("Hello {{customer.name}}, regarding order {{entity.orderId}}.", ec)

	assert.Equal(t, "Hello Dana, regarding order A-1001.", out)
}

func TestRender_UnknownKeyYieldsEmpty(t *testing.T) {
	ec := buildContext()

	// A known namespace with an unknown key resolves to an empty string and
	// never aborts the surrounding text.
	assert.Equal(t, "before  after", Render("before {{var.nope}} after", ec))
	assert.Equal(t, "", Render("{{customer.missing}}", ec))
	assert.Equal(t, "", Render("{{sys.notAThing}}", ec))
}

func TestRender_UnknownNamespaceYieldsEmpty(t *testing.T) {
	ec := buildContext()

	assert.Equal(t, "x  y", Render("x {{bogus.key}} y", ec))
}

func TestRender_EmptyExpressionStaysLiteral(t *testing.T) {
	ec := buildContext()

	// An empty expression is a resolution failure: the literal token stays
	// visible so broken templates can be spotted.
	assert.Equal(t, "a {{}} b", Render("a {{}} b", ec))
	assert.Equal(t, "a {{}} b", Render("a {{ }} b", ec))
}

func TestRender_BareKeyFallbackOrder(t *testing.T) {
	ec := buildContext()
	ec.SetVariable("orderId", "from-variable")

	// Variables win over entities for bare keys.
	assert.Equal(t, "from-variable", Render("{{orderId}}", ec))

	delete(ec.Variables, "orderId")
	assert.Equal(t, "A-1001", Render("{{orderId}}", ec))
}

func TestRender_BareSystemAliases(t *testing.T) {
	ec := buildContext()

	assert.Equal(t, "I want a refund", Render("{{query}}", ec))
	assert.Equal(t, "refund", Render("{{intent}}", ec))
	assert.Equal(t, "api says hi", Render("{{lastOutput}}", ec))
}

func TestRender_Idempotent(t *testing.T) {
	ec := buildContext()
	ec.SetVariable("tricky", "{{var.plan}}")

	// A resolved value containing {{...}} is not re-expanded: rendering is a
	// single pass.
	once := Render("{{var.tricky}}", ec)
	assert.Equal(t, "{{var.plan}}", once)
}

func TestRender_NilContextAndEmptyTemplate(t *testing.T) {
	assert.Equal(t, "", Render("", buildContext()))
	assert.Equal(t, "{{sys.query}}", Render("{{sys.query}}", nil))
}

func TestRender_WhitespaceInsideToken(t *testing.T) {
	ec := buildContext()

	assert.Equal(t, "premium", Render("{{ var.plan }}", ec))
}

func TestRender_EventNamespace(t *testing.T) {
	ec := buildContext()
	ec.SetVariable("eventData", map[string]any{"source": "webhook", "amount": 12.5})

	assert.Equal(t, "webhook", Render("{{event.source}}", ec))
	assert.Equal(t, "12.5", Render("{{event.amount}}", ec))
	assert.Equal(t, "", Render("{{event.missing}}", ec))
}

func TestRender_AgentNamespace(t *testing.T) {
	ec := buildContext()
	assert.Equal(t, "", Render("{{agent.sysPrompt}}", ec))

	ec.AgentSession = &models.AgentSessionRef{ID: "agent-1", SysPrompt: "be brief"}
	assert.Equal(t, "be brief", Render("{{agent.sysPrompt}}", ec))
	assert.Equal(t, "", Render("{{agent.id}}", ec))
}

func TestParseNamespace(t *testing.T) {
	assert.Equal(t, NamespaceSystem, ParseNamespace("sys"))
	assert.Equal(t, NamespaceSystem, ParseNamespace("SYSTEM"))
	assert.Equal(t, NamespaceVariable, ParseNamespace("var"))
	assert.Equal(t, NamespaceCustomer, ParseNamespace("customer"))
	assert.Equal(t, NamespaceUnknown, ParseNamespace("wat"))
}

func TestHasExpressions(t *testing.T) {
	assert.True(t, HasExpressions("hi {{sys.query}}"))
	assert.False(t, HasExpressions("plain text"))
	assert.False(t, HasExpressions(""))
}

func TestExtractExpressions(t *testing.T) {
	exprs := ExtractExpressions("{{sys.query}} and {{ var.plan }}")

	assert.Equal(t, []string{"sys.query", "var.plan"}, exprs)
}
