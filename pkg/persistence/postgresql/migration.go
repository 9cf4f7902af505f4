package postgresql

// migrations returns the ordered schema migrations for PostgreSQL.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				graph JSONB NOT NULL DEFAULT '{"nodes":[],"edges":[]}',
				enabled BOOLEAN NOT NULL DEFAULT TRUE,
				is_default BOOLEAN NOT NULL DEFAULT FALSE,
				version INTEGER NOT NULL DEFAULT 1,
				trigger_type VARCHAR(32) NOT NULL DEFAULT 'ALL',
				variables JSONB,
				owner VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_deleted_at ON workflows (deleted_at);
			CREATE UNIQUE INDEX idx_workflows_default
				ON workflows (is_default) WHERE is_default AND deleted_at IS NULL;
		`,
		2: `
			CREATE TABLE workflow_paused_states (
				id UUID PRIMARY KEY,
				session_id VARCHAR(255) NOT NULL,
				workflow_id UUID NOT NULL,
				tenant_id VARCHAR(255) NOT NULL DEFAULT '',
				sub_chain_id VARCHAR(255) NOT NULL DEFAULT '',
				llm_node_id VARCHAR(255) NOT NULL DEFAULT '',
				pause_reason TEXT NOT NULL DEFAULT '',
				schema_version INTEGER NOT NULL DEFAULT 1,
				context_json TEXT NOT NULL DEFAULT '',
				tool_state_json TEXT NOT NULL DEFAULT '',
				params_json TEXT NOT NULL DEFAULT '',
				history_json TEXT NOT NULL DEFAULT '',
				current_round INTEGER NOT NULL DEFAULT 0,
				max_rounds INTEGER NOT NULL DEFAULT 5,
				pending_tool_id VARCHAR(255) NOT NULL DEFAULT '',
				pending_tool_name VARCHAR(255) NOT NULL DEFAULT '',
				next_question TEXT NOT NULL DEFAULT '',
				status VARCHAR(32) NOT NULL DEFAULT 'WAITING_USER_INPUT',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				expired_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_paused_states_session_status
				ON workflow_paused_states (session_id, status);
			CREATE INDEX idx_paused_states_status_expired
				ON workflow_paused_states (status, expired_at);
			CREATE UNIQUE INDEX idx_paused_states_one_pending
				ON workflow_paused_states (session_id) WHERE status = 'WAITING_USER_INPUT';
		`,
		3: `
			CREATE TABLE execution_logs (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL,
				session_id VARCHAR(255) NOT NULL,
				message_id VARCHAR(255) NOT NULL DEFAULT '',
				tenant_id VARCHAR(255) NOT NULL DEFAULT '',
				query TEXT NOT NULL DEFAULT '',
				reply TEXT NOT NULL DEFAULT '',
				success BOOLEAN NOT NULL DEFAULT TRUE,
				paused BOOLEAN NOT NULL DEFAULT FALSE,
				error_message TEXT NOT NULL DEFAULT '',
				node_details_json TEXT NOT NULL DEFAULT '',
				duration_ms BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_execution_logs_workflow ON execution_logs (workflow_id, created_at DESC);
			CREATE INDEX idx_execution_logs_session ON execution_logs (session_id, created_at DESC);
		`,
	}
}
