package observability

const (
	AttrAgentName       = "agent.name"
	AttrAgentType       = "agent.type"
	AttrSessionID       = "session.id"
	AttrUserID          = "user.id"
	AttrInvocationID    = "invocation.id"
	AttrToolName        = "tool.name"
	AttrToolDescription = "tool.description"
	AttrToolCallID      = "tool.call_id"
	AttrLLMModel        = "llm.model"
	AttrLLMMaxTokens    = "llm.request.max_tokens"
	AttrLLMTemperature  = "llm.request.temperature"
	AttrLLMTopP         = "llm.request.top_p"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrLLMFinishReason = "llm.finish_reason"
	AttrErrorType       = "error.type"
	AttrErrorMessage    = "error.message"

	SpanAgentCall     = "agent.call"
	SpanLLMRequest    = "agent.llm_request"
	SpanToolExecution = "agent.tool_execution"

	DefaultServiceName  = "agentcore"
	DefaultSamplingRate = 1.0
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultMetricsPath  = "/metrics"
)
