package agent

// ================ Config ================
type Config struct {
	Session struct {
		TTL string `envconfig:"SESSION_TTL" default:"15m"`
	}
	Tools struct {
		MaxIterations int `envconfig:"TOOL_MAX_ITERATIONS" default:"10"`
	}
	Memory struct {
		Enabled             bool    `envconfig:"MEMORY_ENABLED" default:"false"`
		Path                string  `envconfig:"MEMORY_PATH" default:"./output/memory.json"`
		MaxItemsPerSession  int     `envconfig:"MEMORY_MAX_ITEMS_PER_SESSION" default:"50"`
		FastAnswerThreshold float64 `envconfig:"FAST_ANSWER_THRESHOLD" default:"0.85"`
	}
}

type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.0"`
}

type TriageModelConfig struct {
	Model       string  `envconfig:"TRIAGE_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"TRIAGE_MAX_TOKENS" default:"1000"`
	Temperature float32 `envconfig:"TRIAGE_TEMPERATURE" default:"0.0"`
}

// GenesysConfig carries the live-chat deployment identifiers. Departments with
// an empty deployment ID still register their handoff tool; the emitted signal
// simply carries an empty deploymentId for the frontend to reject.
type GenesysConfig struct {
	Region                string `envconfig:"GENESYS_REGION" default:"euw2.pure.cloud"`
	DeploymentMOJ         string `envconfig:"GENESYS_DEPLOYMENT_ID_MOJ"`
	DeploymentImmigration string `envconfig:"GENESYS_DEPLOYMENT_ID_IMMIGRATION"`
	DeploymentPensions    string `envconfig:"GENESYS_DEPLOYMENT_ID_PENSIONS_FORMS_AND_RETURNS"`
}
