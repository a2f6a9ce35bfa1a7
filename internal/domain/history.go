package domain

// Conversation roles as supplied by the external session store.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one read-only conversation turn. The engine never fetches history
// itself; the caller passes the last N turns.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Intent is the coarse query intent label produced by the analyzer. It only
// influences which validators run; it never blocks retrieval.
type Intent string

const (
	// IntentQuestion is an interrogative query.
	IntentQuestion Intent = "question"
	// IntentInformation asks for facts about a topic.
	IntentInformation Intent = "information"
	// IntentProcedure asks how to do something.
	IntentProcedure Intent = "procedure"
	// IntentGeneral is anything else.
	IntentGeneral Intent = "general"
)
