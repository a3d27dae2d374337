package llm

// decidePrompt wraps the state summary the decision service builds. The
// model must answer with a single JSON object matching the behavior schema.
const decidePrompt = `You decide the next action for one inhabitant of a small simulated village.

You are given the agent's identity, current needs, recent memories, held beliefs and trust in nearby agents. Choose the single action that best fits who this agent is and what they need right now.

Respond ONLY with a JSON object. No markdown, no explanation. Example:
{"action":"farm","target":"west field","reason":"the crops need tending and hunger is rising"}

Valid actions: eat, rest, socialize, work, farm, build, craft, pray, wander.

%s`
