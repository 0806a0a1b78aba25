package dialogue

// Directives handed to the dialogue generator. Placeholders are filled by the
// engine.
const (
	instrAskRepeat = `The customer's message was empty or could not be understood. Politely ask them to repeat their question.`

	instrAskProduct = `No product model is known yet. Politely ask the customer for their Waterdrop product model (it is printed on the product label, e.g. "WD-A1" or "WD-G3P600-W"). Do not give any troubleshooting steps yet.`

	instrUnrecognized = `The customer mentioned the model %q, which is not a recognized Waterdrop product. Do NOT proceed with troubleshooting. Say: "I don't recognize that product model. Please check your product label or manual and provide the exact model number (it should start with 'WD-' followed by letters and numbers, like 'WD-A1' or 'WD-G3P600-W')."`

	instrAskProblem = `The customer's product is %s. Ask them to describe the specific issue they are having. Do not guess the problem and do not give troubleshooting steps yet.`

	instrResolved = `The customer reported that the last step fixed the issue with their %s. Confirm warmly and ask whether there is anything else you can help with. Do not offer more troubleshooting steps.`

	instrGeneral = `The customer asked a general question (company policies, returns, warranty, shipping or similar). Answer it using ONLY the FAQ context. Keep it brief.`

	instrFAQFirst = `First, check whether the FAQ context directly answers the customer's question. If it does, give that complete answer instead of a troubleshooting step.`

	instrOneStep = `Otherwise, use the FAQ context to give exactly ONE next troubleshooting step for the customer's %s. Do not use knowledge outside the FAQ context.`

	instrNoRepeat = `Before suggesting a step, carefully re-read the chat history. Do NOT repeat any step that was already suggested in this conversation.`

	instrOffered = `Steps already offered, in order: %s.`

	instrTier = `This is troubleshooting step %d of at most %d. Keep it at the %s level (progression: basic checks, then intermediate solutions, then advanced troubleshooting).`

	instrAfterFailure = `The customer reported that the previous step did not help. Move to the next logical step or an alternative approach.`

	instrReportBack = `End the reply by asking the customer to perform the step and report back. Never bundle several steps into one reply.`

	instrStepQuestion = `The customer is asking about the step you last suggested (%q) for their %s. Answer the question using the FAQ context. Do NOT suggest a new troubleshooting step.`

	instrUnavailable = `No relevant information was found in the knowledge base. Tell the customer you don't have that information right now. Do NOT invent troubleshooting steps or facts. Suggest contacting our support team: %s.`

	instrContext = `Relevant FAQ context is attached. Base the reply on it.`

	instrEscalate = `Escalate to human support with exactly this message: %q`
)

const escalationTemplate = "I've guided you through several troubleshooting steps. Let's connect you with our technical support team for further assistance. Please contact: %s"
