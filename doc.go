// Package callflow turns unreliable, free-form LLM output into validated,
// authorized, sequenced tool invocations, and feeds the results back into
// the conversation.
//
// # Overview
//
// A model asks for tools by emitting JSON (or something close to JSON).
// This package recovers those requests, validates them against the same
// JSON Schemas shown to the model, decides which of them actually run,
// asks the user for permission where required, executes them in order,
// and re-enters the model with the results until a turn produces no
// further calls.
//
// Pipeline: raw model text → ExtractCalls → Validator → PlanBatch →
// Permissions → Pipeline → tool messages → Engine (next turn).
//
// # Key concepts
//
//   - Schema discovery: tool parameter schemas are hidden from the prompt
//     (Registry.BuildView) so the model must call getToolSchema before
//     invoking an unfamiliar tool.
//   - Self-correction: an invalid call produces a corrective tool message
//     carrying the validation error and a minimal synthesized example the
//     model can imitate (ExampleFromSchema).
//   - Halt on error: an evalCode or remote-provider failure abandons the
//     rest of the batch; introspection failures do not.
//
// See Loop for the conversation driver, Registry for tool aggregation,
// and Pipeline for dispatch.
package callflow
