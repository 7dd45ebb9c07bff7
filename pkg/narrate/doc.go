// Package narrate turns a ranked recommendation into a short human
// explanation.
//
// Two implementations sit behind the Narrator interface. LLMNarrator sends
// the structured facts to an LLM and returns its paragraph; TemplateNarrator
// composes the same facts into deterministic text (distance and wait
// buckets, the wait saved versus the next alternative, a reliability
// mention, load and fault advisories). The template is both the no-API-key
// mode and the fallback for every LLM failure, so Explain never returns an
// error and a recommendation always carries an explanation.
package narrate
