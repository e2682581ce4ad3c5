// Package pipeline orchestrates one query through safety screening, routing,
// retrieval and answering. Every step degrades rather than fails: the
// pipeline always produces an answer letter, and the degradation flags on the
// prediction say which fallbacks fired.
package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/khaothi-ai/khaothi/internal/domain"
	"github.com/khaothi-ai/khaothi/internal/llm"
	"github.com/khaothi-ai/khaothi/internal/search"
	"github.com/khaothi-ai/khaothi/internal/telemetry"
)

// SafetyGuardInterface screens a query before anything else runs.
type SafetyGuardInterface interface {
	Check(ctx context.Context, queryText string) domain.SafetyVerdict
}

// SelectorInterface picks the refusal option for an unsafe question.
type SelectorInterface interface {
	SelectRefusalOption(ctx context.Context, q domain.Question) int
}

// RouterInterface classifies a query into a processing mode.
type RouterInterface interface {
	Route(queryText string) domain.RouteDecision
}

// SearchEngineInterface runs hybrid retrieval for RAG queries.
type SearchEngineInterface interface {
	Search(ctx context.Context, in search.Input) search.Output
}

// QueryResult is everything ProcessQuery assembled for one query.
type QueryResult struct {
	Verdict  domain.SafetyVerdict
	Route    domain.RouteDecision
	Chunks   []domain.ScoredChunk
	Degraded []string
}

// Deps wires the pipeline collaborators. Audit is optional; a nil channel
// disables audit emission.
type Deps struct {
	Guard    SafetyGuardInterface
	Selector SelectorInterface
	Router   RouterInterface
	Engine   SearchEngineInterface
	Chat     llm.ChatClient
	Audit    chan<- domain.AuditRecord
}

// Pipeline answers multiple-choice questions. Safe for concurrent use; all
// state is read-only collaborators.
type Pipeline struct {
	guard    SafetyGuardInterface
	selector SelectorInterface
	router   RouterInterface
	engine   SearchEngineInterface
	chat     llm.ChatClient
	audit    chan<- domain.AuditRecord
}

// New creates a Pipeline from its collaborators.
func New(deps Deps) *Pipeline {
	return &Pipeline{
		guard:    deps.Guard,
		selector: deps.Selector,
		router:   deps.Router,
		engine:   deps.Engine,
		chat:     deps.Chat,
		audit:    deps.Audit,
	}
}

// ProcessQuery runs safety, routing and retrieval for one question without
// answering it. An unsafe verdict short-circuits: the route reports SAFETY
// mode and no retrieval happens. targetYear > 0 overrides the year the
// router extracted.
func (p *Pipeline) ProcessQuery(ctx context.Context, q domain.Question, targetYear int) *QueryResult {
	res := &QueryResult{}

	res.Verdict = p.guard.Check(ctx, q.Text)
	if res.Verdict.Degraded {
		res.Degraded = append(res.Degraded, domain.DegradeSafetyEmbedding)
	}
	if res.Verdict.Unsafe {
		res.Route = domain.RouteDecision{Mode: domain.RouteModeSafety}
		return res
	}

	res.Route = p.router.Route(q.Text)
	if targetYear > 0 {
		res.Route.Year = targetYear
	}
	if res.Route.Mode != domain.RouteModeRAG {
		return res
	}

	out := p.engine.Search(ctx, search.Input{
		Query:    q.Text,
		Year:     res.Route.Year,
		Entities: res.Route.Entities,
		Category: res.Route.Category,
	})
	res.Chunks = out.Results
	if out.LexicalDegraded {
		res.Degraded = append(res.Degraded, domain.DegradeLexicalLeg)
	}
	if out.SemanticDegraded {
		res.Degraded = append(res.Degraded, domain.DegradeSemanticLeg)
	}
	return res
}

// Answer runs the full flow and always produces an answer letter. Unsafe
// questions get the refusal option; READING and STEM go straight to the
// model; RAG answers over the retrieved context, or without context when
// retrieval came back empty.
func (p *Pipeline) Answer(ctx context.Context, q domain.Question) domain.Prediction {
	start := time.Now()
	res := p.ProcessQuery(ctx, q, 0)

	var idx int
	switch {
	case res.Verdict.Unsafe:
		idx = p.selector.SelectRefusalOption(ctx, q)
		if len(q.Options) == 0 {
			res.Degraded = append(res.Degraded, domain.DegradeNoOptions)
		}
	case len(q.Options) == 0:
		res.Degraded = append(res.Degraded, domain.DegradeNoOptions)
	default:
		idx = p.complete(ctx, q, res)
	}

	pred := domain.Prediction{
		QID:      q.ID,
		Answer:   domain.OptionLetter(idx),
		Mode:     res.Route.Mode,
		Unsafe:   res.Verdict.Unsafe,
		Degraded: res.Degraded,
		Elapsed:  time.Since(start),
	}
	p.emitAudit(q, res, pred)
	return pred
}

// complete builds the mode prompt, calls the model and parses the letter.
// Failures resolve to option 0 with the matching degradation flag.
func (p *Pipeline) complete(ctx context.Context, q domain.Question, res *QueryResult) int {
	var prompt string
	switch res.Route.Mode {
	case domain.RouteModeReading:
		prompt = readingPrompt(q)
	case domain.RouteModeStem:
		prompt = stemPrompt(q)
	default:
		if len(res.Chunks) > 0 {
			prompt = ragPrompt(q, res.Chunks)
		} else {
			prompt = directPrompt(q)
		}
	}

	reply, err := p.chat.Complete(ctx, prompt)
	if err != nil {
		res.Degraded = append(res.Degraded, domain.DegradeChat)
		log.Printf("pipeline: completion failed for %s, answering option A: %v", q.ID, err)
		telemetry.CaptureError(ctx, err)
		return 0
	}

	idx, ok := ExtractAnswerIndex(reply, len(q.Options))
	if !ok {
		res.Degraded = append(res.Degraded, domain.DegradeAnswerParse)
		log.Printf("pipeline: no usable letter for %s in %q, answering option A", q.ID, reply)
	}
	return idx
}

// emitAudit hands the record to the audit worker without ever blocking the
// answer path; a full buffer drops the record.
func (p *Pipeline) emitAudit(q domain.Question, res *QueryResult, pred domain.Prediction) {
	if p.audit == nil {
		return
	}
	rec := domain.AuditRecord{
		ID:         uuid.NewString(),
		QID:        q.ID,
		Query:      q.Text,
		Mode:       pred.Mode,
		Unsafe:     pred.Unsafe,
		Similarity: res.Verdict.Similarity,
		Degraded:   pred.Degraded,
		ChunkIDs:   chunkIDs(res.Chunks),
		DurationMs: pred.Elapsed.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	select {
	case p.audit <- rec:
	default:
		log.Printf("pipeline: audit buffer full, dropping record for %s", rec.QID)
	}
}

func chunkIDs(chunks []domain.ScoredChunk) []string {
	if len(chunks) == 0 {
		return nil
	}
	ids := make([]string, len(chunks))
	for i, sc := range chunks {
		ids[i] = sc.Chunk.ID
	}
	return ids
}
