package domain

// RouteMode is the processing mode a query is routed to
type RouteMode string

const (
	RouteModeReading RouteMode = "READING"
	RouteModeStem    RouteMode = "STEM"
	RouteModeRAG     RouteMode = "RAG"
	// RouteModeSafety is reported for queries the safety firewall
	// short-circuits before routing.
	RouteModeSafety RouteMode = "SAFETY"
)

// RouteDecision is the immutable outcome of routing one query.
// Year is 0 when the query carries no temporal cue; Category is empty when
// no subject-domain marker matched.
type RouteDecision struct {
	Mode           RouteMode
	MatchedPattern string
	Year           int
	Entities       []string
	Category       ChunkType
}
