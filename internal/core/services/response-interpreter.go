package services

import (
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"artifact-sync-service/internal/core/domain"
	ports "artifact-sync-service/internal/core/ports/output"
)

// resultsField is the key of the per-item result list in the indexer's response body.
const resultsField = "results"

// InterpretationKind tags how a transport response was classified.
type InterpretationKind int

const (
	// InterpretationTransportFailure: the call never completed or the indexer
	// answered with a server error. Nothing about individual items is known.
	InterpretationTransportFailure InterpretationKind = iota
	// InterpretationMalformed: the call completed but the body carries no
	// usable result list.
	InterpretationMalformed
	// InterpretationOutcomes: a per-item outcome list aligned to the batch.
	InterpretationOutcomes
)

func (k InterpretationKind) String() string {
	switch k {
	case InterpretationTransportFailure:
		return "transport_failure"
	case InterpretationMalformed:
		return "malformed_response"
	case InterpretationOutcomes:
		return "outcomes"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Interpretation is the classified result of one transport call.
type Interpretation struct {
	Kind       InterpretationKind
	StatusCode int
	// Outcomes holds min(batch size, returned entries) outcomes; position i
	// belongs to batch[i].
	Outcomes []domain.SyncOutcome
	// Returned is the number of entries the indexer actually sent back.
	Returned int
	Reason   string
}

// Unresolved is the number of batch positions the response did not cover.
func (i Interpretation) Unresolved(batchSize int) int {
	if i.Kind != InterpretationOutcomes {
		return batchSize
	}
	return batchSize - len(i.Outcomes)
}

// InterpretResponse classifies the result of posting a batch of batchSize
// records. The HTTP status only decides whether the indexer was healthy; it
// never decides item state. A 200 and a 207 are read the same way, and only
// the per-item list drives state transitions.
func InterpretResponse(resp *ports.TransportResponse, transportErr error, batchSize int) Interpretation {
	if transportErr != nil {
		return Interpretation{
			Kind:   InterpretationTransportFailure,
			Reason: transportErr.Error(),
		}
	}
	if resp == nil {
		return Interpretation{
			Kind:   InterpretationTransportFailure,
			Reason: "no response from indexer",
		}
	}
	if isServerError(resp.StatusCode) {
		return Interpretation{
			Kind:       InterpretationTransportFailure,
			StatusCode: resp.StatusCode,
			Reason:     fmt.Sprintf("indexer returned server error %d", resp.StatusCode),
		}
	}

	malformed := func(reason string) Interpretation {
		return Interpretation{
			Kind:       InterpretationMalformed,
			StatusCode: resp.StatusCode,
			Reason:     reason,
		}
	}

	if len(resp.Body) == 0 {
		return malformed("empty response body")
	}
	if !gjson.ValidBytes(resp.Body) {
		return malformed("response body is not valid JSON")
	}
	root := gjson.ParseBytes(resp.Body)
	if !root.IsObject() {
		return malformed("response body is not a JSON object")
	}
	results := root.Get(resultsField)
	if !results.Exists() {
		return malformed(fmt.Sprintf("response body has no %q field", resultsField))
	}
	if !results.IsArray() {
		return malformed(fmt.Sprintf("%q field is not a list", resultsField))
	}

	entries := results.Array()
	n := min(batchSize, len(entries))
	outcomes := make([]domain.SyncOutcome, 0, n)
	for _, entry := range entries[:n] {
		outcomes = append(outcomes, toOutcome(entry))
	}

	return Interpretation{
		Kind:       InterpretationOutcomes,
		StatusCode: resp.StatusCode,
		Outcomes:   outcomes,
		Returned:   len(entries),
	}
}

// toOutcome reads one result entry. Only a literal JSON true counts as success.
func toOutcome(entry gjson.Result) domain.SyncOutcome {
	if !entry.IsObject() {
		return domain.SyncOutcome{Error: "unrecognized result entry: " + entry.Raw}
	}
	out := domain.SyncOutcome{
		Success:    entry.Get("success").Type == gjson.True,
		ArtifactID: entry.Get("artifactId").String(),
	}
	if e := entry.Get("error"); e.Exists() && e.Type != gjson.Null {
		out.Error = e.String()
	}
	if !out.Success && out.Error == "" {
		out.Error = "indexer reported failure without detail"
	}
	return out
}

func isServerError(code int) bool {
	return code >= http.StatusInternalServerError && code <= 599
}
