package web

import (
	"net/http"
	"sync"

	"github.com/invopop/jsonschema"
)

var (
	deliverySchemaOnce sync.Once
	deliverySchemaDoc  []byte
)

// deliverySchema handles GET /api/schema/delivery: the JSON Schema of the
// delivery posting request body, generated from the Go type so it cannot
// drift from the handler. Consumers validate client payloads against it.
func (h *Handler) deliverySchema(w http.ResponseWriter, r *http.Request) {
	deliverySchemaOnce.Do(func() {
		reflector := jsonschema.Reflector{ExpandedStruct: true}
		schema := reflector.Reflect(&DeliveryRequest{})
		doc, err := schema.MarshalJSON()
		if err != nil {
			h.log.Sugar().Errorf("failed to marshal delivery schema: %v", err)
			return
		}
		deliverySchemaDoc = doc
	})

	if deliverySchemaDoc == nil {
		writeError(w, r, "schema unavailable", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(deliverySchemaDoc)
}
