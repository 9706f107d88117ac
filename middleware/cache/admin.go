package cache

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type Clearer interface {
	Clear(ctx context.Context) int
}

// RegisterAdmin registra POST {prefix}/cache/clear (invalidação total).
func RegisterAdmin(mux *http.ServeMux, prefix string, c Clearer) {
	mux.HandleFunc("POST "+strings.TrimRight(prefix, "/")+"/cache/clear", func(w http.ResponseWriter, r *http.Request) {
		n := c.Clear(r.Context())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]int{"deleted": n})
	})
}
