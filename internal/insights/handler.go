package insights

import (
	"encoding/json"
	"io"
	"net/http"

	"budgetly/internal/log"
)

// maxBodyBytes bounds the request body read by the handler.
const maxBodyBytes = 1 << 20

// CORS headers sent on every response of the insights endpoint.
var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET, POST, PUT, DELETE, OPTIONS",
	"Access-Control-Allow-Headers": "Content-Type, Authorization, X-Client-Info, Apikey",
}

// Handler serves the insights wire contract: OPTIONS preflight and POST.
func Handler(p *Proxy) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range corsHeaders {
			w.Header().Set(k, v)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		var res Result
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			log.FromContext(r.Context()).WithComponent(log.ComponentInsights).
				ErrorContext(r.Context(), "Failed to read insights request", log.FieldError, err.Error())
			res = errorResult(http.StatusInternalServerError, MsgInternal)
		} else {
			res = p.Handle(r.Context(), body)
		}
		writeResult(w, res)
	})
}

func writeResult(w http.ResponseWriter, res Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.Status)
	_ = json.NewEncoder(w).Encode(res.Body)
}
