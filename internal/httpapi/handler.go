// Package httpapi exposes the address grammar over HTTP.
//
//	GET    /v1/<address>   query (or stream a blob for data/<name>)
//	POST   /v1/<address>   insert; body is a JSON object of column values
//	PATCH  /v1/<address>   update; ?where= narrows the row further
//	DELETE /v1/<address>   delete; ?where= narrows the row further
//	GET    /changes        server-sent change notifications
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/roach88/keyringdb/internal/keyring"
	"github.com/roach88/keyringdb/internal/notify"
	"github.com/roach88/keyringdb/internal/provider"
	"github.com/roach88/keyringdb/internal/queryir"
	"github.com/roach88/keyringdb/internal/route"
	"github.com/roach88/keyringdb/internal/store"
)

// maxBodyBytes bounds mutation payloads.
const maxBodyBytes = 1 << 20

// TypeHeader carries the content type of the addressed data on query
// responses, which are always JSON themselves.
const TypeHeader = "X-Keyringdb-Type"

// Handler serves provider operations.
type Handler struct {
	provider *provider.Provider
	changes  *notify.Broadcaster
	log      *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithChanges enables GET /changes backed by b.
func WithChanges(b *notify.Broadcaster) HandlerOption {
	return func(h *Handler) { h.changes = b }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) { h.log = l }
}

// NewHandler returns a Handler serving p.
func NewHandler(p *provider.Provider, options ...HandlerOption) *Handler {
	h := &Handler{provider: p, log: slog.Default()}
	for _, option := range options {
		option(h)
	}
	h.log = h.log.With("component", "httpapi")
	return h
}

// Register mounts the handler's routes on r.
func (h *Handler) Register(r *httprouter.Router) {
	r.GET("/v1/*address", h.Get)
	r.POST("/v1/*address", h.Insert)
	r.PATCH("/v1/*address", h.Update)
	r.DELETE("/v1/*address", h.Delete)
	if h.changes != nil {
		r.GET("/changes", h.Changes)
	}
}

// queryResponse is the body of a successful GET.
type queryResponse struct {
	Route   string           `json:"route"`
	Columns []string         `json:"columns"`
	Records []keyring.Record `json:"records"`
}

type insertResponse struct {
	Address string `json:"address"`
}

type rowsResponse struct {
	Rows int64 `json:"rows"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Get queries an address, or streams the file behind a blob address.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	address := ps.ByName("address")
	m, err := route.Resolve(address)
	if err != nil {
		h.httpError(w, err)
		return
	}
	if m.Code == route.OpenBlob {
		h.blob(w, r, address)
		return
	}

	opts, err := parseQueryOptions(r)
	if err != nil {
		h.httpError(w, fmt.Errorf("%w: %v", provider.ErrInvalidPayload, err))
		return
	}
	res, err := h.provider.Query(r.Context(), address, opts)
	if err != nil {
		h.httpError(w, err)
		return
	}
	if typ, err := h.provider.Type(address); err == nil {
		w.Header().Set(TypeHeader, typ)
	}
	writeJSON(w, http.StatusOK, queryResponse{
		Route:   res.Match.Code.String(),
		Columns: res.Columns,
		Records: res.Records,
	})
}

func (h *Handler) blob(w http.ResponseWriter, r *http.Request, address string) {
	f, err := h.provider.OpenBlob(r.Context(), address)
	if err != nil {
		h.httpError(w, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.httpError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// Insert adds a row through a collection address.
func (h *Handler) Insert(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	values, err := readValues(r)
	if err != nil {
		h.httpError(w, err)
		return
	}
	addr, err := h.provider.Insert(r.Context(), ps.ByName("address"), values)
	if err != nil {
		h.httpError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/"+addr)
	writeJSON(w, http.StatusCreated, insertResponse{Address: addr})
}

// Update changes the row an item address names.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	where, err := parseWhere(r)
	if err != nil {
		h.httpError(w, fmt.Errorf("%w: %v", provider.ErrInvalidPayload, err))
		return
	}
	values, err := readValues(r)
	if err != nil {
		h.httpError(w, err)
		return
	}
	n, err := h.provider.Update(r.Context(), ps.ByName("address"), values, where)
	if err != nil {
		h.httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rowsResponse{Rows: n})
}

// Delete removes the row an item address names.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	where, err := parseWhere(r)
	if err != nil {
		h.httpError(w, fmt.Errorf("%w: %v", provider.ErrInvalidPayload, err))
		return
	}
	n, err := h.provider.Delete(r.Context(), ps.ByName("address"), where)
	if err != nil {
		h.httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rowsResponse{Rows: n})
}

// Changes streams change notifications as server-sent events until the
// client goes away. ?prefix= narrows the addresses delivered.
func (h *Handler) Changes(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	rc := http.NewResponseController(w)
	ch, _ := h.changes.Subscribe(r.Context(), r.URL.Query().Get("prefix"))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": subscribed\n\n")
	if err := rc.Flush(); err != nil {
		h.log.Warn("streaming not supported", "error", err)
		return
	}

	for change := range ch {
		if _, err := fmt.Fprintf(w, "event: change\ndata: %s\n\n", change.Address); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// parseQueryOptions reads where, sort, columns and limit from the query
// string. where and sort may repeat; columns is comma separated.
func parseQueryOptions(r *http.Request) (provider.QueryOptions, error) {
	q := r.URL.Query()
	var opts provider.QueryOptions

	where, err := parseWhere(r)
	if err != nil {
		return opts, err
	}
	opts.Where = where

	for _, s := range q["sort"] {
		o, err := queryir.ParseOrder(s)
		if err != nil {
			return opts, err
		}
		opts.OrderBy = append(opts.OrderBy, o)
	}

	if cols := q.Get("columns"); cols != "" {
		opts.Columns = strings.Split(cols, ",")
	}

	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return opts, fmt.Errorf("limit %q: %w", limit, err)
		}
		opts.Limit = n
	}
	return opts, nil
}

// parseWhere ANDs every where parameter; nil when there are none.
func parseWhere(r *http.Request) (queryir.Predicate, error) {
	var preds []queryir.Predicate
	for _, cond := range r.URL.Query()["where"] {
		p, err := queryir.ParseCondition(cond)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return queryir.AllOf(preds...), nil
}

func readValues(r *http.Request) (keyring.Values, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", provider.ErrInvalidPayload, maxBodyBytes)
	}

	var values keyring.Values
	if err := json.Unmarshal(body, &values); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrInvalidPayload, err)
	}
	return values, nil
}

// statusFor maps an operation error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, route.ErrRouteNotFound), errors.Is(err, provider.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, provider.ErrConstraintViolation):
		return http.StatusConflict
	case errors.Is(err, provider.ErrUnsupported):
		return http.StatusMethodNotAllowed
	case errors.Is(err, provider.ErrInvalidPayload), errors.Is(err, provider.ErrInvalidKeyRing):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrReadOnly):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) httpError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "status", status, "error", err)
	} else {
		h.log.Debug("request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
