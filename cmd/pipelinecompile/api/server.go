// Package api is the thin HTTP front end around lib/pipeline,
// grounded on the teacher's cmd/sql-to-logsql/api/server.go: a
// config-constructed *Server wrapping an http.ServeMux, one handler
// per verb, and the same withSecurityHeaders/writeJSON helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/queryforge/mbql-mongo/lib/ast"
	"github.com/queryforge/mbql-mongo/lib/compileerr"
	"github.com/queryforge/mbql-mongo/lib/driver"
	"github.com/queryforge/mbql-mongo/lib/pipeline"
	"github.com/queryforge/mbql-mongo/lib/postprocess"
	"github.com/queryforge/mbql-mongo/lib/schema"
)

// FieldConfig is one entry of Config.Fields: the wire form of a
// schema.Field, since a Field's ParentID is an optional pointer.
type FieldConfig struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	ParentID    *int   `json:"parentId,omitempty"`
	BaseType    string `json:"baseType"`
	SpecialType string `json:"specialType,omitempty"`
}

// Config is the static, JSON-loaded configuration for one server
// instance: which tables map to which collections, which fields exist
// on them, and how (optionally) to reach the document store.
type Config struct {
	ListenAddr string            `json:"listenAddr"`
	Driver     driver.Config     `json:"driver"`
	Tables     map[string]string `json:"tables"`
	Fields     []FieldConfig     `json:"fields"`
}

// Server is the compiled HTTP surface: POST /compile (compile only)
// and POST /query (compile, then dispatch to the configured document
// store and post-process the rows), plus GET /healthz.
type Server struct {
	mux      *http.ServeMux
	resolver schema.StaticFieldResolver
	tables   schema.StaticTableResolver
	runner   driver.Runner
}

// NewServer builds a Server from cfg. It does not dial the document
// store eagerly unless cfg.Driver.URI is set.
func NewServer(cfg Config) (*Server, error) {
	resolver := make(schema.StaticFieldResolver, len(cfg.Fields))
	for _, f := range cfg.Fields {
		resolver[f.ID] = schema.Field{
			ID:          f.ID,
			Name:        f.Name,
			ParentID:    f.ParentID,
			BaseType:    schema.Type(f.BaseType),
			SpecialType: schema.Type(f.SpecialType),
		}
	}

	tableMap := make(map[int]string, len(cfg.Tables))
	for idStr, collection := range cfg.Tables {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return nil, fmt.Errorf("api: table id %q is not an integer: %w", idStr, err)
		}
		tableMap[id] = collection
	}
	tables, err := schema.NewStaticTableResolver(tableMap)
	if err != nil {
		return nil, fmt.Errorf("api: failed to create table resolver: %w", err)
	}

	var runner driver.Runner
	if cfg.Driver.URI != "" {
		client, err := driver.Connect(context.Background(), cfg.Driver)
		if err != nil {
			return nil, fmt.Errorf("api: failed to connect to document store: %w", err)
		}
		runner = client
	}

	srv := &Server{
		mux:      http.NewServeMux(),
		resolver: resolver,
		tables:   tables,
		runner:   runner,
	}
	srv.mux.HandleFunc("/healthz", withSecurityHeaders(srv.handleHealth))
	srv.mux.HandleFunc("/compile", withSecurityHeaders(srv.handleCompile))
	srv.mux.HandleFunc("/query", withSecurityHeaders(srv.handleQuery))
	return srv, nil
}

// setRunner overrides the configured driver.Runner; used by tests to
// inject a fake document store.
func (s *Server) setRunner(r driver.Runner) {
	s.runner = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		next(w, r)
	}
}

type compileRequest struct {
	Query   json.RawMessage `json:"query"`
	TableID int             `json:"tableId"`
}

type compileResponse struct {
	Projections []string        `json:"projections"`
	Query       json.RawMessage `json:"query"`
	Collection  string          `json:"collection"`
	Error       string          `json:"error,omitempty"`
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	result, err := s.compile(r)
	if err != nil {
		log.Printf("ERROR: compile failed: %v", err)
		writeError(w, err)
		return
	}

	queryJSON, err := marshalDocs(result.Query)
	if err != nil {
		log.Printf("ERROR: failed to encode pipeline: %v", err)
		writeJSON(w, http.StatusInternalServerError, compileResponse{Error: "failed to encode pipeline"})
		return
	}
	writeJSON(w, http.StatusOK, compileResponse{
		Projections: result.Projections,
		Query:       queryJSON,
		Collection:  result.Collection,
	})
}

type queryResponse struct {
	Rows  json.RawMessage `json:"rows,omitempty"`
	Error string          `json:"error,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	result, err := s.compile(r)
	if err != nil {
		log.Printf("ERROR: compile failed: %v", err)
		writeError(w, err)
		return
	}
	if s.runner == nil {
		writeJSON(w, http.StatusBadRequest, queryResponse{Error: "no document store configured"})
		return
	}

	rows, err := s.runner.Run(r.Context(), result.Collection, result.Query)
	if err != nil {
		log.Printf("ERROR: query execution failed: %v", err)
		writeError(w, err)
		return
	}
	processed, err := postprocess.Process(rows, result.Projections, result.MBQL)
	if err != nil {
		log.Printf("ERROR: post-processing failed: %v", err)
		writeError(w, err)
		return
	}

	rowsJSON, err := marshalDocs(processed)
	if err != nil {
		log.Printf("ERROR: failed to encode rows: %v", err)
		writeJSON(w, http.StatusInternalServerError, queryResponse{Error: "failed to encode rows"})
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Rows: rowsJSON})
}

func (s *Server) compile(r *http.Request) (pipeline.Result, error) {
	var req compileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return pipeline.Result{}, fmt.Errorf("api: invalid request payload: %w", err)
	}
	q, err := ast.DecodeQuery(req.Query)
	if err != nil {
		return pipeline.Result{}, err
	}
	q.SourceTable = req.TableID
	return pipeline.Compile(q, s.resolver, s.tables)
}

// marshalDocs encodes docs as a JSON array of extended-JSON documents.
// bson.MarshalExtJSON only accepts a document at the top level, so
// each document is encoded on its own.
func marshalDocs(docs []bson.D) (json.RawMessage, error) {
	parts := make([]json.RawMessage, len(docs))
	for i, d := range docs {
		b, err := bson.MarshalExtJSON(d, false, false)
		if err != nil {
			return nil, err
		}
		parts[i] = b
	}
	return json.Marshal(parts)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	var ce *compileerr.CompileError
	var de *driver.Error
	switch {
	case errors.As(err, &ce):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ce.Message})
	case errors.As(err, &de):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: de.Message})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
