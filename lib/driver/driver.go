// Package driver is the out-of-scope document-store driver
// collaborator spec.md §1 and §6 describe: only its interface is
// specified by the compiler itself (lib/pipeline never imports this
// package), but cmd/pipelinecompile needs a real implementation to
// dispatch a compiled pipeline and get rows back, grounded on the
// teacher's lib/vlogs.API — a thin config-plus-client wrapper around
// the single external call this repository makes.
package driver

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Config names the document store this driver talks to.
type Config struct {
	URI      string `json:"uri"`
	Database string `json:"database"`
}

// Runner is the interface lib/pipeline's callers depend on;
// cmd/pipelinecompile's tests satisfy it with a fake rather than a
// live *Client.
type Runner interface {
	Run(ctx context.Context, collection string, stages []bson.D) ([]bson.D, error)
}

// Client wraps a *mongo.Client and dispatches a compiled pipeline to
// one collection of one database.
type Client struct {
	mongo *mongo.Client
	db    string
}

// Connect opens a client against cfg.URI. The caller is responsible
// for calling Close when done.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	c, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, &Error{Message: "failed to connect to document store", Err: err}
	}
	return &Client{mongo: c, db: cfg.Database}, nil
}

// Run executes stages as an aggregation pipeline against collection
// and decodes every result document into a bson.D, preserving field
// order for lib/postprocess.
func (c *Client) Run(ctx context.Context, collection string, stages []bson.D) ([]bson.D, error) {
	cursor, err := c.mongo.Database(c.db).Collection(collection).Aggregate(ctx, stages)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("aggregate on %s failed", collection), Err: err}
	}
	defer cursor.Close(ctx)

	var rows []bson.D
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, &Error{Message: fmt.Sprintf("decoding results from %s failed", collection), Err: err}
	}
	return rows, nil
}

// Close disconnects the underlying client.
func (c *Client) Close(ctx context.Context) error {
	return c.mongo.Disconnect(ctx)
}
