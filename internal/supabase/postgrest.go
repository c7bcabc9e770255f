package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Query is a PostgREST request under construction. Build it with From and
// finish it with Execute.
type Query struct {
	client *Client
	table  string
	method string
	params url.Values
	body   any
	single bool
	err    error
}

// From starts a query against table.
func (c *Client) From(table string) *Query {
	q := &Query{
		client: c,
		table:  table,
		method: http.MethodGet,
		params: url.Values{},
	}
	if table == "" {
		q.err = fmt.Errorf("supabase: table name is required")
	}
	return q
}

// Select limits the returned columns.
func (q *Query) Select(columns string) *Query {
	q.params.Set("select", columns)
	return q
}

// Eq filters rows where column equals value.
func (q *Query) Eq(column, value string) *Query {
	q.params.Add(column, "eq."+value)
	return q
}

// Contains filters rows whose array column contains every value.
func (q *Query) Contains(column string, values []string) *Query {
	q.params.Add(column, "cs."+arrayLiteral(values))
	return q
}

// Order sorts the result by column.
func (q *Query) Order(column string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.params.Set("order", column+"."+dir)
	return q
}

// Single expects exactly one row and returns it as an object instead of an array.
func (q *Query) Single() *Query {
	q.single = true
	return q
}

// Insert turns the query into an insert of body, returning the stored row.
func (q *Query) Insert(body any) *Query {
	q.method = http.MethodPost
	q.body = body
	return q
}

// Update turns the query into an update of the filtered rows with body.
func (q *Query) Update(body any) *Query {
	q.method = http.MethodPatch
	q.body = body
	return q
}

// Delete turns the query into a delete of the filtered rows.
func (q *Query) Delete() *Query {
	q.method = http.MethodDelete
	return q
}

// Execute sends the query and decodes the response into out, which may be nil.
func (q *Query) Execute(ctx context.Context, out any) error {
	if q.err != nil {
		return q.err
	}

	if q.body != nil && q.params.Get("select") == "" {
		q.params.Set("select", "*")
	}

	req, err := q.client.newRequest(ctx, q.method, "/rest/v1/"+url.PathEscape(q.table), q.params, q.body)
	if err != nil {
		return err
	}
	if q.single {
		req.Header.Set("Accept", "application/vnd.pgrst.object+json")
	}
	if q.body != nil {
		req.Header.Set("Prefer", "return=representation")
	}

	return q.client.do(req, out)
}

// arrayLiteral renders values as a Postgres array literal: {"a","b"}.
func arrayLiteral(values []string) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		v = strings.ReplaceAll(v, `\`, `\\`)
		v = strings.ReplaceAll(v, `"`, `\"`)
		b.WriteString(v)
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}
