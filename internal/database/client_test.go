package database

import (
	"context"
	"errors"
	"reflect"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/deppfellow/go-crud-api/internal/crud"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeRows serves canned rows to the pgx collect helpers.
type fakeRows struct {
	fields []string
	rows   [][]any
	pos    int
}

func (r *fakeRows) Close()                        {}
func (r *fakeRows) Err() error                    { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) RawValues() [][]byte           { return nil }
func (r *fakeRows) Conn() *pgx.Conn               { return nil }

func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	out := make([]pgconn.FieldDescription, len(r.fields))
	for i, name := range r.fields {
		out[i] = pgconn.FieldDescription{Name: name}
	}
	return out
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) {
	return r.rows[r.pos-1], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	if len(dest) == 1 {
		if scanner, ok := dest[0].(pgx.RowScanner); ok {
			return scanner.ScanRow(r)
		}
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.rows[r.pos-1][i]))
	}
	return nil
}

// fakeDB records statements and answers queries from a queue.
type fakeDB struct {
	statements []string
	results    []*fakeRows
	tag        string
	err        error
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.statements = append(f.statements, sql)
	return pgconn.NewCommandTag(f.tag), f.err
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.statements = append(f.statements, sql)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return &fakeRows{}, nil
	}
	next := f.results[0]
	f.results = f.results[1:]
	return next, nil
}

func (f *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("transactions are not supported by fakeDB")
}

var _ = Describe("Client", func() {
	var (
		db     *fakeDB
		client *Client
		ctx    context.Context
	)

	BeforeEach(func() {
		db = &fakeDB{}
		client = NewClient(db, &crud.ModelMeta{Models: map[string]*crud.ModelInfo{"user": userModel}}, nil)
		ctx = context.Background()
	})

	It("rejects unknown models and operations", func() {
		_, err := client.Do(ctx, "comment", crud.OpFindMany, nil)
		Expect(err).To(MatchError(crud.ErrUnknownModel))

		_, err = client.Do(ctx, "user", crud.OpGroupBy, crud.Args{"by": []any{"email"}})
		Expect(err).To(MatchError(crud.ErrUnsupportedOperation))
		Expect(db.statements).To(BeEmpty())
	})

	It("returns rows keyed by field", func() {
		db.results = []*fakeRows{{
			fields: []string{"email", "id"},
			rows:   [][]any{{"a@b.co", int64(1)}, {"c@d.co", int64(2)}},
		}}

		out, err := client.Do(ctx, "User", crud.OpFindMany, crud.Args{"select": map[string]any{"id": true, "email": true}})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal([]map[string]any{
			{"email": "a@b.co", "id": int64(1)},
			{"email": "c@d.co", "id": int64(2)},
		}))
	})

	It("returns an empty list rather than nil", func() {
		out, err := client.Do(ctx, "user", crud.OpFindMany, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal([]map[string]any{}))
	})

	It("returns nil when findFirst matches nothing", func() {
		out, err := client.Do(ctx, "user", crud.OpFindFirst, crud.Args{"where": map[string]any{"id": 1.0}})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeNil())
		Expect(db.statements[0]).To(HaveSuffix("LIMIT $2"))
	})

	It("requires a filter for findUnique", func() {
		_, err := client.Do(ctx, "user", crud.OpFindUnique, crud.Args{})
		Expect(err).To(MatchError(crud.ErrInvalidArgs))
		Expect(db.statements).To(BeEmpty())
	})

	It("counts rows", func() {
		db.results = []*fakeRows{{fields: []string{"count"}, rows: [][]any{{int64(4)}}}}

		out, err := client.Do(ctx, "user", crud.OpCount, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(int64(4)))
	})

	It("groups aggregate results", func() {
		db.results = []*fakeRows{{fields: []string{"count", "max"}, rows: [][]any{{int64(3), int64(9)}}}}

		out, err := client.Do(ctx, "user", crud.OpAggregate, crud.Args{
			"_count": true,
			"_max":   map[string]any{"id": true},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(map[string]any{
			"_count": int64(3),
			"_max":   map[string]any{"id": int64(9)},
		}))
	})

	It("returns the created row", func() {
		db.results = []*fakeRows{{fields: []string{"id"}, rows: [][]any{{int64(5)}}}}

		out, err := client.Do(ctx, "user", crud.OpCreate, crud.Args{
			"data":   map[string]any{"email": "a@b.co"},
			"select": map[string]any{"id": true},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(map[string]any{"id": int64(5)}))
		Expect(db.statements[0]).To(HavePrefix(`INSERT INTO "users"`))
	})

	It("reports bulk counts from the command tag", func() {
		db.tag = "INSERT 0 2"
		out, err := client.Do(ctx, "user", crud.OpCreateMany, crud.Args{
			"data": []any{map[string]any{"email": "a@b.co"}, map[string]any{"email": "c@d.co"}},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(map[string]any{"count": int64(2)}))

		db.tag = "DELETE 3"
		out, err = client.Do(ctx, "user", crud.OpDeleteMany, crud.Args{"where": map[string]any{"name": nil}})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(map[string]any{"count": int64(3)}))
	})

	It("skips the round trip for an empty createMany", func() {
		out, err := client.Do(ctx, "user", crud.OpCreateMany, crud.Args{"data": []any{}})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(map[string]any{"count": int64(0)}))
		Expect(db.statements).To(BeEmpty())
	})

	It("reports not found when a single-row update matches nothing", func() {
		_, err := client.Do(ctx, "user", crud.OpUpdate, crud.Args{
			"where": map[string]any{"id": 1.0},
			"data":  map[string]any{"name": "Ann"},
		})
		Expect(err).To(MatchError(crud.ErrNotFound))
		Expect(err).To(MatchError(ContainSubstring("no user matched the filter")))
	})

	It("returns the deleted row", func() {
		db.results = []*fakeRows{{fields: []string{"id"}, rows: [][]any{{int64(8)}}}}

		out, err := client.Do(ctx, "user", crud.OpDelete, crud.Args{
			"where":  map[string]any{"id": 8.0},
			"select": map[string]any{"id": true},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(map[string]any{"id": int64(8)}))
		Expect(db.statements[0]).To(HavePrefix(`DELETE FROM "users" WHERE ctid IN`))
	})

	It("passes driver errors through", func() {
		db.err = errors.New("connection refused")
		_, err := client.Do(ctx, "user", crud.OpFindMany, nil)
		Expect(err).To(MatchError("connection refused"))
	})

	Context("upsert", func() {
		It("requires a filter", func() {
			_, err := client.Do(ctx, "user", crud.OpUpsert, crud.Args{"create": map[string]any{}})
			Expect(err).To(MatchError(crud.ErrInvalidArgs))
		})

		It("runs inside a transaction", func() {
			_, err := client.Do(ctx, "user", crud.OpUpsert, crud.Args{
				"where":  map[string]any{"email": "a@b.co"},
				"create": map[string]any{"email": "a@b.co"},
			})
			Expect(err).To(MatchError(ContainSubstring("transactions are not supported")))
			Expect(db.statements).To(BeEmpty())
		})
	})

	It("swaps the logger on a copy", func() {
		Expect(client.WithLogger(nil)).To(BeIdenticalTo(client))
	})
})
