package database

import (
	"encoding/json"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/deppfellow/go-crud-api/internal/crud"
)

func TestDatabase(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Database Suite")
}

var userModel = &crud.ModelInfo{
	Name:  "User",
	Table: "users",
	Fields: map[string]*crud.FieldInfo{
		"id":        {Name: "id", Type: "BigInt", IsID: true},
		"email":     {Name: "email", Type: "String"},
		"name":      {Name: "name", Type: "String", Optional: true},
		"createdAt": {Name: "createdAt", Column: "created_at", Type: "DateTime"},
	},
	IDFields: []string{"id"},
}

var _ = Describe("builder", func() {
	var b *builder

	BeforeEach(func() {
		b = newBuilder(userModel)
	})

	Describe("selectSQL", func() {
		It("projects every field aliased to its name", func() {
			q, err := b.selectSQL(crud.Args{}, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(q).To(Equal(`SELECT "created_at" AS "createdAt", "email" AS "email", "id" AS "id", "name" AS "name" FROM "users"`))
			Expect(b.args).To(BeEmpty())
		})

		It("renders selection, filter, ordering and paging", func() {
			q, err := b.selectSQL(crud.Args{
				"select":  map[string]any{"email": true, "name": false},
				"where":   map[string]any{"id": json.Number("1")},
				"orderBy": map[string]any{"createdAt": "desc"},
				"take":    json.Number("10"),
				"skip":    json.Number("5"),
			}, 0)

			Expect(err).NotTo(HaveOccurred())
			Expect(q).To(Equal(`SELECT "email" AS "email" FROM "users" WHERE "id" = $1 ORDER BY "created_at" DESC LIMIT $2 OFFSET $3`))
			Expect(b.args).To(Equal([]any{int64(1), int64(10), int64(5)}))
		})

		It("lets a fixed limit win over take", func() {
			q, err := b.selectSQL(crud.Args{"select": map[string]any{"id": true}, "take": json.Number("10")}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(q).To(HaveSuffix("LIMIT $1"))
			Expect(b.args).To(Equal([]any{int64(1)}))
		})

		It("keeps a zero take as LIMIT 0", func() {
			q, err := b.selectSQL(crud.Args{"select": map[string]any{"id": true}, "take": json.Number("0")}, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(q).To(Equal(`SELECT "id" AS "id" FROM "users" LIMIT $1`))
			Expect(b.args).To(Equal([]any{int64(0)}))
		})

		It("orders by a list of objects", func() {
			q, err := b.selectSQL(crud.Args{
				"select":  map[string]any{"id": true},
				"orderBy": []any{map[string]any{"name": "asc"}, map[string]any{"id": "DESC"}},
			}, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(q).To(HaveSuffix(`ORDER BY "name" ASC, "id" DESC`))
		})

		DescribeTable("rejects bad arguments",
			func(args crud.Args, sentinel error) {
				_, err := b.selectSQL(args, 0)
				Expect(err).To(MatchError(sentinel))
			},
			Entry("unknown select field", crud.Args{"select": map[string]any{"password": true}}, crud.ErrUnknownField),
			Entry("empty select", crud.Args{"select": map[string]any{}}, crud.ErrInvalidArgs),
			Entry("negative take", crud.Args{"take": json.Number("-1")}, crud.ErrInvalidArgs),
			Entry("fractional skip", crud.Args{"skip": 1.5}, crud.ErrInvalidArgs),
			Entry("bad order direction", crud.Args{"orderBy": map[string]any{"id": "up"}}, crud.ErrInvalidArgs),
			Entry("unknown order field", crud.Args{"orderBy": map[string]any{"age": "asc"}}, crud.ErrUnknownField),
		)
	})

	Describe("where", func() {
		It("renders nothing for no filter", func() {
			Expect(b.where(nil)).To(BeEmpty())
			Expect(b.where(map[string]any{})).To(BeEmpty())
		})

		It("joins field conditions with AND in field order", func() {
			clause, err := b.where(map[string]any{"name": "Ann", "email": "a@b.co"})
			Expect(err).NotTo(HaveOccurred())
			Expect(clause).To(Equal(`"email" = $1 AND "name" = $2`))
			Expect(b.args).To(Equal([]any{"a@b.co", "Ann"}))
		})

		It("renders null checks", func() {
			clause, err := b.where(map[string]any{"name": nil, "email": map[string]any{"not": nil}})
			Expect(err).NotTo(HaveOccurred())
			Expect(clause).To(Equal(`"email" IS NOT NULL AND "name" IS NULL`))
		})

		It("renders comparisons", func() {
			clause, err := b.where(map[string]any{"id": map[string]any{"gte": json.Number("2"), "lt": 9.0}})
			Expect(err).NotTo(HaveOccurred())
			Expect(clause).To(Equal(`"id" >= $1 AND "id" < $2`))
			Expect(b.args).To(Equal([]any{int64(2), int64(9)}))
		})

		It("renders in and notIn as array params", func() {
			clause, err := b.where(map[string]any{
				"id":   map[string]any{"in": []any{json.Number("1"), json.Number("2")}},
				"name": map[string]any{"notIn": []any{"x"}},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(clause).To(Equal(`"id" = ANY($1) AND NOT ("name" = ANY($2))`))
			Expect(b.args).To(Equal([]any{[]any{int64(1), int64(2)}, []any{"x"}}))
		})

		It("escapes LIKE patterns and honors insensitive mode", func() {
			clause, err := b.where(map[string]any{
				"email": map[string]any{"contains": "a_b%", "mode": "insensitive"},
				"name":  map[string]any{"startsWith": "Jo"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(clause).To(Equal(`"email" ILIKE $1 AND "name" LIKE $2`))
			Expect(b.args).To(Equal([]any{`%a\_b\%%`, "Jo%"}))
		})

		It("renders OR lists", func() {
			clause, err := b.where(map[string]any{
				"OR": []any{map[string]any{"id": 1.0}, map[string]any{"email": "x"}},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(clause).To(Equal(`(("id" = $1) OR ("email" = $2))`))
		})

		It("excludes rows matching any entry of a NOT list", func() {
			clause, err := b.where(map[string]any{
				"NOT": []any{map[string]any{"id": 1.0}, map[string]any{"id": 2.0}},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(clause).To(Equal(`NOT (("id" = $1) OR ("id" = $2))`))
		})

		It("negates a NOT object as a whole", func() {
			clause, err := b.where(map[string]any{
				"NOT": map[string]any{"id": 1.0, "email": "x"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(clause).To(Equal(`NOT (("email" = $1 AND "id" = $2))`))
		})

		DescribeTable("empty logical lists",
			func(w map[string]any, expected string) {
				clause, err := b.where(w)
				Expect(err).NotTo(HaveOccurred())
				Expect(clause).To(Equal(expected))
			},
			Entry("OR matches nothing", map[string]any{"OR": []any{}}, "FALSE"),
			Entry("OR beside a field", map[string]any{"OR": []any{}, "id": 1.0}, `FALSE AND "id" = $1`),
			Entry("AND constrains nothing", map[string]any{"AND": []any{}}, ""),
			Entry("NOT constrains nothing", map[string]any{"NOT": []any{}}, ""),
		)

		It("never deletes the whole table for an empty OR", func() {
			q, err := b.deleteSQL(crud.Args{"where": map[string]any{"OR": []any{}}}, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(q).To(HavePrefix(`DELETE FROM "users" WHERE FALSE`))
		})

		DescribeTable("rejects bad filters",
			func(w any, sentinel error) {
				_, err := b.where(w)
				Expect(err).To(MatchError(sentinel))
			},
			Entry("not an object", []any{}, crud.ErrInvalidArgs),
			Entry("unknown field", map[string]any{"age": 1.0}, crud.ErrUnknownField),
			Entry("unknown operator", map[string]any{"id": map[string]any{"near": 1.0}}, crud.ErrInvalidArgs),
			Entry("fractional integer", map[string]any{"id": 1.5}, crud.ErrInvalidArgs),
			Entry("in without a list", map[string]any{"id": map[string]any{"in": 1.0}}, crud.ErrInvalidArgs),
			Entry("contains without a string", map[string]any{"name": map[string]any{"contains": 1.0}}, crud.ErrInvalidArgs),
			Entry("object for a scalar column", map[string]any{"name": map[string]any{"equals": map[string]any{}}}, crud.ErrInvalidArgs),
		)
	})

	Describe("insert", func() {
		It("renders a single row with RETURNING", func() {
			q, err := b.insertSQL(map[string]any{"email": "a@b.co", "name": "Ann"}, map[string]any{"id": true})
			Expect(err).NotTo(HaveOccurred())
			Expect(q).To(Equal(`INSERT INTO "users" ("email", "name") VALUES ($1, $2) RETURNING "id" AS "id"`))
		})

		It("falls back to DEFAULT VALUES for empty data", func() {
			q, err := b.insertSQL(map[string]any{}, map[string]any{"id": true})
			Expect(err).NotTo(HaveOccurred())
			Expect(q).To(Equal(`INSERT INTO "users" DEFAULT VALUES RETURNING "id" AS "id"`))
		})

		It("fills missing fields of a multi-row insert with DEFAULT", func() {
			q, err := b.insertManySQL([]any{
				map[string]any{"email": "a@b.co"},
				map[string]any{"email": "c@d.co", "name": "Cid"},
			}, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(q).To(Equal(`INSERT INTO "users" ("email", "name") VALUES ($1, DEFAULT), ($2, $3) ON CONFLICT DO NOTHING`))
			Expect(b.args).To(Equal([]any{"a@b.co", "c@d.co", "Cid"}))
		})

		It("renders nothing for an empty list", func() {
			Expect(b.insertManySQL([]any{}, false)).To(BeEmpty())
		})

		It("rejects rows without fields", func() {
			_, err := b.insertManySQL([]any{map[string]any{}}, false)
			Expect(err).To(MatchError(crud.ErrInvalidArgs))
		})
	})

	Describe("update and delete", func() {
		It("pins single-row updates to one row", func() {
			q, err := b.updateSQL(crud.Args{
				"where":  map[string]any{"id": json.Number("4")},
				"data":   map[string]any{"name": "Ann"},
				"select": map[string]any{"id": true},
			}, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(q).To(Equal(`UPDATE "users" SET "name" = $1 WHERE ctid IN (SELECT ctid FROM "users" WHERE "id" = $2 LIMIT 1) RETURNING "id" AS "id"`))
			Expect(b.args).To(Equal([]any{"Ann", int64(4)}))
		})

		It("requires a filter for single-row statements", func() {
			_, err := b.updateSQL(crud.Args{"data": map[string]any{"name": "Ann"}}, true)
			Expect(err).To(MatchError(crud.ErrInvalidArgs))

			_, err = b.deleteSQL(crud.Args{}, true)
			Expect(err).To(MatchError(crud.ErrInvalidArgs))
		})

		It("updates every row without a filter in bulk", func() {
			q, err := b.updateSQL(crud.Args{"data": map[string]any{"name": "Ann"}}, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(q).To(Equal(`UPDATE "users" SET "name" = $1`))
		})

		It("rejects updates that set nothing", func() {
			_, err := b.updateSQL(crud.Args{"where": map[string]any{"id": 1.0}, "data": map[string]any{}}, false)
			Expect(err).To(MatchError(crud.ErrInvalidArgs))
		})

		It("renders bulk deletes", func() {
			q, err := b.deleteSQL(crud.Args{"where": map[string]any{"email": map[string]any{"endsWith": "@spam.io"}}}, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(q).To(Equal(`DELETE FROM "users" WHERE "email" LIKE $1`))
			Expect(b.args).To(Equal([]any{"%@spam.io"}))
		})
	})

	Describe("aggregateSQL", func() {
		It("renders the requested aggregates in a stable order", func() {
			q, specs, err := b.aggregateSQL(crud.Args{
				"_max":   map[string]any{"id": true},
				"_count": true,
				"where":  map[string]any{"name": "Ann"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(q).To(Equal(`SELECT count(*), max("id") FROM "users" WHERE "name" = $1`))
			Expect(specs).To(Equal([]aggregateSpec{{group: "_count"}, {group: "_max", field: "id"}}))
		})

		It("supports _count._all", func() {
			q, specs, err := b.aggregateSQL(crud.Args{"_count": map[string]any{"_all": true, "email": true}})
			Expect(err).NotTo(HaveOccurred())
			Expect(q).To(Equal(`SELECT count(*), count("email") FROM "users"`))
			Expect(specs).To(HaveLen(2))
		})

		It("requires at least one aggregate", func() {
			_, _, err := b.aggregateSQL(crud.Args{"_count": false})
			Expect(err).To(MatchError(crud.ErrInvalidArgs))
		})
	})

	It("counts the filtered rows", func() {
		q, err := b.countSQL(crud.Args{"where": map[string]any{"id": map[string]any{"gt": 3.0}}})
		Expect(err).NotTo(HaveOccurred())
		Expect(q).To(Equal(`SELECT count(*) FROM "users" WHERE "id" > $1`))
	})
})
