package job_test

import (
	"encoding/json"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/deppfellow/go-crud-api/internal/lib/job"
)

func TestJob(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Job Suite")
}

var _ = Describe("NewModelMutatedTask", func() {
	It("carries the mutation as JSON", func() {
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

		task, err := job.NewModelMutatedTask("user", "create", map[string]any{"id": 7}, at)
		Expect(err).NotTo(HaveOccurred())
		Expect(task.Type()).To(Equal(job.TaskModelMutated))

		var payload job.ModelMutatedPayload
		Expect(json.Unmarshal(task.Payload(), &payload)).To(Succeed())
		Expect(payload.Model).To(Equal("user"))
		Expect(payload.Operation).To(Equal("create"))
		Expect(string(payload.Result)).To(MatchJSON(`{"id":7}`))
		Expect(payload.OccurredAt).To(BeTemporally("==", at))
		Expect(payload.OccurredAt.Location()).To(Equal(time.UTC))
	})

	It("accepts count results", func() {
		task, err := job.NewModelMutatedTask("post", "deleteMany", map[string]any{"count": int64(3)}, time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(string(task.Payload())).To(ContainSubstring(`"result":{"count":3}`))
	})

	It("fails on results that cannot be encoded", func() {
		_, err := job.NewModelMutatedTask("post", "create", make(chan int), time.Now())
		Expect(err).To(HaveOccurred())
	})
})
