package receipt

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/quicktotal/internal/ledger"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	newDocument := func(id string, created time.Time) *Document {
		return &Document{
			ID:          id,
			Filename:    id + ".jpg",
			StoredFile:  id + "_" + id + ".jpg",
			ContentType: "image/jpeg",
			Method:      "Mock (test)",
			Items: []ledger.LineItem{
				{Name: "Milk", Category: "Groceries", Amount: amt("40.50")},
			},
			Subtotal:  amt("40.50"),
			CreatedAt: created,
		}
	}

	Describe("SaveDocument", func() {
		var (
			doc *Document
			err error
		)

		BeforeEach(func() {
			doc = newDocument("test-id", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
		})

		JustBeforeEach(func() {
			err = db.SaveDocument(doc)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should save the document to the database", func() {
				saved, getErr := db.GetDocument("test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.ID).To(Equal("test-id"))
				Expect(saved.Items).To(HaveLen(1))
			})

			It("should keep amounts exact", func() {
				saved, getErr := db.GetDocument("test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.Items[0].Amount.StringFixed(2)).To(Equal("40.50"))
				Expect(saved.Subtotal.StringFixed(2)).To(Equal("40.50"))
			})
		})

		When("the document already exists", func() {
			BeforeEach(func() {
				Expect(db.SaveDocument(newDocument("test-id", time.Now()))).To(Succeed())
				doc.Method = "Updated"
			})

			It("should overwrite it", func() {
				saved, getErr := db.GetDocument("test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.Method).To(Equal("Updated"))
			})
		})
	})

	Describe("GetDocument", func() {
		When("document does not exist", func() {
			It("returns the error", func() {
				_, err := db.GetDocument("missing")
				Expect(err).To(MatchError(ContainSubstring("document not found")))
			})
		})
	})

	Describe("ListDocuments", func() {
		var (
			docs []*Document
			err  error
		)

		JustBeforeEach(func() {
			docs, err = db.ListDocuments()
		})

		When("documents exist", func() {
			BeforeEach(func() {
				base := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
				Expect(db.SaveDocument(newDocument("b", base.Add(time.Hour)))).To(Succeed())
				Expect(db.SaveDocument(newDocument("a", base.Add(2*time.Hour)))).To(Succeed())
				Expect(db.SaveDocument(newDocument("c", base))).To(Succeed())
			})

			It("should return them oldest first", func() {
				Expect(err).NotTo(HaveOccurred())
				ids := []string{docs[0].ID, docs[1].ID, docs[2].ID}
				Expect(ids).To(Equal([]string{"c", "b", "a"}))
			})
		})

		When("no documents exist", func() {
			It("should return an empty list", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(docs).To(BeEmpty())
				Expect(docs).NotTo(BeNil())
			})
		})
	})

	Describe("DeleteDocument", func() {
		BeforeEach(func() {
			Expect(db.SaveDocument(newDocument("test-id", time.Now()))).To(Succeed())
		})

		When("document exists", func() {
			It("should remove it", func() {
				Expect(db.DeleteDocument("test-id")).To(Succeed())
				_, err := db.GetDocument("test-id")
				Expect(err).To(HaveOccurred())
			})
		})

		When("document does not exist", func() {
			It("returns the error", func() {
				Expect(db.DeleteDocument("missing")).To(MatchError(ContainSubstring("document not found")))
			})
		})
	})

	Describe("Samples", func() {
		It("should save and list training samples oldest first", func() {
			base := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
			Expect(db.SaveSample(&TrainingSample{ID: "s2", CreatedAt: base.Add(time.Minute)})).To(Succeed())
			Expect(db.SaveSample(&TrainingSample{
				ID:        "s1",
				ImageFile: "training/s1_bill.jpg",
				Items:     []ledger.LineItem{{Name: "Bread", Category: "Groceries", Amount: amt("25")}},
				CreatedAt: base,
			})).To(Succeed())

			samples, err := db.ListSamples()
			Expect(err).NotTo(HaveOccurred())
			Expect(samples).To(HaveLen(2))
			Expect(samples[0].ID).To(Equal("s1"))
			Expect(samples[0].Items[0].Name).To(Equal("Bread"))
		})

		It("should keep samples apart from documents", func() {
			Expect(db.SaveSample(&TrainingSample{ID: "s1"})).To(Succeed())
			docs, err := db.ListDocuments()
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(BeEmpty())
		})
	})

	Describe("Reopening", func() {
		It("should keep saved documents", func() {
			Expect(db.SaveDocument(newDocument("persisted", time.Now()))).To(Succeed())
			Expect(db.Close()).To(Succeed())

			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())
			doc, err := db.GetDocument("persisted")
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Filename).To(Equal("persisted.jpg"))
		})
	})
})
