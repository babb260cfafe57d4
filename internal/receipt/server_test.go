package receipt

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/quicktotal/internal/api"
	"github.com/zombor/quicktotal/internal/category"
	"github.com/zombor/quicktotal/internal/ledger"
)

type formFile struct {
	field    string
	filename string
	data     []byte
}

// multipartBody builds a multipart form from plain fields and files
func multipartBody(fields map[string]string, files ...formFile) (*bytes.Buffer, string) {
	var b bytes.Buffer
	writer := multipart.NewWriter(&b)
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.filename)
		Expect(err).NotTo(HaveOccurred())
		part.Write(f.data)
	}
	for k, v := range fields {
		Expect(writer.WriteField(k, v)).To(Succeed())
	}
	Expect(writer.Close()).To(Succeed())
	return &b, writer.FormDataContentType()
}

func decodeBody(resp *http.Response, v any) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	Expect(json.Unmarshal(body, v)).To(Succeed())
}

const ledgerJSON = `{"documents":[
	{"label":"Document #1","items":[{"name":"Milk","category":"Groceries","amount":"40"},{"name":"Bus","category":"Transport","amount":20}]},
	{"label":"Document #2","items":[{"name":"Refund","category":"Groceries","amount":"-5.50"}]}
]}`

const uncategorizedJSON = `{"documents":[
	{"label":"Document #1","items":[{"name":"Bus ticket","category":"","amount":20},{"name":"Milk","amount":"40"}]}
]}`

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		scanner     *mockScanner
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		service = NewServiceWithDeps(db, scanner, storage, category.DefaultGuesser(),
			&mockIDGenerator{id: "doc-1"},
			&mockTimeSource{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)})
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	}

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		scanner = newMockScanner()
		auth = BasicAuth{}
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleIndex", func() {
		When("request method is GET", func() {
			It("should return HTML containing QuickTotal", func() {
				resp, err := http.Get(ghttpServer.URL() + "/")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(ContainSubstring("QuickTotal"))
			})
		})

		When("request method is not GET", func() {
			It("should return status Method Not Allowed", func() {
				resp, err := http.Post(ghttpServer.URL()+"/", "text/plain", nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusMethodNotAllowed))
				resp.Body.Close()
			})
		})
	})

	Describe("CORS", func() {
		It("should answer preflight requests", func() {
			req, err := http.NewRequest(http.MethodOptions, ghttpServer.URL()+api.PathCalculate, nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})

	Describe("handleCalculate", func() {
		var (
			fields map[string]string
			files  []formFile
			resp   *http.Response
		)

		BeforeEach(func() {
			fields = map[string]string{}
			files = []formFile{{field: api.FieldImages, filename: "bill.png", data: sharpPNG(64, 64)}}
		})

		JustBeforeEach(func() {
			body, ct := multipartBody(fields, files...)
			var err error
			resp, err = http.Post(ghttpServer.URL()+api.PathCalculate, ct, body)
			Expect(err).NotTo(HaveOccurred())
		})

		When("extraction succeeds", func() {
			It("should return the items and subtotal", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
				var out api.CalculateResponse
				decodeBody(resp, &out)
				Expect(out.Results).To(HaveLen(1))
				Expect(out.Results[0].Items).To(HaveLen(2))
				Expect(out.Results[0].Subtotal.StringFixed(2)).To(Equal("60.00"))
				Expect(out.Results[0].ID).To(Equal("doc-1"))
			})
		})

		When("a document index is given", func() {
			BeforeEach(func() {
				fields[api.FieldIndex] = "4"
			})

			It("should number the result from it", func() {
				var out api.CalculateResponse
				decodeBody(resp, &out)
				Expect(out.Results[0].Index).To(Equal(4))
			})
		})

		When("the single image field is used", func() {
			BeforeEach(func() {
				files = []formFile{{field: api.FieldImage, filename: "bill.png", data: sharpPNG(32, 32)}}
			})

			It("should accept it", func() {
				var out api.CalculateResponse
				decodeBody(resp, &out)
				Expect(out.Results).To(HaveLen(1))
				Expect(out.Results[0].Error).To(BeEmpty())
			})
		})

		When("crop bounds are given", func() {
			BeforeEach(func() {
				fields[api.FieldX1] = "10"
				fields[api.FieldY1] = "10"
				fields[api.FieldX2] = "50"
				fields[api.FieldY2] = "30"
			})

			It("should extract only the cropped area", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				resp.Body.Close()
				Expect(scanner.sizes).To(HaveLen(1))
				Expect(scanner.sizes[0].X).To(Equal(40))
				Expect(scanner.sizes[0].Y).To(Equal(20))
			})
		})

		When("only some crop bounds are given", func() {
			BeforeEach(func() {
				fields[api.FieldX1] = "10"
				fields[api.FieldY1] = "10"
			})

			It("should process the whole image", func() {
				resp.Body.Close()
				Expect(scanner.sizes[0].X).To(Equal(64))
			})
		})

		When("a crop bound is not an integer", func() {
			BeforeEach(func() {
				fields[api.FieldX1] = "ten"
				fields[api.FieldY1] = "10"
				fields[api.FieldX2] = "50"
				fields[api.FieldY2] = "30"
			})

			It("should return status Bad Request", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				var out api.ErrorResponse
				decodeBody(resp, &out)
				Expect(out.Error).To(ContainSubstring("Invalid crop coordinate"))
			})
		})

		When("no file is provided", func() {
			BeforeEach(func() {
				files = nil
			})

			It("should return status Bad Request", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				var out api.ErrorResponse
				decodeBody(resp, &out)
				Expect(out.Error).To(Equal("No image uploaded"))
			})
		})

		When("extraction fails", func() {
			BeforeEach(func() {
				scanner.scanErr = errors.New("quota exceeded")
			})

			It("should report the error on the document", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var out api.CalculateResponse
				decodeBody(resp, &out)
				Expect(out.Results[0].Error).To(ContainSubstring("quota exceeded"))
			})
		})
	})

	Describe("handleAnalyzeImage", func() {
		It("should return the quality score", func() {
			body, ct := multipartBody(nil, formFile{field: api.FieldImage, filename: "bill.png", data: sharpPNG(64, 64)})
			resp, err := http.Post(ghttpServer.URL()+api.PathAnalyzeImage, ct, body)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var out api.AnalyzeResponse
			decodeBody(resp, &out)
			Expect(out.QualityScore).To(BeNumerically(">", 50))
		})

		It("should reject unreadable images", func() {
			body, ct := multipartBody(nil, formFile{field: api.FieldImage, filename: "bill.png", data: []byte("nope")})
			resp, err := http.Post(ghttpServer.URL()+api.PathAnalyzeImage, ct, body)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
			resp.Body.Close()
		})
	})

	Describe("handleSaveTrainingData", func() {
		var (
			data string
			resp *http.Response
		)

		BeforeEach(func() {
			data = `[{"name":"Milk","category":"groceries","amount":"40"}]`
		})

		JustBeforeEach(func() {
			body, ct := multipartBody(map[string]string{api.FieldData: data},
				formFile{field: api.FieldImage, filename: "bill.jpg", data: []byte("jpeg bytes")})
			var err error
			resp, err = http.Post(ghttpServer.URL()+api.PathSaveTrainingData, ct, body)
			Expect(err).NotTo(HaveOccurred())
		})

		When("save succeeds", func() {
			It("should return status Created with the sample ID", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				var out api.TrainingResponse
				decodeBody(resp, &out)
				Expect(out.ID).To(Equal("doc-1"))
				Expect(db.samples["doc-1"].Items[0].Category).To(Equal("Groceries"))
			})
		})

		When("the items are wrapped in an object", func() {
			BeforeEach(func() {
				data = `{"items":[{"name":"Bread","category":"","amount":25}]}`
			})

			It("should accept them", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				resp.Body.Close()
				Expect(db.samples["doc-1"].Items[0].Name).To(Equal("Bread"))
			})
		})

		When("the data is not JSON", func() {
			BeforeEach(func() {
				data = "milk 40"
			})

			It("should return status Bad Request", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})

		When("the data is missing", func() {
			BeforeEach(func() {
				data = ""
			})

			It("should return status Bad Request", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				var out api.ErrorResponse
				decodeBody(resp, &out)
				Expect(out.Error).To(Equal("No training data provided"))
			})
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.saveSampleErr = errors.New("db locked")
			})

			It("should return status Internal Server Error", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				resp.Body.Close()
			})
		})
	})

	Describe("handleLedgerTotals", func() {
		It("should recalculate the posted ledger", func() {
			resp, err := http.Post(ghttpServer.URL()+api.PathLedgerTotals, "application/json", strings.NewReader(ledgerJSON))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var out ledger.Totals
			decodeBody(resp, &out)
			Expect(out.GrandDisplay).To(Equal("₹54.50"))
			Expect(out.Documents).To(HaveLen(2))
			Expect(out.Categories[0].Name).To(Equal("Groceries"))
		})

		It("should guess blank categories from item names", func() {
			resp, err := http.Post(ghttpServer.URL()+api.PathLedgerTotals, "application/json", strings.NewReader(uncategorizedJSON))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var out ledger.Totals
			decodeBody(resp, &out)
			Expect(out.Categories).To(HaveLen(2))
			Expect(out.Categories[0].Name).To(Equal("Groceries"))
			Expect(out.Categories[0].Display).To(Equal("₹40.00"))
			Expect(out.Categories[1].Name).To(Equal("Transport"))
			Expect(out.Categories[1].Display).To(Equal("₹20.00"))
		})

		It("should reject a malformed body", func() {
			resp, err := http.Post(ghttpServer.URL()+api.PathLedgerTotals, "application/json", strings.NewReader("{"))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})
	})

	Describe("handleExportCSV", func() {
		It("should return the ledger as CSV", func() {
			resp, err := http.Post(ghttpServer.URL()+api.PathExportCSV, "application/json", strings.NewReader(ledgerJSON))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/csv"))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("attachment"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			lines := strings.Split(strings.TrimSpace(string(body)), "\n")
			Expect(lines[0]).To(Equal("S.No.,Document,Item Name,Category,Price"))
			Expect(lines).To(HaveLen(5))
			Expect(lines[4]).To(ContainSubstring("Grand Total"))
			Expect(lines[4]).To(ContainSubstring("54.50"))
		})

		It("should guess blank categories from item names", func() {
			resp, err := http.Post(ghttpServer.URL()+api.PathExportCSV, "application/json", strings.NewReader(uncategorizedJSON))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			lines := strings.Split(strings.TrimSpace(string(body)), "\n")
			Expect(lines[1]).To(Equal("1,Document #1,Bus ticket,Transport,20.00"))
			Expect(lines[2]).To(Equal("2,Document #1,Milk,Groceries,40.00"))
		})
	})

	Describe("handleExportPDF", func() {
		It("should return a PDF", func() {
			resp, err := http.Post(ghttpServer.URL()+api.PathExportPDF, "application/json", strings.NewReader(ledgerJSON))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/pdf"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(HavePrefix("%PDF"))
		})
	})

	Describe("document history", func() {
		BeforeEach(func() {
			db.documents["id1"] = &Document{ID: "id1", StoredFile: "id1_a.png", ContentType: "image/png", CreatedAt: time.Now()}
			db.documents["id2"] = &Document{ID: "id2", StoredFile: "id2_b.png", ContentType: "image/png", CreatedAt: time.Now()}
			storage.files["id1_a.png"] = []byte("png bytes")
		})

		It("should list documents", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/documents")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var docs []*Document
			decodeBody(resp, &docs)
			Expect(docs).To(HaveLen(2))
		})

		It("should get a single document", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/documents/id1")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var doc Document
			decodeBody(resp, &doc)
			Expect(doc.ID).To(Equal("id1"))
		})

		It("should return 404 for an unknown document", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/documents/missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()
		})

		It("should serve the stored image", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/documents/id1/file")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(Equal([]byte("png bytes")))
		})

		It("should delete a document", func() {
			req, err := http.NewRequest(http.MethodDelete, ghttpServer.URL()+"/api/documents/id1", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.documents).NotTo(HaveKey("id1"))
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.listErr = errors.New("database error")
			})

			It("should return status Internal Server Error", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/documents")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				resp.Body.Close()
			})
		})
	})

	Describe("handleListSamples", func() {
		It("should list training samples", func() {
			db.samples["s1"] = &TrainingSample{ID: "s1"}
			resp, err := http.Get(ghttpServer.URL() + "/api/training")
			Expect(err).NotTo(HaveOccurred())
			var samples []*TrainingSample
			decodeBody(resp, &samples)
			Expect(samples).To(HaveLen(1))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
			setupServer()
		})

		When("no credentials are sent", func() {
			It("should return status Unauthorized", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/documents")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("QuickTotal"))
				resp.Body.Close()
			})
		})

		When("wrong credentials are sent", func() {
			It("should return status Unauthorized", func() {
				req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/documents", nil)
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:wrong")))
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				resp.Body.Close()
			})
		})

		When("valid credentials are sent", func() {
			It("should return status OK", func() {
				req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/documents", nil)
				Expect(err).NotTo(HaveOccurred())
				req.SetBasicAuth("admin", "secret")
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				resp.Body.Close()
			})
		})
	})
})
