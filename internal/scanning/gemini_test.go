package scanning

import (
	"github.com/google/generative-ai-go/genai"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("replyText", func() {
	It("should join the text parts of the first candidate", func() {
		resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"items":`), genai.Text(`[]}`)}},
		}}}
		text, err := replyText(resp)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal(`{"items":[]}`))
	})

	It("returns an error when there are no candidates", func() {
		_, err := replyText(&genai.GenerateContentResponse{})
		Expect(err).To(MatchError("no response from gemini"))
	})

	It("returns an error when the reply has no text", func() {
		resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}}},
		}}}
		_, err := replyText(resp)
		Expect(err).To(MatchError("gemini returned no text"))
	})
})

var _ = Describe("configureModel", func() {
	It("should set the system prompt and a zero temperature", func() {
		model := &genai.GenerativeModel{}
		configureModel(model)

		Expect(model.Temperature).NotTo(BeNil())
		Expect(*model.Temperature).To(Equal(float32(0)))
		Expect(model.SystemInstruction).NotTo(BeNil())
		Expect(model.SystemInstruction.Parts).To(Equal([]genai.Part{genai.Text(systemPrompt)}))
	})
})
