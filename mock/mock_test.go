package mock

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/pulse/pkg/credentials"
	"github.com/papercomputeco/pulse/pkg/frame"
	"github.com/papercomputeco/pulse/pkg/llm"
	"github.com/papercomputeco/pulse/pkg/logger"
	"github.com/papercomputeco/pulse/pkg/sse"
	"github.com/papercomputeco/pulse/pkg/stream"
)

func newTestServer(config Config) *Server {
	s, err := New(config, logger.Nop())
	Expect(err).NotTo(HaveOccurred())
	return s
}

func chatBody(req llm.ChatRequest) io.Reader {
	raw, err := json.Marshal(req)
	Expect(err).NotTo(HaveOccurred())
	return strings.NewReader(string(raw))
}

// post sends req through fiber's in-process test transport and returns the
// status and the full body.
func post(s *Server, req llm.ChatRequest, headers map[string]string) (int, string) {
	httpReq := httptest.NewRequest(http.MethodPost, "/api/chat/stream", chatBody(req))
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := s.server.Test(httpReq, -1)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp.StatusCode, string(body)
}

// replay runs body through the client's decoding pipeline.
func replay(body string) (string, []string) {
	var (
		text    strings.Builder
		notices []string
	)
	for line, err := range sse.Lines(strings.NewReader(body)) {
		Expect(err).NotTo(HaveOccurred())
		ev := frame.Classify(line)
		switch ev.Kind {
		case frame.KindToken:
			text.WriteString(ev.Text)
		case frame.KindError:
			notices = append(notices, ev.Text)
		case frame.KindDone:
			return text.String(), notices
		}
	}
	Fail("stream ended without [DONE]")
	return "", nil
}

var _ = Describe("Server", func() {
	req := llm.ChatRequest{UserID: "test-user", Query: "hello there", Mode: llm.ModeChat}

	It("rejects a negative delay", func() {
		_, err := New(Config{Delay: -1}, logger.Nop())
		Expect(err).To(HaveOccurred())
	})

	It("rejects an unknown shape", func() {
		_, err := New(Config{Shape: "xml"}, logger.Nop())
		Expect(err).To(HaveOccurred())
	})

	It("answers health checks", func() {
		s := newTestServer(Config{})
		resp, err := s.server.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	It("streams an event stream that ends with the sentinel", func() {
		s := newTestServer(Config{})
		status, body := post(s, req, nil)

		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(HaveSuffix("data: [DONE]\n\n"))
		Expect(body).To(ContainSubstring(`"object":"chat.completion.chunk"`))
	})

	DescribeTable("every shape decodes to the scripted answer",
		func(shape Shape, mode llm.Mode, marker string) {
			s := newTestServer(Config{Shape: shape})
			r := req
			r.Mode = mode

			_, body := post(s, r, nil)
			Expect(body).To(ContainSubstring(marker))

			text, notices := replay(body)
			Expect(text).To(Equal(Answer(r)))
			Expect(notices).To(BeEmpty())
		},
		Entry("flat", ShapeFlat, llm.ModeChat, `{"token":`),
		Entry("openai", ShapeOpenAI, llm.ModeChat, `"delta":`),
		Entry("envelope", ShapeEnvelope, llm.ModeRAG, `"type":"thought"`),
		Entry("event", ShapeEvent, llm.ModeDoc, `event: message{"content":`),
		Entry("by mode: rag", Shape(""), llm.ModeRAG, `"type":"answer"`),
		Entry("by mode: doc", Shape(""), llm.ModeDoc, `event: message{"content":`),
	)

	It("emits a heartbeat comment when asked", func() {
		s := newTestServer(Config{Heartbeat: true})
		_, body := post(s, req, nil)
		Expect(body).To(HavePrefix(": heartbeat\n\n"))

		text, _ := replay(body)
		Expect(text).To(Equal(Answer(req)))
	})

	It("injects an inline error frame without ending the stream", func() {
		s := newTestServer(Config{ErrorAfter: 1})
		_, body := post(s, req, nil)

		text, notices := replay(body)
		Expect(text).To(Equal(Answer(req)))
		Expect(notices).To(Equal([]string{"mock: simulated upstream hiccup"}))
	})

	It("rejects requests without a query", func() {
		s := newTestServer(Config{})
		status, body := post(s, llm.ChatRequest{UserID: "test-user", Mode: llm.ModeChat}, nil)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(ContainSubstring("query is required"))
	})

	It("rejects malformed bodies", func() {
		s := newTestServer(Config{})
		httpReq := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{not json"))
		resp, err := s.server.Test(httpReq, -1)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
	})

	Context("with a required token", func() {
		var s *Server

		BeforeEach(func() {
			s = newTestServer(Config{Token: "letmein"})
		})

		It("rejects a missing token", func() {
			status, _ := post(s, req, nil)
			Expect(status).To(Equal(http.StatusUnauthorized))
		})

		It("rejects a wrong token", func() {
			status, _ := post(s, req, map[string]string{"Authorization": "Bearer nope"})
			Expect(status).To(Equal(http.StatusUnauthorized))
		})

		It("accepts the right token", func() {
			status, _ := post(s, req, map[string]string{"Authorization": "Bearer letmein"})
			Expect(status).To(Equal(http.StatusOK))
		})
	})
})

var _ = Describe("Server with the stream client", func() {
	var (
		s        *Server
		endpoint string
	)

	start := func(config Config) {
		s = newTestServer(config)

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		endpoint = "http://" + listener.Addr().String() + "/api/chat/stream"

		go func() {
			defer GinkgoRecover()
			_ = s.RunWithListener(listener)
		}()
		DeferCleanup(s.Close)
	}

	It("round-trips a turn", func() {
		start(Config{Token: "letmein", Heartbeat: true, ErrorAfter: 2})

		client, err := stream.New(stream.Config{
			Endpoint:    endpoint,
			TokenSource: credentials.StaticToken("letmein"),
		}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		req := llm.ChatRequest{UserID: "test-user", Query: "what is in the handbook?", Mode: llm.ModeRAG}
		res, err := client.Stream(context.Background(), req, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Content).To(Equal(Answer(req)))
		Expect(res.State).To(Equal(stream.StateDone))
		Expect(res.Notices).To(HaveLen(1))
	})

	It("keeps partial content when the stream drops", func() {
		start(Config{DropAfter: 2})

		client, err := stream.New(stream.Config{Endpoint: endpoint}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		req := llm.ChatRequest{UserID: "test-user", Query: "hello there", Mode: llm.ModeChat}
		res, err := client.Stream(context.Background(), req, nil)
		Expect(res.State).To(Equal(stream.StateFailed))
		Expect(res.Content).To(Equal(strings.Join(Tokenize(Answer(req))[:2], "")))

		var connErr *stream.ConnectionError
		Expect(errors.As(err, &connErr)).To(BeTrue())
	})
})

var _ = Describe("Tokenize", func() {
	It("reassembles to the input", func() {
		for _, s := range []string{
			"You said: hello there",
			"  leading space",
			"# Title\n\n- a\n- b\n",
			"",
		} {
			Expect(strings.Join(Tokenize(s), "")).To(Equal(s))
		}
	})

	It("splits on word boundaries", func() {
		Expect(Tokenize("You said: hi")).To(Equal([]string{"You ", "said: ", "hi"}))
	})
})

var _ = Describe("ParseShape", func() {
	It("accepts known shapes and the empty string", func() {
		for _, shape := range Shapes() {
			parsed, err := ParseShape(strings.ToUpper(string(shape)))
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed).To(Equal(shape))
		}

		parsed, err := ParseShape("")
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed).To(BeEmpty())
	})
})
