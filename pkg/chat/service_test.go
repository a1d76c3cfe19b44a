package chat_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/pulse/pkg/chat"
	"github.com/papercomputeco/pulse/pkg/llm"
	"github.com/papercomputeco/pulse/pkg/logger"
	"github.com/papercomputeco/pulse/pkg/session"
	"github.com/papercomputeco/pulse/pkg/stream"
)

// fakeStreamer replays scripted tokens and records the requests it saw.
type fakeStreamer struct {
	tokens   []string
	notices  []string
	err      error
	requests []llm.ChatRequest

	// block, when set, holds Stream open until it is closed.
	block   chan struct{}
	started chan struct{}
}

func (f *fakeStreamer) Stream(_ context.Context, req llm.ChatRequest, obs stream.Observer) (*stream.Result, error) {
	f.requests = append(f.requests, req)
	if obs == nil {
		obs = stream.ObserverFuncs{}
	}
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}

	res := &stream.Result{State: stream.StateStreaming}
	for _, n := range f.notices {
		res.Notices = append(res.Notices, n)
		obs.Notice(n)
	}
	for _, t := range f.tokens {
		res.Content += t
		res.Tokens++
		obs.Snapshot(res.Content)
	}

	if f.err != nil {
		res.State = stream.StateFailed
		return res, f.err
	}
	res.State = stream.StateDone
	return res, nil
}

var _ = Describe("Service", func() {
	var (
		ctx      context.Context
		store    *session.Store
		streamer *fakeStreamer
		svc      *chat.Service
		id       session.ID
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = session.NewStore()
		streamer = &fakeStreamer{tokens: []string{"Hel", "lo"}}
		svc = chat.NewService(store, streamer, chat.Config{}, logger.Nop())
		id = store.Create("")
	})

	Describe("NewService", func() {
		It("defaults the user id and mode", func() {
			_, err := svc.Submit(ctx, id, "hi", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(streamer.requests).To(HaveLen(1))
			Expect(streamer.requests[0].UserID).To(Equal(chat.DefaultUserID))
			Expect(streamer.requests[0].Mode).To(Equal(llm.ModeChat))
			Expect(svc.Store()).To(BeIdenticalTo(store))
		})
	})

	Describe("Submit", func() {
		It("rejects blank input without touching the session", func() {
			_, err := svc.Submit(ctx, id, "   \n", nil)
			Expect(err).To(MatchError(chat.ErrEmptyMessage))

			sess, err := store.Get(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(sess.Messages).To(BeEmpty())
			Expect(streamer.requests).To(BeEmpty())
		})

		It("commits the user message and the streamed reply", func() {
			var snapshots []string
			obs := stream.ObserverFuncs{OnSnapshot: func(s string) { snapshots = append(snapshots, s) }}

			reply, err := svc.Submit(ctx, id, "hi there", obs)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply).To(Equal(llm.NewAssistantMessage("Hello")))
			Expect(snapshots).To(Equal([]string{"Hel", "Hello"}))

			sess, err := store.Get(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(sess.Messages).To(Equal([]llm.Message{
				llm.NewUserMessage("hi there"),
				llm.NewAssistantMessage("Hello"),
			}))
		})

		It("builds the request from the last user message", func() {
			_, err := svc.Submit(ctx, id, "first", nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.Submit(ctx, id, "second", nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(streamer.requests).To(HaveLen(2))
			last := streamer.requests[1]
			Expect(last.Query).To(Equal("second"))
			Expect(last.SessionID).To(BeNil())
		})

		It("forwards the current mode", func() {
			Expect(svc.SetMode(llm.ModeDoc)).To(Succeed())
			Expect(svc.Mode()).To(Equal(llm.ModeDoc))

			_, err := svc.Submit(ctx, id, "write a doc", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(streamer.requests[0].Mode).To(Equal(llm.ModeDoc))
		})

		It("commits exactly one partial reply when the stream fails", func() {
			streamer.err = &stream.ConnectionError{Err: errors.New("connection reset")}

			reply, err := svc.Submit(ctx, id, "hi", nil)
			Expect(err).To(HaveOccurred())

			var connErr *stream.ConnectionError
			Expect(errors.As(err, &connErr)).To(BeTrue())
			Expect(reply.Content).To(Equal("Hello"))

			sess, err := store.Get(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(sess.Messages).To(HaveLen(2))
			Expect(sess.Messages[1]).To(Equal(llm.NewAssistantMessage("Hello")))
		})

		It("commits an empty reply when nothing was received", func() {
			streamer.tokens = nil
			streamer.err = &stream.ConnectionError{StatusCode: http.StatusUnauthorized}

			reply, err := svc.Submit(ctx, id, "hi", nil)
			Expect(err).To(HaveOccurred())
			Expect(reply).To(Equal(llm.NewAssistantMessage("")))

			sess, _ := store.Get(id)
			Expect(sess.Messages).To(HaveLen(2))
		})

		It("passes inline notices through without failing", func() {
			streamer.notices = []string{"rate limited"}
			var notices []string
			obs := stream.ObserverFuncs{OnNotice: func(n string) { notices = append(notices, n) }}

			reply, err := svc.Submit(ctx, id, "hi", obs)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Content).To(Equal("Hello"))
			Expect(notices).To(Equal([]string{"rate limited"}))
		})

		It("fails for an unknown session", func() {
			_, err := svc.Submit(ctx, session.ID("missing"), "hi", nil)
			var nf session.NotFoundError
			Expect(errors.As(err, &nf)).To(BeTrue())
			Expect(streamer.requests).To(BeEmpty())
		})

		It("refuses a second turn while one is streaming", func() {
			streamer.block = make(chan struct{})
			streamer.started = make(chan struct{})

			done := make(chan error, 1)
			go func() {
				_, err := svc.Submit(ctx, id, "first", nil)
				done <- err
			}()
			Eventually(streamer.started).Should(BeClosed())
			Expect(svc.Busy(id)).To(BeTrue())

			_, err := svc.Submit(ctx, id, "second", nil)
			Expect(err).To(MatchError(chat.ErrTurnInProgress))

			close(streamer.block)
			Eventually(done).Should(Receive(BeNil()))
			Expect(svc.Busy(id)).To(BeFalse())

			sess, _ := store.Get(id)
			Expect(sess.Messages).To(HaveLen(2))
		})

		It("is not disturbed by concurrent Busy checks", func() {
			stop := make(chan struct{})
			polled := make(chan struct{})
			go func() {
				defer close(polled)
				for {
					select {
					case <-stop:
						return
					default:
						svc.Busy(id)
					}
				}
			}()

			for i := range 200 {
				_, err := svc.Submit(ctx, id, fmt.Sprintf("turn %d", i), nil)
				Expect(err).NotTo(HaveOccurred())
			}
			close(stop)
			Eventually(polled).Should(BeClosed())
		})

		It("reports an idle service for a deleted session", func() {
			_, err := svc.Submit(ctx, id, "hi", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Delete(id)).To(Succeed())
			Expect(svc.Busy(id)).To(BeFalse())
		})
	})

	Describe("SubmitCurrent", func() {
		It("creates a session lazily", func() {
			empty := session.NewStore()
			svc := chat.NewService(empty, streamer, chat.Config{UserID: "alice"}, logger.Nop())

			id, reply, err := svc.SubmitCurrent(ctx, "hello", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Content).To(Equal("Hello"))
			Expect(empty.Len()).To(Equal(1))

			current, ok := empty.Current()
			Expect(ok).To(BeTrue())
			Expect(current.ID).To(Equal(id))
			Expect(streamer.requests[0].UserID).To(Equal("alice"))
		})

		It("does not create a session for blank input", func() {
			empty := session.NewStore()
			svc := chat.NewService(empty, streamer, chat.Config{}, logger.Nop())

			_, _, err := svc.SubmitCurrent(ctx, "", nil)
			Expect(err).To(MatchError(chat.ErrEmptyMessage))
			Expect(empty.Len()).To(BeZero())
		})
	})

	Describe("SetMode", func() {
		It("accepts display labels", func() {
			Expect(svc.SetMode(llm.Mode("Chat with RAG"))).To(Succeed())
			Expect(svc.Mode()).To(Equal(llm.ModeRAG))
		})

		It("rejects unknown modes", func() {
			Expect(svc.SetMode(llm.Mode("search"))).NotTo(Succeed())
			Expect(svc.Mode()).To(Equal(llm.ModeChat))
		})
	})
})

var _ = Describe("Service with a stream client", func() {
	It("runs a turn end to end", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprintln(w, `data: {"data":{"type":"thought","content":"hmm"}}`)
			fmt.Fprintln(w, `data: {"data":{"type":"answer","content":"4"}}`)
			fmt.Fprintln(w, `data: [DONE]`)
		}))
		DeferCleanup(server.Close)

		client, err := stream.New(stream.Config{Endpoint: server.URL}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		store := session.NewStore()
		svc := chat.NewService(store, client, chat.Config{Mode: llm.ModeRAG}, logger.Nop())

		id, reply, err := svc.SubmitCurrent(context.Background(), "2+2?", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(reply.Content).To(Equal("4"))

		sess, err := store.Get(id)
		Expect(err).NotTo(HaveOccurred())
		Expect(sess.Messages).To(HaveLen(2))
	})
})
